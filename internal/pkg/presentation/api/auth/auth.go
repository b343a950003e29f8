package auth

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/open-policy-agent/opa/rego"
	"go.opentelemetry.io/otel"

	"github.com/diwise/device-monitor/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/device-monitor/pkg/types"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
)

type deviceContextKey struct{ name string }

var deviceCtxKey = &deviceContextKey{"device"}

var tracer = otel.Tracer("device-monitor/authz")

//go:embed authz.rego
var DefaultPolicy string

type Action string

const (
	Read    Action = "read"
	Update  Action = "update"
	Delete  Action = "delete"
	Command Action = "command"
)

// DeviceLoader looks up the device a request refers to.
type DeviceLoader interface {
	GetDevice(ctx context.Context, deviceID uint) (types.Device, error)
}

type Authorizer interface {
	RequireDeviceOwner(resource string, action Action) func(http.Handler) http.Handler
}

type impl struct {
	query   rego.PreparedEvalQuery
	devices DeviceLoader
}

// RequireDeviceOwner returns a middleware that loads the device named by the deviceID url
// parameter and only lets the request through if the policy allows the caller to perform
// action on resource. The device is stored in the request context.
func (a *impl) RequireDeviceOwner(resource string, action Action) func(http.Handler) http.Handler {
	denied := deniedMessage(resource, action)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var err error

			ctx, span := tracer.Start(r.Context(), "check-device-owner")
			defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

			logger := logging.GetFromContext(ctx)

			userID, ok := UserIDFromContext(ctx)
			if !ok {
				err = errors.New("no authenticated user in context")
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			deviceID, err := strconv.ParseUint(chi.URLParam(r, "deviceID"), 10, 32)
			if err != nil || deviceID == 0 {
				err = fmt.Errorf("invalid device id %q", chi.URLParam(r, "deviceID"))
				writeError(w, http.StatusBadRequest, "Invalid device ID")
				return
			}

			device, err := a.devices.GetDevice(ctx, uint(deviceID))
			if errors.Is(err, database.ErrNotFound) {
				writeError(w, http.StatusNotFound, "Device not found")
				return
			}
			if err != nil {
				logger.Error().Err(err).Msg("failed to load device")
				writeError(w, http.StatusInternalServerError, "Failed to fetch device")
				return
			}

			input := map[string]any{
				"user":     map[string]any{"id": userID},
				"device":   map[string]any{"id": device.ID, "userId": device.UserID},
				"resource": resource,
				"action":   string(action),
			}

			results, err := a.query.Eval(ctx, rego.EvalInput(input))
			if err != nil {
				logger.Error().Err(err).Msg("opa eval failed")
				writeError(w, http.StatusInternalServerError, "Failed to authorize request")
				return
			}

			allowed := false
			if len(results) > 0 {
				allowed, _ = results[0].Bindings["x"].(bool)
			}

			if !allowed {
				err = errors.New("authorization failed")
				logger.Warn().Str("userID", userID).Uint("deviceID", device.ID).Msgf("%s on %s denied", action, resource)
				writeError(w, http.StatusForbidden, denied)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithDevice(r.Context(), device)))
		})
	}
}

func deniedMessage(resource string, action Action) string {
	switch action {
	case Update:
		return "Not authorized to update this device"
	case Delete:
		return "Not authorized to delete this device"
	case Command:
		return "Not authorized to send commands to this device"
	}

	if resource == "" || resource == "device" {
		return "Not authorized to access this device"
	}

	return fmt.Sprintf("Not authorized to access this device's %s", resource)
}

func NewAuthorizer(ctx context.Context, policies io.Reader, devices DeviceLoader) (Authorizer, error) {
	module, err := io.ReadAll(policies)
	if err != nil {
		return nil, fmt.Errorf("unable to read authz policies: %s", err.Error())
	}

	query, err := rego.New(
		rego.Query("x = data.devicemonitor.authz.allow"),
		rego.Module("devicemonitor.rego", string(module)),
	).PrepareForEval(ctx)

	if err != nil {
		return nil, err
	}

	return &impl{query: query, devices: devices}, nil
}

func WithDevice(ctx context.Context, device types.Device) context.Context {
	return context.WithValue(ctx, deviceCtxKey, device)
}

// DeviceFromContext returns the device that passed the ownership check.
func DeviceFromContext(ctx context.Context) (types.Device, bool) {
	device, ok := ctx.Value(deviceCtxKey).(types.Device)
	return device, ok
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	b, _ := json.Marshal(types.ErrorResponse{Message: message})
	w.Write(b)
}
