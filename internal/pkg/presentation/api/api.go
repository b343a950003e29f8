package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diwise/device-monitor/internal/pkg/application/devicemonitor"
	"github.com/diwise/device-monitor/internal/pkg/infrastructure/repositories/database"
	o11y "github.com/diwise/device-monitor/internal/pkg/infrastructure/tracing"
	"github.com/diwise/device-monitor/internal/pkg/presentation/api/auth"
	"github.com/diwise/device-monitor/pkg/types"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("device-monitor/api")

var (
	errInvalidLimit = errors.New("invalid limit")
	errMissingDates = errors.New("missing date parameters")
	errInvalidDate  = errors.New("invalid date format")
)

func RegisterHandlers(ctx context.Context, router *chi.Mux, policies io.Reader, session *auth.Session, svc devicemonitor.DeviceMonitor) (*chi.Mux, error) {

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	log := logging.GetFromContext(ctx)

	authz, err := auth.NewAuthorizer(ctx, policies, svc)
	if err != nil {
		return nil, fmt.Errorf("failed to create api authorizer: %w", err)
	}

	router.Route("/api", func(r chi.Router) {
		if session.LoginEnabled() {
			r.Get("/login", session.LoginHandler())
			r.Get("/callback", session.CallbackHandler(svc))
			r.Get("/logout", session.LogoutHandler())
		}

		r.Group(func(r chi.Router) {
			r.Use(session.Authenticator)

			r.Get("/auth/user", getCurrentUserHandler(log, svc))

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", listDevicesHandler(log, svc))
				r.Post("/", createDeviceHandler(log, svc))

				r.Route("/{deviceID}", func(r chi.Router) {
					r.With(authz.RequireDeviceOwner("device", auth.Read)).Get("/", getDeviceHandler(log))
					r.With(authz.RequireDeviceOwner("device", auth.Update)).Put("/", updateDeviceHandler(log, svc))
					r.With(authz.RequireDeviceOwner("device", auth.Delete)).Delete("/", deleteDeviceHandler(log, svc))

					r.With(authz.RequireDeviceOwner("locations", auth.Read)).Get("/locations", listLocationsHandler(log, svc))
					r.With(requireDateRange, authz.RequireDeviceOwner("locations", auth.Read)).Get("/locations/range", locationRangeHandler(log, svc))
					r.With(authz.RequireDeviceOwner("calls", auth.Read)).Get("/calls", listHandler(log, "calls", svc.GetCalls))
					r.With(authz.RequireDeviceOwner("messages", auth.Read)).Get("/messages", listHandler(log, "messages", svc.GetMessages))
					r.With(authz.RequireDeviceOwner("photos", auth.Read)).Get("/photos", listHandler(log, "photos", svc.GetPhotos))
					r.With(authz.RequireDeviceOwner("recordings", auth.Read)).Get("/recordings", listHandler(log, "recordings", svc.GetRecordings))
					r.With(authz.RequireDeviceOwner("commands", auth.Read)).Get("/commands", listHandler(log, "commands", svc.GetCommands))
					r.With(authz.RequireDeviceOwner("commands", auth.Command)).Post("/commands", createCommandHandler(log, svc))
				})
			})

			r.Get("/commands", listUserCommandsHandler(log, svc))

			r.Get("/settings", getSettingsHandler(log, svc))
			r.Put("/settings", updateSettingsHandler(log, svc))
		})
	})

	return router, nil
}

// startRequest starts a span for the request and returns a logger decorated with the trace
// id and, when authenticated, the calling user.
func startRequest(r *http.Request, log zerolog.Logger, name string) (context.Context, trace.Span, zerolog.Logger) {
	ctx, span := tracer.Start(r.Context(), name)

	if userID, ok := auth.UserIDFromContext(ctx); ok {
		log = log.With().Str("userID", userID).Logger()
	}
	if device, ok := auth.DeviceFromContext(ctx); ok {
		log = log.With().Uint("deviceID", device.ID).Logger()
	}

	_, ctx, requestLogger := o11y.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)
	return ctx, span, requestLogger
}

func limitFromQuery(r *http.Request) ([]database.ConditionFunc, error) {
	value := r.URL.Query().Get("limit")
	if value == "" {
		return nil, nil
	}

	limit, err := strconv.Atoi(value)
	if err != nil || limit < 0 {
		return nil, fmt.Errorf("%w: %q", errInvalidLimit, value)
	}

	return []database.ConditionFunc{database.WithLimit(limit)}, nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", errInvalidDate, value)
}

func dateRangeFromQuery(r *http.Request) (time.Time, time.Time, error) {
	start, end := r.URL.Query().Get("startDate"), r.URL.Query().Get("endDate")
	if start == "" || end == "" {
		return time.Time{}, time.Time{}, errMissingDates
	}

	from, err := parseDate(start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	to, err := parseDate(end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	return from, to, nil
}

// decodeBody decodes a json request body into v. Type mismatches are reported as a
// types.ValidationError naming the offending field.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &types.ValidationError{
			Errors: []types.FieldError{{
				Field:   typeErr.Field,
				Message: fmt.Sprintf("must be of type %s", typeErr.Type.String()),
			}},
		}
	}

	return err
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode response")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(b)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, types.ErrorResponse{Message: message})
}

// writeBadRequest responds with 400 and the field errors of err, if there are any.
func writeBadRequest(w http.ResponseWriter, message string, err error) {
	response := types.ErrorResponse{Message: message}

	var ve *types.ValidationError
	if errors.As(err, &ve) {
		response.Errors = ve.Errors
	} else if err != nil {
		response.Errors = []types.FieldError{{Field: "body", Message: "must be a valid json object"}}
	}

	writeJSON(w, http.StatusBadRequest, response)
}

func isValidationError(err error) bool {
	var ve *types.ValidationError
	return errors.As(err, &ve)
}

func acceptsGeoJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/geo+json")
}
