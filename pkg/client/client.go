package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/diwise/device-monitor/pkg/types"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/oauth2"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrBadRequest   = errors.New("bad request")
)

type DashboardClient interface {
	GetDevices(ctx context.Context) ([]types.Device, error)
	GetDevice(ctx context.Context, deviceID uint) (types.Device, error)
	CreateDevice(ctx context.Context, device types.NewDevice) (types.Device, error)
	SendCommand(ctx context.Context, deviceID uint, commandType string) (types.Command, error)
	GetCommands(ctx context.Context, deviceID uint, limit int) ([]types.Command, error)
}

type dashboardClient struct {
	url        string
	httpClient http.Client
}

var tracer = otel.Tracer("device-monitor-client")

// New returns a client that authenticates every request with the given session token.
func New(ctx context.Context, dashboardURL, token string) (DashboardClient, error) {
	if _, err := url.Parse(dashboardURL); err != nil {
		return nil, fmt.Errorf("invalid dashboard url: %w", err)
	}

	if token == "" {
		return nil, fmt.Errorf("a session token is required")
	}

	c := &dashboardClient{
		url: strings.TrimSuffix(dashboardURL, "/"),
		httpClient: http.Client{
			Transport: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
				Base:   otelhttp.NewTransport(http.DefaultTransport),
			},
		},
	}

	return c, nil
}

func (c *dashboardClient) GetDevices(ctx context.Context) ([]types.Device, error) {
	var err error
	ctx, span := tracer.Start(ctx, "get-devices")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	devices := []types.Device{}
	err = c.do(ctx, http.MethodGet, "/api/devices", nil, http.StatusOK, &devices)

	return devices, err
}

func (c *dashboardClient) GetDevice(ctx context.Context, deviceID uint) (types.Device, error) {
	var err error
	ctx, span := tracer.Start(ctx, "get-device")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	device := types.Device{}
	err = c.do(ctx, http.MethodGet, fmt.Sprintf("/api/devices/%d", deviceID), nil, http.StatusOK, &device)

	return device, err
}

func (c *dashboardClient) CreateDevice(ctx context.Context, device types.NewDevice) (types.Device, error) {
	var err error
	ctx, span := tracer.Start(ctx, "create-device")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	created := types.Device{}
	err = c.do(ctx, http.MethodPost, "/api/devices", device, http.StatusCreated, &created)

	return created, err
}

func (c *dashboardClient) SendCommand(ctx context.Context, deviceID uint, commandType string) (types.Command, error) {
	var err error
	ctx, span := tracer.Start(ctx, "send-command")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	log := logging.GetFromContext(ctx)
	log.Debug().Msgf("sending %s command to device %d", commandType, deviceID)

	command := types.Command{}
	path := fmt.Sprintf("/api/devices/%d/commands", deviceID)
	err = c.do(ctx, http.MethodPost, path, types.NewCommand{CommandType: commandType}, http.StatusCreated, &command)

	return command, err
}

// GetCommands returns the newest commands of a device. A negative limit returns all of them.
func (c *dashboardClient) GetCommands(ctx context.Context, deviceID uint, limit int) ([]types.Command, error) {
	var err error
	ctx, span := tracer.Start(ctx, "get-commands")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	path := fmt.Sprintf("/api/devices/%d/commands", deviceID)
	if limit >= 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}

	commands := []types.Command{}
	err = c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &commands)

	return commands, err
}

func (c *dashboardClient) do(ctx context.Context, method, path string, body any, expectedStatus int, result any) error {
	var reader io.Reader

	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != expectedStatus {
		return statusError(resp.StatusCode, respBody)
	}

	err = json.Unmarshal(respBody, result)
	if err != nil {
		return fmt.Errorf("failed to unmarshal response body: %w", err)
	}

	return nil
}

func statusError(code int, body []byte) error {
	response := types.ErrorResponse{}
	_ = json.Unmarshal(body, &response)

	var err error
	switch code {
	case http.StatusUnauthorized:
		err = ErrUnauthorized
	case http.StatusForbidden:
		err = ErrForbidden
	case http.StatusNotFound:
		err = ErrNotFound
	case http.StatusBadRequest:
		err = ErrBadRequest
	default:
		err = fmt.Errorf("request failed with status code %d", code)
	}

	if response.Message != "" {
		return fmt.Errorf("%w: %s", err, response.Message)
	}

	return err
}
