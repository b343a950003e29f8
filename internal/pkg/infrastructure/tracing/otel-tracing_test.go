package tracing

import (
	"context"
	"testing"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/matryer/is"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestTraceIDIsAddedToLogger(t *testing.T) {
	is := is.New(t)

	provider := sdktrace.NewTracerProvider()
	ctx, span := provider.Tracer("test").Start(context.Background(), "span")
	defer span.End()

	traceID, ctx, _ := AddTraceIDToLoggerAndStoreInContext(span, zerolog.Nop(), ctx)
	is.Equal(traceID, span.SpanContext().TraceID().String())

	logger := logging.GetFromContext(ctx)
	is.True(logger.GetLevel() == zerolog.Disabled)
}

func TestInitWithoutEndpoint(t *testing.T) {
	is := is.New(t)
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	cleanup, err := Init(context.Background(), zerolog.Nop(), "device-monitor", "test")
	is.NoErr(err)
	cleanup()
}
