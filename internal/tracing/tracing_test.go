package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"recordstore/internal/config"
)

func restoreGlobals(t *testing.T) {
	t.Helper()
	tp, prop := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
	})
}

func TestSetupInstallsRecordingProvider(t *testing.T) {
	restoreGlobals(t)
	ctx := context.Background()

	cfg := config.Default().Server
	cfg.Tracing = true
	cfg.TracingEndpoint = "http://127.0.0.1:4318"

	tp, err := Setup(ctx, cfg, "1.2.3")
	require.NoError(t, err)
	assert.Same(t, tp, otel.GetTracerProvider())
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")

	_, span := otel.Tracer("test").Start(ctx, "op")
	assert.True(t, span.IsRecording())
	assert.True(t, span.SpanContext().IsValid())

	require.NoError(t, tp.Shutdown(ctx))
}

func TestProviderResource(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := NewProvider("1.2.3", sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	attrs := spans[0].Resource().Attributes()
	assert.Contains(t, attrs, attribute.String("service.name", ServiceName))
	assert.Contains(t, attrs, attribute.String("service.version", "1.2.3"))
}
