// Package tracing installs the OpenTelemetry tracer provider that the HTTP
// and SQL instrumentation report to.
package tracing

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"recordstore/internal/config"
)

const ServiceName = "recordstore"

// Setup exports spans over OTLP/HTTP and makes the provider global. An empty
// endpoint leaves the exporter on the OTEL_EXPORTER_OTLP_* environment
// defaults. The caller shuts the provider down to flush pending spans.
func Setup(ctx context.Context, cfg config.ServerConfig, version string) (*sdktrace.TracerProvider, error) {
	var opts []otlptracehttp.Option
	if cfg.TracingEndpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpointURL(cfg.TracingEndpoint))
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	tp := NewProvider(version, sdktrace.WithBatcher(exporter))
	Install(tp)

	log.Info().Str("endpoint", cfg.TracingEndpoint).Msg("Tracing enabled")
	return tp, nil
}

// NewProvider builds a provider tagged with the service name and version.
func NewProvider(version string, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	res := sdkresource.NewSchemaless(
		attribute.String("service.name", ServiceName),
		attribute.String("service.version", version),
	)
	return sdktrace.NewTracerProvider(append([]sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}, opts...)...)
}

// Install makes tp the global provider and propagates W3C trace context and
// baggage.
func Install(tp *sdktrace.TracerProvider) {
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
}
