// Package telemetry installs the OpenTelemetry tracer provider.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/dues-dev/dues/internal/buildinfo"
	"github.com/dues-dev/dues/internal/config"
)

// Shutdown flushes and stops the provider installed by Setup.
type Shutdown func(context.Context) error

func noop(context.Context) error { return nil }

// Setup exports spans over OTLP/HTTP when cfg names an endpoint. Without
// one it leaves the global no-op provider in place.
func Setup(ctx context.Context, cfg config.TelemetryConfig) (Shutdown, error) {
	if cfg.Endpoint == "" {
		return noop, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(Resource(cfg)),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Resource describes this process to the collector.
func Resource(cfg config.TelemetryConfig) *resource.Resource {
	name := cfg.ServiceName
	if name == "" {
		name = "dues"
	}
	return resource.NewSchemaless(
		attribute.String("service.name", name),
		attribute.String("service.version", buildinfo.Version),
	)
}
