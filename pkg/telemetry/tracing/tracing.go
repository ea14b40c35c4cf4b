// Package tracing builds an OpenTelemetry TracerProvider and offers
// StartProviderSpan for spanning a provider's DoWork/GetResult calls; the
// transport providers in this module do not call it. The teacher repo
// declares the otel SDK and three exporters in its dependency set without
// ever importing them from application code; this package is where that
// dependency actually gets wired in.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Exporter selects which OpenTelemetry span exporter a TracerProvider sends
// finished spans to.
type Exporter string

const (
	ExporterStdout Exporter = "stdout"
	ExporterJaeger Exporter = "jaeger"
	ExporterZipkin Exporter = "zipkin"
)

// Config configures New.
type Config struct {
	// ServiceName identifies this process in exported spans.
	ServiceName string
	// Exporter selects the backend. Defaults to ExporterStdout.
	Exporter Exporter
	// Endpoint is the exporter-specific collector address: a Jaeger
	// collector URL (agent endpoints are not supported), or a Zipkin HTTP
	// endpoint. Unused for
	// ExporterStdout.
	Endpoint string
}

// New builds a TracerProvider per cfg and installs it as the global
// provider, returning a shutdown function the caller must run on exit to
// flush buffered spans.
func New(ctx context.Context, cfg Config) (*sdktrace.TracerProvider, func(context.Context) error, error) {
	exp, err := newExporter(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("tracing: build exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceNameKey.String(cfg.ServiceName),
	))
	if err != nil {
		return nil, nil, fmt.Errorf("tracing: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp, tp.Shutdown, nil
}

func newExporter(cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case ExporterJaeger:
		return jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.Endpoint)))
	case ExporterZipkin:
		return zipkin.New(cfg.Endpoint)
	case ExporterStdout, "":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		return nil, fmt.Errorf("tracing: unknown exporter %q", cfg.Exporter)
	}
}

// Tracer returns the named tracer off the global provider, for callers that
// don't want to carry a *sdktrace.TracerProvider reference around.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartProviderSpan starts a span for one provider call (DoWork or
// GetResult), tagging it with the provider and operation name the way a
// transport provider's Provider implementation would call it.
func StartProviderSpan(ctx context.Context, tracerName, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer(tracerName).Start(ctx, operation, trace.WithAttributes(attrs...))
}
