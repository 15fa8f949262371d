// Package observability provides OpenTelemetry tracing for the chart
// generation service.
//
// Spans are exported over OTLP/HTTP to a local collector (Jaeger and the
// OpenTelemetry Collector both accept OTLP on port 4318). Tracing is off by
// default and enabled through configuration:
//
//	observability:
//	  enabled: true
//	  endpoint: "localhost:4318"
//	  environment: "dev"
//	  service_name: "chartgen"
//	  sample_ratio: 1.0
package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config for the OTLP trace pipeline.
type Config struct {
	// Endpoint is the OTLP/HTTP collector endpoint (default: localhost:4318)
	Endpoint string
	// Environment is the deployment environment (dev, staging, prod)
	Environment string
	// ServiceName is the service name attached to every span
	ServiceName string
	// SampleRatio is the fraction of root traces to keep. Values outside
	// (0, 1) mean sample everything.
	SampleRatio float64
}

// DefaultEndpoint is the default OTLP HTTP collector endpoint.
const DefaultEndpoint = "localhost:4318"

// DefaultServiceName identifies this service in trace backends.
const DefaultServiceName = "chartgen"

// Init sets up the global TracerProvider with an OTLP/HTTP exporter.
// The collector endpoint is plain HTTP; the expected deployment pairs the
// service with a local agent or collector that handles auth and forwarding.
//
// Returns a shutdown function that flushes pending spans. If the exporter
// cannot be constructed the service runs untraced rather than failing.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		slog.Warn("failed to create otlp exporter, tracing disabled", "error", err)
		return func(context.Context) error { return nil }, nil
	}

	tp, shutdown, err := newTracerProvider(exporter, cfg)
	if err != nil {
		_ = exporter.Shutdown(ctx)
		return nil, err
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	otel.SetTracerProvider(tp)

	slog.Debug("tracing enabled",
		"endpoint", endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	return shutdown, nil
}

// newTracerProvider wires a TracerProvider to the given exporter.
// Unexported so tests can supply in-memory exporters.
func newTracerProvider(exporter sdktrace.SpanExporter, cfg Config) (*sdktrace.TracerProvider, func(context.Context) error, error) {
	service := cfg.ServiceName
	if service == "" {
		service = DefaultServiceName
	}

	attrs := []attribute.KeyValue{
		attribute.String("service.name", service),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", cfg.Environment))
	}

	res, err := sdkresource.New(context.Background(), sdkresource.WithAttributes(attrs...))
	if err != nil {
		return nil, nil, err
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRatio > 0 && cfg.SampleRatio < 1 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRatio)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)

	return tp, tp.Shutdown, nil
}
