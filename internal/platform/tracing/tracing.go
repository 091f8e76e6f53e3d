// Package tracing configures OpenTelemetry and wraps span handling for the
// workflow services.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"landledger/internal/platform/config"
	dErrors "landledger/pkg/domain-errors"
)

const instrumentationName = "landledger"

// Setup installs a global tracer provider exporting over OTLP/HTTP. When no
// endpoint is configured it installs nothing and returns a no-op shutdown.
func Setup(ctx context.Context, cfg config.OTelConfig, serviceName string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled || cfg.Endpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return noop, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown, nil
}

// Start opens a span named op on the global tracer.
func Start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, op, trace.WithAttributes(attrs...))
}

// End records err on span and ends it. Client errors (validation, state)
// are recorded as events; only internal and integrity errors mark the span
// as failed.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		code, _ := dErrors.CodeOf(err)
		if code == "" || code == dErrors.CodeInternal || code == dErrors.CodeIntegrityViolation {
			span.SetStatus(codes.Error, string(code))
		}
	}
	span.End()
}
