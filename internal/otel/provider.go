// Package otel provides OpenTelemetry tracer provider initialization and
// shutdown.
package otel

import (
	"context"
	"fmt"
	"time"

	"tlstap/internal/config"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// InitProvider builds a tracer provider exporting over OTLP/HTTP.
// extraAttrs describe the traced target and land on the resource alongside
// OTEL_RESOURCE_ATTRIBUTES. The HTTP client honors HTTP_PROXY/HTTPS_PROXY
// through the standard transport.
func InitProvider(cfg *config.OTELConfig, extraAttrs ...attribute.KeyValue) (*sdktrace.TracerProvider, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.GetEndpoint()),
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}
	attrs = append(attrs, cfg.ParseResourceAttributes()...)
	attrs = append(attrs, extraAttrs...)

	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	return tp, nil
}

// ShutdownProvider flushes pending spans and releases the exporter.
func ShutdownProvider(tp *sdktrace.TracerProvider, ctx context.Context) error {
	if err := tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down tracer provider: %w", err)
	}
	return nil
}
