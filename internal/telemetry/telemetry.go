// Package telemetry configures OpenTelemetry tracing for the CLI and server.
package telemetry

import (
	"context"
	"fmt"
	"io"

	"github.com/mohammad-safakhou/conflictcast/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Telemetry owns the tracer provider.
type Telemetry struct {
	tp *sdktrace.TracerProvider
}

// Options configures telemetry initialization.
type Options struct {
	ServiceName    string
	ServiceVersion string
	// Stdout receives spans when telemetry.stdout is set.
	Stdout io.Writer
}

// Setup installs a global tracer provider. With tracing disabled the global
// no-op provider stays in place.
func Setup(ctx context.Context, cfg config.TelemetryConfig, opts Options) (*Telemetry, error) {
	if !cfg.Tracing {
		return &Telemetry{}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(opts.ServiceName),
			attribute.String("service.namespace", "conflictcast"),
			attribute.String("service.version", opts.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("resource init: %w", err)
	}

	var tpOpts []sdktrace.TracerProviderOption
	tpOpts = append(tpOpts, sdktrace.WithResource(res))

	if cfg.Stdout {
		w := opts.Stdout
		if w == nil {
			w = io.Discard
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("stdout exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithSyncer(exp))
	}
	if cfg.OTLPEndpoint != "" {
		exp, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("otlp init: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)
	return &Telemetry{tp: tp}, nil
}

// Shutdown flushes pending spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.tp == nil {
		return nil
	}
	if err := t.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("trace shutdown: %w", err)
	}
	return nil
}
