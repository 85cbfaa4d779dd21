// Package telemetry sets up OpenTelemetry tracing for a sync run.
// Spans are exported over OTLP/HTTP when an endpoint is configured and
// dropped otherwise.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// DefaultServiceName is the default service name for telemetry
const DefaultServiceName = "pulp-repository-sync-job"

// Telemetry owns the tracer provider of the run
type Telemetry struct {
	tracerProvider trace.TracerProvider
	logger         *slog.Logger
}

// New creates the telemetry of the run. An empty endpoint disables tracing.
// The caller is responsible for calling Shutdown when the run ends.
func New(ctx context.Context, endpoint string, logger *slog.Logger, opts ...TracerProviderOption) (*Telemetry, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if endpoint == "" {
		logger.Debug("Tracing disabled, using no-op tracer provider")
		return &Telemetry{tracerProvider: noop.NewTracerProvider(), logger: logger}, nil
	}

	cfg := &tracerProviderConfig{
		serviceName:    DefaultServiceName,
		serviceVersion: "unknown",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	tp, err := newTracerProvider(ctx, endpoint, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer provider: %w", err)
	}

	logger.Info("Tracing initialized",
		"endpoint", endpoint,
		"service_name", cfg.serviceName,
		"service_version", cfg.serviceVersion,
	)
	return &Telemetry{tracerProvider: tp, logger: logger}, nil
}

// TracerProvider returns the configured tracer provider
func (t *Telemetry) TracerProvider() trace.TracerProvider {
	return t.tracerProvider
}

// Tracer returns a named tracer, or nil when tracing is disabled so callers
// skip span creation entirely
func (t *Telemetry) Tracer(name string) trace.Tracer {
	if _, ok := t.tracerProvider.(*sdktrace.TracerProvider); !ok {
		return nil
	}
	return t.tracerProvider.Tracer(name)
}

// Shutdown flushes pending spans. It is safe to call multiple times.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	tp, ok := t.tracerProvider.(*sdktrace.TracerProvider)
	if !ok {
		return nil
	}
	if err := tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}
	t.logger.Debug("Tracer provider shutdown complete")
	return nil
}
