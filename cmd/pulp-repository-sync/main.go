// Package main is the entry point for the pulp repository sync job.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/viper"
	"github.com/stacklok/toolhive-core/logging"
	"go.opentelemetry.io/otel/trace"

	"github.com/thoth-station/pulp-repository-sync-job/cmd/pulp-repository-sync/app"
	"github.com/thoth-station/pulp-repository-sync-job/internal/config"
)

// getLogLevel parses THOTH_PULP_REPOSITORIES_SYNC_LOG_LEVEL and returns the corresponding slog.Level.
// Falls back to LOG_LEVEL, then to slog.LevelInfo when neither is set or the value is invalid.
func getLogLevel() slog.Level {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	levelStr := v.GetString("LOG_LEVEL")
	if levelStr == "" {
		levelStr = os.Getenv("LOG_LEVEL")
	}

	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Warn("Invalid LOG_LEVEL, using INFO", "value", levelStr)
		return slog.LevelInfo
	}
}

// traceHandler wraps an slog.Handler to inject the OpenTelemetry trace_id and
// span_id into every record logged within a span.
type traceHandler struct {
	slog.Handler
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		r.AddAttrs(
			slog.String("trace_id", span.SpanContext().TraceID().String()),
			slog.String("span_id", span.SpanContext().SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name)}
}

// newLogger builds the JSON logger shared by every command. The toolhive-core
// handler writes to stderr, which keeps stdout clean for version --format json.
func newLogger(level slog.Level) *slog.Logger {
	baseHandler := logging.NewHandler(logging.WithLevel(level))
	return slog.New(&traceHandler{Handler: baseHandler})
}

func main() {
	logger := newLogger(getLogLevel())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.NewRootCmd(logger).ExecuteContext(ctx); err != nil {
		logger.Error("pulp-repository-sync-job failed", "error", err)
		stop()
		os.Exit(1)
	}
}
