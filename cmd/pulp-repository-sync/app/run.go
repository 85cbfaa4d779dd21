package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/thoth-station/pulp-repository-sync-job/internal/config"
	"github.com/thoth-station/pulp-repository-sync-job/internal/metrics"
	"github.com/thoth-station/pulp-repository-sync-job/internal/otel"
	"github.com/thoth-station/pulp-repository-sync-job/internal/pulp"
	"github.com/thoth-station/pulp-repository-sync-job/internal/store"
	pkgsync "github.com/thoth-station/pulp-repository-sync-job/internal/sync"
	"github.com/thoth-station/pulp-repository-sync-job/internal/telemetry"
	"github.com/thoth-station/pulp-repository-sync-job/internal/versions"
)

const (
	// JobTracerName is the name used for the job tracer
	JobTracerName = "github.com/thoth-station/pulp-repository-sync-job"

	shutdownTimeout = 10 * time.Second
)

// runner runs a sync pass. Its constructors are replaced in tests.
type runner struct {
	logger       *slog.Logger
	connectStore func(ctx context.Context, cfg *config.DatabaseConfig, opts ...store.Option) (store.Store, error)
	newLister    func(host, username, password string, opts ...pulp.Option) (pulp.Lister, error)
	now          func() time.Time
}

func newRunner(logger *slog.Logger) *runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &runner{
		logger: logger,
		connectStore: func(ctx context.Context, cfg *config.DatabaseConfig, opts ...store.Option) (store.Store, error) {
			return store.Connect(ctx, cfg, opts...)
		},
		newLister: pulp.NewLister,
		now:       time.Now,
	}
}

func (r *runner) run(ctx context.Context, cfg *config.Config) error {
	info := versions.GetVersionInfo()
	r.logger.InfoContext(ctx, "Starting pulp-repository-sync-job", "version", info.Component)

	tel, err := telemetry.New(ctx, cfg.TracingEndpoint, r.logger,
		telemetry.WithServiceVersion(info.Version),
		telemetry.WithPulpInstance(cfg.PulpInstance),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("Failed to flush traces", "error", err)
		}
	}()

	ctx, span := otel.StartSpan(ctx, tel.Tracer(JobTracerName), "pulp-repository-sync",
		trace.WithAttributes(otel.AttrPulpInstance.String(cfg.PulpInstance)),
	)
	defer span.End()

	m := metrics.New(cfg.PulpInstance)
	if cfg.MetricsPushgateway != "" {
		defer r.pushMetrics(ctx, m, cfg.MetricsPushgateway)
	}

	userAgent := fmt.Sprintf("pulp-repository-sync-job/%s", info.Version)
	if err := r.sync(ctx, cfg, tel, m, userAgent); err != nil {
		otel.RecordError(span, err)
		return err
	}
	return nil
}

func (r *runner) sync(
	ctx context.Context, cfg *config.Config, tel *telemetry.Telemetry, m *metrics.Metrics, userAgent string,
) error {
	start := r.now()

	st, err := r.connectStore(ctx, cfg.Database,
		store.WithLogger(r.logger),
		store.WithTracer(tel.Tracer(store.StoreTracerName)),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to the knowledge graph: %w", err)
	}
	defer st.Close()

	listerOpts := []pulp.Option{
		pulp.WithTimeout(cfg.HTTPTimeout),
		pulp.WithUserAgent(userAgent),
		pulp.WithLogger(r.logger),
	}
	if tracer := tel.Tracer(pulp.ListerTracerName); tracer != nil {
		listerOpts = append(listerOpts,
			pulp.WithTracer(tracer),
			pulp.WithTransport(otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(tel.TracerProvider()),
			)),
		)
	}

	lister, err := r.newLister(cfg.PulpInstance, cfg.PulpUsername, cfg.PulpPassword, listerOpts...)
	if err != nil {
		return fmt.Errorf("failed to create pulp lister: %w", err)
	}

	registrar := pkgsync.NewRegistrar(st, lister,
		pkgsync.WithLogger(r.logger),
		pkgsync.WithMetrics(m),
		pkgsync.WithTracer(tel.Tracer(pkgsync.RegistrarTracerName)),
	)

	result, err := registrar.Run(ctx, pkgsync.Options{DisableIndex: cfg.DisableIndex})
	if err != nil {
		return fmt.Errorf("sync of %s failed: %w", cfg.PulpInstance, err)
	}

	end := r.now()
	m.MarkSuccess(end, end.Sub(start))
	r.logger.InfoContext(ctx, "pulp-repository-sync-job finished",
		"pulpInstance", cfg.PulpInstance,
		"registered", result.Registered,
		"duration", end.Sub(start).String())
	return nil
}

// pushMetrics pushes the run metrics. A failed push only logs a warning.
func (r *runner) pushMetrics(ctx context.Context, m *metrics.Metrics, url string) {
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := m.Push(pushCtx, url); err != nil {
		r.logger.WarnContext(ctx, "Failed to push metrics", "error", err)
		return
	}
	r.logger.DebugContext(ctx, "Pushed metrics", "pushgateway", url)
}
