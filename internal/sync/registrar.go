package sync

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/trace"

	"github.com/thoth-station/pulp-repository-sync-job/internal/metrics"
	"github.com/thoth-station/pulp-repository-sync-job/internal/otel"
	"github.com/thoth-station/pulp-repository-sync-job/internal/pulp"
	"github.com/thoth-station/pulp-repository-sync-job/internal/store"
)

// RegistrarTracerName is the name used for the registrar tracer
const RegistrarTracerName = "github.com/thoth-station/pulp-repository-sync-job/sync"

// Options controls a sync pass
type Options struct {
	// DisableIndex registers new indexes as disabled
	DisableIndex bool
}

// Result contains the counts of a sync pass
type Result struct {
	// Discovered is the number of simple index URLs listed by the instance
	Discovered int
	// Known is the number of discovered URLs already present in the store
	Known int
	// Registered is the number of indexes created in the store
	Registered int
	// SkippedByStore is the number of registrations the store ignored
	// because the URL was already present
	SkippedByStore int
}

// RegistrarOption configures a Registrar
type RegistrarOption func(*Registrar)

// WithLogger sets the logger. Logging is discarded when unset.
func WithLogger(logger *slog.Logger) RegistrarOption {
	return func(r *Registrar) {
		r.logger = logger
	}
}

// WithMetrics sets the metrics updated at the end of each pass
func WithMetrics(m *metrics.Metrics) RegistrarOption {
	return func(r *Registrar) {
		r.metrics = m
	}
}

// WithTracer sets the OpenTelemetry tracer. Tracing is disabled when unset.
func WithTracer(tracer trace.Tracer) RegistrarOption {
	return func(r *Registrar) {
		r.tracer = tracer
	}
}

// Registrar registers the simple indexes of a Pulp instance in the store
type Registrar struct {
	store   store.Store
	lister  pulp.Lister
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// NewRegistrar creates a registrar. The store must already be connected.
func NewRegistrar(st store.Store, lister pulp.Lister, opts ...RegistrarOption) *Registrar {
	r := &Registrar{
		store:  st,
		lister: lister,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	return r
}

// Run executes one sync pass. On failure it returns the counts reached so far
// together with the error.
func (r *Registrar) Run(ctx context.Context, opts Options) (*Result, error) {
	ctx, span := otel.StartSpan(ctx, r.tracer, "sync.Run",
		trace.WithAttributes(otel.AttrIndexEnabled.Bool(!opts.DisableIndex)),
	)
	defer span.End()

	result := &Result{}
	defer r.observe(result)

	known, err := r.knownIndexes(ctx)
	if err != nil {
		otel.RecordError(span, err)
		return result, fmt.Errorf("failed to load known python package indexes: %w", err)
	}

	for url, err := range r.lister.SimpleIndexes(ctx) {
		if err != nil {
			otel.RecordError(span, err)
			return result, fmt.Errorf("failed to list pulp simple indexes: %w", err)
		}
		result.Discovered++

		if _, ok := known[url]; ok {
			r.logger.InfoContext(ctx, "Python package index already known, skipping", "url", url)
			result.Known++
			continue
		}

		if err := r.register(ctx, url, opts, result); err != nil {
			otel.RecordError(span, err)
			return result, err
		}
	}

	span.SetAttributes(otel.AttrResultCount.Int(result.Registered))
	r.logger.InfoContext(ctx, "Sync pass completed",
		"discovered", result.Discovered,
		"known", result.Known,
		"registered", result.Registered,
		"skippedByStore", result.SkippedByStore)
	return result, nil
}

// knownIndexes loads the set of index URLs present in the store
func (r *Registrar) knownIndexes(ctx context.Context) (map[string]struct{}, error) {
	indexes, err := r.store.GetPythonPackageIndexAll(ctx)
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(indexes))
	for _, idx := range indexes {
		known[idx.URL] = struct{}{}
	}

	if r.logger.Enabled(ctx, slog.LevelDebug) {
		urls := make([]string, 0, len(known))
		for url := range known {
			urls = append(urls, url)
		}
		slices.Sort(urls)
		r.logger.DebugContext(ctx, "Loaded known python package indexes", "count", len(urls), "urls", urls)
	}
	return known, nil
}

func (r *Registrar) register(ctx context.Context, url string, opts Options, result *Result) error {
	enabled := !opts.DisableIndex
	r.logger.InfoContext(ctx, "Registering new python package index", "url", url, "enabled", enabled)

	created, err := r.store.RegisterPythonPackageIndex(ctx, store.RegisterParams{
		URL:             url,
		WarehouseAPIURL: nil,
		VerifySSL:       true,
		Enabled:         enabled,
	})
	if err != nil {
		return fmt.Errorf("failed to register python package index %s: %w", url, err)
	}

	if !created {
		r.logger.InfoContext(ctx, "Python package index already present in the store", "url", url)
		result.SkippedByStore++
		return nil
	}
	result.Registered++
	return nil
}

func (r *Registrar) observe(result *Result) {
	if r.metrics == nil {
		return
	}
	r.metrics.Observe(result.Discovered, result.Known, result.Registered, result.SkippedByStore)
}
