package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/thoth-station/pulp-repository-sync-job/internal/config"
	"github.com/thoth-station/pulp-repository-sync-job/internal/otel"
)

// StoreTracerName is the name used for the store tracer
const StoreTracerName = "github.com/thoth-station/pulp-repository-sync-job/store"

const (
	listPythonPackageIndexesQuery = `
SELECT id, url, warehouse_api_url, verify_ssl, enabled
FROM python_package_index
ORDER BY id`

	insertPythonPackageIndexQuery = `
INSERT INTO python_package_index (url, warehouse_api_url, verify_ssl, enabled)
VALUES ($1, $2, $3, $4)
ON CONFLICT (url) DO NOTHING
RETURNING id`
)

// integrityConstraintViolationClass is the SQLSTATE class of integrity constraint violations
const integrityConstraintViolationClass = "23"

// Option is a functional option for configuring the Postgres store
type Option func(*options)

type options struct {
	tracer trace.Tracer
	logger *slog.Logger
}

// WithTracer sets the OpenTelemetry tracer. If not set, tracing is disabled.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithLogger sets the logger. Logging is discarded when unset.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// PostgresStore implements Store on top of a single-connection pgx pool
type PostgresStore struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *slog.Logger
}

var _ Store = (*PostgresStore)(nil)

// Connect opens the knowledge graph database described by cfg and verifies
// the connection.
func Connect(ctx context.Context, cfg *config.DatabaseConfig, opts ...Option) (*PostgresStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration is required")
	}

	connString, err := cfg.GetConnectionString()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection string: %w", err)
	}

	s, err := Open(ctx, connString, opts...)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Database connection established", "database", cfg.String())
	return s, nil
}

// Open opens the database at connString and verifies the connection
func Open(ctx context.Context, connString string, opts ...Option) (*PostgresStore, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database connection string: %w", err)
	}
	// The job is strictly sequential; one connection is all it ever uses.
	poolConfig.MaxConns = 1
	poolConfig.MinConns = 0

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{
		pool:   pool,
		tracer: o.tracer,
		logger: o.logger,
	}, nil
}

// startSpan starts a database span carrying the db.system attribute
func (s *PostgresStore) startSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	opts = append([]trace.SpanStartOption{trace.WithAttributes(semconv.DBSystemPostgreSQL)}, opts...)
	return otel.StartSpan(ctx, s.tracer, name, opts...)
}

// GetPythonPackageIndexAll implements Store
func (s *PostgresStore) GetPythonPackageIndexAll(ctx context.Context) ([]PythonPackageIndex, error) {
	ctx, span := s.startSpan(ctx, "store.GetPythonPackageIndexAll")
	defer span.End()

	rows, err := s.pool.Query(ctx, listPythonPackageIndexesQuery)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list python package indexes: %w", err)
	}

	indexes, err := pgx.CollectRows(rows, pgx.RowToStructByName[PythonPackageIndex])
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to read python package indexes: %w", err)
	}

	span.SetAttributes(otel.AttrResultCount.Int(len(indexes)))
	s.logger.DebugContext(ctx, "Listed python package indexes", "count", len(indexes))
	return indexes, nil
}

// RegisterPythonPackageIndex implements Store
func (s *PostgresStore) RegisterPythonPackageIndex(ctx context.Context, params RegisterParams) (bool, error) {
	ctx, span := s.startSpan(ctx, "store.RegisterPythonPackageIndex",
		trace.WithAttributes(
			otel.AttrIndexURL.String(params.URL),
			otel.AttrIndexEnabled.Bool(params.Enabled),
		),
	)
	defer span.End()

	if params.URL == "" {
		err := fmt.Errorf("%w: python package index URL is required", ErrConstraintViolation)
		otel.RecordError(span, err)
		return false, err
	}

	var id int64
	err := s.pool.QueryRow(ctx, insertPythonPackageIndexQuery,
		params.URL, params.WarehouseAPIURL, params.VerifySSL, params.Enabled,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		s.logger.DebugContext(ctx, "Python package index already registered", "url", params.URL)
		return false, nil
	}
	if err != nil {
		otel.RecordError(span, err)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 && pgErr.Code[:2] == integrityConstraintViolationClass {
			return false, fmt.Errorf("%w: %s: %w", ErrConstraintViolation, params.URL, err)
		}
		return false, fmt.Errorf("failed to register python package index %s: %w", params.URL, err)
	}

	s.logger.DebugContext(ctx, "Registered python package index", "url", params.URL, "id", id)
	return true, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.logger.Info("Closing database connection")
		s.pool.Close()
	}
}
