package pulp

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/trace"

	"github.com/thoth-station/pulp-repository-sync-job/internal/httpclient"
	"github.com/thoth-station/pulp-repository-sync-job/internal/otel"
)

// DistributionsPath is the Pulp API path listing pulp-python distributions
const DistributionsPath = "/pulp/api/v3/distributions/python/pypi/"

// ListerTracerName is the name used for the lister tracer
const ListerTracerName = "github.com/thoth-station/pulp-repository-sync-job/pulp"

var (
	// ErrMalformedResponse is returned when the distribution listing lacks an expected field
	ErrMalformedResponse = errors.New("malformed distribution listing")

	// ErrSequenceConsumed is returned when a simple index sequence is ranged more than once
	ErrSequenceConsumed = errors.New("simple index sequence already consumed")
)

// Lister enumerates the simple index URLs of a Pulp instance
//
//go:generate mockgen -destination=mocks/mock_lister.go -package=mocks -source=lister.go Lister
type Lister interface {
	// SimpleIndexes returns a lazy, non-restartable sequence of simple index URLs
	// in the order returned by the instance. The listing request is issued when
	// the sequence is first ranged. Iteration stops at the first error.
	SimpleIndexes(ctx context.Context) iter.Seq2[string, error]
}

// Option configures the lister
type Option func(*listerOptions)

type listerOptions struct {
	timeout   time.Duration
	userAgent string
	transport http.RoundTripper
	logger    *slog.Logger
	tracer    trace.Tracer
}

// WithTimeout sets the timeout of the listing request
func WithTimeout(timeout time.Duration) Option {
	return func(o *listerOptions) {
		o.timeout = timeout
	}
}

// WithUserAgent sets the User-Agent sent to the instance
func WithUserAgent(userAgent string) Option {
	return func(o *listerOptions) {
		o.userAgent = userAgent
	}
}

// WithTransport sets the HTTP transport used for the session
func WithTransport(rt http.RoundTripper) Option {
	return func(o *listerOptions) {
		o.transport = rt
	}
}

// WithLogger sets the logger. Logging is discarded when unset.
func WithLogger(logger *slog.Logger) Option {
	return func(o *listerOptions) {
		o.logger = logger
	}
}

// WithTracer sets the OpenTelemetry tracer. Tracing is disabled when unset.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *listerOptions) {
		o.tracer = tracer
	}
}

type httpLister struct {
	host   string
	client httpclient.Client
	logger *slog.Logger
	tracer trace.Tracer
}

var _ Lister = (*httpLister)(nil)

// NewLister creates a lister for the given Pulp instance host (host or host:port,
// without scheme or path). Every request authenticates with the given credentials.
func NewLister(host, username, password string, opts ...Option) (Lister, error) {
	if host == "" {
		return nil, fmt.Errorf("pulp instance host is required")
	}
	if strings.Contains(host, "/") {
		return nil, fmt.Errorf("pulp instance must be a host without scheme or path, got %q", host)
	}

	o := &listerOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	clientOpts := []httpclient.Option{
		httpclient.WithBasicAuth(username, password),
		httpclient.WithUserAgent(o.userAgent),
	}
	if o.transport != nil {
		clientOpts = append(clientOpts, httpclient.WithTransport(o.transport))
	}

	return &httpLister{
		host:   host,
		client: httpclient.NewDefaultClient(o.timeout, clientOpts...),
		logger: o.logger,
		tracer: o.tracer,
	}, nil
}

// SimpleIndexes implements Lister
func (l *httpLister) SimpleIndexes(ctx context.Context) iter.Seq2[string, error] {
	consumed := false
	return func(yield func(string, error) bool) {
		if consumed {
			yield("", ErrSequenceConsumed)
			return
		}
		consumed = true

		results, err := l.listDistributions(ctx)
		if err != nil {
			yield("", err)
			return
		}

		for i, descriptor := range results {
			baseURL := descriptor.Get("base_url")
			if baseURL.Type != gjson.String {
				yield("", fmt.Errorf("%w: results[%d] has no base_url", ErrMalformedResponse, i))
				return
			}
			if !yield(SimpleIndexURL(l.host, baseURL.String()), nil) {
				return
			}
		}
	}
}

// listDistributions fetches the distribution listing and returns its results array
func (l *httpLister) listDistributions(ctx context.Context) ([]gjson.Result, error) {
	endpoint := DistributionsURL(l.host)

	ctx, span := otel.StartSpan(ctx, l.tracer, "pulp.ListDistributions",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(otel.AttrPulpInstance.String(l.host)),
	)
	defer span.End()

	l.logger.DebugContext(ctx, "Listing pulp-python distributions", "url", endpoint)

	body, err := l.client.Get(ctx, endpoint)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list pulp-python distributions: %w", err)
	}

	if !gjson.ValidBytes(body) {
		err := fmt.Errorf("%w: body is not valid JSON", ErrMalformedResponse)
		otel.RecordError(span, err)
		return nil, err
	}

	results := gjson.GetBytes(body, "results")
	if !results.IsArray() {
		err := fmt.Errorf("%w: missing results", ErrMalformedResponse)
		otel.RecordError(span, err)
		return nil, err
	}

	descriptors := results.Array()
	span.SetAttributes(otel.AttrResultCount.Int(len(descriptors)))
	l.logger.DebugContext(ctx, "Listed pulp-python distributions", "count", len(descriptors))
	return descriptors, nil
}

// DistributionsURL returns the distribution listing URL of the given instance
func DistributionsURL(host string) string {
	return "https://" + host + DistributionsPath
}

// SimpleIndexPath appends the simple segment to baseURL with exactly one separating slash
func SimpleIndexPath(baseURL string) string {
	if strings.HasSuffix(baseURL, "/") {
		return baseURL + "simple"
	}
	return baseURL + "/simple"
}

// SimpleIndexURL builds the simple index URL of a distribution. The path derived
// from baseURL is always placed under the instance host.
func SimpleIndexURL(host, baseURL string) string {
	path := SimpleIndexPath(baseURL)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "https://" + host + path
}
