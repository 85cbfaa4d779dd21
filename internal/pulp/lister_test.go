package pulp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/thoth-station/pulp-repository-sync-job/internal/httpclient"
)

func TestSimpleIndexPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		baseURL  string
		expected string
	}{
		{name: "trailing slash", baseURL: "/pypi/foo/", expected: "/pypi/foo/simple"},
		{name: "no trailing slash", baseURL: "/pypi/foo", expected: "/pypi/foo/simple"},
		{name: "absolute URL with trailing slash", baseURL: "https://pulp.example.com/pypi/foo/", expected: "https://pulp.example.com/pypi/foo/simple"},
		{name: "absolute URL without trailing slash", baseURL: "https://pulp.example.com/pypi/foo", expected: "https://pulp.example.com/pypi/foo/simple"},
		{name: "relative path", baseURL: "pypi/foo", expected: "pypi/foo/simple"},
		{name: "root", baseURL: "/", expected: "/simple"},
		{name: "empty", baseURL: "", expected: "/simple"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, SimpleIndexPath(tt.baseURL))
		})
	}
}

func TestSimpleIndexURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		host     string
		baseURL  string
		expected string
	}{
		{
			name:     "path base_url with trailing slash",
			host:     "pulp.example.com",
			baseURL:  "/pypi/foo/",
			expected: "https://pulp.example.com/pypi/foo/simple",
		},
		{
			name:     "path base_url without trailing slash",
			host:     "pulp.example.com",
			baseURL:  "/pypi/foo",
			expected: "https://pulp.example.com/pypi/foo/simple",
		},
		{
			name:     "relative base_url gets a leading slash",
			host:     "pulp.example.com:8443",
			baseURL:  "pypi/foo/",
			expected: "https://pulp.example.com:8443/pypi/foo/simple",
		},
		{
			name:     "absolute base_url stays a path under the instance host",
			host:     "pulp.example.com",
			baseURL:  "https://content.example.com/pypi/foo/",
			expected: "https://pulp.example.com/https://content.example.com/pypi/foo/simple",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, SimpleIndexURL(tt.host, tt.baseURL))
		})
	}
}

func TestDistributionsURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		"https://pulp.example.com/pulp/api/v3/distributions/python/pypi/",
		DistributionsURL("pulp.example.com"),
	)
}

func TestNewLister_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		host          string
		errorContains string
	}{
		{name: "empty host", host: "", errorContains: "host is required"},
		{name: "host with scheme", host: "https://pulp.example.com", errorContains: "without scheme or path"},
		{name: "host with path", host: "pulp.example.com/pulp", errorContains: "without scheme or path"},
		{name: "bare host", host: "pulp.example.com"},
		{name: "host with port", host: "pulp.example.com:8443"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			lister, err := NewLister(tt.host, "user", "pass")
			if tt.errorContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, lister)
		})
	}
}

// newPulpServer starts a TLS server answering the distribution listing and
// returns a lister pointed at it.
func newPulpServer(t *testing.T, handler http.HandlerFunc, opts ...Option) (Lister, string) {
	t.Helper()

	server := httptest.NewTLSServer(handler)
	server.Config.SetKeepAlivesEnabled(false)
	t.Cleanup(server.Close)

	host := server.Listener.Addr().String()
	opts = append(opts, WithTransport(server.Client().Transport))
	lister, err := NewLister(host, "admin", "password", opts...)
	require.NoError(t, err)
	return lister, host
}

func collect(t *testing.T, lister Lister) ([]string, error) {
	t.Helper()

	var urls []string
	for url, err := range lister.SimpleIndexes(context.Background()) {
		if err != nil {
			return urls, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func TestLister_SimpleIndexes(t *testing.T) {
	t.Parallel()

	var gotPath, gotUser, gotPass string
	lister, host := newPulpServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"count": 3,
			"next": null,
			"results": [
				{"base_url": "/pypi/idx-a/", "name": "idx-a"},
				{"base_url": "/pypi/idx-b", "name": "idx-b"},
				{"base_url": "pypi/idx-c/", "name": "idx-c"}
			]
		}`))
	})

	urls, err := collect(t, lister)

	require.NoError(t, err)
	assert.Equal(t, DistributionsPath, gotPath)
	assert.Equal(t, "admin", gotUser)
	assert.Equal(t, "password", gotPass)
	assert.Equal(t, []string{
		"https://" + host + "/pypi/idx-a/simple",
		"https://" + host + "/pypi/idx-b/simple",
		"https://" + host + "/pypi/idx-c/simple",
	}, urls)
}

func TestLister_SimpleIndexes_EmptyResults(t *testing.T) {
	t.Parallel()

	lister, _ := newPulpServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results": []}`))
	})

	urls, err := collect(t, lister)

	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestLister_SimpleIndexes_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		status        int
		body          string
		expectedURLs  int
		malformed     bool
		httpStatus    int
		errorContains string
	}{
		{
			name:       "unauthorized",
			status:     http.StatusUnauthorized,
			body:       `{"detail": "Invalid username/password."}`,
			httpStatus: http.StatusUnauthorized,
		},
		{
			name:       "server error",
			status:     http.StatusInternalServerError,
			body:       `{"results": [{"base_url": "/pypi/idx-a/"}]}`,
			httpStatus: http.StatusInternalServerError,
		},
		{
			name:          "invalid JSON",
			status:        http.StatusOK,
			body:          `<html>not json</html>`,
			malformed:     true,
			errorContains: "not valid JSON",
		},
		{
			name:          "missing results",
			status:        http.StatusOK,
			body:          `{"count": 0}`,
			malformed:     true,
			errorContains: "missing results",
		},
		{
			name:          "null results",
			status:        http.StatusOK,
			body:          `{"results": null}`,
			malformed:     true,
			errorContains: "missing results",
		},
		{
			name:          "descriptor without base_url stops after preceding entries",
			status:        http.StatusOK,
			body:          `{"results": [{"base_url": "/pypi/idx-a/"}, {"name": "broken"}, {"base_url": "/pypi/idx-c/"}]}`,
			expectedURLs:  1,
			malformed:     true,
			errorContains: "results[1] has no base_url",
		},
		{
			name:          "non-string base_url",
			status:        http.StatusOK,
			body:          `{"results": [{"base_url": 42}]}`,
			malformed:     true,
			errorContains: "results[0] has no base_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			lister, _ := newPulpServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			urls, err := collect(t, lister)

			require.Error(t, err)
			assert.Len(t, urls, tt.expectedURLs)
			if tt.malformed {
				assert.ErrorIs(t, err, ErrMalformedResponse)
				assert.Contains(t, err.Error(), tt.errorContains)
			}
			if tt.httpStatus != 0 {
				var httpErr *httpclient.HTTPError
				require.ErrorAs(t, err, &httpErr)
				assert.Equal(t, tt.httpStatus, httpErr.StatusCode)
			}
		})
	}
}

func TestLister_SimpleIndexes_NotRestartable(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	lister, _ := newPulpServer(t, func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte(`{"results": [{"base_url": "/pypi/idx-a/"}]}`))
	})

	seq := lister.SimpleIndexes(context.Background())

	var first []string
	for url, err := range seq {
		require.NoError(t, err)
		first = append(first, url)
	}
	require.Len(t, first, 1)

	var secondErr error
	for _, err := range seq {
		secondErr = err
	}
	assert.True(t, errors.Is(secondErr, ErrSequenceConsumed))
	assert.Equal(t, int32(1), requests.Load())
}

func TestLister_SimpleIndexes_Lazy(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	lister, _ := newPulpServer(t, func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte(`{"results": [{"base_url": "/pypi/idx-a/"}, {"base_url": "/pypi/idx-b/"}]}`))
	})

	seq := lister.SimpleIndexes(context.Background())
	assert.Equal(t, int32(0), requests.Load(), "no request before the sequence is ranged")

	for _, err := range seq {
		require.NoError(t, err)
		break
	}
	assert.Equal(t, int32(1), requests.Load())
}

func TestLister_SimpleIndexes_Tracing(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	lister, _ := newPulpServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}, WithTracer(tp.Tracer(ListerTracerName)))

	_, err := collect(t, lister)
	require.Error(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "pulp.ListDistributions", spans[0].Name)
	assert.Equal(t, "operation failed", spans[0].Status.Description)
}
