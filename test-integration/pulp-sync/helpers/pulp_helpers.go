package helpers

import (
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/thoth-station/pulp-repository-sync-job/internal/pulp"
)

// PulpStub serves a configurable distribution listing over TLS
type PulpStub struct {
	server   *httptest.Server
	username string
	password string

	mu       sync.Mutex
	status   int
	body     []byte
	requests int
}

// NewPulpStub starts a Pulp stub accepting the given credentials
func NewPulpStub(username, password string) *PulpStub {
	s := &PulpStub{username: username, password: password, status: http.StatusOK, body: DistributionsBody()}
	s.server = httptest.NewTLSServer(http.HandlerFunc(s.handle))
	return s
}

func (s *PulpStub) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++

	user, pass, ok := r.BasicAuth()
	if !ok || user != s.username || pass != s.password {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if r.URL.Path != pulp.DistributionsPath {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if s.status != http.StatusOK {
		w.WriteHeader(s.status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(s.body)
}

// Serve makes the stub list distributions
func (s *PulpStub) Serve(distributions ...Distribution) {
	s.ServeBody(DistributionsBody(distributions...))
}

// ServeBody makes the stub answer with a raw body
func (s *PulpStub) ServeBody(body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = http.StatusOK
	s.body = body
}

// Fail makes the stub answer every listing with status
func (s *PulpStub) Fail(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Requests returns the number of requests received
func (s *PulpStub) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// Host returns the host:port of the stub
func (s *PulpStub) Host() string {
	return s.server.Listener.Addr().String()
}

// IndexURL returns the simple index URL the job derives for base
func (s *PulpStub) IndexURL(base string) string {
	return pulp.SimpleIndexURL(s.Host(), base)
}

// NewLister creates a lister trusting the stub certificate
func (s *PulpStub) NewLister(username, password string) (pulp.Lister, error) {
	return pulp.NewLister(s.Host(), username, password, pulp.WithTransport(s.server.Client().Transport))
}

// Close stops the stub
func (s *PulpStub) Close() {
	s.server.Close()
}
