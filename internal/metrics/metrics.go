// Package metrics holds the Prometheus metrics of a sync run and pushes them
// to a Pushgateway once the run is over.
package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// JobName is the Pushgateway job label
const JobName = "pulp-repository-sync-job"

// Metrics holds the metrics of one sync run
type Metrics struct {
	registry    *prometheus.Registry
	successOnce sync.Once

	IndexesDiscovered prometheus.Counter
	IndexesKnown      prometheus.Counter
	IndexesRegistered prometheus.Counter
	IndexesSkipped    prometheus.Counter
	LastSuccess       prometheus.Gauge
	Duration          prometheus.Gauge
}

// New creates the run metrics on a dedicated registry labelled with the Pulp instance
func New(instance string) *Metrics {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"pulp_instance": instance}

	m := &Metrics{
		registry: registry,
		IndexesDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "pulp_repository_sync_indexes_discovered_total",
			Help:        "Python package indexes listed by the Pulp instance",
			ConstLabels: labels,
		}),
		IndexesKnown: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "pulp_repository_sync_indexes_known_total",
			Help:        "Discovered Python package indexes already known to the knowledge graph",
			ConstLabels: labels,
		}),
		IndexesRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "pulp_repository_sync_indexes_registered_total",
			Help:        "Python package indexes registered in the knowledge graph",
			ConstLabels: labels,
		}),
		IndexesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "pulp_repository_sync_indexes_skipped_total",
			Help:        "Registrations the knowledge graph ignored because the index already existed",
			ConstLabels: labels,
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "pulp_repository_sync_last_success_timestamp_seconds",
			Help:        "Unix time of the last successful sync run",
			ConstLabels: labels,
		}),
		Duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "pulp_repository_sync_duration_seconds",
			Help:        "Duration of the last sync run",
			ConstLabels: labels,
		}),
	}

	registry.MustRegister(
		m.IndexesDiscovered,
		m.IndexesKnown,
		m.IndexesRegistered,
		m.IndexesSkipped,
	)
	return m
}

// Registry returns the registry holding the run metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MarkSuccess records a successful run that took d. The success gauges are
// only gathered once a run succeeded, so a failed run pushed to the
// Pushgateway leaves the previous success timestamp in place.
func (m *Metrics) MarkSuccess(now time.Time, d time.Duration) {
	m.LastSuccess.Set(float64(now.Unix()))
	m.Duration.Set(d.Seconds())
	m.successOnce.Do(func() {
		m.registry.MustRegister(m.LastSuccess, m.Duration)
	})
}

// Push adds the run metrics to the Pushgateway group of the job, replacing
// only the metrics gathered by this run
func (m *Metrics) Push(ctx context.Context, url string) error {
	if err := push.New(url, JobName).Gatherer(m.registry).AddContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}

// Observe adds the counts of one run to the counters
func (m *Metrics) Observe(discovered, known, registered, skipped int) {
	m.IndexesDiscovered.Add(float64(discovered))
	m.IndexesKnown.Add(float64(known))
	m.IndexesRegistered.Add(float64(registered))
	m.IndexesSkipped.Add(float64(skipped))
}
