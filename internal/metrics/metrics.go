package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reddit_cleaner"

// Metrics tracks enforcement activity.
//
// Metrics:
//   - reddit_cleaner_items_scanned_total: items pulled from the source, by kind and policy
//   - reddit_cleaner_items_removed_total: items redacted and deleted
//   - reddit_cleaner_mutation_failures_total: per-item failures, by step
//   - reddit_cleaner_throttle_seconds: delay applied after each removal
//   - reddit_cleaner_sessions_total: finished sessions, by outcome
//   - reddit_cleaner_last_session_timestamp_seconds: end time of the latest session
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	scanned     *prometheus.CounterVec
	removed     *prometheus.CounterVec
	failures    *prometheus.CounterVec
	throttle    prometheus.Histogram
	sessions    *prometheus.CounterVec
	lastSession prometheus.Gauge
}

// New creates and registers the metrics. A nil registry gets a fresh one.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,
		scanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_scanned_total",
			Help:      "Total number of content items evaluated",
		}, []string{"kind", "policy"}),
		removed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_removed_total",
			Help:      "Total number of content items redacted and deleted",
		}, []string{"kind", "policy"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutation_failures_total",
			Help:      "Total number of items skipped because a mutation failed",
		}, []string{"kind", "step"}),
		throttle: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "throttle_seconds",
			Help:      "Delay applied between consecutive mutations",
			Buckets:   prometheus.LinearBuckets(5, 0.5, 8), // 5s to 8.5s
		}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of finished enforcement sessions",
		}, []string{"outcome"}),
		lastSession: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_session_timestamp_seconds",
			Help:      "Unix time at which the latest session finished",
		}),
	}

	registry.MustRegister(m.scanned, m.removed, m.failures, m.throttle, m.sessions, m.lastSession)
	return m
}

func (m *Metrics) ItemScanned(kind, policy string) {
	if m == nil {
		return
	}
	m.scanned.WithLabelValues(kind, policy).Inc()
}

func (m *Metrics) ItemRemoved(kind, policy string) {
	if m == nil {
		return
	}
	m.removed.WithLabelValues(kind, policy).Inc()
}

func (m *Metrics) MutationFailed(kind, step string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(kind, step).Inc()
}

func (m *Metrics) Throttled(d time.Duration) {
	if m == nil {
		return
	}
	m.throttle.Observe(d.Seconds())
}

// SessionFinished records a session outcome ("ok", "interrupted", "error").
func (m *Metrics) SessionFinished(outcome string, at time.Time) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(outcome).Inc()
	m.lastSession.Set(float64(at.Unix()))
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}
