// Package metrics holds the Prometheus collectors for the directory service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Fetch outcomes.
const (
	FetchOK     = "ok"
	FetchFailed = "failed"
	FetchBusy   = "busy"
)

// Metrics holds all collectors. Each instance owns its registry so tests can
// build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	SessionsOpened prometheus.Counter
	SessionsActive prometheus.Gauge
	SessionsSwept  prometheus.Counter
	Fetches        *prometheus.CounterVec
	FetchDuration  prometheus.Histogram
	Derivations    *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		SessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "worldview_sessions_opened_total",
			Help: "Total number of directory sessions opened",
		}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "worldview_sessions_active",
			Help: "Current number of live directory sessions",
		}),
		SessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "worldview_sessions_expired_total",
			Help: "Total number of sessions removed after idling past the TTL",
		}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worldview_source_fetches_total",
			Help: "Country list fetches by outcome",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "worldview_source_fetch_duration_seconds",
			Help:    "Duration of country list fetches",
			Buckets: prometheus.DefBuckets,
		}),
		Derivations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worldview_derivations_total",
			Help: "Visible page derivations by the mutation that triggered them",
		}, []string{"trigger"}),
	}

	reg.MustRegister(
		m.SessionsOpened,
		m.SessionsActive,
		m.SessionsSwept,
		m.Fetches,
		m.FetchDuration,
		m.Derivations,
	)
	return m
}

// ObserveFetch records one fetch attempt.
func (m *Metrics) ObserveFetch(outcome string, d time.Duration) {
	m.Fetches.WithLabelValues(outcome).Inc()
	if outcome != FetchBusy {
		m.FetchDuration.Observe(d.Seconds())
	}
}

// IncrementDerivations counts one derivation for trigger.
func (m *Metrics) IncrementDerivations(trigger string) {
	m.Derivations.WithLabelValues(trigger).Inc()
}

// SetActiveSessions sets the live session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.SessionsActive.Set(float64(n))
}
