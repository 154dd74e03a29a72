package cache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are shared by all caches; a nil *Metrics records nothing.
type Metrics struct {
	refreshes *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

func NewMetrics(promRegistry prometheus.Registerer) *Metrics {
	if promRegistry == nil {
		return nil
	}
	f := promauto.With(promRegistry)
	return &Metrics{
		refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "delegation_sync_cache_refreshes_total",
			Help: "cache refreshes by cache and outcome",
		}, []string{"cache", "outcome"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "delegation_sync_cache_refresh_seconds",
			Help:    "cache refresh latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"cache"}),
	}
}

func (m *Metrics) observe(name string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.refreshes.WithLabelValues(name, outcome).Inc()
	m.latency.WithLabelValues(name).Observe(d.Seconds())
}
