package bus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type busMetrics struct {
	emittedTotal   *prometheus.CounterVec
	deliveredTotal prometheus.Counter
	coalescedTotal prometheus.Counter
}

func newBusMetrics(promRegistry prometheus.Registerer) *busMetrics {
	f := promauto.With(promRegistry)
	return &busMetrics{
		emittedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "delegation_sync_bus_signals_emitted_total",
			Help: "signals emitted by name",
		}, []string{"signal"}),
		deliveredTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "delegation_sync_bus_deliveries_total",
			Help: "debounced handler invocations",
		}),
		coalescedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "delegation_sync_bus_signals_coalesced_total",
			Help: "emissions absorbed into another delivery",
		}),
	}
}

func (m *busMetrics) emitted(s Signal) {
	if m == nil {
		return
	}
	m.emittedTotal.WithLabelValues(string(s)).Inc()
}

func (m *busMetrics) delivered(count int) {
	if m == nil {
		return
	}
	m.deliveredTotal.Inc()
	if count > 1 {
		m.coalescedTotal.Add(float64(count - 1))
	}
}
