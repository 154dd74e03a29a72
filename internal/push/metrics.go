package push

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type channelMetrics struct {
	state      *prometheus.GaugeVec
	reconnects prometheus.Counter
	messages   *prometheus.CounterVec
	drops      prometheus.Counter
}

func newChannelMetrics(promRegistry prometheus.Registerer) *channelMetrics {
	f := promauto.With(promRegistry)
	return &channelMetrics{
		state: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "delegation_sync_push_state",
			Help: "1 for the current push channel state",
		}, []string{"state"}),
		reconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "delegation_sync_push_reconnects_total",
			Help: "automatic reconnect attempts scheduled",
		}),
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "delegation_sync_push_messages_total",
			Help: "update messages by model",
		}, []string{"model"}),
		drops: f.NewCounter(prometheus.CounterOpts{
			Name: "delegation_sync_push_dropped_total",
			Help: "unparseable messages dropped",
		}),
	}
}

func (m *channelMetrics) setState(s State) {
	if m == nil {
		return
	}
	for _, st := range []State{Disconnected, Connecting, Connected, Failed} {
		v := 0.0
		if st == s {
			v = 1
		}
		m.state.WithLabelValues(string(st)).Set(v)
	}
}

func (m *channelMetrics) reconnect() {
	if m != nil {
		m.reconnects.Inc()
	}
}

func (m *channelMetrics) message(model string) {
	if m != nil {
		m.messages.WithLabelValues(model).Inc()
	}
}

func (m *channelMetrics) dropped() {
	if m != nil {
		m.drops.Inc()
	}
}
