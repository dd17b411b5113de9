package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/intakekit/intakekit/conversation"
)

// Metrics holds the server's prometheus collectors. It also satisfies
// conversation.Notifier so lifecycle transitions are counted at the source.
type Metrics struct {
	registry *prometheus.Registry

	turns          prometheus.Counter
	chatFailures   prometheus.Counter
	lifecycle      *prometheus.CounterVec
	activeSessions prometheus.GaugeFunc
}

// NewMetrics creates the collector set on its own registry. manager feeds
// the active-sessions gauge.
func NewMetrics(manager *conversation.Manager) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		turns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intakekit_turns_total",
			Help: "Completed interview turns.",
		}),
		chatFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intakekit_chat_failures_total",
			Help: "Chat provider calls that failed after retries.",
		}),
		lifecycle: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intakekit_session_events_total",
			Help: "Session lifecycle events by type.",
		}, []string{"event"}),
		activeSessions: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "intakekit_active_sessions",
			Help: "Sessions currently in the Active state.",
		}, func() float64 {
			return float64(len(manager.ListActive()))
		}),
	}

	registry.MustRegister(m.turns, m.chatFailures, m.lifecycle, m.activeSessions)
	return m
}

// SessionEvent implements conversation.Notifier.
func (m *Metrics) SessionEvent(event string, _ conversation.Summary) {
	m.lifecycle.WithLabelValues(event).Inc()
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
