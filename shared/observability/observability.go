// Package observability exposes the server's prometheus metrics.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors the chat server updates.
type Metrics struct {
	registry *prometheus.Registry

	ConnectedClients    prometheus.Gauge
	ActiveSessions      prometheus.Gauge
	MessagesBroadcast   *prometheus.CounterVec
	EventSendFailures   prometheus.Counter
	PersistenceFailures prometheus.Counter
	RejectedIntents     *prometheus.CounterVec
}

// New creates and registers all collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_connected_clients",
			Help: "Number of open websocket connections.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_active_sessions",
			Help: "Number of connections with a bound character session.",
		}),
		MessagesBroadcast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_messages_broadcast_total",
			Help: "Messages appended to history and broadcast, by type.",
		}, []string{"type"}),
		EventSendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_event_send_failures_total",
			Help: "Per-target delivery failures during broadcast.",
		}),
		PersistenceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_persistence_failures_total",
			Help: "Failed flushes of the profile or history file.",
		}),
		RejectedIntents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_rejected_intents_total",
			Help: "Intents dropped at the boundary or by authorization.",
		}, []string{"reason"}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ConnectedClients,
		m.ActiveSessions,
		m.MessagesBroadcast,
		m.EventSendFailures,
		m.PersistenceFailures,
		m.RejectedIntents,
	)

	return m
}

// Handler serves the /metrics endpoint for this metric set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
