// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// GenerationDuration tracks the simulated thinking time of replies.
	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_generation_duration_seconds",
			Help:    "Time from user message to assistant reply",
			Buckets: []float64{.5, 1, 1.5, 2, 2.5, 3, 4, 5},
		},
	)

	// GenerationsInFlight tracks sessions currently generating a reply.
	GenerationsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_generations_in_flight",
			Help: "Number of replies currently being generated",
		},
	)

	// RepliesTotal tracks replies by routed topic.
	RepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_replies_total",
			Help: "Total assistant replies by topic",
		},
		[]string{"topic"},
	)

	// SendsRejectedTotal tracks sends refused before any state change.
	SendsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_sends_rejected_total",
			Help: "Total rejected sends by reason",
		},
		[]string{"reason"},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// SessionsActive tracks live chat sessions.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_sessions_active",
			Help: "Number of live chat sessions",
		},
	)

	// ConversationsTotal tracks total conversations created.
	ConversationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversations_total",
			Help: "Total conversations created",
		},
	)

	// MessagesTotal tracks total messages appended.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages appended",
		},
		[]string{"role"},
	)

	// AuthAttemptsTotal tracks sign in and sign up outcomes.
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total authentication attempts",
		},
		[]string{"operation", "result"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordGeneration records a completed reply.
func RecordGeneration(topic string, duration float64) {
	GenerationDuration.Observe(duration)
	RepliesTotal.WithLabelValues(topic).Inc()
}

// RecordAuth records the outcome of an authentication attempt.
func RecordAuth(operation string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	AuthAttemptsTotal.WithLabelValues(operation, result).Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
