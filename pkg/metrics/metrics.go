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
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "route", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// LLMStreamDuration tracks LLM streaming response duration.
	LLMStreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_stream_duration_seconds",
			Help:    "LLM streaming response duration",
			Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"provider", "model", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// StreamsActive tracks completion streams currently relayed to callers.
	StreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_streams_active",
			Help: "Number of completion streams currently relayed",
		},
	)

	// PersistTotal tracks deferred conversation writes by outcome.
	PersistTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_persist_total",
			Help: "Deferred conversation writes by outcome",
		},
		[]string{"status"},
	)

	// PersistDuration tracks the latency of deferred conversation writes.
	PersistDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "conversation_persist_duration_seconds",
			Help:    "Deferred conversation write duration",
			Buckets: prometheus.DefBuckets,
		},
	)

	// PersistInFlight tracks deferred writes not yet finished.
	PersistInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "conversation_persist_in_flight",
			Help: "Deferred conversation writes in flight",
		},
	)

	// ConversationOpsTotal tracks conversation access operations.
	ConversationOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_operations_total",
			Help: "Conversation access operations",
		},
		[]string{"operation", "status"},
	)

	// EventsPublished tracks conversation events sent to the event bus.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_events_published_total",
			Help: "Conversation events published to the event bus",
		},
		[]string{"type", "status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, route, status string, duration float64) {
	RequestDuration.WithLabelValues(method, route, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, route, status).Inc()
}

// RecordLLMStream records metrics for an LLM streaming response.
func RecordLLMStream(provider, model, status string, duration float64, tokensIn, tokensOut int) {
	LLMStreamDuration.WithLabelValues(provider, model, status).Observe(duration)
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// RecordPersist records the outcome of a deferred conversation write.
func RecordPersist(status string, duration float64) {
	PersistTotal.WithLabelValues(status).Inc()
	PersistDuration.Observe(duration)
}

// RecordConversationOp records a conversation access operation.
func RecordConversationOp(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ConversationOpsTotal.WithLabelValues(operation, status).Inc()
}

// RecordEvent records an attempt to publish a conversation event.
func RecordEvent(eventType string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	EventsPublished.WithLabelValues(eventType, status).Inc()
}
