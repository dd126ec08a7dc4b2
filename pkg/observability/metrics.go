// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring central.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "central_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "central_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method"},
	)

	// StreamingConnections tracks the number of active SSE streaming connections.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "central_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// TurnsTotal counts conversation turns by endpoint mode and outcome
	// (ok, no_content, error).
	TurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "central_turns_total",
			Help: "Conversation turns",
		},
		[]string{"mode", "outcome"},
	)

	// TurnDuration records full turn duration in seconds by endpoint mode.
	TurnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "central_turn_duration_seconds",
			Help:    "Turn duration",
			Buckets: LLMBuckets,
		},
		[]string{"mode"},
	)

	// TransportErrorsTotal counts backend exchanges that failed with a
	// transport error, by endpoint mode and status class.
	TransportErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "central_transport_errors_total",
			Help: "Backend transport errors",
		},
		[]string{"mode", "status"},
	)

	// DecodeSkipsTotal counts malformed stream units skipped by decoder.
	DecodeSkipsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "central_decode_skips_total",
			Help: "Malformed stream units skipped",
		},
		[]string{"decoder"},
	)

	// HelperQueriesTotal counts assistant replies that carried a helper
	// query envelope.
	HelperQueriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "central_helper_queries_total",
			Help: "Helper query envelopes detected",
		},
	)

	// SessionRecordsTotal counts messages handed to the session recorder
	// by role and outcome.
	SessionRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "central_session_records_total",
			Help: "Session recorder writes",
		},
		[]string{"role", "outcome"},
	)

	// InstrumentDispatchesTotal counts instrument dispatches by
	// instrument name and outcome.
	InstrumentDispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "central_instrument_dispatches_total",
			Help: "Instrument dispatches",
		},
		[]string{"instrument", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		TurnsTotal,
		TurnDuration,
		TransportErrorsTotal,
		DecodeSkipsTotal,
		HelperQueriesTotal,
		SessionRecordsTotal,
		InstrumentDispatchesTotal,
	)
}
