// Package metrics provides prometheus collectors and echo middleware for
// monitoring the bridge.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LLMBuckets covers inference latencies from 100ms to two minutes.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// Upstream call outcomes.
const (
	ResultOK          = "ok"
	ResultUnavailable = "unavailable"
	ResultRejected    = "rejected"
	ResultError       = "error"
)

// Stream outcomes.
const (
	OutcomeDone       = "done"
	OutcomeError      = "error"
	OutcomeClientGone = "client_gone"
)

var (
	// RequestsTotal counts inbound HTTP requests by method, route and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ollama_bridge_requests_total",
			Help: "Inbound requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records inbound request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ollama_bridge_request_duration_seconds",
			Help:    "Inbound request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "route"},
	)

	// StreamsActive tracks in-flight SSE responses.
	StreamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ollama_bridge_streams_active",
			Help: "Active streaming responses",
		},
	)

	// StreamOutcomesTotal counts how streams ended.
	StreamOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ollama_bridge_stream_outcomes_total",
			Help: "Stream terminations by outcome",
		},
		[]string{"outcome"},
	)

	// StreamSkippedLinesTotal counts upstream stream lines that were not valid JSON.
	StreamSkippedLinesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ollama_bridge_stream_skipped_lines_total",
			Help: "Malformed upstream stream lines",
		},
	)

	// UpstreamRequestsTotal counts calls to the Ollama server.
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ollama_bridge_upstream_requests_total",
			Help: "Upstream requests",
		},
		[]string{"endpoint", "result"},
	)

	// UpstreamLatency records time until the upstream answered (headers for streams).
	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ollama_bridge_upstream_latency_seconds",
			Help:    "Upstream latency",
			Buckets: LLMBuckets,
		},
		[]string{"endpoint"},
	)

	// TokensTotal sums token counts reported by the upstream.
	TokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ollama_bridge_tokens_total",
			Help: "Tokens reported by the upstream",
		},
		[]string{"model", "direction"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamsActive,
		StreamOutcomesTotal,
		StreamSkippedLinesTotal,
		UpstreamRequestsTotal,
		UpstreamLatency,
		TokensTotal,
	)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordTokens adds upstream-reported token counts for a model.
func RecordTokens(model string, promptTokens, completionTokens int) {
	if promptTokens > 0 {
		TokensTotal.WithLabelValues(model, "input").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		TokensTotal.WithLabelValues(model, "output").Add(float64(completionTokens))
	}
}
