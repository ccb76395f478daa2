// File: internal/infra/metrics/metrics.go
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		pollsTotal,
		pollDuration,
		rateLimitedTotal,
	)
}

var (
	// outcome: queued|processing|succeeded|failed|no_task|provider_error|locked|settlement_error
	pollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_polls_total",
			Help: "Status polls by outcome.",
		},
		[]string{"source", "outcome"}, // source: status|webhook|sync
	)

	pollDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "generation_poll_duration_seconds",
			Help:    "End-to-end duration of a status poll.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		},
		[]string{"source"},
	)

	rateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Requests rejected by the per-user rate limiter.",
		},
		[]string{"route"},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// -------- Poll helpers --------

func IncPoll(source, outcome string) {
	pollsTotal.WithLabelValues(norm(source), norm(outcome)).Inc()
}

func ObservePoll(source string, seconds float64) {
	pollDuration.WithLabelValues(norm(source)).Observe(seconds)
}

func IncRateLimited(route string) {
	rateLimitedTotal.WithLabelValues(norm(route)).Inc()
}
