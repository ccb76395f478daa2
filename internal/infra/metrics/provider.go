package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(providerCallsTotal, providerCallLatency) }

var (
	providerCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_calls_total",
			Help: "Calls to the generation provider by family, operation and outcome.",
		},
		[]string{"family", "op", "outcome"},
	)

	providerCallLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_call_latency_ms",
			Help:    "Provider call latency distribution in milliseconds.",
			Buckets: []float64{25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 10000},
		},
		[]string{"family", "op"},
	)
)

func ObserveProviderCall(family, op, outcome string, d time.Duration) {
	providerCallsTotal.WithLabelValues(norm(family), norm(op), norm(outcome)).Inc()
	providerCallLatency.WithLabelValues(norm(family), norm(op)).Observe(float64(d.Milliseconds()))
}
