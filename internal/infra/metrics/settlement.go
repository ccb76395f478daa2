package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		settlementsTotal,
		outputMirrorTotal,
		reconcilerRunsTotal,
		reconcilerGenerations,
	)
}

var (
	// action: finalize|refund, result: ok|error|skipped
	settlementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_settlements_total",
			Help: "Credit RPC invocations by action and result.",
		},
		[]string{"action", "result"},
	)

	// result: stored|download_failed|upload_failed|disabled
	outputMirrorTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "output_mirror_total",
			Help: "Attempts to copy provider outputs into object storage.",
		},
		[]string{"result"},
	)

	reconcilerRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_runs_total",
			Help: "Stale generation sweeps by result.",
		},
		[]string{"result"},
	)

	reconcilerGenerations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_generations_total",
			Help: "Generations visited by the reconciler by result.",
		},
		[]string{"result"}, // processed|failed
	)
)

func IncSettlement(action, result string) {
	settlementsTotal.WithLabelValues(norm(action), norm(result)).Inc()
}

func IncOutputMirror(result string) {
	outputMirrorTotal.WithLabelValues(norm(result)).Inc()
}

func IncReconcilerRun(result string) {
	reconcilerRunsTotal.WithLabelValues(norm(result)).Inc()
}

func AddReconciled(processed, failed int) {
	reconcilerGenerations.WithLabelValues("processed").Add(float64(processed))
	reconcilerGenerations.WithLabelValues("failed").Add(float64(failed))
}
