package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcomes used as the "outcome" label.
const (
	outcomeOK      = "ok"
	outcomeError   = "error"
	outcomeTimeout = "timeout"
	outcomeInvalid = "invalid"
	outcomeNoRoute = "no_route"
)

// pipelineMetrics holds the Prometheus metrics owned by a Pipeline.
type pipelineMetrics struct {
	// retrievalTotal counts retrievals by status: success, empty or error.
	retrievalTotal *prometheus.CounterVec

	// fallbackTotal counts runs that substituted the fallback chunks.
	fallbackTotal prometheus.Counter

	// runsTotal counts finished runs by outcome.
	runsTotal *prometheus.CounterVec

	// promptTokens records the estimated token size of composed prompts.
	promptTokens prometheus.Histogram

	// durationSeconds records run latency by outcome.
	durationSeconds *prometheus.HistogramVec
}

func newPipelineMetrics(reg prometheus.Registerer) *pipelineMetrics {
	factory := promauto.With(reg)

	return &pipelineMetrics{
		retrievalTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "raglab",
			Subsystem: "pipeline",
			Name:      "retrieval_total",
			Help:      "Retrievals performed, partitioned by result status.",
		}, []string{"status"}),

		fallbackTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "raglab",
			Subsystem: "pipeline",
			Name:      "fallback_total",
			Help:      "Runs that answered from the fallback chunks.",
		}),

		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "raglab",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline runs completed, partitioned by outcome.",
		}, []string{"outcome"}),

		promptTokens: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "raglab",
			Subsystem: "pipeline",
			Name:      "prompt_tokens",
			Help:      "Estimated token count of composed prompts.",
			Buckets:   []float64{250, 500, 1000, 2000, 4000, 8000, 16000},
		}),

		durationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "raglab",
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of pipeline runs.",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),
	}
}
