package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initPipelineMetrics() {
	r.PipelineRunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "pipeline_runs_total",
			Help:      "Evaluation passes, by whether the top event ended up breached",
		},
		[]string{"top_event"},
	)

	// Passes are expected to finish well inside a frame
	r.PipelineDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Duration of one full evaluation pass",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	r.PipelineGraphNodes = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "pipeline_graph_nodes",
			Help:      "Number of nodes per evaluated diagram",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500},
		},
	)

	r.PipelinePathsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "pipeline_paths_total",
			Help:      "Threat to top event paths evaluated, by verdict",
		},
		[]string{"verdict"},
	)

	r.PipelineTruncated = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "pipeline_truncated_total",
			Help:      "Passes where path enumeration hit the per-threat cap",
		},
	)

	r.PipelineBreachedNodes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "pipeline_breached_nodes",
			Help:      "Breached nodes in the most recent pass",
		},
	)
}
