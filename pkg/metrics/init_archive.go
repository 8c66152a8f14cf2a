package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initArchiveMetrics() {
	r.ArchivesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "archives_total",
			Help:      "Archived document snapshots, by sink and outcome",
		},
		[]string{"sink", "status"},
	)

	r.ArchiveDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "archive_duration_seconds",
			Help:      "Time spent writing a snapshot",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"sink"},
	)

	r.ArchiveSizeBytes = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "archive_size_bytes",
			Help:      "Stored snapshot size after compression",
			Buckets:   []float64{256, 1024, 4096, 16384, 65536, 262144},
		},
		[]string{"sink"},
	)
}
