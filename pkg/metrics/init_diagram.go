package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initDiagramMetrics() {
	r.DiagramsActive = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "diagrams_active",
			Help:      "Diagrams currently held by the server",
		},
	)

	r.MutationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "mutations_total",
			Help:      "Diagram mutations, by operation and outcome",
		},
		[]string{"op", "status"},
	)

	r.ImportsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "imports_total",
			Help:      "Document imports, by outcome",
		},
		[]string{"status"},
	)

	r.ImportWarningsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "import_warnings_total",
			Help:      "Warnings (dangling edges, unknown kinds) raised by accepted imports",
		},
	)

	r.EventSubscribers = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "event_subscribers",
			Help:      "Open view event streams",
		},
	)

	r.EventsDroppedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "events_dropped_total",
			Help:      "View events dropped because a subscriber was too slow",
		},
	)
}
