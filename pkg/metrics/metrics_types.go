package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name
const Namespace = "bowtie"

// Registry holds every metric the engine and server export
type Registry struct {
	// HTTP
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestsInFlight  prometheus.Gauge
	HTTPResponseSizeBytes *prometheus.HistogramVec
	AuthFailuresTotal     prometheus.Counter

	// Pipeline
	PipelineRunsTotal     *prometheus.CounterVec
	PipelineDuration      prometheus.Histogram
	PipelineGraphNodes    prometheus.Histogram
	PipelinePathsTotal    *prometheus.CounterVec
	PipelineTruncated     prometheus.Counter
	PipelineBreachedNodes prometheus.Gauge

	// Diagrams
	DiagramsActive      prometheus.Gauge
	MutationsTotal      *prometheus.CounterVec
	ImportsTotal        *prometheus.CounterVec
	ImportWarningsTotal prometheus.Counter
	EventSubscribers    prometheus.Gauge
	EventsDroppedTotal  prometheus.Counter

	// Archive
	ArchivesTotal    *prometheus.CounterVec
	ArchiveDuration  *prometheus.HistogramVec
	ArchiveSizeBytes *prometheus.HistogramVec

	// System
	UptimeSeconds    prometheus.Gauge
	GoRoutines       prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge
	MemorySysBytes   prometheus.Gauge

	registry *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the process-wide registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a registry with every metric registered on its own
// prometheus.Registry, so tests can create as many as they like
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}

	r.initHTTPMetrics()
	r.initPipelineMetrics()
	r.initDiagramMetrics()
	r.initArchiveMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
