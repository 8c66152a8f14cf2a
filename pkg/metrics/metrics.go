// Package metrics exposes Prometheus metrics for diagram evaluation, the
// HTTP API and snapshot archiving.
package metrics

import (
	"runtime"
	"strconv"
	"time"
)

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// PipelineRun summarises one evaluation pass
type PipelineRun struct {
	Duration         time.Duration
	Nodes            int
	Breached         int
	TopEventBreached bool
	Truncated        bool
	// Paths counts evaluated paths per verdict name
	Paths map[string]int
}

// RecordPipelineRun records one evaluation pass
func (r *Registry) RecordPipelineRun(run PipelineRun) {
	r.PipelineRunsTotal.WithLabelValues(breachLabel(run.TopEventBreached)).Inc()
	r.PipelineDuration.Observe(run.Duration.Seconds())
	r.PipelineGraphNodes.Observe(float64(run.Nodes))
	r.PipelineBreachedNodes.Set(float64(run.Breached))
	for verdict, n := range run.Paths {
		r.PipelinePathsTotal.WithLabelValues(verdict).Add(float64(n))
	}
	if run.Truncated {
		r.PipelineTruncated.Inc()
	}
}

func breachLabel(b bool) string {
	if b {
		return "breached"
	}
	return "intact"
}

// RecordMutation records a diagram mutation. err == nil counts as success.
func (r *Registry) RecordMutation(op string, err error) {
	r.MutationsTotal.WithLabelValues(op, statusOf(err)).Inc()
}

// RecordImport records a document import and how many warnings it raised
func (r *Registry) RecordImport(err error, warnings int) {
	r.ImportsTotal.WithLabelValues(statusOf(err)).Inc()
	if err == nil && warnings > 0 {
		r.ImportWarningsTotal.Add(float64(warnings))
	}
}

// RecordArchive records a snapshot write to sink
func (r *Registry) RecordArchive(sink string, size int, duration time.Duration, err error) {
	r.ArchivesTotal.WithLabelValues(sink, statusOf(err)).Inc()
	r.ArchiveDuration.WithLabelValues(sink).Observe(duration.Seconds())
	if err == nil {
		r.ArchiveSizeBytes.WithLabelValues(sink).Observe(float64(size))
	}
}

// UpdateSystemMetrics refreshes uptime, goroutine and memory gauges
func (r *Registry) UpdateSystemMetrics(started time.Time) {
	r.UptimeSeconds.Set(time.Since(started).Seconds())
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	r.MemoryAllocBytes.Set(float64(m.Alloc))
	r.MemorySysBytes.Set(float64(m.Sys))
}

// StatusLabel turns an HTTP status code into a label value
func StatusLabel(code int) string {
	return strconv.Itoa(code)
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordResponseSize observes the body size of a response
func (r *Registry) RecordResponseSize(method, path string, size float64) {
	r.HTTPResponseSizeBytes.WithLabelValues(method, path).Observe(size)
}

// IncHTTPRequestsInFlight marks a request as started
func (r *Registry) IncHTTPRequestsInFlight() { r.HTTPRequestsInFlight.Inc() }

// DecHTTPRequestsInFlight marks a request as finished
func (r *Registry) DecHTTPRequestsInFlight() { r.HTTPRequestsInFlight.Dec() }

// RecordAuthFailure counts a rejected bearer token
func (r *Registry) RecordAuthFailure() { r.AuthFailuresTotal.Inc() }
