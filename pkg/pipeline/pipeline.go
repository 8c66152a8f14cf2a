// Package pipeline turns a canonical bow-tie graph plus UI state into the
// styled view graph handed to the renderer.
//
// Stages always run in the same order and each one reads only the output of
// the one before it:
//
//	normalize → propagate (+ risk, labels) → collapse threats
//	          → collapse consequences → spotlight style
//
// The input graph is never modified. A pass cannot fail; problems with the
// diagram are reported as issues on the View.
package pipeline

import (
	"time"

	"github.com/dd0wney/cluso-bowtie/pkg/bowtie"
	"github.com/dd0wney/cluso-bowtie/pkg/collapse"
	"github.com/dd0wney/cluso-bowtie/pkg/logging"
	"github.com/dd0wney/cluso-bowtie/pkg/metrics"
	"github.com/dd0wney/cluso-bowtie/pkg/propagation"
	"github.com/dd0wney/cluso-bowtie/pkg/spotlight"
)

// Options configures a Pipeline
type Options struct {
	// RiskScoring enables the numeric residual risk model
	RiskScoring bool
	// MaxPathsPerThreat caps path enumeration per threat (0 = no cap)
	MaxPathsPerThreat int
}

// View is the result of one pass
type View struct {
	Graph    bowtie.Graph        `json:"graph"`
	Index    *bowtie.Index       `json:"-"`
	Report   *propagation.Report `json:"report"`
	Issues   []bowtie.Issue      `json:"issues,omitempty"`
	Duration time.Duration       `json:"-"`
}

// Pipeline runs evaluation passes
type Pipeline struct {
	opts    Options
	logger  logging.Logger
	metrics *metrics.Registry
}

// New creates a Pipeline. A nil logger discards output and a nil registry
// disables metrics.
func New(opts Options, logger logging.Logger, reg *metrics.Registry) *Pipeline {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Pipeline{
		opts:    opts,
		logger:  logger.With(logging.Component("pipeline")),
		metrics: reg,
	}
}

// Options returns the pipeline configuration
func (p *Pipeline) Options() Options {
	return p.opts
}

// Run performs one full pass
func (p *Pipeline) Run(g bowtie.Graph, s State) *View {
	start := time.Now()

	normalized, ix := bowtie.Normalize(g)

	report := propagation.AnalyzeWithOptions(normalized, propagation.Options{
		MaxPathsPerThreat: p.opts.MaxPathsPerThreat,
	})
	view := report.Apply(normalized)
	if p.opts.RiskScoring {
		view = propagation.RiskStyle(propagation.ScoreRisk(view, propagation.Options{
			MaxPathsPerThreat: p.opts.MaxPathsPerThreat,
		}))
	}
	view = labels(view, s)

	view = collapse.Threats(view, s.CollapsedThreats)
	view = collapse.Consequences(view, s.CollapsedConsequences)
	view = spotlight.Style(view)

	v := &View{
		Graph:    view,
		Index:    ix,
		Report:   report,
		Issues:   ix.Issues,
		Duration: time.Since(start),
	}
	p.observe(v)
	return v
}

// labels derives every node's display label from its base label
func labels(g bowtie.Graph, s State) bowtie.Graph {
	expanded := s.expandedSet()
	for i := range g.Nodes {
		n := &g.Nodes[i]
		n.Data.Label = bowtie.DeriveLabel(*n, expanded[n.ID])
	}
	return g
}

func (p *Pipeline) observe(v *View) {
	breached := 0
	for _, n := range v.Graph.Nodes {
		if n.Data.Meta.Breached {
			breached++
		}
	}

	p.logger.Debug("pipeline pass complete",
		logging.Count(len(v.Graph.Nodes)),
		logging.Int("paths", len(v.Report.Paths)),
		logging.Int("breached", breached),
		logging.Bool("top_event_breached", v.Report.TopEventBreached),
		logging.Int("issues", len(v.Issues)),
		logging.Latency(v.Duration),
	)
	if v.Report.Truncated {
		p.logger.Warn("path enumeration truncated",
			logging.Stage("propagate"),
			logging.Int("max_paths_per_threat", p.opts.MaxPathsPerThreat))
	}

	if p.metrics == nil {
		return
	}
	paths := map[string]int{}
	for _, r := range v.Report.Paths {
		paths[string(r.Verdict)]++
	}
	p.metrics.RecordPipelineRun(metrics.PipelineRun{
		Duration:         v.Duration,
		Nodes:            len(v.Graph.Nodes),
		Breached:         breached,
		TopEventBreached: v.Report.TopEventBreached,
		Truncated:        v.Report.Truncated,
		Paths:            paths,
	})
}
