// Package editor is the mutation boundary around one bow-tie diagram. It
// owns the canonical graph and the UI state, applies edits, and reruns the
// evaluation pipeline after every change.
package editor

import (
	"fmt"
	"sync"
	"time"

	"github.com/dd0wney/cluso-bowtie/pkg/bowtie"
	"github.com/dd0wney/cluso-bowtie/pkg/layout"
	"github.com/dd0wney/cluso-bowtie/pkg/logging"
	"github.com/dd0wney/cluso-bowtie/pkg/metrics"
	"github.com/dd0wney/cluso-bowtie/pkg/pipeline"
	"github.com/dd0wney/cluso-bowtie/pkg/validation"
)

// Config configures an Editor
type Config struct {
	// ID names the diagram in logs
	ID       string
	Pipeline pipeline.Options
	Logger   logging.Logger
	Metrics  *metrics.Registry
	// OnChange receives the canonical graph after every successful
	// mutation. It is called without the editor lock held.
	OnChange func(value bowtie.Graph, view *pipeline.View)
}

// Editor holds one diagram. All methods are safe for concurrent use; edits
// are serialised and each one is followed by exactly one pipeline pass.
type Editor struct {
	mu sync.Mutex

	id       string
	graph    bowtie.Graph
	state    pipeline.State
	slots    *layout.Slots
	pipeline *pipeline.Pipeline
	view     *pipeline.View

	onChange func(bowtie.Graph, *pipeline.View)
	logger   logging.Logger
	metrics  *metrics.Registry
}

// New creates an editor over g. View state in g (synthetic edges, styles,
// breach flags) is discarded; only the canonical form is kept, with every
// node's kind made explicit.
func New(g bowtie.Graph, cfg Config) *Editor {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	canon, _ := canonical(g)

	e := &Editor{
		id:       cfg.ID,
		graph:    canon,
		slots:    layout.NewSlots(),
		pipeline: pipeline.New(cfg.Pipeline, logger, cfg.Metrics),
		onChange: cfg.OnChange,
		logger:   logger.With(logging.Component("editor"), logging.DiagramID(cfg.ID)),
		metrics:  cfg.Metrics,
	}
	e.view = e.pipeline.Run(e.graph, e.state)
	return e
}

// ID returns the diagram id the editor was created with
func (e *Editor) ID() string {
	return e.id
}

// Value returns a copy of the canonical graph
func (e *Editor) Value() bowtie.Graph {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.Clone()
}

// View returns the result of the latest pass. The view is rebuilt, never
// modified, so callers may keep it.
func (e *Editor) View() *pipeline.View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view
}

// State returns a copy of the UI state
func (e *Editor) State() pipeline.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// IsSynthetic reports whether edgeID names a synthetic collapse edge in the
// current view. Such edges cannot be deleted or inserted into.
func (e *Editor) IsSynthetic(edgeID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isSynthetic(edgeID)
}

// Export returns the canonical JSON document
func (e *Editor) Export() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return bowtie.Export(e.graph)
}

// Import replaces the diagram with a parsed and validated document. On any
// error the current diagram is left untouched. Collapse and expanded state
// are reset, breach state is recomputed, and the returned issues warn about
// anything that was dropped or cannot be traversed.
func (e *Editor) Import(data []byte) ([]bowtie.Issue, error) {
	start := time.Now()

	doc, err := bowtie.ParseDocument(data)
	if err == nil {
		err = validation.ValidateDocument(doc)
	}
	if err != nil {
		e.recordImport(err, 0)
		e.logger.Warn("import rejected", logging.Error(err), logging.Int("bytes", len(data)))
		return nil, fmt.Errorf("import rejected: %w", err)
	}

	canon, dropped := canonical(doc.Graph())

	e.mu.Lock()
	e.graph = canon
	e.state = pipeline.State{}
	e.slots.Reset()
	e.view = e.pipeline.Run(e.graph, e.state)
	view := e.view
	value := e.graph.Clone()
	e.mu.Unlock()

	warnings := append(dropped, bowtie.IssuesOf(view.Issues, bowtie.IssueDanglingEdge)...)
	e.recordImport(nil, len(warnings))
	e.logger.Info("diagram imported",
		logging.Count(len(canon.Nodes)),
		logging.Int("warnings", len(warnings)),
		logging.Latency(time.Since(start)))

	e.notify(value, view)
	return warnings, nil
}

// canonical normalizes g and strips its view state
func canonical(g bowtie.Graph) (bowtie.Graph, []bowtie.Issue) {
	normalized, _ := bowtie.Normalize(g)
	return bowtie.Canonical(normalized)
}

func (e *Editor) recordImport(err error, warnings int) {
	if e.metrics != nil {
		e.metrics.RecordImport(err, warnings)
	}
}

// mutate runs fn under the lock. fn must leave the graph untouched when it
// returns an error. On success the pipeline reruns and OnChange fires.
func (e *Editor) mutate(op string, fn func() error) (*pipeline.View, error) {
	start := time.Now()

	e.mu.Lock()
	if err := fn(); err != nil {
		e.mu.Unlock()
		e.logger.Debug("mutation rejected", logging.Mutation(op), logging.Error(err))
		if e.metrics != nil {
			e.metrics.RecordMutation(op, err)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	e.view = e.pipeline.Run(e.graph, e.state)
	view := e.view
	value := e.graph.Clone()
	e.mu.Unlock()

	e.logger.Debug("mutation applied", logging.Mutation(op), logging.Latency(time.Since(start)))
	if e.metrics != nil {
		e.metrics.RecordMutation(op, nil)
	}
	e.notify(value, view)
	return view, nil
}

func (e *Editor) notify(value bowtie.Graph, view *pipeline.View) {
	if e.onChange != nil {
		e.onChange(value, view)
	}
}

func (e *Editor) nodeIndex(id string) (int, error) {
	for i, n := range e.graph.Nodes {
		if n.ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
}

func (e *Editor) edgeIndex(id string) (int, error) {
	if e.isSynthetic(id) {
		return -1, fmt.Errorf("%w: %s", ErrSyntheticEdge, id)
	}
	for i, ed := range e.graph.Edges {
		if ed.ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrEdgeNotFound, id)
}

func (e *Editor) isSynthetic(edgeID string) bool {
	if e.view == nil {
		return false
	}
	for _, ed := range e.view.Graph.Edges {
		if ed.ID == edgeID {
			return ed.Data.SyntheticCollapse
		}
	}
	return false
}
