package editor

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dd0wney/cluso-bowtie/pkg/bowtie"
	"github.com/dd0wney/cluso-bowtie/pkg/logging"
	"github.com/dd0wney/cluso-bowtie/pkg/pipeline"
	"github.com/dd0wney/cluso-bowtie/pkg/validation"
	"github.com/google/uuid"
)

// idPrefixes keep generated ids readable by older tooling that infers the
// kind from the id
var idPrefixes = map[bowtie.Kind]string{
	bowtie.KindHazard:      "hazard",
	bowtie.KindThreat:      "threat",
	bowtie.KindBarrier:     "barrier",
	bowtie.KindTopEvent:    "center",
	bowtie.KindConsequence: "conseq",
}

// NewID returns prefix_ followed by eight random hex digits
func NewID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// AddNode creates a node of the given kind in the next free slot of its
// column. An empty label takes the kind's default.
func (e *Editor) AddNode(kind bowtie.Kind, label string) (bowtie.Node, *pipeline.View, error) {
	var added bowtie.Node
	view, err := e.mutate(validation.OpAddNode, func() error {
		n, err := e.newNode(kind, label)
		if err != nil {
			return err
		}
		n.Position = e.slots.Next(kind, n.Data.Meta.BarrierType)
		e.graph.Nodes = append(e.graph.Nodes, n)
		added = n
		return nil
	})
	return added, view, err
}

// newNode builds a node without adding it. Caller holds the lock.
func (e *Editor) newNode(kind bowtie.Kind, label string) (bowtie.Node, error) {
	prefix, ok := idPrefixes[kind]
	if !ok {
		return bowtie.Node{}, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if kind == bowtie.KindTopEvent {
		if top := e.topEvent(); top != "" {
			return bowtie.Node{}, fmt.Errorf("%w: %s", ErrDuplicateTopEvent, top)
		}
	}
	if label = strings.TrimSpace(label); label == "" {
		label = bowtie.DefaultLabel(kind)
	}

	n := bowtie.Node{
		ID:   NewID(prefix),
		Type: "default",
		Data: bowtie.NodeData{
			BaseLabel: label,
			Label:     label,
			Meta:      bowtie.NodeMeta{Kind: kind},
		},
	}
	bowtie.ApplyDefaults(&n)
	return n, nil
}

func (e *Editor) topEvent() string {
	for _, n := range e.graph.Nodes {
		if n.Kind() == bowtie.KindTopEvent {
			return n.ID
		}
	}
	return ""
}

// UpdateLabel replaces a node's base label. The display label is derived
// from it on the next pass.
func (e *Editor) UpdateLabel(id, label string) (*pipeline.View, error) {
	return e.mutate(validation.OpUpdateLabel, func() error {
		i, err := e.nodeIndex(id)
		if err != nil {
			return err
		}
		e.graph.Nodes[i].Data.BaseLabel = strings.TrimSpace(label)
		return nil
	})
}

// UpdateBarrier applies a partial metadata update to a barrier
func (e *Editor) UpdateBarrier(id string, patch bowtie.BarrierPatch) (*pipeline.View, error) {
	return e.mutate(validation.OpUpdateBarrier, func() error {
		i, err := e.barrierIndex(id)
		if err != nil {
			return err
		}
		patch.Apply(&e.graph.Nodes[i].Data.Meta)
		bowtie.ApplyDefaults(&e.graph.Nodes[i])
		return nil
	})
}

// ToggleFailed flips a barrier between active and failed
func (e *Editor) ToggleFailed(id string) (*pipeline.View, error) {
	return e.mutate(validation.OpToggleFailed, func() error {
		i, err := e.barrierIndex(id)
		if err != nil {
			return err
		}
		m := &e.graph.Nodes[i].Data.Meta
		m.Failed = !m.Failed
		return nil
	})
}

func (e *Editor) barrierIndex(id string) (int, error) {
	i, err := e.nodeIndex(id)
	if err != nil {
		return -1, err
	}
	if !e.graph.Nodes[i].IsBarrier() {
		return -1, fmt.Errorf("%w: %s", ErrNotBarrier, id)
	}
	return i, nil
}

// UpdateRisk sets the severity and likelihood inputs of the numeric risk
// model
func (e *Editor) UpdateRisk(id string, severity, likelihood int) (*pipeline.View, error) {
	return e.mutate(validation.OpUpdateRisk, func() error {
		if severity < 1 || severity > 5 || likelihood < 1 || likelihood > 5 {
			return fmt.Errorf("%w: got %d×%d", ErrInvalidRisk, severity, likelihood)
		}
		i, err := e.nodeIndex(id)
		if err != nil {
			return err
		}
		m := &e.graph.Nodes[i].Data.Meta
		m.Severity = severity
		m.Likelihood = likelihood
		return nil
	})
}

// SetDetails replaces a node's detail notes. Blank lines are dropped.
func (e *Editor) SetDetails(id string, details []string) (*pipeline.View, error) {
	return e.mutate(validation.OpSetDetails, func() error {
		i, err := e.nodeIndex(id)
		if err != nil {
			return err
		}
		var kept []string
		for _, d := range details {
			if d = strings.TrimSpace(d); d != "" {
				kept = append(kept, d)
			}
		}
		e.graph.Nodes[i].Data.Meta.Details = kept
		return nil
	})
}

// ToggleDetails shows or hides a node's detail notes in its label
func (e *Editor) ToggleDetails(id string) (*pipeline.View, error) {
	return e.mutate(validation.OpToggleDetails, func() error {
		if _, err := e.nodeIndex(id); err != nil {
			return err
		}
		e.state.Expanded = pipeline.Toggle(e.state.Expanded, id)
		return nil
	})
}

// DeleteNode removes a node, every edge touching it and any UI state that
// refers to it
func (e *Editor) DeleteNode(id string) (*pipeline.View, error) {
	return e.mutate(validation.OpDeleteNode, func() error {
		i, err := e.nodeIndex(id)
		if err != nil {
			return err
		}
		e.graph.Nodes = slices.Delete(slices.Clone(e.graph.Nodes), i, i+1)
		e.graph.Edges = slices.DeleteFunc(slices.Clone(e.graph.Edges), func(ed bowtie.Edge) bool {
			return ed.Source == id || ed.Target == id
		})
		e.state = e.state.Forget(id)
		e.logger.Debug("node deleted", logging.NodeID(id), logging.Int("edges", len(e.graph.Edges)))
		return nil
	})
}
