package editor

import (
	"fmt"
	"slices"

	"github.com/dd0wney/cluso-bowtie/pkg/bowtie"
	"github.com/dd0wney/cluso-bowtie/pkg/logging"
	"github.com/dd0wney/cluso-bowtie/pkg/pipeline"
	"github.com/dd0wney/cluso-bowtie/pkg/validation"
)

func newEdge(source, target string) bowtie.Edge {
	return bowtie.Edge{
		ID:     NewID("e"),
		Source: source,
		Target: target,
		Type:   "default",
	}
}

// Connect adds a directed edge. Self loops, duplicate edges and missing
// endpoints are rejected.
func (e *Editor) Connect(source, target string) (bowtie.Edge, *pipeline.View, error) {
	var added bowtie.Edge
	view, err := e.mutate(validation.OpConnect, func() error {
		if source == target {
			return fmt.Errorf("%w: %s cannot connect to itself", ErrInvalidConnection, source)
		}
		for _, id := range []string{source, target} {
			if _, err := e.nodeIndex(id); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidConnection, err)
			}
		}
		for _, ed := range e.graph.Edges {
			if ed.Source == source && ed.Target == target {
				return fmt.Errorf("%w: %s already connects %s to %s", ErrInvalidConnection, ed.ID, source, target)
			}
		}
		added = newEdge(source, target)
		e.graph.Edges = append(e.graph.Edges, added)
		return nil
	})
	return added, view, err
}

// InsertIntoEdge splits source→target into source→node→target with a new
// node of the given kind placed halfway between the endpoints. A barrier
// inserted on the consequence side of the top event is mitigative.
func (e *Editor) InsertIntoEdge(edgeID string, kind bowtie.Kind, label string) (bowtie.Node, *pipeline.View, error) {
	var inserted bowtie.Node
	view, err := e.mutate(validation.OpInsertIntoEdge, func() error {
		i, err := e.edgeIndex(edgeID)
		if err != nil {
			return err
		}
		n, err := e.newNode(kind, label)
		if err != nil {
			return err
		}
		old := e.graph.Edges[i]
		n.Position = e.midpoint(old.Source, old.Target)
		if n.IsBarrier() && e.escalatesFrom(old.Source) {
			n.Data.Meta.BarrierType = bowtie.BarrierMitigative
		}

		edges := slices.Delete(slices.Clone(e.graph.Edges), i, i+1)
		e.graph.Edges = append(edges, newEdge(old.Source, n.ID), newEdge(n.ID, old.Target))
		e.graph.Nodes = append(e.graph.Nodes, n)
		inserted = n
		return nil
	})
	return inserted, view, err
}

// escalatesFrom reports whether id is the top event or reachable from it.
// Caller holds the lock.
func (e *Editor) escalatesFrom(id string) bool {
	top := e.topEvent()
	if top == "" {
		return false
	}
	next := make(map[string][]string, len(e.graph.Edges))
	for _, ed := range e.graph.Edges {
		next[ed.Source] = append(next[ed.Source], ed.Target)
	}

	seen := map[string]bool{top: true}
	stack := []string{top}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == id {
			return true
		}
		for _, t := range next[cur] {
			if !seen[t] {
				seen[t] = true
				stack = append(stack, t)
			}
		}
	}
	return false
}

func (e *Editor) midpoint(a, b string) bowtie.Position {
	var pa, pb bowtie.Position
	if i, err := e.nodeIndex(a); err == nil {
		pa = e.graph.Nodes[i].Position
	}
	if i, err := e.nodeIndex(b); err == nil {
		pb = e.graph.Nodes[i].Position
	}
	return bowtie.Position{X: (pa.X + pb.X) / 2, Y: (pa.Y + pb.Y) / 2}
}

// DeleteEdge removes a canonical edge. Synthetic collapse edges only exist
// in the view and are rejected.
func (e *Editor) DeleteEdge(edgeID string) (*pipeline.View, error) {
	return e.mutate(validation.OpDeleteEdge, func() error {
		i, err := e.edgeIndex(edgeID)
		if err != nil {
			return err
		}
		e.graph.Edges = slices.Delete(slices.Clone(e.graph.Edges), i, i+1)
		e.logger.Debug("edge deleted", logging.EdgeID(edgeID))
		return nil
	})
}
