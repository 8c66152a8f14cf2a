package editor

import (
	"fmt"

	"github.com/dd0wney/cluso-bowtie/pkg/bowtie"
	"github.com/dd0wney/cluso-bowtie/pkg/layout"
	"github.com/dd0wney/cluso-bowtie/pkg/pipeline"
	"github.com/dd0wney/cluso-bowtie/pkg/spotlight"
	"github.com/dd0wney/cluso-bowtie/pkg/validation"
)

// ToggleCollapse collapses or expands the branch anchored at a threat or a
// consequence
func (e *Editor) ToggleCollapse(id string) (*pipeline.View, error) {
	return e.mutate(validation.OpToggleCollapse, func() error {
		i, err := e.nodeIndex(id)
		if err != nil {
			return err
		}
		n := e.graph.Nodes[i]
		switch n.Kind() {
		case bowtie.KindThreat:
			e.state.CollapsedThreats = pipeline.Toggle(e.state.CollapsedThreats, id)
		case bowtie.KindConsequence:
			e.state.CollapsedConsequences = pipeline.Toggle(e.state.CollapsedConsequences, id)
		default:
			return fmt.Errorf("%w: %s is a %q", ErrNotCollapsible, id, n.Kind())
		}
		return nil
	})
}

// ToggleHighlight lights the branch from id to the top event, or clears it
// if any part of that branch is already lit
func (e *Editor) ToggleHighlight(id string) (*pipeline.View, error) {
	return e.mutate(validation.OpToggleHighlight, func() error {
		if _, err := e.nodeIndex(id); err != nil {
			return err
		}
		e.graph = spotlight.Toggle(e.graph, id)
		return nil
	})
}

// ClearHighlights removes every highlight
func (e *Editor) ClearHighlights() (*pipeline.View, error) {
	return e.mutate(validation.OpClearHighlights, func() error {
		e.graph = spotlight.Clear(e.graph)
		return nil
	})
}

// AutoLayout repositions every node in bow-tie columns around the top event
func (e *Editor) AutoLayout() (*pipeline.View, error) {
	return e.mutate(validation.OpAutoLayout, func() error {
		e.graph = layout.Apply(e.graph, layout.NewBowTie(layout.DefaultConfig()))
		return nil
	})
}
