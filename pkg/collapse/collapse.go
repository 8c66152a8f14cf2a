// Package collapse folds whole branches of a bow-tie into a single synthetic
// edge. Threat branches fold onto the top event from the left, consequence
// branches from the right. Passes are pure and compose: a node hidden by an
// earlier pass stays hidden.
package collapse

import (
	"github.com/dd0wney/cluso-bowtie/pkg/bowtie"
)

// SyntheticPrefix starts the id of every synthetic collapse edge
const SyntheticPrefix = "collapse:"

// SyntheticEdgeID is the id of the shortcut edge source→target
func SyntheticEdgeID(source, target string) string {
	return SyntheticPrefix + source + "->" + target
}

// IsSynthetic reports whether e was injected by a collapse pass. Synthetic
// edges exist only in the view; they cannot be deleted, split or exported.
func IsSynthetic(e bowtie.Edge) bool {
	return e.Data.SyntheticCollapse
}

type side int

const (
	threatSide side = iota
	consequenceSide
)

// Threats collapses each listed threat branch: every node on some path from
// the threat to the top event is hidden and replaced by one edge
// threat→top event.
func Threats(g bowtie.Graph, anchors []string) bowtie.Graph {
	return collapse(g, anchors, threatSide)
}

// Consequences collapses each listed consequence branch: every node on some
// path from the top event to the consequence is hidden and replaced by one
// edge top event→consequence.
func Consequences(g bowtie.Graph, anchors []string) bowtie.Graph {
	return collapse(g, anchors, consequenceSide)
}

func collapse(g bowtie.Graph, anchors []string, s side) bowtie.Graph {
	out := g.Clone()
	if len(anchors) == 0 {
		return out
	}

	top := bowtie.IndexOf(out).TopEventID
	if top == "" {
		return out
	}

	adj := bowtie.NewAdjacency(out)
	pos := out.NodeIndex()
	hidden := make(map[string]bool)
	for _, n := range out.Nodes {
		if n.Hidden {
			hidden[n.ID] = true
		}
	}

	existing := make(map[string]bool)
	for _, e := range out.Edges {
		if IsSynthetic(e) {
			existing[e.ID] = true
		}
	}

	done := make(map[string]bool, len(anchors))
	for _, anchor := range anchors {
		i, ok := pos[anchor]
		if !ok || anchor == top || done[anchor] || hidden[anchor] {
			continue
		}
		done[anchor] = true

		source, target := anchor, top
		if s == consequenceSide {
			source, target = top, anchor
		}

		forward := adj.Reachable(source, true)
		if !forward[target] {
			continue
		}
		backward := adj.Reachable(target, false)

		for id := range forward {
			if backward[id] && id != anchor && id != top {
				hidden[id] = true
				out.Nodes[pos[id]].Hidden = true
			}
		}

		id := SyntheticEdgeID(source, target)
		if existing[id] {
			continue
		}
		existing[id] = true
		out.Edges = append(out.Edges, syntheticEdge(id, source, target, out.Nodes[i]))
	}

	kept := out.Edges[:0]
	for _, e := range out.Edges {
		if hidden[e.Source] || hidden[e.Target] {
			continue
		}
		kept = append(kept, e)
	}
	out.Edges = kept

	return out
}

// syntheticEdge carries the anchor's breach state: hot when the branch fully
// breaches, dashed amber when it only partially does
func syntheticEdge(id, source, target string, anchor bowtie.Node) bowtie.Edge {
	e := bowtie.Edge{
		ID:     id,
		Source: source,
		Target: target,
		Type:   "default",
		Data:   bowtie.EdgeData{SyntheticCollapse: true},
	}
	switch {
	case anchor.Data.Meta.Breached:
		e.Data.Hot = true
		e.Animated = true
		e.Style = bowtie.HotEdgeStyle()
	case anchor.Data.Meta.PartiallyBreached:
		e.Style = bowtie.PartialEdgeStyle()
	default:
		e.Style = bowtie.BaselineEdgeStyle()
	}
	return e
}
