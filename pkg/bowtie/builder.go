package bowtie

import "fmt"

// Builder provides a fluent interface for assembling diagrams in code
// (scenarios, fixtures, the CLI demo)
type Builder struct {
	g Graph
}

// NewBuilder creates an empty builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Node adds a node of the given kind with its default label
func (b *Builder) Node(id string, kind Kind) *Builder {
	return b.Labeled(id, kind, DefaultLabel(kind))
}

// Labeled adds a node of the given kind with an explicit label
func (b *Builder) Labeled(id string, kind Kind, label string) *Builder {
	n := Node{
		ID:   id,
		Type: "default",
		Data: NodeData{BaseLabel: label, Label: label, Meta: NodeMeta{Kind: kind}},
	}
	ApplyDefaults(&n)
	b.g.Nodes = append(b.g.Nodes, n)
	return b
}

// Barrier adds a barrier node
func (b *Builder) Barrier(id string, bt BarrierType, failed bool) *Builder {
	b.Labeled(id, KindBarrier, id)
	m := &b.g.Nodes[len(b.g.Nodes)-1].Data.Meta
	m.BarrierType = bt
	m.Failed = failed
	return b
}

// Label replaces the base label of the most recently added node
func (b *Builder) Label(label string) *Builder {
	if len(b.g.Nodes) > 0 {
		d := &b.g.Nodes[len(b.g.Nodes)-1].Data
		d.BaseLabel = label
		d.Label = label
	}
	return b
}

// Effectiveness sets the effectiveness of the most recently added barrier
func (b *Builder) Effectiveness(pct int) *Builder {
	if len(b.g.Nodes) > 0 {
		b.g.Nodes[len(b.g.Nodes)-1].Data.Meta.Effectiveness = pct
	}
	return b
}

// Risk sets severity and likelihood of the most recently added node
func (b *Builder) Risk(severity, likelihood int) *Builder {
	if len(b.g.Nodes) > 0 {
		m := &b.g.Nodes[len(b.g.Nodes)-1].Data.Meta
		m.Severity = severity
		m.Likelihood = likelihood
	}
	return b
}

// Edge connects source to target. The edge id is "source->target".
func (b *Builder) Edge(source, target string) *Builder {
	b.g.Edges = append(b.g.Edges, Edge{
		ID:     EdgeID(source, target),
		Source: source,
		Target: target,
		Type:   "default",
	})
	return b
}

// Chain connects ids pairwise in order
func (b *Builder) Chain(ids ...string) *Builder {
	for i := 0; i+1 < len(ids); i++ {
		b.Edge(ids[i], ids[i+1])
	}
	return b
}

// Graph returns a copy of the assembled graph
func (b *Builder) Graph() Graph {
	return b.g.Clone()
}

// EdgeID is the id the builder gives to the edge source→target
func EdgeID(source, target string) string {
	return fmt.Sprintf("%s->%s", source, target)
}
