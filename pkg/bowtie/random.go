package bowtie

import (
	"fmt"
	"math/rand"
)

// RandomOptions shapes a generated diagram
type RandomOptions struct {
	Threats      int
	Consequences int
	// MaxBarriers is the longest barrier chain on any branch
	MaxBarriers int
	// FailRate is the probability in [0,1] that a barrier is failed
	FailRate float64
	// CrossLinks adds extra edges between random nodes, cycles included
	CrossLinks int
}

// Random builds a well-formed bow-tie with one top event. Branches are
// chains of barriers; cross links make the graph deliberately messy so
// evaluation code sees shared barriers and cycles.
func Random(r *rand.Rand, opts RandomOptions) Graph {
	b := NewBuilder().Labeled("top", KindTopEvent, "Top Event").Risk(1+r.Intn(5), 1+r.Intn(5))

	chain := func(prefix string, i int, bt BarrierType) []string {
		var ids []string
		n := 0
		if opts.MaxBarriers > 0 {
			n = r.Intn(opts.MaxBarriers + 1)
		}
		for j := 0; j < n; j++ {
			id := fmt.Sprintf("%s%d_b%d", prefix, i, j)
			b.Barrier(id, bt, r.Float64() < opts.FailRate).Effectiveness(r.Intn(101))
			ids = append(ids, id)
		}
		return ids
	}

	for i := 0; i < opts.Threats; i++ {
		id := fmt.Sprintf("t%d", i)
		b.Labeled(id, KindThreat, id).Risk(1+r.Intn(5), 1+r.Intn(5))
		ids := append([]string{id}, chain("t", i, BarrierPreventive)...)
		b.Chain(append(ids, "top")...)
	}
	for i := 0; i < opts.Consequences; i++ {
		id := fmt.Sprintf("c%d", i)
		ids := append([]string{"top"}, chain("c", i, BarrierMitigative)...)
		b.Labeled(id, KindConsequence, id).Risk(1+r.Intn(5), 1+r.Intn(5))
		b.Chain(append(ids, id)...)
	}

	g := b.Graph()
	for i := 0; i < opts.CrossLinks && len(g.Nodes) > 1; i++ {
		src := g.Nodes[r.Intn(len(g.Nodes))].ID
		dst := g.Nodes[r.Intn(len(g.Nodes))].ID
		if src == dst {
			continue
		}
		g.Edges = append(g.Edges, Edge{
			ID:     fmt.Sprintf("x%d:%s->%s", i, src, dst),
			Source: src,
			Target: dst,
			Type:   "default",
		})
	}
	return g
}
