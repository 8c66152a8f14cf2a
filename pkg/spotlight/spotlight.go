// Package spotlight highlights one branch of a bow-tie and dims the rest.
//
// A branch is the shortest path between a node and the top event, searched
// forwards first and then backwards. Nodes that cannot reach the top event
// at all fall back to their undirected connected component.
package spotlight

import (
	"container/list"

	"github.com/dd0wney/cluso-bowtie/pkg/bowtie"
)

// Render hints for the dimmed/emphasised states
const (
	DimOpacity     = 0.25
	DimFilter      = "grayscale(100%)"
	EmphasisWidth  = 1.0
	DefaultOpacity = 1.0
)

// Branch is a set of node and edge ids, in discovery order
type Branch struct {
	Nodes []string
	Edges []string
}

// Empty reports whether the branch has no nodes
func (b Branch) Empty() bool {
	return len(b.Nodes) == 0
}

// FindBranch returns the branch containing start. It is empty when start is
// not a node of g. Kinds are resolved first, so a top event known only by its
// legacy id prefix is still found.
func FindBranch(g bowtie.Graph, start string) Branch {
	adj := bowtie.NewAdjacency(g)
	if !adj.Has(start) {
		return Branch{}
	}

	_, ix := bowtie.Normalize(g)
	if top := ix.TopEventID; top != "" {
		if b, ok := pathTo(adj, start, top, true); ok {
			return b
		}
		if b, ok := pathTo(adj, start, top, false); ok {
			return b
		}
	}
	return component(g, adj, start)
}

type hop struct {
	parent string
	edge   string
}

// pathTo runs a BFS from start to target, following edges forward or
// backward, and rebuilds the path from parent pointers
func pathTo(adj *bowtie.Adjacency, start, target string, forward bool) (Branch, bool) {
	if start == target {
		return Branch{Nodes: []string{start}}, true
	}

	parents := map[string]hop{start: {}}
	queue := list.New()
	queue.PushBack(start)

	for queue.Len() > 0 {
		id := queue.Remove(queue.Front()).(string)

		edges := adj.Outgoing(id)
		if !forward {
			edges = adj.Incoming(id)
		}
		for _, e := range edges {
			next := e.Target
			if !forward {
				next = e.Source
			}
			if _, seen := parents[next]; seen {
				continue
			}
			parents[next] = hop{parent: id, edge: e.ID}
			if next == target {
				return rebuild(parents, start, target), true
			}
			queue.PushBack(next)
		}
	}
	return Branch{}, false
}

func rebuild(parents map[string]hop, start, target string) Branch {
	var b Branch
	for id := target; id != start; id = parents[id].parent {
		b.Nodes = append(b.Nodes, id)
		b.Edges = append(b.Edges, parents[id].edge)
	}
	b.Nodes = append(b.Nodes, start)

	// Walked target→start; flip so the branch reads from start
	for i, j := 0, len(b.Nodes)-1; i < j; i, j = i+1, j-1 {
		b.Nodes[i], b.Nodes[j] = b.Nodes[j], b.Nodes[i]
	}
	for i, j := 0, len(b.Edges)-1; i < j; i, j = i+1, j-1 {
		b.Edges[i], b.Edges[j] = b.Edges[j], b.Edges[i]
	}
	return b
}

// component collects the undirected connected component of start and every
// edge inside it
func component(g bowtie.Graph, adj *bowtie.Adjacency, start string) Branch {
	seen := map[string]bool{start: true}
	b := Branch{Nodes: []string{start}}
	queue := list.New()
	queue.PushBack(start)

	visit := func(id string) {
		if !seen[id] {
			seen[id] = true
			b.Nodes = append(b.Nodes, id)
			queue.PushBack(id)
		}
	}

	for queue.Len() > 0 {
		id := queue.Remove(queue.Front()).(string)
		for _, e := range adj.Outgoing(id) {
			visit(e.Target)
		}
		for _, e := range adj.Incoming(id) {
			visit(e.Source)
		}
	}

	for _, e := range g.Edges {
		if seen[e.Source] && seen[e.Target] {
			b.Edges = append(b.Edges, e.ID)
		}
	}
	return b
}

// Toggle flips the highlight of start's branch on a copy of g. If any node of
// the branch is already highlighted the whole branch is cleared, otherwise
// every node and edge in it is highlighted.
func Toggle(g bowtie.Graph, start string) bowtie.Graph {
	out := g.Clone()
	// Branch edges are matched by id
	bowtie.AssignEdgeIDs(out.Edges)
	b := FindBranch(out, start)
	if b.Empty() {
		return out
	}

	nodes := make(map[string]bool, len(b.Nodes))
	for _, id := range b.Nodes {
		nodes[id] = true
	}
	edges := make(map[string]bool, len(b.Edges))
	for _, id := range b.Edges {
		edges[id] = true
	}

	on := true
	for _, n := range out.Nodes {
		if nodes[n.ID] && n.Data.Meta.Highlighted {
			on = false
			break
		}
	}

	for i := range out.Nodes {
		if nodes[out.Nodes[i].ID] {
			out.Nodes[i].Data.Meta.Highlighted = on
		}
	}
	for i := range out.Edges {
		if edges[out.Edges[i].ID] {
			out.Edges[i].Data.Highlighted = on
		}
	}
	return out
}

// Clear removes every highlight
func Clear(g bowtie.Graph) bowtie.Graph {
	out := g.Clone()
	for i := range out.Nodes {
		out.Nodes[i].Data.Meta.Highlighted = false
	}
	for i := range out.Edges {
		out.Edges[i].Data.Highlighted = false
	}
	return out
}

// Active reports whether anything in g is highlighted
func Active(g bowtie.Graph) bool {
	for _, n := range g.Nodes {
		if n.Data.Meta.Highlighted {
			return true
		}
	}
	for _, e := range g.Edges {
		if e.Data.Highlighted {
			return true
		}
	}
	return false
}

// Style applies the spotlight render hints to a copy of g. With nothing
// highlighted every element is shown at full opacity. Otherwise highlighted
// elements are emphasised and the rest dimmed. A synthetic collapse edge
// counts as highlighted when both of its ends are.
func Style(g bowtie.Graph) bowtie.Graph {
	out := g.Clone()
	active := Active(out)

	lit := make(map[string]bool, len(out.Nodes))
	for i := range out.Nodes {
		n := &out.Nodes[i]
		lit[n.ID] = n.Data.Meta.Highlighted
		if n.Style == nil {
			n.Style = bowtie.BaseNodeStyle(*n)
		}
		switch {
		case !active:
			n.Style.Opacity = DefaultOpacity
			n.Style.Filter = ""
		case n.Data.Meta.Highlighted:
			n.Style.Opacity = DefaultOpacity
			n.Style.Filter = ""
			n.Style.BorderWidth += EmphasisWidth
		default:
			n.Style.Opacity = DimOpacity
			n.Style.Filter = DimFilter
		}
	}

	for i := range out.Edges {
		e := &out.Edges[i]
		if e.Style == nil {
			e.Style = bowtie.BaselineEdgeStyle()
		}
		if e.Data.SyntheticCollapse && lit[e.Source] && lit[e.Target] {
			e.Data.Highlighted = true
		}
		switch {
		case !active:
			e.Style.Opacity = DefaultOpacity
		case e.Data.Highlighted:
			e.Style.Opacity = DefaultOpacity
			e.Style.StrokeWidth += EmphasisWidth
		default:
			e.Style.Opacity = DimOpacity
		}
	}
	return out
}
