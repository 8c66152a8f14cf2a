package bowtie

import "container/list"

// Adjacency is a directed adjacency view of a graph. Edges whose source or
// target is missing are left out, so traversals never see them.
type Adjacency struct {
	out   map[string][]Edge
	in    map[string][]Edge
	nodes map[string]Node
}

// NewAdjacency indexes g's edges by source and by target
func NewAdjacency(g Graph) *Adjacency {
	a := &Adjacency{
		out:   make(map[string][]Edge, len(g.Nodes)),
		in:    make(map[string][]Edge, len(g.Nodes)),
		nodes: make(map[string]Node, len(g.Nodes)),
	}
	for _, n := range g.Nodes {
		a.nodes[n.ID] = n
	}
	for _, e := range g.Edges {
		if _, ok := a.nodes[e.Source]; !ok {
			continue
		}
		if _, ok := a.nodes[e.Target]; !ok {
			continue
		}
		a.out[e.Source] = append(a.out[e.Source], e)
		a.in[e.Target] = append(a.in[e.Target], e)
	}
	return a
}

// Has reports whether id is a node of the graph
func (a *Adjacency) Has(id string) bool {
	_, ok := a.nodes[id]
	return ok
}

// Node returns the node with the given id
func (a *Adjacency) Node(id string) (Node, bool) {
	n, ok := a.nodes[id]
	return n, ok
}

// Outgoing returns the edges leaving id, in graph order
func (a *Adjacency) Outgoing(id string) []Edge {
	return a.out[id]
}

// Incoming returns the edges entering id, in graph order
func (a *Adjacency) Incoming(id string) []Edge {
	return a.in[id]
}

// Reachable returns every node reachable from start, start included.
// With forward=false the edges are followed backwards.
func (a *Adjacency) Reachable(start string, forward bool) map[string]bool {
	seen := make(map[string]bool)
	if !a.Has(start) {
		return seen
	}

	queue := list.New()
	queue.PushBack(start)
	seen[start] = true

	for queue.Len() > 0 {
		id := queue.Remove(queue.Front()).(string)
		edges := a.out[id]
		if !forward {
			edges = a.in[id]
		}
		for _, e := range edges {
			next := e.Target
			if !forward {
				next = e.Source
			}
			if !seen[next] {
				seen[next] = true
				queue.PushBack(next)
			}
		}
	}
	return seen
}
