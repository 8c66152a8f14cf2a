package propagation

import (
	"github.com/dd0wney/cluso-bowtie/pkg/bowtie"
)

// Path is a simple directed path: Nodes[i] -> Nodes[i+1] via Edges[i]
type Path struct {
	Nodes []string
	Edges []string
}

// EnumeratePaths returns every simple directed path from `from` to `to`.
// A path ends the first time it reaches `to`. limit caps the number of
// paths returned (0 = unlimited); the second result reports whether the cap
// was hit.
//
// Algorithm: iterative depth-first search with an explicit stack of frames.
// Each frame remembers which outgoing edge to try next. The on-path set holds
// exactly the nodes of the current partial path and is unwound on backtrack,
// so a node may appear on many different paths but never twice on one.
func EnumeratePaths(adj *bowtie.Adjacency, from, to string, limit int) ([]Path, bool) {
	if !adj.Has(from) || !adj.Has(to) || from == to {
		return nil, false
	}

	type frame struct {
		node string
		next int
	}

	stack := []frame{{node: from}}
	onPath := map[string]bool{from: true}
	nodes := []string{from}
	edges := make([]string, 0)
	paths := make([]Path, 0)

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		out := adj.Outgoing(top.node)

		if top.next >= len(out) {
			// Exhausted: backtrack
			delete(onPath, top.node)
			stack = stack[:len(stack)-1]
			nodes = nodes[:len(nodes)-1]
			if len(edges) > 0 {
				edges = edges[:len(edges)-1]
			}
			continue
		}

		e := out[top.next]
		top.next++

		if onPath[e.Target] {
			continue
		}

		if e.Target == to {
			paths = append(paths, Path{
				Nodes: append(append([]string(nil), nodes...), to),
				Edges: append(append([]string(nil), edges...), e.ID),
			})
			if limit > 0 && len(paths) >= limit {
				return paths, true
			}
			continue
		}

		onPath[e.Target] = true
		stack = append(stack, frame{node: e.Target})
		nodes = append(nodes, e.Target)
		edges = append(edges, e.ID)
	}

	return paths, false
}
