package layout

import (
	"github.com/dd0wney/cluso-bowtie/pkg/bowtie"
)

// Hierarchical lays nodes out left to right in BFS levels starting from the
// nodes with no incoming edges
type Hierarchical struct {
	config Config
}

// NewHierarchical creates a level layout
func NewHierarchical(config Config) *Hierarchical {
	if config.ColumnWidth == 0 {
		config.ColumnWidth = XBarrier
	}
	if config.RowHeight == 0 {
		config.RowHeight = YStep
	}
	return &Hierarchical{config: config}
}

// Compute returns a position for every node
func (h *Hierarchical) Compute(g bowtie.Graph) map[string]bowtie.Position {
	positions := make(map[string]bowtie.Position, len(g.Nodes))
	if len(g.Nodes) == 0 {
		return positions
	}

	adj := bowtie.NewAdjacency(g)

	roots := make([]string, 0)
	for _, n := range g.Nodes {
		if len(adj.Incoming(n.ID)) == 0 {
			roots = append(roots, n.ID)
		}
	}
	if len(roots) == 0 {
		// Every node is on a cycle; start anywhere
		roots = []string{g.Nodes[0].ID}
	}

	levels := make([][]string, 0)
	visited := make(map[string]bool)
	for _, id := range roots {
		visited[id] = true
	}
	current := roots

	for len(current) > 0 {
		levels = append(levels, current)
		next := make([]string, 0)
		for _, id := range current {
			for _, e := range adj.Outgoing(id) {
				if !visited[e.Target] {
					visited[e.Target] = true
					next = append(next, e.Target)
				}
			}
		}
		current = next
	}

	// Nodes only reachable through a cycle from an unvisited root
	for _, n := range g.Nodes {
		if !visited[n.ID] {
			levels[len(levels)-1] = append(levels[len(levels)-1], n.ID)
		}
	}

	// Centre the levels horizontally on the origin
	shift := float64(len(levels)-1) / 2
	for li, level := range levels {
		x := (float64(li) - shift) * h.config.ColumnWidth
		for i, id := range level {
			positions[id] = bowtie.Position{X: x, Y: float64(Offset(i)) * h.config.RowHeight}
		}
	}
	return positions
}
