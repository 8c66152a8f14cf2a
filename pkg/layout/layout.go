// Package layout places bow-tie nodes on the canvas. New nodes get the next
// free slot in their column; AutoLayout arranges a whole diagram around the
// top event.
package layout

import (
	"github.com/dd0wney/cluso-bowtie/pkg/bowtie"
)

// Canvas columns and row spacing
const (
	XLeft     = -350.0
	XRight    = 350.0
	XBarrier  = 175.0
	XTopEvent = 0.0
	YStep     = 120.0
)

// Config tunes AutoLayout
type Config struct {
	// ColumnWidth is the horizontal distance between hops from the top event
	ColumnWidth float64
	// RowHeight is the vertical distance between nodes in one column
	RowHeight float64
}

// DefaultConfig matches the slot grid used for new nodes
func DefaultConfig() Config {
	return Config{ColumnWidth: XBarrier, RowHeight: YStep}
}

// Layout computes positions for every node of a graph
type Layout interface {
	Compute(g bowtie.Graph) map[string]bowtie.Position
}

// Apply returns a copy of g with positions from l
func Apply(g bowtie.Graph, l Layout) bowtie.Graph {
	out := g.Clone()
	positions := l.Compute(out)
	for i := range out.Nodes {
		if p, ok := positions[out.Nodes[i].ID]; ok {
			out.Nodes[i].Position = p
		}
	}
	return out
}

// Offset is the signed row of the idx-th node in a column: 0, 1, -1, 2, -2 ...
func Offset(idx int) int {
	if idx <= 0 {
		return 0
	}
	k := (idx + 1) / 2
	if idx%2 == 1 {
		return k
	}
	return -k
}
