package layout

import (
	"container/list"

	"github.com/dd0wney/cluso-bowtie/pkg/bowtie"
)

// BowTie arranges nodes in columns by their hop distance from the top event:
// causes to the left, escalation to the right. Within a column nodes keep
// graph order and alternate around the centre line. A diagram without a
// single top event falls back to Hierarchical.
type BowTie struct {
	config Config
}

// NewBowTie creates a bow-tie layout
func NewBowTie(config Config) *BowTie {
	if config.ColumnWidth == 0 {
		config.ColumnWidth = XBarrier
	}
	if config.RowHeight == 0 {
		config.RowHeight = YStep
	}
	return &BowTie{config: config}
}

// Compute returns a position for every node
func (b *BowTie) Compute(g bowtie.Graph) map[string]bowtie.Position {
	top := bowtie.IndexOf(g).TopEventID
	if top == "" {
		return NewHierarchical(b.config).Compute(g)
	}

	adj := bowtie.NewAdjacency(g)
	left := distances(adj, top, false)
	right := distances(adj, top, true)

	columns := make(map[int][]string)
	var order []int
	place := func(col int, id string) {
		if _, ok := columns[col]; !ok {
			order = append(order, col)
		}
		columns[col] = append(columns[col], id)
	}

	for _, n := range g.Nodes {
		switch {
		case n.ID == top:
			place(0, n.ID)
		case left[n.ID] > 0 && (right[n.ID] == 0 || left[n.ID] <= right[n.ID]):
			place(-left[n.ID], n.ID)
		case right[n.ID] > 0:
			place(right[n.ID], n.ID)
		default:
			place(fallbackColumn(n), n.ID)
		}
	}

	positions := make(map[string]bowtie.Position, len(g.Nodes))
	for _, col := range order {
		for i, id := range columns[col] {
			positions[id] = bowtie.Position{
				X: float64(col) * b.config.ColumnWidth,
				Y: float64(Offset(i)) * b.config.RowHeight,
			}
		}
	}
	return positions
}

// distances runs a BFS from start and returns the hop count of every node
// reached (start excluded)
func distances(adj *bowtie.Adjacency, start string, forward bool) map[string]int {
	dist := map[string]int{start: 0}
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
			if _, seen := dist[next]; !seen {
				dist[next] = dist[id] + 1
				queue.PushBack(next)
			}
		}
	}
	delete(dist, start)
	return dist
}

// fallbackColumn places nodes not yet wired to the top event
func fallbackColumn(n bowtie.Node) int {
	switch n.Kind() {
	case bowtie.KindHazard:
		return -3
	case bowtie.KindThreat:
		return -2
	case bowtie.KindConsequence:
		return 2
	case bowtie.KindBarrier:
		if n.Data.Meta.BarrierType == bowtie.BarrierMitigative {
			return 1
		}
		return -1
	}
	return 0
}
