// Package propagation computes breach state for a bow-tie diagram.
//
// The left half of the diagram is evaluated path by path: every simple path
// from a threat to the top event is classified as a full breach, a partial
// breach or safe, depending on the barriers it crosses. When the top event is
// breached the right half is walked forward until active mitigative barriers
// stop the escalation or consequences are reached.
package propagation

import (
	"github.com/dd0wney/cluso-bowtie/pkg/bowtie"
)

// Verdict classifies a single threat → top event path
type Verdict string

const (
	// VerdictSafe means the first preventive barrier on the path is active
	VerdictSafe Verdict = "safe"
	// VerdictPartial means failed preventive barriers precede the first active one
	VerdictPartial Verdict = "partial"
	// VerdictFull means the path has no active preventive barrier
	VerdictFull Verdict = "full"
)

// PathResult is the evaluation of one enumerated path
type PathResult struct {
	Threat    string   `json:"threat"`
	Nodes     []string `json:"nodes"`
	Edges     []string `json:"edges"`
	Verdict   Verdict  `json:"verdict"`
	BlockedBy string   `json:"blockedBy,omitempty"`
	HotEdges  []string `json:"hotEdges,omitempty"`
}

// Options tunes an analysis run
type Options struct {
	// MaxPathsPerThreat caps path enumeration per threat. Zero means no cap.
	MaxPathsPerThreat int
}

// Report is the outcome of a propagation analysis. It is derived entirely
// from the graph and can be applied to any clone of it.
type Report struct {
	TopEventID        string          `json:"topEventId"`
	TopEventBreached  bool            `json:"topEventBreached"`
	Paths             []PathResult    `json:"paths"`
	HotEdges          map[string]bool `json:"hotEdges"`
	Breached          map[string]bool `json:"breached"`
	PartiallyBreached map[string]bool `json:"partiallyBreached"`
	Truncated         bool            `json:"truncated,omitempty"`
}

func newReport(topEventID string) *Report {
	return &Report{
		TopEventID:        topEventID,
		Paths:             make([]PathResult, 0),
		HotEdges:          make(map[string]bool),
		Breached:          make(map[string]bool),
		PartiallyBreached: make(map[string]bool),
	}
}

// Count returns the number of paths with the given verdict
func (r *Report) Count(v Verdict) int {
	n := 0
	for _, p := range r.Paths {
		if p.Verdict == v {
			n++
		}
	}
	return n
}

// Analyze evaluates the graph with default options. Kinds must already be
// resolved (see bowtie.Normalize).
func Analyze(g bowtie.Graph) *Report {
	return AnalyzeWithOptions(g, Options{})
}

// AnalyzeWithOptions evaluates both halves of the diagram. It never fails:
// a missing or ambiguous top event simply yields a report with no breaches.
func AnalyzeWithOptions(g bowtie.Graph, opts Options) *Report {
	ix := bowtie.IndexOf(g)
	r := newReport(ix.TopEventID)
	if ix.TopEventID == "" {
		return r
	}

	adj := bowtie.NewAdjacency(g)
	top := ix.TopEventID

	for _, threat := range ix.IDs(bowtie.KindThreat) {
		paths, truncated := EnumeratePaths(adj, threat, top, opts.MaxPathsPerThreat)
		if truncated {
			r.Truncated = true
		}
		for _, p := range paths {
			res := evaluatePath(adj, threat, p)
			r.Paths = append(r.Paths, res)
			for _, id := range res.HotEdges {
				r.HotEdges[id] = true
			}
			switch res.Verdict {
			case VerdictFull:
				r.Breached[threat] = true
				r.TopEventBreached = true
			case VerdictPartial:
				r.PartiallyBreached[threat] = true
			}
		}
	}

	// Full wins over partial
	for id := range r.Breached {
		delete(r.PartiallyBreached, id)
	}

	if !r.TopEventBreached {
		return r
	}
	r.Breached[top] = true

	r.walkEscalation(adj, top)

	for _, hazard := range ix.IDs(bowtie.KindHazard) {
		for _, e := range adj.Outgoing(hazard) {
			if e.Target == top {
				r.Breached[hazard] = true
				break
			}
		}
	}

	return r
}

// evaluatePath classifies a threat → top event path by the preventive
// barriers it crosses, in path order. Mitigative barriers and other nodes on
// the left half are passed through.
func evaluatePath(adj *bowtie.Adjacency, threat string, p Path) PathResult {
	res := PathResult{Threat: threat, Nodes: p.Nodes, Edges: p.Edges}

	sawFailed := false
	// Endpoints are the threat and the top event; barriers sit in between
	for j := 1; j < len(p.Nodes)-1; j++ {
		n, _ := adj.Node(p.Nodes[j])
		if !isBarrierOfType(n, bowtie.BarrierPreventive) {
			continue
		}
		if n.Data.Meta.Failed {
			sawFailed = true
			continue
		}

		res.BlockedBy = n.ID
		if sawFailed {
			// Edges[j-1] is the edge into the blocking barrier
			res.Verdict = VerdictPartial
			res.HotEdges = append([]string(nil), p.Edges[:j]...)
		} else {
			res.Verdict = VerdictSafe
		}
		return res
	}

	res.Verdict = VerdictFull
	res.HotEdges = append([]string(nil), p.Edges...)
	return res
}

func isBarrierOfType(n bowtie.Node, bt bowtie.BarrierType) bool {
	return n.IsBarrier() && n.Data.Meta.BarrierType == bt
}

// walkEscalation marks the right half hot from a breached top event.
// Active mitigative barriers stop the breach and consequences absorb it.
// Every other node, failed mitigative barriers included, passes it on.
func (r *Report) walkEscalation(adj *bowtie.Adjacency, top string) {
	visited := map[string]bool{top: true}
	stack := []string{top}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, e := range adj.Outgoing(id) {
			r.HotEdges[e.ID] = true

			next, _ := adj.Node(e.Target)
			switch {
			case next.Kind() == bowtie.KindConsequence:
				r.Breached[next.ID] = true
				continue
			case isBarrierOfType(next, bowtie.BarrierMitigative) && !next.Data.Meta.Failed:
				continue
			}

			if !visited[next.ID] {
				visited[next.ID] = true
				stack = append(stack, next.ID)
			}
		}
	}
}

// Apply stamps the report onto a copy of g. Every breach flag and edge style
// is recomputed, so nothing from a previous pass survives.
func (r *Report) Apply(g bowtie.Graph) bowtie.Graph {
	out := g.Clone()

	for i := range out.Nodes {
		n := &out.Nodes[i]
		n.Data.Meta.Breached = r.Breached[n.ID]
		n.Data.Meta.PartiallyBreached = r.PartiallyBreached[n.ID]
		n.Style = bowtie.BaseNodeStyle(*n)
	}

	for i := range out.Edges {
		e := &out.Edges[i]
		hot := r.HotEdges[e.ID]
		e.Data.Hot = hot
		e.Animated = hot
		if hot {
			e.Style = bowtie.HotEdgeStyle()
		} else {
			e.Style = bowtie.BaselineEdgeStyle()
		}
	}

	return out
}

// Propagate returns a copy of g with breach flags and edge styles applied
func Propagate(g bowtie.Graph) bowtie.Graph {
	return Analyze(g).Apply(g)
}
