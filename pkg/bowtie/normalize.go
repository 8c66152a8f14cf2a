package bowtie

import (
	"fmt"
	"strings"
)

// Default values applied to nodes that arrive without them
const (
	DefaultSeverity   = 3
	DefaultLikelihood = 3
	DefaultBarrier    = BarrierPreventive
	DefaultMedium     = MediumHuman
)

// IssueCode classifies a problem found while normalizing a graph
type IssueCode string

const (
	IssueUnknownKind          IssueCode = "unknown_kind"
	IssueMissingTopEvent      IssueCode = "missing_top_event"
	IssueMultipleTopEvents    IssueCode = "multiple_top_events"
	IssueDanglingEdge         IssueCode = "dangling_edge"
	IssueSyntheticInCanonical IssueCode = "synthetic_in_canonical"
)

// Issue is a non-fatal finding. The engine keeps going; callers decide
// whether to surface it.
type Issue struct {
	Code    IssueCode `json:"code"`
	NodeID  string    `json:"nodeId,omitempty"`
	EdgeID  string    `json:"edgeId,omitempty"`
	Message string    `json:"message"`
}

// Index groups node ids by kind and locates the authoritative top event
type Index struct {
	ByKind     map[Kind][]string
	TopEventID string
	Issues     []Issue
}

// IDs returns the ids of every node of kind k, in graph order
func (ix *Index) IDs(k Kind) []string {
	if ix == nil {
		return nil
	}
	return ix.ByKind[k]
}

// HasErrors reports whether the graph cannot be evaluated as a bow-tie
func (ix *Index) HasErrors() bool {
	for _, is := range ix.Issues {
		if is.Code == IssueMultipleTopEvents {
			return true
		}
	}
	return false
}

var legacyPrefixes = []struct {
	prefix string
	kind   Kind
}{
	{"center_", KindTopEvent},
	{"top_", KindTopEvent},
	{"threat_", KindThreat},
	{"barrier_", KindBarrier},
	{"conseq_", KindConsequence},
	{"consequence_", KindConsequence},
	{"hazard_", KindHazard},
}

// ParseKind maps a stored kind string, including the legacy aliases, to a Kind
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hazard":
		return KindHazard, true
	case "threat":
		return KindThreat, true
	case "barrier":
		return KindBarrier, true
	case "topevent", "top_event", "top-event", "center", "centre":
		return KindTopEvent, true
	case "consequence", "conseq":
		return KindConsequence, true
	}
	return KindUnknown, false
}

// InferKind derives a kind from the legacy id prefix convention
func InferKind(id string) (Kind, bool) {
	lower := strings.ToLower(id)
	for _, p := range legacyPrefixes {
		if strings.HasPrefix(lower, p.prefix) {
			return p.kind, true
		}
	}
	return KindUnknown, false
}

// ApplyDefaults fills metadata the node is missing. Explicit values are never
// overwritten, so applying it twice is a no-op.
func ApplyDefaults(n *Node) {
	m := &n.Data.Meta
	switch m.Kind {
	case KindBarrier:
		if m.BarrierType == "" {
			m.BarrierType = DefaultBarrier
		}
		if m.Medium == "" {
			m.Medium = DefaultMedium
		}
		if m.ShowMetadataBlock == nil {
			show := true
			m.ShowMetadataBlock = &show
		}
		if m.Effectiveness < 0 {
			m.Effectiveness = 0
		}
		if m.Effectiveness > 100 {
			m.Effectiveness = 100
		}
	case KindThreat, KindTopEvent, KindConsequence:
		if m.Severity == 0 {
			m.Severity = DefaultSeverity
		}
		if m.Likelihood == 0 {
			m.Likelihood = DefaultLikelihood
		}
	}
}

// Normalize resolves every node's kind, applies default metadata, gives
// id-less edges a stable id and builds the kind index. The input graph is
// not modified.
func Normalize(g Graph) (Graph, *Index) {
	out := g.Clone()
	for i := range out.Nodes {
		n := &out.Nodes[i]
		if k, ok := ParseKind(string(n.Data.Meta.Kind)); ok {
			n.Data.Meta.Kind = k
		} else if k, ok := InferKind(n.ID); ok {
			n.Data.Meta.Kind = k
		} else {
			n.Data.Meta.Kind = KindUnknown
		}
		ApplyDefaults(n)
	}
	AssignEdgeIDs(out.Edges)
	return out, IndexOf(out)
}

// AssignEdgeIDs gives every id-less edge the id e_<source>_<target>, adding
// a _2, _3, ... suffix when that id is already taken. Edges that have an id
// keep it, so assigning twice is a no-op.
func AssignEdgeIDs(edges []Edge) {
	taken := make(map[string]bool, len(edges))
	for _, e := range edges {
		if e.ID != "" {
			taken[e.ID] = true
		}
	}
	for i := range edges {
		if edges[i].ID != "" {
			continue
		}
		base := fmt.Sprintf("e_%s_%s", edges[i].Source, edges[i].Target)
		id := base
		for n := 2; taken[id]; n++ {
			id = fmt.Sprintf("%s_%d", base, n)
		}
		taken[id] = true
		edges[i].ID = id
	}
}

// IndexOf builds the kind index of an already normalized graph
func IndexOf(g Graph) *Index {
	ix := &Index{ByKind: make(map[Kind][]string)}
	ids := make(map[string]bool, len(g.Nodes))

	for _, n := range g.Nodes {
		ids[n.ID] = true
		k := n.Kind()
		if k == KindUnknown {
			ix.Issues = append(ix.Issues, Issue{
				Code:    IssueUnknownKind,
				NodeID:  n.ID,
				Message: fmt.Sprintf("node %q has no kind and none can be inferred", n.ID),
			})
			continue
		}
		ix.ByKind[k] = append(ix.ByKind[k], n.ID)
	}

	switch tops := ix.ByKind[KindTopEvent]; len(tops) {
	case 0:
		ix.Issues = append(ix.Issues, Issue{
			Code:    IssueMissingTopEvent,
			Message: "diagram has no top event",
		})
	case 1:
		ix.TopEventID = tops[0]
	default:
		ix.Issues = append(ix.Issues, Issue{
			Code:    IssueMultipleTopEvents,
			Message: fmt.Sprintf("diagram has %d top events (%s); exactly one is allowed", len(tops), strings.Join(tops, ", ")),
		})
	}

	for _, e := range g.Edges {
		if !ids[e.Source] || !ids[e.Target] {
			ix.Issues = append(ix.Issues, Issue{
				Code:    IssueDanglingEdge,
				EdgeID:  e.ID,
				Message: fmt.Sprintf("edge %q connects %q to %q but one end does not exist", e.ID, e.Source, e.Target),
			})
		}
	}
	return ix
}

// IssuesOf filters issues by code
func IssuesOf(issues []Issue, code IssueCode) []Issue {
	var out []Issue
	for _, is := range issues {
		if is.Code == code {
			out = append(out, is)
		}
	}
	return out
}
