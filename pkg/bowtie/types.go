// Package bowtie holds the bow-tie diagram model: nodes, edges, the canonical
// JSON document and the normalizer that every evaluation pass starts from.
package bowtie

// Kind is the role a node plays in a bow-tie diagram
type Kind string

const (
	KindUnknown     Kind = ""
	KindHazard      Kind = "hazard"
	KindThreat      Kind = "threat"
	KindBarrier     Kind = "barrier"
	KindTopEvent    Kind = "topEvent"
	KindConsequence Kind = "consequence"
)

// Kinds lists the known kinds in diagram order (left to right)
var Kinds = []Kind{KindHazard, KindThreat, KindBarrier, KindTopEvent, KindConsequence}

// BarrierType says which side of the top event a barrier guards
type BarrierType string

const (
	BarrierPreventive BarrierType = "preventive"
	BarrierMitigative BarrierType = "mitigative"
)

// Medium describes how a barrier is realised
type Medium string

const (
	MediumHuman         Medium = "human"
	MediumHardware      Medium = "hardware"
	MediumHumanHardware Medium = "human-hardware"
)

// Position is a canvas coordinate. The engine never reads it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeMeta carries kind-specific metadata plus derived evaluation state
type NodeMeta struct {
	Kind Kind `json:"kind,omitempty"`

	// Barrier fields
	BarrierType       BarrierType `json:"barrierType,omitempty" validate:"omitempty,oneof=preventive mitigative"`
	Failed            bool        `json:"failed"`
	Medium            Medium      `json:"medium,omitempty" validate:"omitempty,oneof=human hardware human-hardware"`
	ResponsibleParty  string      `json:"responsibleParty,omitempty" validate:"max=200"`
	ShowMetadataBlock *bool       `json:"showMetadataBlock,omitempty"`
	Effectiveness     int         `json:"effectiveness,omitempty" validate:"min=0,max=100"`

	// Risk inputs (threats, top event, consequences)
	Severity   int `json:"severity,omitempty" validate:"min=0,max=5"`
	Likelihood int `json:"likelihood,omitempty" validate:"min=0,max=5"`

	// Free-form notes shown under the label when the node is expanded
	Details []string `json:"details,omitempty" validate:"max=50,dive,max=500"`

	// User-toggled; persists across passes
	Highlighted bool `json:"highlighted,omitempty"`

	// Derived every pass, never exported
	Breached          bool    `json:"breached,omitempty"`
	PartiallyBreached bool    `json:"partiallyBreached,omitempty"`
	BaseRisk          float64 `json:"baseRisk,omitempty"`
	CurrentRisk       float64 `json:"currentRisk,omitempty"`
	ResidualRisk      float64 `json:"residualRisk,omitempty"`
}

// NodeData is the label/meta payload of a node
type NodeData struct {
	BaseLabel string   `json:"baseLabel"`
	Label     string   `json:"label"`
	Meta      NodeMeta `json:"meta"`
}

// NodeStyle holds render hints computed for the view graph
type NodeStyle struct {
	Background  string  `json:"background,omitempty"`
	Border      string  `json:"border,omitempty"`
	BorderWidth float64 `json:"borderWidth,omitempty"`
	Opacity     float64 `json:"opacity"`
	Filter      string  `json:"filter,omitempty"`
}

// Node is a single diagram element
type Node struct {
	ID       string     `json:"id" validate:"required"`
	Type     string     `json:"type,omitempty"`
	Position Position   `json:"position"`
	Data     NodeData   `json:"data"`
	Hidden   bool       `json:"hidden,omitempty"`
	Style    *NodeStyle `json:"style,omitempty"`
}

// Kind returns the node's explicit kind
func (n Node) Kind() Kind {
	return n.Data.Meta.Kind
}

// IsBarrier reports whether the node is a barrier
func (n Node) IsBarrier() bool {
	return n.Data.Meta.Kind == KindBarrier
}

// Clone returns a deep copy of the node
func (n Node) Clone() Node {
	c := n
	if n.Data.Meta.Details != nil {
		c.Data.Meta.Details = append([]string(nil), n.Data.Meta.Details...)
	}
	if n.Data.Meta.ShowMetadataBlock != nil {
		v := *n.Data.Meta.ShowMetadataBlock
		c.Data.Meta.ShowMetadataBlock = &v
	}
	if n.Style != nil {
		s := *n.Style
		c.Style = &s
	}
	return c
}

// EdgeData is the payload of an edge
type EdgeData struct {
	SyntheticCollapse bool `json:"syntheticCollapse,omitempty"`
	Highlighted       bool `json:"highlighted,omitempty"`
	Hot               bool `json:"hot,omitempty"`
}

// EdgeStyle holds stroke hints computed for the view graph
type EdgeStyle struct {
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"strokeWidth"`
	Opacity     float64 `json:"opacity"`
	DashArray   string  `json:"strokeDasharray,omitempty"`
}

// Edge is a directed connection from Source to Target
type Edge struct {
	ID           string     `json:"id"`
	Source       string     `json:"source" validate:"required"`
	Target       string     `json:"target" validate:"required"`
	SourceHandle string     `json:"sourceHandle,omitempty"`
	TargetHandle string     `json:"targetHandle,omitempty"`
	Type         string     `json:"type"`
	Animated     bool       `json:"animated,omitempty"`
	Data         EdgeData   `json:"data"`
	Style        *EdgeStyle `json:"style,omitempty"`
}

// Clone returns a deep copy of the edge
func (e Edge) Clone() Edge {
	c := e
	if e.Style != nil {
		s := *e.Style
		c.Style = &s
	}
	return c
}

// Graph is an ordered set of nodes and edges. Node order is significant:
// it is insertion order and drives deterministic output.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Clone returns a deep copy so callers can derive a new graph without
// touching the input
func (g Graph) Clone() Graph {
	c := Graph{
		Nodes: make([]Node, len(g.Nodes)),
		Edges: make([]Edge, len(g.Edges)),
	}
	for i, n := range g.Nodes {
		c.Nodes[i] = n.Clone()
	}
	for i, e := range g.Edges {
		c.Edges[i] = e.Clone()
	}
	return c
}

// NodeIndex maps node id to its position in g.Nodes
func (g Graph) NodeIndex() map[string]int {
	idx := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		idx[n.ID] = i
	}
	return idx
}

// FindNode returns the node with the given id
func (g Graph) FindNode(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// FindEdge returns the edge with the given id
func (g Graph) FindEdge(id string) (Edge, bool) {
	for _, e := range g.Edges {
		if e.ID == id {
			return e, true
		}
	}
	return Edge{}, false
}
