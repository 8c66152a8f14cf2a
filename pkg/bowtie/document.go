package bowtie

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMalformedDocument = errors.New("malformed bow-tie document")
	ErrMissingNodes      = errors.New("document has no nodes array")
	ErrMissingEdges      = errors.New("document has no edges array")
)

// Document is the canonical exchange format: {"nodes": [...], "edges": [...]}
type Document struct {
	Nodes []Node `json:"nodes" validate:"required,dive"`
	Edges []Edge `json:"edges" validate:"required,dive"`
}

// Graph returns the document contents as a graph
func (d *Document) Graph() Graph {
	return Graph{Nodes: d.Nodes, Edges: d.Edges}
}

// ParseDocument decodes a canonical document. It rejects anything that is
// not a JSON object carrying both a nodes and an edges array; nothing is
// partially decoded on failure.
func ParseDocument(data []byte) (*Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if top == nil {
		return nil, fmt.Errorf("%w: top level must be an object", ErrMalformedDocument)
	}
	if !isArray(top["nodes"]) {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, ErrMissingNodes)
	}
	if !isArray(top["edges"]) {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, ErrMissingEdges)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return &doc, nil
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// Canonical strips everything that belongs to the view: synthetic edges,
// hidden flags, styles and derived evaluation state. Edges without an id get
// a stable one derived from their endpoints. The returned issues list the
// synthetic edges that were dropped.
func Canonical(g Graph) (Graph, []Issue) {
	var issues []Issue
	out := Graph{
		Nodes: make([]Node, 0, len(g.Nodes)),
		Edges: make([]Edge, 0, len(g.Edges)),
	}
	for _, n := range g.Nodes {
		c := n.Clone()
		c.Hidden = false
		c.Style = nil
		c.Data.Meta.Breached = false
		c.Data.Meta.PartiallyBreached = false
		c.Data.Meta.BaseRisk = 0
		c.Data.Meta.CurrentRisk = 0
		c.Data.Meta.ResidualRisk = 0
		out.Nodes = append(out.Nodes, c)
	}
	for _, e := range g.Edges {
		if e.Data.SyntheticCollapse {
			issues = append(issues, Issue{
				Code:    IssueSyntheticInCanonical,
				EdgeID:  e.ID,
				Message: fmt.Sprintf("synthetic collapse edge %q dropped", e.ID),
			})
			continue
		}
		c := e.Clone()
		c.Style = nil
		c.Animated = false
		c.Data.Hot = false
		if c.Type == "" {
			c.Type = "default"
		}
		out.Edges = append(out.Edges, c)
	}
	AssignEdgeIDs(out.Edges)
	return out, issues
}

// Export renders the canonical form of g as indented JSON
func Export(g Graph) ([]byte, error) {
	canon, _ := Canonical(g)
	doc := Document{Nodes: canon.Nodes, Edges: canon.Edges}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return data, nil
}
