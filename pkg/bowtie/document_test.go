package bowtie

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocument_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"not json", `{{{`, ErrMalformedDocument},
		{"array at top level", `[]`, ErrMalformedDocument},
		{"null", `null`, ErrMalformedDocument},
		{"missing nodes", `{"edges": []}`, ErrMissingNodes},
		{"missing edges", `{"nodes": []}`, ErrMissingEdges},
		{"nodes not an array", `{"nodes": {}, "edges": []}`, ErrMissingNodes},
		{"edges null", `{"nodes": [], "edges": null}`, ErrMissingEdges},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseDocument([]byte(tt.input))
			require.Error(t, err)
			assert.Nil(t, doc)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.True(t, errors.Is(err, ErrMalformedDocument))
		})
	}
}

func TestParseDocument_ReadsCanonicalFormat(t *testing.T) {
	input := `{
	  "nodes": [
	    {"id": "center_1", "position": {"x": 0, "y": 0}, "type": "default",
	     "data": {"baseLabel": "Loss of containment", "label": "x", "meta": {"kind": "center", "severity": 4, "likelihood": 2}}},
	    {"id": "b1", "position": {"x": -175, "y": 0},
	     "data": {"baseLabel": "PSV", "label": "PSV", "meta": {"kind": "barrier", "barrierType": "preventive", "failed": true}}}
	  ],
	  "edges": [
	    {"id": "e1", "source": "b1", "target": "center_1", "sourceHandle": "r", "type": "default"}
	  ]
	}`

	doc, err := ParseDocument([]byte(input))
	require.NoError(t, err)
	require.Len(t, doc.Nodes, 2)
	require.Len(t, doc.Edges, 1)

	assert.Equal(t, Kind("center"), doc.Nodes[0].Data.Meta.Kind)
	assert.Equal(t, 4, doc.Nodes[0].Data.Meta.Severity)
	assert.True(t, doc.Nodes[1].Data.Meta.Failed)
	assert.Equal(t, "r", doc.Edges[0].SourceHandle)
	assert.Equal(t, -175.0, doc.Nodes[1].Position.X)
}

func TestExport_ExcludesViewState(t *testing.T) {
	g := NewBuilder().
		Node("t", KindThreat).
		Node("te", KindTopEvent).
		Chain("t", "te").
		Graph()
	g.Nodes[0].Data.Meta.Breached = true
	g.Nodes[0].Data.Meta.ResidualRisk = 4
	g.Nodes[0].Hidden = true
	g.Nodes[0].Style = &NodeStyle{Opacity: 0.25}
	g.Edges[0].Data.Hot = true
	g.Edges[0].Animated = true
	g.Edges = append(g.Edges, Edge{
		ID: "collapse:t->te", Source: "t", Target: "te",
		Data: EdgeData{SyntheticCollapse: true},
	})

	data, err := Export(g)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "syntheticCollapse")
	assert.NotContains(t, string(data), "breached")
	assert.NotContains(t, string(data), "hidden")
	assert.NotContains(t, string(data), "animated")
	assert.NotContains(t, string(data), "residualRisk")

	doc, err := ParseDocument(data)
	require.NoError(t, err)
	assert.Len(t, doc.Edges, 1)
	assert.Equal(t, "t->te", doc.Edges[0].ID)
}

func TestCanonical_FillsEdgeIDs(t *testing.T) {
	g := Graph{Edges: []Edge{{Source: "a", Target: "b"}}}
	canon, issues := Canonical(g)
	assert.Empty(t, issues)
	assert.Equal(t, "e_a_b", canon.Edges[0].ID)
	assert.Equal(t, "default", canon.Edges[0].Type)

	parallel := Graph{Edges: []Edge{{Source: "a", Target: "b"}, {Source: "a", Target: "b"}}}
	canon, _ = Canonical(parallel)
	assert.Equal(t, "e_a_b", canon.Edges[0].ID)
	assert.Equal(t, "e_a_b_2", canon.Edges[1].ID)
}

func TestExport_RoundTrip(t *testing.T) {
	g := NewBuilder().
		Labeled("threat_1", KindThreat, "Corrosion").Risk(4, 3).
		Barrier("barrier_1", BarrierPreventive, false).Effectiveness(60).
		Labeled("center_1", KindTopEvent, "Loss of containment").
		Chain("threat_1", "barrier_1", "center_1").
		Graph()

	first, err := Export(g)
	require.NoError(t, err)
	doc, err := ParseDocument(first)
	require.NoError(t, err)
	second, err := Export(doc.Graph())
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(first, &raw))
	assert.True(t, strings.Contains(string(first), `"failed": false`))
}
