package pipeline

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/dd0wney/cluso-bowtie/pkg/bowtie"
	"github.com/dd0wney/cluso-bowtie/pkg/logging"
	"github.com/dd0wney/cluso-bowtie/pkg/metrics"
	"github.com/dd0wney/cluso-bowtie/pkg/spotlight"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Legacy-prefixed ids with no explicit kinds, as the original files store them
func legacyGraph() bowtie.Graph {
	g := bowtie.Graph{
		Nodes: []bowtie.Node{
			{ID: "threat_1", Data: bowtie.NodeData{BaseLabel: "Corrosion"}},
			{ID: "barrier_1", Data: bowtie.NodeData{BaseLabel: "Inspection", Meta: bowtie.NodeMeta{Failed: true}}},
			{ID: "barrier_2", Data: bowtie.NodeData{BaseLabel: "Coating", Meta: bowtie.NodeMeta{Failed: true}}},
			{ID: "center_1", Data: bowtie.NodeData{BaseLabel: "Loss of containment"}},
			{ID: "barrier_3", Data: bowtie.NodeData{BaseLabel: "Gas detection", Meta: bowtie.NodeMeta{BarrierType: bowtie.BarrierMitigative}}},
			{ID: "conseq_1", Data: bowtie.NodeData{BaseLabel: "Fire", Meta: bowtie.NodeMeta{Details: []string{"injury"}}}},
			{ID: "conseq_2", Data: bowtie.NodeData{BaseLabel: "Spill"}},
		},
	}
	for _, pair := range [][2]string{
		{"threat_1", "barrier_1"},
		{"barrier_1", "barrier_2"},
		{"barrier_2", "center_1"},
		{"center_1", "barrier_3"},
		{"barrier_3", "conseq_1"},
		{"center_1", "conseq_2"},
	} {
		g.Edges = append(g.Edges, bowtie.Edge{Source: pair[0], Target: pair[1], Type: "default"})
	}
	return g
}

func node(t *testing.T, v *View, id string) bowtie.Node {
	t.Helper()
	n, ok := v.Graph.FindNode(id)
	require.True(t, ok, "node %s missing from view", id)
	return n
}

func TestRun_FullPass(t *testing.T) {
	g := legacyGraph()
	p := New(Options{}, nil, nil)

	v := p.Run(g, State{})

	assert.Equal(t, "center_1", v.Report.TopEventID)
	assert.True(t, node(t, v, "threat_1").Data.Meta.Breached)
	assert.True(t, node(t, v, "center_1").Data.Meta.Breached)
	assert.True(t, node(t, v, "conseq_2").Data.Meta.Breached)
	assert.False(t, node(t, v, "conseq_1").Data.Meta.Breached)

	// Labels are derived from the base label
	assert.True(t, strings.HasPrefix(node(t, v, "barrier_1").Data.Label, "Inspection\n[FAILED] preventive"))
	assert.Equal(t, "Fire", node(t, v, "conseq_1").Data.Label)

	// Everything styled, nothing dimmed
	for _, n := range v.Graph.Nodes {
		require.NotNil(t, n.Style)
		assert.Equal(t, spotlight.DefaultOpacity, n.Style.Opacity)
	}

	// Input untouched
	assert.Empty(t, g.Nodes[0].Data.Meta.Kind)
	assert.Empty(t, g.Edges[0].ID)
	assert.Nil(t, g.Nodes[0].Style)
}

func TestRun_ExpandedDetails(t *testing.T) {
	v := New(Options{}, nil, nil).Run(legacyGraph(), State{Expanded: []string{"conseq_1"}})
	assert.Equal(t, "Fire\nDetails:\n• injury", node(t, v, "conseq_1").Data.Label)
}

func TestRun_CollapseRoundTrip(t *testing.T) {
	g := legacyGraph()
	p := New(Options{}, nil, nil)

	never := p.Run(g, State{})
	collapsed := p.Run(g, State{
		CollapsedThreats:      []string{"threat_1"},
		CollapsedConsequences: []string{"conseq_1"},
	})
	expanded := p.Run(g, State{})

	assert.True(t, node(t, collapsed, "barrier_1").Hidden)
	assert.True(t, node(t, collapsed, "barrier_3").Hidden)

	neverJSON, err := json.Marshal(never.Graph)
	require.NoError(t, err)
	collapsedJSON, err := json.Marshal(collapsed.Graph)
	require.NoError(t, err)
	expandedJSON, err := json.Marshal(expanded.Graph)
	require.NoError(t, err)

	assert.NotEqual(t, string(neverJSON), string(collapsedJSON))
	assert.True(t, bytes.Equal(neverJSON, expandedJSON))
}

func TestRun_CollapsedThreatKeepsBreachOnSyntheticEdge(t *testing.T) {
	v := New(Options{}, nil, nil).Run(legacyGraph(), State{CollapsedThreats: []string{"threat_1"}})

	e, ok := v.Graph.FindEdge("collapse:threat_1->center_1")
	require.True(t, ok)
	assert.True(t, e.Data.Hot)
	assert.True(t, e.Animated)
}

func TestRun_HighlightDimsRest(t *testing.T) {
	g := spotlight.Toggle(legacyGraph(), "conseq_2")
	v := New(Options{}, nil, nil).Run(g, State{})

	assert.Equal(t, spotlight.DefaultOpacity, node(t, v, "conseq_2").Style.Opacity)
	assert.Equal(t, spotlight.DimOpacity, node(t, v, "threat_1").Style.Opacity)
	assert.Equal(t, spotlight.DimFilter, node(t, v, "threat_1").Style.Filter)
}

func TestRun_RiskScoring(t *testing.T) {
	g := bowtie.NewBuilder().
		Labeled("t", bowtie.KindThreat, "Overfill").Risk(5, 5).
		Barrier("b", bowtie.BarrierPreventive, false).Effectiveness(80).
		Labeled("te", bowtie.KindTopEvent, "Release").
		Chain("t", "b", "te").
		Graph()

	v := New(Options{RiskScoring: true}, nil, nil).Run(g, State{})

	threat := node(t, v, "t")
	assert.InDelta(t, 5.0, threat.Data.Meta.ResidualRisk, 1e-9)
	assert.Equal(t, "Overfill\nBase: 25 → Residual: 5", threat.Data.Label)
	assert.Equal(t, "#dcfce7", threat.Style.Background)
}

func TestRun_IssuesSurfaceWithoutFailing(t *testing.T) {
	g := bowtie.NewBuilder().
		Node("t", bowtie.KindThreat).
		Node("te1", bowtie.KindTopEvent).
		Node("te2", bowtie.KindTopEvent).
		Chain("t", "te1").
		Edge("t", "ghost").
		Graph()

	v := New(Options{}, nil, nil).Run(g, State{})

	assert.True(t, v.Index.HasErrors())
	assert.Len(t, bowtie.IssuesOf(v.Issues, bowtie.IssueMultipleTopEvents), 1)
	assert.Len(t, bowtie.IssuesOf(v.Issues, bowtie.IssueDanglingEdge), 1)
	assert.False(t, node(t, v, "t").Data.Meta.Breached)
}

func TestRun_LogsAndRecordsMetrics(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewJSONLogger(&buf, logging.DebugLevel)
	reg := metrics.NewRegistry()

	p := New(Options{MaxPathsPerThreat: 1}, logger, reg)
	g := bowtie.NewBuilder().
		Node("t", bowtie.KindThreat).
		Barrier("b", bowtie.BarrierPreventive, false).
		Node("te", bowtie.KindTopEvent).
		Chain("t", "te").
		Chain("t", "b", "te").
		Graph()
	p.Run(g, State{})

	assert.Contains(t, buf.String(), `"msg":"pipeline pass complete"`)
	assert.Contains(t, buf.String(), `"msg":"path enumeration truncated"`)
	assert.Contains(t, buf.String(), `"component":"pipeline"`)

	families, err := reg.GetPrometheusRegistry().Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["bowtie_pipeline_runs_total"])
	assert.True(t, names["bowtie_pipeline_truncated_total"])
}

func TestState(t *testing.T) {
	s := State{CollapsedThreats: []string{"t1"}, Expanded: []string{"c1"}}

	assert.True(t, s.Collapsed("t1"))
	assert.False(t, s.Collapsed("c1"))
	assert.True(t, s.IsExpanded("c1"))
	assert.False(t, s.Empty())

	forgotten := s.Forget("t1")
	assert.False(t, forgotten.Collapsed("t1"))
	assert.True(t, s.Collapsed("t1"), "Forget must not modify the receiver")

	assert.Equal(t, []string{"a", "b"}, Toggle([]string{"a"}, "b"))
	assert.Empty(t, Toggle([]string{"a"}, "a"))

	c := s.Clone()
	c.CollapsedThreats[0] = "changed"
	assert.Equal(t, "t1", s.CollapsedThreats[0])
}
