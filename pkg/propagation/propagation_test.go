package propagation

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/dd0wney/cluso-bowtie/pkg/bowtie"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func meta(t *testing.T, g bowtie.Graph, id string) bowtie.NodeMeta {
	t.Helper()
	n, ok := g.FindNode(id)
	require.True(t, ok, "node %s missing", id)
	return n.Data.Meta
}

func edge(t *testing.T, g bowtie.Graph, source, target string) bowtie.Edge {
	t.Helper()
	e, ok := g.FindEdge(bowtie.EdgeID(source, target))
	require.True(t, ok, "edge %s->%s missing", source, target)
	return e
}

func TestPropagate_NoBarrierBreach(t *testing.T) {
	g := bowtie.NewBuilder().
		Node("t", bowtie.KindThreat).
		Node("te", bowtie.KindTopEvent).
		Chain("t", "te").
		Graph()

	out := Propagate(g)

	assert.True(t, meta(t, out, "t").Breached)
	assert.True(t, meta(t, out, "te").Breached)
	e := edge(t, out, "t", "te")
	assert.True(t, e.Data.Hot)
	assert.True(t, e.Animated)
	assert.Equal(t, bowtie.ColorBreach, e.Style.Stroke)

	// Input untouched
	assert.False(t, g.Nodes[0].Data.Meta.Breached)
	assert.Nil(t, g.Edges[0].Style)
}

func TestPropagate_AllFailedBreach(t *testing.T) {
	g := bowtie.NewBuilder().
		Node("t", bowtie.KindThreat).
		Barrier("b1", bowtie.BarrierPreventive, true).
		Barrier("b2", bowtie.BarrierPreventive, true).
		Node("te", bowtie.KindTopEvent).
		Chain("t", "b1", "b2", "te").
		Graph()

	out := Propagate(g)

	assert.True(t, meta(t, out, "t").Breached)
	assert.False(t, meta(t, out, "t").PartiallyBreached)
	assert.True(t, meta(t, out, "te").Breached)
	for _, e := range out.Edges {
		assert.True(t, e.Data.Hot, "edge %s should be hot", e.ID)
	}
}

func TestPropagate_PartialBreach(t *testing.T) {
	g := bowtie.NewBuilder().
		Node("t", bowtie.KindThreat).
		Barrier("b1", bowtie.BarrierPreventive, true).
		Barrier("b2", bowtie.BarrierPreventive, false).
		Node("te", bowtie.KindTopEvent).
		Chain("t", "b1", "b2", "te").
		Graph()

	report := Analyze(g)
	out := report.Apply(g)

	assert.True(t, meta(t, out, "t").PartiallyBreached)
	assert.False(t, meta(t, out, "t").Breached)
	assert.False(t, meta(t, out, "te").Breached)
	assert.False(t, report.TopEventBreached)

	hot := map[string]bool{}
	for _, e := range out.Edges {
		if e.Data.Hot {
			hot[e.ID] = true
		}
	}
	assert.Equal(t, map[string]bool{"t->b1": true, "b1->b2": true}, hot)

	require.Len(t, report.Paths, 1)
	assert.Equal(t, VerdictPartial, report.Paths[0].Verdict)
	assert.Equal(t, "b2", report.Paths[0].BlockedBy)
}

func TestPropagate_FirstBarrierActiveIsSafe(t *testing.T) {
	g := bowtie.NewBuilder().
		Node("t", bowtie.KindThreat).
		Barrier("b1", bowtie.BarrierPreventive, false).
		Barrier("b2", bowtie.BarrierPreventive, true).
		Node("te", bowtie.KindTopEvent).
		Chain("t", "b1", "b2", "te").
		Graph()

	report := Analyze(g)
	out := report.Apply(g)

	assert.False(t, meta(t, out, "t").Breached)
	assert.False(t, meta(t, out, "t").PartiallyBreached)
	assert.Empty(t, report.HotEdges)
	assert.Equal(t, 1, report.Count(VerdictSafe))
}

func TestPropagate_FullWinsOverPartial(t *testing.T) {
	g := bowtie.NewBuilder().
		Node("t", bowtie.KindThreat).
		Barrier("b1", bowtie.BarrierPreventive, true).
		Barrier("b2", bowtie.BarrierPreventive, false).
		Node("te", bowtie.KindTopEvent).
		Chain("t", "b1", "b2", "te").
		Edge("t", "te").
		Graph()

	report := Analyze(g)
	out := report.Apply(g)

	assert.True(t, meta(t, out, "t").Breached)
	assert.False(t, meta(t, out, "t").PartiallyBreached)
	assert.Equal(t, 1, report.Count(VerdictFull))
	assert.Equal(t, 1, report.Count(VerdictPartial))
	// Hot edges of the partial path are still shown
	assert.True(t, report.HotEdges["t->b1"])
	assert.False(t, report.HotEdges["b2->te"])
}

func escalationGraph(mitigativeFailed bool) bowtie.Graph {
	return bowtie.NewBuilder().
		Node("t", bowtie.KindThreat).
		Node("te", bowtie.KindTopEvent).
		Barrier("m", bowtie.BarrierMitigative, mitigativeFailed).
		Node("c", bowtie.KindConsequence).
		Chain("t", "te", "m", "c").
		Graph()
}

func TestPropagate_MitigativeStop(t *testing.T) {
	out := Propagate(escalationGraph(false))

	assert.True(t, meta(t, out, "te").Breached)
	assert.True(t, edge(t, out, "te", "m").Data.Hot)
	assert.False(t, edge(t, out, "m", "c").Data.Hot)
	assert.False(t, edge(t, out, "m", "c").Animated)
	assert.False(t, meta(t, out, "c").Breached)
}

func TestPropagate_MitigativePassThrough(t *testing.T) {
	out := Propagate(escalationGraph(true))

	assert.True(t, edge(t, out, "te", "m").Data.Hot)
	assert.True(t, edge(t, out, "m", "c").Data.Hot)
	assert.True(t, meta(t, out, "c").Breached)
}

func TestPropagate_BarrierTypeDecidesWhereItActs(t *testing.T) {
	t.Run("active preventive barrier on the consequence side", func(t *testing.T) {
		g := bowtie.NewBuilder().
			Node("t", bowtie.KindThreat).
			Node("te", bowtie.KindTopEvent).
			Barrier("b", bowtie.BarrierPreventive, false).
			Node("c", bowtie.KindConsequence).
			Chain("t", "te", "b", "c").
			Graph()

		out := Propagate(g)

		assert.True(t, meta(t, out, "te").Breached)
		assert.True(t, edge(t, out, "b", "c").Data.Hot)
		assert.True(t, meta(t, out, "c").Breached)
	})

	t.Run("active mitigative barrier on the threat side", func(t *testing.T) {
		g := bowtie.NewBuilder().
			Node("t", bowtie.KindThreat).
			Barrier("m", bowtie.BarrierMitigative, false).
			Node("te", bowtie.KindTopEvent).
			Chain("t", "m", "te").
			Graph()

		report := Analyze(g)
		out := report.Apply(g)

		assert.Equal(t, 1, report.Count(VerdictFull))
		assert.True(t, meta(t, out, "t").Breached)
		assert.True(t, meta(t, out, "te").Breached)
		assert.True(t, edge(t, out, "m", "te").Data.Hot)
	})

	t.Run("failed mitigative barrier before an active preventive one", func(t *testing.T) {
		g := bowtie.NewBuilder().
			Node("t", bowtie.KindThreat).
			Barrier("m", bowtie.BarrierMitigative, true).
			Barrier("b", bowtie.BarrierPreventive, false).
			Node("te", bowtie.KindTopEvent).
			Chain("t", "m", "b", "te").
			Graph()

		report := Analyze(g)

		require.Len(t, report.Paths, 1)
		assert.Equal(t, VerdictSafe, report.Paths[0].Verdict)
		assert.Equal(t, "b", report.Paths[0].BlockedBy)
	})
}

func TestPropagate_ConsequenceIsSink(t *testing.T) {
	g := bowtie.NewBuilder().
		Node("t", bowtie.KindThreat).
		Node("te", bowtie.KindTopEvent).
		Node("c1", bowtie.KindConsequence).
		Node("c2", bowtie.KindConsequence).
		Chain("t", "te", "c1", "c2").
		Graph()

	out := Propagate(g)

	assert.True(t, meta(t, out, "c1").Breached)
	assert.True(t, edge(t, out, "te", "c1").Data.Hot)
	assert.False(t, edge(t, out, "c1", "c2").Data.Hot)
	assert.False(t, meta(t, out, "c2").Breached)
}

func TestPropagate_RightHalfQuietWithoutBreach(t *testing.T) {
	g := bowtie.NewBuilder().
		Node("t", bowtie.KindThreat).
		Barrier("b", bowtie.BarrierPreventive, false).
		Node("te", bowtie.KindTopEvent).
		Node("c", bowtie.KindConsequence).
		Chain("t", "b", "te", "c").
		Graph()

	out := Propagate(g)

	assert.False(t, meta(t, out, "te").Breached)
	assert.False(t, meta(t, out, "c").Breached)
	assert.False(t, edge(t, out, "te", "c").Data.Hot)
}

func TestPropagate_Hazards(t *testing.T) {
	g := bowtie.NewBuilder().
		Node("h", bowtie.KindHazard).
		Node("h2", bowtie.KindHazard).
		Node("t", bowtie.KindThreat).
		Node("te", bowtie.KindTopEvent).
		Chain("h", "te").
		Chain("h2", "t", "te").
		Graph()

	out := Propagate(g)

	assert.True(t, meta(t, out, "h").Breached)
	assert.False(t, meta(t, out, "h2").Breached, "only direct edges into the top event count")
	assert.False(t, edge(t, out, "h", "te").Data.Hot)
}

func TestPropagate_MissingTopEvent(t *testing.T) {
	g := bowtie.NewBuilder().
		Node("t", bowtie.KindThreat).
		Node("c", bowtie.KindConsequence).
		Chain("t", "c").
		Graph()

	report := Analyze(g)
	out := report.Apply(g)

	assert.Empty(t, report.TopEventID)
	assert.Empty(t, report.Paths)
	for _, n := range out.Nodes {
		assert.False(t, n.Data.Meta.Breached)
	}
	assert.Equal(t, bowtie.ColorEdgeBaseline, out.Edges[0].Style.Stroke)
}

func TestPropagate_MultipleTopEventsBreachNothing(t *testing.T) {
	g := bowtie.NewBuilder().
		Node("t", bowtie.KindThreat).
		Node("te1", bowtie.KindTopEvent).
		Node("te2", bowtie.KindTopEvent).
		Chain("t", "te1").
		Chain("t", "te2").
		Graph()

	report := Analyze(g)
	assert.Empty(t, report.TopEventID)
	assert.Empty(t, report.Breached)
}

func TestPropagate_Cycles(t *testing.T) {
	g := bowtie.NewBuilder().
		Node("t", bowtie.KindThreat).
		Barrier("b", bowtie.BarrierPreventive, true).
		Node("te", bowtie.KindTopEvent).
		Node("c", bowtie.KindConsequence).
		Chain("t", "b", "te", "c").
		Edge("b", "t").
		Edge("te", "t").
		Edge("te", "b").
		Graph()

	report := Analyze(g)
	out := report.Apply(g)

	require.Len(t, report.Paths, 1)
	assert.Equal(t, []string{"t", "b", "te"}, report.Paths[0].Nodes)
	assert.True(t, meta(t, out, "c").Breached)
	assert.True(t, edge(t, out, "te", "t").Data.Hot)
}

func TestPropagate_ClearsStaleState(t *testing.T) {
	g := escalationGraph(true)
	breached := Propagate(g)

	// Repair the barrier on the breached output and propagate again
	for i := range breached.Nodes {
		if breached.Nodes[i].ID == "m" {
			breached.Nodes[i].Data.Meta.Failed = false
		}
	}
	out := Propagate(breached)

	assert.False(t, meta(t, out, "c").Breached)
	assert.False(t, edge(t, out, "m", "c").Data.Hot)
	assert.Equal(t, bowtie.ColorEdgeBaseline, edge(t, out, "m", "c").Style.Stroke)
}

func TestPropagate_DanglingEdgesIgnored(t *testing.T) {
	g := bowtie.NewBuilder().
		Node("t", bowtie.KindThreat).
		Node("te", bowtie.KindTopEvent).
		Chain("t", "ghost", "te").
		Graph()

	report := Analyze(g)

	assert.Empty(t, report.Paths)
	assert.False(t, report.TopEventBreached)
}

func TestEnumeratePaths(t *testing.T) {
	// Diamond with a back edge
	g := bowtie.NewBuilder().
		Node("a", bowtie.KindThreat).
		Node("b", bowtie.KindBarrier).
		Node("c", bowtie.KindBarrier).
		Node("d", bowtie.KindTopEvent).
		Chain("a", "b", "d").
		Chain("a", "c", "d").
		Edge("b", "c").
		Edge("c", "a").
		Graph()
	adj := bowtie.NewAdjacency(g)

	paths, truncated := EnumeratePaths(adj, "a", "d", 0)
	assert.False(t, truncated)

	var got [][]string
	for _, p := range paths {
		got = append(got, p.Nodes)
		assert.Len(t, p.Edges, len(p.Nodes)-1)
	}
	assert.ElementsMatch(t, [][]string{
		{"a", "b", "d"},
		{"a", "b", "c", "d"},
		{"a", "c", "d"},
	}, got)

	limited, truncated := EnumeratePaths(adj, "a", "d", 2)
	assert.True(t, truncated)
	assert.Len(t, limited, 2)

	none, _ := EnumeratePaths(adj, "d", "a", 0)
	assert.Empty(t, none)
	none, _ = EnumeratePaths(adj, "a", "missing", 0)
	assert.Empty(t, none)
}

func TestAnalyzeWithOptions_Truncates(t *testing.T) {
	g := bowtie.NewBuilder().
		Node("t", bowtie.KindThreat).
		Node("x", bowtie.KindBarrier).
		Node("te", bowtie.KindTopEvent).
		Chain("t", "te").
		Chain("t", "x", "te").
		Graph()

	report := AnalyzeWithOptions(g, Options{MaxPathsPerThreat: 1})
	assert.True(t, report.Truncated)
	assert.Len(t, report.Paths, 1)
}

func TestPropagateIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("propagate is idempotent", prop.ForAll(
		func(seed int64, threats, consequences, cross int) bool {
			r := rand.New(rand.NewSource(seed))
			g := bowtie.Random(r, bowtie.RandomOptions{
				Threats:      threats,
				Consequences: consequences,
				MaxBarriers:  3,
				FailRate:     0.5,
				CrossLinks:   cross,
			})
			once := Propagate(g)
			twice := Propagate(once)
			return reflect.DeepEqual(once, twice)
		},
		gen.Int64(),
		gen.IntRange(0, 5),
		gen.IntRange(0, 5),
		gen.IntRange(0, 4),
	))

	properties.Property("breached and partially breached are exclusive", prop.ForAll(
		func(seed int64) bool {
			r := rand.New(rand.NewSource(seed))
			g := bowtie.Random(r, bowtie.RandomOptions{
				Threats: 4, Consequences: 3, MaxBarriers: 3, FailRate: 0.6, CrossLinks: 3,
			})
			for _, n := range Propagate(g).Nodes {
				if n.Data.Meta.Breached && n.Data.Meta.PartiallyBreached {
					return false
				}
			}
			return true
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}
