package propagation

import (
	"testing"

	"github.com/dd0wney/cluso-bowtie/pkg/bowtie"
	"github.com/stretchr/testify/assert"
)

func TestCombinedEffectiveness(t *testing.T) {
	tests := []struct {
		name string
		in   []int
		want float64
	}{
		{"none", nil, 0},
		{"single", []int{40}, 0.4},
		{"independent pair", []int{50, 50}, 0.75},
		{"clamped high", []int{150}, 1},
		{"clamped low", []int{-20, 50}, 0.5},
		{"zero does nothing", []int{0, 0, 30}, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CombinedEffectiveness(tt.in...), 1e-9)
		})
	}
}

func TestRiskColor(t *testing.T) {
	assert.Equal(t, ColorRiskHigh, RiskColor(20))
	assert.Equal(t, ColorRiskMedium, RiskColor(12))
	assert.Equal(t, ColorRiskLow, RiskColor(11.9))

	assert.Equal(t, ColorBarrierStrong, BarrierColor(75))
	assert.Equal(t, ColorBarrierFair, BarrierColor(40))
	assert.Equal(t, ColorBarrierWeak, BarrierColor(39))
	assert.Equal(t, ColorBarrierStrong, BarrierColor(400))
}

func TestScoreRisk(t *testing.T) {
	g := bowtie.NewBuilder().
		Node("t1", bowtie.KindThreat).Risk(4, 3).
		Node("t2", bowtie.KindThreat).Risk(2, 2).
		Node("t3", bowtie.KindThreat).Risk(5, 5).
		Barrier("p", bowtie.BarrierPreventive, false).Effectiveness(50).
		Barrier("pf", bowtie.BarrierPreventive, true).Effectiveness(90).
		Node("te", bowtie.KindTopEvent).Risk(5, 4).
		Barrier("m", bowtie.BarrierMitigative, false).Effectiveness(50).
		Node("c", bowtie.KindConsequence).Risk(2, 2).
		Chain("t1", "p", "te").
		Chain("t2", "pf", "te").
		Chain("te", "m", "c").
		Graph()

	out := ScoreRisk(g, Options{})

	t1 := meta(t, out, "t1")
	assert.Equal(t, 12.0, t1.BaseRisk)
	assert.InDelta(t, 6.0, t1.ResidualRisk, 1e-9)

	// Failed barriers do not reduce risk
	assert.InDelta(t, 4.0, meta(t, out, "t2").ResidualRisk, 1e-9)

	// t3 does not reach the top event
	assert.InDelta(t, 25.0, meta(t, out, "t3").ResidualRisk, 1e-9)

	te := meta(t, out, "te")
	assert.Equal(t, 20.0, te.BaseRisk)
	assert.InDelta(t, 10.0, te.CurrentRisk, 1e-9)
	assert.InDelta(t, 10.0, te.ResidualRisk, 1e-9)

	c := meta(t, out, "c")
	assert.Equal(t, 4.0, c.BaseRisk)
	assert.InDelta(t, 40.0, c.CurrentRisk, 1e-9)
	assert.InDelta(t, 20.0, c.ResidualRisk, 1e-9)
}

func TestScoreRisk_NoTopEvent(t *testing.T) {
	g := bowtie.NewBuilder().
		Node("t", bowtie.KindThreat).Risk(3, 3).
		Node("c", bowtie.KindConsequence).Risk(3, 3).
		Graph()

	out := ScoreRisk(g, Options{})

	assert.InDelta(t, 9.0, meta(t, out, "t").ResidualRisk, 1e-9)
	assert.Zero(t, meta(t, out, "c").CurrentRisk)
	assert.Zero(t, meta(t, out, "c").ResidualRisk)
}

func TestRiskStyle_KeepsBreachBorder(t *testing.T) {
	g := bowtie.NewBuilder().
		Node("t", bowtie.KindThreat).Risk(5, 5).
		Node("te", bowtie.KindTopEvent).
		Chain("t", "te").
		Graph()

	out := RiskStyle(ScoreRisk(Propagate(g), Options{}))
	n, _ := out.FindNode("t")

	assert.Equal(t, ColorRiskHigh, n.Style.Background)
	assert.Equal(t, bowtie.ColorBreach, n.Style.Border)
}
