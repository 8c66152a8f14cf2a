package propagation

import (
	"github.com/dd0wney/cluso-bowtie/pkg/bowtie"
)

// Risk band thresholds and colours
const (
	RiskHigh   = 20.0
	RiskMedium = 12.0

	ColorRiskHigh   = "#fecaca"
	ColorRiskMedium = "#fde68a"
	ColorRiskLow    = "#dcfce7"

	ColorBarrierStrong = "#dcfce7"
	ColorBarrierFair   = "#fde68a"
	ColorBarrierWeak   = "#fee2e2"
)

// RiskColor returns the background band for a residual risk value
func RiskColor(v float64) string {
	switch {
	case v >= RiskHigh:
		return ColorRiskHigh
	case v >= RiskMedium:
		return ColorRiskMedium
	default:
		return ColorRiskLow
	}
}

// BarrierColor tints a barrier by its effectiveness percentage
func BarrierColor(effectiveness int) string {
	e := clampPct(effectiveness)
	switch {
	case e >= 75:
		return ColorBarrierStrong
	case e >= 40:
		return ColorBarrierFair
	default:
		return ColorBarrierWeak
	}
}

func clampPct(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// CombinedEffectiveness combines independent barrier effectiveness
// percentages: 1 - Π(1 - eᵢ/100), each value clamped to [0,100] first.
// The result is a fraction in [0,1].
func CombinedEffectiveness(pcts ...int) float64 {
	remaining := 1.0
	for _, p := range pcts {
		remaining *= 1 - float64(clampPct(p))/100
	}
	return 1 - remaining
}

// ScoreRisk returns a copy of g with base, current and residual risk set on
// threats, the top event and consequences.
//
// A threat is reduced by the active preventive barriers lying on any of its
// paths to the top event. The top event's current risk is the sum of the
// residuals of the threats that reach it. Each consequence weighs the top
// event residual by its own severity × likelihood and is reduced by the
// active mitigative barriers between the top event and itself. Without a top
// event nothing propagates to the right half.
func ScoreRisk(g bowtie.Graph, opts Options) bowtie.Graph {
	out := g.Clone()
	ix := bowtie.IndexOf(out)
	adj := bowtie.NewAdjacency(out)
	pos := out.NodeIndex()
	top := ix.TopEventID

	base := func(m bowtie.NodeMeta) float64 {
		return float64(m.Severity * m.Likelihood)
	}

	sumThreats := 0.0
	for _, id := range ix.IDs(bowtie.KindThreat) {
		m := &out.Nodes[pos[id]].Data.Meta
		m.BaseRisk = base(*m)

		var effs []int
		if top != "" {
			paths, _ := EnumeratePaths(adj, id, top, opts.MaxPathsPerThreat)
			effs = barrierEffectiveness(adj, paths, bowtie.BarrierPreventive)
		}
		m.ResidualRisk = m.BaseRisk * (1 - CombinedEffectiveness(effs...))
		m.CurrentRisk = m.ResidualRisk

		if top != "" && adj.Reachable(id, true)[top] {
			sumThreats += m.ResidualRisk
		}
	}

	topResidual := 0.0
	if top != "" {
		m := &out.Nodes[pos[top]].Data.Meta
		m.BaseRisk = base(*m)
		m.CurrentRisk = sumThreats
		m.ResidualRisk = sumThreats
		topResidual = sumThreats
	}

	for _, id := range ix.IDs(bowtie.KindConsequence) {
		m := &out.Nodes[pos[id]].Data.Meta
		m.BaseRisk = base(*m)
		m.CurrentRisk = topResidual * m.BaseRisk

		var effs []int
		if top != "" {
			paths, _ := EnumeratePaths(adj, top, id, opts.MaxPathsPerThreat)
			effs = barrierEffectiveness(adj, paths, bowtie.BarrierMitigative)
		}
		m.ResidualRisk = m.CurrentRisk * (1 - CombinedEffectiveness(effs...))
	}

	return out
}

// barrierEffectiveness collects the effectiveness of each distinct active
// barrier of type bt found on any of the paths
func barrierEffectiveness(adj *bowtie.Adjacency, paths []Path, bt bowtie.BarrierType) []int {
	seen := make(map[string]bool)
	var effs []int
	for _, p := range paths {
		for _, id := range p.Nodes {
			if seen[id] {
				continue
			}
			seen[id] = true
			n, ok := adj.Node(id)
			if !ok || !n.IsBarrier() || n.Data.Meta.Failed || n.Data.Meta.BarrierType != bt {
				continue
			}
			effs = append(effs, n.Data.Meta.Effectiveness)
		}
	}
	return effs
}

// RiskStyle overlays risk-band backgrounds onto the base styles. Breach
// borders are kept.
func RiskStyle(g bowtie.Graph) bowtie.Graph {
	out := g.Clone()
	for i := range out.Nodes {
		n := &out.Nodes[i]
		if n.Style == nil {
			n.Style = bowtie.BaseNodeStyle(*n)
		}
		m := n.Data.Meta
		switch m.Kind {
		case bowtie.KindThreat, bowtie.KindTopEvent, bowtie.KindConsequence:
			n.Style.Background = RiskColor(m.ResidualRisk)
		case bowtie.KindBarrier:
			if !m.Failed {
				n.Style.Background = BarrierColor(m.Effectiveness)
			}
		}
	}
	return out
}
