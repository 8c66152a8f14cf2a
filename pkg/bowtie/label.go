package bowtie

import (
	"fmt"
	"math"
	"strings"
)

var defaultLabels = map[Kind]string{
	KindHazard:      "Hazard",
	KindThreat:      "New threat",
	KindBarrier:     "Barrier",
	KindTopEvent:    "Top Event",
	KindConsequence: "New consequence",
}

// DefaultLabel is the text a new node of kind k starts with
func DefaultLabel(k Kind) string {
	if l, ok := defaultLabels[k]; ok {
		return l
	}
	return "Node"
}

// DeriveLabel builds the display label from the user's base label and the
// node's current metadata. When expanded, detail notes are appended.
func DeriveLabel(n Node, expanded bool) string {
	m := n.Data.Meta
	base := strings.TrimSpace(n.Data.BaseLabel)
	if base == "" {
		base = DefaultLabel(m.Kind)
	}
	lines := []string{base}

	if m.Kind == KindBarrier && (m.ShowMetadataBlock == nil || *m.ShowMetadataBlock) {
		status := "ACTIVE"
		if m.Failed {
			status = "FAILED"
		}
		lines = append(lines, fmt.Sprintf("[%s] %s", status, m.BarrierType))
		if m.Medium != "" {
			lines = append(lines, "Medium: "+string(m.Medium))
		}
		if m.ResponsibleParty != "" {
			lines = append(lines, "Responsible: "+m.ResponsibleParty)
		}
		if m.Effectiveness > 0 {
			lines = append(lines, fmt.Sprintf("Effectiveness: %d%%", m.Effectiveness))
		}
	}

	if m.BaseRisk > 0 {
		switch m.Kind {
		case KindThreat:
			lines = append(lines, fmt.Sprintf("Base: %d → Residual: %d", roundInt(m.BaseRisk), roundInt(m.ResidualRisk)))
		case KindTopEvent, KindConsequence:
			lines = append(lines, fmt.Sprintf("Base: %d | Current: %d → Residual: %d",
				roundInt(m.BaseRisk), roundInt(m.CurrentRisk), roundInt(m.ResidualRisk)))
		}
	}

	if expanded && len(m.Details) > 0 {
		lines = append(lines, "Details:")
		for _, d := range m.Details {
			lines = append(lines, "• "+d)
		}
	}
	return strings.Join(lines, "\n")
}

func roundInt(f float64) int {
	return int(math.Round(f))
}
