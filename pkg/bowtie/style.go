package bowtie

// Palette used for render hints
const (
	ColorBreach       = "#dc2626"
	ColorPartial      = "#f59e0b"
	ColorEdgeBaseline = "#94a3b8"
	ColorFailed       = "#e5e7eb"
	ColorBorder       = "#555555"
)

var kindBackgrounds = map[Kind]string{
	KindHazard:      "#fef9c3",
	KindThreat:      "#f6f8fa",
	KindBarrier:     "#e8f5e9",
	KindTopEvent:    "#ffffff",
	KindConsequence: "#fff7ed",
}

// Stroke widths
const (
	EdgeWidthBaseline = 1.5
	EdgeWidthHot      = 2.5
	NodeBorderWidth   = 1.0
)

// BaseNodeStyle returns the breach-aware style of a node before any
// spotlight adjustments
func BaseNodeStyle(n Node) *NodeStyle {
	m := n.Data.Meta
	s := &NodeStyle{
		Background:  kindBackgrounds[m.Kind],
		Border:      ColorBorder,
		BorderWidth: NodeBorderWidth,
		Opacity:     1,
	}
	if m.Kind == KindTopEvent {
		s.BorderWidth = 2
	}
	if m.Kind == KindBarrier && m.Failed {
		s.Background = ColorFailed
		s.Border = ColorBreach
	}
	switch {
	case m.Breached:
		s.Border = ColorBreach
		s.BorderWidth = 2
	case m.PartiallyBreached:
		s.Border = ColorPartial
		s.BorderWidth = 2
	}
	return s
}

// BaselineEdgeStyle is the stroke of an edge that carries no breach
func BaselineEdgeStyle() *EdgeStyle {
	return &EdgeStyle{Stroke: ColorEdgeBaseline, StrokeWidth: EdgeWidthBaseline, Opacity: 1}
}

// HotEdgeStyle is the stroke of an edge on a breached path
func HotEdgeStyle() *EdgeStyle {
	return &EdgeStyle{Stroke: ColorBreach, StrokeWidth: EdgeWidthHot, Opacity: 1}
}

// PartialEdgeStyle marks a collapsed branch that is only partially breached
func PartialEdgeStyle() *EdgeStyle {
	return &EdgeStyle{Stroke: ColorPartial, StrokeWidth: EdgeWidthHot, Opacity: 1, DashArray: "6 3"}
}
