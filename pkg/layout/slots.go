package layout

import (
	"sync"

	"github.com/dd0wney/cluso-bowtie/pkg/bowtie"
)

// Slots hands out positions for newly added nodes, one counter per column.
// Threats stack on the far left, consequences on the far right, preventive
// and mitigative barriers halfway in between.
type Slots struct {
	mu       sync.Mutex
	counters map[string]int
}

// NewSlots creates an empty slot allocator
func NewSlots() *Slots {
	return &Slots{counters: make(map[string]int)}
}

// Next returns the position for a new node and advances its column
func (s *Slots) Next(kind bowtie.Kind, bt bowtie.BarrierType) bowtie.Position {
	key, x := column(kind, bt)
	if key == "" {
		return bowtie.Position{X: x}
	}

	s.mu.Lock()
	idx := s.counters[key]
	s.counters[key] = idx + 1
	s.mu.Unlock()

	return bowtie.Position{X: x, Y: float64(Offset(idx)) * YStep}
}

// Reset forgets every column, used after an import or auto layout
func (s *Slots) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters = make(map[string]int)
}

func column(kind bowtie.Kind, bt bowtie.BarrierType) (string, float64) {
	switch kind {
	case bowtie.KindThreat:
		return "threat", XLeft
	case bowtie.KindConsequence:
		return "consequence", XRight
	case bowtie.KindHazard:
		return "hazard", XLeft - XBarrier
	case bowtie.KindBarrier:
		if bt == bowtie.BarrierMitigative {
			return "mitigative", XBarrier
		}
		return "preventive", -XBarrier
	}
	// The top event sits at the origin
	return "", XTopEvent
}
