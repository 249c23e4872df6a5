package domain

import "fmt"

// Phase is a stage in the discovery conversation's fixed progression.
type Phase string

const (
	PhaseVision     Phase = "vision"
	PhaseGaps       Phase = "gaps"
	PhaseFounderFit Phase = "founder_fit"
	PhaseSynthesis  Phase = "synthesis"
	PhaseComplete   Phase = "complete"
)

// phaseOrder defines the strict total order of phases. The detector and the
// orchestrator advance strictly along this sequence; it is the single source
// of truth for ordering, not declaration order.
var phaseOrder = []Phase{
	PhaseVision,
	PhaseGaps,
	PhaseFounderFit,
	PhaseSynthesis,
	PhaseComplete,
}

// Index returns the position of p in the phase order, or -1 for an unknown phase.
func (p Phase) Index() int {
	for i, ph := range phaseOrder {
		if ph == p {
			return i
		}
	}
	return -1
}

// Valid reports whether p is one of the five known phases.
func (p Phase) Valid() bool {
	return p.Index() >= 0
}

// Next returns the phase that follows p in the total order.
// Complete has no successor and returns itself.
func (p Phase) Next() Phase {
	i := p.Index()
	if i < 0 {
		panic(fmt.Sprintf("domain: unknown phase %q", string(p)))
	}
	if i == len(phaseOrder)-1 {
		return p
	}
	return phaseOrder[i+1]
}

// Before reports whether p precedes other in the total order.
// Both phases must be valid.
func (p Phase) Before(other Phase) bool {
	return p.Index() < other.Index()
}

// ParsePhase converts a wire string into a Phase.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown phase %q", s)
	}
	return p, nil
}

// Phases returns the phases in their total order.
func Phases() []Phase {
	out := make([]Phase, len(phaseOrder))
	copy(out, phaseOrder)
	return out
}
