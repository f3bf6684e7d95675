package study

import "fmt"

// Phase is one of the five ordered states of a study session.
type Phase string

const (
	PhaseConsent        Phase = "CONSENT"
	PhasePreAssessment  Phase = "PRE_ASSESSMENT"
	PhaseInteraction    Phase = "INTERACTION"
	PhasePostAssessment Phase = "POST_ASSESSMENT"
	PhaseCompleted      Phase = "COMPLETED"
)

// phaseOrder is the strict forward order of phases.
var phaseOrder = []Phase{
	PhaseConsent,
	PhasePreAssessment,
	PhaseInteraction,
	PhasePostAssessment,
	PhaseCompleted,
}

// Phases returns all phases in order.
func Phases() []Phase {
	out := make([]Phase, len(phaseOrder))
	copy(out, phaseOrder)
	return out
}

// Index returns the position of p in the phase order, or -1 if p is unknown.
func (p Phase) Index() int {
	for i, q := range phaseOrder {
		if q == p {
			return i
		}
	}
	return -1
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	return p.Index() >= 0
}

// Next returns the phase that directly follows p.
// The second return value is false for COMPLETED and unknown phases.
func (p Phase) Next() (Phase, bool) {
	i := p.Index()
	if i < 0 || i == len(phaseOrder)-1 {
		return "", false
	}
	return phaseOrder[i+1], true
}

// Before reports whether p comes strictly before q.
func (p Phase) Before(q Phase) bool {
	return p.Index() < q.Index()
}

// DisplayName returns a human-readable label for the phase.
func (p Phase) DisplayName() string {
	switch p {
	case PhaseConsent:
		return "Consent"
	case PhasePreAssessment:
		return "Pre-assessment"
	case PhaseInteraction:
		return "Learning"
	case PhasePostAssessment:
		return "Post-assessment"
	case PhaseCompleted:
		return "Completed"
	default:
		return string(p)
	}
}

// ParsePhase parses a phase name as sent over the wire.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown phase %q", s)
	}
	return p, nil
}

// InitialPhase derives the current phase from completion flags: the first
// false flag in order decides. All flags set means COMPLETED.
func InitialPhase(f CompletionFlags) Phase {
	switch {
	case !f.Consent:
		return PhaseConsent
	case !f.PreAssessment:
		return PhasePreAssessment
	case !f.Interaction:
		return PhaseInteraction
	case !f.PostAssessment:
		return PhasePostAssessment
	default:
		return PhaseCompleted
	}
}

// CheckTransition validates a single forward step from one phase to another.
func CheckTransition(from, to Phase) error {
	if !from.Valid() {
		return &TransitionError{From: from, To: to, Reason: "unknown source phase"}
	}
	if !to.Valid() {
		return &TransitionError{From: from, To: to, Reason: "unknown target phase"}
	}
	next, ok := from.Next()
	if !ok {
		return &TransitionError{From: from, To: to, Reason: "no phase follows " + string(from)}
	}
	if to.Before(from) || to == from {
		return &TransitionError{From: from, To: to, Reason: "phases never move backward"}
	}
	if to != next {
		return &TransitionError{From: from, To: to, Reason: "cannot skip " + string(next)}
	}
	return nil
}
