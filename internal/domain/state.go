package domain

// PartState tracks where a part/color key sits in the ownership lifecycle.
type PartState string

const (
	StateMissing     PartState = "MISSING"      // needed, not owned
	StateOwnedFree   PartState = "OWNED_FREE"   // owned, available to use
	StateOwnedLocked PartState = "OWNED_LOCKED" // owned, committed to an assembled set
)

// Valid reports whether s is one of the three known states.
func (s PartState) Valid() bool {
	switch s {
	case StateMissing, StateOwnedFree, StateOwnedLocked:
		return true
	}
	return false
}

// legalTransitions is the full transition table. Self-transitions are
// accepted as no-ops in CheckTransition and do not appear here.
var legalTransitions = map[PartState]map[PartState]bool{
	StateMissing:     {StateOwnedFree: true},
	StateOwnedFree:   {StateOwnedLocked: true},
	StateOwnedLocked: {StateOwnedFree: true},
}

// CheckTransition validates a caller-requested state change. A request for
// the state the part already holds succeeds as a no-op; any pair outside the
// transition table fails with InvalidStateTransitionError.
func CheckTransition(from, to PartState) error {
	if !to.Valid() {
		return &InvalidInputError{Field: "state", Reason: "unknown state " + string(to)}
	}
	if from == to {
		return nil
	}
	if legalTransitions[from][to] {
		return nil
	}
	return &InvalidStateTransitionError{From: from, To: to}
}

// InitialState is the policy applied when a set contributes a part for the
// first time: parts of an assembled set arrive locked, everything else free.
// This seeds the row; it is not a traversal of the transition table.
func InitialState(assembled bool) PartState {
	if assembled {
		return StateOwnedLocked
	}
	return StateOwnedFree
}
