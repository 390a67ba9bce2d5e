package domain

import "fmt"

// Domain error types. Handlers match these with errors.As and map them onto
// HTTP statuses; no raw storage or transport error crosses the API boundary.

// InvalidInputError marks a caller mistake (bad set number, bad state name).
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SetNotFoundError: the requested set exists neither locally nor upstream.
type SetNotFoundError struct {
	SetNo string
}

func (e *SetNotFoundError) Error() string {
	return fmt.Sprintf("set %q not found", e.SetNo)
}

// PartNotFoundError: no inventory row for the part/color key.
type PartNotFoundError struct {
	PartNo  string
	ColorID int
}

func (e *PartNotFoundError) Error() string {
	return fmt.Sprintf("part %s color %d not in inventory", e.PartNo, e.ColorID)
}

// InvalidStateTransitionError: the requested state change is not in the
// transition table.
type InvalidStateTransitionError struct {
	From PartState
	To   PartState
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s", e.From, e.To)
}
