package models

// TransitionPolicy decides whether a loan may move from one status to another.
type TransitionPolicy func(from, to Status) bool

// PermissiveTransitions allows any status to move to any other, including
// reopening a Closed loan.
func PermissiveTransitions(from, to Status) bool {
	return true
}

// StrictTransitions treats Closed, Rejected and Withdrawn as terminal.
// Re-asserting the current status is always allowed.
func StrictTransitions(from, to Status) bool {
	if from == to {
		return true
	}
	return !from.IsTerminal()
}

// IsTerminal reports whether no further business transition is expected.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusClosed, StatusRejected, StatusWithdrawn:
		return true
	}
	return false
}
