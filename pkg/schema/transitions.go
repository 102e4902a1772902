package schema

// validRunTransitions defines the allowed run lifecycle transitions.
// Terminal statuses have no exits.
var validRunTransitions = map[RunStatus][]RunStatus{
	RunStatusNotStarted: {RunStatusRunning, RunStatusCancelled},
	RunStatusRunning:    {RunStatusCompleted, RunStatusFailed, RunStatusCancelled},
	RunStatusCompleted:  {},
	RunStatusFailed:     {},
	RunStatusCancelled:  {},
}

// CanTransition reports whether a run may move from one status to
// another. Self-transitions are not allowed.
func CanTransition(from, to RunStatus) bool {
	for _, a := range validRunTransitions[from] {
		if a == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an INVALID_TRANSITION error when the move
// is not allowed.
func ValidateTransition(runID string, from, to RunStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return NewErrorf(ErrCodeInvalidTransition, "invalid run transition: %s -> %s", from, to).
		WithDetails(map[string]any{"run_id": runID, "from": string(from), "to": string(to)})
}
