// Workflow state machine for applications.
//
// An application moves through the lifecycle
//
//	discovered → scored → (admitted | skipped*) → generation_requested →
//	generated → (auto_approved | pending_approval) → approved → submitting →
//	(submitted | submission_failed*) → tracking → (closed* | abandoned*)
//
// Terminal states (marked *) admit no further automatic transition. Any
// non-terminal state may additionally move to abandoned via operator
// cancellation, and pending_approval may move to rejected when a reviewer
// declines the draft.
package domain

// Application workflow states.
const (
	StateDiscovered          = "discovered"
	StateScored              = "scored"
	StateAdmitted            = "admitted"
	StateSkipped             = "skipped"
	StateGenerationRequested = "generation_requested"
	StateGenerated           = "generated"
	StateAutoApproved        = "auto_approved"
	StatePendingApproval     = "pending_approval"
	StateApproved            = "approved"
	StateSubmitting          = "submitting"
	StateSubmitted           = "submitted"
	StateSubmissionFailed    = "submission_failed"
	StateTracking            = "tracking"
	StateClosed              = "closed"
	StateRejected            = "rejected"
	StateAbandoned           = "abandoned"
)

// validNext maps each state to the states it may advance to automatically.
// Operator cancellation (→ abandoned) is handled separately by CanCancel.
var validNext = map[string][]string{
	StateDiscovered:          {StateScored},
	StateScored:              {StateAdmitted, StateSkipped},
	StateAdmitted:            {StateGenerationRequested},
	StateGenerationRequested: {StateGenerated, StateSkipped},
	StateGenerated:           {StateAutoApproved, StatePendingApproval},
	StateAutoApproved:        {StateApproved},
	StatePendingApproval:     {StateApproved, StateRejected},
	StateApproved:            {StateSubmitting},
	StateSubmitting:          {StateSubmitted, StateSubmissionFailed},
	StateSubmitted:           {StateTracking},
	StateTracking:            {StateClosed},
}

// terminalStates are states from which no further automatic transition occurs.
var terminalStates = map[string]struct{}{
	StateSkipped:          {},
	StateSubmissionFailed: {},
	StateClosed:           {},
	StateRejected:         {},
	StateAbandoned:        {},
}

// IsTerminal reports whether state admits no further automatic transition.
func IsTerminal(state string) bool {
	_, ok := terminalStates[state]
	return ok
}

// CanTransition reports whether the state machine permits moving from one
// state to the next. Cancellation to abandoned is allowed from any
// non-terminal state.
func CanTransition(from, to string) bool {
	if to == StateAbandoned {
		return !IsTerminal(from)
	}
	for _, s := range validNext[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanCancel reports whether an operator cancellation may still take effect.
func CanCancel(state string) bool { return !IsTerminal(state) }
