package domain

import "testing"

func TestCanTransition_HappyPath(t *testing.T) {
	path := []string{
		StateDiscovered,
		StateScored,
		StateAdmitted,
		StateGenerationRequested,
		StateGenerated,
		StateAutoApproved,
		StateApproved,
		StateSubmitting,
		StateSubmitted,
		StateTracking,
		StateClosed,
	}
	for i := 0; i < len(path)-1; i++ {
		if !CanTransition(path[i], path[i+1]) {
			t.Errorf("expected %s -> %s to be legal", path[i], path[i+1])
		}
	}
}

func TestCanTransition_Branches(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StateScored, StateSkipped, true},
		{StateGenerationRequested, StateSkipped, true},
		{StateGenerated, StatePendingApproval, true},
		{StatePendingApproval, StateApproved, true},
		{StatePendingApproval, StateRejected, true},
		{StateSubmitting, StateSubmissionFailed, true},

		// No skipping ahead or moving backwards.
		{StateDiscovered, StateAdmitted, false},
		{StateScored, StateDiscovered, false},
		{StateSubmitted, StateSubmitting, false},
		{StateClosed, StateTracking, false},

		// Cancellation reaches abandoned from any non-terminal state only.
		{StateDiscovered, StateAbandoned, true},
		{StatePendingApproval, StateAbandoned, true},
		{StateTracking, StateAbandoned, true},
		{StateClosed, StateAbandoned, false},
		{StateRejected, StateAbandoned, false},
	}
	for _, tc := range tests {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []string{StateSkipped, StateSubmissionFailed, StateClosed, StateRejected, StateAbandoned}
	for _, s := range terminal {
		if !IsTerminal(s) {
			t.Errorf("expected %s to be terminal", s)
		}
		if CanCancel(s) {
			t.Errorf("expected %s to refuse cancellation", s)
		}
	}
	for _, s := range []string{StateDiscovered, StatePendingApproval, StateTracking} {
		if IsTerminal(s) {
			t.Errorf("expected %s to be non-terminal", s)
		}
		if !CanCancel(s) {
			t.Errorf("expected %s to allow cancellation", s)
		}
	}
}

func TestValidOutcome(t *testing.T) {
	for _, o := range []string{OutcomeAccepted, OutcomeRejected, OutcomeNoResponse} {
		if !ValidOutcome(o) {
			t.Errorf("expected %q to be valid", o)
		}
	}
	for _, o := range []string{"", "ghosted", "Accepted"} {
		if ValidOutcome(o) {
			t.Errorf("expected %q to be invalid", o)
		}
	}
}
