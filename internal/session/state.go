package session

// State is the lifecycle state of one exam attempt.
//
//	Unloaded → LoadFailed
//	         → EligibilityPending → AwaitingWindow | Rejected | Ready
//	Ready → InProgress → SubmitFailed (retryable) → Finished
//
// Rejected and Finished are terminal. LoadFailed is terminal for the attempt;
// the caller must construct a new session to retry loading.
type State string

const (
	StateUnloaded           State = "UNLOADED"
	StateLoadFailed         State = "LOAD_FAILED"
	StateEligibilityPending State = "ELIGIBILITY_PENDING"
	StateAwaitingWindow     State = "AWAITING_WINDOW"
	StateRejected           State = "REJECTED"
	StateReady              State = "READY"
	StateInProgress         State = "IN_PROGRESS"
	StateSubmitFailed       State = "SUBMIT_FAILED"
	StateFinished           State = "FINISHED"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	switch s {
	case StateRejected, StateFinished, StateLoadFailed:
		return true
	}
	return false
}

// active reports whether the attempt is running and accepts answers or a
// (re)submission.
func (s State) active() bool {
	return s == StateInProgress || s == StateSubmitFailed
}
