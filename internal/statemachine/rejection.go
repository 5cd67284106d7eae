package statemachine

// RejectionReason is a machine-readable reason code, never a free-form
// string, so callers can switch on it instead of matching on exception
// messages.
type RejectionReason string

const (
	RejectionInvalidTransition  RejectionReason = "invalid_transition"
	RejectionTerminalState      RejectionReason = "terminal_state"
	RejectionPreconditionFailed RejectionReason = "precondition_failed"
)

// Rejection is returned instead of a TransitionResult whenever a command is
// not permitted in the booking's current state. It is a value, not a thrown
// error — the Orchestrator returns it in its CommandResult, and the HTTP
// handler maps terminal_state to 409 and the other reasons to 422.
type Rejection struct {
	Reason  RejectionReason
	Message string
}

func (r *Rejection) Error() string {
	return r.Message
}

func reject(reason RejectionReason, message string) *Rejection {
	return &Rejection{Reason: reason, Message: message}
}
