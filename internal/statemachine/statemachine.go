// Package statemachine implements the pure four-field booking transition
// function. It performs no I/O and never suspends: every input that would
// require a database or network round trip (conflict checks, "now",
// precomputed refund amounts) is precomputed by the caller and passed in on
// the Command.
package statemachine

import (
	"tutoring-platform/internal/models"
)

// TransitionResult carries the updated booking and the ordered list of
// side-effect intents the Orchestrator must execute after it commits.
type TransitionResult struct {
	Booking *models.Booking
	Intents []Intent
}

// Transition is the single pure entry point: (current, Command) -> Result.
// It never panics on a bad (state, command) pair — it returns a Rejection.
func Transition(current *models.Booking, cmd Command) (*TransitionResult, *Rejection) {
	openingDisputeOnEnded := cmd.Type == CommandOpenDispute && current.SessionState == models.SessionStateEnded
	if current.SessionState.IsTerminal() && !openingDisputeOnEnded {
		return nil, reject(RejectionTerminalState, "booking is in a terminal state: "+string(current.SessionState))
	}

	switch cmd.Type {
	case CommandTutorApproves:
		return transitionApprove(current, cmd)
	case CommandDecline:
		return transitionDecline(current, cmd)
	case CommandCancel:
		return transitionCancel(current, cmd)
	case CommandExpire:
		return transitionExpire(current, cmd)
	case CommandStart:
		return transitionStart(current, cmd)
	case CommandEnd:
		return transitionEnd(current, cmd)
	case CommandMarkNoShow:
		return transitionMarkNoShow(current, cmd)
	case CommandReschedule:
		return transitionReschedule(current, cmd)
	case CommandOpenDispute:
		return transitionOpenDispute(current, cmd)
	case CommandResolveDispute:
		return transitionResolveDispute(current, cmd)
	default:
		return nil, reject(RejectionInvalidTransition, "unknown command: "+string(cmd.Type))
	}
}

// clone makes a shallow copy of the booking so callers always get a fresh
// value back and never mutate the one they passed in.
func clone(b *models.Booking) *models.Booking {
	cp := *b
	return &cp
}

func transitionApprove(current *models.Booking, cmd Command) (*TransitionResult, *Rejection) {
	if current.SessionState != models.SessionStateRequested {
		return nil, reject(RejectionInvalidTransition, "tutor_approves only valid from REQUESTED")
	}
	if current.PaymentState != models.PaymentStateCaptured {
		return nil, reject(RejectionPreconditionFailed, "payment must be captured before approval")
	}
	if cmd.ConflictExists {
		return nil, reject(RejectionPreconditionFailed, "tutor has a conflicting booking in this window")
	}

	next := clone(current)
	next.SessionState = models.SessionStateScheduled
	next.Version++
	next.ConfirmedAt.Time = cmd.Now
	next.ConfirmedAt.Valid = true

	intents := []Intent{
		CreateMeetingIntent{
			BookingID: next.ID,
			Topic:     "Tutoring session",
			Start:     next.StartTime,
			Duration:  next.Duration(),
		},
		CreateCalendarEventIntent{
			BookingID: next.ID,
			Start:     next.StartTime,
			End:       next.EndTime,
		},
		SendEmailIntent{
			BookingID: next.ID,
			Template:  EmailBookingConfirmation,
		},
	}
	return &TransitionResult{Booking: next, Intents: intents}, nil
}

func transitionDecline(current *models.Booking, cmd Command) (*TransitionResult, *Rejection) {
	if current.SessionState != models.SessionStateRequested {
		return nil, reject(RejectionInvalidTransition, "decline only valid from REQUESTED")
	}
	next := clone(current)
	next.SessionState = models.SessionStateCancelled
	next.Version++
	role := models.CancelledByTutor
	next.CancelledBy = &role
	next.CancellationReason = cmd.Reason
	next.CancelledAt.Time = cmd.Now
	next.CancelledAt.Valid = true

	return &TransitionResult{Booking: next, Intents: []Intent{
		SendEmailIntent{BookingID: next.ID, Template: EmailBookingCancelled},
	}}, nil
}

func transitionCancel(current *models.Booking, cmd Command) (*TransitionResult, *Rejection) {
	switch current.SessionState {
	case models.SessionStateRequested, models.SessionStateScheduled:
		// any role may cancel
	case models.SessionStateActive:
		if cmd.ActorRole != models.CancelledByAdmin {
			return nil, reject(RejectionPreconditionFailed, "only admin may cancel an active session")
		}
	default:
		return nil, reject(RejectionInvalidTransition, "cancel not valid from "+string(current.SessionState))
	}

	next := clone(current)
	next.SessionState = models.SessionStateCancelled
	next.Version++
	role := cmd.ActorRole
	next.CancelledBy = &role
	next.CancellationReason = cmd.Reason
	next.CancelledAt.Time = cmd.Now
	next.CancelledAt.Valid = true

	intents := []Intent{
		SendEmailIntent{BookingID: next.ID, Template: EmailBookingCancelled},
	}
	if cmd.RefundAmountCents > 0 {
		intents = append(intents, RefundPaymentIntent{
			BookingID:   next.ID,
			StudentID:   next.StudentID,
			AmountCents: cmd.RefundAmountCents,
			Reason:      cmd.RefundReason,
		})
	}
	return &TransitionResult{Booking: next, Intents: intents}, nil
}

func transitionExpire(current *models.Booking, cmd Command) (*TransitionResult, *Rejection) {
	if current.SessionState != models.SessionStateRequested {
		return nil, reject(RejectionInvalidTransition, "expire only valid from REQUESTED")
	}
	next := clone(current)
	next.SessionState = models.SessionStateExpired
	next.Version++

	var intents []Intent
	if cmd.RefundAmountCents > 0 {
		intents = append(intents, RefundPaymentIntent{
			BookingID:   next.ID,
			StudentID:   next.StudentID,
			AmountCents: cmd.RefundAmountCents,
			Reason:      cmd.RefundReason,
		})
	}
	return &TransitionResult{Booking: next, Intents: intents}, nil
}

func transitionStart(current *models.Booking, cmd Command) (*TransitionResult, *Rejection) {
	if current.SessionState != models.SessionStateScheduled {
		return nil, reject(RejectionInvalidTransition, "start only valid from SCHEDULED")
	}
	if cmd.Now.Before(current.StartTime) {
		return nil, reject(RejectionPreconditionFailed, "now is before the booking's start time")
	}
	next := clone(current)
	next.SessionState = models.SessionStateActive
	next.Version++
	return &TransitionResult{Booking: next}, nil
}

func transitionEnd(current *models.Booking, cmd Command) (*TransitionResult, *Rejection) {
	if current.SessionState != models.SessionStateActive {
		return nil, reject(RejectionInvalidTransition, "end only valid from ACTIVE")
	}
	if !cmd.IsManualEnd && cmd.Now.Before(current.EndTime) {
		return nil, reject(RejectionPreconditionFailed, "now is before the booking's end time")
	}

	outcome := models.SessionOutcomeCompleted
	if cmd.Outcome != nil {
		outcome = *cmd.Outcome
	}

	next := clone(current)
	next.SessionState = models.SessionStateEnded
	next.SessionOutcome = &outcome
	next.Version++
	next.EndedAt.Time = cmd.Now
	next.EndedAt.Valid = true

	intents := []Intent{
		SendEmailIntent{BookingID: next.ID, Template: EmailSessionEnded},
	}
	if cmd.RefundAmountCents > 0 {
		intents = append(intents, RefundPaymentIntent{
			BookingID:   next.ID,
			StudentID:   next.StudentID,
			AmountCents: cmd.RefundAmountCents,
			Reason:      cmd.RefundReason,
		})
	}
	return &TransitionResult{Booking: next, Intents: intents}, nil
}

func transitionMarkNoShow(current *models.Booking, cmd Command) (*TransitionResult, *Rejection) {
	if current.SessionState != models.SessionStateActive {
		return nil, reject(RejectionInvalidTransition, "mark_no_show only valid from ACTIVE")
	}

	var outcome models.SessionOutcome
	switch cmd.NoShowParty {
	case models.NoShowStudent:
		outcome = models.SessionOutcomeNoShowStudent
	case models.NoShowTutor:
		outcome = models.SessionOutcomeNoShowTutor
	default:
		return nil, reject(RejectionPreconditionFailed, "no-show party must be student or tutor")
	}

	next := clone(current)
	next.SessionState = models.SessionStateEnded
	next.SessionOutcome = &outcome
	next.Version++
	next.EndedAt.Time = cmd.Now
	next.EndedAt.Valid = true

	intents := []Intent{
		SendEmailIntent{BookingID: next.ID, Template: EmailSessionEnded},
	}
	if cmd.RefundAmountCents > 0 {
		intents = append(intents, RefundPaymentIntent{
			BookingID:   next.ID,
			StudentID:   next.StudentID,
			AmountCents: cmd.RefundAmountCents,
			Reason:      models.RefundReasonNoShow,
		})
	}
	return &TransitionResult{Booking: next, Intents: intents}, nil
}

func transitionReschedule(current *models.Booking, cmd Command) (*TransitionResult, *Rejection) {
	switch current.SessionState {
	case models.SessionStateRequested, models.SessionStateScheduled:
	default:
		return nil, reject(RejectionInvalidTransition, "reschedule only valid from REQUESTED or SCHEDULED")
	}
	if cmd.ConflictExists {
		return nil, reject(RejectionPreconditionFailed, "tutor has a conflicting booking in the new window")
	}

	next := clone(current)
	next.StartTime = cmd.NewStart
	next.EndTime = cmd.NewEnd
	next.Version++

	var intents []Intent
	if current.SessionState == models.SessionStateScheduled {
		intents = append(intents, SendEmailIntent{BookingID: next.ID, Template: EmailBookingConfirmation})
	}
	return &TransitionResult{Booking: next, Intents: intents}, nil
}

func transitionOpenDispute(current *models.Booking, cmd Command) (*TransitionResult, *Rejection) {
	switch current.SessionState {
	case models.SessionStateActive, models.SessionStateEnded:
	default:
		return nil, reject(RejectionInvalidTransition, "open_dispute only valid from ACTIVE or ENDED")
	}
	if current.DisputeState != models.DisputeStateNone {
		return nil, reject(RejectionPreconditionFailed, "a dispute is already open or resolved for this booking")
	}

	next := clone(current)
	next.DisputeState = models.DisputeStateOpen
	next.Version++
	return &TransitionResult{Booking: next}, nil
}

func transitionResolveDispute(current *models.Booking, cmd Command) (*TransitionResult, *Rejection) {
	if current.DisputeState != models.DisputeStateOpen {
		return nil, reject(RejectionInvalidTransition, "resolve_dispute only valid when a dispute is open")
	}

	next := clone(current)
	switch cmd.DisputeResolution {
	case models.DisputeResolutionFavorStudent:
		next.DisputeState = models.DisputeStateResolvedStudent
	case models.DisputeResolutionFavorTutor:
		next.DisputeState = models.DisputeStateResolvedTutor
	default:
		return nil, reject(RejectionPreconditionFailed, "resolution must be favor_student or favor_tutor")
	}
	next.Version++

	var intents []Intent
	if cmd.RefundAmountCents > 0 {
		intents = append(intents, RefundPaymentIntent{
			BookingID:   next.ID,
			StudentID:   next.StudentID,
			AmountCents: cmd.RefundAmountCents,
			Reason:      models.RefundReasonAdmin,
		})
	}
	return &TransitionResult{Booking: next, Intents: intents}, nil
}

