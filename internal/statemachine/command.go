package statemachine

import (
	"time"

	"tutoring-platform/internal/models"
)

// CommandType names one of the transitions in the allowed-transition table.
type CommandType string

const (
	CommandTutorApproves  CommandType = "tutor_approves"
	CommandDecline        CommandType = "decline"
	CommandCancel         CommandType = "cancel"
	CommandExpire         CommandType = "expire"
	CommandStart          CommandType = "start"
	CommandEnd            CommandType = "end"
	CommandReschedule     CommandType = "reschedule"
	CommandMarkNoShow     CommandType = "mark_no_show"
	CommandOpenDispute    CommandType = "open_dispute"
	CommandResolveDispute CommandType = "resolve_dispute"
)

// Command is the single input to Transition. Fields that require I/O to
// compute (e.g. whether a conflicting window exists) are precomputed by the
// caller and carried as plain values — the State Machine itself performs no
// I/O and cannot suspend.
type Command struct {
	Type CommandType
	Now  time.Time

	ActorRole models.CancelledByRole // cancel
	Reason    string                 // cancel, open_dispute

	ConflictExists bool // tutor_approves precondition: no time conflict

	NewStart time.Time // reschedule
	NewEnd   time.Time // reschedule

	NoShowParty models.NoShowParty // mark_no_show

	IsManualEnd bool                   // end: true for an operator-triggered end, false for scheduler tick
	Outcome     *models.SessionOutcome // end: explicit outcome override; defaults to COMPLETED on scheduler end

	DisputeResolution models.DisputeResolution // resolve_dispute
	RefundAmountCents int64                    // cancel / resolve_dispute: amount sized by RefundPolicy
	TutorPayoutCents  int64                    // cancel / resolve_dispute
	RefundReason      models.RefundReason
}
