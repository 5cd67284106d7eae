package statemachine

import (
	"time"

	"tutoring-platform/internal/models"

	"github.com/google/uuid"
)

// IntentType tags the concrete type of a side-effect Intent. Intents are
// modeled as one concrete struct per kind rather than an untyped metadata
// map, so a handler can switch on Type or on the concrete type and read
// typed fields. The compiler does not check such a switch for
// exhaustiveness.
type IntentType string

const (
	IntentCreateMeeting       IntentType = "create_meeting"
	IntentCreateCalendarEvent IntentType = "create_calendar_event"
	IntentSendEmail           IntentType = "send_email"
	IntentScheduleJob         IntentType = "schedule_job"
	IntentRefundPayment       IntentType = "refund_payment"
)

// Intent is a declarative record of an external action the Orchestrator must
// later attempt. The State Machine only produces these; it never executes
// them — execution happens outside the transaction (see internal/ports).
type Intent interface {
	Type() IntentType
}

// EmailTemplate names a transactional email the Email port knows how to send.
type EmailTemplate string

const (
	EmailBookingConfirmation EmailTemplate = "booking_confirmation"
	EmailBookingCancelled    EmailTemplate = "booking_cancelled"
	EmailBookingReminder     EmailTemplate = "booking_reminder"
	EmailSessionEnded        EmailTemplate = "session_ended"
)

// CreateMeetingIntent asks the Meeting port to provision a join URL.
type CreateMeetingIntent struct {
	BookingID      uuid.UUID
	Topic          string
	Start          time.Time
	Duration       time.Duration
	HostEmail      string
	AttendeeEmails []string
}

func (CreateMeetingIntent) Type() IntentType { return IntentCreateMeeting }

// CreateCalendarEventIntent asks the Calendar port to add an event.
type CreateCalendarEventIntent struct {
	BookingID uuid.UUID
	Start     time.Time
	End       time.Time
	Attendees []string
}

func (CreateCalendarEventIntent) Type() IntentType { return IntentCreateCalendarEvent }

// SendEmailIntent asks the Email port to deliver a transactional template.
type SendEmailIntent struct {
	BookingID uuid.UUID
	Template  EmailTemplate
}

func (SendEmailIntent) Type() IntentType { return IntentSendEmail }

// ScheduleJobIntent asks the Scheduler to run a one-shot job at a future time,
// e.g. send_reminder.
type ScheduleJobIntent struct {
	BookingID uuid.UUID
	JobName   string
	RunAt     time.Time
}

func (ScheduleJobIntent) Type() IntentType { return IntentScheduleJob }

// RefundPaymentIntent asks the Payment Ledger to issue a refund sized by the
// refund policy. The State Machine never computes the amount itself — the
// Orchestrator consults internal/service.RefundPolicy before calling
// Transition and threads the result in through the Command.
type RefundPaymentIntent struct {
	BookingID   uuid.UUID
	StudentID   uuid.UUID
	AmountCents int64
	Reason      models.RefundReason
}

func (RefundPaymentIntent) Type() IntentType { return IntentRefundPayment }
