package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// SessionState is the primary lifecycle state of a booking.
type SessionState string

const (
	SessionStateRequested SessionState = "requested"
	SessionStateScheduled SessionState = "scheduled"
	SessionStateActive    SessionState = "active"
	SessionStateEnded     SessionState = "ended"
	SessionStateCancelled SessionState = "cancelled"
	SessionStateExpired   SessionState = "expired"
)

// IsTerminal reports whether no further transitions are allowed from this state.
func (s SessionState) IsTerminal() bool {
	switch s {
	case SessionStateEnded, SessionStateCancelled, SessionStateExpired:
		return true
	default:
		return false
	}
}

// SessionOutcome explains why an ENDED session ended. Only meaningful when
// session_state = ENDED.
type SessionOutcome string

const (
	SessionOutcomeCompleted     SessionOutcome = "completed"
	SessionOutcomeNoShowStudent SessionOutcome = "no_show_student"
	SessionOutcomeNoShowTutor   SessionOutcome = "no_show_tutor"
	SessionOutcomeAbandoned     SessionOutcome = "abandoned"
)

// PaymentState mirrors the booking's view of its payment lifecycle. The
// authoritative record lives in the Payment Ledger; this column is the
// projection the state machine reasons about.
type PaymentState string

const (
	PaymentStatePending            PaymentState = "pending"
	PaymentStateAuthorized         PaymentState = "authorized"
	PaymentStateCaptured           PaymentState = "captured"
	PaymentStateRefunded           PaymentState = "refunded"
	PaymentStatePartiallyRefunded  PaymentState = "partially_refunded"
	PaymentStateFailed             PaymentState = "failed"
)

// DisputeState tracks whether a booking is under active dispute.
type DisputeState string

const (
	DisputeStateNone            DisputeState = "none"
	DisputeStateOpen            DisputeState = "open"
	DisputeStateResolvedStudent DisputeState = "resolved_student"
	DisputeStateResolvedTutor   DisputeState = "resolved_tutor"
)

// CancelledByRole records who initiated a cancellation.
type CancelledByRole string

const (
	CancelledByStudent CancelledByRole = "student"
	CancelledByTutor   CancelledByRole = "tutor"
	CancelledBySystem  CancelledByRole = "system"
	CancelledByAdmin   CancelledByRole = "admin"
)

// NoShowParty identifies which side of a booking failed to show.
type NoShowParty string

const (
	NoShowStudent NoShowParty = "student"
	NoShowTutor   NoShowParty = "tutor"
)

// Booking is the central entity: one tutoring engagement moving through the
// four-field status model. It is never hard-deleted; cancellation and expiry
// are terminal states, not deletions.
type Booking struct {
	ID      uuid.UUID `db:"id" json:"id"`
	Version int64     `db:"version" json:"version"`

	StudentID       uuid.UUID `db:"student_id" json:"student_id"`
	TutorID         uuid.UUID `db:"tutor_id" json:"tutor_id"`
	TutorProfileID  uuid.UUID `db:"tutor_profile_id" json:"tutor_profile_id"`

	StartTime time.Time `db:"start_time" json:"start_time"`
	EndTime   time.Time `db:"end_time" json:"end_time"`
	TimeZone  string    `db:"time_zone" json:"time_zone"` // IANA name, display only

	SessionState   SessionState    `db:"session_state" json:"session_state"`
	SessionOutcome *SessionOutcome `db:"session_outcome" json:"session_outcome,omitempty"`
	PaymentState   PaymentState    `db:"payment_state" json:"payment_state"`
	DisputeState   DisputeState    `db:"dispute_state" json:"dispute_state"`

	AmountCents       int64  `db:"amount_cents" json:"amount_cents"`
	Currency          string `db:"currency" json:"currency"`
	PlatformFeeCents  int64  `db:"platform_fee_cents" json:"platform_fee_cents"`

	PackageID *uuid.UUID `db:"package_id" json:"package_id,omitempty"`

	MeetingID             sql.NullString `db:"meeting_id" json:"meeting_id,omitempty"`
	MeetingJoinURL        sql.NullString `db:"meeting_join_url" json:"meeting_join_url,omitempty"`
	CalendarEventID       sql.NullString `db:"calendar_event_id" json:"calendar_event_id,omitempty"`
	ExternalCheckoutID    sql.NullString `db:"external_checkout_session_id" json:"external_checkout_session_id,omitempty"`
	ExternalPaymentIntent sql.NullString `db:"external_payment_intent_id" json:"external_payment_intent_id,omitempty"`

	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
	ConfirmedAt  sql.NullTime `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CancelledAt  sql.NullTime `db:"cancelled_at" json:"cancelled_at,omitempty"`
	EndedAt      sql.NullTime `db:"ended_at" json:"ended_at,omitempty"`
	ReminderSentAt sql.NullTime `db:"reminder_sent_at" json:"reminder_sent_at,omitempty"`

	CancellationReason string           `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CancelledBy        *CancelledByRole `db:"cancelled_by" json:"cancelled_by,omitempty"`
}

// IsNonTerminal reports whether this booking still participates in
// time-overlap conflict checks.
func (b *Booking) IsNonTerminal() bool {
	return !b.SessionState.IsTerminal()
}

// Duration returns the booking's scheduled length.
func (b *Booking) Duration() time.Duration {
	return b.EndTime.Sub(b.StartTime)
}

// OverlapsWith implements the half-open interval overlap rule from the
// conflict-check contract: existing.start < new.end AND existing.end > new.start.
func (b *Booking) OverlapsWith(start, end time.Time) bool {
	return b.StartTime.Before(end) && b.EndTime.After(start)
}

// CreateBookingRequest is the inbound shape for create_booking.
type CreateBookingRequest struct {
	StudentID      uuid.UUID `json:"student_id"`
	TutorID        uuid.UUID `json:"tutor_id"`
	TutorProfileID uuid.UUID `json:"tutor_profile_id"`
	SubjectID      uuid.UUID `json:"subject_id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	TimeZone       string    `json:"time_zone"`
	AmountCents    int64     `json:"amount_cents"`
	Currency       string    `json:"currency"`
	IdempotencyKey string    `json:"idempotency_key"`
	// PackageID, when set, ties the booking to a prepaid package. It does
	// not replace the checkout: CreateBooking still opens a checkout session
	// and records a payment for the booking. The package's remaining-session count
	// is decremented when this booking reaches ENDED/COMPLETED, not at
	// creation, so a booking that is cancelled or expires first never
	// touches the package.
	PackageID *uuid.UUID `json:"package_id,omitempty"`
}

// MinBookingDuration is the minimum allowed session length.
const MinBookingDuration = 30 * time.Minute

// Validate checks field-level constraints. It does not check state or
// conflicts — those belong to the State Machine and Booking Store.
func (r *CreateBookingRequest) Validate() error {
	if r.StudentID == uuid.Nil {
		return ErrInvalidStudentID
	}
	if r.TutorID == uuid.Nil {
		return ErrInvalidTutorID
	}
	if !r.EndTime.After(r.StartTime) {
		return ErrInvalidBookingWindow
	}
	if r.EndTime.Sub(r.StartTime) < MinBookingDuration {
		return ErrBookingTooShort
	}
	if r.AmountCents < 0 {
		return ErrInvalidAmount
	}
	if r.Currency == "" {
		return ErrInvalidCurrency
	}
	if r.IdempotencyKey == "" {
		return ErrMissingIdempotencyKey
	}
	return nil
}

// CancelBookingRequest is the inbound shape for cancel_booking.
type CancelBookingRequest struct {
	BookingID uuid.UUID       `json:"booking_id"`
	ByRole    CancelledByRole `json:"by_role"`
	ActorID   uuid.UUID       `json:"actor_id"`
	Reason    string          `json:"reason"`
}

func (r *CancelBookingRequest) Validate() error {
	if r.BookingID == uuid.Nil {
		return ErrInvalidBookingID
	}
	switch r.ByRole {
	case CancelledByStudent, CancelledByTutor, CancelledBySystem, CancelledByAdmin:
	default:
		return ErrInvalidCancelledByRole
	}
	return nil
}

// RescheduleBookingRequest is the inbound shape for reschedule_booking.
type RescheduleBookingRequest struct {
	BookingID uuid.UUID `json:"booking_id"`
	NewStart  time.Time `json:"new_start"`
	NewEnd    time.Time `json:"new_end"`
	ActorID   uuid.UUID `json:"actor_id"`
}

func (r *RescheduleBookingRequest) Validate() error {
	if r.BookingID == uuid.Nil {
		return ErrInvalidBookingID
	}
	if !r.NewEnd.After(r.NewStart) {
		return ErrInvalidBookingWindow
	}
	if r.NewEnd.Sub(r.NewStart) < MinBookingDuration {
		return ErrBookingTooShort
	}
	return nil
}

// MarkNoShowRequest is the inbound shape for mark_no_show.
type MarkNoShowRequest struct {
	BookingID uuid.UUID   `json:"booking_id"`
	Which     NoShowParty `json:"which_party"`
	ActorID   uuid.UUID   `json:"actor_id"`
}

func (r *MarkNoShowRequest) Validate() error {
	if r.BookingID == uuid.Nil {
		return ErrInvalidBookingID
	}
	if r.Which != NoShowStudent && r.Which != NoShowTutor {
		return ErrInvalidNoShowParty
	}
	return nil
}

// OpenDisputeRequest is the inbound shape for open_dispute.
type OpenDisputeRequest struct {
	BookingID uuid.UUID `json:"booking_id"`
	ActorID   uuid.UUID `json:"actor_id"`
	Reason    string    `json:"reason"`
}

func (r *OpenDisputeRequest) Validate() error {
	if r.BookingID == uuid.Nil {
		return ErrInvalidBookingID
	}
	if r.Reason == "" {
		return ErrInvalidReason
	}
	return nil
}

// DisputeResolution is the admin's decision on an open dispute.
type DisputeResolution string

const (
	DisputeResolutionFavorStudent DisputeResolution = "favor_student"
	DisputeResolutionFavorTutor   DisputeResolution = "favor_tutor"
)

// ResolveDisputeRequest is the inbound shape for resolve_dispute. ConfirmToken
// is a signed, short-lived admin confirmation token (see pkg/confirmtoken)
// required so that dispute payouts can't be triggered by a bare form post.
type ResolveDisputeRequest struct {
	BookingID      uuid.UUID         `json:"booking_id"`
	Resolution     DisputeResolution `json:"resolution"`
	AdminID        uuid.UUID         `json:"admin_id"`
	ConfirmToken   string            `json:"confirm_token"`
	ExplicitAmount *int64            `json:"explicit_amount_cents,omitempty"`
}

func (r *ResolveDisputeRequest) Validate() error {
	if r.BookingID == uuid.Nil {
		return ErrInvalidBookingID
	}
	if r.AdminID == uuid.Nil {
		return ErrInvalidAdminID
	}
	if r.Resolution != DisputeResolutionFavorStudent && r.Resolution != DisputeResolutionFavorTutor {
		return ErrInvalidDisputeResolution
	}
	if r.ConfirmToken == "" {
		return ErrMissingConfirmToken
	}
	return nil
}

// ListBookingsFilter mirrors the teacher's filter-struct idiom for paginated
// listing endpoints.
type ListBookingsFilter struct {
	StudentID *uuid.UUID    `json:"student_id,omitempty"`
	TutorID   *uuid.UUID    `json:"tutor_id,omitempty"`
	State     *SessionState `json:"session_state,omitempty"`
	StartDate *time.Time    `json:"start_date,omitempty"`
	EndDate   *time.Time    `json:"end_date,omitempty"`
}
