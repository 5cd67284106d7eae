package models

import (
	"time"

	"github.com/google/uuid"
)

// LedgerPaymentState mirrors a subset of Booking.PaymentState that the
// Payment Ledger itself tracks per charge attempt.
type LedgerPaymentState string

const (
	LedgerPaymentPending   LedgerPaymentState = "pending"
	LedgerPaymentAuthorized LedgerPaymentState = "authorized"
	LedgerPaymentCaptured  LedgerPaymentState = "captured"
	LedgerPaymentFailed    LedgerPaymentState = "failed"
)

// Payment is a per-booking charge record. A booking may accrue multiple
// Payment rows over its lifetime (retry, authorize-then-capture), but only
// one is ever in state captured at a time.
type Payment struct {
	ID                    uuid.UUID          `db:"id" json:"id"`
	BookingID             uuid.UUID          `db:"booking_id" json:"booking_id"`
	ExternalSessionID     string             `db:"external_session_id" json:"external_session_id"`
	ExternalIntentID      string             `db:"external_intent_id" json:"external_intent_id"`
	AmountCents           int64              `db:"amount_cents" json:"amount_cents"`
	Currency              string             `db:"currency" json:"currency"`
	State                 LedgerPaymentState `db:"state" json:"state"`
	IdempotencyKey        string             `db:"idempotency_key" json:"idempotency_key"`
	CreatedAt             time.Time          `db:"created_at" json:"created_at"`
	CapturedAt            *time.Time         `db:"captured_at" json:"captured_at,omitempty"`
}

// RefundReason enumerates why a refund was issued.
type RefundReason string

const (
	RefundReasonCancelledByStudentLate RefundReason = "cancelled_by_student_late"
	RefundReasonCancelledByTutor       RefundReason = "cancelled_by_tutor"
	RefundReasonNoShow                 RefundReason = "no_show"
	RefundReasonAdmin                  RefundReason = "admin"
)

// Refund is a partial or full reversal of a Payment. The sum of non-failed
// refund amounts for a payment must never exceed the payment's amount.
type Refund struct {
	ID               uuid.UUID    `db:"id" json:"id"`
	PaymentID        uuid.UUID    `db:"payment_id" json:"payment_id"`
	BookingID        uuid.UUID    `db:"booking_id" json:"booking_id"`
	ExternalRefundID string       `db:"external_refund_id" json:"external_refund_id"` // idempotency key
	AmountCents      int64        `db:"amount_cents" json:"amount_cents"`
	Reason           RefundReason `db:"reason" json:"reason"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
}

// ProcessedWebhook is an (event_id) record causing idempotent replay to be a
// no-op. Retained long enough to cover the provider's replay window
// (WEBHOOK_DEDUPE_RETENTION_DAYS), then garbage-collected by a scheduler job.
type ProcessedWebhook struct {
	EventID           string    `db:"event_id" json:"event_id"`
	EventType         string    `db:"event_type" json:"event_type"`
	LogicalTimestamp  time.Time `db:"logical_timestamp" json:"logical_timestamp"`
	ProcessedAt       time.Time `db:"processed_at" json:"processed_at"`
}

// CapturePaymentResult reports capture() outcome including whether the call
// was an idempotent replay of a prior capture.
type CapturePaymentResult struct {
	Payment     *Payment
	WasExisting bool
}

// RecordRefundResult reports record_refund() outcome including whether the
// call was an idempotent replay keyed on external_refund_id.
type RecordRefundResult struct {
	Refund      *Refund
	WasExisting bool
}
