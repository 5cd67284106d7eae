// Package ports defines the capability-set interfaces the Orchestrator uses
// to reach the outside world: video meetings, calendars, email, and the
// payment provider. Each is a narrow interface so a fake implementation is
// trivial to write for tests, and the intent->adapter dispatch in
// the Orchestrator (internal/service) stays decoupled from any one
// vendor's SDK shape.
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MeetingHandle is what a MeetingPort hands back after creating a room.
type MeetingHandle struct {
	MeetingID string
	JoinURL   string
}

// MeetingPort creates and tears down video meeting rooms.
type MeetingPort interface {
	CreateMeeting(ctx context.Context, bookingID uuid.UUID, topic string, start time.Time, duration time.Duration) (*MeetingHandle, error)
	CancelMeeting(ctx context.Context, meetingID string) error
}

// CalendarPort creates calendar holds for both sides of a booking.
type CalendarPort interface {
	CreateEvent(ctx context.Context, bookingID uuid.UUID, start, end time.Time, attendees []string) (eventID string, err error)
	CancelEvent(ctx context.Context, eventID string) error
}

// EmailPort sends a templated transactional email.
type EmailPort interface {
	Send(ctx context.Context, to string, template string, data map[string]any) error
}

// CheckoutSession is what a PaymentProvider hands back after starting a charge.
type CheckoutSession struct {
	ExternalSessionID string
	CheckoutURL       string
}

// WebhookEvent is a provider webhook notification, normalized to the fields
// the webhook ingress needs regardless of which vendor sent it.
type WebhookEvent struct {
	EventID           string
	Type              string
	ExternalSessionID string
	ExternalIntentID  string
	ExternalRefundID  string

	// OccurredAt is the provider's own event timestamp, not the time the
	// ingress received it. Out-of-order delivery is compared on this field,
	// never on arrival order.
	OccurredAt time.Time
}

// PaymentProvider is the outbound side of the Payment Ledger: the vendor
// that actually moves money. record_payment/capture/record_refund in the
// repository layer persist the ledger; this interface talks to the vendor.
type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, bookingID uuid.UUID, amountCents int64, currency string) (*CheckoutSession, error)
	CapturePaymentIntent(ctx context.Context, externalIntentID string) error
	RefundPaymentIntent(ctx context.Context, externalIntentID string, amountCents int64) (externalRefundID string, err error)
	PayoutToTutor(ctx context.Context, tutorID uuid.UUID, amountCents int64, currency string) (externalPayoutID string, err error)

	// VerifyWebhook checks the provider's signature over payload and, on
	// success, returns the normalized event. Callers must reject the
	// request (not just skip processing) when err is non-nil.
	VerifyWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error)
}
