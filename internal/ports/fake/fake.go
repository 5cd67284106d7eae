// Package fake provides in-memory implementations of internal/ports for
// tests, so the Orchestrator's transactional flow can be exercised without
// a LiveKit, SMTP, or Stripe account.
package fake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tutoring-platform/internal/ports"

	"github.com/google/uuid"
)

// Meeting records every created/cancelled room in memory.
type Meeting struct {
	mu      sync.Mutex
	Created []ports.MeetingHandle
	Cancelled []string
}

func NewMeeting() *Meeting { return &Meeting{} }

func (m *Meeting) CreateMeeting(ctx context.Context, bookingID uuid.UUID, topic string, start time.Time, duration time.Duration) (*ports.MeetingHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := ports.MeetingHandle{MeetingID: "fake-meeting-" + bookingID.String(), JoinURL: "https://fake.meet/" + bookingID.String()}
	m.Created = append(m.Created, h)
	return &h, nil
}

func (m *Meeting) CancelMeeting(ctx context.Context, meetingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cancelled = append(m.Cancelled, meetingID)
	return nil
}

// Calendar records created/cancelled events in memory.
type Calendar struct {
	mu      sync.Mutex
	Created []string
	Cancelled []string
}

func NewCalendar() *Calendar { return &Calendar{} }

func (c *Calendar) CreateEvent(ctx context.Context, bookingID uuid.UUID, start, end time.Time, attendees []string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := "fake-event-" + bookingID.String()
	c.Created = append(c.Created, id)
	return id, nil
}

func (c *Calendar) CancelEvent(ctx context.Context, eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Cancelled = append(c.Cancelled, eventID)
	return nil
}

// Email records every send instead of dispatching it.
type Email struct {
	mu   sync.Mutex
	Sent []SentEmail
}

type SentEmail struct {
	To       string
	Template string
	Data     map[string]any
}

func NewEmail() *Email { return &Email{} }

func (e *Email) Send(ctx context.Context, to string, template string, data map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Sent = append(e.Sent, SentEmail{To: to, Template: template, Data: data})
	return nil
}

// Payments is a scripted in-memory PaymentProvider: checkout sessions and
// refunds are assigned deterministic ids, and capture/refund failures can be
// injected via FailCapture/FailRefund for testing the Orchestrator's
// compensating paths.
type Payments struct {
	mu          sync.Mutex
	seq         int
	FailCapture bool
	FailRefund  bool
	Captured    []string
	Refunded    []string
	Payouts     []string

	// NextWebhookEvent, when set, is returned verbatim by VerifyWebhook
	// instead of the signature-less payload parsing below, so a test can
	// drive a specific event (including OccurredAt) without reproducing a
	// provider's wire format.
	NextWebhookEvent *ports.WebhookEvent
}

func NewPayments() *Payments { return &Payments{} }

func (p *Payments) CreateCheckoutSession(ctx context.Context, bookingID uuid.UUID, amountCents int64, currency string) (*ports.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	return &ports.CheckoutSession{
		ExternalSessionID: fmt.Sprintf("fake-session-%d", p.seq),
		CheckoutURL:       fmt.Sprintf("https://fake.checkout/%d", p.seq),
	}, nil
}

func (p *Payments) CapturePaymentIntent(ctx context.Context, externalIntentID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailCapture {
		return fmt.Errorf("fake payments: capture forced to fail")
	}
	p.Captured = append(p.Captured, externalIntentID)
	return nil
}

func (p *Payments) RefundPaymentIntent(ctx context.Context, externalIntentID string, amountCents int64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailRefund {
		return "", fmt.Errorf("fake payments: refund forced to fail")
	}
	p.seq++
	id := fmt.Sprintf("fake-refund-%d", p.seq)
	p.Refunded = append(p.Refunded, id)
	return id, nil
}

func (p *Payments) PayoutToTutor(ctx context.Context, tutorID uuid.UUID, amountCents int64, currency string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	id := fmt.Sprintf("fake-payout-%d", p.seq)
	p.Payouts = append(p.Payouts, id)
	return id, nil
}

// VerifyWebhook does no signing: it rejects only an empty signatureHeader,
// returns NextWebhookEvent when a test has set one, and otherwise builds
// an event whose EventID is signatureHeader and whose Type and external
// IDs are all the payload string, so tests need not reproduce Stripe's
// HMAC scheme.
func (p *Payments) VerifyWebhook(payload []byte, signatureHeader string) (*ports.WebhookEvent, error) {
	if signatureHeader == "" {
		return nil, fmt.Errorf("fake payments: missing signature")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.NextWebhookEvent != nil {
		return p.NextWebhookEvent, nil
	}
	return &ports.WebhookEvent{
		EventID:           signatureHeader,
		Type:              string(payload),
		ExternalSessionID: string(payload),
		ExternalIntentID:  string(payload),
		OccurredAt:        time.Now().UTC(),
	}, nil
}
