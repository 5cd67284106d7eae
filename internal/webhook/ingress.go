// Package webhook turns a verified payment provider notification into a
// ledger/booking state change, deduping retried deliveries and discarding
// events superseded by a later one for the same payment.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tutoring-platform/internal/models"
	"tutoring-platform/internal/ports"
	"tutoring-platform/internal/repository"
	"tutoring-platform/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const (
	eventCheckoutCompleted = "checkout.session.completed"
	eventPaymentSucceeded  = "payment_intent.succeeded"
	eventPaymentFailed     = "payment_intent.payment_failed"
	eventChargeRefunded    = "charge.refunded"
)

// Ingress is the receiving side of a payment provider's webhook callback.
// It owns signature verification, dedupe bookkeeping, and dispatch to the
// Orchestrator's ledger-sync methods.
type Ingress struct {
	pool     *pgxpool.Pool
	webhooks *repository.WebhookRepository
	provider ports.PaymentProvider
	orch     *service.Orchestrator
}

func NewIngress(pool *pgxpool.Pool, webhooks *repository.WebhookRepository, provider ports.PaymentProvider, orch *service.Orchestrator) *Ingress {
	return &Ingress{pool: pool, webhooks: webhooks, provider: provider, orch: orch}
}

// ErrInvalidSignature is returned when the provider's signature over the raw
// payload does not check out. The caller must respond 401/400, never 200,
// so the provider keeps retrying instead of believing the event landed.
var ErrInvalidSignature = errors.New("webhook: invalid signature")

// Handle verifies payload against signatureHeader, dedupes by event id, and
// applies the event's effect to the ledger. A duplicate delivery is a no-op
// that still returns nil, matching the idempotent-ack contract providers
// expect from a webhook endpoint.
func (in *Ingress) Handle(ctx context.Context, payload []byte, signatureHeader string) error {
	event, err := in.provider.VerifyWebhook(payload, signatureHeader)
	if err != nil {
		return ErrInvalidSignature
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	tx, err := in.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin webhook transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	last, err := in.webhooks.GetLastProcessed(ctx, tx, event.Type)
	if err != nil {
		return err
	}
	if isStaleDelivery(last, occurredAt) {
		log.Info().Str("event_id", event.EventID).Str("type", event.Type).
			Time("occurred_at", occurredAt).Time("last_processed_at", last.LogicalTimestamp).
			Msg("webhook: stale out-of-order delivery discarded")
		return nil
	}

	alreadyProcessed, err := in.webhooks.MarkProcessed(ctx, tx, event.EventID, event.Type, occurredAt)
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit webhook dedupe record: %w", err)
	}
	if alreadyProcessed {
		log.Info().Str("event_id", event.EventID).Str("type", event.Type).Msg("webhook: duplicate delivery ignored")
		return nil
	}

	switch event.Type {
	case eventCheckoutCompleted, eventPaymentSucceeded:
		if event.ExternalSessionID == "" {
			// payment_intent.succeeded alone carries no session id; the
			// checkout.session.completed event for the same charge is
			// what actually drives the capture.
			return nil
		}
		return in.orch.ApplyPaymentCaptured(ctx, event.ExternalSessionID, event.ExternalIntentID)

	case eventPaymentFailed:
		return in.orch.ApplyPaymentFailed(ctx, event.ExternalIntentID)

	case eventChargeRefunded:
		// The Orchestrator issues refunds itself via RefundPaymentIntent
		// and records them synchronously; this event only confirms a
		// refund already reflected in the ledger, so there is nothing
		// further to apply.
		return nil

	default:
		log.Info().Str("event_id", event.EventID).Str("type", event.Type).Msg("webhook: unhandled event type")
		return nil
	}
}

// isStaleDelivery reports whether occurredAt is older than the last event of
// the same type already applied, tolerating provider delivery reordering:
// a payment_succeeded arriving after a payment_refunded for the same type
// must not replay a stale effect on top of a more recent one.
func isStaleDelivery(last *models.ProcessedWebhook, occurredAt time.Time) bool {
	return last != nil && occurredAt.Before(last.LogicalTimestamp)
}
