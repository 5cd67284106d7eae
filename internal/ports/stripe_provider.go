package ports

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/paymentintent"
	"github.com/stripe/stripe-go/v81/refund"
	"github.com/stripe/stripe-go/v81/transfer"
	"github.com/stripe/stripe-go/v81/webhook"
)

// StripeProvider implements PaymentProvider against the real Stripe API.
// It replaces the source platform's YooKassa client one-for-one: a
// checkout session per booking, capture on tutor approval, refund on
// cancellation, and a Connect transfer for tutor payouts.
type StripeProvider struct {
	successURL    string
	cancelURL     string
	webhookSecret string
}

func NewStripeProvider(apiKey, successURL, cancelURL, webhookSecret string) *StripeProvider {
	stripe.Key = apiKey
	return &StripeProvider{successURL: successURL, cancelURL: cancelURL, webhookSecret: webhookSecret}
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, bookingID uuid.UUID, amountCents int64, currency string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(amountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Tutoring session"),
					},
				},
			},
		},
		SuccessURL: stripe.String(p.successURL),
		CancelURL:  stripe.String(p.cancelURL),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		},
		Metadata: map[string]string{"booking_id": bookingID.String()},
	}
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: failed to create checkout session: %w", err)
	}
	return &CheckoutSession{ExternalSessionID: sess.ID, CheckoutURL: sess.URL}, nil
}

// CapturePaymentIntent captures a payment intent that was authorized with
// manual capture, corresponding to tutor_approves committing the charge.
func (p *StripeProvider) CapturePaymentIntent(ctx context.Context, externalIntentID string) error {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	if _, err := paymentintent.Capture(externalIntentID, params); err != nil {
		return fmt.Errorf("stripe: failed to capture payment intent: %w", err)
	}
	return nil
}

func (p *StripeProvider) RefundPaymentIntent(ctx context.Context, externalIntentID string, amountCents int64) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(externalIntentID),
		Amount:        stripe.Int64(amountCents),
	}
	params.Context = ctx
	rf, err := refund.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: failed to create refund: %w", err)
	}
	return rf.ID, nil
}

// PayoutToTutor moves the tutor's share to their connected account via a
// Stripe Connect transfer. The transfer is created immediately: no payout
// delay is applied here, and no scheduler job in this service calls it.
func (p *StripeProvider) PayoutToTutor(ctx context.Context, tutorID uuid.UUID, amountCents int64, currency string) (string, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(amountCents),
		Currency:    stripe.String(currency),
		Destination: stripe.String(tutorID.String()),
	}
	params.Context = ctx
	tr, err := transfer.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: failed to create payout transfer: %w", err)
	}
	return tr.ID, nil
}

// VerifyWebhook validates the Stripe-Signature header and normalizes the
// event fields the ingress needs from whichever of the three object types
// (checkout session, payment intent, refund) the event wraps.
func (p *StripeProvider) VerifyWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, p.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("stripe: webhook signature verification failed: %w", err)
	}

	out := &WebhookEvent{EventID: event.ID, Type: string(event.Type), OccurredAt: time.Unix(event.Created, 0).UTC()}

	switch {
	case event.Type == "checkout.session.completed":
		var obj struct {
			ID            string `json:"id"`
			PaymentIntent string `json:"payment_intent"`
		}
		if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
			return nil, fmt.Errorf("stripe: failed to parse checkout session payload: %w", err)
		}
		out.ExternalSessionID = obj.ID
		out.ExternalIntentID = obj.PaymentIntent

	case event.Type == "payment_intent.succeeded" || event.Type == "payment_intent.payment_failed":
		var obj struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
			return nil, fmt.Errorf("stripe: failed to parse payment intent payload: %w", err)
		}
		out.ExternalIntentID = obj.ID

	case event.Type == "charge.refunded":
		var obj struct {
			PaymentIntent string `json:"payment_intent"`
		}
		if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
			return nil, fmt.Errorf("stripe: failed to parse charge payload: %w", err)
		}
		out.ExternalIntentID = obj.PaymentIntent
	}

	return out, nil
}
