package handlers

import (
	"io"
	"net/http"

	"tutoring-platform/internal/webhook"
	"tutoring-platform/pkg/response"

	"github.com/rs/zerolog/log"
)

// PaymentHandler exposes the payment provider webhook endpoint. Everything
// else about a booking's payment (checkout, refund) is driven by the
// Orchestrator from booking commands, not from this handler.
type PaymentHandler struct {
	ingress *webhook.Ingress
}

func NewPaymentHandler(ingress *webhook.Ingress) *PaymentHandler {
	return &PaymentHandler{ingress: ingress}
}

// Webhook receives a payment provider notification, verifies its signature,
// and applies its effect to the ledger.
// POST /api/v1/webhooks/payments
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		response.BadRequest(w, response.ErrCodeInvalidInput, "failed to read request body")
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if err := h.ingress.Handle(ctx, body, signature); err != nil {
		if err == webhook.ErrInvalidSignature {
			response.Error(w, http.StatusUnauthorized, response.ErrCodeInvalidSignature, "webhook signature verification failed")
			return
		}
		log.Error().Err(err).Msg("webhook: failed to apply event")
		response.InternalError(w, "failed to process webhook")
		return
	}

	w.WriteHeader(http.StatusOK)
}
