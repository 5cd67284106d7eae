package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tutoring-platform/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PaymentRepository is the payment side of the Payment Ledger: durable
// records of payments, keyed for idempotent capture.
type PaymentRepository struct{}

func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{}
}

// RecordPayment inserts a new pending Payment row for a booking.
func (r *PaymentRepository) RecordPayment(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID, externalSessionID string, amountCents int64, currency, idempotencyKey string) (*models.Payment, error) {
	p := &models.Payment{
		ID:                uuid.New(),
		BookingID:         bookingID,
		ExternalSessionID: externalSessionID,
		AmountCents:       amountCents,
		Currency:          currency,
		State:             models.LedgerPaymentPending,
		IdempotencyKey:    idempotencyKey,
		CreatedAt:         time.Now().UTC(),
	}
	query := `
		INSERT INTO payments (id, booking_id, external_session_id, amount_cents, currency, state, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := tx.Exec(ctx, query, p.ID, p.BookingID, p.ExternalSessionID, p.AmountCents, p.Currency, p.State, p.IdempotencyKey, p.CreatedAt)
	if err != nil {
		if IsUniqueViolationError(err) {
			existing, getErr := r.GetByIdempotencyKey(ctx, tx, idempotencyKey)
			if getErr != nil {
				return nil, getErr
			}
			return existing, nil
		}
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}
	return p, nil
}

// Capture transitions a payment to captured. It is idempotent when called
// twice with the same external intent id: the second call returns the
// already-captured row with WasExisting = true and performs no write.
func (r *PaymentRepository) Capture(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID, externalIntentID string) (*models.CapturePaymentResult, error) {
	existing, err := r.getForUpdate(ctx, tx, paymentID)
	if err != nil {
		return nil, err
	}
	if existing.State == models.LedgerPaymentCaptured {
		return &models.CapturePaymentResult{Payment: existing, WasExisting: true}, nil
	}

	now := time.Now().UTC()
	query := `
		UPDATE payments
		SET state = $1, external_intent_id = $2, captured_at = $3
		WHERE id = $4
		RETURNING state, external_intent_id, captured_at
	`
	row := tx.QueryRow(ctx, query, models.LedgerPaymentCaptured, externalIntentID, now, paymentID)
	if err := row.Scan(&existing.State, &existing.ExternalIntentID, &existing.CapturedAt); err != nil {
		return nil, fmt.Errorf("failed to capture payment: %w", err)
	}
	return &models.CapturePaymentResult{Payment: existing, WasExisting: false}, nil
}

func (r *PaymentRepository) getForUpdate(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) (*models.Payment, error) {
	query := `SELECT ` + PaymentSelectFields + ` FROM payments WHERE id = $1 FOR UPDATE`
	var p models.Payment
	var capturedAt sql.NullTime
	err := tx.QueryRow(ctx, query, paymentID).Scan(
		&p.ID, &p.BookingID, &p.ExternalSessionID, &p.ExternalIntentID,
		&p.AmountCents, &p.Currency, &p.State, &p.IdempotencyKey, &p.CreatedAt, &capturedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	if capturedAt.Valid {
		p.CapturedAt = &capturedAt.Time
	}
	return &p, nil
}

// GetByIdempotencyKey returns the payment previously recorded under key, if any.
func (r *PaymentRepository) GetByIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) (*models.Payment, error) {
	query := `SELECT ` + PaymentSelectFields + ` FROM payments WHERE idempotency_key = $1`
	var p models.Payment
	var capturedAt sql.NullTime
	err := tx.QueryRow(ctx, query, key).Scan(
		&p.ID, &p.BookingID, &p.ExternalSessionID, &p.ExternalIntentID,
		&p.AmountCents, &p.Currency, &p.State, &p.IdempotencyKey, &p.CreatedAt, &capturedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to load payment by idempotency key: %w", err)
	}
	if capturedAt.Valid {
		p.CapturedAt = &capturedAt.Time
	}
	return &p, nil
}

// GetByExternalSessionID looks up the payment row created for a checkout
// session, used by the webhook ingress to resolve a checkout.session.completed
// event back to the payment it authorizes.
func (r *PaymentRepository) GetByExternalSessionID(ctx context.Context, tx pgx.Tx, externalSessionID string) (*models.Payment, error) {
	query := `SELECT ` + PaymentSelectFields + ` FROM payments WHERE external_session_id = $1`
	var p models.Payment
	var capturedAt sql.NullTime
	err := tx.QueryRow(ctx, query, externalSessionID).Scan(
		&p.ID, &p.BookingID, &p.ExternalSessionID, &p.ExternalIntentID,
		&p.AmountCents, &p.Currency, &p.State, &p.IdempotencyKey, &p.CreatedAt, &capturedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to load payment by checkout session: %w", err)
	}
	if capturedAt.Valid {
		p.CapturedAt = &capturedAt.Time
	}
	return &p, nil
}

// GetByExternalIntentID looks up a payment already associated with a
// provider payment intent, used for webhook events (e.g. a failure) that
// carry only the intent id and not the originating checkout session id.
func (r *PaymentRepository) GetByExternalIntentID(ctx context.Context, tx pgx.Tx, externalIntentID string) (*models.Payment, error) {
	query := `SELECT ` + PaymentSelectFields + ` FROM payments WHERE external_intent_id = $1`
	var p models.Payment
	var capturedAt sql.NullTime
	err := tx.QueryRow(ctx, query, externalIntentID).Scan(
		&p.ID, &p.BookingID, &p.ExternalSessionID, &p.ExternalIntentID,
		&p.AmountCents, &p.Currency, &p.State, &p.IdempotencyKey, &p.CreatedAt, &capturedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to load payment by intent id: %w", err)
	}
	if capturedAt.Valid {
		p.CapturedAt = &capturedAt.Time
	}
	return &p, nil
}

// MarkFailed transitions a payment to failed, leaving a captured payment
// untouched (a late failure notification after a successful capture is
// stale and must not regress the ledger).
func (r *PaymentRepository) MarkFailed(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) error {
	_, err := tx.Exec(ctx, `UPDATE payments SET state = $1 WHERE id = $2 AND state != $3`,
		models.LedgerPaymentFailed, paymentID, models.LedgerPaymentCaptured)
	if err != nil {
		return fmt.Errorf("failed to mark payment failed: %w", err)
	}
	return nil
}

// GetCapturedForBooking returns the single payment currently in state
// captured for a booking, if one exists.
func (r *PaymentRepository) GetCapturedForBooking(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID) (*models.Payment, error) {
	query := `SELECT ` + PaymentSelectFields + ` FROM payments WHERE booking_id = $1 AND state = $2`
	var p models.Payment
	var capturedAt sql.NullTime
	err := tx.QueryRow(ctx, query, bookingID, models.LedgerPaymentCaptured).Scan(
		&p.ID, &p.BookingID, &p.ExternalSessionID, &p.ExternalIntentID,
		&p.AmountCents, &p.Currency, &p.State, &p.IdempotencyKey, &p.CreatedAt, &capturedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to load captured payment: %w", err)
	}
	if capturedAt.Valid {
		p.CapturedAt = &capturedAt.Time
	}
	return &p, nil
}
