package repository

import (
	"context"
	"fmt"
	"time"

	"tutoring-platform/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RefundRepository records refunds against captured payments, enforcing
// that the sum of non-failed refunds never exceeds the original payment.
type RefundRepository struct{}

func NewRefundRepository() *RefundRepository {
	return &RefundRepository{}
}

// RecordRefund inserts a refund row, idempotent on externalRefundID: a
// second call with the same externalRefundID returns the existing row
// with WasExisting = true rather than double-refunding.
func (r *RefundRepository) RecordRefund(ctx context.Context, tx pgx.Tx, paymentID, bookingID uuid.UUID, amountCents int64, reason models.RefundReason, externalRefundID string) (*models.RecordRefundResult, error) {
	if existing, err := r.getByExternalID(ctx, tx, externalRefundID); err == nil {
		return &models.RecordRefundResult{Refund: existing, WasExisting: true}, nil
	} else if err != ErrRefundNotFound {
		return nil, err
	}

	var paymentAmount int64
	err := tx.QueryRow(ctx, `SELECT amount_cents FROM payments WHERE id = $1 FOR UPDATE`, paymentID).Scan(&paymentAmount)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to load payment for refund: %w", err)
	}

	var refundedSoFar int64
	err = tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount_cents), 0) FROM refunds WHERE payment_id = $1`, paymentID).Scan(&refundedSoFar)
	if err != nil {
		return nil, fmt.Errorf("failed to sum existing refunds: %w", err)
	}
	if refundedSoFar+amountCents > paymentAmount {
		return nil, ErrRefundExceedsPayment
	}

	refund := &models.Refund{
		ID:               uuid.New(),
		PaymentID:        paymentID,
		BookingID:        bookingID,
		ExternalRefundID: externalRefundID,
		AmountCents:      amountCents,
		Reason:           reason,
		CreatedAt:        time.Now().UTC(),
	}
	insert := `
		INSERT INTO refunds (id, payment_id, booking_id, external_refund_id, amount_cents, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.Exec(ctx, insert, refund.ID, refund.PaymentID, refund.BookingID, refund.ExternalRefundID, refund.AmountCents, refund.Reason, refund.CreatedAt)
	if err != nil {
		if IsUniqueViolationError(err) {
			existing, getErr := r.getByExternalID(ctx, tx, externalRefundID)
			if getErr != nil {
				return nil, getErr
			}
			return &models.RecordRefundResult{Refund: existing, WasExisting: true}, nil
		}
		return nil, fmt.Errorf("failed to record refund: %w", err)
	}

	return &models.RecordRefundResult{Refund: refund, WasExisting: false}, nil
}

func (r *RefundRepository) getByExternalID(ctx context.Context, tx pgx.Tx, externalRefundID string) (*models.Refund, error) {
	query := `SELECT ` + RefundSelectFields + ` FROM refunds WHERE external_refund_id = $1`
	var rf models.Refund
	err := tx.QueryRow(ctx, query, externalRefundID).Scan(
		&rf.ID, &rf.PaymentID, &rf.BookingID, &rf.ExternalRefundID, &rf.AmountCents, &rf.Reason, &rf.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrRefundNotFound
		}
		return nil, fmt.Errorf("failed to load refund by external id: %w", err)
	}
	return &rf, nil
}

// SumRefunded returns the total amount refunded so far against a payment.
func (r *RefundRepository) SumRefunded(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) (int64, error) {
	var total int64
	err := tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount_cents), 0) FROM refunds WHERE payment_id = $1`, paymentID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum refunds: %w", err)
	}
	return total, nil
}
