package repository

import (
	"context"
	"fmt"
	"time"

	"tutoring-platform/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepository implements the Payment Ledger's wallet contract. Every
// mutation is a single atomic SQL statement — never a read-then-assign —
// so concurrent top-ups and deductions compose correctly (Testable
// Property 8: wallet atomicity).
type WalletRepository struct{}

func NewWalletRepository() *WalletRepository {
	return &WalletRepository{}
}

// walletExecer is the slice of pgx.Tx atomicDelta actually calls. Narrowing
// the parameter to this lets a test drive the real arithmetic/SQL-shape
// logic against an in-memory stand-in for a single wallet row, the same way
// GetBalance below already narrows to QueryRow alone.
type walletExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgx.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// WalletAdd increments a student's balance atomically and returns the new
// balance. The wallet row is created on first use.
func (r *WalletRepository) WalletAdd(ctx context.Context, tx walletExecer, studentID uuid.UUID, amountCents int64, reason string, bookingID *uuid.UUID) (int64, error) {
	return r.atomicDelta(ctx, tx, studentID, amountCents, models.WalletOperationAdd, reason, bookingID)
}

// WalletDeduct decrements a student's balance atomically. It returns
// ErrInsufficientWalletFunds — never a negative balance — if the deduction
// would take the balance below zero.
func (r *WalletRepository) WalletDeduct(ctx context.Context, tx walletExecer, studentID uuid.UUID, amountCents int64, reason string, bookingID *uuid.UUID) (int64, error) {
	return r.atomicDelta(ctx, tx, studentID, -amountCents, models.WalletOperationDeduct, reason, bookingID)
}

// WalletRefund credits a refund back onto the wallet. Modeled as a distinct
// operation type from Add purely for audit-trail clarity.
func (r *WalletRepository) WalletRefund(ctx context.Context, tx walletExecer, studentID uuid.UUID, amountCents int64, reason string, bookingID *uuid.UUID) (int64, error) {
	return r.atomicDelta(ctx, tx, studentID, amountCents, models.WalletOperationRefund, reason, bookingID)
}

func (r *WalletRepository) atomicDelta(ctx context.Context, tx walletExecer, studentID uuid.UUID, delta int64, op models.WalletOperationType, reason string, bookingID *uuid.UUID) (int64, error) {
	upsert := `
		INSERT INTO wallets (id, student_id, credit_balance_cents, created_at, updated_at)
		VALUES ($1, $2, 0, $3, $3)
		ON CONFLICT (student_id) DO NOTHING
	`
	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, upsert, uuid.New(), studentID, now); err != nil {
		return 0, fmt.Errorf("failed to ensure wallet row: %w", err)
	}

	var newBalance int64
	update := `
		UPDATE wallets
		SET credit_balance_cents = credit_balance_cents + $1, updated_at = $2
		WHERE student_id = $3 AND credit_balance_cents + $1 >= 0
		RETURNING credit_balance_cents
	`
	err := tx.QueryRow(ctx, update, delta, now, studentID).Scan(&newBalance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrInsufficientWalletFunds
		}
		return 0, fmt.Errorf("failed to apply wallet delta: %w", err)
	}

	txnQuery := `
		INSERT INTO wallet_transactions (id, student_id, amount_cents, operation_type, reason, booking_id, balance_after_cents, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := tx.Exec(ctx, txnQuery, uuid.New(), studentID, delta, op, reason, bookingID, newBalance, now); err != nil {
		return 0, fmt.Errorf("failed to record wallet transaction: %w", err)
	}

	return newBalance, nil
}

// GetBalance returns a student's current balance without locking, for
// read-only display purposes.
func (r *WalletRepository) GetBalance(ctx context.Context, db interface {
	QueryRow(context.Context, string, ...any) pgx.Row
}, studentID uuid.UUID) (int64, error) {
	var balance int64
	err := db.QueryRow(ctx, `SELECT credit_balance_cents FROM wallets WHERE student_id = $1`, studentID).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get wallet balance: %w", err)
	}
	return balance, nil
}
