package models

import (
	"time"

	"github.com/google/uuid"
)

// WalletOperationType mirrors the teacher's credit OperationType enum,
// generalized to cents-based wallet accounting.
type WalletOperationType string

const (
	WalletOperationAdd    WalletOperationType = "add"
	WalletOperationDeduct WalletOperationType = "deduct"
	WalletOperationRefund WalletOperationType = "refund"
)

// Wallet is the per-student credit balance in the platform's settlement
// currency. All mutation goes through atomic store-side arithmetic — never
// read-then-assign (see internal/repository/wallet_repo.go).
type Wallet struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	StudentID          uuid.UUID `db:"student_id" json:"student_id"`
	CreditBalanceCents int64     `db:"credit_balance_cents" json:"credit_balance_cents"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// WalletTransaction is an audit row written alongside every atomic balance
// mutation, mirroring the teacher's CreditTransaction ledger pattern.
type WalletTransaction struct {
	ID              uuid.UUID           `db:"id" json:"id"`
	StudentID       uuid.UUID           `db:"student_id" json:"student_id"`
	AmountCents     int64               `db:"amount_cents" json:"amount_cents"`
	OperationType   WalletOperationType `db:"operation_type" json:"operation_type"`
	Reason          string              `db:"reason" json:"reason"`
	BookingID       uuid.NullUUID       `db:"booking_id" json:"booking_id,omitempty"`
	BalanceAfter    int64               `db:"balance_after_cents" json:"balance_after_cents"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
}
