package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Repository-level sentinel errors. Handlers and the Orchestrator translate
// these into the error categories of §9: StateRejection, OptimisticLockConflict,
// Conflict, and so on.
var (
	ErrBookingNotFound = errors.New("booking not found")

	// ErrOptimisticLockConflict is returned by update() when expected_version
	// does not match the row's current version. The Orchestrator makes up
	// to 3 attempts in total before surfacing it to the caller.
	ErrOptimisticLockConflict = errors.New("booking version conflict")

	// ErrTimeConflict is returned by create() when a conflicting-window
	// booking already exists for the tutor.
	ErrTimeConflict = errors.New("tutor has an overlapping booking in this window")

	ErrPaymentNotFound          = errors.New("payment not found")
	ErrRefundNotFound           = errors.New("refund not found")
	ErrRefundExceedsPayment     = errors.New("refund amount exceeds remaining payment amount")
	ErrInsufficientWalletFunds  = errors.New("insufficient wallet balance")
	ErrWalletNotFound           = errors.New("wallet not found")
	ErrWebhookAlreadyProcessed  = errors.New("webhook event already processed")
	ErrAvailabilitySlotNotFound = errors.New("availability slot not found")
	ErrPackageNotFound          = errors.New("package not found")
	ErrPackageExhausted         = errors.New("package has no remaining sessions")
)

// IsUniqueViolationError reports whether err is a PostgreSQL unique
// constraint violation (SQLSTATE 23505). Used to translate duplicate-insert
// races (e.g. two tutor_approves racing) into domain errors.
func IsUniqueViolationError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}

// IsExclusionViolationError reports whether err is a PostgreSQL exclusion
// constraint violation (SQLSTATE 23P01), used for the tutor-schedule
// EXCLUDE-based conflict guard as a second line of defense behind the
// in-transaction time_conflict_exists check.
func IsExclusionViolationError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23P01"
	}
	return false
}
