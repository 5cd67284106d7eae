package models

import "errors"

// Field-level validation errors surfaced to callers as 4xx. These check
// request shape only; state and conflict checks belong to the State Machine
// and Booking Store.
var (
	ErrInvalidStudentID         = errors.New("invalid student id")
	ErrInvalidTutorID           = errors.New("invalid tutor id")
	ErrInvalidAdminID           = errors.New("invalid admin id")
	ErrInvalidBookingID         = errors.New("invalid booking id")
	ErrInvalidBookingWindow     = errors.New("booking end time must be after start time")
	ErrBookingTooShort          = errors.New("booking duration must be at least 30 minutes")
	ErrInvalidAmount            = errors.New("amount_cents must be non-negative")
	ErrInvalidCurrency          = errors.New("currency is required")
	ErrMissingIdempotencyKey    = errors.New("idempotency_key is required")
	ErrInvalidCancelledByRole   = errors.New("invalid cancelled-by role")
	ErrInvalidNoShowParty       = errors.New("invalid no-show party")
	ErrInvalidReason            = errors.New("reason is required")
	ErrInvalidDisputeResolution = errors.New("invalid dispute resolution")
	ErrMissingConfirmToken      = errors.New("confirm_token is required")
)
