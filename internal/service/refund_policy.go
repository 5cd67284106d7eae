// Package service holds the orchestration layer: the transactional booking
// command handlers and the pure policies they consult. Grounded on the
// teacher's constructor-injected service layer (NewBookingService,
// NewCreditService) — same dependency-injection shape, new domain logic.
package service

import (
	"time"

	"tutoring-platform/internal/models"
)

// RefundReasonCode explains how a RefundDecision was reached, for logging
// and for picking the RefundReason stamped on the ledger entry.
type RefundReasonCode string

const (
	ReasonTutorCancelled       RefundReasonCode = "tutor_cancelled"
	ReasonStudentCancelledFull RefundReasonCode = "student_cancelled_before_cutoff"
	ReasonStudentCancelledLate RefundReasonCode = "student_cancelled_after_cutoff"
	ReasonNoShowStudent        RefundReasonCode = "no_show_student"
	ReasonNoShowTutor          RefundReasonCode = "no_show_tutor"
	ReasonRequestExpired       RefundReasonCode = "request_expired"
	ReasonAdminOverride        RefundReasonCode = "admin_override"
	ReasonDisputeHeld          RefundReasonCode = "dispute_held"
	ReasonNoPaymentToRefund    RefundReasonCode = "no_payment_captured"
)

// RefundDecision is the sized outcome of a cancellation or session end:
// how much goes back to the student, how much (if anything) goes to the
// tutor, and why.
type RefundDecision struct {
	RefundAmountCents int64
	TutorPayoutCents  int64
	Reason            RefundReasonCode
}

// RefundPolicy implements the deterministic refund/payout table of the
// cancellation and no-show rules. It performs no I/O: every input it needs
// (amount, fee, cutoff, time-to-start) is computed or configured by the
// caller, the same way the teacher's validator package takes its
// dependencies as injected interfaces rather than reaching for globals.
type RefundPolicy struct {
	// CancellationCutoff is the "≥ 12h before start" boundary above which a
	// student cancellation is fully refunded.
	CancellationCutoff time.Duration
}

func NewRefundPolicy(cutoff time.Duration) *RefundPolicy {
	return &RefundPolicy{CancellationCutoff: cutoff}
}

// ComputeCancellation sizes the refund/payout for a cancel command.
// amountCents is the captured payment total; platformFeeCents is the
// platform's cut the tutor never receives on a late-cancellation payout.
func (p *RefundPolicy) ComputeCancellation(role models.CancelledByRole, timeToStart time.Duration, paymentState models.PaymentState, amountCents, platformFeeCents int64) RefundDecision {
	if paymentState != models.PaymentStateCaptured {
		return RefundDecision{Reason: ReasonNoPaymentToRefund}
	}

	switch role {
	case models.CancelledByTutor, models.CancelledBySystem:
		return RefundDecision{RefundAmountCents: amountCents, Reason: ReasonTutorCancelled}
	case models.CancelledByAdmin:
		// Admin-initiated cancellations default to a full refund; admins who
		// want a different split use resolve_dispute's explicit amount path.
		return RefundDecision{RefundAmountCents: amountCents, Reason: ReasonAdminOverride}
	case models.CancelledByStudent:
		if timeToStart >= p.CancellationCutoff {
			return RefundDecision{RefundAmountCents: amountCents, Reason: ReasonStudentCancelledFull}
		}
		payout := amountCents - platformFeeCents
		if payout < 0 {
			payout = 0
		}
		return RefundDecision{TutorPayoutCents: payout, Reason: ReasonStudentCancelledLate}
	default:
		return RefundDecision{Reason: ReasonNoPaymentToRefund}
	}
}

// ComputeNoShow sizes the refund/payout when a session ends with a no-show
// outcome rather than COMPLETED.
func (p *RefundPolicy) ComputeNoShow(party models.NoShowParty, amountCents int64) RefundDecision {
	switch party {
	case models.NoShowStudent:
		return RefundDecision{Reason: ReasonNoShowStudent}
	case models.NoShowTutor:
		return RefundDecision{RefundAmountCents: amountCents, Reason: ReasonNoShowTutor}
	default:
		return RefundDecision{Reason: ReasonNoPaymentToRefund}
	}
}

// ComputeDisputeResolution applies an admin's explicit split on a resolved
// dispute. A nil explicitAmount defaults to a full refund for
// favor_student and a payout of the amount net of the platform fee for
// favor_tutor.
func (p *RefundPolicy) ComputeDisputeResolution(resolution models.DisputeResolution, amountCents, platformFeeCents int64, explicitAmount *int64) RefundDecision {
	if explicitAmount != nil {
		amt := *explicitAmount
		if amt < 0 {
			amt = 0
		}
		if amt > amountCents {
			amt = amountCents
		}
		switch resolution {
		case models.DisputeResolutionFavorStudent:
			return RefundDecision{RefundAmountCents: amt, Reason: ReasonAdminOverride}
		default:
			return RefundDecision{TutorPayoutCents: amt, Reason: ReasonAdminOverride}
		}
	}

	switch resolution {
	case models.DisputeResolutionFavorStudent:
		return RefundDecision{RefundAmountCents: amountCents, Reason: ReasonAdminOverride}
	default:
		payout := amountCents - platformFeeCents
		if payout < 0 {
			payout = 0
		}
		return RefundDecision{TutorPayoutCents: payout, Reason: ReasonAdminOverride}
	}
}

// ComputeExpiry sizes the refund for a REQUESTED booking that expired
// before the tutor acted on it. A captured payment is refunded in full;
// there is never a tutor payout since the session never happened.
func (p *RefundPolicy) ComputeExpiry(paymentState models.PaymentState, amountCents int64) RefundDecision {
	if paymentState != models.PaymentStateCaptured {
		return RefundDecision{Reason: ReasonNoPaymentToRefund}
	}
	return RefundDecision{RefundAmountCents: amountCents, Reason: ReasonRequestExpired}
}

// PayoutHeld reports whether an open dispute should suppress an otherwise
// due tutor payout until resolution.
func PayoutHeld(disputeState models.DisputeState) bool {
	return disputeState == models.DisputeStateOpen
}
