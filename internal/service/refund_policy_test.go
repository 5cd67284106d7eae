package service

import (
	"testing"
	"time"

	"tutoring-platform/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestComputeCancellation_UncapturedPaymentNeverRefunds(t *testing.T) {
	p := NewRefundPolicy(12 * time.Hour)
	decision := p.ComputeCancellation(models.CancelledByStudent, 24*time.Hour, models.PaymentStatePending, 5000, 500)
	assert.Equal(t, int64(0), decision.RefundAmountCents)
	assert.Equal(t, int64(0), decision.TutorPayoutCents)
	assert.Equal(t, ReasonNoPaymentToRefund, decision.Reason)
}

func TestComputeCancellation_TutorCancelsAlwaysFullRefund(t *testing.T) {
	p := NewRefundPolicy(12 * time.Hour)
	decision := p.ComputeCancellation(models.CancelledByTutor, time.Minute, models.PaymentStateCaptured, 5000, 500)
	assert.Equal(t, int64(5000), decision.RefundAmountCents)
	assert.Equal(t, int64(0), decision.TutorPayoutCents)
	assert.Equal(t, ReasonTutorCancelled, decision.Reason)
}

func TestComputeCancellation_SystemCancelTreatedLikeTutor(t *testing.T) {
	p := NewRefundPolicy(12 * time.Hour)
	decision := p.ComputeCancellation(models.CancelledBySystem, time.Minute, models.PaymentStateCaptured, 5000, 500)
	assert.Equal(t, int64(5000), decision.RefundAmountCents)
	assert.Equal(t, ReasonTutorCancelled, decision.Reason)
}

func TestComputeCancellation_AdminCancelFullRefund(t *testing.T) {
	p := NewRefundPolicy(12 * time.Hour)
	decision := p.ComputeCancellation(models.CancelledByAdmin, time.Minute, models.PaymentStateCaptured, 5000, 500)
	assert.Equal(t, int64(5000), decision.RefundAmountCents)
	assert.Equal(t, ReasonAdminOverride, decision.Reason)
}

func TestComputeCancellation_StudentBeforeCutoffFullRefund(t *testing.T) {
	p := NewRefundPolicy(12 * time.Hour)
	decision := p.ComputeCancellation(models.CancelledByStudent, 13*time.Hour, models.PaymentStateCaptured, 5000, 500)
	assert.Equal(t, int64(5000), decision.RefundAmountCents)
	assert.Equal(t, int64(0), decision.TutorPayoutCents)
	assert.Equal(t, ReasonStudentCancelledFull, decision.Reason)
}

func TestComputeCancellation_StudentAtExactCutoffCountsAsBefore(t *testing.T) {
	p := NewRefundPolicy(12 * time.Hour)
	decision := p.ComputeCancellation(models.CancelledByStudent, 12*time.Hour, models.PaymentStateCaptured, 5000, 500)
	assert.Equal(t, ReasonStudentCancelledFull, decision.Reason)
}

func TestComputeCancellation_StudentAfterCutoffPaysTutorNetOfFee(t *testing.T) {
	p := NewRefundPolicy(12 * time.Hour)
	decision := p.ComputeCancellation(models.CancelledByStudent, time.Hour, models.PaymentStateCaptured, 5000, 500)
	assert.Equal(t, int64(0), decision.RefundAmountCents)
	assert.Equal(t, int64(4500), decision.TutorPayoutCents)
	assert.Equal(t, ReasonStudentCancelledLate, decision.Reason)
}

func TestComputeCancellation_StudentAfterCutoffPayoutNeverNegative(t *testing.T) {
	p := NewRefundPolicy(12 * time.Hour)
	decision := p.ComputeCancellation(models.CancelledByStudent, time.Hour, models.PaymentStateCaptured, 400, 500)
	assert.Equal(t, int64(0), decision.TutorPayoutCents)
}

func TestComputeNoShow_StudentNoShowForfeitsPayment(t *testing.T) {
	p := NewRefundPolicy(12 * time.Hour)
	decision := p.ComputeNoShow(models.NoShowStudent, 5000)
	assert.Equal(t, int64(0), decision.RefundAmountCents)
	assert.Equal(t, ReasonNoShowStudent, decision.Reason)
}

func TestComputeNoShow_TutorNoShowRefundsStudentInFull(t *testing.T) {
	p := NewRefundPolicy(12 * time.Hour)
	decision := p.ComputeNoShow(models.NoShowTutor, 5000)
	assert.Equal(t, int64(5000), decision.RefundAmountCents)
	assert.Equal(t, ReasonNoShowTutor, decision.Reason)
}

func TestComputeDisputeResolution_ExplicitAmountFavorsStudent(t *testing.T) {
	p := NewRefundPolicy(12 * time.Hour)
	amt := int64(2000)
	decision := p.ComputeDisputeResolution(models.DisputeResolutionFavorStudent, 5000, 500, &amt)
	assert.Equal(t, int64(2000), decision.RefundAmountCents)
	assert.Equal(t, int64(0), decision.TutorPayoutCents)
}

func TestComputeDisputeResolution_ExplicitAmountFavorsTutor(t *testing.T) {
	p := NewRefundPolicy(12 * time.Hour)
	amt := int64(2000)
	decision := p.ComputeDisputeResolution(models.DisputeResolutionFavorTutor, 5000, 500, &amt)
	assert.Equal(t, int64(2000), decision.TutorPayoutCents)
	assert.Equal(t, int64(0), decision.RefundAmountCents)
}

func TestComputeDisputeResolution_ExplicitAmountClampedToPaymentTotal(t *testing.T) {
	p := NewRefundPolicy(12 * time.Hour)
	amt := int64(99999)
	decision := p.ComputeDisputeResolution(models.DisputeResolutionFavorStudent, 5000, 500, &amt)
	assert.Equal(t, int64(5000), decision.RefundAmountCents)
}

func TestComputeDisputeResolution_ExplicitNegativeAmountClampedToZero(t *testing.T) {
	p := NewRefundPolicy(12 * time.Hour)
	amt := int64(-100)
	decision := p.ComputeDisputeResolution(models.DisputeResolutionFavorStudent, 5000, 500, &amt)
	assert.Equal(t, int64(0), decision.RefundAmountCents)
}

func TestComputeDisputeResolution_DefaultFavorStudentIsFullRefund(t *testing.T) {
	p := NewRefundPolicy(12 * time.Hour)
	decision := p.ComputeDisputeResolution(models.DisputeResolutionFavorStudent, 5000, 500, nil)
	assert.Equal(t, int64(5000), decision.RefundAmountCents)
}

func TestComputeDisputeResolution_DefaultFavorTutorPaysNetOfFee(t *testing.T) {
	p := NewRefundPolicy(12 * time.Hour)
	decision := p.ComputeDisputeResolution(models.DisputeResolutionFavorTutor, 5000, 500, nil)
	assert.Equal(t, int64(4500), decision.TutorPayoutCents)
}

func TestComputeExpiry_CapturedPaymentRefundedInFull(t *testing.T) {
	p := NewRefundPolicy(12 * time.Hour)
	decision := p.ComputeExpiry(models.PaymentStateCaptured, 5000)
	assert.Equal(t, int64(5000), decision.RefundAmountCents)
	assert.Equal(t, ReasonRequestExpired, decision.Reason)
}

func TestComputeExpiry_UncapturedPaymentRefundsNothing(t *testing.T) {
	p := NewRefundPolicy(12 * time.Hour)
	decision := p.ComputeExpiry(models.PaymentStatePending, 5000)
	assert.Equal(t, int64(0), decision.RefundAmountCents)
	assert.Equal(t, ReasonNoPaymentToRefund, decision.Reason)
}

func TestPayoutHeld_OpenDisputeHoldsPayout(t *testing.T) {
	assert.True(t, PayoutHeld(models.DisputeStateOpen))
}

func TestPayoutHeld_NoDisputeDoesNotHoldPayout(t *testing.T) {
	assert.False(t, PayoutHeld(models.DisputeStateNone))
}
