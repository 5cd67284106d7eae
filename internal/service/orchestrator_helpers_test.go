package service

import (
	"testing"

	"tutoring-platform/internal/events"
	"tutoring-platform/internal/models"
	"tutoring-platform/internal/statemachine"

	"github.com/stretchr/testify/assert"
)

// lifecycleEventFor and refundReasonFor are the two pure lookup tables
// executeIntents/issueRefund key off of; everything else in the Orchestrator
// opens a real transaction against *pgxpool.Pool and has no seam for a unit
// test without a Postgres instance (see DESIGN.md).
func TestLifecycleEventFor_CoversEveryCommand(t *testing.T) {
	cases := []struct {
		cmd  statemachine.CommandType
		want events.Type
	}{
		{statemachine.CommandTutorApproves, events.BookingConfirmed},
		{statemachine.CommandDecline, events.BookingDeclined},
		{statemachine.CommandCancel, events.BookingCancelled},
		{statemachine.CommandExpire, events.BookingCancelled},
		{statemachine.CommandStart, events.SessionStarted},
		{statemachine.CommandEnd, events.SessionEnded},
		{statemachine.CommandMarkNoShow, events.SessionEnded},
		{statemachine.CommandReschedule, events.BookingRescheduled},
		{statemachine.CommandOpenDispute, events.DisputeOpened},
		{statemachine.CommandResolveDispute, events.DisputeResolved},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, lifecycleEventFor(c.cmd), "command %s", c.cmd)
	}
}

func TestRefundReasonFor_MapsEveryReasonCode(t *testing.T) {
	cases := []struct {
		code RefundReasonCode
		want models.RefundReason
	}{
		{ReasonTutorCancelled, models.RefundReasonCancelledByTutor},
		{ReasonStudentCancelledFull, models.RefundReasonCancelledByStudentLate},
		{ReasonStudentCancelledLate, models.RefundReasonCancelledByStudentLate},
		{ReasonNoShowStudent, models.RefundReasonNoShow},
		{ReasonNoShowTutor, models.RefundReasonNoShow},
		{ReasonRequestExpired, models.RefundReasonCancelledByTutor},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, refundReasonFor(c.code), "code %v", c.code)
	}
}

// A dispute resolved in the student's favor is the one refund path that
// must route to the wallet instead of the payment provider: issueRefund
// branches on cmdType == CommandResolveDispute before ever calling the
// provider.
func TestIssueRefund_WalletRoutingDecisionKeyedOnResolveDispute(t *testing.T) {
	assert.True(t, isWalletCreditCommand(statemachine.CommandResolveDispute))
	for _, cmd := range []statemachine.CommandType{
		statemachine.CommandCancel, statemachine.CommandExpire, statemachine.CommandMarkNoShow,
	} {
		assert.False(t, isWalletCreditCommand(cmd), "command %s must refund via the provider, not the wallet", cmd)
	}
}
