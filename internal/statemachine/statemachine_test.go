package statemachine

import (
	"testing"
	"time"

	"tutoring-platform/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBooking(state models.SessionState, paymentState models.PaymentState) *models.Booking {
	start := time.Date(2030, 1, 15, 14, 0, 0, 0, time.UTC)
	return &models.Booking{
		ID:           uuid.New(),
		Version:      1,
		StudentID:    uuid.New(),
		TutorID:      uuid.New(),
		StartTime:    start,
		EndTime:      start.Add(time.Hour),
		SessionState: state,
		PaymentState: paymentState,
		DisputeState: models.DisputeStateNone,
		AmountCents:  5000,
		Currency:     "USD",
	}
}

// Property 1: totality — every (state, command) pair returns either a
// rejection or an updated state, never a panic.
func TestTransition_TotalityNeverPanics(t *testing.T) {
	states := []models.SessionState{
		models.SessionStateRequested, models.SessionStateScheduled, models.SessionStateActive,
		models.SessionStateEnded, models.SessionStateCancelled, models.SessionStateExpired,
	}
	commands := []CommandType{
		CommandTutorApproves, CommandDecline, CommandCancel, CommandExpire,
		CommandStart, CommandEnd, CommandReschedule, CommandMarkNoShow,
		CommandOpenDispute, CommandResolveDispute,
	}

	for _, s := range states {
		for _, c := range commands {
			assert.NotPanics(t, func() {
				b := newBooking(s, models.PaymentStateCaptured)
				_, _ = Transition(b, Command{Type: c, Now: time.Now()})
			})
		}
	}
}

// Property 2: terminal absorbency.
func TestTransition_TerminalStatesRejectApprove(t *testing.T) {
	terminal := []models.SessionState{models.SessionStateEnded, models.SessionStateCancelled, models.SessionStateExpired}
	for _, s := range terminal {
		b := newBooking(s, models.PaymentStateCaptured)
		result, rejection := Transition(b, Command{Type: CommandTutorApproves, Now: time.Now()})
		assert.Nil(t, result)
		require.NotNil(t, rejection)
		assert.Equal(t, RejectionTerminalState, rejection.Reason)
	}
}

func TestTransition_ApproveHappyPath(t *testing.T) {
	b := newBooking(models.SessionStateRequested, models.PaymentStateCaptured)
	result, rejection := Transition(b, Command{
		Type: CommandTutorApproves,
		Now:  time.Now(),
	})
	require.Nil(t, rejection)
	require.NotNil(t, result)
	assert.Equal(t, models.SessionStateScheduled, result.Booking.SessionState)
	assert.Equal(t, int64(2), result.Booking.Version)
	assert.True(t, result.Booking.ConfirmedAt.Valid)

	require.Len(t, result.Intents, 3)
	assert.Equal(t, IntentCreateMeeting, result.Intents[0].Type())
	assert.Equal(t, IntentCreateCalendarEvent, result.Intents[1].Type())
	assert.Equal(t, IntentSendEmail, result.Intents[2].Type())
}

func TestTransition_ApproveRejectsOnUnpaidBooking(t *testing.T) {
	b := newBooking(models.SessionStateRequested, models.PaymentStatePending)
	_, rejection := Transition(b, Command{Type: CommandTutorApproves, Now: time.Now()})
	require.NotNil(t, rejection)
	assert.Equal(t, RejectionPreconditionFailed, rejection.Reason)
}

func TestTransition_ApproveRejectsOnConflict(t *testing.T) {
	b := newBooking(models.SessionStateRequested, models.PaymentStateCaptured)
	_, rejection := Transition(b, Command{Type: CommandTutorApproves, Now: time.Now(), ConflictExists: true})
	require.NotNil(t, rejection)
	assert.Equal(t, RejectionPreconditionFailed, rejection.Reason)
}

func TestTransition_CancelActiveRequiresAdmin(t *testing.T) {
	b := newBooking(models.SessionStateActive, models.PaymentStateCaptured)

	_, rejection := Transition(b, Command{Type: CommandCancel, Now: time.Now(), ActorRole: models.CancelledByStudent})
	require.NotNil(t, rejection)

	result, rejection := Transition(b, Command{Type: CommandCancel, Now: time.Now(), ActorRole: models.CancelledByAdmin})
	require.Nil(t, rejection)
	assert.Equal(t, models.SessionStateCancelled, result.Booking.SessionState)
}

func TestTransition_EndSetsOutcomeAndEmitsRefundWhenRequested(t *testing.T) {
	b := newBooking(models.SessionStateActive, models.PaymentStateCaptured)
	result, rejection := Transition(b, Command{
		Type:              CommandEnd,
		Now:               b.EndTime.Add(time.Minute),
		RefundAmountCents: 5000,
		RefundReason:      models.RefundReasonNoShow,
	})
	require.Nil(t, rejection)
	require.NotNil(t, result.Booking.SessionOutcome)
	assert.Equal(t, models.SessionOutcomeCompleted, *result.Booking.SessionOutcome)

	var sawRefund bool
	for _, intent := range result.Intents {
		if intent.Type() == IntentRefundPayment {
			sawRefund = true
		}
	}
	assert.True(t, sawRefund)
}

func TestTransition_EndRejectsBeforeEndTimeUnlessManual(t *testing.T) {
	b := newBooking(models.SessionStateActive, models.PaymentStateCaptured)
	_, rejection := Transition(b, Command{Type: CommandEnd, Now: b.StartTime.Add(time.Minute)})
	require.NotNil(t, rejection)

	result, rejection := Transition(b, Command{Type: CommandEnd, Now: b.StartTime.Add(time.Minute), IsManualEnd: true})
	require.Nil(t, rejection)
	assert.Equal(t, models.SessionStateEnded, result.Booking.SessionState)
}

// Property 4: version monotonicity.
func TestTransition_VersionAlwaysIncrementsByOne(t *testing.T) {
	b := newBooking(models.SessionStateRequested, models.PaymentStateCaptured)
	before := b.Version
	result, rejection := Transition(b, Command{Type: CommandTutorApproves, Now: time.Now()})
	require.Nil(t, rejection)
	assert.Equal(t, before+1, result.Booking.Version)
}

func TestTransition_OpenThenResolveDispute(t *testing.T) {
	b := newBooking(models.SessionStateEnded, models.PaymentStateCaptured)
	outcome := models.SessionOutcomeCompleted
	b.SessionOutcome = &outcome

	result, rejection := Transition(b, Command{Type: CommandOpenDispute, Now: time.Now()})
	require.Nil(t, rejection)
	assert.Equal(t, models.DisputeStateOpen, result.Booking.DisputeState)

	result, rejection = Transition(result.Booking, Command{
		Type:              CommandResolveDispute,
		Now:               time.Now(),
		DisputeResolution: models.DisputeResolutionFavorStudent,
		RefundAmountCents: 2500,
	})
	require.Nil(t, rejection)
	assert.Equal(t, models.DisputeStateResolvedStudent, result.Booking.DisputeState)
	require.Len(t, result.Intents, 1)
	assert.Equal(t, IntentRefundPayment, result.Intents[0].Type())
}

// open_dispute is the one command a terminal booking still accepts: the
// top-level terminal guard must carve out CommandOpenDispute on ENDED
// specifically, not terminal bookings in general.
func TestTransition_OpenDisputeIsExemptFromTerminalGuard(t *testing.T) {
	b := newBooking(models.SessionStateEnded, models.PaymentStateCaptured)
	result, rejection := Transition(b, Command{Type: CommandOpenDispute, Now: time.Now()})
	require.Nil(t, rejection)
	require.NotNil(t, result)
	assert.Equal(t, models.DisputeStateOpen, result.Booking.DisputeState)

	for _, s := range []models.SessionState{models.SessionStateCancelled, models.SessionStateExpired} {
		b := newBooking(s, models.PaymentStateCaptured)
		result, rejection := Transition(b, Command{Type: CommandOpenDispute, Now: time.Now()})
		assert.Nil(t, result)
		require.NotNil(t, rejection)
		assert.Equal(t, RejectionTerminalState, rejection.Reason)
	}
}
