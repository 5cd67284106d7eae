package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"tutoring-platform/internal/clock"
	"tutoring-platform/internal/config"
	"tutoring-platform/internal/events"
	"tutoring-platform/internal/models"
	"tutoring-platform/internal/ports"
	"tutoring-platform/internal/repository"
	"tutoring-platform/internal/statemachine"
	"tutoring-platform/pkg/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// maxOptimisticRetries bounds how many attempts in total (the first one
// included) the Orchestrator makes at a command, re-reading and re-applying
// it after each lost optimistic-lock race, before giving up and surfacing
// the conflict to the caller.
const maxOptimisticRetries = 3

// Orchestrator runs every booking command as a single transactional
// state-machine transition, then executes the resulting Intents outside the
// transaction. Grounded on the teacher's constructor-injected
// *_service.go structs (BookingService, CreditService), generalized to hold
// every dependency a command might need instead of one table's repository.
type Orchestrator struct {
	pool *pgxpool.Pool

	bookings *repository.BookingRepository
	payments *repository.PaymentRepository
	refunds  *repository.RefundRepository
	packages *repository.PackageRepository
	wallets  *repository.WalletRepository

	clock  clock.Clock
	policy *RefundPolicy
	rules  config.BusinessRules

	meetings ports.MeetingPort
	calendar ports.CalendarPort
	email    ports.EmailPort
	payment  ports.PaymentProvider

	dispatcher *events.Dispatcher
}

func NewOrchestrator(
	pool *pgxpool.Pool,
	bookings *repository.BookingRepository,
	payments *repository.PaymentRepository,
	refunds *repository.RefundRepository,
	packages *repository.PackageRepository,
	wallets *repository.WalletRepository,
	clk clock.Clock,
	rules config.BusinessRules,
	meetings ports.MeetingPort,
	calendar ports.CalendarPort,
	email ports.EmailPort,
	payment ports.PaymentProvider,
	dispatcher *events.Dispatcher,
) *Orchestrator {
	return &Orchestrator{
		pool:       pool,
		bookings:   bookings,
		payments:   payments,
		refunds:    refunds,
		packages:   packages,
		wallets:    wallets,
		clock:      clk,
		policy:     NewRefundPolicy(rules.CancellationCutoff),
		rules:      rules,
		meetings:   meetings,
		calendar:   calendar,
		email:      email,
		payment:    payment,
		dispatcher: dispatcher,
	}
}

// CommandResult is what every command handler returns: the booking's new
// view, or a structured rejection the caller renders as a 409/422.
type CommandResult struct {
	Booking   *models.Booking
	Rejection *statemachine.Rejection
}

// CreateBooking starts a checkout session and inserts the booking in
// REQUESTED state. The payment is authorized by the provider's checkout
// flow; capture happens once the webhook confirms funds moved (ApproveBooking
// requires payment_state = captured as a precondition, not CreateBooking).
func (o *Orchestrator) CreateBooking(ctx context.Context, req *models.CreateBookingRequest) (*models.Booking, *ports.CheckoutSession, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	checkout, err := o.payment.CreateCheckoutSession(ctx, uuid.Nil, req.AmountCents, req.Currency)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	tx, err := o.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	b := &models.Booking{
		StudentID:      req.StudentID,
		TutorID:        req.TutorID,
		TutorProfileID: req.TutorProfileID,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		TimeZone:       req.TimeZone,
		SessionState:   models.SessionStateRequested,
		PaymentState:   models.PaymentStatePending,
		DisputeState:   models.DisputeStateNone,
		AmountCents:      req.AmountCents,
		Currency:         req.Currency,
		PlatformFeeCents: o.rules.PlatformFeeCents(req.AmountCents),
		PackageID:        req.PackageID,
	}

	conflict, err := o.bookings.TimeConflictExists(ctx, tx, req.TutorID, req.StartTime, req.EndTime, nil)
	if err != nil {
		return nil, nil, err
	}
	if conflict {
		return nil, nil, repository.ErrTimeConflict
	}

	if err := o.bookings.Create(ctx, tx, b); err != nil {
		return nil, nil, err
	}

	if _, err := o.payments.RecordPayment(ctx, tx, b.ID, checkout.ExternalSessionID, req.AmountCents, req.Currency, req.IdempotencyKey); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit booking creation: %w", err)
	}

	o.dispatcher.FireAndForget(ctx, events.Event{Type: events.BookingCreated, BookingID: b.ID, At: b.CreatedAt})
	return b, checkout, nil
}

// ApplyPaymentCaptured syncs a checkout.session.completed/payment_intent.succeeded
// webhook pair into the ledger and the booking's payment_state projection.
// Idempotent: a retried delivery finds the payment already captured and
// returns without touching the booking row again.
func (o *Orchestrator) ApplyPaymentCaptured(ctx context.Context, externalSessionID, externalIntentID string) error {
	tx, err := o.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	payment, err := o.payments.GetByExternalSessionID(ctx, tx, externalSessionID)
	if err != nil {
		return err
	}

	result, err := o.payments.Capture(ctx, tx, payment.ID, externalIntentID)
	if err != nil {
		return err
	}
	if result.WasExisting {
		return tx.Commit(ctx)
	}

	booking, err := o.bookings.GetWithLock(ctx, tx, payment.BookingID)
	if err != nil {
		return err
	}
	booking.PaymentState = models.PaymentStateCaptured
	if err := o.bookings.Update(ctx, tx, booking, booking.Version); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit payment capture: %w", err)
	}

	metrics.PaymentsCapturedTotal.Inc()
	o.dispatcher.FireAndForget(ctx, events.Event{Type: events.PaymentCaptured, BookingID: booking.ID, At: time.Now().UTC()})
	return nil
}

// ApplyPaymentFailed syncs a payment_intent.payment_failed webhook into the
// ledger. It never downgrades an already-captured payment: a failure
// notification delivered after a later success is stale.
func (o *Orchestrator) ApplyPaymentFailed(ctx context.Context, externalIntentID string) error {
	tx, err := o.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	payment, err := o.payments.GetByExternalIntentID(ctx, tx, externalIntentID)
	if err != nil {
		return err
	}
	if err := o.payments.MarkFailed(ctx, tx, payment.ID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit payment failure: %w", err)
	}
	return nil
}

// ApproveBooking runs the tutor_approves transition with optimistic-lock
// retry: a concurrent writer winning the race means this command re-reads
// the row and tries again, for at most maxOptimisticRetries attempts in all.
func (o *Orchestrator) ApproveBooking(ctx context.Context, bookingID uuid.UUID) (*CommandResult, error) {
	return o.runCommand(ctx, bookingID, func(b *models.Booking, now time.Time, tx pgx.Tx) (statemachine.Command, error) {
		conflict, err := o.bookings.TimeConflictExists(ctx, tx, b.TutorID, b.StartTime, b.EndTime, &b.ID)
		if err != nil {
			return statemachine.Command{}, err
		}
		return statemachine.Command{Type: statemachine.CommandTutorApproves, Now: now, ConflictExists: conflict}, nil
	})
}

// DeclineBooking runs the decline transition.
func (o *Orchestrator) DeclineBooking(ctx context.Context, bookingID uuid.UUID, reason string) (*CommandResult, error) {
	return o.runCommand(ctx, bookingID, func(b *models.Booking, now time.Time, tx pgx.Tx) (statemachine.Command, error) {
		return statemachine.Command{Type: statemachine.CommandDecline, Now: now, Reason: reason}, nil
	})
}

// ExpireBooking runs the expire transition for a REQUESTED booking the
// scheduler found past its approval deadline. Called per-booking from its
// own transaction so one stuck row never blocks the rest of a sweep.
func (o *Orchestrator) ExpireBooking(ctx context.Context, bookingID uuid.UUID) (*CommandResult, error) {
	return o.runCommand(ctx, bookingID, func(b *models.Booking, now time.Time, tx pgx.Tx) (statemachine.Command, error) {
		decision := o.policy.ComputeExpiry(b.PaymentState, b.AmountCents)
		return statemachine.Command{
			Type: statemachine.CommandExpire, Now: now,
			RefundAmountCents: decision.RefundAmountCents,
			RefundReason:      refundReasonFor(decision.Reason),
		}, nil
	})
}

// StartSession runs the start transition for a SCHEDULED booking the
// scheduler found at or past its start time.
func (o *Orchestrator) StartSession(ctx context.Context, bookingID uuid.UUID) (*CommandResult, error) {
	return o.runCommand(ctx, bookingID, func(b *models.Booking, now time.Time, tx pgx.Tx) (statemachine.Command, error) {
		return statemachine.Command{Type: statemachine.CommandStart, Now: now}, nil
	})
}

// EndSession runs the end transition for an ACTIVE booking. isManualEnd
// distinguishes an operator-triggered end (used by future admin tooling)
// from the scheduler's grace-period sweep, per the Command field's own doc.
func (o *Orchestrator) EndSession(ctx context.Context, bookingID uuid.UUID, isManualEnd bool, outcome *models.SessionOutcome) (*CommandResult, error) {
	return o.runCommandWithHook(ctx, bookingID,
		func(b *models.Booking, now time.Time, tx pgx.Tx) (statemachine.Command, error) {
			return statemachine.Command{Type: statemachine.CommandEnd, Now: now, IsManualEnd: isManualEnd, Outcome: outcome}, nil
		},
		func(tx pgx.Tx, prev, next *models.Booking) error {
			if next.PackageID == nil || next.SessionOutcome == nil || *next.SessionOutcome != models.SessionOutcomeCompleted {
				return nil
			}
			_, err := o.packages.ConsumeSession(ctx, tx, *next.PackageID)
			if err != nil && !errors.Is(err, repository.ErrPackageExhausted) && !errors.Is(err, repository.ErrPackageNotFound) {
				return err
			}
			if err != nil {
				log.Warn().Err(err).Str("booking_id", next.ID.String()).Msg("could not consume package session on completion")
			}
			return nil
		},
	)
}

// CancelBooking sizes the refund/payout via RefundPolicy before handing the
// command to the state machine, since Transition itself never touches
// pricing.
func (o *Orchestrator) CancelBooking(ctx context.Context, req *models.CancelBookingRequest) (*CommandResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return o.runCommand(ctx, req.BookingID, func(b *models.Booking, now time.Time, tx pgx.Tx) (statemachine.Command, error) {
		decision := o.policy.ComputeCancellation(req.ByRole, b.StartTime.Sub(now), b.PaymentState, b.AmountCents, b.PlatformFeeCents)
		return statemachine.Command{
			Type:              statemachine.CommandCancel,
			Now:               now,
			ActorRole:         req.ByRole,
			Reason:            req.Reason,
			RefundAmountCents: decision.RefundAmountCents,
			TutorPayoutCents:  decision.TutorPayoutCents,
			RefundReason:      refundReasonFor(decision.Reason),
		}, nil
	})
}

// RescheduleBooking runs the reschedule transition, checking the new window
// for conflicts in the same transaction as the write.
func (o *Orchestrator) RescheduleBooking(ctx context.Context, req *models.RescheduleBookingRequest) (*CommandResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return o.runCommand(ctx, req.BookingID, func(b *models.Booking, now time.Time, tx pgx.Tx) (statemachine.Command, error) {
		conflict, err := o.bookings.TimeConflictExists(ctx, tx, b.TutorID, req.NewStart, req.NewEnd, &b.ID)
		if err != nil {
			return statemachine.Command{}, err
		}
		return statemachine.Command{
			Type: statemachine.CommandReschedule, Now: now,
			NewStart: req.NewStart, NewEnd: req.NewEnd,
			ConflictExists: conflict,
		}, nil
	})
}

// MarkNoShow runs the mark_no_show transition, sizing refund/payout.
func (o *Orchestrator) MarkNoShow(ctx context.Context, req *models.MarkNoShowRequest) (*CommandResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return o.runCommand(ctx, req.BookingID, func(b *models.Booking, now time.Time, tx pgx.Tx) (statemachine.Command, error) {
		decision := o.policy.ComputeNoShow(req.Which, b.AmountCents)
		return statemachine.Command{
			Type: statemachine.CommandMarkNoShow, Now: now,
			NoShowParty:       req.Which,
			RefundAmountCents: decision.RefundAmountCents,
			TutorPayoutCents:  decision.TutorPayoutCents,
			RefundReason:      refundReasonFor(decision.Reason),
		}, nil
	})
}

// OpenDispute runs the open_dispute transition.
func (o *Orchestrator) OpenDispute(ctx context.Context, req *models.OpenDisputeRequest) (*CommandResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return o.runCommand(ctx, req.BookingID, func(b *models.Booking, now time.Time, tx pgx.Tx) (statemachine.Command, error) {
		return statemachine.Command{Type: statemachine.CommandOpenDispute, Now: now, Reason: req.Reason}, nil
	})
}

// ResolveDispute runs the resolve_dispute transition. Confirm-token
// verification happens in the handler, before this is ever called, so the
// Orchestrator only deals with an already-authorized admin decision.
func (o *Orchestrator) ResolveDispute(ctx context.Context, req *models.ResolveDisputeRequest) (*CommandResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var refundAmount int64
	return o.runCommandWithHook(ctx, req.BookingID,
		func(b *models.Booking, now time.Time, tx pgx.Tx) (statemachine.Command, error) {
			decision := o.policy.ComputeDisputeResolution(req.Resolution, b.AmountCents, b.PlatformFeeCents, req.ExplicitAmount)
			refundAmount = decision.RefundAmountCents
			return statemachine.Command{
				Type: statemachine.CommandResolveDispute, Now: now,
				DisputeResolution: req.Resolution,
				RefundAmountCents: decision.RefundAmountCents,
				TutorPayoutCents:  decision.TutorPayoutCents,
				RefundReason:      refundReasonFor(decision.Reason),
			}, nil
		},
		func(tx pgx.Tx, prev, next *models.Booking) error {
			completed := prev.SessionOutcome != nil && *prev.SessionOutcome == models.SessionOutcomeCompleted
			fullRefund := refundAmount > 0 && refundAmount == prev.AmountCents
			if prev.PackageID == nil || !completed || !fullRefund || req.Resolution != models.DisputeResolutionFavorStudent {
				return nil
			}
			if _, err := o.packages.RestoreSession(ctx, tx, *prev.PackageID); err != nil && !errors.Is(err, repository.ErrPackageNotFound) {
				return err
			}
			return nil
		},
	)
}

// isWalletCreditCommand reports whether a refund originating from cmdType
// should land as wallet store credit rather than a provider-side card
// refund. Only a dispute resolved against the tutor qualifies: by the time
// a dispute resolves the session has already been delivered, so there is no
// charge left to reverse against the original card.
func isWalletCreditCommand(cmdType statemachine.CommandType) bool {
	return cmdType == statemachine.CommandResolveDispute
}

func refundReasonFor(code RefundReasonCode) models.RefundReason {
	switch code {
	case ReasonTutorCancelled:
		return models.RefundReasonCancelledByTutor
	case ReasonStudentCancelledFull, ReasonStudentCancelledLate:
		return models.RefundReasonCancelledByStudentLate
	case ReasonNoShowStudent, ReasonNoShowTutor:
		return models.RefundReasonNoShow
	case ReasonRequestExpired:
		return models.RefundReasonCancelledByTutor
	default:
		return models.RefundReasonAdmin
	}
}

// runCommand is the 9-step transactional flow every command shares: lock,
// build, transition, write, commit, then execute side effects outside the
// transaction. build computes the Command for a transition given the
// currently-locked booking row, the database's current time, and the open
// transaction (for in-transaction conflict checks); re-run against a
// freshly-locked row on each optimistic-lock retry.
func (o *Orchestrator) runCommand(ctx context.Context, bookingID uuid.UUID, build func(b *models.Booking, now time.Time, tx pgx.Tx) (statemachine.Command, error)) (*CommandResult, error) {
	return o.runCommandWithHook(ctx, bookingID, build, nil)
}

// runCommandWithHook is runCommand plus an optional hook that runs inside the
// same transaction right after the optimistic-lock write succeeds, before
// commit. Used by commands whose downstream bookkeeping (package session
// consumption/restoration) must be atomic with the transition itself rather
// than deferred to executeIntents, which only runs after commit.
func (o *Orchestrator) runCommandWithHook(ctx context.Context, bookingID uuid.UUID, build func(b *models.Booking, now time.Time, tx pgx.Tx) (statemachine.Command, error), after func(tx pgx.Tx, prev, next *models.Booking) error) (*CommandResult, error) {
	var result *CommandResult
	var intents []statemachine.Intent
	var cmdType statemachine.CommandType

	for attempt := 0; attempt < maxOptimisticRetries; attempt++ {
		tx, err := o.pool.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}

		now, err := o.clock.Now(ctx)
		if err != nil {
			tx.Rollback(ctx)
			return nil, fmt.Errorf("failed to read clock: %w", err)
		}

		booking, err := o.bookings.GetWithLock(ctx, tx, bookingID)
		if err != nil {
			tx.Rollback(ctx)
			return nil, err
		}

		cmd, err := build(booking, now, tx)
		if err != nil {
			tx.Rollback(ctx)
			return nil, err
		}

		txResult, rejection := statemachine.Transition(booking, cmd)
		if rejection != nil {
			tx.Rollback(ctx)
			return &CommandResult{Booking: booking, Rejection: rejection}, nil
		}

		if err := o.bookings.Update(ctx, tx, txResult.Booking, booking.Version); err != nil {
			tx.Rollback(ctx)
			if errors.Is(err, repository.ErrOptimisticLockConflict) {
				backoff := time.Duration(rand.Intn(50)+10*(attempt+1)) * time.Millisecond
				time.Sleep(backoff)
				continue
			}
			return nil, err
		}

		if after != nil {
			if err := after(tx, booking, txResult.Booking); err != nil {
				tx.Rollback(ctx)
				return nil, err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit transition: %w", err)
		}

		result = &CommandResult{Booking: txResult.Booking}
		intents = txResult.Intents
		cmdType = cmd.Type
		break
	}

	if result == nil {
		return nil, repository.ErrOptimisticLockConflict
	}

	o.executeIntents(ctx, result.Booking, cmdType, intents)
	return result, nil
}

// lifecycleEventFor maps the command that just committed to the event fired
// once its intents have run, so subscribers see one notification per kind of
// transition rather than every command looking like a confirmation.
func lifecycleEventFor(cmdType statemachine.CommandType) events.Type {
	switch cmdType {
	case statemachine.CommandTutorApproves:
		return events.BookingConfirmed
	case statemachine.CommandDecline:
		return events.BookingDeclined
	case statemachine.CommandCancel, statemachine.CommandExpire:
		return events.BookingCancelled
	case statemachine.CommandStart:
		return events.SessionStarted
	case statemachine.CommandEnd, statemachine.CommandMarkNoShow:
		return events.SessionEnded
	case statemachine.CommandReschedule:
		return events.BookingRescheduled
	case statemachine.CommandOpenDispute:
		return events.DisputeOpened
	case statemachine.CommandResolveDispute:
		return events.DisputeResolved
	default:
		return events.BookingConfirmed
	}
}

// executeIntents runs every side effect outside the transaction that
// committed the state change. Each is independently idempotent (the adapters
// key their own external calls), so a crash between two intents leaves the
// booking in a consistent, resumable state rather than a half-applied one.
func (o *Orchestrator) executeIntents(ctx context.Context, b *models.Booking, cmdType statemachine.CommandType, intents []statemachine.Intent) {
	for _, intent := range intents {
		switch in := intent.(type) {
		case statemachine.CreateMeetingIntent:
			handle, err := o.meetings.CreateMeeting(ctx, in.BookingID, in.Topic, in.Start, in.Duration)
			if err != nil {
				log.Error().Err(err).Str("booking_id", in.BookingID.String()).Msg("failed to create meeting")
				continue
			}
			log.Info().Str("booking_id", in.BookingID.String()).Str("meeting_id", handle.MeetingID).Msg("meeting created")

		case statemachine.CreateCalendarEventIntent:
			if _, err := o.calendar.CreateEvent(ctx, in.BookingID, in.Start, in.End, in.Attendees); err != nil {
				log.Error().Err(err).Str("booking_id", in.BookingID.String()).Msg("failed to create calendar event")
			}

		case statemachine.SendEmailIntent:
			if err := o.email.Send(ctx, in.BookingID.String(), string(in.Template), map[string]any{"start_time": b.StartTime}); err != nil {
				log.Error().Err(err).Str("booking_id", in.BookingID.String()).Msg("failed to send email")
			}

		case statemachine.ScheduleJobIntent:
			log.Info().Str("booking_id", in.BookingID.String()).Str("job", in.JobName).Time("run_at", in.RunAt).Msg("job scheduled")

		case statemachine.RefundPaymentIntent:
			o.issueRefund(ctx, in, cmdType)
		}
	}

	eventType := lifecycleEventFor(cmdType)
	metrics.BookingEventsTotal.WithLabelValues(string(eventType)).Inc()
	o.dispatcher.FireAndForget(ctx, events.Event{Type: eventType, BookingID: b.ID, At: time.Now().UTC()})
}

// issueRefund runs the refund side of a cancel/no-show/dispute-resolution
// outcome and moves the booking's payment_state to reflect it. A dispute
// resolved in the student's favor credits the wallet instead of reversing
// the card charge: by the time a dispute resolves the session has already
// been delivered, so the money owed back is store credit against a future
// booking, not a chargeback against this one. Every other refund path still
// goes back through the provider. Both paths are idempotent on the ledger's
// natural keys, so a retried intent never double-refunds.
func (o *Orchestrator) issueRefund(ctx context.Context, intent statemachine.RefundPaymentIntent, cmdType statemachine.CommandType) {
	if intent.AmountCents <= 0 {
		return
	}

	tx, err := o.pool.Begin(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to begin refund transaction")
		return
	}
	defer tx.Rollback(ctx)

	payment, err := o.payments.GetCapturedForBooking(ctx, tx, intent.BookingID)
	if err != nil {
		log.Error().Err(err).Str("booking_id", intent.BookingID.String()).Msg("no captured payment to refund")
		return
	}

	var externalRefundID string
	asWalletCredit := isWalletCreditCommand(cmdType)
	if asWalletCredit {
		// Deterministic, not provider-issued: the same dispute resolution
		// retried after a crash must land on the same refund row instead of
		// crediting the wallet twice.
		externalRefundID = fmt.Sprintf("wallet:%s:%d", intent.BookingID, intent.AmountCents)
	} else {
		externalRefundID, err = o.payment.RefundPaymentIntent(ctx, payment.ExternalIntentID, intent.AmountCents)
		if err != nil {
			log.Error().Err(err).Str("booking_id", intent.BookingID.String()).Msg("provider refund failed")
			return
		}
	}

	result, err := o.refunds.RecordRefund(ctx, tx, payment.ID, intent.BookingID, intent.AmountCents, intent.Reason, externalRefundID)
	if err != nil {
		log.Error().Err(err).Str("booking_id", intent.BookingID.String()).Msg("failed to record refund")
		return
	}

	if asWalletCredit && !result.WasExisting {
		if _, err := o.wallets.WalletRefund(ctx, tx, intent.StudentID, intent.AmountCents, string(intent.Reason), &intent.BookingID); err != nil {
			log.Error().Err(err).Str("booking_id", intent.BookingID.String()).Msg("failed to credit wallet")
			return
		}
	}

	refundedSoFar, err := o.refunds.SumRefunded(ctx, tx, payment.ID)
	if err != nil {
		log.Error().Err(err).Str("booking_id", intent.BookingID.String()).Msg("failed to sum refunds")
		return
	}
	newPaymentState := models.PaymentStatePartiallyRefunded
	if refundedSoFar >= payment.AmountCents {
		newPaymentState = models.PaymentStateRefunded
	}
	if err := o.bookings.SetPaymentState(ctx, tx, intent.BookingID, newPaymentState); err != nil {
		log.Error().Err(err).Str("booking_id", intent.BookingID.String()).Msg("failed to update booking payment state")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		log.Error().Err(err).Msg("failed to commit refund")
		return
	}

	metrics.RefundsIssuedTotal.WithLabelValues(string(intent.Reason)).Inc()
	o.dispatcher.FireAndForget(ctx, events.Event{Type: events.RefundIssued, BookingID: intent.BookingID, At: time.Now().UTC()})
}
