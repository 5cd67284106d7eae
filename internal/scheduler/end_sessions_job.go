package scheduler

import (
	"context"
	"time"

	"tutoring-platform/internal/clock"
	"tutoring-platform/internal/config"
	"tutoring-platform/internal/repository"
	"tutoring-platform/internal/service"

	"github.com/rs/zerolog/log"
)

// EndSessionsJob ends ACTIVE bookings whose scheduled end plus grace period
// has passed, defaulting the outcome to COMPLETED. A party that reports a
// no-show before this tick fires goes through MarkNoShow instead; by the
// time this job sees a still-ACTIVE row past its grace period, nobody
// reported anything, so COMPLETED is the only outcome the scheduler can
// infer on its own.
type EndSessionsJob struct {
	bookings     *repository.BookingRepository
	orchestrator *service.Orchestrator
	clock        clock.Clock
	rules        config.BusinessRules
}

func NewEndSessionsJob(bookings *repository.BookingRepository, o *service.Orchestrator, clk clock.Clock, rules config.BusinessRules) *EndSessionsJob {
	return &EndSessionsJob{bookings: bookings, orchestrator: o, clock: clk, rules: rules}
}

func (j *EndSessionsJob) Name() string        { return "end_sessions" }
func (j *EndSessionsJob) Period() time.Duration { return 1 * time.Minute }

func (j *EndSessionsJob) Run(ctx context.Context) error {
	now, err := j.clock.Now(ctx)
	if err != nil {
		return err
	}

	candidates, err := j.bookings.ActivePastEnd(ctx, now, j.rules.SessionEndGrace)
	if err != nil {
		return err
	}

	for _, b := range candidates {
		bookingID := b.ID
		RetryWithBackoff(ctx, j.rules, bookingID.String(), func() error {
			result, err := j.orchestrator.EndSession(ctx, bookingID, false, nil)
			if err != nil {
				return err
			}
			if result.Rejection != nil {
				log.Warn().Str("booking_id", bookingID.String()).Str("reason", string(result.Rejection.Reason)).Msg("end rejected by state machine")
			}
			return nil
		})
	}
	return nil
}
