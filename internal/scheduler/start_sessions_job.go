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

// StartSessionsJob flips SCHEDULED bookings to ACTIVE once their start time
// arrives.
type StartSessionsJob struct {
	bookings     *repository.BookingRepository
	orchestrator *service.Orchestrator
	clock        clock.Clock
	rules        config.BusinessRules
}

func NewStartSessionsJob(bookings *repository.BookingRepository, o *service.Orchestrator, clk clock.Clock, rules config.BusinessRules) *StartSessionsJob {
	return &StartSessionsJob{bookings: bookings, orchestrator: o, clock: clk, rules: rules}
}

func (j *StartSessionsJob) Name() string        { return "start_sessions" }
func (j *StartSessionsJob) Period() time.Duration { return 1 * time.Minute }

func (j *StartSessionsJob) Run(ctx context.Context) error {
	now, err := j.clock.Now(ctx)
	if err != nil {
		return err
	}

	candidates, err := j.bookings.ScheduledReadyToStart(ctx, now)
	if err != nil {
		return err
	}

	for _, b := range candidates {
		bookingID := b.ID
		RetryWithBackoff(ctx, j.rules, bookingID.String(), func() error {
			result, err := j.orchestrator.StartSession(ctx, bookingID)
			if err != nil {
				return err
			}
			if result.Rejection != nil {
				log.Warn().Str("booking_id", bookingID.String()).Str("reason", string(result.Rejection.Reason)).Msg("start rejected by state machine")
			}
			return nil
		})
	}
	return nil
}
