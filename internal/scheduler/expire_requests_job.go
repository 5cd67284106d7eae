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

// ExpireRequestsJob expires REQUESTED bookings the tutor never acted on
// within the configured approval window.
type ExpireRequestsJob struct {
	bookings     *repository.BookingRepository
	orchestrator *service.Orchestrator
	clock        clock.Clock
	rules        config.BusinessRules
}

func NewExpireRequestsJob(bookings *repository.BookingRepository, o *service.Orchestrator, clk clock.Clock, rules config.BusinessRules) *ExpireRequestsJob {
	return &ExpireRequestsJob{bookings: bookings, orchestrator: o, clock: clk, rules: rules}
}

func (j *ExpireRequestsJob) Name() string       { return "expire_requests" }
func (j *ExpireRequestsJob) Period() time.Duration { return 5 * time.Minute }

func (j *ExpireRequestsJob) Run(ctx context.Context) error {
	now, err := j.clock.Now(ctx)
	if err != nil {
		return err
	}

	candidates, err := j.bookings.PendingForExpiry(ctx, now, j.rules.RequestExpiry)
	if err != nil {
		return err
	}

	for _, b := range candidates {
		bookingID := b.ID
		RetryWithBackoff(ctx, j.rules, bookingID.String(), func() error {
			result, err := j.orchestrator.ExpireBooking(ctx, bookingID)
			if err != nil {
				return err
			}
			if result.Rejection != nil {
				log.Warn().Str("booking_id", bookingID.String()).Str("reason", string(result.Rejection.Reason)).Msg("expire rejected by state machine")
				return nil
			}
			return nil
		})
	}
	return nil
}
