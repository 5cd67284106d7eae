package scheduler

import (
	"context"
	"time"

	"tutoring-platform/internal/clock"
	"tutoring-platform/internal/config"
	"tutoring-platform/internal/ports"
	"tutoring-platform/internal/repository"
	"tutoring-platform/internal/statemachine"

	"github.com/rs/zerolog/log"
)

// SendReminderJob sends the pre-session reminder email once per booking,
// gated on the reminder_sent_at marker rather than on the state machine
// (a reminder is a best-effort notification, not a transition).
type SendReminderJob struct {
	bookings *repository.BookingRepository
	email    ports.EmailPort
	clock    clock.Clock
	rules    config.BusinessRules
}

func NewSendReminderJob(bookings *repository.BookingRepository, email ports.EmailPort, clk clock.Clock, rules config.BusinessRules) *SendReminderJob {
	return &SendReminderJob{bookings: bookings, email: email, clock: clk, rules: rules}
}

func (j *SendReminderJob) Name() string        { return "send_reminders" }
func (j *SendReminderJob) Period() time.Duration { return 1 * time.Minute }

func (j *SendReminderJob) Run(ctx context.Context) error {
	now, err := j.clock.Now(ctx)
	if err != nil {
		return err
	}

	due, err := j.bookings.DueForReminder(ctx, now, j.rules.ReminderLeadTime)
	if err != nil {
		return err
	}

	for _, b := range due {
		bookingID := b.ID
		startTime := b.StartTime
		RetryWithBackoff(ctx, j.rules, bookingID.String(), func() error {
			if err := j.email.Send(ctx, bookingID.String(), string(statemachine.EmailBookingReminder), map[string]any{"start_time": startTime}); err != nil {
				return err
			}
			return j.bookings.MarkReminderSent(ctx, bookingID, now)
		})
	}
	return nil
}
