package config

import "time"

// BusinessRules holds the booking lifecycle's timing and fee constants.
// All magic numbers referenced by the state machine, orchestrator, and
// scheduler live here instead of scattered through those packages.
type BusinessRules struct {
	// RequestExpiry is how long a REQUESTED booking waits for tutor
	// approval before the scheduler expires it.
	RequestExpiry time.Duration

	// SessionEndGrace is how long past the scheduled end time a session
	// stays ACTIVE before the scheduler force-ends it as COMPLETED.
	SessionEndGrace time.Duration

	// CancellationCutoff is the "before start" boundary at or after which
	// a student cancellation gets a full refund rather than forfeiting to
	// a late-cancellation payout.
	CancellationCutoff time.Duration

	// PlatformFeeBps is the platform's cut of a captured payment, in basis
	// points (parts per ten thousand), withheld from late-cancellation and
	// no-show tutor payouts.
	PlatformFeeBps int64

	// ReminderLeadTime is how long before a session start the reminder
	// email job fires.
	ReminderLeadTime time.Duration

	// WebhookDedupeRetention bounds how long processed webhook event ids
	// are kept before the scheduler prunes them.
	WebhookDedupeRetention time.Duration

	// JobRetryBase is the base delay for a failed scheduler job's
	// exponential backoff (base * 2^attempt).
	JobRetryBase time.Duration

	// JobMaxRetries is how many attempts a scheduler job gets before it is
	// dead-lettered instead of retried again.
	JobMaxRetries int

	// ClockSkewWarnThreshold is how far a worker's local clock may drift
	// from the database clock before a warning is logged.
	ClockSkewWarnThreshold time.Duration
}

func DefaultBusinessRules() BusinessRules {
	return BusinessRules{
		RequestExpiry:          24 * time.Hour,
		SessionEndGrace:        5 * time.Minute,
		CancellationCutoff:     12 * time.Hour,
		PlatformFeeBps:         1500, // 15%
		ReminderLeadTime:       1 * time.Hour,
		WebhookDedupeRetention: 30 * 24 * time.Hour,
		JobRetryBase:           60 * time.Second,
		JobMaxRetries:          5,
		ClockSkewWarnThreshold: 2 * time.Second,
	}
}

// LoadBusinessRules loads business rules from the environment, falling back
// to DefaultBusinessRules for anything unset.
func LoadBusinessRules() BusinessRules {
	d := DefaultBusinessRules()
	return BusinessRules{
		RequestExpiry:          getEnvDuration("REQUEST_EXPIRY_HOURS", d.RequestExpiry, time.Hour),
		SessionEndGrace:        getEnvDuration("SESSION_END_GRACE_MINUTES", d.SessionEndGrace, time.Minute),
		CancellationCutoff:     getEnvDuration("CANCELLATION_CUTOFF_HOURS", d.CancellationCutoff, time.Hour),
		PlatformFeeBps:         getEnvInt64("PLATFORM_FEE_BPS", d.PlatformFeeBps),
		ReminderLeadTime:       getEnvDuration("REMINDER_LEAD_MINUTES", d.ReminderLeadTime, time.Minute),
		WebhookDedupeRetention: getEnvDuration("WEBHOOK_DEDUPE_RETENTION_DAYS", d.WebhookDedupeRetention, 24*time.Hour),
		JobRetryBase:           getEnvDuration("JOB_RETRY_BASE_SECONDS", d.JobRetryBase, time.Second),
		JobMaxRetries:          int(getEnvInt64("JOB_MAX_RETRIES", int64(d.JobMaxRetries))),
		ClockSkewWarnThreshold: getEnvDuration("CLOCK_SKEW_WARN_SECONDS", d.ClockSkewWarnThreshold, time.Second),
	}
}

// PlatformFeeCents computes the platform's cut of a captured amount,
// rounding down to the nearest cent.
func (b BusinessRules) PlatformFeeCents(amountCents int64) int64 {
	return amountCents * b.PlatformFeeBps / 10000
}
