// Package scheduler drives the periodic sweeps that move bookings through
// time-triggered transitions nobody clicks a button for: expiring stale
// requests, starting sessions at their scheduled time, ending sessions past
// their grace period, and sending pre-session reminders. Grounded on the
// teacher's ticker-goroutine idiom in cmd/server/main.go (the database
// health-check and session-cleanup loops), generalized into a reusable
// Runner instead of one bespoke goroutine per concern.
package scheduler

import (
	"context"
	"time"
)

// Job is one periodic sweep. Period reports how often Runner should tick it;
// Run performs one pass and returns the first error encountered scanning the
// candidate set (per-item failures are handled inside Run so one bad row
// doesn't abort the rest of the batch).
type Job interface {
	Name() string
	Period() time.Duration
	Run(ctx context.Context) error
}
