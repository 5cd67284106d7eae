package scheduler

import "time"

// Backoff returns the delay before retrying a failed per-booking job step:
// base * 2^attempt. attempt is zero-indexed (the first retry uses attempt=0).
func Backoff(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	return d
}
