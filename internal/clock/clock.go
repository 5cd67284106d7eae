// Package clock provides the single source of truth for "now" used by the
// scheduler and the state machine driver. Reading wall time off a worker's
// local clock risks skew against the database that actually enforces
// booking windows; every time-sensitive query compares against the
// database's own clock instead.
package clock

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Clock returns the authoritative current time.
type Clock interface {
	Now(ctx context.Context) (time.Time, error)
}

// Postgres asks the database for NOW() rather than trusting the local
// process clock, so a worker with a skewed system clock cannot expire or
// start sessions early or late relative to what the database itself would
// compute in a CHECK constraint or trigger.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (c *Postgres) Now(ctx context.Context) (time.Time, error) {
	var now time.Time
	if err := c.pool.QueryRow(ctx, "SELECT NOW()").Scan(&now); err != nil {
		return time.Time{}, fmt.Errorf("failed to read database clock: %w", err)
	}
	return now.UTC(), nil
}

// Fixed is a test double that always returns the same instant, advanced
// explicitly by the test.
type Fixed struct {
	t time.Time
}

func NewFixed(t time.Time) *Fixed {
	return &Fixed{t: t.UTC()}
}

func (c *Fixed) Now(ctx context.Context) (time.Time, error) {
	return c.t, nil
}

func (c *Fixed) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func (c *Fixed) Set(t time.Time) {
	c.t = t.UTC()
}
