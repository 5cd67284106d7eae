package scheduler

import (
	"context"
	"time"

	"tutoring-platform/internal/clock"
	"tutoring-platform/internal/config"
	"tutoring-platform/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// PruneWebhooksJob deletes processed_webhooks rows past the provider's
// replay window, keeping the dedupe table from growing without bound.
type PruneWebhooksJob struct {
	pool     *pgxpool.Pool
	webhooks *repository.WebhookRepository
	clock    clock.Clock
	rules    config.BusinessRules
}

func NewPruneWebhooksJob(pool *pgxpool.Pool, webhooks *repository.WebhookRepository, clk clock.Clock, rules config.BusinessRules) *PruneWebhooksJob {
	return &PruneWebhooksJob{pool: pool, webhooks: webhooks, clock: clk, rules: rules}
}

func (j *PruneWebhooksJob) Name() string        { return "prune_webhooks" }
func (j *PruneWebhooksJob) Period() time.Duration { return 1 * time.Hour }

func (j *PruneWebhooksJob) Run(ctx context.Context) error {
	now, err := j.clock.Now(ctx)
	if err != nil {
		return err
	}
	cutoff := now.Add(-j.rules.WebhookDedupeRetention)
	pruned, err := j.webhooks.PruneOlderThan(ctx, j.pool, cutoff)
	if err != nil {
		return err
	}
	if pruned > 0 {
		log.Info().Int64("pruned", pruned).Msg("prune_webhooks: removed stale dedupe rows")
	}
	return nil
}
