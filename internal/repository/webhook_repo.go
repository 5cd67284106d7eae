package repository

import (
	"context"
	"fmt"
	"time"

	"tutoring-platform/internal/models"

	"github.com/jackc/pgx/v5"
)

// WebhookRepository records which provider webhook events have already been
// processed, so a retried delivery becomes a no-op instead of a double
// charge/refund.
type WebhookRepository struct{}

func NewWebhookRepository() *WebhookRepository {
	return &WebhookRepository{}
}

// MarkProcessed inserts a dedupe row for eventID. It reports whether the
// event had already been seen (true means the caller should skip applying
// the event's side effects).
func (r *WebhookRepository) MarkProcessed(ctx context.Context, tx pgx.Tx, eventID, eventType string, logicalTimestamp time.Time) (alreadyProcessed bool, err error) {
	query := `
		INSERT INTO processed_webhooks (event_id, event_type, logical_timestamp, processed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO NOTHING
	`
	tag, err := tx.Exec(ctx, query, eventID, eventType, logicalTimestamp, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to record processed webhook: %w", err)
	}
	return tag.RowsAffected() == 0, nil
}

// GetLastProcessed returns the most recently processed event of the given
// type, used to tolerate provider delivery reordering: a webhook older than
// the last one already applied is discarded rather than replayed out of order.
func (r *WebhookRepository) GetLastProcessed(ctx context.Context, tx pgx.Tx, eventType string) (*models.ProcessedWebhook, error) {
	query := `
		SELECT event_id, event_type, logical_timestamp, processed_at
		FROM processed_webhooks
		WHERE event_type = $1
		ORDER BY logical_timestamp DESC
		LIMIT 1
	`
	var w models.ProcessedWebhook
	err := tx.QueryRow(ctx, query, eventType).Scan(&w.EventID, &w.EventType, &w.LogicalTimestamp, &w.ProcessedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load last processed webhook: %w", err)
	}
	return &w, nil
}

// PruneOlderThan deletes dedupe rows past the provider's replay window, run
// periodically by a scheduler job.
func (r *WebhookRepository) PruneOlderThan(ctx context.Context, db interface {
	Exec(context.Context, string, ...any) (pgx.CommandTag, error)
}, cutoff time.Time) (int64, error) {
	tag, err := db.Exec(ctx, `DELETE FROM processed_webhooks WHERE processed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune processed webhooks: %w", err)
	}
	return tag.RowsAffected(), nil
}
