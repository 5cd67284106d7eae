package webhook

import (
	"testing"
	"time"

	"tutoring-platform/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestIsStaleDelivery_NoPriorEventNeverStale(t *testing.T) {
	assert.False(t, isStaleDelivery(nil, time.Now()))
}

func TestIsStaleDelivery_OlderThanLastProcessedIsStale(t *testing.T) {
	last := &models.ProcessedWebhook{LogicalTimestamp: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)}
	olderEvent := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, isStaleDelivery(last, olderEvent))
}

func TestIsStaleDelivery_NewerThanLastProcessedIsNotStale(t *testing.T) {
	last := &models.ProcessedWebhook{LogicalTimestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	newerEvent := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	assert.False(t, isStaleDelivery(last, newerEvent))
}

// A payment_succeeded arriving after a refund already landed for the same
// event type must not be replayed on top of it — the scenario the review
// comment names directly.
func TestIsStaleDelivery_LateSucceededAfterRefundIsDiscarded(t *testing.T) {
	refundProcessedAt := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	last := &models.ProcessedWebhook{EventType: "charge.refunded", LogicalTimestamp: refundProcessedAt}
	staleSucceeded := refundProcessedAt.Add(-time.Hour)
	assert.True(t, isStaleDelivery(last, staleSucceeded))
}
