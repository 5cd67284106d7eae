package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_DoublesPerAttempt(t *testing.T) {
	base := 100 * time.Millisecond
	assert.Equal(t, 100*time.Millisecond, Backoff(base, 0))
	assert.Equal(t, 200*time.Millisecond, Backoff(base, 1))
	assert.Equal(t, 400*time.Millisecond, Backoff(base, 2))
	assert.Equal(t, 800*time.Millisecond, Backoff(base, 3))
}

func TestBackoff_ZeroAttemptReturnsBase(t *testing.T) {
	assert.Equal(t, 5*time.Second, Backoff(5*time.Second, 0))
}
