// Package lock provides a Redis-backed distributed lock used to keep
// scheduler jobs from running on more than one worker at a time. Acquire
// is a single SET NX; Release and Extend follow the same atomic Lua-script
// idiom the pack uses for rate limiting: a single EVAL makes their
// compare-token-then-act sequence race-free across workers.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned by Acquire when another holder already owns
// the named lock.
var ErrNotAcquired = errors.New("lock not acquired")

// releaseScript deletes the lock key only if it still holds the token this
// holder set, so a holder whose lease already expired (and was reacquired
// by someone else) can never delete a lock it no longer owns.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// extendScript resets the TTL only if this holder still owns the lock.
const extendScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end
`

// Handle represents a held lock. Callers must Release it when done.
type Handle struct {
	client *redis.Client
	key    string
	token  string
}

// Locker acquires named, TTL-bounded locks in Redis.
type Locker struct {
	client *redis.Client
}

func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: client}
}

// Acquire attempts to take the named lock for ttl. It does not block or
// retry; callers that need "only one worker runs this job" semantics treat
// ErrNotAcquired as "someone else already has it this tick" and skip.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (*Handle, error) {
	token := uuid.NewString()
	key := lockKey(name)

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %q: %w", name, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return &Handle{client: l.client, key: key, token: token}, nil
}

// Extend pushes the lock's TTL out, for a job that is taking longer than
// its original lease. Returns ErrNotAcquired if the lease already expired
// and was claimed by another holder.
func (h *Handle) Extend(ctx context.Context, ttl time.Duration) error {
	res, err := h.client.Eval(ctx, extendScript, []string{h.key}, h.token, ttl.Milliseconds()).Result()
	if err != nil {
		return fmt.Errorf("failed to extend lock: %w", err)
	}
	if n, ok := res.(int64); !ok || n == 0 {
		return ErrNotAcquired
	}
	return nil
}

// Release drops the lock if this handle still owns it. Safe to call on an
// already-expired handle; it is then a no-op.
func (h *Handle) Release(ctx context.Context) error {
	if _, err := h.client.Eval(ctx, releaseScript, []string{h.key}, h.token).Result(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

func lockKey(name string) string {
	return "lock:" + name
}
