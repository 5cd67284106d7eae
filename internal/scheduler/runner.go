package scheduler

import (
	"context"
	"sync"
	"time"

	"tutoring-platform/internal/config"
	"tutoring-platform/internal/lock"
	"tutoring-platform/pkg/metrics"

	"github.com/rs/zerolog/log"
)

// Runner drives one ticker per registered Job and guarantees max-instances=1
// per job id, layering an in-process mutex (cheap, catches the common case
// of a slow tick overlapping the next one on the same worker) under the
// cross-process Redis lock (catches the case of two worker replicas ticking
// at the same moment).
type Runner struct {
	locker *lock.Locker
	rules  config.BusinessRules
	jobs   []Job

	mu      sync.Mutex
	running map[string]bool
}

func NewRunner(locker *lock.Locker, rules config.BusinessRules, jobs ...Job) *Runner {
	return &Runner{locker: locker, rules: rules, jobs: jobs, running: make(map[string]bool)}
}

// Start launches one goroutine per job and blocks until ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range r.jobs {
		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			r.runLoop(ctx, j)
		}(job)
	}
	wg.Wait()
}

func (r *Runner) runLoop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Period())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("job", job.Name()).Msg("scheduler job shutting down")
			return
		case <-ticker.C:
			r.tick(ctx, job)
		}
	}
}

func (r *Runner) tick(ctx context.Context, job Job) {
	if !r.claim(job.Name()) {
		log.Debug().Str("job", job.Name()).Msg("skipping tick: already running on this worker")
		return
	}
	defer r.release(job.Name())

	handle, err := r.locker.Acquire(ctx, "job:"+job.Name(), job.Period())
	if err != nil {
		if err != lock.ErrNotAcquired {
			log.Warn().Err(err).Str("job", job.Name()).Msg("failed to acquire job lock")
		}
		return
	}
	defer handle.Release(ctx)

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		metrics.JobRunsTotal.WithLabelValues(job.Name(), "failed").Inc()
		log.Error().Err(err).Str("job", job.Name()).Msg("scheduler job run failed")
		return
	}
	metrics.JobRunsTotal.WithLabelValues(job.Name(), "success").Inc()
	log.Debug().Str("job", job.Name()).Dur("duration", time.Since(start)).Msg("scheduler job completed")
}

func (r *Runner) claim(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running[name] {
		return false
	}
	r.running[name] = true
	return true
}

func (r *Runner) release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, name)
}

// RetryWithBackoff runs fn for at most rules.JobMaxRetries attempts in total
// (at least one), with exponential backoff between them. It gives up
// (dead-letters) after the last attempt rather than returning control to
// the caller to retry again — a booking that keeps failing is picked up
// fresh on the job's next tick.
func RetryWithBackoff(ctx context.Context, rules config.BusinessRules, name string, fn func() error) {
	attempts := rules.JobMaxRetries
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(); err == nil {
			return
		}
		if attempt == attempts-1 {
			break
		}
		delay := Backoff(rules.JobRetryBase, attempt)
		log.Warn().Err(err).Str("item", name).Int("attempt", attempt+1).Dur("backoff", delay).Msg("job step failed, retrying")
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
	log.Error().Err(err).Str("item", name).Int("max_retries", rules.JobMaxRetries).Msg("job step exhausted retries, dead-lettered")
}
