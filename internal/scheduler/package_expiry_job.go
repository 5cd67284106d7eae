package scheduler

import (
	"context"
	"time"

	"tutoring-platform/internal/clock"
	"tutoring-platform/internal/config"
	"tutoring-platform/internal/repository"

	"github.com/rs/zerolog/log"
)

// PackageExpiryJob marks prepaid packages expired once their validity window
// passes, independent of whether any bound booking ever consumed a session.
type PackageExpiryJob struct {
	packages *repository.PackageRepository
	clock    clock.Clock
	rules    config.BusinessRules
}

func NewPackageExpiryJob(packages *repository.PackageRepository, clk clock.Clock, rules config.BusinessRules) *PackageExpiryJob {
	return &PackageExpiryJob{packages: packages, clock: clk, rules: rules}
}

func (j *PackageExpiryJob) Name() string          { return "package_expiry" }
func (j *PackageExpiryJob) Period() time.Duration { return 15 * time.Minute }

func (j *PackageExpiryJob) Run(ctx context.Context) error {
	now, err := j.clock.Now(ctx)
	if err != nil {
		return err
	}

	candidates, err := j.packages.ExpiredCandidates(ctx, now)
	if err != nil {
		return err
	}

	for _, p := range candidates {
		packageID := p.ID
		RetryWithBackoff(ctx, j.rules, packageID.String(), func() error {
			if err := j.packages.MarkExpired(ctx, packageID); err != nil {
				if err == repository.ErrPackageNotFound {
					return nil
				}
				return err
			}
			log.Info().Str("package_id", packageID.String()).Int("remaining_sessions", p.RemainingSessions).Msg("package_expiry: package expired")
			return nil
		})
	}
	return nil
}
