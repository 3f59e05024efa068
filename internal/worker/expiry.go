// Package worker runs the periodic jobs of cmd/worker.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/bulk-coupon-system/internal/lock"
)

// sweepLockKey serializes expiry sweeps across worker replicas.
const sweepLockKey = "expiry:sweep"

// Sweeper expires overdue coupons.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// Locker grants short-lived exclusive ownership of a key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (lock.UnlockFunc, bool, error)
}

// ExpiryJob runs a Sweeper once at start-up and then on every tick until
// the context is cancelled.
type ExpiryJob struct {
	sweeper  Sweeper
	locker   Locker
	interval time.Duration
}

// NewExpiryJob creates an ExpiryJob. The sweep lock is held for at most interval.
func NewExpiryJob(sweeper Sweeper, locker Locker, interval time.Duration) *ExpiryJob {
	return &ExpiryJob{sweeper: sweeper, locker: locker, interval: interval}
}

// Run blocks until ctx is done.
func (j *ExpiryJob) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", j.interval).Msg("expiry job started")
	j.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			j.RunOnce(ctx)
		case <-ctx.Done():
			log.Info().Msg("expiry job stopped")
			return
		}
	}
}

// RunOnce performs a single sweep if no other replica is sweeping.
// It reports whether a sweep ran to completion.
func (j *ExpiryJob) RunOnce(ctx context.Context) bool {
	unlock, ok, err := j.locker.TryLock(ctx, sweepLockKey, j.interval)
	if err != nil {
		log.Error().Err(err).Msg("failed to take expiry sweep lock")
		return false
	}
	if !ok {
		log.Debug().Msg("expiry sweep already running elsewhere, skipping")
		return false
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("failed to release expiry sweep lock")
		}
	}()

	if _, err := j.sweeper.Sweep(ctx); err != nil {
		log.Error().Err(err).Msg("expiry sweep failed")
		return false
	}
	return true
}
