package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/bulk-coupon-system/internal/codegen"
	"github.com/fairyhunter13/bulk-coupon-system/internal/metrics"
)

// DefaultMaxRetryAttempts is how many top-up rounds a single chunk may take
// to fill its candidate pool.
const DefaultMaxRetryAttempts = 10

const progressLogEvery = 10

// CandidateSource is the allocator side of a generation run.
type CandidateSource interface {
	Candidates(prefix string, desired int) ([]string, error)
	FilterExisting(ctx context.Context, codes []string) ([]string, error)
}

// CouponWriter is the persistence side of a generation run.
type CouponWriter interface {
	InsertBatch(ctx context.Context, batchID int64, codes []string) (int, error)
}

// GenerationTarget identifies where generated codes go.
type GenerationTarget struct {
	BatchID int64
	Prefix  string
}

// GenerationOrchestrator drives allocator and writer until a batch holds
// the requested number of new coupons or the keyspace runs dry.
type GenerationOrchestrator struct {
	allocator  CandidateSource
	writer     CouponWriter
	batchSize  int
	maxRetries int
}

// NewGenerationOrchestrator creates a GenerationOrchestrator.
// Non-positive batchSize or maxRetries fall back to the defaults.
func NewGenerationOrchestrator(allocator CandidateSource, writer CouponWriter, batchSize, maxRetries int) *GenerationOrchestrator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetryAttempts
	}
	return &GenerationOrchestrator{
		allocator:  allocator,
		writer:     writer,
		batchSize:  batchSize,
		maxRetries: maxRetries,
	}
}

// Generate inserts up to count new coupons for target and returns how many
// were actually inserted.
//
// Running out of fresh candidates is a soft stop: the partial count is
// returned with a nil error. Storage failures abort immediately and are
// wrapped in ErrGenerationFailed alongside the count inserted so far.
func (o *GenerationOrchestrator) Generate(ctx context.Context, target GenerationTarget, count int) (int, error) {
	if count <= 0 {
		return 0, nil
	}

	started := time.Now()
	total, collisions, rounds, idleRounds := 0, 0, 0, 0
	status := "success"

	defer func() {
		metrics.RecordGeneration(status, total, collisions, time.Since(started).Seconds())
	}()

	for total < count {
		want := min(o.batchSize, count-total)

		pool, dup, err := o.fillPool(ctx, target.Prefix, want)
		collisions += dup
		if err != nil {
			status = "failure"
			return total, err
		}
		if len(pool) == 0 {
			status = "partial"
			log.Warn().
				Int64("batch_id", target.BatchID).
				Int("generated", total).
				Int("requested", count).
				Msg("candidate pool exhausted, stopping generation early")
			break
		}
		if len(pool) > want {
			pool = pool[:want]
		}

		n, err := o.writer.InsertBatch(ctx, target.BatchID, pool)
		total += n
		if err != nil {
			status = "failure"
			return total, fmt.Errorf("%w: batch %d: %w", ErrGenerationFailed, target.BatchID, err)
		}

		// Every row of a round can be lost to concurrent writers; cap how
		// long that may go on so the loop always terminates.
		if n == 0 {
			idleRounds++
			if idleRounds > o.maxRetries {
				status = "partial"
				log.Warn().
					Int64("batch_id", target.BatchID).
					Int("generated", total).
					Int("requested", count).
					Int("idle_rounds", idleRounds).
					Msg("no rows inserted in consecutive rounds, stopping generation early")
				break
			}
		} else {
			idleRounds = 0
		}

		rounds++
		if rounds%progressLogEvery == 0 {
			log.Info().
				Int64("batch_id", target.BatchID).
				Int("generated", total).
				Int("requested", count).
				Msg("coupon generation progress")
		}
	}

	log.Info().
		Int64("batch_id", target.BatchID).
		Int("generated", total).
		Int("requested", count).
		Int("collisions", collisions).
		Dur("duration", time.Since(started)).
		Msg("coupon generation finished")
	return total, nil
}

// fillPool gathers up to want fresh codes, over-generating 2x and then
// topping up the shortfall 3x per retry round. It also returns how many
// candidates were discarded as already stored.
func (o *GenerationOrchestrator) fillPool(ctx context.Context, prefix string, want int) ([]string, int, error) {
	candidates, err := o.allocator.Candidates(prefix, 2*want)
	if err != nil {
		return nil, 0, candidateError(err)
	}
	pool, err := o.allocator.FilterExisting(ctx, candidates)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	collisions := len(candidates) - len(pool)

	if len(pool) >= want {
		return pool, collisions, nil
	}

	seen := make(map[string]struct{}, want)
	for _, c := range pool {
		seen[c] = struct{}{}
	}

	for attempt := 0; attempt < o.maxRetries && len(pool) < want; attempt++ {
		more, err := o.allocator.Candidates(prefix, 3*(want-len(pool)))
		if err != nil {
			return nil, collisions, candidateError(err)
		}
		fresh, err := o.allocator.FilterExisting(ctx, more)
		if err != nil {
			return nil, collisions, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
		}
		collisions += len(more) - len(fresh)
		for _, c := range fresh {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			pool = append(pool, c)
		}
	}
	return pool, collisions, nil
}

func candidateError(err error) error {
	if errors.Is(err, codegen.ErrInvalidPrefix) {
		return fmt.Errorf("%w: %w", ErrInvalidPrefix, err)
	}
	return fmt.Errorf("%w: generate candidates: %w", ErrGenerationFailed, err)
}
