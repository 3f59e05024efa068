package service

import (
	"context"
	"fmt"
	"time"
)

// DefaultBatchSize bounds how many codes a single INSERT carries.
const DefaultBatchSize = 5000

// CodeInserter bulk-inserts codes with insert-or-ignore semantics.
type CodeInserter interface {
	InsertCodes(ctx context.Context, batchID int64, codes []string, now time.Time) (int64, error)
}

// BatchWriter persists coupon codes in bounded chunks. Codes that collide
// with an existing row are skipped, not reported as errors.
type BatchWriter struct {
	store     CodeInserter
	chunkSize int
	now       func() time.Time
}

// NewBatchWriter creates a BatchWriter. A non-positive chunkSize falls back to DefaultBatchSize.
func NewBatchWriter(store CodeInserter, chunkSize int) *BatchWriter {
	if chunkSize <= 0 {
		chunkSize = DefaultBatchSize
	}
	return &BatchWriter{store: store, chunkSize: chunkSize, now: time.Now}
}

// InsertBatch writes codes for batchID and returns how many rows were
// actually inserted, which may be fewer than len(codes).
func (w *BatchWriter) InsertBatch(ctx context.Context, batchID int64, codes []string) (int, error) {
	inserted := 0
	for start := 0; start < len(codes); start += w.chunkSize {
		end := min(start+w.chunkSize, len(codes))
		n, err := w.store.InsertCodes(ctx, batchID, codes[start:end], w.now())
		if err != nil {
			return inserted, fmt.Errorf("insert chunk %d-%d: %w", start, end, err)
		}
		inserted += int(n)
	}
	return inserted, nil
}
