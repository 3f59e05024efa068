package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fairyhunter13/bulk-coupon-system/internal/model"
)

// BatchChecker reports whether a batch exists.
type BatchChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// CouponStreamer walks stored coupons without buffering them.
type CouponStreamer interface {
	StreamByBatch(ctx context.Context, batchID int64, fn func(*model.CouponExportRow) error) error
	StreamAll(ctx context.Context, fn func(*model.CouponExportRow) error) error
}

var exportHeader = []string{
	"Coupon Code", "Status", "Usage Count", "Max Usages", "Campaign", "Batch ID",
	"Start Date", "Expiry Date", "POS Code", "ATG Code", "Transaction Number",
	"Loyalty ID", "Source", "Redeemed At", "Created At",
}

// ExportService writes coupon listings as CSV.
type ExportService struct {
	batches BatchChecker
	coupons CouponStreamer
}

// NewExportService creates a new ExportService.
func NewExportService(batches BatchChecker, coupons CouponStreamer) *ExportService {
	return &ExportService{batches: batches, coupons: coupons}
}

// EnsureBatch returns ErrBatchNotFound if the batch doesn't exist. Handlers
// call it before committing to a streamed response.
func (s *ExportService) EnsureBatch(ctx context.Context, batchID int64) error {
	ok, err := s.batches.Exists(ctx, batchID)
	if err != nil {
		return fmt.Errorf("check batch: %w", err)
	}
	if !ok {
		return ErrBatchNotFound
	}
	return nil
}

// WriteBatchCSV streams every coupon of a batch to w as CSV with a header
// row and returns the number of data rows written.
func (s *ExportService) WriteBatchCSV(ctx context.Context, batchID int64, w io.Writer) (int64, error) {
	if err := s.EnsureBatch(ctx, batchID); err != nil {
		return 0, err
	}
	rows, err := writeCSV(w, func(fn func(*model.CouponExportRow) error) error {
		return s.coupons.StreamByBatch(ctx, batchID, fn)
	})
	if err != nil {
		return rows, fmt.Errorf("export batch %d: %w", batchID, err)
	}
	return rows, nil
}

// WriteAllCSV streams every stored coupon to w in the same format as
// WriteBatchCSV.
func (s *ExportService) WriteAllCSV(ctx context.Context, w io.Writer) (int64, error) {
	rows, err := writeCSV(w, func(fn func(*model.CouponExportRow) error) error {
		return s.coupons.StreamAll(ctx, fn)
	})
	if err != nil {
		return rows, fmt.Errorf("export all coupons: %w", err)
	}
	return rows, nil
}

func writeCSV(w io.Writer, stream func(fn func(*model.CouponExportRow) error) error) (int64, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return 0, fmt.Errorf("write csv header: %w", err)
	}

	var rows int64
	record := make([]string, len(exportHeader))
	err := stream(func(r *model.CouponExportRow) error {
		record[0] = r.Code
		record[1] = string(r.Status)
		record[2] = strconv.Itoa(r.UsageCount)
		record[3] = strconv.Itoa(r.MaxUsages)
		record[4] = r.CampaignName
		record[5] = strconv.FormatInt(r.BatchID, 10)
		record[6] = r.StartDate.Format(model.DateLayout)
		record[7] = r.ExpiryDate.Format(model.DateLayout)
		record[8] = deref(r.PosCode)
		record[9] = deref(r.AtgCode)
		record[10] = deref(r.TransactionNumber)
		record[11] = deref(r.LoyaltyID)
		record[12] = deref(r.Source)
		record[13] = ""
		if r.RedeemedAt != nil {
			record[13] = r.RedeemedAt.UTC().Format(time.RFC3339)
		}
		record[14] = r.CreatedAt.UTC().Format(time.RFC3339)
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
		rows++
		return nil
	})
	if err != nil {
		return rows, err
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return rows, fmt.Errorf("flush csv: %w", err)
	}
	return rows, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
