package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/bulk-coupon-system/internal/model"
	"github.com/fairyhunter13/bulk-coupon-system/pkg/database"
)

// PoolInterface defines the database operations the repositories need.
// This allows for mocking in tests.
type PoolInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// CouponRepository provides data access for individual coupon codes.
type CouponRepository struct {
	pool PoolInterface
}

// NewCouponRepository creates a new CouponRepository with the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// NewCouponRepositoryWithPool creates a new CouponRepository with a custom pool interface.
// This is primarily used for testing.
func NewCouponRepositoryWithPool(pool PoolInterface) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// ExistingCodes returns the subset of codes that are already stored.
// On success, returns an empty slice (not nil) when none exist.
func (r *CouponRepository) ExistingCodes(ctx context.Context, codes []string) ([]string, error) {
	existing := []string{}
	if len(codes) == 0 {
		return existing, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT code FROM coupons WHERE code = ANY($1)`, codes)
	if err != nil {
		return nil, fmt.Errorf("query existing codes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan existing code: %w", err)
		}
		existing = append(existing, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate existing codes: %w", err)
	}
	return existing, nil
}

// InsertCodes bulk-inserts ACTIVE coupons for a batch. Codes that collide
// with an existing row are skipped silently; the returned count is the
// number of rows actually written.
func (r *CouponRepository) InsertCodes(ctx context.Context, batchID int64, codes []string, now time.Time) (int64, error) {
	if len(codes) == 0 {
		return 0, nil
	}

	query := `INSERT INTO coupons (batch_id, code, status, usage_count, created_at, updated_at)
		SELECT $1, code, 'ACTIVE', 0, $3, $3 FROM unnest($2::text[]) AS code
		ON CONFLICT (code) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query, batchID, codes, now)
	if err != nil {
		return 0, fmt.Errorf("insert coupon codes: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetDetails loads a coupon with its batch and campaign state, applying
// batch overrides over campaign defaults.
// Returns nil, nil if the coupon is not found (service layer handles this).
func (r *CouponRepository) GetDetails(ctx context.Context, code string) (*model.CouponDetails, error) {
	query := `SELECT c.id, c.batch_id, c.code, c.status, c.usage_count,
			c.transaction_number, c.loyalty_id, c.source, c.redeemed_at,
			c.created_at, c.updated_at,
			b.active, ca.id, ca.name, ca.active,
			COALESCE(b.start_date, ca.start_date),
			COALESCE(b.expiry_date, ca.expiry_date),
			COALESCE(b.max_usages, ca.max_usages),
			COALESCE(b.pos_code, ca.pos_code),
			COALESCE(b.atg_code, ca.atg_code)
		FROM coupons c
		JOIN coupon_batches b ON b.id = c.batch_id
		JOIN campaigns ca ON ca.id = b.campaign_id
		WHERE c.code = $1`

	var d model.CouponDetails
	var status string
	err := r.pool.QueryRow(ctx, query, code).Scan(
		&d.ID, &d.BatchID, &d.Code, &status, &d.UsageCount,
		&d.TransactionNumber, &d.LoyaltyID, &d.Source, &d.RedeemedAt,
		&d.CreatedAt, &d.UpdatedAt,
		&d.BatchActive, &d.CampaignID, &d.CampaignName, &d.CampaignActive,
		&d.StartDate, &d.ExpiryDate, &d.MaxUsages, &d.PosCode, &d.AtgCode,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get coupon details: %w", err)
	}
	d.Status = model.CouponStatus(status)
	return &d, nil
}

// ApplyRedemption records one use of a coupon in a single conditional
// UPDATE. The row only changes while the coupon is ACTIVE, under its usage
// cap, and both its batch and campaign are active; crossing the cap moves
// it to MAX_USED in the same statement.
// Returns nil, nil when the predicate did not match.
func (r *CouponRepository) ApplyRedemption(ctx context.Context, code string, meta model.RedemptionMetadata, now time.Time) (*model.RedemptionApplied, error) {
	query := `UPDATE coupons AS c
		SET usage_count = c.usage_count + 1,
			status = CASE
				WHEN c.usage_count + 1 >= COALESCE(b.max_usages, ca.max_usages) THEN 'MAX_USED'
				ELSE c.status
			END,
			transaction_number = $2,
			loyalty_id = $3,
			source = $4,
			redeemed_at = $5,
			updated_at = $5
		FROM coupon_batches AS b
		JOIN campaigns AS ca ON ca.id = b.campaign_id
		WHERE c.code = $1
			AND b.id = c.batch_id
			AND c.status = 'ACTIVE'
			AND c.usage_count < COALESCE(b.max_usages, ca.max_usages)
			AND b.active
			AND ca.active
		RETURNING c.usage_count, COALESCE(b.max_usages, ca.max_usages), c.status`

	var applied model.RedemptionApplied
	var status string
	err := r.pool.QueryRow(ctx, query,
		code, meta.TransactionNumber, meta.LoyaltyID, meta.Source, now,
	).Scan(&applied.UsageCount, &applied.MaxUsages, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("apply redemption: %w", err)
	}
	applied.Status = model.CouponStatus(status)
	return &applied, nil
}

// MarkExpired moves an ACTIVE coupon to EXPIRED. It reports whether a row changed.
func (r *CouponRepository) MarkExpired(ctx context.Context, code string, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE coupons SET status = 'EXPIRED', updated_at = $2 WHERE code = $1 AND status = 'ACTIVE'`,
		code, now)
	if err != nil {
		return false, fmt.Errorf("mark coupon expired: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetStatusByBatch moves every coupon of a batch from one status to another
// using the given querier, so callers can run it inside a transaction.
func (r *CouponRepository) SetStatusByBatch(ctx context.Context, q database.TxQuerier, batchID int64, from, to model.CouponStatus, now time.Time) (int64, error) {
	tag, err := q.Exec(ctx,
		`UPDATE coupons SET status = $3, updated_at = $4 WHERE batch_id = $1 AND status = $2`,
		batchID, string(from), string(to), now)
	if err != nil {
		return 0, fmt.Errorf("set batch %d coupons %s->%s: %w", batchID, from, to, err)
	}
	return tag.RowsAffected(), nil
}

// ExpireBefore marks every ACTIVE coupon whose effective expiry date is
// before today as EXPIRED and returns the number of rows changed.
func (r *CouponRepository) ExpireBefore(ctx context.Context, today, now time.Time) (int64, error) {
	query := `UPDATE coupons AS c
		SET status = 'EXPIRED', updated_at = $2
		FROM coupon_batches AS b
		JOIN campaigns AS ca ON ca.id = b.campaign_id
		WHERE b.id = c.batch_id
			AND c.status = 'ACTIVE'
			AND COALESCE(b.expiry_date, ca.expiry_date) < $1`

	tag, err := r.pool.Exec(ctx, query, today, now)
	if err != nil {
		return 0, fmt.Errorf("expire coupons: %w", err)
	}
	return tag.RowsAffected(), nil
}

const exportRowQuery = `SELECT c.code, c.status, c.usage_count,
		COALESCE(b.max_usages, ca.max_usages), ca.name, b.id,
		COALESCE(b.start_date, ca.start_date),
		COALESCE(b.expiry_date, ca.expiry_date),
		COALESCE(b.pos_code, ca.pos_code),
		COALESCE(b.atg_code, ca.atg_code),
		c.transaction_number, c.loyalty_id, c.source, c.redeemed_at, c.created_at
	FROM coupons c
	JOIN coupon_batches b ON b.id = c.batch_id
	JOIN campaigns ca ON ca.id = b.campaign_id`

// StreamByBatch reads every coupon of a batch in id order and hands each
// row to fn without buffering the result set. Iteration stops at the first
// error fn returns.
func (r *CouponRepository) StreamByBatch(ctx context.Context, batchID int64, fn func(*model.CouponExportRow) error) error {
	rows, err := r.pool.Query(ctx, exportRowQuery+` WHERE c.batch_id = $1 ORDER BY c.id`, batchID)
	if err != nil {
		return fmt.Errorf("query batch %d coupons: %w", batchID, err)
	}
	return streamExportRows(rows, fn)
}

// StreamAll reads every stored coupon in id order, like StreamByBatch.
func (r *CouponRepository) StreamAll(ctx context.Context, fn func(*model.CouponExportRow) error) error {
	rows, err := r.pool.Query(ctx, exportRowQuery+` ORDER BY c.id`)
	if err != nil {
		return fmt.Errorf("query coupons: %w", err)
	}
	return streamExportRows(rows, fn)
}

func streamExportRows(rows pgx.Rows, fn func(*model.CouponExportRow) error) error {
	defer rows.Close()

	var row model.CouponExportRow
	for rows.Next() {
		var status string
		err := rows.Scan(
			&row.Code, &status, &row.UsageCount,
			&row.MaxUsages, &row.CampaignName, &row.BatchID,
			&row.StartDate, &row.ExpiryDate, &row.PosCode, &row.AtgCode,
			&row.TransactionNumber, &row.LoyaltyID, &row.Source, &row.RedeemedAt, &row.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("scan coupon row: %w", err)
		}
		row.Status = model.CouponStatus(status)
		if err := fn(&row); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate coupon rows: %w", err)
	}
	return nil
}
