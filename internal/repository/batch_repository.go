package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/bulk-coupon-system/internal/model"
	"github.com/fairyhunter13/bulk-coupon-system/internal/service"
	"github.com/fairyhunter13/bulk-coupon-system/pkg/database"
)

// BatchRepository provides data access for coupon batches.
type BatchRepository struct {
	pool PoolInterface
}

// NewBatchRepository creates a new BatchRepository with the given pool.
func NewBatchRepository(pool *pgxpool.Pool) *BatchRepository {
	return &BatchRepository{pool: pool}
}

// NewBatchRepositoryWithPool creates a new BatchRepository with a custom pool interface.
// This is primarily used for testing.
func NewBatchRepositoryWithPool(pool PoolInterface) *BatchRepository {
	return &BatchRepository{pool: pool}
}

// Insert stores a new batch and fills in its ID and timestamps.
func (r *BatchRepository) Insert(ctx context.Context, b *model.Batch) error {
	query := `INSERT INTO coupon_batches
		(campaign_id, coupon_count, pos_code, atg_code, start_date, expiry_date, max_usages, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		RETURNING id, active, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		b.CampaignID, b.CouponCount, b.PosCode, b.AtgCode, b.StartDate, b.ExpiryDate, b.MaxUsages,
	).Scan(&b.ID, &b.Active, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

const batchContextQuery = `SELECT b.id, b.campaign_id, b.coupon_count, b.pos_code, b.atg_code,
		b.start_date, b.expiry_date, b.max_usages, b.active, b.created_at, b.updated_at,
		ca.name, ca.active, ca.prefix,
		COALESCE(b.start_date, ca.start_date),
		COALESCE(b.expiry_date, ca.expiry_date),
		COALESCE(b.max_usages, ca.max_usages),
		COALESCE(b.pos_code, ca.pos_code),
		COALESCE(b.atg_code, ca.atg_code),
		s.active_count, s.used_count, s.expired_count, s.inactive_count, s.total_count
	FROM coupon_batches b
	JOIN campaigns ca ON ca.id = b.campaign_id
	CROSS JOIN LATERAL (
		SELECT COUNT(*) FILTER (WHERE c.status = 'ACTIVE') AS active_count,
			COUNT(*) FILTER (WHERE c.status = 'MAX_USED') AS used_count,
			COUNT(*) FILTER (WHERE c.status = 'EXPIRED') AS expired_count,
			COUNT(*) FILTER (WHERE c.status = 'INACTIVE') AS inactive_count,
			COUNT(*) AS total_count
		FROM coupons c WHERE c.batch_id = b.id
	) s`

func scanBatchContext(row pgx.Row) (*model.BatchContext, error) {
	var bc model.BatchContext
	err := row.Scan(
		&bc.ID, &bc.CampaignID, &bc.CouponCount, &bc.PosCode, &bc.AtgCode,
		&bc.StartDate, &bc.ExpiryDate, &bc.MaxUsages, &bc.Active, &bc.CreatedAt, &bc.UpdatedAt,
		&bc.CampaignName, &bc.CampaignActive, &bc.Prefix,
		&bc.EffectiveStart, &bc.EffectiveExpiry, &bc.EffectiveMaxUsages,
		&bc.EffectivePosCode, &bc.EffectiveAtgCode,
		&bc.ActiveCoupons, &bc.UsedCoupons, &bc.ExpiredCoupons, &bc.InactiveCoupons, &bc.TotalCoupons,
	)
	if err != nil {
		return nil, err
	}
	return &bc, nil
}

// GetContext loads a batch resolved against its campaign, with coupon
// counts per status.
// Returns nil, nil if the batch is not found (service layer handles this).
func (r *BatchRepository) GetContext(ctx context.Context, id int64) (*model.BatchContext, error) {
	bc, err := scanBatchContext(r.pool.QueryRow(ctx, batchContextQuery+` WHERE b.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get batch %d: %w", id, err)
	}
	return bc, nil
}

// List returns every batch in creation order.
func (r *BatchRepository) List(ctx context.Context) ([]model.BatchContext, error) {
	rows, err := r.pool.Query(ctx, batchContextQuery+` ORDER BY b.id`)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return collectBatchContexts(rows)
}

// ListByCampaign returns every batch of a campaign in creation order.
// On success, returns an empty slice (not nil) when the campaign has no batches.
func (r *BatchRepository) ListByCampaign(ctx context.Context, campaignID int64) ([]model.BatchContext, error) {
	rows, err := r.pool.Query(ctx, batchContextQuery+` WHERE b.campaign_id = $1 ORDER BY b.id`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list batches for campaign %d: %w", campaignID, err)
	}
	return collectBatchContexts(rows)
}

func collectBatchContexts(rows pgx.Rows) ([]model.BatchContext, error) {
	defer rows.Close()

	batches := []model.BatchContext{}
	for rows.Next() {
		bc, err := scanBatchContext(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, *bc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batch rows: %w", err)
	}
	return batches, nil
}

// Exists reports whether a batch with the given id exists.
func (r *BatchRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM coupon_batches WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check batch %d: %w", id, err)
	}
	return exists, nil
}

// Update writes the batch's override columns.
// Returns service.ErrBatchNotFound if no row matched.
func (r *BatchRepository) Update(ctx context.Context, b *model.Batch) error {
	query := `UPDATE coupon_batches SET
			pos_code = $2, atg_code = $3, start_date = $4, expiry_date = $5, max_usages = $6,
			updated_at = NOW()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, b.ID, b.PosCode, b.AtgCode, b.StartDate, b.ExpiryDate, b.MaxUsages)
	if err != nil {
		return fmt.Errorf("update batch %d: %w", b.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrBatchNotFound
	}
	return nil
}

// SetActive flips the batch's active flag using the given querier.
// Returns service.ErrBatchNotFound if no row matched.
func (r *BatchRepository) SetActive(ctx context.Context, q database.TxQuerier, id int64, active bool) error {
	tag, err := q.Exec(ctx,
		`UPDATE coupon_batches SET active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set batch %d active=%t: %w", id, active, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrBatchNotFound
	}
	return nil
}
