package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/bulk-coupon-system/internal/model"
	"github.com/fairyhunter13/bulk-coupon-system/internal/service"
)

const uniqueViolation = "23505"

// CampaignRepository provides data access for campaigns using pgx.
type CampaignRepository struct {
	pool PoolInterface
}

// NewCampaignRepository creates a new CampaignRepository with the given pool.
func NewCampaignRepository(pool *pgxpool.Pool) *CampaignRepository {
	return &CampaignRepository{pool: pool}
}

// NewCampaignRepositoryWithPool creates a new CampaignRepository with a custom pool interface.
// This is primarily used for testing.
func NewCampaignRepositoryWithPool(pool PoolInterface) *CampaignRepository {
	return &CampaignRepository{pool: pool}
}

// Insert inserts a new campaign and fills in its ID and timestamps.
// Returns service.ErrCampaignExists if the name is already taken.
func (r *CampaignRepository) Insert(ctx context.Context, c *model.Campaign) error {
	query := `INSERT INTO campaigns
		(name, description, prefix, pos_code, atg_code, start_date, expiry_date, max_usages, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
		RETURNING id, active, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		c.Name, c.Description, c.Prefix, c.PosCode, c.AtgCode,
		c.StartDate, c.ExpiryDate, c.MaxUsages,
	).Scan(&c.ID, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return service.ErrCampaignExists
		}
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

const campaignSummaryColumns = `
	c.id, c.name, c.description, c.prefix, c.pos_code, c.atg_code,
	c.start_date, c.expiry_date, c.max_usages, c.active, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM coupon_batches b WHERE b.campaign_id = c.id),
	(SELECT COUNT(*) FROM coupons cp JOIN coupon_batches b ON b.id = cp.batch_id WHERE b.campaign_id = c.id)`

func scanCampaignSummary(row pgx.Row) (*model.CampaignSummary, error) {
	var s model.CampaignSummary
	err := row.Scan(
		&s.ID, &s.Name, &s.Description, &s.Prefix, &s.PosCode, &s.AtgCode,
		&s.StartDate, &s.ExpiryDate, &s.MaxUsages, &s.Active, &s.CreatedAt, &s.UpdatedAt,
		&s.BatchCount, &s.TotalCoupons,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByID retrieves a campaign with its batch and coupon totals.
// Returns nil, nil if the campaign is not found (service layer handles this).
func (r *CampaignRepository) GetByID(ctx context.Context, id int64) (*model.CampaignSummary, error) {
	query := `SELECT` + campaignSummaryColumns + ` FROM campaigns c WHERE c.id = $1`

	s, err := scanCampaignSummary(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get campaign %d: %w", id, err)
	}
	return s, nil
}

// List returns every campaign, newest first.
// On success, returns an empty slice (not nil) when no campaigns exist.
func (r *CampaignRepository) List(ctx context.Context) ([]model.CampaignSummary, error) {
	return r.list(ctx, `SELECT`+campaignSummaryColumns+` FROM campaigns c ORDER BY c.created_at DESC, c.id DESC`)
}

// ListActive returns the active campaigns, newest first.
func (r *CampaignRepository) ListActive(ctx context.Context) ([]model.CampaignSummary, error) {
	return r.list(ctx, `SELECT`+campaignSummaryColumns+` FROM campaigns c WHERE c.active ORDER BY c.created_at DESC, c.id DESC`)
}

func (r *CampaignRepository) list(ctx context.Context, query string) ([]model.CampaignSummary, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []model.CampaignSummary{}
	for rows.Next() {
		s, err := scanCampaignSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		campaigns = append(campaigns, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate campaign rows: %w", err)
	}
	return campaigns, nil
}

// Update replaces a campaign's editable fields and refreshes c's timestamps.
// The prefix may only change while the campaign has no batches.
// Returns service.ErrCampaignExists if the new name is taken,
// service.ErrPrefixLocked if the prefix guard fails and
// service.ErrCampaignNotFound if the campaign doesn't exist.
func (r *CampaignRepository) Update(ctx context.Context, c *model.Campaign) error {
	query := `UPDATE campaigns SET
			name = $2, description = $3, prefix = $4, pos_code = $5, atg_code = $6,
			start_date = $7, expiry_date = $8, max_usages = $9, updated_at = NOW()
		WHERE id = $1
			AND (prefix = $4 OR NOT EXISTS (SELECT 1 FROM coupon_batches b WHERE b.campaign_id = campaigns.id))
		RETURNING active, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		c.ID, c.Name, c.Description, c.Prefix, c.PosCode, c.AtgCode,
		c.StartDate, c.ExpiryDate, c.MaxUsages,
	).Scan(&c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return service.ErrCampaignExists
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("update campaign %d: %w", c.ID, err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM campaigns WHERE id = $1)`, c.ID).Scan(&exists); err != nil {
		return fmt.Errorf("check campaign %d: %w", c.ID, err)
	}
	if exists {
		return service.ErrPrefixLocked
	}
	return service.ErrCampaignNotFound
}

// SetActive flips the campaign's active flag. Coupons are not touched:
// campaign activity is checked live at redemption time.
// Returns service.ErrCampaignNotFound if no row matched.
func (r *CampaignRepository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE campaigns SET active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set campaign %d active=%t: %w", id, active, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrCampaignNotFound
	}
	return nil
}
