package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/bulk-coupon-system/internal/lock"
	"github.com/fairyhunter13/bulk-coupon-system/internal/model"
	"github.com/fairyhunter13/bulk-coupon-system/pkg/database"
)

// BatchRepositoryInterface defines the interface for batch data access.
type BatchRepositoryInterface interface {
	Insert(ctx context.Context, b *model.Batch) error
	GetContext(ctx context.Context, id int64) (*model.BatchContext, error)
	List(ctx context.Context) ([]model.BatchContext, error)
	ListByCampaign(ctx context.Context, campaignID int64) ([]model.BatchContext, error)
	Update(ctx context.Context, b *model.Batch) error
	SetActive(ctx context.Context, q database.TxQuerier, id int64, active bool) error
}

// CouponStatusUpdater mass-transitions the coupons of a batch.
type CouponStatusUpdater interface {
	SetStatusByBatch(ctx context.Context, q database.TxQuerier, batchID int64, from, to model.CouponStatus, now time.Time) (int64, error)
}

// BatchGenerator fills a batch with new coupon codes.
type BatchGenerator interface {
	Generate(ctx context.Context, target GenerationTarget, count int) (int, error)
}

// Locker grants short-lived exclusive ownership of a key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (lock.UnlockFunc, bool, error)
}

// TxBeginner defines the interface for beginning transactions.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// BatchService provides business logic for coupon batches.
type BatchService struct {
	pool      TxBeginner
	batches   BatchRepositoryInterface
	campaigns CampaignRepositoryInterface
	coupons   CouponStatusUpdater
	generator BatchGenerator
	locker    Locker
	lockTTL   time.Duration
}

// NewBatchService creates a new BatchService. pool is usually a *pgxpool.Pool.
func NewBatchService(
	pool TxBeginner,
	batches BatchRepositoryInterface,
	campaigns CampaignRepositoryInterface,
	coupons CouponStatusUpdater,
	generator BatchGenerator,
	locker Locker,
	lockTTL time.Duration,
) *BatchService {
	return &BatchService{
		pool:      pool,
		batches:   batches,
		campaigns: campaigns,
		coupons:   coupons,
		generator: generator,
		locker:    locker,
		lockTTL:   lockTTL,
	}
}

// Create stores a batch under an active campaign and generates its coupons.
// The response carries the number of coupons actually generated, which can
// be below the requested count if the keyspace ran dry; TopUp fills the rest.
// A fault after the batch row is stored comes back as a *GenerationError
// carrying the batch id and the coupons already inserted.
func (s *BatchService) Create(ctx context.Context, req *model.CreateBatchRequest) (*model.BatchResponse, error) {
	// Defense-in-depth: check for nil pointer even though handler validates
	if req == nil || req.CouponCount == nil {
		return nil, ErrInvalidRequest
	}
	count := *req.CouponCount
	if count < 1 || count > model.MaxBatchCouponCount {
		return nil, ErrInvalidCouponCount
	}

	campaign, err := s.campaigns.GetByID(ctx, req.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}
	if !campaign.Active {
		return nil, ErrCampaignInactive
	}

	batch := &model.Batch{
		CampaignID:  campaign.ID,
		CouponCount: count,
		PosCode:     req.PosCode,
		AtgCode:     req.AtgCode,
		MaxUsages:   req.MaxUsages,
	}
	start, expiry := campaign.StartDate, campaign.ExpiryDate
	if req.StartDate != nil {
		d, err := parseDate(*req.StartDate)
		if err != nil {
			return nil, err
		}
		batch.StartDate, start = &d, d
	}
	if req.ExpiryDate != nil {
		d, err := parseDate(*req.ExpiryDate)
		if err != nil {
			return nil, err
		}
		batch.ExpiryDate, expiry = &d, d
	}
	if expiry.Before(start) {
		return nil, ErrInvalidDateRange
	}

	if err := s.batches.Insert(ctx, batch); err != nil {
		return nil, err
	}
	log.Info().
		Int64("batch_id", batch.ID).
		Int64("campaign_id", campaign.ID).
		Int("coupon_count", count).
		Msg("batch created")

	generated, err := s.generate(ctx, batch.ID, count, func(context.Context) (string, error) {
		return campaign.Prefix, nil
	})
	if err != nil {
		return nil, err
	}

	bc, err := s.batches.GetContext(ctx, batch.ID)
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	if bc == nil {
		return nil, ErrBatchNotFound
	}
	resp := toBatchResponse(bc)
	resp.GeneratedCount = &generated
	return &resp, nil
}

// TopUp generates up to count more coupons into an existing active batch.
// Total coupons in a batch may not exceed model.MaxBatchCouponCount. The
// batch is checked after the generation lock is taken, so a run that
// finished just before cannot be double counted.
func (s *BatchService) TopUp(ctx context.Context, batchID int64, count int) (*model.TopUpResponse, error) {
	if count < 1 || count > model.MaxBatchCouponCount {
		return nil, ErrInvalidCouponCount
	}

	generated, err := s.generate(ctx, batchID, count, func(ctx context.Context) (string, error) {
		bc, err := s.batches.GetContext(ctx, batchID)
		if err != nil {
			return "", fmt.Errorf("get batch: %w", err)
		}
		if bc == nil {
			return "", ErrBatchNotFound
		}
		if !bc.Active {
			return "", ErrBatchInactive
		}
		if !bc.CampaignActive {
			return "", ErrCampaignInactive
		}
		if bc.TotalCoupons+int64(count) > model.MaxBatchCouponCount {
			return "", ErrInvalidCouponCount
		}
		return bc.Prefix, nil
	})
	if err != nil {
		return nil, err
	}
	return &model.TopUpResponse{BatchID: batchID, Requested: count, Generated: generated}, nil
}

// Update changes a batch's overrides. Only the fields present in req are
// written; the resulting validity window must still be ordered. New values
// apply to the batch's coupons at their next redemption.
func (s *BatchService) Update(ctx context.Context, id int64, req *model.UpdateBatchRequest) (*model.BatchResponse, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}

	bc, err := s.batches.GetContext(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	if bc == nil {
		return nil, ErrBatchNotFound
	}

	batch := bc.Batch
	start, expiry := bc.EffectiveStart, bc.EffectiveExpiry
	if req.PosCode != nil {
		batch.PosCode = req.PosCode
	}
	if req.AtgCode != nil {
		batch.AtgCode = req.AtgCode
	}
	if req.StartDate != nil {
		d, err := parseDate(*req.StartDate)
		if err != nil {
			return nil, err
		}
		batch.StartDate, start = &d, d
	}
	if req.ExpiryDate != nil {
		d, err := parseDate(*req.ExpiryDate)
		if err != nil {
			return nil, err
		}
		batch.ExpiryDate, expiry = &d, d
	}
	if expiry.Before(start) {
		return nil, ErrInvalidDateRange
	}
	if req.MaxUsages != nil {
		if *req.MaxUsages < 1 {
			return nil, fmt.Errorf("%w: max usages must be at least 1", ErrInvalidRequest)
		}
		batch.MaxUsages = req.MaxUsages
	}

	if err := s.batches.Update(ctx, &batch); err != nil {
		return nil, err
	}
	log.Info().
		Int64("batch_id", id).
		Msg("batch updated")

	return s.Get(ctx, id)
}

// Get returns a batch with its per-status coupon counts.
func (s *BatchService) Get(ctx context.Context, id int64) (*model.BatchResponse, error) {
	bc, err := s.batches.GetContext(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	if bc == nil {
		return nil, ErrBatchNotFound
	}
	resp := toBatchResponse(bc)
	return &resp, nil
}

// List returns every batch.
func (s *BatchService) List(ctx context.Context) ([]model.BatchResponse, error) {
	list, err := s.batches.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return toBatchResponses(list), nil
}

// ListByCampaign returns the batches of a campaign.
// Returns ErrCampaignNotFound if the campaign doesn't exist.
func (s *BatchService) ListByCampaign(ctx context.Context, campaignID int64) ([]model.BatchResponse, error) {
	campaign, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}

	list, err := s.batches.ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return toBatchResponses(list), nil
}

// Deactivate marks a batch inactive and moves its ACTIVE coupons to INACTIVE
// in one transaction. EXPIRED and MAX_USED coupons are left alone.
func (s *BatchService) Deactivate(ctx context.Context, id int64) error {
	return s.setActive(ctx, id, false)
}

// Reactivate marks a batch active and moves its INACTIVE coupons back to ACTIVE.
func (s *BatchService) Reactivate(ctx context.Context, id int64) error {
	return s.setActive(ctx, id, true)
}

func (s *BatchService) setActive(ctx context.Context, id int64, active bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

	if err := s.batches.SetActive(ctx, tx, id, active); err != nil {
		if errors.Is(err, ErrBatchNotFound) {
			return ErrBatchNotFound
		}
		return fmt.Errorf("set batch active: %w", err)
	}

	from, to := model.CouponStatusActive, model.CouponStatusInactive
	if active {
		from, to = to, from
	}
	n, err := s.coupons.SetStatusByBatch(ctx, tx, id, from, to, time.Now())
	if err != nil {
		return fmt.Errorf("update coupon status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	log.Info().
		Int64("batch_id", id).
		Bool("active", active).
		Int64("coupons_updated", n).
		Msg("batch status changed")
	return nil
}

// generate runs the orchestrator while holding the batch's generation lock.
// prepare runs under the lock and returns the prefix to generate with.
// The lock is renewed by the locker until it is released, so a long run
// keeps it past the configured TTL.
func (s *BatchService) generate(ctx context.Context, batchID int64, count int, prepare func(context.Context) (string, error)) (int, error) {
	unlock, ok, err := s.locker.TryLock(ctx, generationLockKey(batchID), s.lockTTL)
	if err != nil {
		return 0, fmt.Errorf("acquire generation lock: %w", err)
	}
	if !ok {
		return 0, ErrGenerationInProgress
	}
	defer func() {
		if err := unlock(context.Background()); err != nil {
			log.Warn().Err(err).Int64("batch_id", batchID).Msg("failed to release generation lock")
		}
	}()

	prefix, err := prepare(ctx)
	if err != nil {
		return 0, err
	}

	generated, err := s.generator.Generate(ctx, GenerationTarget{BatchID: batchID, Prefix: prefix}, count)
	if err != nil {
		if errors.Is(err, ErrInvalidPrefix) {
			return 0, err
		}
		log.Error().
			Err(err).
			Int64("batch_id", batchID).
			Int("generated", generated).
			Int("requested", count).
			Msg("coupon generation aborted")
		return generated, &GenerationError{BatchID: batchID, Generated: generated, Err: err}
	}
	return generated, nil
}

func generationLockKey(batchID int64) string {
	return "generation:batch:" + strconv.FormatInt(batchID, 10)
}

func toBatchResponses(list []model.BatchContext) []model.BatchResponse {
	out := make([]model.BatchResponse, 0, len(list))
	for i := range list {
		out = append(out, toBatchResponse(&list[i]))
	}
	return out
}

func toBatchResponse(bc *model.BatchContext) model.BatchResponse {
	return model.BatchResponse{
		ID:              bc.ID,
		CampaignID:      bc.CampaignID,
		CampaignName:    bc.CampaignName,
		Prefix:          bc.Prefix,
		CouponCount:     bc.CouponCount,
		PosCode:         bc.EffectivePosCode,
		AtgCode:         bc.EffectiveAtgCode,
		StartDate:       bc.EffectiveStart.Format(model.DateLayout),
		ExpiryDate:      bc.EffectiveExpiry.Format(model.DateLayout),
		MaxUsages:       bc.EffectiveMaxUsages,
		Active:          bc.Active,
		TotalCoupons:    bc.TotalCoupons,
		ActiveCoupons:   bc.ActiveCoupons,
		UsedCoupons:     bc.UsedCoupons,
		ExpiredCoupons:  bc.ExpiredCoupons,
		InactiveCoupons: bc.InactiveCoupons,
		CreatedAt:       bc.CreatedAt,
		UpdatedAt:       bc.UpdatedAt,
	}
}
