package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/bulk-coupon-system/internal/codegen"
	"github.com/fairyhunter13/bulk-coupon-system/internal/model"
)

// CampaignRepositoryInterface defines the interface for campaign data access.
type CampaignRepositoryInterface interface {
	Insert(ctx context.Context, c *model.Campaign) error
	GetByID(ctx context.Context, id int64) (*model.CampaignSummary, error)
	List(ctx context.Context) ([]model.CampaignSummary, error)
	ListActive(ctx context.Context) ([]model.CampaignSummary, error)
	Update(ctx context.Context, c *model.Campaign) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// CampaignService provides business logic for campaign operations.
type CampaignService struct {
	campaigns CampaignRepositoryInterface
}

// NewCampaignService creates a new CampaignService.
func NewCampaignService(campaigns CampaignRepositoryInterface) *CampaignService {
	return &CampaignService{campaigns: campaigns}
}

// Create validates and stores a new campaign.
// Returns ErrCampaignExists if the name is taken, ErrInvalidPrefix for a bad
// user prefix and ErrInvalidDateRange when expiry precedes start.
func (s *CampaignService) Create(ctx context.Context, req *model.CreateCampaignRequest) (*model.CampaignResponse, error) {
	c, err := newCampaign(req)
	if err != nil {
		return nil, err
	}
	if err := s.campaigns.Insert(ctx, c); err != nil {
		return nil, err
	}

	resp := toCampaignResponse(&model.CampaignSummary{Campaign: *c})
	return &resp, nil
}

// Update replaces every editable field of a campaign. Batches and coupons
// pick the new values up at their next read. The prefix is fixed once the
// campaign has batches, since their coupons already carry it.
func (s *CampaignService) Update(ctx context.Context, id int64, req *model.UpdateCampaignRequest) (*model.CampaignResponse, error) {
	c, err := newCampaign((*model.CreateCampaignRequest)(req))
	if err != nil {
		return nil, err
	}

	current, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	if current == nil {
		return nil, ErrCampaignNotFound
	}
	if c.Prefix != current.Prefix && current.BatchCount > 0 {
		return nil, ErrPrefixLocked
	}

	c.ID = id
	if err := s.campaigns.Update(ctx, c); err != nil {
		return nil, err
	}
	log.Info().
		Int64("campaign_id", id).
		Str("prefix", c.Prefix).
		Msg("campaign updated")

	resp := toCampaignResponse(&model.CampaignSummary{
		Campaign:     *c,
		BatchCount:   current.BatchCount,
		TotalCoupons: current.TotalCoupons,
	})
	return &resp, nil
}

func newCampaign(req *model.CreateCampaignRequest) (*model.Campaign, error) {
	// Defense-in-depth: check for nil pointer even though handler validates
	if req == nil || req.MaxUsages == nil {
		return nil, ErrInvalidRequest
	}
	if *req.MaxUsages < 1 {
		return nil, fmt.Errorf("%w: max usages must be at least 1", ErrInvalidRequest)
	}

	prefix, err := codegen.BuildPrefix(req.UserPrefix)
	if err != nil {
		return nil, fmt.Errorf("%w: user prefix must be %d letters or digits", ErrInvalidPrefix, codegen.UserPrefixLength)
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		return nil, err
	}
	expiry, err := parseDate(req.ExpiryDate)
	if err != nil {
		return nil, err
	}
	if expiry.Before(start) {
		return nil, ErrInvalidDateRange
	}

	return &model.Campaign{
		Name:        req.Name,
		Description: req.Description,
		Prefix:      prefix,
		PosCode:     req.PosCode,
		AtgCode:     req.AtgCode,
		StartDate:   start,
		ExpiryDate:  expiry,
		MaxUsages:   *req.MaxUsages,
	}, nil
}

// Get returns a campaign with its batch and coupon totals.
// Returns ErrCampaignNotFound if the campaign doesn't exist.
func (s *CampaignService) Get(ctx context.Context, id int64) (*model.CampaignResponse, error) {
	c, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	if c == nil {
		return nil, ErrCampaignNotFound
	}
	resp := toCampaignResponse(c)
	return &resp, nil
}

// List returns all campaigns, newest first.
func (s *CampaignService) List(ctx context.Context) ([]model.CampaignResponse, error) {
	list, err := s.campaigns.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	return toCampaignResponses(list), nil
}

// ListActive returns the campaigns that accept new batches, newest first.
func (s *CampaignService) ListActive(ctx context.Context) ([]model.CampaignResponse, error) {
	list, err := s.campaigns.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active campaigns: %w", err)
	}
	return toCampaignResponses(list), nil
}

// Deactivate soft-deletes a campaign. Its coupons keep their status and are
// rejected at redemption time while the campaign stays inactive.
func (s *CampaignService) Deactivate(ctx context.Context, id int64) error {
	return s.campaigns.SetActive(ctx, id, false)
}

// Reactivate re-enables a deactivated campaign.
func (s *CampaignService) Reactivate(ctx context.Context, id int64) error {
	return s.campaigns.SetActive(ctx, id, true)
}

func toCampaignResponses(list []model.CampaignSummary) []model.CampaignResponse {
	out := make([]model.CampaignResponse, 0, len(list))
	for i := range list {
		out = append(out, toCampaignResponse(&list[i]))
	}
	return out
}

func toCampaignResponse(c *model.CampaignSummary) model.CampaignResponse {
	return model.CampaignResponse{
		ID:           c.ID,
		Name:         c.Name,
		Description:  c.Description,
		Prefix:       c.Prefix,
		UserPrefix:   codegen.UserPrefix(c.Prefix),
		PosCode:      c.PosCode,
		AtgCode:      c.AtgCode,
		StartDate:    c.StartDate.Format(model.DateLayout),
		ExpiryDate:   c.ExpiryDate.Format(model.DateLayout),
		MaxUsages:    c.MaxUsages,
		Active:       c.Active,
		BatchCount:   c.BatchCount,
		TotalCoupons: c.TotalCoupons,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidRequest, s)
	}
	return t, nil
}
