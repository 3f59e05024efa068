package service

import (
	"context"
	"fmt"

	"github.com/fairyhunter13/bulk-coupon-system/internal/codegen"
	"github.com/fairyhunter13/bulk-coupon-system/internal/model"
)

// CouponDetailsReader loads a coupon resolved against its batch and campaign.
type CouponDetailsReader interface {
	GetDetails(ctx context.Context, code string) (*model.CouponDetails, error)
}

// CouponService answers read-only coupon queries.
type CouponService struct {
	coupons CouponDetailsReader
}

// NewCouponService creates a new CouponService.
func NewCouponService(coupons CouponDetailsReader) *CouponService {
	return &CouponService{coupons: coupons}
}

// Lookup returns a coupon's current state without changing it.
// Returns ErrInvalidCode for a malformed code and ErrCouponNotFound if it doesn't exist.
func (s *CouponService) Lookup(ctx context.Context, code string) (*model.CouponLookupResponse, error) {
	code = codegen.Normalize(code)
	if err := codegen.ValidateCode(code); err != nil {
		return nil, ErrInvalidCode
	}

	d, err := s.coupons.GetDetails(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	if d == nil {
		return nil, ErrCouponNotFound
	}

	return &model.CouponLookupResponse{
		CouponCode:   d.Code,
		Status:       d.Status,
		UsageCount:   d.UsageCount,
		MaxUsages:    d.MaxUsages,
		CampaignName: d.CampaignName,
		PosCode:      d.PosCode,
		AtgCode:      d.AtgCode,
		StartDate:    d.StartDate.Format(model.DateLayout),
		ExpiryDate:   d.ExpiryDate.Format(model.DateLayout),
	}, nil
}
