package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/bulk-coupon-system/internal/metrics"
)

// CouponExpirer bulk-expires coupons whose validity window has closed.
type CouponExpirer interface {
	ExpireBefore(ctx context.Context, today, now time.Time) (int64, error)
}

// ExpiryService moves ACTIVE coupons past their effective expiry date to EXPIRED.
type ExpiryService struct {
	coupons CouponExpirer
	loc     *time.Location
	now     func() time.Time
}

// NewExpiryService creates an ExpiryService that decides "today" in loc.
func NewExpiryService(coupons CouponExpirer, loc *time.Location) *ExpiryService {
	if loc == nil {
		loc = time.UTC
	}
	return &ExpiryService{coupons: coupons, loc: loc, now: time.Now}
}

// Sweep expires every overdue ACTIVE coupon and returns how many changed.
func (s *ExpiryService) Sweep(ctx context.Context) (int64, error) {
	now := s.now()
	today := dateOf(now, s.loc)

	n, err := s.coupons.ExpireBefore(ctx, today, now)
	if err != nil {
		return 0, fmt.Errorf("expire coupons: %w", err)
	}
	metrics.RecordExpired(n)
	log.Info().
		Str("today", today.Format("2006-01-02")).
		Int64("expired", n).
		Msg("expiry sweep finished")
	return n, nil
}
