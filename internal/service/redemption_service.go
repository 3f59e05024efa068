package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/bulk-coupon-system/internal/codegen"
	"github.com/fairyhunter13/bulk-coupon-system/internal/metrics"
	"github.com/fairyhunter13/bulk-coupon-system/internal/model"
)

// RedemptionStore is the storage the redemption state machine runs against.
type RedemptionStore interface {
	GetDetails(ctx context.Context, code string) (*model.CouponDetails, error)
	ApplyRedemption(ctx context.Context, code string, meta model.RedemptionMetadata, now time.Time) (*model.RedemptionApplied, error)
	MarkExpired(ctx context.Context, code string, now time.Time) (bool, error)
}

var rejectionMessages = map[model.RedemptionReason]string{
	model.ReasonNotFound:         "Coupon not found",
	model.ReasonBatchInactive:    "This coupon batch has been deactivated",
	model.ReasonCampaignInactive: "This campaign has been deactivated",
	model.ReasonInactive:         "Coupon is inactive",
	model.ReasonExpired:          "Coupon has expired",
	model.ReasonMaxUsed:          "Coupon has reached maximum usage limit",
	model.ReasonNotYetValid:      "Coupon is not yet valid",
}

// RedemptionService validates and applies coupon redemptions.
type RedemptionService struct {
	store RedemptionStore
	loc   *time.Location
	now   func() time.Time
}

// NewRedemptionService creates a RedemptionService. Validity dates are
// compared against the current date in loc.
func NewRedemptionService(store RedemptionStore, loc *time.Location) *RedemptionService {
	return NewRedemptionServiceWithClock(store, loc, time.Now)
}

// NewRedemptionServiceWithClock creates a RedemptionService with a custom clock.
// Primarily used for testing.
func NewRedemptionServiceWithClock(store RedemptionStore, loc *time.Location, now func() time.Time) *RedemptionService {
	if loc == nil {
		loc = time.UTC
	}
	return &RedemptionService{store: store, loc: loc, now: now}
}

// Redeem runs one redemption attempt for code.
//
// Business rejections are returned as a non-nil result with Success=false
// and a nil error. The error is reserved for malformed input (ErrInvalidCode)
// and storage failures.
func (s *RedemptionService) Redeem(ctx context.Context, code string, meta model.RedemptionMetadata) (*model.RedemptionResult, error) {
	started := time.Now()
	res, err := s.redeem(ctx, code, meta)

	result := "error"
	switch {
	case res != nil:
		result = string(res.Reason)
	case errors.Is(err, ErrInvalidCode):
		result = "invalid_code"
	}
	metrics.RecordRedemption(result, time.Since(started).Seconds())
	return res, err
}

func (s *RedemptionService) redeem(ctx context.Context, code string, meta model.RedemptionMetadata) (*model.RedemptionResult, error) {
	code = codegen.Normalize(code)
	if err := codegen.ValidateCode(code); err != nil {
		return nil, ErrInvalidCode
	}

	details, err := s.store.GetDetails(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get coupon: %w", err)
	}

	now := s.now()
	today := dateOf(now, s.loc)

	reason, expireNow := evaluate(details, today)
	if expireNow {
		changed, err := s.store.MarkExpired(ctx, code, now)
		if err != nil {
			return nil, fmt.Errorf("mark expired: %w", err)
		}
		if changed {
			metrics.RecordExpired(1)
		}
	}
	if reason != "" {
		log.Debug().Str("code", code).Str("reason", string(reason)).Msg("redemption rejected")
		return reject(code, reason, details), nil
	}

	applied, err := s.store.ApplyRedemption(ctx, code, meta, now)
	if err != nil {
		return nil, fmt.Errorf("apply redemption: %w", err)
	}
	if applied == nil {
		// A concurrent writer changed the coupon between read and update.
		// Re-read to report why; if nothing else explains it the cap was hit.
		details, err = s.store.GetDetails(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("get coupon: %w", err)
		}
		reason, _ = evaluate(details, today)
		if reason == "" {
			reason = model.ReasonMaxUsed
		}
		log.Debug().Str("code", code).Str("reason", string(reason)).Msg("redemption lost race")
		return reject(code, reason, details), nil
	}

	remaining := applied.MaxUsages - applied.UsageCount
	log.Info().
		Str("code", code).
		Int("usage_count", applied.UsageCount).
		Int("max_usages", applied.MaxUsages).
		Str("status", string(applied.Status)).
		Msg("coupon redeemed")

	return &model.RedemptionResult{
		Success:    true,
		Reason:     model.ReasonRedeemed,
		Message:    "Coupon redeemed successfully",
		Code:       code,
		UsageCount: &applied.UsageCount,
		MaxUsages:  &applied.MaxUsages,
		Remaining:  &remaining,
		Metadata:   meta,
		RedeemedAt: &now,
	}, nil
}

// evaluate applies the rejection rules in order and returns the first that
// matches, or "" when the coupon may be redeemed. expireNow is set when the
// coupon is still ACTIVE but its window has closed.
func evaluate(d *model.CouponDetails, today time.Time) (reason model.RedemptionReason, expireNow bool) {
	switch {
	case d == nil:
		return model.ReasonNotFound, false
	case !d.BatchActive:
		return model.ReasonBatchInactive, false
	case !d.CampaignActive:
		return model.ReasonCampaignInactive, false
	case d.Status == model.CouponStatusInactive:
		return model.ReasonInactive, false
	case d.Status == model.CouponStatusExpired:
		return model.ReasonExpired, false
	case d.Status == model.CouponStatusMaxUsed || d.UsageCount >= d.MaxUsages:
		return model.ReasonMaxUsed, false
	case today.Before(d.StartDate):
		return model.ReasonNotYetValid, false
	case today.After(d.ExpiryDate):
		return model.ReasonExpired, true
	}
	return "", false
}

func reject(code string, reason model.RedemptionReason, d *model.CouponDetails) *model.RedemptionResult {
	res := &model.RedemptionResult{
		Reason:  reason,
		Message: rejectionMessages[reason],
		Code:    code,
	}
	switch reason {
	case model.ReasonMaxUsed:
		usage, maxUsages, remaining := d.UsageCount, d.MaxUsages, 0
		res.UsageCount = &usage
		res.MaxUsages = &maxUsages
		res.Remaining = &remaining
	case model.ReasonNotYetValid:
		start := d.StartDate
		res.ValidFrom = &start
		res.Message += ". Valid from: " + start.Format(model.DateLayout)
	}
	return res
}

// dateOf returns midnight UTC of t's calendar date in loc, the same shape
// pgx produces when scanning a DATE column.
func dateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
