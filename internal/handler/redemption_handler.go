package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/bulk-coupon-system/internal/model"
	"github.com/fairyhunter13/bulk-coupon-system/internal/service"
)

// RedemptionServiceInterface defines the interface for redemption logic.
type RedemptionServiceInterface interface {
	Redeem(ctx context.Context, code string, meta model.RedemptionMetadata) (*model.RedemptionResult, error)
}

// CouponLookupInterface reads a coupon's state without redeeming it.
type CouponLookupInterface interface {
	Lookup(ctx context.Context, code string) (*model.CouponLookupResponse, error)
}

// RedemptionHandler serves the public coupon endpoints.
type RedemptionHandler struct {
	service   RedemptionServiceInterface
	lookup    CouponLookupInterface
	validator *validator.Validate
}

// NewRedemptionHandler creates a new RedemptionHandler.
func NewRedemptionHandler(svc RedemptionServiceInterface, lookup CouponLookupInterface, v *validator.Validate) *RedemptionHandler {
	return &RedemptionHandler{service: svc, lookup: lookup, validator: v}
}

// Redeem handles POST /api/public/redeem.
//
// A rejected redemption is still a 200: the body carries success=false and
// the reason. Only malformed input and internal failures use error statuses.
func (h *RedemptionHandler) Redeem(c *fiber.Ctx) error {
	var req model.RedeemRequest

	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, formatValidationError(err))
	}

	meta := model.RedemptionMetadata{
		TransactionNumber: req.TransactionNumber,
		LoyaltyID:         req.LoyaltyID,
		Source:            req.Source,
	}
	return h.redeem(c, req.Code, meta)
}

// RedeemByCode handles GET /api/public/redeem/:code, for scanners that can
// only issue a GET.
func (h *RedemptionHandler) RedeemByCode(c *fiber.Ctx) error {
	return h.redeem(c, c.Params("code"), model.RedemptionMetadata{})
}

func (h *RedemptionHandler) redeem(c *fiber.Ctx, code string, meta model.RedemptionMetadata) error {
	res, err := h.service.Redeem(c.Context(), code, meta)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCode) {
			return badRequest(c, "invalid request: code must be a 14-character coupon code")
		}
		return respondError(c, err, "failed to redeem coupon")
	}

	if !res.Success {
		logRequest(c, log.Warn()).
			Str("code", res.Code).
			Str("reason", string(res.Reason)).
			Msg("redemption rejected")
	}
	return c.JSON(toRedeemResponse(res))
}

// Lookup handles GET /api/public/coupon/:code.
func (h *RedemptionHandler) Lookup(c *fiber.Ctx) error {
	resp, err := h.lookup.Lookup(c.Context(), c.Params("code"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCode) {
			return badRequest(c, "invalid request: code must be a 14-character coupon code")
		}
		return respondError(c, err, "failed to look up coupon")
	}
	return c.JSON(resp)
}

func toRedeemResponse(res *model.RedemptionResult) model.RedeemResponse {
	resp := model.RedeemResponse{
		Success:         res.Success,
		Reason:          res.Reason,
		Message:         res.Message,
		Code:            res.Code,
		UsageCount:      res.UsageCount,
		MaxUsages:       res.MaxUsages,
		RemainingUsages: res.Remaining,
		RedeemedAt:      res.RedeemedAt,
	}
	if res.ValidFrom != nil {
		s := res.ValidFrom.Format(model.DateLayout)
		resp.ValidFrom = &s
	}
	if res.Success {
		resp.TransactionNumber = res.Metadata.TransactionNumber
		resp.LoyaltyID = res.Metadata.LoyaltyID
		resp.Source = res.Metadata.Source
	}
	return resp
}
