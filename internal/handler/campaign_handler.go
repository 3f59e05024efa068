package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/bulk-coupon-system/internal/model"
)

// CampaignServiceInterface defines the interface for campaign business logic.
type CampaignServiceInterface interface {
	Create(ctx context.Context, req *model.CreateCampaignRequest) (*model.CampaignResponse, error)
	Get(ctx context.Context, id int64) (*model.CampaignResponse, error)
	List(ctx context.Context) ([]model.CampaignResponse, error)
	ListActive(ctx context.Context) ([]model.CampaignResponse, error)
	Update(ctx context.Context, id int64, req *model.UpdateCampaignRequest) (*model.CampaignResponse, error)
	Deactivate(ctx context.Context, id int64) error
	Reactivate(ctx context.Context, id int64) error
}

// CampaignHandler handles HTTP requests for campaign operations.
type CampaignHandler struct {
	service   CampaignServiceInterface
	validator *validator.Validate
}

// NewCampaignHandler creates a new CampaignHandler with the given service and validator.
func NewCampaignHandler(svc CampaignServiceInterface, v *validator.Validate) *CampaignHandler {
	return &CampaignHandler{service: svc, validator: v}
}

// Create handles POST /api/campaigns.
func (h *CampaignHandler) Create(c *fiber.Ctx) error {
	var req model.CreateCampaignRequest

	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, formatValidationError(err))
	}

	resp, err := h.service.Create(c.Context(), &req)
	if err != nil {
		return respondError(c, err, "failed to create campaign")
	}

	logRequest(c, log.Info()).
		Int64("campaign_id", resp.ID).
		Str("prefix", resp.Prefix).
		Msg("campaign created")

	return c.Status(fiber.StatusCreated).JSON(resp)
}

// List handles GET /api/campaigns.
func (h *CampaignHandler) List(c *fiber.Ctx) error {
	campaigns, err := h.service.List(c.Context())
	if err != nil {
		return respondError(c, err, "failed to list campaigns")
	}
	return c.JSON(campaigns)
}

// ListActive handles GET /api/campaigns/active.
func (h *CampaignHandler) ListActive(c *fiber.Ctx) error {
	campaigns, err := h.service.ListActive(c.Context())
	if err != nil {
		return respondError(c, err, "failed to list active campaigns")
	}
	return c.JSON(campaigns)
}

// Get handles GET /api/campaigns/:id.
func (h *CampaignHandler) Get(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid campaign id")
	}

	resp, err := h.service.Get(c.Context(), id)
	if err != nil {
		return respondError(c, err, "failed to get campaign")
	}
	return c.JSON(resp)
}

// Update handles PUT /api/campaigns/:id.
func (h *CampaignHandler) Update(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid campaign id")
	}

	var req model.UpdateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, formatValidationError(err))
	}

	resp, err := h.service.Update(c.Context(), id, &req)
	if err != nil {
		return respondError(c, err, "failed to update campaign")
	}

	logRequest(c, log.Info()).
		Int64("campaign_id", id).
		Msg("campaign edited")

	return c.JSON(resp)
}

// Deactivate handles DELETE /api/campaigns/:id. Campaigns are never
// removed; deactivation blocks redemption of every coupon under them.
func (h *CampaignHandler) Deactivate(c *fiber.Ctx) error {
	return h.setActive(c, false)
}

// Reactivate handles POST /api/campaigns/:id/reactivate.
func (h *CampaignHandler) Reactivate(c *fiber.Ctx) error {
	return h.setActive(c, true)
}

func (h *CampaignHandler) setActive(c *fiber.Ctx, active bool) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid campaign id")
	}

	var err error
	if active {
		err = h.service.Reactivate(c.Context(), id)
	} else {
		err = h.service.Deactivate(c.Context(), id)
	}
	if err != nil {
		return respondError(c, err, "failed to update campaign")
	}

	logRequest(c, log.Info()).
		Int64("campaign_id", id).
		Bool("active", active).
		Msg("campaign updated")

	return c.Status(fiber.StatusNoContent).Send(nil)
}
