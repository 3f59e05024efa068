package handler

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/bulk-coupon-system/internal/model"
)

// BatchServiceInterface defines the interface for batch business logic.
type BatchServiceInterface interface {
	Create(ctx context.Context, req *model.CreateBatchRequest) (*model.BatchResponse, error)
	TopUp(ctx context.Context, batchID int64, count int) (*model.TopUpResponse, error)
	Get(ctx context.Context, id int64) (*model.BatchResponse, error)
	List(ctx context.Context) ([]model.BatchResponse, error)
	Update(ctx context.Context, id int64, req *model.UpdateBatchRequest) (*model.BatchResponse, error)
	ListByCampaign(ctx context.Context, campaignID int64) ([]model.BatchResponse, error)
	Deactivate(ctx context.Context, id int64) error
	Reactivate(ctx context.Context, id int64) error
}

// ExportServiceInterface streams coupons as CSV.
type ExportServiceInterface interface {
	EnsureBatch(ctx context.Context, batchID int64) error
	WriteBatchCSV(ctx context.Context, batchID int64, w io.Writer) (int64, error)
	WriteAllCSV(ctx context.Context, w io.Writer) (int64, error)
}

// BatchHandler handles HTTP requests for batch operations.
type BatchHandler struct {
	service   BatchServiceInterface
	exports   ExportServiceInterface
	validator *validator.Validate
}

// NewBatchHandler creates a new BatchHandler.
func NewBatchHandler(svc BatchServiceInterface, exports ExportServiceInterface, v *validator.Validate) *BatchHandler {
	return &BatchHandler{service: svc, exports: exports, validator: v}
}

// Create handles POST /api/batches. Coupons are generated before the
// response is written, so large batches hold the request open.
func (h *BatchHandler) Create(c *fiber.Ctx) error {
	var req model.CreateBatchRequest

	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, formatValidationError(err))
	}

	resp, err := h.service.Create(c.Context(), &req)
	if err != nil {
		return respondError(c, err, "failed to create batch")
	}

	event := logRequest(c, log.Info()).
		Int64("batch_id", resp.ID).
		Int64("campaign_id", resp.CampaignID).
		Int("requested", resp.CouponCount)
	if resp.GeneratedCount != nil {
		event = event.Int("generated", *resp.GeneratedCount)
	}
	event.Msg("batch created")

	return c.Status(fiber.StatusCreated).JSON(resp)
}

// TopUp handles POST /api/batches/:id/coupons.
func (h *BatchHandler) TopUp(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid batch id")
	}

	var req model.TopUpRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, formatValidationError(err))
	}

	resp, err := h.service.TopUp(c.Context(), id, *req.Count)
	if err != nil {
		return respondError(c, err, "failed to top up batch")
	}

	logRequest(c, log.Info()).
		Int64("batch_id", id).
		Int("requested", resp.Requested).
		Int("generated", resp.Generated).
		Msg("batch topped up")

	return c.JSON(resp)
}

// Get handles GET /api/batches/:id.
func (h *BatchHandler) Get(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid batch id")
	}

	resp, err := h.service.Get(c.Context(), id)
	if err != nil {
		return respondError(c, err, "failed to get batch")
	}
	return c.JSON(resp)
}

// List handles GET /api/batches.
func (h *BatchHandler) List(c *fiber.Ctx) error {
	batches, err := h.service.List(c.Context())
	if err != nil {
		return respondError(c, err, "failed to list batches")
	}
	return c.JSON(batches)
}

// Update handles PUT /api/batches/:id.
func (h *BatchHandler) Update(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid batch id")
	}

	var req model.UpdateBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, formatValidationError(err))
	}

	resp, err := h.service.Update(c.Context(), id, &req)
	if err != nil {
		return respondError(c, err, "failed to update batch")
	}

	logRequest(c, log.Info()).
		Int64("batch_id", id).
		Msg("batch edited")

	return c.JSON(resp)
}

// ListByCampaign handles GET /api/campaigns/:id/batches.
func (h *BatchHandler) ListByCampaign(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid campaign id")
	}

	batches, err := h.service.ListByCampaign(c.Context(), id)
	if err != nil {
		return respondError(c, err, "failed to list batches")
	}
	return c.JSON(batches)
}

// Deactivate handles DELETE /api/batches/:id.
func (h *BatchHandler) Deactivate(c *fiber.Ctx) error {
	return h.setActive(c, false)
}

// Reactivate handles POST /api/batches/:id/reactivate.
func (h *BatchHandler) Reactivate(c *fiber.Ctx) error {
	return h.setActive(c, true)
}

func (h *BatchHandler) setActive(c *fiber.Ctx, active bool) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid batch id")
	}

	var err error
	if active {
		err = h.service.Reactivate(c.Context(), id)
	} else {
		err = h.service.Deactivate(c.Context(), id)
	}
	if err != nil {
		return respondError(c, err, "failed to update batch")
	}

	logRequest(c, log.Info()).
		Int64("batch_id", id).
		Bool("active", active).
		Msg("batch updated")

	return c.Status(fiber.StatusNoContent).Send(nil)
}

// Export handles GET /api/batches/:id/export. The CSV is streamed row by
// row after the headers are sent, so a failure mid-stream truncates the
// body instead of changing the status.
func (h *BatchHandler) Export(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid batch id")
	}

	if err := h.exports.EnsureBatch(c.Context(), id); err != nil {
		return respondError(c, err, "failed to export batch")
	}

	streamCSV(c, fmt.Sprintf("batch-%d-coupons.csv", id), func(w io.Writer) (int64, error) {
		return h.exports.WriteBatchCSV(context.Background(), id, w)
	})
	return nil
}

// ExportAll handles GET /api/coupons/export.
func (h *BatchHandler) ExportAll(c *fiber.Ctx) error {
	streamCSV(c, "all-coupons.csv", func(w io.Writer) (int64, error) {
		return h.exports.WriteAllCSV(context.Background(), w)
	})
	return nil
}

// streamCSV sets the download headers and streams write's output as the
// body. write runs after the handler returns and must not use the request
// context, which is recycled by then.
func streamCSV(c *fiber.Ctx, filename string, write func(io.Writer) (int64, error)) {
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))

	requestID := c.GetRespHeader(fiber.HeaderXRequestID)
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		rows, err := write(w)
		if err == nil {
			err = w.Flush()
		}
		if err != nil {
			log.Error().
				Err(err).
				Str("request_id", requestID).
				Str("file", filename).
				Int64("rows", rows).
				Msg("csv export aborted")
			return
		}
		log.Info().
			Str("request_id", requestID).
			Str("file", filename).
			Int64("rows", rows).
			Msg("csv exported")
	})
}
