package handler

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/bulk-coupon-system/internal/service"
)

// jsonFieldNames maps struct field names to the names clients send.
var jsonFieldNames = map[string]string{
	"Name":              "name",
	"Description":       "description",
	"UserPrefix":        "user_prefix",
	"PosCode":           "pos_code",
	"AtgCode":           "atg_code",
	"StartDate":         "start_date",
	"ExpiryDate":        "expiry_date",
	"MaxUsages":         "max_usages",
	"CampaignID":        "campaign_id",
	"CouponCount":       "coupon_count",
	"Count":             "count",
	"Code":              "code",
	"TransactionNumber": "transaction_number",
	"LoyaltyID":         "loyalty_id",
	"Source":            "source",
}

// formatValidationError converts validator errors to client-facing messages.
// Only the first failing field is reported.
func formatValidationError(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "invalid request"
	}

	fe := ve[0]
	field, ok := jsonFieldNames[fe.Field()]
	if !ok {
		field = fe.Field()
	}

	switch fe.Tag() {
	case "required", "notblank":
		return "invalid request: " + field + " is required"
	case "max":
		return "invalid request: " + field + " exceeds maximum length of " + fe.Param()
	case "gte":
		return "invalid request: " + field + " must be at least " + fe.Param()
	case "lte":
		return "invalid request: " + field + " must be at most " + fe.Param()
	case "userprefix":
		return "invalid request: " + field + " must be 4 letters or digits"
	case "couponcode":
		return "invalid request: " + field + " must be a 14-character coupon code"
	case "dateonly":
		return "invalid request: " + field + " must be a date in YYYY-MM-DD format"
	}
	return "invalid request: " + field + " is invalid"
}

// errorStatus maps service sentinels to HTTP statuses. Errors not listed
// here are treated as internal failures.
var errorStatus = []struct {
	err    error
	status int
}{
	{service.ErrInvalidRequest, fiber.StatusBadRequest},
	{service.ErrInvalidCode, fiber.StatusBadRequest},
	{service.ErrInvalidPrefix, fiber.StatusBadRequest},
	{service.ErrInvalidDateRange, fiber.StatusBadRequest},
	{service.ErrInvalidCouponCount, fiber.StatusBadRequest},
	{service.ErrCampaignNotFound, fiber.StatusNotFound},
	{service.ErrBatchNotFound, fiber.StatusNotFound},
	{service.ErrCouponNotFound, fiber.StatusNotFound},
	{service.ErrCampaignExists, fiber.StatusConflict},
	{service.ErrPrefixLocked, fiber.StatusConflict},
	{service.ErrCampaignInactive, fiber.StatusConflict},
	{service.ErrBatchInactive, fiber.StatusConflict},
	{service.ErrGenerationInProgress, fiber.StatusConflict},
}

// respondError writes the mapped status for known service errors and a
// logged 500 for everything else. msg is the log message for the 500 case.
// A *service.GenerationError is a 500 that still reports the stored batch
// and how many coupons it holds.
func respondError(c *fiber.Ctx, err error, msg string) error {
	var genErr *service.GenerationError
	if errors.As(err, &genErr) {
		logRequest(c, log.Error().Err(err)).
			Int64("batch_id", genErr.BatchID).
			Int("generated", genErr.Generated).
			Msg(msg)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":     service.ErrGenerationFailed.Error(),
			"batch_id":  genErr.BatchID,
			"generated": genErr.Generated,
		})
	}

	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			return c.Status(m.status).JSON(fiber.Map{"error": err.Error()})
		}
	}

	logRequest(c, log.Error().Err(err)).Msg(msg)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// logRequest adds the request identifiers every handler log line carries.
func logRequest(c *fiber.Ctx, e *zerolog.Event) *zerolog.Event {
	return e.
		Str("request_id", c.GetRespHeader(fiber.HeaderXRequestID)).
		Str("method", c.Method()).
		Str("path", c.Path())
}

// paramID parses a positive int64 path parameter.
func paramID(c *fiber.Ctx, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}
