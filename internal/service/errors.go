package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is returned when request data is invalid or incomplete
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidCode is returned when a submitted coupon code has the wrong shape
	ErrInvalidCode = errors.New("invalid coupon code")

	// ErrInvalidPrefix is returned when a campaign prefix is malformed
	ErrInvalidPrefix = errors.New("invalid prefix")

	// ErrInvalidDateRange is returned when a validity window ends before it starts
	ErrInvalidDateRange = errors.New("expiry date must be on or after start date")

	// ErrInvalidCouponCount is returned when a batch asks for a count outside 1..3,000,000
	ErrInvalidCouponCount = errors.New("coupon count out of range")

	// ErrCampaignExists is returned when attempting to create a campaign whose name is taken
	ErrCampaignExists = errors.New("campaign already exists")

	// ErrPrefixLocked is returned when changing the prefix of a campaign that already has batches
	ErrPrefixLocked = errors.New("prefix cannot change once the campaign has batches")

	// ErrCampaignNotFound is returned when a campaign cannot be found
	ErrCampaignNotFound = errors.New("campaign not found")

	// ErrCampaignInactive is returned when creating a batch under a deactivated campaign
	ErrCampaignInactive = errors.New("campaign is inactive")

	// ErrBatchNotFound is returned when a batch cannot be found
	ErrBatchNotFound = errors.New("batch not found")

	// ErrBatchInactive is returned when topping up a deactivated batch
	ErrBatchInactive = errors.New("batch is inactive")

	// ErrCouponNotFound is returned when a coupon lookup finds nothing
	ErrCouponNotFound = errors.New("coupon not found")

	// ErrGenerationInProgress is returned when another run already holds the batch lock
	ErrGenerationInProgress = errors.New("coupon generation already running for batch")

	// ErrGenerationFailed wraps storage faults that abort a generation run
	ErrGenerationFailed = errors.New("coupon generation failed")
)

// GenerationError reports a generation run that stopped on a fault after
// the batch row was stored. Coupons inserted before the fault stay live, so
// the caller gets the batch id and count needed to top the batch up.
type GenerationError struct {
	BatchID   int64
	Generated int
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("batch %d: %d coupons generated before failure: %v", e.BatchID, e.Generated, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
