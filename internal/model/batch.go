package model

import "time"

// MaxBatchCouponCount caps how many coupons a single batch may request.
const MaxBatchCouponCount = 3_000_000

// Batch is a request for N coupons under a campaign. Nil override fields
// fall back to the owning campaign's values.
type Batch struct {
	ID          int64
	CampaignID  int64
	CouponCount int
	PosCode     *string
	AtgCode     *string
	StartDate   *time.Time
	ExpiryDate  *time.Time
	MaxUsages   *int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BatchContext is a batch resolved against its campaign: everything the
// generator and the batch endpoints need without another lookup.
type BatchContext struct {
	Batch
	CampaignName   string
	CampaignActive bool
	Prefix         string
	// Effective values after applying batch overrides.
	EffectiveStart     time.Time
	EffectiveExpiry    time.Time
	EffectiveMaxUsages int
	EffectivePosCode   *string
	EffectiveAtgCode   *string
	ActiveCoupons      int64
	UsedCoupons        int64
	ExpiredCoupons     int64
	InactiveCoupons    int64
	TotalCoupons       int64
}

// BatchResponse is the API response DTO for batch endpoints.
type BatchResponse struct {
	ID              int64     `json:"id"`
	CampaignID      int64     `json:"campaign_id"`
	CampaignName    string    `json:"campaign_name"`
	Prefix          string    `json:"prefix"`
	CouponCount     int       `json:"coupon_count"`
	GeneratedCount  *int      `json:"generated_count,omitempty"`
	PosCode         *string   `json:"pos_code,omitempty"`
	AtgCode         *string   `json:"atg_code,omitempty"`
	StartDate       string    `json:"start_date"`
	ExpiryDate      string    `json:"expiry_date"`
	MaxUsages       int       `json:"max_usages"`
	Active          bool      `json:"active"`
	TotalCoupons    int64     `json:"total_coupons"`
	ActiveCoupons   int64     `json:"active_coupons"`
	UsedCoupons     int64     `json:"used_coupons"`
	ExpiredCoupons  int64     `json:"expired_coupons"`
	InactiveCoupons int64     `json:"inactive_coupons"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CreateBatchRequest is the DTO for creating a batch. Optional fields
// override the campaign defaults for this batch only.
type CreateBatchRequest struct {
	CampaignID  int64   `json:"campaign_id" validate:"required,gte=1"`
	CouponCount *int    `json:"coupon_count" validate:"required,gte=1,lte=3000000"`
	PosCode     *string `json:"pos_code" validate:"omitempty,max=50"`
	AtgCode     *string `json:"atg_code" validate:"omitempty,max=50"`
	StartDate   *string `json:"start_date" validate:"omitempty,dateonly"`
	ExpiryDate  *string `json:"expiry_date" validate:"omitempty,dateonly"`
	MaxUsages   *int    `json:"max_usages" validate:"omitempty,gte=1"`
}

// UpdateBatchRequest is the DTO for editing a batch's overrides. Omitted
// fields keep their current value.
type UpdateBatchRequest struct {
	PosCode    *string `json:"pos_code" validate:"omitempty,max=50"`
	AtgCode    *string `json:"atg_code" validate:"omitempty,max=50"`
	StartDate  *string `json:"start_date" validate:"omitempty,dateonly"`
	ExpiryDate *string `json:"expiry_date" validate:"omitempty,dateonly"`
	MaxUsages  *int    `json:"max_usages" validate:"omitempty,gte=1"`
}

// TopUpRequest is the DTO for generating more coupons into an existing batch.
type TopUpRequest struct {
	Count *int `json:"count" validate:"required,gte=1,lte=3000000"`
}

// TopUpResponse reports how many coupons a top-up run actually produced.
type TopUpResponse struct {
	BatchID   int64 `json:"batch_id"`
	Requested int   `json:"requested"`
	Generated int   `json:"generated"`
}
