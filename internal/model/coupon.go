package model

import "time"

// CouponStatus is the lifecycle state of a single coupon.
type CouponStatus string

const (
	CouponStatusActive   CouponStatus = "ACTIVE"
	CouponStatusInactive CouponStatus = "INACTIVE"
	CouponStatusExpired  CouponStatus = "EXPIRED"
	CouponStatusMaxUsed  CouponStatus = "MAX_USED"
)

// Terminal reports whether no redemption can ever change the coupon again.
func (s CouponStatus) Terminal() bool {
	return s == CouponStatusExpired || s == CouponStatusMaxUsed
}

// Coupon represents one issued code.
type Coupon struct {
	ID                int64
	BatchID           int64
	Code              string
	Status            CouponStatus
	UsageCount        int
	TransactionNumber *string
	LoyaltyID         *string
	Source            *string
	RedeemedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CouponDetails is a coupon joined with its batch and campaign, with the
// validity window and usage cap already resolved. It is read live and never
// stored.
type CouponDetails struct {
	Coupon
	BatchActive    bool
	CampaignID     int64
	CampaignName   string
	CampaignActive bool
	StartDate      time.Time
	ExpiryDate     time.Time
	MaxUsages      int
	PosCode        *string
	AtgCode        *string
}

// CouponLookupResponse is the API response DTO for GET /api/public/coupon/:code.
type CouponLookupResponse struct {
	CouponCode   string       `json:"coupon_code"`
	Status       CouponStatus `json:"status"`
	UsageCount   int          `json:"usage_count"`
	MaxUsages    int          `json:"max_usages"`
	CampaignName string       `json:"campaign_name"`
	PosCode      *string      `json:"pos_code,omitempty"`
	AtgCode      *string      `json:"atg_code,omitempty"`
	StartDate    string       `json:"start_date"`
	ExpiryDate   string       `json:"expiry_date"`
}
