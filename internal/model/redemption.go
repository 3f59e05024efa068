package model

import "time"

// RedemptionReason is the machine-readable outcome of a redemption attempt.
type RedemptionReason string

const (
	ReasonRedeemed         RedemptionReason = "redeemed"
	ReasonNotFound         RedemptionReason = "not_found"
	ReasonBatchInactive    RedemptionReason = "batch_inactive"
	ReasonCampaignInactive RedemptionReason = "campaign_inactive"
	ReasonInactive         RedemptionReason = "inactive"
	ReasonExpired          RedemptionReason = "expired"
	ReasonMaxUsed          RedemptionReason = "max_used"
	ReasonNotYetValid      RedemptionReason = "not_yet_valid"
)

// RedemptionMetadata is optional caller context stored on a successful redemption.
type RedemptionMetadata struct {
	TransactionNumber *string
	LoyaltyID         *string
	Source            *string
}

// RedemptionResult is the outcome of one redemption call.
// UsageCount, MaxUsages and Remaining are set on success and on max_used.
type RedemptionResult struct {
	Success    bool
	Reason     RedemptionReason
	Message    string
	Code       string
	UsageCount *int
	MaxUsages  *int
	Remaining  *int
	ValidFrom  *time.Time
	Metadata   RedemptionMetadata
	RedeemedAt *time.Time
}

// RedemptionApplied is what storage reports back after a successful
// conditional usage increment.
type RedemptionApplied struct {
	UsageCount int
	MaxUsages  int
	Status     CouponStatus
}

// RedeemRequest is the DTO for POST /api/public/redeem.
type RedeemRequest struct {
	Code              string  `json:"code" validate:"required,couponcode"`
	TransactionNumber *string `json:"transaction_number" validate:"omitempty,max=100"`
	LoyaltyID         *string `json:"loyalty_id" validate:"omitempty,max=100"`
	Source            *string `json:"source" validate:"omitempty,max=50"`
}

// RedeemResponse is the API response DTO for redemption endpoints.
type RedeemResponse struct {
	Success           bool             `json:"success"`
	Reason            RedemptionReason `json:"reason"`
	Message           string           `json:"message"`
	Code              string           `json:"code"`
	UsageCount        *int             `json:"usage_count,omitempty"`
	MaxUsages         *int             `json:"max_usages,omitempty"`
	RemainingUsages   *int             `json:"remaining_usages,omitempty"`
	ValidFrom         *string          `json:"valid_from,omitempty"`
	TransactionNumber *string          `json:"transaction_number,omitempty"`
	LoyaltyID         *string          `json:"loyalty_id,omitempty"`
	Source            *string          `json:"source,omitempty"`
	RedeemedAt        *time.Time       `json:"redeemed_at,omitempty"`
}
