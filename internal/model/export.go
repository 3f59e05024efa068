package model

import "time"

// CouponExportRow is one line of a batch CSV export.
type CouponExportRow struct {
	Code              string
	Status            CouponStatus
	UsageCount        int
	MaxUsages         int
	CampaignName      string
	BatchID           int64
	StartDate         time.Time
	ExpiryDate        time.Time
	PosCode           *string
	AtgCode           *string
	TransactionNumber *string
	LoyaltyID         *string
	Source            *string
	RedeemedAt        *time.Time
	CreatedAt         time.Time
}

// DateLayout is the wire format for validity dates.
const DateLayout = "2006-01-02"
