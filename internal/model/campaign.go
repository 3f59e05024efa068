package model

import "time"

// Campaign is the top-level promotion. Its validity window, usage cap and
// prefix are the defaults every batch under it inherits.
type Campaign struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Prefix      string    `json:"prefix"`
	PosCode     *string   `json:"pos_code,omitempty"`
	AtgCode     *string   `json:"atg_code,omitempty"`
	StartDate   time.Time `json:"-"`
	ExpiryDate  time.Time `json:"-"`
	MaxUsages   int       `json:"max_usages"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CampaignResponse is the API response DTO for campaign endpoints.
type CampaignResponse struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Prefix       string    `json:"prefix"`
	UserPrefix   string    `json:"user_prefix"`
	PosCode      *string   `json:"pos_code,omitempty"`
	AtgCode      *string   `json:"atg_code,omitempty"`
	StartDate    string    `json:"start_date"`
	ExpiryDate   string    `json:"expiry_date"`
	MaxUsages    int       `json:"max_usages"`
	Active       bool      `json:"active"`
	BatchCount   int       `json:"batch_count"`
	TotalCoupons int64     `json:"total_coupons"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CampaignSummary is a campaign with aggregate counts, as listed by the repository.
type CampaignSummary struct {
	Campaign
	BatchCount   int
	TotalCoupons int64
}

// CreateCampaignRequest is the DTO for creating a campaign.
type CreateCampaignRequest struct {
	Name        string  `json:"name" validate:"required,notblank,max=255"`
	Description string  `json:"description" validate:"max=2000"`
	UserPrefix  string  `json:"user_prefix" validate:"required,userprefix"`
	PosCode     *string `json:"pos_code" validate:"omitempty,max=50"`
	AtgCode     *string `json:"atg_code" validate:"omitempty,max=50"`
	StartDate   string  `json:"start_date" validate:"required,dateonly"`
	ExpiryDate  string  `json:"expiry_date" validate:"required,dateonly"`
	MaxUsages   *int    `json:"max_usages" validate:"required,gte=1"`
}

// UpdateCampaignRequest is the DTO for editing a campaign. Every field is
// replaced, so it carries the same fields and rules as CreateCampaignRequest.
type UpdateCampaignRequest CreateCampaignRequest
