package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// PaymentStatusPending indicates the payout is recorded and waiting for transfer.
	PaymentStatusPending = "pending"
)

// PaymentSettlement records the payout owed for an approved submission. One row per submission.
type PaymentSettlement struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	SubmissionID string          `gorm:"size:64;not null;uniqueIndex" json:"submission_id"`
	GigID        string          `gorm:"size:64;not null;index" json:"gig_id"`
	CreatorID    string          `gorm:"size:64;not null;index" json:"creator_id"`
	BrandID      string          `gorm:"size:64;not null;index" json:"brand_id"`
	Gross        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"gross"`
	PlatformFee  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"platform_fee"`
	Net          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"net"`
	Currency     string          `gorm:"size:3;not null" json:"currency"`
	Status       string          `gorm:"size:32;not null" json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
