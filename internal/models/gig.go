package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// GigBrief holds the creative direction a brand attaches to a gig.
type GigBrief struct {
	Hooks         []string `json:"hooks"`
	TalkingPoints []string `json:"talkingPoints"`
	Dos           []string `json:"dos"`
	Donts         []string `json:"donts"`
}

// Gig is a brand's paid content request.
type Gig struct {
	ID                   string                       `gorm:"primaryKey;size:64" json:"id"`
	BrandID              string                       `gorm:"size:64;not null;index" json:"brand_id"`
	Title                string                       `gorm:"size:255;not null" json:"title"`
	Description          string                       `gorm:"type:text" json:"description"`
	ProductDescription   string                       `gorm:"type:text" json:"product_description"`
	Category             string                       `gorm:"size:64" json:"category"`
	Brief                datatypes.JSONType[GigBrief] `gorm:"type:json" json:"brief"`
	AIComplianceRequired bool                         `gorm:"not null;default:false" json:"ai_compliance_required"`
	BasePayout           decimal.Decimal              `gorm:"type:numeric(12,2);not null" json:"base_payout"`
	Currency             string                       `gorm:"size:3;not null;default:USD" json:"currency"`
	CreatedAt            time.Time                    `json:"created_at"`
	UpdatedAt            time.Time                    `json:"updated_at"`
}
