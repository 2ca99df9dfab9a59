package models

import "time"

const (
	ReputationEventCompletion   = "completion"
	ReputationEventQualityBonus = "quality_bonus"
	ReputationEventFailure      = "failure"
)

// CreatorReputation is the running reputation score of a creator. Score never drops below zero.
type CreatorReputation struct {
	CreatorID     string    `gorm:"primaryKey;size:64" json:"creator_id"`
	Score         int       `gorm:"not null;default:0" json:"score"`
	CompletedGigs int       `gorm:"not null;default:0" json:"completed_gigs"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ReputationEvent is one ledger entry adjusting a creator's reputation.
type ReputationEvent struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatorID    string    `gorm:"size:64;not null;index" json:"creator_id"`
	SubmissionID string    `gorm:"size:64;index" json:"submission_id"`
	Kind         string    `gorm:"size:32;not null" json:"kind"`
	Delta        int       `gorm:"not null" json:"delta"`
	QualityScore *int      `json:"quality_score,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
