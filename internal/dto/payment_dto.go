package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/creatorhub-api/internal/models"
)

// PaymentSettlementResponse describes the payout recorded for a submission.
type PaymentSettlementResponse struct {
	SubmissionID string          `json:"submission_id"`
	GigID        string          `json:"gig_id"`
	CreatorID    string          `json:"creator_id"`
	BrandID      string          `json:"brand_id"`
	Gross        decimal.Decimal `json:"gross"`
	PlatformFee  decimal.Decimal `json:"platform_fee"`
	Net          decimal.Decimal `json:"net"`
	Currency     string          `json:"currency"`
	Status       string          `json:"status"`
	Created      bool            `json:"created"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewPaymentSettlementResponse converts a settlement model to DTO.
func NewPaymentSettlementResponse(model models.PaymentSettlement, created bool) PaymentSettlementResponse {
	return PaymentSettlementResponse{
		SubmissionID: model.SubmissionID,
		GigID:        model.GigID,
		CreatorID:    model.CreatorID,
		BrandID:      model.BrandID,
		Gross:        model.Gross,
		PlatformFee:  model.PlatformFee,
		Net:          model.Net,
		Currency:     model.Currency,
		Status:       model.Status,
		Created:      created,
		CreatedAt:    model.CreatedAt,
	}
}

// ReputationResponse summarises a creator's reputation.
type ReputationResponse struct {
	CreatorID     string                    `json:"creator_id"`
	Score         int                       `json:"score"`
	CompletedGigs int                       `json:"completed_gigs"`
	RecentEvents  []ReputationEventResponse `json:"recent_events"`
}

// ReputationEventResponse is one reputation ledger entry.
type ReputationEventResponse struct {
	Kind         string    `json:"kind"`
	Delta        int       `json:"delta"`
	SubmissionID string    `json:"submission_id"`
	QualityScore *int      `json:"quality_score,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewReputationResponse converts a reputation and its recent events to DTO.
func NewReputationResponse(reputation models.CreatorReputation, events []models.ReputationEvent) ReputationResponse {
	out := make([]ReputationEventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, ReputationEventResponse{
			Kind:         event.Kind,
			Delta:        event.Delta,
			SubmissionID: event.SubmissionID,
			QualityScore: event.QualityScore,
			CreatedAt:    event.CreatedAt,
		})
	}
	return ReputationResponse{
		CreatorID:     reputation.CreatorID,
		Score:         reputation.Score,
		CompletedGigs: reputation.CompletedGigs,
		RecentEvents:  out,
	}
}
