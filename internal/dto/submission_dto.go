package dto

import (
	"time"

	"github.com/noah-isme/creatorhub-api/internal/models"
	"github.com/noah-isme/creatorhub-api/pkg/ai"
)

// EvaluateRequest triggers an automated evaluation of a submission.
type EvaluateRequest struct {
	SubmissionID string `json:"-" validate:"required,max=64"`
	GigID        string `json:"gigId" validate:"required,max=64"`
}

// SideEffectResult reports the outcome of one settlement side effect.
type SideEffectResult struct {
	Effect    string `json:"effect"`
	Succeeded bool   `json:"succeeded"`
	Error     string `json:"error,omitempty"`
}

// EvaluateResponse is returned once an evaluation has been committed.
// Side effect failures do not change Success.
type EvaluateResponse struct {
	Success        bool               `json:"success"`
	Evaluation     ai.AIEvaluation    `json:"evaluation"`
	AutoApproved   bool               `json:"autoApproved"`
	Status         string             `json:"status"`
	PreviousStatus string             `json:"previousStatus"`
	SideEffects    []SideEffectResult `json:"sideEffects"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID                  string                   `json:"id"`
	GigID               string                   `json:"gig_id"`
	CreatorID           string                   `json:"creator_id"`
	Files               models.SubmissionFiles   `json:"files"`
	Status              string                   `json:"status"`
	AIEvaluation        *models.EvaluationRecord `json:"ai_evaluation,omitempty"`
	ChangeRequestsCount int                      `json:"change_requests_count"`
	CreatedAt           time.Time                `json:"created_at"`
	UpdatedAt           time.Time                `json:"updated_at"`
}

// NewSubmissionResponse converts a submission model to its DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:                  model.ID,
		GigID:               model.GigID,
		CreatorID:           model.CreatorID,
		Files:               model.Files.Data(),
		Status:              model.Status,
		ChangeRequestsCount: model.ChangeRequestsCount,
		CreatedAt:           model.CreatedAt,
		UpdatedAt:           model.UpdatedAt,
	}
	if model.HasEvaluation() {
		record := model.AIEvaluation.Data()
		response.AIEvaluation = &record
	}
	return response
}

// VideoUploadResponse describes a video stored for a submission.
type VideoUploadResponse struct {
	URL        string             `json:"url"`
	MimeType   string             `json:"mime_type"`
	SizeBytes  int64              `json:"size_bytes"`
	Submission SubmissionResponse `json:"submission"`
}
