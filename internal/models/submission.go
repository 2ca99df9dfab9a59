package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/creatorhub-api/pkg/ai"
)

const (
	// SubmissionStatusSubmitted indicates the submission is waiting for review.
	SubmissionStatusSubmitted = "submitted"
	// SubmissionStatusNeedsChanges indicates the brand asked for a revision.
	SubmissionStatusNeedsChanges = "needs_changes"
	// SubmissionStatusApproved indicates the submission passed review.
	SubmissionStatusApproved = "approved"
	// SubmissionStatusRejected indicates the submission failed review. Terminal for automated evaluation.
	SubmissionStatusRejected = "rejected"
)

// SubmissionFiles groups the durable URLs uploaded for a submission.
type SubmissionFiles struct {
	Videos []string `json:"videos"`
	Photos []string `json:"photos"`
	Raw    []string `json:"raw"`
}

// EvaluationRecord is the audit shape of the last automated evaluation written onto a submission.
type EvaluationRecord struct {
	CompliancePassed bool                `json:"compliancePassed"`
	ComplianceIssues []string            `json:"complianceIssues"`
	ComplianceChecks ai.ComplianceChecks `json:"complianceChecks"`
	QualityScore     int                 `json:"qualityScore"`
	QualityBreakdown ai.QualityBreakdown `json:"qualityBreakdown"`
	ImprovementTips  []string            `json:"improvementTips"`
	EvaluatedAt      time.Time           `json:"evaluatedAt"`
	Source           string              `json:"source"`
}

// NewEvaluationRecord flattens an evaluation into its persisted form.
func NewEvaluationRecord(evaluation ai.AIEvaluation) EvaluationRecord {
	issues := evaluation.Compliance.Issues
	if issues == nil {
		issues = []string{}
	}

	record := EvaluationRecord{
		CompliancePassed: evaluation.Compliance.Passed,
		ComplianceIssues: issues,
		ComplianceChecks: evaluation.Compliance.Checks,
		ImprovementTips:  []string{},
		EvaluatedAt:      evaluation.Timestamp,
		Source:           string(evaluation.Source),
	}
	if evaluation.Quality != nil {
		record.QualityScore = evaluation.Quality.Score
		record.QualityBreakdown = evaluation.Quality.Breakdown
		if len(evaluation.Quality.ImprovementTips) > 0 {
			record.ImprovementTips = evaluation.Quality.ImprovementTips
		}
	}
	return record
}

// Submission is a creator's deliverable for a gig.
type Submission struct {
	ID                  string                               `gorm:"primaryKey;size:64" json:"id"`
	GigID               string                               `gorm:"size:64;not null;index" json:"gig_id"`
	CreatorID           string                               `gorm:"size:64;not null;index" json:"creator_id"`
	Files               datatypes.JSONType[SubmissionFiles]  `gorm:"type:json" json:"files"`
	Status              string                               `gorm:"size:32;not null;index" json:"status"`
	AIEvaluation        datatypes.JSONType[EvaluationRecord] `gorm:"type:json" json:"ai_evaluation"`
	ChangeRequestsCount int                                  `gorm:"not null;default:0" json:"change_requests_count"`
	CreatedAt           time.Time                            `json:"created_at"`
	UpdatedAt           time.Time                            `json:"updated_at"`
}

// HasEvaluation reports whether an automated evaluation has been recorded.
func (s Submission) HasEvaluation() bool {
	return !s.AIEvaluation.Data().EvaluatedAt.IsZero()
}

// IsApproved reports whether the submission is approved.
func (s Submission) IsApproved() bool {
	return s.Status == SubmissionStatusApproved
}
