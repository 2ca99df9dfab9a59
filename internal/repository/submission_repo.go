package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/creatorhub-api/internal/models"
)

// ErrStaleSubmission indicates the submission's status changed since it was read.
var ErrStaleSubmission = errors.New("submission status changed concurrently")

// EvaluationCommit describes a settlement write guarded by the previously observed status.
type EvaluationCommit struct {
	SubmissionID   string
	PreviousStatus string
	Status         string
	Evaluation     models.EvaluationRecord
	UpdatedAt      time.Time
}

// SubmissionRepository defines data operations for submissions.
type SubmissionRepository interface {
	GetByID(ctx context.Context, id string) (models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	CommitEvaluation(ctx context.Context, commit EvaluationCommit) error
	AppendVideo(ctx context.Context, id, url string) (models.Submission, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) GetByID(ctx context.Context, id string) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

// CommitEvaluation replaces status and evaluation in one conditional update.
// It returns ErrStaleSubmission when the row no longer holds PreviousStatus.
func (r *submissionRepository) CommitEvaluation(ctx context.Context, commit EvaluationCommit) error {
	result := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ? AND status = ?", commit.SubmissionID, commit.PreviousStatus).
		Updates(map[string]interface{}{
			"status":        commit.Status,
			"ai_evaluation": datatypes.NewJSONType(commit.Evaluation),
			"updated_at":    commit.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleSubmission
	}

	return nil
}

func (r *submissionRepository) AppendVideo(ctx context.Context, id, url string) (models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&submission).Error; err != nil {
			return err
		}

		files := submission.Files.Data()
		files.Videos = append(files.Videos, url)
		submission.Files = datatypes.NewJSONType(files)

		return tx.Model(&submission).Update("files", submission.Files).Error
	})
	if err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}
