package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/creatorhub-api/internal/models"
)

// PaymentRepository persists payout settlements.
type PaymentRepository interface {
	// CreateOnce inserts the settlement unless one already exists for the submission.
	// It reports whether a new row was written.
	CreateOnce(ctx context.Context, settlement *models.PaymentSettlement) (bool, error)
	GetBySubmission(ctx context.Context, submissionID string) (models.PaymentSettlement, error)
}

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository constructs a repository backed by GORM.
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) CreateOnce(ctx context.Context, settlement *models.PaymentSettlement) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "submission_id"}},
		DoNothing: true,
	}).Create(settlement)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *paymentRepository) GetBySubmission(ctx context.Context, submissionID string) (models.PaymentSettlement, error) {
	var settlement models.PaymentSettlement
	if err := r.db.WithContext(ctx).Where("submission_id = ?", submissionID).First(&settlement).Error; err != nil {
		return models.PaymentSettlement{}, err
	}
	return settlement, nil
}
