package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/creatorhub-api/internal/models"
)

// ReputationRepository stores reputation ledger entries and running scores.
type ReputationRepository interface {
	Apply(ctx context.Context, event *models.ReputationEvent) (models.CreatorReputation, error)
	Get(ctx context.Context, creatorID string) (models.CreatorReputation, error)
	ListEvents(ctx context.Context, creatorID string, limit int) ([]models.ReputationEvent, error)
}

type reputationRepository struct {
	db *gorm.DB
}

// NewReputationRepository constructs a repository backed by GORM.
func NewReputationRepository(db *gorm.DB) ReputationRepository {
	return &reputationRepository{db: db}
}

// Apply records the event and adjusts the creator's score atomically, flooring it at zero.
func (r *reputationRepository) Apply(ctx context.Context, event *models.ReputationEvent) (models.CreatorReputation, error) {
	var reputation models.CreatorReputation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(event).Error; err != nil {
			return err
		}

		if err := tx.Where(models.CreatorReputation{CreatorID: event.CreatorID}).
			FirstOrCreate(&reputation).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"score": gorm.Expr("CASE WHEN score + ? < 0 THEN 0 ELSE score + ? END", event.Delta, event.Delta),
		}
		if event.Kind == models.ReputationEventCompletion {
			updates["completed_gigs"] = gorm.Expr("completed_gigs + 1")
		}

		if err := tx.Model(&models.CreatorReputation{}).
			Where("creator_id = ?", event.CreatorID).
			Updates(updates).Error; err != nil {
			return err
		}

		return tx.Where("creator_id = ?", event.CreatorID).First(&reputation).Error
	})
	if err != nil {
		return models.CreatorReputation{}, err
	}

	return reputation, nil
}

func (r *reputationRepository) Get(ctx context.Context, creatorID string) (models.CreatorReputation, error) {
	var reputation models.CreatorReputation
	if err := r.db.WithContext(ctx).Where("creator_id = ?", creatorID).First(&reputation).Error; err != nil {
		return models.CreatorReputation{}, err
	}
	return reputation, nil
}

func (r *reputationRepository) ListEvents(ctx context.Context, creatorID string, limit int) ([]models.ReputationEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var events []models.ReputationEvent
	if err := r.db.WithContext(ctx).
		Where("creator_id = ?", creatorID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
