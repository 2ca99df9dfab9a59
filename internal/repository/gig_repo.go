package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/creatorhub-api/internal/models"
)

// GigRepository defines data operations for gigs.
type GigRepository interface {
	GetByID(ctx context.Context, id string) (models.Gig, error)
	Create(ctx context.Context, gig *models.Gig) error
}

type gigRepository struct {
	db *gorm.DB
}

// NewGigRepository instantiates the repository.
func NewGigRepository(db *gorm.DB) GigRepository {
	return &gigRepository{db: db}
}

func (r *gigRepository) GetByID(ctx context.Context, id string) (models.Gig, error) {
	var gig models.Gig
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&gig).Error; err != nil {
		return models.Gig{}, err
	}
	return gig, nil
}

func (r *gigRepository) Create(ctx context.Context, gig *models.Gig) error {
	return r.db.WithContext(ctx).Create(gig).Error
}
