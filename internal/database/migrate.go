package database

import (
	"gorm.io/gorm"

	"github.com/noah-isme/creatorhub-api/internal/models"
)

// AutoMigrate creates or updates the tables owned by this service.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Gig{},
		&models.Submission{},
		&models.PaymentSettlement{},
		&models.CreatorReputation{},
		&models.ReputationEvent{},
		&models.Notification{},
	)
}
