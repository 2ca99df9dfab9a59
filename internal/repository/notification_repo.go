package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/creatorhub-api/internal/models"
)

const (
	defaultInboxPage = 50
	maxInboxPage     = 100
)

// NotificationFilter narrows an inbox listing.
type NotificationFilter struct {
	UserID       string
	SubmissionID string
	UnreadOnly   bool
	Limit        int
	Offset       int
}

// NotificationRepository persists creator inbox entries.
type NotificationRepository interface {
	Insert(ctx context.Context, notification *models.Notification) (bool, error)
	List(ctx context.Context, filter NotificationFilter) ([]models.Notification, int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, id uint, userID string, at time.Time) (models.Notification, error)
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository constructs a repository backed by GORM.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Insert stores the notification unless one with the same dedupe key exists.
// It reports whether a row was written.
func (r *notificationRepository) Insert(ctx context.Context, notification *models.Notification) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "dedupe_key"}}, DoNothing: true}).
		Create(notification)
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// List returns a page of the inbox, newest first, plus the unread total.
func (r *notificationRepository) List(ctx context.Context, filter NotificationFilter) ([]models.Notification, int64, error) {
	limit := filter.Limit
	if limit <= 0 || limit > maxInboxPage {
		limit = defaultInboxPage
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	unread, err := r.CountUnread(ctx, filter.UserID)
	if err != nil {
		return nil, 0, err
	}

	query := r.db.WithContext(ctx).Where("user_id = ?", filter.UserID)
	if filter.SubmissionID != "" {
		query = query.Where("submission_id = ?", filter.SubmissionID)
	}
	if filter.UnreadOnly {
		query = query.Where("read = ?", false)
	}

	var notifications []models.Notification
	if err := query.
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&notifications).Error; err != nil {
		return nil, 0, err
	}

	return notifications, unread, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	var unread int64
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&unread).Error

	return unread, err
}

// MarkRead flags one entry as read. Entries owned by other users are reported as
// gorm.ErrRecordNotFound.
func (r *notificationRepository) MarkRead(ctx context.Context, id uint, userID string, at time.Time) (models.Notification, error) {
	var notification models.Notification
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Notification{}).
			Where("id = ? AND user_id = ? AND read = ?", id, userID, false).
			Updates(map[string]interface{}{"read": true, "read_at": at}).Error; err != nil {
			return err
		}

		return tx.Where("id = ? AND user_id = ?", id, userID).First(&notification).Error
	})
	if err != nil {
		return models.Notification{}, err
	}

	return notification, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Updates(map[string]interface{}{"read": true, "read_at": at})

	return result.RowsAffected, result.Error
}
