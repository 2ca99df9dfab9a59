package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is an inbox entry for a creator. DedupeKey is unique when set so a
// settlement transition notifies at most once.
type Notification struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	UserID       string            `gorm:"size:64;not null;index:idx_notifications_inbox,priority:1" json:"user_id"`
	SubmissionID string            `gorm:"size:64;index" json:"submission_id,omitempty"`
	Type         string            `gorm:"size:64;not null" json:"type"`
	DedupeKey    *string           `gorm:"size:160;uniqueIndex" json:"-"`
	Title        string            `gorm:"size:255" json:"title"`
	Message      string            `gorm:"type:text" json:"message"`
	Metadata     datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	Read         bool              `gorm:"not null;default:false;index:idx_notifications_inbox,priority:2" json:"read"`
	ReadAt       *time.Time        `json:"read_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// NotificationDedupeKey scopes a notification type to one submission.
func NotificationDedupeKey(notificationType, submissionID string) *string {
	if notificationType == "" || submissionID == "" {
		return nil
	}
	key := notificationType + ":" + submissionID
	return &key
}
