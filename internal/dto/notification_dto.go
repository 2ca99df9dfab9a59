package dto

import (
	"time"

	"github.com/noah-isme/creatorhub-api/internal/models"
)

// NotificationListQuery holds query string filters for an inbox listing.
type NotificationListQuery struct {
	SubmissionID string `query:"submissionId" validate:"omitempty,max=64"`
	UnreadOnly   bool   `query:"unread"`
	Limit        int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset       int    `query:"offset" validate:"omitempty,min=0"`
}

// NotificationResponse is an inbox entry as returned to clients and streams.
type NotificationResponse struct {
	ID           uint                   `json:"id"`
	UserID       string                 `json:"user_id"`
	SubmissionID string                 `json:"submission_id,omitempty"`
	Type         string                 `json:"type"`
	Title        string                 `json:"title"`
	Message      string                 `json:"message"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Read         bool                   `json:"read"`
	ReadAt       *time.Time             `json:"read_at,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// NotificationListResponse is a page of the inbox plus the unread total.
type NotificationListResponse struct {
	Items  []NotificationResponse `json:"items"`
	Unread int64                  `json:"unread"`
}

// NotificationReadAllResponse reports how many entries were marked read.
type NotificationReadAllResponse struct {
	Updated int64 `json:"updated"`
}

func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:           model.ID,
		UserID:       model.UserID,
		SubmissionID: model.SubmissionID,
		Type:         model.Type,
		Title:        model.Title,
		Message:      model.Message,
		Metadata:     model.Metadata,
		Read:         model.Read,
		ReadAt:       model.ReadAt,
		CreatedAt:    model.CreatedAt,
	}
}

func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewNotificationResponse(item))
	}
	return out
}
