package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/creatorhub-api/internal/models"
	"github.com/noah-isme/creatorhub-api/pkg/ai"
)

func setupTestDB(t *testing.T, models ...interface{}) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models...))
	return db
}

func seedSubmission(t *testing.T, db *gorm.DB, id, status string) models.Submission {
	t.Helper()
	submission := models.Submission{
		ID:        id,
		GigID:     "gig-1",
		CreatorID: "creator-1",
		Files:     datatypes.NewJSONType(models.SubmissionFiles{Raw: []string{"https://cdn.example.com/raw.mov"}}),
		Status:    status,
	}
	require.NoError(t, db.Create(&submission).Error)
	return submission
}

func TestSubmissionRepositoryCommitEvaluationGuardsStatus(t *testing.T) {
	db := setupTestDB(t, &models.Submission{})
	repo := NewSubmissionRepository(db)
	seedSubmission(t, db, "sub-1", models.SubmissionStatusSubmitted)

	record := models.NewEvaluationRecord(ai.AIEvaluation{
		Compliance: ai.ComplianceCheck{Passed: true, Issues: []string{}},
		Quality:    &ai.QualityScore{Score: 88, ImprovementTips: []string{"Add captions for silent viewers"}},
		Timestamp:  time.Now().UTC(),
		Source:     ai.SourceStructured,
	})

	err := repo.CommitEvaluation(context.Background(), EvaluationCommit{
		SubmissionID:   "sub-1",
		PreviousStatus: models.SubmissionStatusSubmitted,
		Status:         models.SubmissionStatusApproved,
		Evaluation:     record,
		UpdatedAt:      time.Now().UTC(),
	})
	require.NoError(t, err)

	stored, err := repo.GetByID(context.Background(), "sub-1")
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusApproved, stored.Status)
	require.True(t, stored.HasEvaluation())
	require.Equal(t, 88, stored.AIEvaluation.Data().QualityScore)
	require.Equal(t, []string{"Add captions for silent viewers"}, stored.AIEvaluation.Data().ImprovementTips)

	err = repo.CommitEvaluation(context.Background(), EvaluationCommit{
		SubmissionID:   "sub-1",
		PreviousStatus: models.SubmissionStatusSubmitted,
		Status:         models.SubmissionStatusRejected,
		Evaluation:     record,
		UpdatedAt:      time.Now().UTC(),
	})
	require.ErrorIs(t, err, ErrStaleSubmission)

	stored, err = repo.GetByID(context.Background(), "sub-1")
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusApproved, stored.Status)
}

func TestSubmissionRepositoryAppendVideo(t *testing.T) {
	db := setupTestDB(t, &models.Submission{})
	repo := NewSubmissionRepository(db)
	seedSubmission(t, db, "sub-2", models.SubmissionStatusSubmitted)

	updated, err := repo.AppendVideo(context.Background(), "sub-2", "https://cdn.example.com/final.mp4")
	require.NoError(t, err)
	require.Equal(t, []string{"https://cdn.example.com/final.mp4"}, updated.Files.Data().Videos)
	require.Equal(t, []string{"https://cdn.example.com/raw.mov"}, updated.Files.Data().Raw)

	stored, err := repo.GetByID(context.Background(), "sub-2")
	require.NoError(t, err)
	require.Equal(t, []string{"https://cdn.example.com/final.mp4"}, stored.Files.Data().Videos)
	require.False(t, stored.HasEvaluation())

	_, err = repo.AppendVideo(context.Background(), "missing", "https://cdn.example.com/x.mp4")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPaymentRepositoryCreateOnce(t *testing.T) {
	db := setupTestDB(t, &models.PaymentSettlement{})
	repo := NewPaymentRepository(db)

	newSettlement := func() *models.PaymentSettlement {
		return &models.PaymentSettlement{
			SubmissionID: "sub-1",
			GigID:        "gig-1",
			CreatorID:    "creator-1",
			BrandID:      "brand-1",
			Gross:        decimal.RequireFromString("250.00"),
			PlatformFee:  decimal.RequireFromString("25.00"),
			Net:          decimal.RequireFromString("225.00"),
			Currency:     "USD",
			Status:       models.PaymentStatusPending,
		}
	}

	created, err := repo.CreateOnce(context.Background(), newSettlement())
	require.NoError(t, err)
	require.True(t, created)

	created, err = repo.CreateOnce(context.Background(), newSettlement())
	require.NoError(t, err)
	require.False(t, created)

	var count int64
	require.NoError(t, db.Model(&models.PaymentSettlement{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	stored, err := repo.GetBySubmission(context.Background(), "sub-1")
	require.NoError(t, err)
	require.True(t, stored.Net.Equal(decimal.RequireFromString("225")))
}

func TestReputationRepositoryApplyFloorsAtZero(t *testing.T) {
	db := setupTestDB(t, &models.ReputationEvent{}, &models.CreatorReputation{})
	repo := NewReputationRepository(db)
	ctx := context.Background()

	reputation, err := repo.Apply(ctx, &models.ReputationEvent{CreatorID: "creator-1", SubmissionID: "sub-1", Kind: models.ReputationEventFailure, Delta: -5})
	require.NoError(t, err)
	require.Equal(t, 0, reputation.Score)

	reputation, err = repo.Apply(ctx, &models.ReputationEvent{CreatorID: "creator-1", SubmissionID: "sub-2", Kind: models.ReputationEventCompletion, Delta: 10})
	require.NoError(t, err)
	require.Equal(t, 10, reputation.Score)
	require.Equal(t, 1, reputation.CompletedGigs)

	reputation, err = repo.Apply(ctx, &models.ReputationEvent{CreatorID: "creator-1", SubmissionID: "sub-3", Kind: models.ReputationEventFailure, Delta: -5})
	require.NoError(t, err)
	require.Equal(t, 5, reputation.Score)

	events, err := repo.ListEvents(ctx, "creator-1", 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, "sub-3", events[0].SubmissionID)
}

func TestNotificationRepositoryInboxLifecycle(t *testing.T) {
	db := setupTestDB(t, &models.Notification{})
	repo := NewNotificationRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := models.Notification{UserID: "creator-1", SubmissionID: "sub-1", Type: "submission_approved", DedupeKey: models.NotificationDedupeKey("submission_approved", "sub-1"), Title: "Approved", Message: "one", Metadata: datatypes.JSONMap{"submissionId": "sub-1"}}
	second := models.Notification{UserID: "creator-1", SubmissionID: "sub-2", Type: "submission_rejected", Title: "Rejected", Message: "two"}
	other := models.Notification{UserID: "creator-2", Type: "submission_approved", Title: "Approved", Message: "three"}
	for _, n := range []*models.Notification{&first, &second, &other} {
		created, err := repo.Insert(ctx, n)
		require.NoError(t, err)
		require.True(t, created)
	}

	replay := models.Notification{UserID: "creator-1", SubmissionID: "sub-1", Type: "submission_approved", DedupeKey: models.NotificationDedupeKey("submission_approved", "sub-1"), Title: "Approved", Message: "again"}
	created, err := repo.Insert(ctx, &replay)
	require.NoError(t, err)
	require.False(t, created)

	items, unread, err := repo.List(ctx, NotificationFilter{UserID: "creator-1"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, int64(2), unread)
	require.Equal(t, "two", items[0].Message)

	items, _, err = repo.List(ctx, NotificationFilter{UserID: "creator-1", SubmissionID: "sub-1"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "sub-1", items[0].Metadata["submissionId"])

	marked, err := repo.MarkRead(ctx, first.ID, "creator-1", now)
	require.NoError(t, err)
	require.True(t, marked.Read)
	require.NotNil(t, marked.ReadAt)

	_, err = repo.MarkRead(ctx, other.ID, "creator-1", now)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	items, unread, err = repo.List(ctx, NotificationFilter{UserID: "creator-1", UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, int64(1), unread)

	updated, err := repo.MarkAllRead(ctx, "creator-1", now)
	require.NoError(t, err)
	require.Equal(t, int64(1), updated)

	unread, err = repo.CountUnread(ctx, "creator-1")
	require.NoError(t, err)
	require.Zero(t, unread)

	unread, err = repo.CountUnread(ctx, "creator-2")
	require.NoError(t, err)
	require.Equal(t, int64(1), unread)
}
