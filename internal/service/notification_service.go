package service

import (
	"context"
	"errors"
	"html"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/creatorhub-api/internal/dto"
	"github.com/noah-isme/creatorhub-api/internal/models"
	"github.com/noah-isme/creatorhub-api/internal/observability"
	"github.com/noah-isme/creatorhub-api/internal/repository"
)

var (
	// ErrNotificationEmpty indicates the message had no content left after sanitising.
	ErrNotificationEmpty = errors.New("notification message empty after sanitization")
	// ErrUserRequired is returned when an inbox operation names no user.
	ErrUserRequired = errors.New("user id is required")
)

// Notice is a message addressed to one creator. SubmissionID, when set, makes the
// notice idempotent per type and submission.
type Notice struct {
	UserID       string `validate:"required,max=64"`
	Type         string `validate:"required,max=64"`
	Title        string `validate:"required,max=255"`
	Message      string `validate:"required,max=2000"`
	SubmissionID string `validate:"omitempty,max=64"`
	Metadata     map[string]interface{}
}

// NotificationService keeps creator inboxes and pushes new entries to live streams.
type NotificationService interface {
	Notify(ctx context.Context, notice Notice) error
	List(ctx context.Context, userID string, query dto.NotificationListQuery) (dto.NotificationListResponse, error)
	Unread(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, id uint, userID string) (dto.NotificationResponse, error)
	MarkAllRead(ctx context.Context, userID string) (dto.NotificationReadAllResponse, error)
	Subscribe(userID string) (<-chan dto.NotificationResponse, func())
	Start(ctx context.Context)
}

type notificationService struct {
	repo      repository.NotificationRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	broker    *inboxBroker
	fanout    *inboxFanout
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewNotificationService constructs the inbox service. Redis and NATS are optional
// and only used to reach streams held by other replicas.
func NewNotificationService(repo repository.NotificationRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, validate *validator.Validate, logger zerolog.Logger) NotificationService {
	logger = logger.With().Str("component", "notification_service").Logger()
	broker := newInboxBroker()

	return &notificationService{
		repo:      repo,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		broker:    broker,
		fanout:    newInboxFanout(redisClient, natsConn, channelBase, broker, logger),
		logger:    logger,
		tracer:    otel.Tracer("github.com/noah-isme/creatorhub-api/internal/service/notification"),
		now:       time.Now,
	}
}

func (s *notificationService) Start(ctx context.Context) {
	s.fanout.start(ctx)
}

// Notify stores the notice and pushes it to live subscribers. A notice whose
// submission already produced the same type is dropped silently.
func (s *notificationService) Notify(ctx context.Context, notice Notice) error {
	if err := s.validator.Struct(notice); err != nil {
		return err
	}

	title := s.plainText(notice.Title)
	message := s.plainText(notice.Message)
	if message == "" {
		return ErrNotificationEmpty
	}

	spanCtx, span := s.tracer.Start(ctx, "notifications.notify", trace.WithAttributes(
		attribute.String("notification.user_id", notice.UserID),
		attribute.String("notification.type", notice.Type),
		attribute.String("submission.id", notice.SubmissionID),
	))
	defer span.End()

	model := models.Notification{
		UserID:       notice.UserID,
		SubmissionID: notice.SubmissionID,
		Type:         notice.Type,
		DedupeKey:    models.NotificationDedupeKey(notice.Type, notice.SubmissionID),
		Title:        title,
		Message:      message,
	}
	if len(notice.Metadata) > 0 {
		model.Metadata = datatypes.JSONMap(notice.Metadata)
	}

	created, err := s.repo.Insert(spanCtx, &model)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist notification")
		return err
	}
	if !created {
		observability.NotificationsPublished().WithLabelValues(notice.Type, "duplicate").Inc()
		s.logger.Debug().
			Str("user_id", notice.UserID).
			Str("submission_id", notice.SubmissionID).
			Str("type", notice.Type).
			Msg("notification already delivered")
		return nil
	}

	response := dto.NewNotificationResponse(model)
	s.broker.broadcast(response)
	if err := s.fanout.publish(spanCtx, response); err != nil {
		s.logger.Warn().Err(err).Uint("notification_id", response.ID).Msg("failed to fan out notification")
	}
	observability.NotificationsPublished().WithLabelValues(response.Type, "local").Inc()

	return nil
}

// plainText strips markup and decodes the entities the sanitiser emits, since
// inbox entries are stored and served as plain text.
func (s *notificationService) plainText(value string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(value)))
}

func (s *notificationService) List(ctx context.Context, userID string, query dto.NotificationListQuery) (dto.NotificationListResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return dto.NotificationListResponse{}, ErrUserRequired
	}
	if err := s.validator.Struct(query); err != nil {
		return dto.NotificationListResponse{}, err
	}

	notifications, unread, err := s.repo.List(ctx, repository.NotificationFilter{
		UserID:       userID,
		SubmissionID: strings.TrimSpace(query.SubmissionID),
		UnreadOnly:   query.UnreadOnly,
		Limit:        query.Limit,
		Offset:       query.Offset,
	})
	if err != nil {
		return dto.NotificationListResponse{}, err
	}

	return dto.NotificationListResponse{
		Items:  dto.NewNotificationResponseSlice(notifications),
		Unread: unread,
	}, nil
}

func (s *notificationService) Unread(ctx context.Context, userID string) (int64, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, ErrUserRequired
	}
	return s.repo.CountUnread(ctx, userID)
}

func (s *notificationService) MarkRead(ctx context.Context, id uint, userID string) (dto.NotificationResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return dto.NotificationResponse{}, ErrUserRequired
	}

	notification, err := s.repo.MarkRead(ctx, id, userID, s.now().UTC())
	if err != nil {
		return dto.NotificationResponse{}, err
	}

	return dto.NewNotificationResponse(notification), nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) (dto.NotificationReadAllResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return dto.NotificationReadAllResponse{}, ErrUserRequired
	}

	updated, err := s.repo.MarkAllRead(ctx, userID, s.now().UTC())
	if err != nil {
		return dto.NotificationReadAllResponse{}, err
	}

	return dto.NotificationReadAllResponse{Updated: updated}, nil
}

func (s *notificationService) Subscribe(userID string) (<-chan dto.NotificationResponse, func()) {
	return s.broker.subscribe(userID)
}
