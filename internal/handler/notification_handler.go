package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/creatorhub-api/internal/dto"
	"github.com/noah-isme/creatorhub-api/internal/service"
	"github.com/noah-isme/creatorhub-api/internal/utils"
)

const streamRetryMillis = 3000

// NotificationHandler serves creator inboxes and their live event streams.
type NotificationHandler struct {
	service   service.NotificationService
	logger    zerolog.Logger
	keepAlive time.Duration
}

func NewNotificationHandler(service service.NotificationService, logger zerolog.Logger, keepAlive time.Duration) *NotificationHandler {
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	return &NotificationHandler{
		service:   service,
		logger:    logger.With().Str("component", "notification_handler").Logger(),
		keepAlive: keepAlive,
	}
}

// Register binds the inbox routes under a /users/:userId/notifications group.
func (h *NotificationHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Get("/unread", h.unread)
	router.Get("/stream", h.stream)
	router.Post("/read-all", h.markAllRead)
	router.Patch("/:id/read", h.markRead)
}

func (h *NotificationHandler) list(c *fiber.Ctx) error {
	var query dto.NotificationListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendErrorCode(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", "invalid query parameters")
	}

	inbox, err := h.service.List(requestContext(c), pathParam(c, "userId"), query)
	if err != nil {
		return h.handleError(c, err, "failed to list notifications")
	}

	return utils.SendSuccess(c, "notifications", inbox)
}

func (h *NotificationHandler) unread(c *fiber.Ctx) error {
	count, err := h.service.Unread(requestContext(c), pathParam(c, "userId"))
	if err != nil {
		return h.handleError(c, err, "failed to count unread notifications")
	}

	return utils.SendSuccess(c, "unread notifications", fiber.Map{"unread": count})
}

func (h *NotificationHandler) markRead(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(pathParam(c, "id"), 10, 64)
	if err != nil || id == 0 {
		return utils.SendErrorCode(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", "invalid notification id")
	}

	notification, err := h.service.MarkRead(requestContext(c), uint(id), pathParam(c, "userId"))
	if err != nil {
		return h.handleError(c, err, "failed to mark notification read")
	}

	return utils.SendSuccess(c, "notification updated", notification)
}

func (h *NotificationHandler) markAllRead(c *fiber.Ctx) error {
	result, err := h.service.MarkAllRead(requestContext(c), pathParam(c, "userId"))
	if err != nil {
		return h.handleError(c, err, "failed to mark notifications read")
	}

	return utils.SendSuccess(c, "notifications updated", result)
}

// stream opens a server-sent event stream. The first event carries the unread
// count; later events carry new notifications as they are delivered.
func (h *NotificationHandler) stream(c *fiber.Ctx) error {
	userID := pathParam(c, "userId")
	ctx := requestContext(c)

	unread, err := h.service.Unread(ctx, userID)
	if err != nil {
		return h.handleError(c, err, "failed to open notification stream")
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	events, unsubscribe := h.service.Subscribe(userID)
	streamCtx, cancel := context.WithCancel(ctx)
	logger := requestLogger(h.logger, c).With().Str("user_id", userID).Logger()
	keepAlive := h.keepAlive

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer unsubscribe()

		if err := writeStreamEvent(w, "unread", fiber.Map{"unread": unread}); err != nil {
			return
		}

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		for {
			select {
			case notification, ok := <-events:
				if !ok {
					return
				}
				if err := writeStreamEvent(w, "notification", notification); err != nil {
					logger.Debug().Err(err).Msg("notification stream closed by client")
					return
				}
			case at := <-ticker.C:
				if _, err := fmt.Fprintf(w, ": keep-alive %s\n\n", at.UTC().Format(time.RFC3339)); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					logger.Debug().Err(err).Msg("notification stream closed by client")
					return
				}
			case <-streamCtx.Done():
				return
			}
		}
	})

	return nil
}

func (h *NotificationHandler) handleError(c *fiber.Ctx, err error, message string) error {
	switch {
	case errors.Is(err, service.ErrUserRequired), isValidationError(err):
		return utils.SendErrorCode(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		return utils.SendErrorCode(c, fiber.StatusNotFound, "NOT_FOUND", "notification not found")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg(message)
		return utils.SendErrorCode(c, fiber.StatusInternalServerError, "PERSISTENCE_FAILED", message)
	}
}

func writeStreamEvent(w *bufio.Writer, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "retry: %d\nevent: %s\ndata: %s\n\n", streamRetryMillis, event, data); err != nil {
		return err
	}
	return w.Flush()
}
