package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/creatorhub-api/internal/service"
	"github.com/noah-isme/creatorhub-api/internal/utils"
)

// VideoHandler handles submission video uploads.
type VideoHandler struct {
	service service.VideoService
	logger  zerolog.Logger
}

// NewVideoHandler constructs a video upload handler.
func NewVideoHandler(service service.VideoService, logger zerolog.Logger) *VideoHandler {
	return &VideoHandler{
		service: service,
		logger:  logger.With().Str("component", "video_handler").Logger(),
	}
}

// Register wires video routes under a submission group.
func (h *VideoHandler) Register(router fiber.Router) {
	router.Post("/:id/videos", h.upload)
}

func (h *VideoHandler) upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendErrorCode(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", "file is required")
	}

	result, err := h.service.Upload(requestContext(c), pathParam(c, "id"), file)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubmissionNotFound):
			return utils.SendErrorCode(c, fiber.StatusNotFound, "NOT_FOUND", err.Error())
		case errors.Is(err, service.ErrVideoTooLarge):
			return utils.SendErrorCode(c, fiber.StatusRequestEntityTooLarge, "VIDEO_TOO_LARGE", err.Error())
		case errors.Is(err, service.ErrVideoTypeNotAllowed), errors.Is(err, service.ErrVideoRequired):
			return utils.SendErrorCode(c, fiber.StatusBadRequest, "INVALID_VIDEO", err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("video upload failed")
			return utils.SendErrorCode(c, fiber.StatusInternalServerError, "UPLOAD_FAILED", "video upload failed")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "video stored", result)
}
