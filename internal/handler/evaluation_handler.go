package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/creatorhub-api/internal/dto"
	"github.com/noah-isme/creatorhub-api/internal/service"
	"github.com/noah-isme/creatorhub-api/internal/utils"
)

// EvaluationHandler exposes the automated submission review trigger.
type EvaluationHandler struct {
	service service.EvaluationService
	logger  zerolog.Logger
}

// NewEvaluationHandler constructs an evaluation handler.
func NewEvaluationHandler(service service.EvaluationService, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		service: service,
		logger:  logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Register wires evaluation routes under a submission group.
func (h *EvaluationHandler) Register(router fiber.Router, limiter ...fiber.Handler) {
	handlers := append(append([]fiber.Handler{}, limiter...), h.evaluate)
	router.Post("/:id/evaluate", handlers...)
}

func (h *EvaluationHandler) evaluate(c *fiber.Ctx) error {
	var req dto.EvaluateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.SendErrorCode(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", "invalid request body")
		}
	}
	req.SubmissionID = pathParam(c, "id")
	if req.GigID == "" {
		req.GigID = c.Query("gigId")
	}

	resp, err := h.service.Evaluate(requestContext(c), req)
	if err != nil {
		return h.handleError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *EvaluationHandler) handleError(c *fiber.Ctx, err error) error {
	code := service.EvaluationOutcome(err)
	logger := requestLogger(h.logger, c)

	switch code {
	case "INVALID_ARGUMENT":
		message := "submissionId and gigId are required"
		if !isValidationError(err) {
			message = err.Error()
		}
		return utils.SendErrorCode(c, fiber.StatusBadRequest, code, message)
	case "NOT_FOUND":
		return utils.SendErrorCode(c, fiber.StatusNotFound, code, err.Error())
	case "INVALID_VIDEO_URL", "NO_VIDEO":
		return utils.SendErrorCode(c, fiber.StatusBadRequest, code, err.Error())
	case "EVALUATION_IN_PROGRESS", "EVALUATION_CONFLICT":
		return utils.SendErrorCode(c, fiber.StatusConflict, code, err.Error())
	case "MODEL_UNAVAILABLE", "MODEL_AUTH_FAILED":
		logger.Error().Err(err).Str("code", code).Msg("model evaluation failed")
		return utils.SendErrorCode(c, fiber.StatusBadGateway, code, "video evaluation is temporarily unavailable")
	default:
		logger.Error().Err(err).Str("code", code).Msg("evaluation failed")
		return utils.SendErrorCode(c, fiber.StatusInternalServerError, code, "failed to evaluate submission")
	}
}
