package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/creatorhub-api/internal/service"
	"github.com/noah-isme/creatorhub-api/internal/utils"
)

// LedgerHandler exposes read access to reputation and payout records.
type LedgerHandler struct {
	reputation service.ReputationService
	payments   service.PaymentService
	logger     zerolog.Logger
}

// NewLedgerHandler constructs a ledger handler.
func NewLedgerHandler(reputation service.ReputationService, payments service.PaymentService, logger zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{
		reputation: reputation,
		payments:   payments,
		logger:     logger.With().Str("component", "ledger_handler").Logger(),
	}
}

// RegisterCreators wires creator routes.
func (h *LedgerHandler) RegisterCreators(router fiber.Router) {
	router.Get("/:creatorId/reputation", h.reputationSummary)
}

// RegisterSubmissions wires submission payout routes.
func (h *LedgerHandler) RegisterSubmissions(router fiber.Router) {
	router.Get("/:id/payment", h.payment)
}

func (h *LedgerHandler) reputationSummary(c *fiber.Ctx) error {
	summary, err := h.reputation.Get(requestContext(c), pathParam(c, "creatorId"))
	if err != nil {
		if errors.Is(err, service.ErrCreatorRequired) {
			return utils.SendErrorCode(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load reputation")
		return utils.SendErrorCode(c, fiber.StatusInternalServerError, "PERSISTENCE_FAILED", "failed to load reputation")
	}

	return utils.SendSuccess(c, "reputation", summary)
}

func (h *LedgerHandler) payment(c *fiber.Ctx) error {
	settlement, err := h.payments.Get(requestContext(c), pathParam(c, "id"))
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			return utils.SendErrorCode(c, fiber.StatusNotFound, "NOT_FOUND", err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load payment settlement")
		return utils.SendErrorCode(c, fiber.StatusInternalServerError, "PERSISTENCE_FAILED", "failed to load payment settlement")
	}

	return utils.SendSuccess(c, "payment settlement", settlement)
}
