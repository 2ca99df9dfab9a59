package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/creatorhub-api/internal/dto"
	"github.com/noah-isme/creatorhub-api/internal/models"
	"github.com/noah-isme/creatorhub-api/internal/repository"
)

var (
	// ErrInvalidPayout indicates the gig has no positive payout to settle.
	ErrInvalidPayout = errors.New("gig payout must be positive")
	// ErrPaymentNotFound indicates no settlement exists for the submission.
	ErrPaymentNotFound = errors.New("payment settlement not found")
)

const defaultCurrency = "USD"

// DefaultPlatformFeeRate is applied when no fee rate is configured.
var DefaultPlatformFeeRate = decimal.NewFromFloat(0.10)

// PaymentRequest carries the identifiers and records needed to settle an approved submission.
type PaymentRequest struct {
	SubmissionID string
	GigID        string
	CreatorID    string
	BrandID      string
	Gig          models.Gig
	Submission   models.Submission
}

// PaymentService records payouts owed to creators. Fund transfer happens elsewhere.
type PaymentService interface {
	Settle(ctx context.Context, req PaymentRequest) (dto.PaymentSettlementResponse, error)
	Get(ctx context.Context, submissionID string) (dto.PaymentSettlementResponse, error)
}

type paymentService struct {
	repo    repository.PaymentRepository
	feeRate decimal.Decimal
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// NewPaymentService constructs a payment service. A non-positive fee rate falls back to the default.
func NewPaymentService(repo repository.PaymentRepository, feeRate decimal.Decimal, logger zerolog.Logger) PaymentService {
	if !feeRate.IsPositive() || feeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		feeRate = DefaultPlatformFeeRate
	}
	return &paymentService{
		repo:    repo,
		feeRate: feeRate,
		logger:  logger.With().Str("component", "payment_service").Logger(),
		tracer:  otel.Tracer("github.com/noah-isme/creatorhub-api/internal/service/payment"),
	}
}

// Settle writes the payout for the submission once. Repeated calls return the existing settlement.
func (s *paymentService) Settle(ctx context.Context, req PaymentRequest) (dto.PaymentSettlementResponse, error) {
	if strings.TrimSpace(req.SubmissionID) == "" || strings.TrimSpace(req.CreatorID) == "" || strings.TrimSpace(req.GigID) == "" {
		return dto.PaymentSettlementResponse{}, fmt.Errorf("payment request is missing identifiers")
	}

	gross := req.Gig.BasePayout.Round(2)
	if !gross.IsPositive() {
		return dto.PaymentSettlementResponse{}, ErrInvalidPayout
	}

	spanCtx, span := s.tracer.Start(ctx, "payment.settle", trace.WithAttributes(
		attribute.String("payment.submission_id", req.SubmissionID),
		attribute.String("payment.gig_id", req.GigID),
	))
	defer span.End()

	fee := gross.Mul(s.feeRate).Round(2)
	currency := strings.ToUpper(strings.TrimSpace(req.Gig.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	settlement := models.PaymentSettlement{
		SubmissionID: req.SubmissionID,
		GigID:        req.GigID,
		CreatorID:    req.CreatorID,
		BrandID:      req.BrandID,
		Gross:        gross,
		PlatformFee:  fee,
		Net:          gross.Sub(fee),
		Currency:     currency,
		Status:       models.PaymentStatusPending,
	}

	created, err := s.repo.CreateOnce(spanCtx, &settlement)
	if err != nil {
		span.RecordError(err)
		return dto.PaymentSettlementResponse{}, err
	}

	if !created {
		existing, err := s.repo.GetBySubmission(spanCtx, req.SubmissionID)
		if err != nil {
			span.RecordError(err)
			return dto.PaymentSettlementResponse{}, err
		}
		s.logger.Info().Str("submission_id", req.SubmissionID).Msg("payment already settled")
		return dto.NewPaymentSettlementResponse(existing, false), nil
	}

	s.logger.Info().
		Str("submission_id", req.SubmissionID).
		Str("creator_id", req.CreatorID).
		Str("gross", gross.StringFixed(2)).
		Str("net", settlement.Net.StringFixed(2)).
		Msg("payment settlement recorded")

	return dto.NewPaymentSettlementResponse(settlement, true), nil
}

func (s *paymentService) Get(ctx context.Context, submissionID string) (dto.PaymentSettlementResponse, error) {
	settlement, err := s.repo.GetBySubmission(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.PaymentSettlementResponse{}, ErrPaymentNotFound
		}
		return dto.PaymentSettlementResponse{}, err
	}
	return dto.NewPaymentSettlementResponse(settlement, false), nil
}
