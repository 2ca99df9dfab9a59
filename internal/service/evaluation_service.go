package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/creatorhub-api/internal/dto"
	"github.com/noah-isme/creatorhub-api/internal/models"
	"github.com/noah-isme/creatorhub-api/internal/observability"
	"github.com/noah-isme/creatorhub-api/internal/repository"
	"github.com/noah-isme/creatorhub-api/pkg/ai"
	"github.com/noah-isme/creatorhub-api/pkg/lock"
)

var (
	// ErrSubmissionNotFound indicates the submission does not exist.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrGigNotFound indicates the gig does not exist.
	ErrGigNotFound = errors.New("gig not found")
	// ErrGigMismatch indicates the submission belongs to another gig.
	ErrGigMismatch = errors.New("submission does not belong to gig")
	// ErrInvalidVideoURL indicates the selected video reference is not an http(s) URL.
	ErrInvalidVideoURL = errors.New("video reference must be an http or https url")
	// ErrNoVideo indicates the submission has no evaluable video.
	ErrNoVideo = errors.New("submission has no video to evaluate")
	// ErrEvaluationInProgress indicates another evaluation holds the submission.
	ErrEvaluationInProgress = errors.New("submission evaluation already in progress")
	// ErrModelFailure indicates the model could not produce an evaluation.
	ErrModelFailure = errors.New("model evaluation failed")
)

var videoExtensions = map[string]struct{}{
	"mp4":  {},
	"mov":  {},
	"avi":  {},
	"webm": {},
	"mkv":  {},
}

// EvaluationService is the inbound trigger for automated submission review.
type EvaluationService interface {
	Evaluate(ctx context.Context, req dto.EvaluateRequest) (dto.EvaluateResponse, error)
}

type evaluationService struct {
	submissions repository.SubmissionRepository
	gigs        repository.GigRepository
	evaluator   ai.Evaluator
	settlement  SettlementService
	locker      lock.Locker
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewEvaluationService wires the evaluation trigger. A nil locker falls back to an in-process lock.
func NewEvaluationService(
	submissions repository.SubmissionRepository,
	gigs repository.GigRepository,
	evaluator ai.Evaluator,
	settlement SettlementService,
	locker lock.Locker,
	validate *validator.Validate,
	logger zerolog.Logger,
) EvaluationService {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return &evaluationService{
		submissions: submissions,
		gigs:        gigs,
		evaluator:   evaluator,
		settlement:  settlement,
		locker:      locker,
		validator:   validate,
		logger:      logger.With().Str("component", "evaluation_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/creatorhub-api/internal/service/evaluation"),
	}
}

func (s *evaluationService) Evaluate(ctx context.Context, req dto.EvaluateRequest) (response dto.EvaluateResponse, err error) {
	req.SubmissionID = strings.TrimSpace(req.SubmissionID)
	req.GigID = strings.TrimSpace(req.GigID)

	spanCtx, span := s.tracer.Start(ctx, "evaluation.evaluate", trace.WithAttributes(
		attribute.String("submission.id", req.SubmissionID),
		attribute.String("gig.id", req.GigID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
		observability.Evaluations().WithLabelValues(EvaluationOutcome(err)).Inc()
	}()

	if err := s.validator.Struct(req); err != nil {
		return dto.EvaluateResponse{}, err
	}

	submission, gig, videoURL, err := s.load(spanCtx, req)
	if err != nil {
		return dto.EvaluateResponse{}, err
	}

	lease, err := s.locker.Acquire(spanCtx, submission.ID)
	switch {
	case errors.Is(err, lock.ErrNotObtained):
		return dto.EvaluateResponse{}, ErrEvaluationInProgress
	case err != nil:
		s.logger.Warn().Err(err).Str("submission_id", submission.ID).Msg("evaluation lock unavailable, relying on conditional commit")
	default:
		defer func() {
			if releaseErr := lease.Release(context.WithoutCancel(spanCtx)); releaseErr != nil {
				s.logger.Warn().Err(releaseErr).Str("submission_id", submission.ID).Msg("failed to release evaluation lock")
			}
		}()
	}

	// Status is re-read under the lock so settlement compares against the latest state.
	submission, err = s.submissions.GetByID(spanCtx, submission.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluateResponse{}, ErrSubmissionNotFound
		}
		return dto.EvaluateResponse{}, err
	}

	evaluation, err := s.evaluator.Evaluate(spanCtx, videoURL, NewGigBrief(gig))
	if err != nil {
		s.logger.Error().Err(err).Str("submission_id", submission.ID).Msg("model evaluation failed")
		return dto.EvaluateResponse{}, fmt.Errorf("%w: %w", ErrModelFailure, err)
	}

	result, err := s.settlement.Settle(spanCtx, submission, gig, evaluation)
	if err != nil {
		return dto.EvaluateResponse{}, err
	}

	span.SetAttributes(
		attribute.String("submission.status", result.Status),
		attribute.Bool("evaluation.compliance_passed", evaluation.Compliance.Passed),
	)

	return dto.EvaluateResponse{
		Success:        true,
		Evaluation:     evaluation,
		AutoApproved:   result.AutoApproved(),
		Status:         result.Status,
		PreviousStatus: result.PreviousStatus,
		SideEffects:    result.SideEffects,
	}, nil
}

func (s *evaluationService) load(ctx context.Context, req dto.EvaluateRequest) (models.Submission, models.Gig, string, error) {
	submission, err := s.submissions.GetByID(ctx, req.SubmissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, models.Gig{}, "", ErrSubmissionNotFound
		}
		return models.Submission{}, models.Gig{}, "", err
	}

	if submission.GigID != req.GigID {
		return models.Submission{}, models.Gig{}, "", ErrGigMismatch
	}

	gig, err := s.gigs.GetByID(ctx, req.GigID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, models.Gig{}, "", ErrGigNotFound
		}
		return models.Submission{}, models.Gig{}, "", err
	}

	videoURL, err := SelectVideoURL(submission.Files.Data())
	if err != nil {
		return models.Submission{}, models.Gig{}, "", err
	}

	return submission, gig, videoURL, nil
}

// SelectVideoURL picks the video to evaluate: the first dedicated video, otherwise the first
// raw or photo upload with a known video extension.
func SelectVideoURL(files models.SubmissionFiles) (string, error) {
	for _, ref := range files.Videos {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if !isHTTPURL(ref) {
			return "", ErrInvalidVideoURL
		}
		return ref, nil
	}

	candidates := append(append([]string{}, files.Raw...), files.Photos...)
	for _, ref := range candidates {
		ref = strings.TrimSpace(ref)
		if !hasVideoExtension(ref) {
			continue
		}
		if !isHTTPURL(ref) {
			return "", ErrInvalidVideoURL
		}
		return ref, nil
	}

	return "", ErrNoVideo
}

func isHTTPURL(ref string) bool {
	parsed, err := url.Parse(ref)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme)
	return (scheme == "http" || scheme == "https") && parsed.Host != ""
}

func hasVideoExtension(ref string) bool {
	if ref == "" {
		return false
	}
	p := ref
	if parsed, err := url.Parse(ref); err == nil {
		p = parsed.Path
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
	_, ok := videoExtensions[ext]
	return ok
}

// NewGigBrief projects a gig onto the fields the model prompt needs.
func NewGigBrief(gig models.Gig) ai.GigBrief {
	brief := gig.Brief.Data()
	return ai.GigBrief{
		Title:                gig.Title,
		Description:          gig.Description,
		ProductDescription:   gig.ProductDescription,
		Category:             gig.Category,
		Hooks:                brief.Hooks,
		TalkingPoints:        brief.TalkingPoints,
		Dos:                  brief.Dos,
		Donts:                brief.Donts,
		AIComplianceRequired: gig.AIComplianceRequired,
	}
}

// EvaluationOutcome maps an evaluation error to its public code. Nil maps to "OK".
func EvaluationOutcome(err error) string {
	var validationErrs validator.ValidationErrors
	switch {
	case err == nil:
		return "OK"
	case errors.As(err, &validationErrs), errors.Is(err, ErrGigMismatch):
		return "INVALID_ARGUMENT"
	case errors.Is(err, ErrSubmissionNotFound), errors.Is(err, ErrGigNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInvalidVideoURL):
		return "INVALID_VIDEO_URL"
	case errors.Is(err, ErrNoVideo):
		return "NO_VIDEO"
	case errors.Is(err, ErrEvaluationInProgress):
		return "EVALUATION_IN_PROGRESS"
	case errors.Is(err, ai.ErrUnauthorized):
		return "MODEL_AUTH_FAILED"
	case errors.Is(err, ErrModelFailure):
		return "MODEL_UNAVAILABLE"
	case errors.Is(err, ErrEvaluationConflict):
		return "EVALUATION_CONFLICT"
	default:
		return "PERSISTENCE_FAILED"
	}
}
