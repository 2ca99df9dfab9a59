package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/creatorhub-api/internal/dto"
	"github.com/noah-isme/creatorhub-api/internal/models"
	"github.com/noah-isme/creatorhub-api/internal/observability"
	"github.com/noah-isme/creatorhub-api/internal/repository"
	"github.com/noah-isme/creatorhub-api/pkg/ai"
)

var (
	// ErrEvaluationConflict indicates another run committed a status change first.
	ErrEvaluationConflict = errors.New("submission was settled by a concurrent evaluation")
	// ErrPersistenceFailed indicates the evaluation could not be written.
	ErrPersistenceFailed = errors.New("failed to persist evaluation")
)

// Notification types emitted on settlement.
const (
	NotificationSubmissionApproved = "submission_approved"
	NotificationSubmissionRejected = "submission_rejected"
)

// Side effect names reported in settlement results.
const (
	EffectApprovalNotification = "approval_notification"
	EffectCompletionReputation = "completion_reputation"
	EffectQualityBonus         = "quality_bonus_reputation"
	EffectPayment              = "payment_settlement"
	EffectFailureNotification  = "failure_notification"
	EffectFailureReputation    = "failure_reputation"
)

const maxNotifiedIssues = 2

// Notifier delivers a message to a user.
type Notifier interface {
	Notify(ctx context.Context, notice Notice) error
}

// ReputationLedger adjusts creator reputation.
type ReputationLedger interface {
	AwardCompletion(ctx context.Context, creatorID, submissionID string) error
	AwardQualityBonus(ctx context.Context, creatorID, submissionID string, score int) error
	DeductFailure(ctx context.Context, creatorID, submissionID string) error
}

// PaymentSettler records the payout for an approved submission.
type PaymentSettler interface {
	Settle(ctx context.Context, req PaymentRequest) (dto.PaymentSettlementResponse, error)
}

// SettlementResult summarises one settlement run.
type SettlementResult struct {
	PreviousStatus string
	Status         string
	NewApproval    bool
	NewFailure     bool
	SideEffects    []dto.SideEffectResult
}

// AutoApproved reports whether the submission ended the run approved.
func (r SettlementResult) AutoApproved() bool {
	return r.Status == models.SubmissionStatusApproved
}

// SettlementService applies an evaluation to a submission and triggers its consequences.
type SettlementService interface {
	Settle(ctx context.Context, submission models.Submission, gig models.Gig, evaluation ai.AIEvaluation) (SettlementResult, error)
}

type settlementService struct {
	submissions repository.SubmissionRepository
	notifier    Notifier
	reputation  ReputationLedger
	payments    PaymentSettler
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

type settlementTask struct {
	effect string
	run    func(ctx context.Context) error
}

// NewSettlementService constructs the settlement coordinator.
func NewSettlementService(submissions repository.SubmissionRepository, notifier Notifier, reputation ReputationLedger, payments PaymentSettler, logger zerolog.Logger) SettlementService {
	return &settlementService{
		submissions: submissions,
		notifier:    notifier,
		reputation:  reputation,
		payments:    payments,
		logger:      logger.With().Str("component", "settlement_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/creatorhub-api/internal/service/settlement"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// NextStatus returns the status a submission moves to after an evaluation.
// Rejected submissions stay rejected.
func NextStatus(previous string, passed bool) string {
	if previous == models.SubmissionStatusRejected {
		return models.SubmissionStatusRejected
	}
	if passed {
		return models.SubmissionStatusApproved
	}
	return models.SubmissionStatusRejected
}

// IsNewApproval reports whether a passing evaluation should trigger approval side effects.
func IsNewApproval(previous string, passed bool) bool {
	return passed && previous != models.SubmissionStatusApproved && previous != models.SubmissionStatusRejected
}

// IsNewFailure reports whether a failing evaluation should trigger failure side effects.
func IsNewFailure(previous string, passed bool) bool {
	if passed {
		return false
	}
	return previous == models.SubmissionStatusSubmitted || previous == models.SubmissionStatusApproved
}

// Settle commits the evaluation guarded by the submission's observed status, then runs side effects.
// Side effect failures are reported in the result and never returned as errors.
func (s *settlementService) Settle(ctx context.Context, submission models.Submission, gig models.Gig, evaluation ai.AIEvaluation) (SettlementResult, error) {
	previous := submission.Status
	passed := evaluation.Compliance.Passed

	result := SettlementResult{
		PreviousStatus: previous,
		Status:         NextStatus(previous, passed),
		NewApproval:    IsNewApproval(previous, passed),
		NewFailure:     IsNewFailure(previous, passed),
		SideEffects:    []dto.SideEffectResult{},
	}

	spanCtx, span := s.tracer.Start(ctx, "settlement.settle", trace.WithAttributes(
		attribute.String("submission.id", submission.ID),
		attribute.String("submission.previous_status", previous),
		attribute.String("submission.status", result.Status),
	))
	defer span.End()

	err := s.submissions.CommitEvaluation(spanCtx, repository.EvaluationCommit{
		SubmissionID:   submission.ID,
		PreviousStatus: previous,
		Status:         result.Status,
		Evaluation:     models.NewEvaluationRecord(evaluation),
		UpdatedAt:      s.now(),
	})
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, repository.ErrStaleSubmission) {
			s.logger.Warn().Str("submission_id", submission.ID).Str("previous_status", previous).Msg("evaluation lost a concurrent settlement")
			return SettlementResult{}, ErrEvaluationConflict
		}
		return SettlementResult{}, fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}

	// Side effects outlive request cancellation once the commit has succeeded.
	effectCtx := context.WithoutCancel(spanCtx)

	var tasks []settlementTask
	switch {
	case result.NewApproval:
		tasks = s.approvalTasks(submission, gig, evaluation)
	case result.NewFailure:
		tasks = s.failureTasks(submission, gig, evaluation)
	}

	for _, task := range tasks {
		result.SideEffects = append(result.SideEffects, s.runTask(effectCtx, submission.ID, task))
	}

	s.logger.Info().
		Str("submission_id", submission.ID).
		Str("previous_status", previous).
		Str("status", result.Status).
		Bool("new_approval", result.NewApproval).
		Bool("new_failure", result.NewFailure).
		Int("side_effects", len(result.SideEffects)).
		Msg("submission settled")

	return result, nil
}

func (s *settlementService) approvalTasks(submission models.Submission, gig models.Gig, evaluation ai.AIEvaluation) []settlementTask {
	score := 0
	if evaluation.Quality != nil {
		score = evaluation.Quality.Score
	}

	tasks := []settlementTask{
		{
			effect: EffectApprovalNotification,
			run: func(ctx context.Context) error {
				message := fmt.Sprintf("Your submission for \"%s\" passed automated review with a quality score of %d.", gigTitle(gig), score)
				return s.notifier.Notify(ctx, Notice{
					UserID:       submission.CreatorID,
					Type:         NotificationSubmissionApproved,
					Title:        "Submission approved",
					Message:      message,
					SubmissionID: submission.ID,
					Metadata: map[string]interface{}{
						"submissionId": submission.ID,
						"gigId":        gig.ID,
						"qualityScore": score,
					},
				})
			},
		},
		{
			effect: EffectCompletionReputation,
			run: func(ctx context.Context) error {
				return s.reputation.AwardCompletion(ctx, submission.CreatorID, submission.ID)
			},
		},
	}

	if score >= QualityBonusThreshold {
		tasks = append(tasks, settlementTask{
			effect: EffectQualityBonus,
			run: func(ctx context.Context) error {
				return s.reputation.AwardQualityBonus(ctx, submission.CreatorID, submission.ID, score)
			},
		})
	}

	return append(tasks, settlementTask{
		effect: EffectPayment,
		run: func(ctx context.Context) error {
			_, err := s.payments.Settle(ctx, PaymentRequest{
				SubmissionID: submission.ID,
				GigID:        gig.ID,
				CreatorID:    submission.CreatorID,
				BrandID:      gig.BrandID,
				Gig:          gig,
				Submission:   submission,
			})
			return err
		},
	})
}

func (s *settlementService) failureTasks(submission models.Submission, gig models.Gig, evaluation ai.AIEvaluation) []settlementTask {
	issues := evaluation.Compliance.Issues
	if len(issues) > maxNotifiedIssues {
		issues = issues[:maxNotifiedIssues]
	}

	return []settlementTask{
		{
			effect: EffectFailureNotification,
			run: func(ctx context.Context) error {
				message := fmt.Sprintf("Your submission for \"%s\" needs changes before it can be approved.", gigTitle(gig))
				if len(issues) > 0 {
					message += " Issues: " + strings.Join(issues, "; ")
				}
				return s.notifier.Notify(ctx, Notice{
					UserID:       submission.CreatorID,
					Type:         NotificationSubmissionRejected,
					Title:        "Submission needs changes",
					Message:      message,
					SubmissionID: submission.ID,
					Metadata: map[string]interface{}{
						"submissionId": submission.ID,
						"gigId":        gig.ID,
						"issues":       issues,
					},
				})
			},
		},
		{
			effect: EffectFailureReputation,
			run: func(ctx context.Context) error {
				return s.reputation.DeductFailure(ctx, submission.CreatorID, submission.ID)
			},
		},
	}
}

func (s *settlementService) runTask(ctx context.Context, submissionID string, task settlementTask) (outcome dto.SideEffectResult) {
	outcome = dto.SideEffectResult{Effect: task.effect, Succeeded: true}

	defer func() {
		if recovered := recover(); recovered != nil {
			outcome = dto.SideEffectResult{Effect: task.effect, Error: fmt.Sprintf("panic: %v", recovered)}
		}

		label := "success"
		if !outcome.Succeeded {
			label = "failure"
			s.logger.Error().
				Str("submission_id", submissionID).
				Str("effect", task.effect).
				Str("error", outcome.Error).
				Msg("settlement side effect failed")
		}
		observability.SettlementEffects().WithLabelValues(task.effect, label).Inc()
	}()

	if err := task.run(ctx); err != nil {
		outcome = dto.SideEffectResult{Effect: task.effect, Error: err.Error()}
	}

	return outcome
}

func gigTitle(gig models.Gig) string {
	if title := strings.TrimSpace(gig.Title); title != "" {
		return title
	}
	return gig.ID
}
