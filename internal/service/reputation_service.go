package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/creatorhub-api/internal/dto"
	"github.com/noah-isme/creatorhub-api/internal/models"
	"github.com/noah-isme/creatorhub-api/internal/repository"
)

// Reputation deltas applied by the ledger.
const (
	CompletionReputationDelta = 10
	FailureReputationDelta    = -5
	QualityBonusThreshold     = 70
)

// ErrCreatorRequired indicates a reputation change without a creator.
var ErrCreatorRequired = errors.New("creator id is required")

var qualityBonusTiers = []struct {
	minScore int
	delta    int
}{
	{minScore: 90, delta: 15},
	{minScore: 80, delta: 10},
	{minScore: QualityBonusThreshold, delta: 5},
}

// QualityBonusFor returns the bonus awarded for a quality score, zero below the threshold.
func QualityBonusFor(score int) int {
	for _, tier := range qualityBonusTiers {
		if score >= tier.minScore {
			return tier.delta
		}
	}
	return 0
}

// ReputationService maintains the creator reputation ledger.
type ReputationService interface {
	AwardCompletion(ctx context.Context, creatorID, submissionID string) error
	AwardQualityBonus(ctx context.Context, creatorID, submissionID string, score int) error
	DeductFailure(ctx context.Context, creatorID, submissionID string) error
	Get(ctx context.Context, creatorID string) (dto.ReputationResponse, error)
}

type reputationService struct {
	repo     repository.ReputationRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// NewReputationService constructs the reputation ledger service. The Redis cache is optional.
func NewReputationService(repo repository.ReputationRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) ReputationService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &reputationService{
		repo:     repo,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "reputation_service").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/creatorhub-api/internal/service/reputation"),
	}
}

func reputationCacheKey(creatorID string) string {
	return fmt.Sprintf("reputation:creator:%s", creatorID)
}

func (s *reputationService) AwardCompletion(ctx context.Context, creatorID, submissionID string) error {
	return s.apply(ctx, models.ReputationEvent{
		CreatorID:    creatorID,
		SubmissionID: submissionID,
		Kind:         models.ReputationEventCompletion,
		Delta:        CompletionReputationDelta,
	})
}

func (s *reputationService) AwardQualityBonus(ctx context.Context, creatorID, submissionID string, score int) error {
	delta := QualityBonusFor(score)
	if delta == 0 {
		return nil
	}

	return s.apply(ctx, models.ReputationEvent{
		CreatorID:    creatorID,
		SubmissionID: submissionID,
		Kind:         models.ReputationEventQualityBonus,
		Delta:        delta,
		QualityScore: &score,
	})
}

func (s *reputationService) DeductFailure(ctx context.Context, creatorID, submissionID string) error {
	return s.apply(ctx, models.ReputationEvent{
		CreatorID:    creatorID,
		SubmissionID: submissionID,
		Kind:         models.ReputationEventFailure,
		Delta:        FailureReputationDelta,
	})
}

func (s *reputationService) Get(ctx context.Context, creatorID string) (dto.ReputationResponse, error) {
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return dto.ReputationResponse{}, ErrCreatorRequired
	}

	cacheKey := reputationCacheKey(creatorID)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.ReputationResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				s.logger.Debug().Str("creator_id", creatorID).Msg("reputation cache hit")
				return response, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read reputation cache")
		}
	}

	reputation, err := s.repo.Get(ctx, creatorID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ReputationResponse{}, err
		}
		reputation = models.CreatorReputation{CreatorID: creatorID}
	}

	events, err := s.repo.ListEvents(ctx, creatorID, 20)
	if err != nil {
		return dto.ReputationResponse{}, err
	}

	response := dto.NewReputationResponse(reputation, events)
	if s.cache != nil {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store reputation cache")
			}
		}
	}

	return response, nil
}

func (s *reputationService) apply(ctx context.Context, event models.ReputationEvent) error {
	if strings.TrimSpace(event.CreatorID) == "" {
		return ErrCreatorRequired
	}

	spanCtx, span := s.tracer.Start(ctx, "reputation.apply", trace.WithAttributes(
		attribute.String("reputation.creator_id", event.CreatorID),
		attribute.String("reputation.kind", event.Kind),
		attribute.Int("reputation.delta", event.Delta),
	))
	defer span.End()

	reputation, err := s.repo.Apply(spanCtx, &event)
	if err != nil {
		span.RecordError(err)
		return err
	}

	if s.cache != nil {
		if err := s.cache.Del(spanCtx, reputationCacheKey(event.CreatorID)).Err(); err != nil {
			s.logger.Warn().Err(err).Str("creator_id", event.CreatorID).Msg("failed to invalidate reputation cache")
		}
	}

	s.logger.Info().
		Str("creator_id", event.CreatorID).
		Str("submission_id", event.SubmissionID).
		Str("kind", event.Kind).
		Int("delta", event.Delta).
		Int("score", reputation.Score).
		Msg("reputation updated")

	return nil
}
