package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/creatorhub-api/internal/dto"
	"github.com/noah-isme/creatorhub-api/internal/models"
	"github.com/noah-isme/creatorhub-api/internal/repository"
	"github.com/noah-isme/creatorhub-api/pkg/ai"
)

type commitRepoStub struct {
	repository.SubmissionRepository
	commits []repository.EvaluationCommit
	err     error
}

func (s *commitRepoStub) CommitEvaluation(ctx context.Context, commit repository.EvaluationCommit) error {
	if s.err != nil {
		return s.err
	}
	s.commits = append(s.commits, commit)
	return nil
}

type notifierStub struct {
	calls []string
	last  map[string]interface{}
	msg   string
	err   error
}

func (n *notifierStub) Notify(ctx context.Context, notice Notice) error {
	n.calls = append(n.calls, notice.Type)
	n.last = notice.Metadata
	n.msg = notice.Message
	return n.err
}

type ledgerStub struct {
	completions int
	bonuses     []int
	failures    int
	panicOn     string
}

func (l *ledgerStub) AwardCompletion(ctx context.Context, creatorID, submissionID string) error {
	if l.panicOn == "completion" {
		panic("ledger offline")
	}
	l.completions++
	return nil
}

func (l *ledgerStub) AwardQualityBonus(ctx context.Context, creatorID, submissionID string, score int) error {
	l.bonuses = append(l.bonuses, score)
	return nil
}

func (l *ledgerStub) DeductFailure(ctx context.Context, creatorID, submissionID string) error {
	l.failures++
	return nil
}

type paymentStub struct {
	requests []PaymentRequest
	err      error
}

func (p *paymentStub) Settle(ctx context.Context, req PaymentRequest) (dto.PaymentSettlementResponse, error) {
	p.requests = append(p.requests, req)
	return dto.PaymentSettlementResponse{SubmissionID: req.SubmissionID, Created: true}, p.err
}

type settlementFixture struct {
	repo     *commitRepoStub
	notifier *notifierStub
	ledger   *ledgerStub
	payments *paymentStub
	service  SettlementService
}

func newSettlementFixture() *settlementFixture {
	f := &settlementFixture{
		repo:     &commitRepoStub{},
		notifier: &notifierStub{},
		ledger:   &ledgerStub{},
		payments: &paymentStub{},
	}
	f.service = NewSettlementService(f.repo, f.notifier, f.ledger, f.payments, testLogger())
	return f
}

func testSubmission(status string) models.Submission {
	return models.Submission{
		ID:        "sub-1",
		GigID:     "gig-1",
		CreatorID: "creator-1",
		Status:    status,
		Files:     datatypes.NewJSONType(models.SubmissionFiles{Videos: []string{"https://cdn.example.com/v.mp4"}}),
	}
}

func testGig() models.Gig {
	return models.Gig{
		ID:         "gig-1",
		BrandID:    "brand-1",
		Title:      "Glow Serum Launch",
		BasePayout: decimal.RequireFromString("300"),
		Currency:   "USD",
	}
}

func passingEvaluation(score int) ai.AIEvaluation {
	return ai.AIEvaluation{
		Compliance: ai.ComplianceCheck{Passed: true, Issues: []string{}},
		Quality:    &ai.QualityScore{Score: score, ImprovementTips: []string{"Open with the product in frame"}},
		Timestamp:  time.Now().UTC(),
		Source:     ai.SourceStructured,
	}
}

func failingEvaluation(issues ...string) ai.AIEvaluation {
	return ai.AIEvaluation{
		Compliance: ai.ComplianceCheck{Passed: false, Issues: issues},
		Quality:    &ai.QualityScore{Score: 40},
		Timestamp:  time.Now().UTC(),
		Source:     ai.SourceStructured,
	}
}

func effectNames(results []dto.SideEffectResult) []string {
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Effect)
	}
	return names
}

func TestSettleSubmittedPassApprovesAndPays(t *testing.T) {
	f := newSettlementFixture()

	result, err := f.service.Settle(context.Background(), testSubmission(models.SubmissionStatusSubmitted), testGig(), passingEvaluation(92))
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusApproved, result.Status)
	require.True(t, result.AutoApproved())
	require.True(t, result.NewApproval)
	require.False(t, result.NewFailure)

	require.Len(t, f.repo.commits, 1)
	commit := f.repo.commits[0]
	require.Equal(t, models.SubmissionStatusSubmitted, commit.PreviousStatus)
	require.Equal(t, models.SubmissionStatusApproved, commit.Status)
	require.Equal(t, 92, commit.Evaluation.QualityScore)
	require.False(t, commit.UpdatedAt.IsZero())

	require.Equal(t, []string{NotificationSubmissionApproved}, f.notifier.calls)
	require.Equal(t, "sub-1", f.notifier.last["submissionId"])
	require.Equal(t, 1, f.ledger.completions)
	require.Equal(t, []int{92}, f.ledger.bonuses)
	require.Len(t, f.payments.requests, 1)
	require.Equal(t, "brand-1", f.payments.requests[0].BrandID)
	require.Equal(t, "creator-1", f.payments.requests[0].CreatorID)

	require.Equal(t, []string{EffectApprovalNotification, EffectCompletionReputation, EffectQualityBonus, EffectPayment}, effectNames(result.SideEffects))
	for _, effect := range result.SideEffects {
		require.True(t, effect.Succeeded, effect.Effect)
	}
}

func TestSettleSkipsBonusBelowThreshold(t *testing.T) {
	f := newSettlementFixture()

	result, err := f.service.Settle(context.Background(), testSubmission(models.SubmissionStatusNeedsChanges), testGig(), passingEvaluation(65))
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusApproved, result.Status)
	require.Empty(t, f.ledger.bonuses)
	require.Equal(t, 1, f.ledger.completions)
	require.Equal(t, []string{EffectApprovalNotification, EffectCompletionReputation, EffectPayment}, effectNames(result.SideEffects))
}

func TestSettleApprovedFailDemotes(t *testing.T) {
	f := newSettlementFixture()

	eval := failingEvaluation("Product never shown", "Missing discount code", "Audio muffled")
	result, err := f.service.Settle(context.Background(), testSubmission(models.SubmissionStatusApproved), testGig(), eval)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusRejected, result.Status)
	require.False(t, result.AutoApproved())
	require.True(t, result.NewFailure)

	require.Equal(t, []string{NotificationSubmissionRejected}, f.notifier.calls)
	require.Contains(t, f.notifier.msg, "Product never shown; Missing discount code")
	require.NotContains(t, f.notifier.msg, "Audio muffled")
	require.Equal(t, []string{"Product never shown", "Missing discount code"}, f.notifier.last["issues"])
	require.Equal(t, 1, f.ledger.failures)
	require.Empty(t, f.payments.requests)
	require.Zero(t, f.ledger.completions)
}

func TestSettleRejectedStaysRejectedWithoutEffects(t *testing.T) {
	for name, eval := range map[string]ai.AIEvaluation{
		"fail": failingEvaluation("Product never shown"),
		"pass": passingEvaluation(95),
	} {
		t.Run(name, func(t *testing.T) {
			f := newSettlementFixture()

			result, err := f.service.Settle(context.Background(), testSubmission(models.SubmissionStatusRejected), testGig(), eval)
			require.NoError(t, err)
			require.Equal(t, models.SubmissionStatusRejected, result.Status)
			require.Empty(t, result.SideEffects)
			require.Len(t, f.repo.commits, 1)
			require.Empty(t, f.notifier.calls)
			require.Empty(t, f.payments.requests)
			require.Zero(t, f.ledger.failures)
		})
	}
}

func TestSettleApprovedPassIsIdempotent(t *testing.T) {
	f := newSettlementFixture()

	result, err := f.service.Settle(context.Background(), testSubmission(models.SubmissionStatusApproved), testGig(), passingEvaluation(90))
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusApproved, result.Status)
	require.True(t, result.AutoApproved())
	require.False(t, result.NewApproval)
	require.Empty(t, result.SideEffects)
	require.Len(t, f.repo.commits, 1)
	require.Empty(t, f.payments.requests)
	require.Zero(t, f.ledger.completions)
}

func TestSettleNeedsChangesFailRejectsQuietly(t *testing.T) {
	f := newSettlementFixture()

	result, err := f.service.Settle(context.Background(), testSubmission(models.SubmissionStatusNeedsChanges), testGig(), failingEvaluation("Product never shown"))
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusRejected, result.Status)
	require.False(t, result.NewFailure)
	require.Empty(t, result.SideEffects)
	require.Empty(t, f.notifier.calls)
}

func TestSettleIsolatesSideEffectFailures(t *testing.T) {
	f := newSettlementFixture()
	f.notifier.err = errors.New("smtp down")
	f.ledger.panicOn = "completion"

	result, err := f.service.Settle(context.Background(), testSubmission(models.SubmissionStatusSubmitted), testGig(), passingEvaluation(85))
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusApproved, result.Status)
	require.Len(t, result.SideEffects, 4)

	require.False(t, result.SideEffects[0].Succeeded)
	require.Equal(t, "smtp down", result.SideEffects[0].Error)
	require.False(t, result.SideEffects[1].Succeeded)
	require.Contains(t, result.SideEffects[1].Error, "ledger offline")
	require.True(t, result.SideEffects[2].Succeeded)
	require.True(t, result.SideEffects[3].Succeeded)

	require.Equal(t, []int{85}, f.ledger.bonuses)
	require.Len(t, f.payments.requests, 1)
}

func TestSettleMapsCommitErrors(t *testing.T) {
	f := newSettlementFixture()
	f.repo.err = repository.ErrStaleSubmission

	_, err := f.service.Settle(context.Background(), testSubmission(models.SubmissionStatusSubmitted), testGig(), passingEvaluation(90))
	require.ErrorIs(t, err, ErrEvaluationConflict)
	require.Empty(t, f.notifier.calls)
	require.Empty(t, f.payments.requests)

	f.repo.err = errors.New("connection reset")
	_, err = f.service.Settle(context.Background(), testSubmission(models.SubmissionStatusSubmitted), testGig(), passingEvaluation(90))
	require.ErrorIs(t, err, ErrPersistenceFailed)
	require.Contains(t, err.Error(), "connection reset")
}

func TestSettleRunsEffectsAfterCallerCancels(t *testing.T) {
	f := newSettlementFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.service.Settle(ctx, testSubmission(models.SubmissionStatusSubmitted), testGig(), passingEvaluation(50))
	require.NoError(t, err)
	require.Len(t, result.SideEffects, 3)
}

func TestStatusRules(t *testing.T) {
	cases := []struct {
		previous    string
		passed      bool
		next        string
		newApproval bool
		newFailure  bool
	}{
		{models.SubmissionStatusSubmitted, true, models.SubmissionStatusApproved, true, false},
		{models.SubmissionStatusNeedsChanges, true, models.SubmissionStatusApproved, true, false},
		{models.SubmissionStatusApproved, true, models.SubmissionStatusApproved, false, false},
		{models.SubmissionStatusRejected, true, models.SubmissionStatusRejected, false, false},
		{models.SubmissionStatusSubmitted, false, models.SubmissionStatusRejected, false, true},
		{models.SubmissionStatusApproved, false, models.SubmissionStatusRejected, false, true},
		{models.SubmissionStatusNeedsChanges, false, models.SubmissionStatusRejected, false, false},
		{models.SubmissionStatusRejected, false, models.SubmissionStatusRejected, false, false},
	}

	for _, tc := range cases {
		require.Equal(t, tc.next, NextStatus(tc.previous, tc.passed), "%s/%v", tc.previous, tc.passed)
		require.Equal(t, tc.newApproval, IsNewApproval(tc.previous, tc.passed), "%s/%v", tc.previous, tc.passed)
		require.Equal(t, tc.newFailure, IsNewFailure(tc.previous, tc.passed), "%s/%v", tc.previous, tc.passed)
	}
}
