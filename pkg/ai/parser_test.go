package ai

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStructuredWellFormedResponse(t *testing.T) {
	raw := "Sure! Here is the review:\n```json\n" + `{
  "compliance": true,
  "quality": 84,
  "breakdown": {"hook": 17, "lighting": 15, "productClarity": 19, "authenticity": 18, "editing": 15},
  "improvementTips": ["Show the packaging within the first three seconds", "Add captions for viewers watching without sound"]
}` + "\n```"

	evaluation, err := ParseStructured(raw)
	require.NoError(t, err)
	require.Equal(t, SourceStructured, evaluation.Source)
	require.True(t, evaluation.Compliance.Passed)
	require.Empty(t, evaluation.Compliance.Issues)
	require.True(t, evaluation.Compliance.Checks.ProductVisible)
	require.NotNil(t, evaluation.Quality)
	require.Equal(t, 84, evaluation.Quality.Score)
	require.Equal(t, QualityBreakdown{Hook: 17, Lighting: 15, ProductClarity: 19, Authenticity: 18, Editing: 15}, evaluation.Quality.Breakdown)
	require.Equal(t, []string{
		"Show the packaging within the first three seconds",
		"Add captions for viewers watching without sound",
	}, evaluation.Quality.ImprovementTips)
	require.False(t, evaluation.Timestamp.IsZero())
}

func TestParseStructuredClampsOutOfRangeValues(t *testing.T) {
	raw := `{"compliance": true, "quality": 140, "breakdown": {"hook": -4, "lighting": 45, "productClarity": 20, "authenticity": 7, "editing": 300}}`

	evaluation, err := ParseStructured(raw)
	require.NoError(t, err)
	require.Equal(t, 100, evaluation.Quality.Score)
	require.Equal(t, QualityBreakdown{Hook: 0, Lighting: 20, ProductClarity: 20, Authenticity: 7, Editing: 20}, evaluation.Quality.Breakdown)

	negative, err := ParseStructured(`{"compliance": false, "quality": -12}`)
	require.NoError(t, err)
	require.Equal(t, 0, negative.Quality.Score)
}

func TestParseStructuredSaturatesHugeNumbers(t *testing.T) {
	raw := `{"compliance": true, "quality": 1e30, "breakdown": {"hook": 99999999999999999999, "lighting": -1e30, "productClarity": 12, "authenticity": 14, "editing": 2.5e3}}`

	evaluation, err := ParseStructured(raw)
	require.NoError(t, err)
	require.Equal(t, 100, evaluation.Quality.Score)
	require.Equal(t, QualityBreakdown{Hook: 20, Lighting: 0, ProductClarity: 12, Authenticity: 14, Editing: 20}, evaluation.Quality.Breakdown)

	malformed, err := ParseStructured(`{"compliance": true, "quality": 1e400, "breakdown": {"hook": 99999999999999999999,},}`)
	require.NoError(t, err)
	require.Equal(t, 100, malformed.Quality.Score)
	require.Equal(t, 20, malformed.Quality.Breakdown.Hook)

	quoted, err := ParseStructured(`{"compliance": true, "quality": "1e30"}`)
	require.NoError(t, err)
	require.Equal(t, 100, quoted.Quality.Score)
}

func TestParseStructuredKeepsQualityWhenNonCompliant(t *testing.T) {
	evaluation, err := ParseStructured(`{"compliance": false, "quality": 61, "breakdown": {"hook": 12}}`)
	require.NoError(t, err)
	require.False(t, evaluation.Compliance.Passed)
	require.Equal(t, []string{"Video does not meet compliance requirements"}, evaluation.Compliance.Issues)
	require.False(t, evaluation.Compliance.Checks.ProductVisible)
	require.True(t, evaluation.Compliance.Checks.DurationCorrect)
	require.True(t, evaluation.Compliance.Checks.AudioClear)
	require.NotNil(t, evaluation.Quality)
	require.Equal(t, 61, evaluation.Quality.Score)
	require.Equal(t, 12, evaluation.Quality.Breakdown.Hook)
}

func TestParseStructuredFiltersPlaceholderTips(t *testing.T) {
	raw := `{"compliance": true, "quality": 70, "improvementTips": ["tip 1", "Consider improving lighting in low-light scenes", "tip2", ""]}`

	evaluation, err := ParseStructured(raw)
	require.NoError(t, err)
	require.Equal(t, []string{"Consider improving lighting in low-light scenes"}, evaluation.Quality.ImprovementTips)
}

func TestParseStructuredRecoversMalformedJSON(t *testing.T) {
	raw := `Review follows
{
  "compliance": true,
  "quality": 78,
  "breakdown": {"hook": 16, "lighting": 14, "productClarity": 18, "authenticity": 15, "editing": 15,},
  "improvementTips": ["Open with the product in the
first two seconds", "tip 2",],
}`

	evaluation, err := ParseStructured(raw)
	require.NoError(t, err)
	require.True(t, evaluation.Compliance.Passed)
	require.NotNil(t, evaluation.Quality)
	require.GreaterOrEqual(t, evaluation.Quality.Score, 0)
	require.LessOrEqual(t, evaluation.Quality.Score, 100)
	require.Equal(t, 78, evaluation.Quality.Score)
	require.Equal(t, 18, evaluation.Quality.Breakdown.ProductClarity)
	require.Equal(t, []string{"Open with the product in the first two seconds"}, evaluation.Quality.ImprovementTips)
}

func TestParseStructuredKeepsBracketsInsideTips(t *testing.T) {
	raw := `{
  "compliance": true,
  "quality": 74,
  "improvementTips": ["Add captions [EN] early in the video", "Show the label [front] before unboxing",],
}`

	evaluation, err := ParseStructured(raw)
	require.NoError(t, err)
	require.Equal(t, 74, evaluation.Quality.Score)
	require.Equal(t, []string{
		"Add captions [EN] early in the video",
		"Show the label [front] before unboxing",
	}, evaluation.Quality.ImprovementTips)
}

func TestParseStructuredDefaultsMissingFields(t *testing.T) {
	evaluation, err := ParseStructured(`{"verdict": "looks fine",}`)
	require.NoError(t, err)
	require.False(t, evaluation.Compliance.Passed)
	require.Equal(t, 0, evaluation.Quality.Score)
	require.Equal(t, []string{noTipsProvided}, evaluation.Quality.ImprovementTips)
}

func TestParseStructuredAcceptsNestedQualityObject(t *testing.T) {
	raw := `{"compliance": "true", "quality": {"score": "88", "breakdown": {"hook": 18, "editing": 19}}, "improvementTips": ["Use a \"before and after\" shot to show results"]}`

	evaluation, err := ParseStructured(raw)
	require.NoError(t, err)
	require.True(t, evaluation.Compliance.Passed)
	require.Equal(t, 88, evaluation.Quality.Score)
	require.Equal(t, 18, evaluation.Quality.Breakdown.Hook)
	require.Equal(t, 19, evaluation.Quality.Breakdown.Editing)
	require.Equal(t, []string{`Use a "before and after" shot to show results`}, evaluation.Quality.ImprovementTips)
}

func TestParseStructuredWithoutObject(t *testing.T) {
	_, err := ParseStructured("yes, the product is visible. 80")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNoJSONObject))
}
