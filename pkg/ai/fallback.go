package ai

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const defaultFallbackScore = 50

var (
	affirmativePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\byes\b`),
		regexp.MustCompile(`(?i)\bis about\b`),
		regexp.MustCompile(`(?i)\brelated to\b`),
		regexp.MustCompile(`(?i)showcase`),
		regexp.MustCompile(`(?i)\bvisible\b`),
		regexp.MustCompile(`(?i)\bclearly\b`),
		regexp.MustCompile(`(?i)\bcan see\b`),
	}
	negationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bno\b`),
		regexp.MustCompile(`(?i)\bnot about\b`),
		regexp.MustCompile(`(?i)\bcannot see\b`),
		regexp.MustCompile(`(?i)\bnot visible\b`),
		regexp.MustCompile(`(?i)\bnot clear`),
	}

	ratePattern       = regexp.MustCompile(`(?i)\brat(?:e|ed|ing)\b[^\d\n]{0,40}(\d{1,3})\b`)
	scorePattern      = regexp.MustCompile(`(?i)\bscore[sd]?\b[^\d\n]{0,40}(\d{1,3})\b`)
	standalonePattern = regexp.MustCompile(`\b(\d{1,3})\b`)
	sentencePattern   = regexp.MustCompile(`[.!?\n]+`)

	improvementWords = []string{"improve", "better", "could", "should", "suggest"}
)

// ParseNaturalLanguage infers an evaluation from prose when the model returned no JSON object.
// Quality is always attached so the audit record carries a score regardless of compliance.
func ParseNaturalLanguage(raw, productName string) AIEvaluation {
	passed := inferCompliance(raw, productName)
	score := inferScore(raw)
	derived := clamp(int(math.Round(float64(score)/5)), 0, MaxBreakdownScore)

	return AIEvaluation{
		Compliance: newCompliance(passed),
		Quality: &QualityScore{
			Score: score,
			Breakdown: QualityBreakdown{
				Hook:           derived,
				Lighting:       derived,
				ProductClarity: derived,
				Authenticity:   derived,
				Editing:        derived,
			},
			ImprovementTips: inferTips(raw, score),
		},
		Timestamp: time.Now().UTC(),
		Source:    SourceNaturalLanguage,
	}
}

func inferCompliance(raw, productName string) bool {
	for _, pattern := range negationPatterns {
		if pattern.MatchString(raw) {
			return false
		}
	}

	product := strings.ToLower(strings.TrimSpace(productName))
	if product != "" && product != defaultProductLine && strings.Contains(strings.ToLower(raw), product) {
		return true
	}
	for _, pattern := range affirmativePatterns {
		if pattern.MatchString(raw) {
			return true
		}
	}
	return false
}

func inferScore(raw string) int {
	for _, pattern := range []*regexp.Regexp{ratePattern, scorePattern, standalonePattern} {
		for _, match := range pattern.FindAllStringSubmatch(raw, -1) {
			if value, ok := scoreInRange(match[1]); ok {
				return value
			}
		}
	}

	if line := lastNonEmptyLine(raw); line != "" {
		if value, ok := scoreInRange(strings.Trim(line, " .%*")); ok {
			return value
		}
	}
	return defaultFallbackScore
}

func scoreInRange(token string) (int, bool) {
	value, err := strconv.Atoi(token)
	if err != nil || value < 1 || value > MaxQualityScore {
		return 0, false
	}
	return value, true
}

func lastNonEmptyLine(raw string) string {
	lines := strings.Split(raw, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if trimmed := strings.TrimSpace(lines[i]); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func inferTips(raw string, score int) []string {
	tips := make([]string, 0)
	for _, sentence := range sentencePattern.Split(raw, -1) {
		sentence = strings.TrimSpace(sentence)
		if len(sentence) < 20 || len(sentence) > 200 {
			continue
		}
		lower := strings.ToLower(sentence)
		for _, word := range improvementWords {
			if strings.Contains(lower, word) {
				tips = append(tips, sentence)
				break
			}
		}
	}
	if len(tips) > 0 {
		return tips
	}

	switch {
	case score < 50:
		return []string{"Make sure the product is clearly visible and featured prominently throughout the video."}
	case score < 75:
		return []string{"Solid effort. Tighten the opening hook and improve lighting so the product stands out more."}
	default:
		return []string{"Great work. The video showcases the product well, keep this style for future content."}
	}
}
