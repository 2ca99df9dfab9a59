package ai

import (
	"context"
	"time"
)

// ParseSource identifies which interpreter produced an evaluation.
type ParseSource string

const (
	SourceStructured      ParseSource = "structured"
	SourceNaturalLanguage ParseSource = "natural_language"
)

// Score bounds.
const (
	MaxQualityScore   = 100
	MaxBreakdownScore = 20
)

// ComplianceChecks mirrors the individual requirements the model is asked to verify.
type ComplianceChecks struct {
	ProductVisible      bool `json:"productVisible"`
	RequiredMentions    bool `json:"requiredMentions"`
	DurationCorrect     bool `json:"durationCorrect"`
	AudioClear          bool `json:"audioClear"`
	NoProhibitedContent bool `json:"noProhibitedContent"`
}

// ComplianceCheck is the binary compliance verdict. Issues is empty iff Passed.
type ComplianceCheck struct {
	Passed bool             `json:"passed"`
	Issues []string         `json:"issues"`
	Checks ComplianceChecks `json:"checks"`
}

// QualityBreakdown holds the five 0-20 sub-scores.
type QualityBreakdown struct {
	Hook           int `json:"hook"`
	Lighting       int `json:"lighting"`
	ProductClarity int `json:"productClarity"`
	Authenticity   int `json:"authenticity"`
	Editing        int `json:"editing"`
}

// QualityScore is the 0-100 creative effectiveness assessment.
type QualityScore struct {
	Score           int              `json:"score"`
	Breakdown       QualityBreakdown `json:"breakdown"`
	ImprovementTips []string         `json:"improvementTips"`
}

// AIEvaluation is the normalized result of one evaluation run. Values are never mutated after construction.
type AIEvaluation struct {
	Compliance ComplianceCheck `json:"compliance"`
	Quality    *QualityScore   `json:"quality,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Source     ParseSource     `json:"source"`
}

// GigBrief is the campaign metadata used to build the model instruction.
type GigBrief struct {
	Title                string
	Description          string
	ProductDescription   string
	Category             string
	Hooks                []string
	TalkingPoints        []string
	Dos                  []string
	Donts                []string
	AIComplianceRequired bool
}

// Evaluator describes a component capable of judging a submitted video against a gig.
type Evaluator interface {
	Evaluate(ctx context.Context, videoURL string, gig GigBrief) (AIEvaluation, error)
}

const nonCompliantIssue = "Video does not meet compliance requirements"

func newCompliance(passed bool) ComplianceCheck {
	issues := []string{}
	if !passed {
		issues = append(issues, nonCompliantIssue)
	}
	return ComplianceCheck{
		Passed: passed,
		Issues: issues,
		Checks: ComplianceChecks{
			ProductVisible:      passed,
			RequiredMentions:    passed,
			DurationCorrect:     true,
			AudioClear:          true,
			NoProhibitedContent: passed,
		},
	}
}

func clamp(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}

func clampBreakdown(b QualityBreakdown) QualityBreakdown {
	return QualityBreakdown{
		Hook:           clamp(b.Hook, 0, MaxBreakdownScore),
		Lighting:       clamp(b.Lighting, 0, MaxBreakdownScore),
		ProductClarity: clamp(b.ProductClarity, 0, MaxBreakdownScore),
		Authenticity:   clamp(b.Authenticity, 0, MaxBreakdownScore),
		Editing:        clamp(b.Editing, 0, MaxBreakdownScore),
	}
}
