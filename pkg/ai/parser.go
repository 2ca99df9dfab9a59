package ai

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrNoJSONObject indicates the model response contains no brace-delimited object.
var ErrNoJSONObject = errors.New("no json object in model response")

const noTipsProvided = "No specific improvement tips were provided."

var (
	objectPattern       = regexp.MustCompile(`(?s)\{.*\}`)
	controlCharPattern  = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	punctuationPattern  = regexp.MustCompile(`\s*([{}\[\]:,])\s*`)
	compliancePattern   = regexp.MustCompile(`(?i)"compliance"\s*:\s*"?(true|false)"?`)
	qualityPattern      = regexp.MustCompile(`(?i)"quality"\s*:\s*(?:\{\s*"score"\s*:\s*)?"?(-?\d+(?:\.\d+)?(?:[eE][+-]?\d+)?)`)
	tipsArrayPattern    = regexp.MustCompile(`"improvementTips"\s*:\s*\[`)
	quotedStringPattern = regexp.MustCompile(`(?s)"((?:[^"\\]|\\.)*)"`)
	placeholderPattern  = regexp.MustCompile(`(?i)^tip\s*\d+$`)
	whitespacePattern   = regexp.MustCompile(`\s+`)

	breakdownPatterns = map[string]*regexp.Regexp{
		"hook":           breakdownPattern("hook"),
		"lighting":       breakdownPattern("lighting"),
		"productClarity": breakdownPattern("productClarity"),
		"authenticity":   breakdownPattern("authenticity"),
		"editing":        breakdownPattern("editing"),
	}
)

func breakdownPattern(key string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)"` + key + `"\s*:\s*"?(-?\d+(?:\.\d+)?(?:[eE][+-]?\d+)?)`)
}

type structuredFields struct {
	compliance bool
	quality    int
	breakdown  QualityBreakdown
	tips       []string
}

// ParseStructured recovers an evaluation from model text that contains a JSON-like object.
// It returns ErrNoJSONObject when no object can be located so callers can fall back to prose parsing.
// Quality is always attached, including for non-compliant videos.
func ParseStructured(raw string) (AIEvaluation, error) {
	span := objectPattern.FindString(raw)
	if span == "" {
		return AIEvaluation{}, ErrNoJSONObject
	}

	normalized := normalizeJSON(span)

	fields, ok := decodeStrict(normalized)
	if !ok {
		fields = extractFields(normalized)
	}

	tips := extractTips(span)
	if len(tips) == 0 {
		tips = filterTips(fields.tips)
	}
	if len(tips) == 0 {
		tips = []string{noTipsProvided}
	}

	return AIEvaluation{
		Compliance: newCompliance(fields.compliance),
		Quality: &QualityScore{
			Score:           clamp(fields.quality, 0, MaxQualityScore),
			Breakdown:       clampBreakdown(fields.breakdown),
			ImprovementTips: tips,
		},
		Timestamp: time.Now().UTC(),
		Source:    SourceStructured,
	}, nil
}

func normalizeJSON(span string) string {
	cleaned := controlCharPattern.ReplaceAllString(span, " ")
	return strings.TrimSpace(punctuationPattern.ReplaceAllString(cleaned, "$1"))
}

func decodeStrict(text string) (structuredFields, bool) {
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return structuredFields{}, false
	}

	fields := structuredFields{}
	fields.compliance, _ = asBool(payload["compliance"])

	breakdownSource := payload
	switch quality := payload["quality"].(type) {
	case map[string]interface{}:
		fields.quality, _ = asInt(quality["score"])
		if nested, ok := quality["breakdown"].(map[string]interface{}); ok {
			breakdownSource = nested
		}
	default:
		fields.quality, _ = asInt(quality)
	}
	if nested, ok := payload["breakdown"].(map[string]interface{}); ok {
		breakdownSource = nested
	}

	fields.breakdown = QualityBreakdown{
		Hook:           intField(breakdownSource, "hook"),
		Lighting:       intField(breakdownSource, "lighting"),
		ProductClarity: intField(breakdownSource, "productClarity"),
		Authenticity:   intField(breakdownSource, "authenticity"),
		Editing:        intField(breakdownSource, "editing"),
	}

	if items, ok := payload["improvementTips"].([]interface{}); ok {
		for _, item := range items {
			if tip, ok := item.(string); ok {
				fields.tips = append(fields.tips, tip)
			}
		}
	}

	return fields, true
}

func extractFields(text string) structuredFields {
	fields := structuredFields{}
	if match := compliancePattern.FindStringSubmatch(text); match != nil {
		fields.compliance = strings.EqualFold(match[1], "true")
	}
	fields.quality = matchInt(qualityPattern, text)
	fields.breakdown = QualityBreakdown{
		Hook:           matchInt(breakdownPatterns["hook"], text),
		Lighting:       matchInt(breakdownPatterns["lighting"], text),
		ProductClarity: matchInt(breakdownPatterns["productClarity"], text),
		Authenticity:   matchInt(breakdownPatterns["authenticity"], text),
		Editing:        matchInt(breakdownPatterns["editing"], text),
	}
	return fields
}

func extractTips(span string) []string {
	loc := tipsArrayPattern.FindStringIndex(span)
	if loc == nil {
		return nil
	}

	items := quotedStringPattern.FindAllStringSubmatch(arrayBody(span[loc[1]:]), -1)
	tips := make([]string, 0, len(items))
	for _, item := range items {
		tips = append(tips, unescapeTip(item[1]))
	}
	return filterTips(tips)
}

// arrayBody returns text up to the first ']' that sits outside a quoted string,
// or all of text when the array is never closed.
func arrayBody(text string) string {
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		switch ch := text[i]; {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case ch == ']' && !inString:
			return text[:i]
		}
	}
	return text
}

func unescapeTip(value string) string {
	flattened := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ").Replace(value)
	unquoted, err := strconv.Unquote(`"` + flattened + `"`)
	if err != nil {
		unquoted = strings.NewReplacer(`\"`, `"`, `\n`, " ", `\t`, " ", `\\`, `\`).Replace(flattened)
	}
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(unquoted, " "))
}

func filterTips(tips []string) []string {
	filtered := make([]string, 0, len(tips))
	for _, tip := range tips {
		tip = strings.TrimSpace(tip)
		if len(tip) < 4 || placeholderPattern.MatchString(tip) {
			continue
		}
		filtered = append(filtered, tip)
	}
	return filtered
}

func matchInt(pattern *regexp.Regexp, text string) int {
	match := pattern.FindStringSubmatch(text)
	if match == nil {
		return 0
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0
	}
	return roundScore(value)
}

func intField(source map[string]interface{}, key string) int {
	value, _ := asInt(source[key])
	return value
}

func asInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case float64:
		return roundScore(v), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0, false
		}
		return roundScore(parsed), true
	default:
		return 0, false
	}
}

// roundScore rounds v and saturates it to the int32 range so the later clamp
// still sees the sign of out-of-range values.
func roundScore(v float64) int {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int(math.Round(v))
}

func asBool(value interface{}) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "pass", "passed":
			return true, true
		case "false", "no", "fail", "failed":
			return false, true
		}
	}
	return false, false
}
