package ai

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var evaluationsParsed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "creatorhub",
	Subsystem: "ai",
	Name:      "evaluations_parsed_total",
	Help:      "Evaluations produced, by interpreter and compliance outcome",
}, []string{"source", "compliant"})

// Caller returns the model's raw text answer for a video and prompt.
type Caller interface {
	Invoke(ctx context.Context, videoURL, prompt string) (string, error)
}

// PipelineEvaluator builds the prompt, calls the model once and interprets the answer.
type PipelineEvaluator struct {
	caller Caller
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewPipelineEvaluator constructs the evaluation pipeline.
func NewPipelineEvaluator(caller Caller, logger zerolog.Logger) *PipelineEvaluator {
	return &PipelineEvaluator{
		caller: caller,
		logger: logger.With().Str("component", "ai_evaluator").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/creatorhub-api/pkg/ai/evaluator"),
	}
}

// Evaluate judges the video. A response without a JSON object is interpreted as prose;
// a parse failure never re-invokes the model.
func (e *PipelineEvaluator) Evaluate(parent context.Context, videoURL string, gig GigBrief) (AIEvaluation, error) {
	ctx, span := e.tracer.Start(parent, "ai.evaluate")
	defer span.End()

	raw, err := e.caller.Invoke(ctx, videoURL, BuildPrompt(gig))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return AIEvaluation{}, err
	}

	evaluation, err := ParseStructured(raw)
	if err != nil {
		e.logger.Warn().Err(err).Int("response_length", len(raw)).Msg("structured parse failed, using natural-language fallback")
		evaluation = ParseNaturalLanguage(raw, productLine(gig))
	}

	compliant := "false"
	if evaluation.Compliance.Passed {
		compliant = "true"
	}
	evaluationsParsed.WithLabelValues(string(evaluation.Source), compliant).Inc()

	span.SetAttributes(
		attribute.String("ai.parse_source", string(evaluation.Source)),
		attribute.Bool("ai.compliance_passed", evaluation.Compliance.Passed),
	)
	if evaluation.Quality != nil {
		span.SetAttributes(attribute.Int("ai.quality_score", evaluation.Quality.Score))
	}

	return evaluation, nil
}
