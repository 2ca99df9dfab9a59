package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	invocationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "creatorhub",
		Subsystem: "ai",
		Name:      "invocation_duration_seconds",
		Help:      "Duration of video model invocations including shape fallbacks",
	}, []string{"provider"})

	invocationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "creatorhub",
		Subsystem: "ai",
		Name:      "invocation_attempts_total",
		Help:      "Model invocation attempts by parameter shape and outcome",
	}, []string{"provider", "shape", "outcome"})

	invocationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "creatorhub",
		Subsystem: "ai",
		Name:      "invocation_failures_total",
		Help:      "Number of model invocations that produced no usable output",
	}, []string{"provider"})
)

// ErrModelUnavailable indicates every known parameter shape was rejected by the provider.
var ErrModelUnavailable = errors.New("model rejected all known parameter shapes")

// ErrUnauthorized indicates the provider refused the configured credentials.
var ErrUnauthorized = errors.New("model provider rejected credentials")

// ErrEmptyResponse indicates the provider answered without any text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// ParameterError is returned by transports when the provider rejects the request's input fields.
type ParameterError struct {
	Param   string
	Message string
}

func (e *ParameterError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("unrecognized model parameter %q: %s", e.Param, e.Message)
	}
	return fmt.Sprintf("unrecognized model parameters: %s", e.Message)
}

// IsParameterError reports whether err is a provider-side input shape rejection.
func IsParameterError(err error) bool {
	var paramErr *ParameterError
	return errors.As(err, &paramErr)
}

// InvocationError wraps a failed model call. Callers may re-run the whole pipeline when Retryable is true.
type InvocationError struct {
	Provider string
	Attempts int
	Err      error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("%s invocation failed after %d attempt(s): %v", e.Provider, e.Attempts, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// Retryable reports whether re-invoking later may succeed.
func (e *InvocationError) Retryable() bool {
	return !errors.Is(e.Err, ErrUnauthorized)
}

// InputSchema describes the input fields a model accepts.
type InputSchema struct {
	Properties map[string]string
	Raw        json.RawMessage
}

// Transport performs the provider-specific request.
type Transport interface {
	Name() string
	DescribeInput(ctx context.Context) (InputSchema, error)
	Predict(ctx context.Context, input map[string]interface{}) (interface{}, error)
}

type inputShape struct {
	name     string
	video    string
	prompt   string
	system   bool
	audioOff []string
}

// fallbackShapes are parameter layouts the provider has accepted in the past, tried in order.
var fallbackShapes = []inputShape{
	{name: "video_prompt_system", video: "video", prompt: "prompt", system: true, audioOff: []string{"generate_audio", "use_audio_in_video"}},
	{name: "video_prompt_audio", video: "video", prompt: "prompt", audioOff: []string{"use_audio_in_video"}},
	{name: "video_prompt", video: "video", prompt: "prompt"},
	{name: "video_url_prompt", video: "video_url", prompt: "prompt"},
	{name: "media_prompt", video: "media", prompt: "prompt"},
	{name: "input_video_question", video: "input_video", prompt: "question"},
}

var (
	videoFieldCandidates  = []string{"video", "video_url", "input_video", "media", "video_path"}
	promptFieldCandidates = []string{"prompt", "question", "text", "instruction", "query"}
	systemFieldCandidates = []string{"system_prompt", "system"}
	knownAudioFields      = []string{"generate_audio", "use_audio_in_video"}
)

// InvokerConfig configures an Invoker.
type InvokerConfig struct {
	SystemPrompt string
	Logger       zerolog.Logger
}

// Invoker calls the video model, discovering its input shape and falling back through known shapes.
type Invoker struct {
	transport    Transport
	systemPrompt string
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// NewInvoker builds an Invoker on top of the given transport.
func NewInvoker(transport Transport, cfg InvokerConfig) *Invoker {
	system := strings.TrimSpace(cfg.SystemPrompt)
	if system == "" {
		system = "You are a strict brand-safety and creative quality reviewer for short marketing videos. Answer only with JSON."
	}
	return &Invoker{
		transport:    transport,
		systemPrompt: system,
		logger:       cfg.Logger.With().Str("component", "ai_invoker").Str("provider", transport.Name()).Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/creatorhub-api/pkg/ai/invoker"),
		now:          time.Now,
	}
}

// Invoke sends the video and prompt to the model and returns its raw text answer.
func (i *Invoker) Invoke(parent context.Context, videoURL, prompt string) (string, error) {
	provider := i.transport.Name()
	ctx, span := i.tracer.Start(parent, "ai.invoke", trace.WithAttributes(
		attribute.String("ai.provider", provider),
	))
	defer span.End()

	start := i.now()
	defer func() {
		invocationDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	}()

	attempts := 0
	fail := func(err error) (string, error) {
		invocationFailures.WithLabelValues(provider).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", &InvocationError{Provider: provider, Attempts: attempts, Err: err}
	}

	candidates := make([]namedInput, 0, len(fallbackShapes)+1)
	if guess, ok := i.bestGuess(ctx, videoURL, prompt); ok {
		candidates = append(candidates, guess)
	}
	for _, shape := range fallbackShapes {
		candidates = append(candidates, namedInput{name: shape.name, input: shape.build(videoURL, prompt, i.systemPrompt)})
	}

	for _, candidate := range candidates {
		attempts++
		output, err := i.transport.Predict(ctx, candidate.input)
		if err != nil {
			if IsParameterError(err) {
				invocationAttempts.WithLabelValues(provider, candidate.name, "rejected").Inc()
				i.logger.Warn().Err(err).Str("shape", candidate.name).Msg("model rejected parameter shape, trying next")
				continue
			}
			invocationAttempts.WithLabelValues(provider, candidate.name, "error").Inc()
			return fail(err)
		}

		invocationAttempts.WithLabelValues(provider, candidate.name, "accepted").Inc()
		text := strings.TrimSpace(NormalizeOutput(output))
		if text == "" {
			return fail(ErrEmptyResponse)
		}

		span.SetAttributes(attribute.String("ai.shape", candidate.name), attribute.Int("ai.attempts", attempts))
		i.logger.Debug().Str("shape", candidate.name).Int("attempts", attempts).Int("response_length", len(text)).Msg("model invocation succeeded")
		return text, nil
	}

	return fail(ErrModelUnavailable)
}

type namedInput struct {
	name  string
	input map[string]interface{}
}

func (s inputShape) build(videoURL, prompt, system string) map[string]interface{} {
	input := map[string]interface{}{
		s.video:  videoURL,
		s.prompt: prompt,
	}
	if s.system {
		input["system_prompt"] = system
	}
	for _, key := range s.audioOff {
		input[key] = false
	}
	return input
}

// bestGuess builds an input from the provider's advertised schema. It reports false when discovery
// fails or the schema lacks a recognizable video or prompt field.
func (i *Invoker) bestGuess(ctx context.Context, videoURL, prompt string) (namedInput, bool) {
	schema, err := i.transport.DescribeInput(ctx)
	if err != nil {
		i.logger.Warn().Err(err).Msg("model input discovery failed, using known shapes")
		return namedInput{}, false
	}

	videoKey := firstProperty(schema.Properties, videoFieldCandidates)
	promptKey := firstProperty(schema.Properties, promptFieldCandidates)
	if videoKey == "" || promptKey == "" {
		i.logger.Warn().Msg("model schema has no recognizable video or prompt field")
		return namedInput{}, false
	}

	input := map[string]interface{}{
		videoKey:  videoURL,
		promptKey: prompt,
	}
	if systemKey := firstProperty(schema.Properties, systemFieldCandidates); systemKey != "" {
		input[systemKey] = i.systemPrompt
	}
	for name, kind := range schema.Properties {
		if isAudioToggle(name, kind) {
			input[name] = false
		}
	}

	if err := validateInput(schema.Raw, input); err != nil {
		i.logger.Warn().Err(err).Msg("discovered input failed schema validation, using known shapes")
		return namedInput{}, false
	}

	return namedInput{name: "discovered", input: input}, true
}

func firstProperty(properties map[string]string, candidates []string) string {
	for _, candidate := range candidates {
		if _, ok := properties[candidate]; ok {
			return candidate
		}
	}
	return ""
}

func isAudioToggle(name, kind string) bool {
	for _, known := range knownAudioFields {
		if name == known {
			return true
		}
	}
	return kind == "boolean" && strings.Contains(strings.ToLower(name), "audio")
}

func validateInput(raw json.RawMessage, input map[string]interface{}) error {
	if len(raw) == 0 {
		return nil
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("model-input.json", bytes.NewReader(raw)); err != nil {
		return nil
	}
	schema, err := compiler.Compile("model-input.json")
	if err != nil {
		// Provider schemas often carry unresolvable $refs; skip local validation for those.
		return nil
	}

	return schema.Validate(input)
}

// NormalizeOutput converts a provider output value into plain text.
func NormalizeOutput(output interface{}) string {
	switch v := output.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]interface{}:
		if text, ok := v["text"].(string); ok {
			return text
		}
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if text, ok := item.(string); ok {
				parts = append(parts, text)
				continue
			}
			parts = append(parts, NormalizeOutput(item))
		}
		return strings.Join(parts, "\n")
	case []string:
		return strings.Join(v, "\n")
	}

	encoded, err := json.Marshal(output)
	if err != nil {
		return fmt.Sprintf("%v", output)
	}
	return string(encoded)
}
