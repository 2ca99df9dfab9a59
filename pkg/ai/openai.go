package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig defines configuration options for the OpenAI-compatible transport.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAITransport renders candidate inputs into chat completion requests.
type OpenAITransport struct {
	client *openai.Client
	cfg    OpenAIConfig
	logger zerolog.Logger
}

// NewOpenAITransport builds a new transport using the provided configuration.
func NewOpenAITransport(cfg OpenAIConfig) (*OpenAITransport, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 800
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAITransport{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "openai_transport").Logger(),
	}, nil
}

// Name identifies the provider in logs and metrics.
func (t *OpenAITransport) Name() string {
	return "openai"
}

// DescribeInput reports the fields this transport knows how to render.
func (t *OpenAITransport) DescribeInput(ctx context.Context) (InputSchema, error) {
	return InputSchema{Properties: map[string]string{
		"video":         "string",
		"prompt":        "string",
		"system_prompt": "string",
	}}, nil
}

// Predict sends the rendered chat request and returns the first choice's content.
func (t *OpenAITransport) Predict(ctx context.Context, input map[string]interface{}) (interface{}, error) {
	videoURL := stringField(input, videoFieldCandidates)
	prompt := stringField(input, promptFieldCandidates)
	if videoURL == "" || prompt == "" {
		return nil, &ParameterError{Message: "input must carry a video reference and a prompt"}
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system := stringField(input, systemFieldCandidates); system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt + "\n\n## Video\n" + videoURL,
	})

	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       t.cfg.Model,
		MaxTokens:   t.cfg.MaxTokens,
		Temperature: t.cfg.Temperature,
		Messages:    messages,
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned from openai")
	}

	t.logger.Debug().Int("prompt_tokens", resp.Usage.PromptTokens).Int("completion_tokens", resp.Usage.CompletionTokens).Msg("chat completion finished")
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden:
			return fmt.Errorf("openai: %s: %w", apiErr.Message, ErrUnauthorized)
		case apiErr.HTTPStatusCode == http.StatusBadRequest && apiErr.Param != nil:
			return &ParameterError{Param: *apiErr.Param, Message: apiErr.Message}
		}
	}
	return fmt.Errorf("openai evaluate: %w", err)
}

func stringField(input map[string]interface{}, keys []string) string {
	for _, key := range keys {
		if value, ok := input[key].(string); ok && strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
