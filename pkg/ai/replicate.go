package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/replicate/replicate-go"
	"github.com/rs/zerolog"
)

const defaultMaxResponseBytes = 8 << 20

var unknownParamPattern = regexp.MustCompile(`(?i)(?:unexpected keyword argument|additional property|unknown (?:input|parameter|field)|unrecognized (?:input|parameter|field))\W*'?"?([A-Za-z0-9_]*)`)

// ReplicateConfig configures the hosted predictions transport. BaseURL defaults to
// the public API and gains a /v1 suffix when it lacks one.
type ReplicateConfig struct {
	BaseURL          string
	APIToken         string
	Model            string
	Timeout          time.Duration
	PollInterval     time.Duration
	MaxResponseBytes int64
	Logger           zerolog.Logger
}

// ReplicateTransport runs predictions against a hosted model through the replicate-go client.
type ReplicateTransport struct {
	client       *replicate.Client
	owner        string
	name         string
	pollInterval time.Duration
	logger       zerolog.Logger
}

// NewReplicateTransport validates the configuration and builds the transport.
func NewReplicateTransport(cfg ReplicateConfig) (*ReplicateTransport, error) {
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("replicate api token is required")
	}
	owner, name, ok := strings.Cut(strings.Trim(cfg.Model, "/"), "/")
	if !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("replicate model must be in owner/name form, got %q", cfg.Model)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = defaultMaxResponseBytes
	}

	options := []replicate.ClientOption{
		replicate.WithToken(cfg.APIToken),
		replicate.WithHTTPClient(&http.Client{
			Timeout:   cfg.Timeout,
			Transport: &cappedBodyTransport{base: http.DefaultTransport, limit: cfg.MaxResponseBytes},
		}),
	}
	if base := strings.TrimRight(cfg.BaseURL, "/"); base != "" {
		if !strings.HasSuffix(base, "/v1") {
			base += "/v1"
		}
		options = append(options, replicate.WithBaseURL(base))
	}

	client, err := replicate.NewClient(options...)
	if err != nil {
		return nil, fmt.Errorf("replicate: create client: %w", err)
	}

	return &ReplicateTransport{
		client:       client,
		owner:        owner,
		name:         name,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger.With().Str("component", "replicate_transport").Logger(),
	}, nil
}

// Name identifies the provider in logs and metrics.
func (t *ReplicateTransport) Name() string {
	return "replicate"
}

type openAPIDocument struct {
	Components struct {
		Schemas map[string]json.RawMessage `json:"schemas"`
	} `json:"components"`
}

// DescribeInput fetches the model's advertised input schema from its latest version.
func (t *ReplicateTransport) DescribeInput(ctx context.Context) (InputSchema, error) {
	model, err := t.client.GetModel(ctx, t.owner, t.name)
	if err != nil {
		return InputSchema{}, t.mapError(err)
	}
	if model.LatestVersion == nil {
		return InputSchema{}, fmt.Errorf("replicate: model %s/%s has no published version", t.owner, t.name)
	}

	encoded, err := json.Marshal(model.LatestVersion.OpenAPISchema)
	if err != nil {
		return InputSchema{}, fmt.Errorf("replicate: encode openapi schema: %w", err)
	}
	var document openAPIDocument
	if err := json.Unmarshal(encoded, &document); err != nil {
		return InputSchema{}, fmt.Errorf("replicate: decode openapi schema: %w", err)
	}

	raw, ok := document.Components.Schemas["Input"]
	if !ok {
		return InputSchema{}, fmt.Errorf("replicate: model %s/%s does not describe its input", t.owner, t.name)
	}

	var input struct {
		Properties map[string]struct {
			Type string `json:"type"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(raw, &input); err != nil {
		return InputSchema{}, fmt.Errorf("replicate: decode input schema: %w", err)
	}

	properties := make(map[string]string, len(input.Properties))
	for name, property := range input.Properties {
		properties[name] = property.Type
	}

	return InputSchema{Properties: properties, Raw: raw}, nil
}

// Predict runs a prediction on the model's latest version and waits for its output.
func (t *ReplicateTransport) Predict(ctx context.Context, input map[string]interface{}) (interface{}, error) {
	prediction, err := t.client.CreatePredictionWithModel(ctx, t.owner, t.name, replicate.PredictionInput(input), nil, false)
	if err != nil {
		return nil, t.mapError(err)
	}

	if !isTerminal(prediction.Status) {
		if err := t.client.Wait(ctx, prediction, replicate.WithPollingInterval(t.pollInterval)); err != nil {
			return nil, t.mapError(err)
		}
	}

	if prediction.Status != replicate.Succeeded {
		message := NormalizeOutput(prediction.Error)
		if match := unknownParamPattern.FindStringSubmatch(message); match != nil {
			return nil, &ParameterError{Param: match[1], Message: message}
		}
		return nil, fmt.Errorf("replicate: prediction %s %s: %s", prediction.ID, prediction.Status, message)
	}

	t.logger.Debug().Str("prediction_id", prediction.ID).Msg("prediction succeeded")
	return prediction.Output, nil
}

// mapError turns API problems into ErrUnauthorized or ParameterError where they apply.
func (t *ReplicateTransport) mapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *replicate.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("replicate: request failed: %w", err)
	}

	detail := strings.TrimSpace(apiErr.Detail)
	switch apiErr.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("replicate: status %d: %w", apiErr.Status, ErrUnauthorized)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if match := unknownParamPattern.FindStringSubmatch(detail); match != nil {
			return &ParameterError{Param: match[1], Message: detail}
		}
		if apiErr.Status == http.StatusUnprocessableEntity {
			return &ParameterError{Message: detail}
		}
	}

	return fmt.Errorf("replicate: status %d: %s: %w", apiErr.Status, detail, err)
}

func isTerminal(status replicate.Status) bool {
	switch status {
	case replicate.Succeeded, replicate.Failed, replicate.Canceled:
		return true
	default:
		return false
	}
}

// cappedBodyTransport truncates every response body at limit bytes.
type cappedBodyTransport struct {
	base  http.RoundTripper
	limit int64
}

func (c *cappedBodyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := c.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	resp.Body = cappedBody{Reader: io.LimitReader(resp.Body, c.limit), Closer: resp.Body}
	return resp, nil
}

type cappedBody struct {
	io.Reader
	io.Closer
}
