package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestReplicate(t *testing.T, handler http.Handler) *ReplicateTransport {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	transport, err := NewReplicateTransport(ReplicateConfig{
		BaseURL:      server.URL,
		APIToken:     "r8_test",
		Model:        "acme/video-judge",
		PollInterval: time.Millisecond,
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, err)
	return transport
}

func TestNewReplicateTransportValidatesConfig(t *testing.T) {
	_, err := NewReplicateTransport(ReplicateConfig{Model: "acme/video-judge"})
	require.Error(t, err)

	_, err = NewReplicateTransport(ReplicateConfig{APIToken: "token", Model: "video-judge"})
	require.Error(t, err)
}

func TestReplicateDescribeInput(t *testing.T) {
	transport := newTestReplicate(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/models/acme/video-judge", r.URL.Path)
		require.Contains(t, r.Header.Get("Authorization"), "r8_test")
		_, _ = w.Write([]byte(`{"latest_version":{"id":"v1","openapi_schema":{"components":{"schemas":{"Input":{"type":"object","properties":{"video":{"type":"string"},"prompt":{"type":"string"},"generate_audio":{"type":"boolean"}}}}}}}}`))
	}))

	schema, err := transport.DescribeInput(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]string{"video": "string", "prompt": "string", "generate_audio": "boolean"}, schema.Properties)
	require.NotEmpty(t, schema.Raw)
}

func TestReplicatePredictPollsUntilSucceeded(t *testing.T) {
	var polls int
	var serverURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models/acme/video-judge/predictions", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var body struct {
			Input map[string]interface{} `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "https://cdn.example.com/v.mp4", body.Input["video"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"p1","status":"starting","urls":{"get":"` + serverURL + `/v1/predictions/p1"}}`))
	})
	mux.HandleFunc("/v1/predictions/p1", func(w http.ResponseWriter, r *http.Request) {
		polls++
		if polls < 2 {
			_, _ = w.Write([]byte(`{"id":"p1","status":"processing","urls":{"get":"` + serverURL + `/v1/predictions/p1"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"p1","status":"succeeded","output":["{\"compliance\": true}"]}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	serverURL = server.URL

	transport, err := NewReplicateTransport(ReplicateConfig{
		BaseURL:      server.URL + "/v1",
		APIToken:     "r8_test",
		Model:        "acme/video-judge",
		PollInterval: time.Millisecond,
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, err)

	output, err := transport.Predict(context.Background(), map[string]interface{}{
		"video":  "https://cdn.example.com/v.mp4",
		"prompt": "judge it",
	})
	require.NoError(t, err)
	require.Equal(t, `{"compliance": true}`, NormalizeOutput(output))
	require.Equal(t, 2, polls)
}

func TestReplicatePredictParameterRejections(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		wantParam string
	}{
		{
			name:      "invalid fields",
			status:    http.StatusUnprocessableEntity,
			body:      `{"status":422,"detail":"- input: Additional property generate_audio is not allowed","invalid_fields":[{"type":"additional_property_not_allowed","field":"input","description":"Additional property generate_audio is not allowed"}]}`,
			wantParam: "generate_audio",
		},
		{
			name:      "detail only",
			status:    http.StatusBadRequest,
			body:      `{"status":400,"detail":"unexpected keyword argument 'use_audio_in_video'"}`,
			wantParam: "use_audio_in_video",
		},
		{
			name:   "bare unprocessable",
			status: http.StatusUnprocessableEntity,
			body:   `{"status":422,"detail":"input is invalid"}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			transport := newTestReplicate(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))

			_, err := transport.Predict(context.Background(), map[string]interface{}{"video": "v", "prompt": "p"})
			var paramErr *ParameterError
			require.True(t, errors.As(err, &paramErr))
			require.Equal(t, tc.wantParam, paramErr.Param)
		})
	}
}

func TestReplicatePredictFailedPredictionWithUnknownInput(t *testing.T) {
	transport := newTestReplicate(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"p2","status":"failed","error":"predict() got an unexpected keyword argument 'use_audio_in_video'"}`))
	}))

	_, err := transport.Predict(context.Background(), map[string]interface{}{"video": "v", "prompt": "p"})
	var paramErr *ParameterError
	require.True(t, errors.As(err, &paramErr))
	require.Equal(t, "use_audio_in_video", paramErr.Param)
}

func TestReplicatePredictUnauthorized(t *testing.T) {
	transport := newTestReplicate(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":401,"detail":"Invalid token."}`))
	}))

	_, err := transport.Predict(context.Background(), map[string]interface{}{"video": "v", "prompt": "p"})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnauthorized))
	require.False(t, IsParameterError(err))
}

func TestReplicatePredictServerError(t *testing.T) {
	transport := newTestReplicate(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":500,"detail":"upstream exploded"}`))
	}))

	_, err := transport.Predict(context.Background(), map[string]interface{}{"video": "v", "prompt": "p"})
	require.Error(t, err)
	require.False(t, IsParameterError(err))
	require.False(t, errors.Is(err, ErrUnauthorized))
	require.Contains(t, err.Error(), "upstream exploded")
}

func TestReplicateCapsResponseBodies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"p3","status":"succeeded","output":"` + strings.Repeat("x", 4096) + `"}`))
	}))
	t.Cleanup(server.Close)

	transport, err := NewReplicateTransport(ReplicateConfig{
		BaseURL:          server.URL,
		APIToken:         "r8_test",
		Model:            "acme/video-judge",
		MaxResponseBytes: 256,
		Logger:           zerolog.Nop(),
	})
	require.NoError(t, err)

	_, err = transport.Predict(context.Background(), map[string]interface{}{"video": "v", "prompt": "p"})
	require.Error(t, err)
	require.False(t, IsParameterError(err))
}
