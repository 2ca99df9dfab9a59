package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/creatorhub-api/internal/utils"
)

func TestCorrelationIDPropagates(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID(zerolog.Nop()))
	app.Get("/", func(c *fiber.Ctx) error {
		require.Equal(t, GetCorrelationID(c), CorrelationIDFromContext(c.UserContext()))
		return c.SendString(GetCorrelationID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, "req-123", resp.Header.Get("X-Correlation-ID"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Header.Get("X-Correlation-ID"))

	oversized := httptest.NewRequest(http.MethodGet, "/", nil)
	oversized.Header.Set("X-Correlation-ID", strings.Repeat("x", 200))
	resp, err = app.Test(oversized, -1)
	require.NoError(t, err)
	require.Len(t, resp.Header.Get("X-Correlation-ID"), 36)
}

func TestLoggerFromContextBindsCorrelation(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	app := fiber.New()
	app.Use(CorrelationID(base))
	app.Get("/", func(c *fiber.Ctx) error {
		LoggerFromContext(c.UserContext(), zerolog.Nop()).Info().Msg("handled")
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", "corr-42")
	_, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Contains(t, buf.String(), `"correlation_id":"corr-42"`)

	fallback := LoggerFromContext(context.Background(), zerolog.Nop())
	require.Equal(t, zerolog.Disabled, fallback.GetLevel())
}

func TestRateLimitKeysByParam(t *testing.T) {
	app := fiber.New()
	app.Post("/submissions/:id/evaluate", RateLimit("evaluate", "id", 1, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	first, err := app.Test(httptest.NewRequest(http.MethodPost, "/submissions/a/evaluate", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, first.StatusCode)

	second, err := app.Test(httptest.NewRequest(http.MethodPost, "/submissions/a/evaluate", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, second.StatusCode)

	other, err := app.Test(httptest.NewRequest(http.MethodPost, "/submissions/b/evaluate", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, other.StatusCode)
}

func TestRegisterRecoversPanics(t *testing.T) {
	app := fiber.New()
	logger := zerolog.Nop()
	Register(app, Config{Logger: &logger})
	app.Get("/api/v1/boom", func(c *fiber.Ctx) error {
		panic("boom")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/boom", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestObservabilityLogsErrorCodes(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	app := fiber.New()
	app.Use(CorrelationID(logger))
	app.Use(Observability(logger))
	app.Post("/api/v1/submissions/:id/evaluate", func(c *fiber.Ctx) error {
		return utils.SendErrorCode(c, fiber.StatusConflict, "EVALUATION_IN_PROGRESS", "evaluation already running")
	})
	app.Get("/api/v1/users/:userId/notifications/stream", func(c *fiber.Ctx) error {
		return c.SendString("data: {}\n\n")
	})
	app.Get("/api/v1/fail", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusBadGateway, "upstream")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/submissions/sub-1/evaluate", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Response-Time"))
	require.Contains(t, buf.String(), `"code":"EVALUATION_IN_PROGRESS"`)
	require.Contains(t, buf.String(), `"route":"/api/v1/submissions/:id/evaluate"`)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/users/creator-1/notifications/stream", nil), -1)
	require.NoError(t, err)
	require.Empty(t, resp.Header.Get("X-Response-Time"))

	buf.Reset()
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/fail", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	require.Contains(t, buf.String(), `"status":502`)
}
