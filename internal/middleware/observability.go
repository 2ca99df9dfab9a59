package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/creatorhub-api/internal/observability"
	"github.com/noah-isme/creatorhub-api/internal/utils"
)

const apiPrefix = "/api/"

// Observability records request metrics and one structured log line per API call.
// Event streams are counted but kept out of the latency histogram.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		if !strings.HasPrefix(c.Path(), apiPrefix) {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()
		if err != nil {
			// Let fiber's error handler settle the status before it is recorded.
			if handlerErr := c.App().ErrorHandler(c, err); handlerErr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
			err = nil
		}
		elapsed := time.Since(start)

		route := routeTemplate(c)
		method := c.Method()
		status := c.Response().StatusCode()
		statusLabel := strconv.Itoa(status)
		streaming := strings.HasSuffix(route, "/stream")

		observability.APIRequests().WithLabelValues(method, route, statusLabel).Inc()
		if !streaming {
			observability.APILatency().WithLabelValues(method, route).Observe(elapsed.Seconds())
			c.Set("X-Response-Time", elapsed.Round(time.Microsecond).String())
		}
		if status >= fiber.StatusBadRequest {
			observability.APIErrors().WithLabelValues(method, route, statusLabel).Inc()
		}

		event := LoggerFromContext(c.UserContext(), logger).With().
			Str("method", method).
			Str("route", route).
			Int("status", status).
			Dur("latency", elapsed).
			Str("latency_bucket", latencyBucket(elapsed)).
			Logger()
		if code := utils.ErrorCode(c); code != "" {
			event = event.With().Str("code", code).Logger()
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			event.Error().Msg("api request failed")
		case status >= fiber.StatusBadRequest:
			event.Warn().Msg("api request rejected")
		case streaming:
			event.Debug().Msg("api stream opened")
		default:
			event.Info().Msg("api request completed")
		}

		return err
	}
}

func routeTemplate(c *fiber.Ctx) string {
	if route := c.Route(); route != nil && route.Path != "" {
		return route.Path
	}
	return "unmatched"
}

func latencyBucket(elapsed time.Duration) string {
	switch {
	case elapsed <= 100*time.Millisecond:
		return "fast"
	case elapsed <= time.Second:
		return "normal"
	case elapsed <= 10*time.Second:
		return "slow"
	default:
		return "model_bound"
	}
}
