package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	correlationHeader    = "X-Correlation-ID"
	requestIDHeader      = "X-Request-ID"
	correlationLocal     = "correlation_id"
	maxCorrelationLength = 128
)

type correlationIDKey struct{}

var correlationKey = correlationIDKey{}

// CorrelationID tags every request with a correlation identifier and binds a
// request-scoped logger carrying it to the user context.
func CorrelationID(logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := resolveCorrelationID(c.Get(correlationHeader), c.Get(requestIDHeader))

		c.Locals(correlationLocal, id)
		c.Set(correlationHeader, id)

		ctx := c.UserContext()
		if ctx == nil {
			ctx = context.Background()
		}
		scoped := logger.With().Str("correlation_id", id).Logger()
		c.SetUserContext(scoped.WithContext(context.WithValue(ctx, correlationKey, id)))

		return c.Next()
	}
}

// Incoming identifiers that are oversized or contain control characters are replaced.
func resolveCorrelationID(candidates ...string) string {
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" || len(candidate) > maxCorrelationLength {
			continue
		}
		if strings.IndexFunc(candidate, func(r rune) bool { return r < 0x20 || r == 0x7f }) >= 0 {
			continue
		}
		return candidate
	}
	return uuid.NewString()
}

// CorrelationIDFromContext extracts the correlation identifier from context, if present.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationKey).(string); ok {
		return id
	}
	return ""
}

// GetCorrelationID returns the correlation identifier bound to the active request.
func GetCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Locals(correlationLocal).(string); ok {
		return id
	}
	return CorrelationIDFromContext(c.UserContext())
}

// ContextWithCorrelation attaches the correlation identifier to ctx. Settlement side
// effects run on a detached context and keep the identifier through this.
func ContextWithCorrelation(ctx context.Context, correlationID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" || CorrelationIDFromContext(ctx) == correlationID {
		return ctx
	}
	return context.WithValue(ctx, correlationKey, correlationID)
}

// LoggerFromContext returns the request-scoped logger, or fallback when none is bound.
func LoggerFromContext(ctx context.Context, fallback zerolog.Logger) *zerolog.Logger {
	if ctx != nil {
		if logger := zerolog.Ctx(ctx); logger.GetLevel() != zerolog.Disabled {
			return logger
		}
	}
	return &fallback
}
