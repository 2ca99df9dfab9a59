package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/creatorhub-api/internal/utils"
)

// RateLimit limits requests per client and route parameter. An empty param keys by client only.
func RateLimit(identifier, param string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			key := fmt.Sprintf("%s:%s", identifier, c.IP())
			if param != "" {
				if value := strings.TrimSpace(c.Params(param)); value != "" {
					key += ":" + value
				}
			}
			return key
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.SendErrorCode(c, fiber.StatusTooManyRequests, "RATE_LIMITED", "too many requests, retry later")
		},
	})
}
