package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/rankpaper-api/internal/observability"
	"github.com/noah-isme/rankpaper-api/internal/utils"
)

// RateLimit creates a limiter keyed by user and, when the route has one, by attempt id.
func RateLimit(identifier string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Second
	}

	return limiter.New(limiter.Config{
		Max:          max,
		Expiration:   window,
		KeyGenerator: rateLimitKey(identifier),
		LimitReached: func(c *fiber.Ctx) error {
			observability.AnswersRejected().WithLabelValues("rate_limited").Inc()
			return utils.SendError(c, fiber.StatusTooManyRequests, "too many requests, slow down")
		},
	})
}

func rateLimitKey(identifier string) func(c *fiber.Ctx) string {
	return func(c *fiber.Ctx) string {
		subject := c.IP()
		if value := c.Locals("user_id"); value != nil {
			if userID := fmt.Sprintf("%v", value); userID != "" && userID != "0" {
				subject = userID
			}
		}
		if attemptID := c.Params("id"); attemptID != "" {
			return fmt.Sprintf("%s:%s:%s", identifier, subject, attemptID)
		}
		return fmt.Sprintf("%s:%s", identifier, subject)
	}
}
