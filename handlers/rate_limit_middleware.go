package handlers

import (
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/ticketscan/scan-backend/shared"
)

// SubmitRateLimit rejects a user's submission that arrives before the limiter's delay has passed.
// It must run after AuthMiddleware.
func SubmitRateLimit(limiter *shared.SubmissionRateLimiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := UserIDFromContext(c)
		if !ok {
			return c.Next()
		}

		allowed, wait := limiter.Allow(userID.String())
		if !allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Too many submissions, retry shortly"})
		}
		return c.Next()
	}
}
