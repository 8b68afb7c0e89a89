package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"laundry-service/backend/internal/apperr"
)

const rateWindow = time.Minute

// MsgTooManyRequests is the body of a rate-limited response.
const MsgTooManyRequests = "Too many requests, please try again later."

// routeLimit is the per-IP request budget of one route within rateWindow.
type routeLimit struct {
	name string
	max  int
}

var authLimits = []routeLimit{
	{"register", 10},
	{"verify", 5},
	{"resend", 3},
	{"complete", 3},
	{"login", 10},
}

// routeLimits returns one limiter per rate-limited auth route, keyed by route name.
func routeLimits() map[string]fiber.Handler {
	out := make(map[string]fiber.Handler, len(authLimits))
	for _, l := range authLimits {
		out[l.name] = newLimiter(l.max, rateWindow)
	}
	return out
}

func newLimiter(limit int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        limit,
		Expiration: window,
		// c.IP honours X-Forwarded-For only from a trusted proxy.
		KeyGenerator: func(c *fiber.Ctx) string { return c.IP() },
		LimitReached: func(c *fiber.Ctx) error {
			return apperr.RateLimited(MsgTooManyRequests, window)
		},
	})
}
