// Package handler serves the readiness endpoint (GET /healthz).
package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

const checkTimeout = 2 * time.Second

// Pinger checks storage connectivity (e.g. *pgxpool.Pool).
type Pinger interface {
	Ping(ctx context.Context) error
}

// PolicyChecker checks the policy engine (e.g. OPA evaluator).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler reports readiness for load balancers and CI.
type Handler struct {
	pinger Pinger
	policy PolicyChecker
}

// NewHandler returns a Handler. Nil dependencies are skipped.
func NewHandler(pinger Pinger, policy PolicyChecker) *Handler {
	return &Handler{pinger: pinger, policy: policy}
}

// Check returns 200 with status "ok" when every dependency answers, otherwise 503 with
// the failing checks.
func (h *Handler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), checkTimeout)
	defer cancel()

	checks := fiber.Map{}
	healthy := true
	if h.pinger != nil {
		if err := h.pinger.Ping(ctx); err != nil {
			checks["storage"] = "unavailable"
			healthy = false
		} else {
			checks["storage"] = "ok"
		}
	}
	if h.policy != nil {
		if err := h.policy.HealthCheck(ctx); err != nil {
			checks["policy"] = "unavailable"
			healthy = false
		} else {
			checks["policy"] = "ok"
		}
	}
	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "checks": checks})
	}
	return c.JSON(fiber.Map{"status": "ok", "checks": checks})
}
