// Package handler serves the dev-only verification code lookup (GET /dev/verification-code).
package handler

import (
	"github.com/gofiber/fiber/v2"

	"laundry-service/backend/internal/apperr"
	"laundry-service/backend/internal/devcode"
)

const devCodeNote = "DEV MODE ONLY"

// Handler returns the last issued code for an email. Only mounted when the dev code endpoint
// is enabled outside production.
type Handler struct {
	store devcode.Store
}

// NewHandler returns a Handler reading from store.
func NewHandler(store devcode.Store) *Handler {
	return &Handler{store: store}
}

// GetCode handles GET /dev/verification-code?email=. Returns 404 if missing or expired.
func (h *Handler) GetCode(c *fiber.Ctx) error {
	email := c.Query("email")
	if email == "" {
		return apperr.Validation("email is required", "email")
	}
	code, ok := h.store.Get(email)
	if !ok {
		return apperr.NotFound("Code not found or expired")
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": devCodeNote,
		"email":   email,
		"code":    code,
	})
}
