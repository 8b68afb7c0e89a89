// Package handler serves the audit trail to administrators.
package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"laundry-service/backend/internal/apperr"
	"laundry-service/backend/internal/audit/domain"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Lister reads recent audit logs.
type Lister interface {
	ListRecent(ctx context.Context, limit int) ([]*domain.AuditLog, error)
}

// Handler lists audit logs. Mount it behind a role guard.
type Handler struct {
	logs Lister
}

// NewHandler returns a handler reading from logs.
func NewHandler(logs Lister) *Handler {
	return &Handler{logs: logs}
}

type auditLogResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	IP        string    `json:"ip,omitempty"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ListAuditLogs handles GET ?limit=. limit defaults to 50 and is capped at 500.
func (h *Handler) ListAuditLogs(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		return apperr.Validation("limit must be positive", "limit")
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	logs, err := h.logs.ListRecent(c.UserContext(), limit)
	if err != nil {
		return apperr.FromStorage(err)
	}
	out := make([]auditLogResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, auditLogResponse{
			ID:        l.ID,
			UserID:    l.UserID,
			Action:    l.Action,
			Resource:  l.Resource,
			IP:        l.IP,
			Metadata:  l.Metadata,
			CreatedAt: l.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"success": true, "audit_logs": out})
}
