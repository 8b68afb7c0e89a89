package middleware

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"

	"laundry-service/backend/internal/telemetry"
	"laundry-service/backend/internal/telemetry/domain"
)

// httpRequestMetadata is the JSON shape stored in Event.Metadata for http_request events.
type httpRequestMetadata struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	StatusCode int    `json:"status_code"`
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
	RequestID  string `json:"request_id,omitempty"`
}

// RequestEvents emits an http_request telemetry event after each request. Best-effort: the
// emit runs asynchronously and never fails the request. A nil emitter disables it.
func RequestEvents(emitter telemetry.EventEmitter, skipPaths map[string]bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if emitter == nil || skipPaths[c.Path()] {
			return err
		}
		status := responseStatus(c, err)
		meta, _ := json.Marshal(httpRequestMetadata{
			Method:     c.Method(),
			Path:       c.Path(),
			StatusCode: status,
			DurationMs: time.Since(start).Milliseconds(),
			ClientIP:   ClientIPFrom(c.UserContext()),
			RequestID:  requestID(c),
		})
		userID, _ := GetUserID(c.UserContext())
		outcome := telemetry.OutcomeOK
		if status >= fiber.StatusInternalServerError {
			outcome = telemetry.OutcomeFailed
		}
		telemetry.EmitAsync(emitter, c.UserContext(), &domain.Event{
			UserID:    userID,
			EventType: "http_request",
			Source:    "http_middleware",
			Outcome:   outcome,
			Metadata:  meta,
			CreatedAt: time.Now().UTC(),
		})
		return err
	}
}

func requestID(c *fiber.Ctx) string {
	if v, ok := c.Locals("requestid").(string); ok {
		return v
	}
	return string(c.Response().Header.Peek(fiber.HeaderXRequestID))
}
