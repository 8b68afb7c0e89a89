package middleware

import (
	"github.com/gofiber/fiber/v2"

	"laundry-service/backend/internal/apperr"
	"laundry-service/backend/internal/audit"
	"laundry-service/backend/internal/telemetry"
)

// Audit records an audit event after each request whose path is not in skipPaths. The
// action and resource come from audit.ParseRoute. Handler errors have not been written yet
// when the middleware runs, so their status is derived from the error kind.
func Audit(logger audit.AuditLogger, skipPaths map[string]bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if logger == nil || skipPaths[c.Path()] {
			return err
		}
		ar := audit.ParseRoute(c.Method(), c.Path())
		userID, _ := GetUserID(c.UserContext())
		outcome := telemetry.OutcomeOK
		if responseStatus(c, err) >= fiber.StatusBadRequest {
			outcome = telemetry.OutcomeFailed
		}
		logger.LogEvent(c.UserContext(), userID, ar.Action, ar.Resource, outcome, "")
		return err
	}
}

// responseStatus returns the status the error handler will write for err, or the current
// response status when err is nil.
func responseStatus(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	if fe, ok := err.(*fiber.Error); ok {
		return fe.Code
	}
	return apperr.KindOf(err).Status()
}
