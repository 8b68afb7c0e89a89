package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"

	"laundry-service/backend/internal/apperr"
	"laundry-service/backend/internal/telemetry"
)

type auditCall struct {
	userID, action, resource, outcome string
}

type memAuditLogger struct {
	mu    sync.Mutex
	calls []auditCall
}

func (m *memAuditLogger) LogEvent(ctx context.Context, userID, action, resource, outcome, metadata string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, auditCall{userID, action, resource, outcome})
}

func TestAudit(t *testing.T) {
	logger := &memAuditLogger{}
	app := newTestApp()
	app.Use(Audit(logger, map[string]bool{"/healthz": true}))
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Post("/api/auth/login", func(c *fiber.Ctx) error {
		return apperr.Unauthorized("Invalid email or password")
	})
	app.Post("/api/auth/complete-registration", func(c *fiber.Ctx) error {
		c.SetUserContext(WithIdentity(c.UserContext(), Identity{UserID: "u1"}))
		return c.SendStatus(fiber.StatusCreated)
	})

	do(t, app, get("/healthz"))
	if code, _ := do(t, app, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)); code != fiber.StatusUnauthorized {
		t.Fatalf("login status = %d", code)
	}
	do(t, app, httptest.NewRequest(http.MethodPost, "/api/auth/complete-registration", nil))

	want := []auditCall{
		{"", "login", "auth", telemetry.OutcomeFailed},
		{"u1", "complete_registration", "auth", telemetry.OutcomeOK},
	}
	if len(logger.calls) != len(want) {
		t.Fatalf("audit calls = %+v, want %+v", logger.calls, want)
	}
	for i := range want {
		if logger.calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, logger.calls[i], want[i])
		}
	}
}

func TestAudit_NilLogger(t *testing.T) {
	app := newTestApp()
	app.Use(Audit(nil, nil))
	app.Get("/x", func(c *fiber.Ctx) error { return c.SendString("ok") })
	if code, _ := do(t, app, get("/x")); code != fiber.StatusOK {
		t.Errorf("status = %d, want 200", code)
	}
}
