package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"laundry-service/backend/internal/apperr"
	"laundry-service/backend/internal/audit/domain"
)

type mockLister struct {
	logs      []*domain.AuditLog
	err       error
	lastLimit int
}

func (m *mockLister) ListRecent(_ context.Context, limit int) ([]*domain.AuditLog, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	if limit < len(m.logs) {
		return m.logs[:limit], nil
	}
	return m.logs, nil
}

func newApp(l Lister) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		if e, ok := apperr.As(err); ok {
			return c.Status(e.Status()).JSON(fiber.Map{"message": e.Message})
		}
		return fiber.DefaultErrorHandler(c, err)
	}})
	app.Get("/audit-logs", NewHandler(l).ListAuditLogs)
	return app
}

func TestListAuditLogs(t *testing.T) {
	m := &mockLister{logs: []*domain.AuditLog{
		{ID: "2", UserID: "u1", Action: "login", Resource: "auth"},
		{ID: "1", Action: "register", Resource: "auth"},
	}}
	resp, err := newApp(m).Test(httptest.NewRequest("GET", "/audit-logs", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if m.lastLimit != defaultLimit {
		t.Errorf("limit = %d, want %d", m.lastLimit, defaultLimit)
	}
	raw, _ := io.ReadAll(resp.Body)
	var body struct {
		AuditLogs []auditLogResponse `json:"audit_logs"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.AuditLogs) != 2 || body.AuditLogs[0].Action != "login" {
		t.Errorf("audit_logs = %+v", body.AuditLogs)
	}
}

func TestListAuditLogs_Limit(t *testing.T) {
	tests := []struct {
		query      string
		wantStatus int
		wantLimit  int
	}{
		{"?limit=1", 200, 1},
		{"?limit=10000", 200, maxLimit},
		{"?limit=0", 400, 0},
		{"?limit=-3", 400, 0},
	}
	for _, tt := range tests {
		m := &mockLister{}
		resp, err := newApp(m).Test(httptest.NewRequest("GET", "/audit-logs"+tt.query, nil))
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if resp.StatusCode != tt.wantStatus {
			t.Errorf("%s: status = %d, want %d", tt.query, resp.StatusCode, tt.wantStatus)
		}
		if m.lastLimit != tt.wantLimit {
			t.Errorf("%s: limit = %d, want %d", tt.query, m.lastLimit, tt.wantLimit)
		}
	}
}

func TestListAuditLogs_StorageError(t *testing.T) {
	m := &mockLister{err: errors.New("connection refused")}
	resp, err := newApp(m).Test(httptest.NewRequest("GET", "/audit-logs", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode < 500 {
		t.Errorf("status = %d, want 5xx", resp.StatusCode)
	}
}
