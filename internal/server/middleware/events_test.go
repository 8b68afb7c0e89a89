package middleware

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"laundry-service/backend/internal/telemetry"
	"laundry-service/backend/internal/telemetry/domain"
)

type chanEmitter chan *domain.Event

func (c chanEmitter) Emit(ctx context.Context, e *domain.Event) error {
	c <- e
	return nil
}

func TestRequestEvents(t *testing.T) {
	events := make(chanEmitter, 4)
	app := newTestApp()
	app.Use(RequestContext(), RequestEvents(events, map[string]bool{"/healthz": true}))
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/boom", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusServiceUnavailable, "down") })

	do(t, app, get("/healthz"))
	req := get("/boom")
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	do(t, app, req)

	select {
	case e := <-events:
		if e.EventType != "http_request" || e.Outcome != telemetry.OutcomeFailed {
			t.Errorf("event = %+v", e)
		}
		var meta httpRequestMetadata
		if err := json.Unmarshal(e.Metadata, &meta); err != nil {
			t.Fatalf("metadata: %v", err)
		}
		if meta.Path != "/boom" || meta.StatusCode != fiber.StatusServiceUnavailable || meta.ClientIP != "203.0.113.7" {
			t.Errorf("metadata = %+v", meta)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event emitted")
	}
	select {
	case e := <-events:
		t.Errorf("unexpected extra event %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}
