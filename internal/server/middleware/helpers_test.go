package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"laundry-service/backend/internal/apperr"
)

// newTestApp returns an app whose error handler maps *apperr.Error to its status.
func newTestApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := apperr.As(err); ok {
				return c.Status(e.Status()).SendString(e.Message)
			}
			return fiber.DefaultErrorHandler(c, err)
		},
	})
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, string) {
	t.Helper()
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func get(path string) *http.Request {
	return httptest.NewRequest(http.MethodGet, path, nil)
}
