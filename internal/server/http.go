// Package server builds the Fiber application: global middleware, the error handler and the
// route table.
package server

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"laundry-service/backend/internal/apperr"
	"laundry-service/backend/internal/audit"
	audithandler "laundry-service/backend/internal/audit/handler"
	devcodehandler "laundry-service/backend/internal/devcode/handler"
	healthhandler "laundry-service/backend/internal/health/handler"
	identityhandler "laundry-service/backend/internal/identity/handler"
	"laundry-service/backend/internal/security"
	"laundry-service/backend/internal/server/middleware"
	"laundry-service/backend/internal/telemetry"
	userdomain "laundry-service/backend/internal/user/domain"
)

const healthPath = "/healthz"

// Deps holds the handlers and cross-cutting collaborators of the app.
type Deps struct {
	// Auth serves /api/auth. Required.
	Auth *identityhandler.Handler
	// Codec verifies access tokens for the authentication middleware. Required.
	Codec *security.Codec
	// Health serves GET /healthz. If nil, the route is not mounted.
	Health *healthhandler.Handler
	// DevCodes serves GET /dev/verification-code. Set only when the dev code endpoint is enabled
	// and not production.
	DevCodes *devcodehandler.Handler
	// AuditLogs serves GET /api/admin/audit-logs to super admins. If nil, the route is not mounted.
	AuditLogs *audithandler.Handler
	// Audit records one audit event per request. If nil, requests are not audited.
	Audit audit.AuditLogger
	// Events receives http_request telemetry events. If nil, none are emitted.
	Events telemetry.EventEmitter
	// TracerProvider and Propagator default to the OTel globals.
	TracerProvider trace.TracerProvider
	Propagator     propagation.TextMapPropagator
	// AllowedOrigins enables credentialed CORS for the listed origins.
	AllowedOrigins []string
	// RateLimit enables the per-route limits on the registration and login endpoints.
	RateLimit bool
	// TrustedProxies lists the proxy IPs or CIDRs whose X-Forwarded-For is believed when
	// keying rate limits. Empty means the socket address is always used.
	TrustedProxies []string
	Log            *slog.Logger
}

// NewApp returns the configured Fiber app.
func NewApp(deps Deps) *fiber.App {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	cfg := fiber.Config{
		AppName:               "laundry-auth",
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(log),
	}
	if len(deps.TrustedProxies) > 0 {
		cfg.EnableTrustedProxyCheck = true
		cfg.TrustedProxies = deps.TrustedProxies
		cfg.ProxyHeader = fiber.HeaderXForwardedFor
	}
	app := fiber.New(cfg)

	skip := map[string]bool{healthPath: true}
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestContext())
	app.Use(middleware.Tracing(deps.TracerProvider, deps.Propagator))
	if len(deps.AllowedOrigins) > 0 {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     strings.Join(deps.AllowedOrigins, ","),
			AllowMethods:     "GET,POST,OPTIONS",
			AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
			AllowCredentials: true,
		}))
	}
	app.Use(middleware.Authenticate(deps.Codec))
	app.Use(middleware.RequestEvents(deps.Events, skip))
	app.Use(middleware.Audit(deps.Audit, skip))

	if deps.Health != nil {
		app.Get(healthPath, deps.Health.Check)
	}
	var limits map[string]fiber.Handler
	if deps.RateLimit {
		limits = routeLimits()
	}
	deps.Auth.Routes(app.Group("/api/auth"), limits)
	if deps.AuditLogs != nil {
		admin := app.Group("/api/admin", middleware.RequireRole(userdomain.RoleSuperAdmin))
		admin.Get("/audit-logs", deps.AuditLogs.ListAuditLogs)
	}
	if deps.DevCodes != nil {
		app.Get("/dev/verification-code", deps.DevCodes.GetCode)
	}
	return app
}

// ErrorHandler writes {message, fields?} for typed errors. Anything else is logged and
// answered with a generic 500.
func ErrorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if e, ok := apperr.As(err); ok {
			if e.Kind == apperr.KindRateLimited && e.RetryAfter > 0 {
				c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retrySeconds(e)))
			}
			if e.Err != nil || e.Status() >= fiber.StatusInternalServerError {
				log.ErrorContext(c.UserContext(), "request failed",
					"method", c.Method(), "path", c.Path(), "kind", e.Kind.String(), "error", err)
			}
			body := fiber.Map{"message": e.Message}
			if len(e.Fields) > 0 {
				body["fields"] = e.Fields
			}
			return c.Status(e.Status()).JSON(body)
		}
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
		}
		log.ErrorContext(c.UserContext(), "unhandled error",
			"method", c.Method(), "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}
}

func retrySeconds(e *apperr.Error) int {
	s := int(e.RetryAfter.Seconds())
	if e.RetryAfter > 0 && s == 0 {
		return 1
	}
	return s
}
