package middleware

import (
	"context"
	"net"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type contextKey struct{ name string }

var (
	identityKey = contextKey{"identity"}
	clientIPKey = contextKey{"client_ip"}
)

// Identity is the authenticated caller taken from a valid access token.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

// WithIdentity returns a context carrying id. Services and the audit logger read it via IdentityFrom.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the caller identity and true if one was set.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.UserID != ""
}

// GetUserID returns the caller's user id from ctx and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	id, ok := IdentityFrom(ctx)
	return id.UserID, ok
}

// WithClientIP returns a context carrying the client IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIPFrom returns the client IP stored by RequestContext, or "" if none.
// It satisfies audit.IPExtractor.
func ClientIPFrom(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey).(string)
	return v
}

// RequestContext stores the client IP in the request's user context.
func RequestContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.SetUserContext(WithClientIP(c.UserContext(), ClientIP(c)))
		return c.Next()
	}
}

// ClientIP returns the client IP from X-Forwarded-For, X-Real-IP or the remote address, or "unknown".
func ClientIP(c *fiber.Ctx) string {
	if s := strings.TrimSpace(c.Get(fiber.HeaderXForwardedFor)); s != "" {
		if i := strings.Index(s, ","); i > 0 {
			s = strings.TrimSpace(s[:i])
		}
		return s
	}
	if s := strings.TrimSpace(c.Get("X-Real-Ip")); s != "" {
		return s
	}
	if addr := c.Context().RemoteAddr(); addr != nil {
		if host, _, err := net.SplitHostPort(addr.String()); err == nil {
			return host
		}
		return addr.String()
	}
	return "unknown"
}
