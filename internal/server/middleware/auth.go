package middleware

import (
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"

	"laundry-service/backend/internal/apperr"
	"laundry-service/backend/internal/security"
	userdomain "laundry-service/backend/internal/user/domain"
)

const bearerPrefix = "bearer "

// AccessCookie is the cookie carrying the access token.
const AccessCookie = "access_token"

// Authenticate reads the access token from the access_token cookie, falling back to a Bearer
// Authorization header, and sets the caller identity in the user context. A missing or invalid
// token leaves the request anonymous; RequireAuth rejects it where needed.
func Authenticate(codec *security.Codec) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(AccessCookie)
		if token == "" {
			token = extractBearer(c.Get(fiber.HeaderAuthorization))
		}
		if token == "" {
			return c.Next()
		}
		claims, err := codec.ParseAccess(token)
		if err != nil {
			return c.Next()
		}
		c.SetUserContext(WithIdentity(c.UserContext(), Identity{
			UserID: claims.UserID,
			Email:  claims.Email,
			Role:   claims.Role,
		}))
		return c.Next()
	}
}

// RequireAuth rejects requests without an authenticated identity.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := IdentityFrom(c.UserContext()); !ok {
			return apperr.Unauthorized("Authentication required")
		}
		return c.Next()
	}
}

// RequireRole rejects anonymous requests with 401 and callers outside roles with 403.
func RequireRole(roles ...userdomain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := IdentityFrom(c.UserContext())
		if !ok {
			return apperr.Unauthorized("Authentication required")
		}
		if !slices.Contains(roles, userdomain.Role(id.Role)) {
			return apperr.Forbidden("Insufficient permissions")
		}
		return c.Next()
	}
}

// extractBearer returns the token of a Bearer Authorization value, or "" if missing or malformed.
func extractBearer(v string) string {
	v = strings.TrimSpace(v)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
