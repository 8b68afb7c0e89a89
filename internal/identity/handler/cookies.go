package handler

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"laundry-service/backend/internal/identity/service"
)

// Cookie names shared with the web client.
const (
	CookieStepToken = "temp_jwt"
	CookieNextStep  = "next_step"
	CookieAccess    = "access_token"
	CookieRefresh   = "refresh_token"
)

// CookieConfig scopes and ages the auth cookies.
type CookieConfig struct {
	Domain  string
	Path    string
	Secure  bool
	StepTTL time.Duration
}

func (h *Handler) setCookie(c *fiber.Ctx, name, value string, expires time.Time) {
	path := h.cookies.Path
	if path == "" {
		path = "/"
	}
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   h.cookies.Domain,
		Expires:  expires,
		Secure:   h.cookies.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// clearCookie expires a cookie on the same path and domain it was set with. fiber's
// ClearCookie cannot carry a path, so the expired cookie is written directly.
func (h *Handler) clearCookie(c *fiber.Ctx, name string) {
	h.setCookie(c, name, "", time.Unix(0, 0).UTC())
}

func (h *Handler) setStepCookies(c *fiber.Ctx, res *service.StepResult) {
	expires := h.now().Add(h.cookies.StepTTL)
	h.setCookie(c, CookieStepToken, res.StepToken, expires)
	h.setCookie(c, CookieNextStep, strconv.Itoa(res.NextStep), expires)
}

func (h *Handler) clearStepCookies(c *fiber.Ctx) {
	h.clearCookie(c, CookieStepToken)
	h.clearCookie(c, CookieNextStep)
}

func (h *Handler) setTokenCookies(c *fiber.Ctx, res *service.AuthResult) {
	h.setCookie(c, CookieAccess, res.AccessToken, res.AccessExpiresAt)
	h.setCookie(c, CookieRefresh, res.RefreshToken, res.RefreshExpiresAt)
}

func (h *Handler) clearTokenCookies(c *fiber.Ctx) {
	h.clearCookie(c, CookieAccess)
	h.clearCookie(c, CookieRefresh)
}

func stepProof(c *fiber.Ctx) service.StepProof {
	return service.StepProof{
		Token:  c.Cookies(CookieStepToken),
		Marker: c.Cookies(CookieNextStep),
	}
}
