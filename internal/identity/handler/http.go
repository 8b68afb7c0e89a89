// Package handler exposes the auth service over HTTP. Step and session tokens travel in
// httpOnly cookies; bodies are JSON.
package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"laundry-service/backend/internal/apperr"
	"laundry-service/backend/internal/identity/service"
	"laundry-service/backend/internal/security"
	"laundry-service/backend/internal/server/middleware"
	userdomain "laundry-service/backend/internal/user/domain"
)

// Handler serves /api/auth.
type Handler struct {
	svc     *service.AuthService
	codec   *security.Codec
	cookies CookieConfig
	now     func() time.Time
}

// NewHandler returns a Handler. codec resolves the caller of logout from a refresh token
// when the access token has already expired.
func NewHandler(svc *service.AuthService, codec *security.Codec, cookies CookieConfig) *Handler {
	if cookies.StepTTL <= 0 {
		cookies.StepTTL = codec.StepTTL()
	}
	return &Handler{
		svc:     svc,
		codec:   codec,
		cookies: cookies,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type userResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone,omitempty"`
	Role          string    `json:"role"`
	OutletID      *string   `json:"outlet_id,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

func toUserResponse(u *userdomain.User) *userResponse {
	if u == nil {
		return nil
	}
	return &userResponse{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Phone:         u.Phone,
		Role:          string(u.Role),
		OutletID:      u.OutletID,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
	}
}

func stepBody(success bool, message string, res *service.StepResult) fiber.Map {
	body := fiber.Map{
		"success":   success,
		"message":   message,
		"email":     res.Email,
		"next_step": res.NextStep,
		"code_sent": res.CodeSent,
	}
	if res.Warning != "" {
		body["warning"] = res.Warning
	}
	return body
}

func authBody(message string, res *service.AuthResult) fiber.Map {
	return fiber.Map{
		"success":            true,
		"message":            message,
		"user":               toUserResponse(res.User),
		"access_expires_at":  res.AccessExpiresAt,
		"refresh_expires_at": res.RefreshExpiresAt,
	}
}

// writeStep sets the step cookies and answers with status. A Delivery error still carries a
// committed result: the cookies are set so the caller can go on to verify or resend, and the
// response says the mail was not sent.
func (h *Handler) writeStep(c *fiber.Ctx, status int, message string, res *service.StepResult, err error) error {
	if err != nil {
		e, ok := apperr.As(err)
		if !ok || e.Kind != apperr.KindDelivery || res == nil {
			return err
		}
		res.CodeSent = false
		h.setStepCookies(c, res)
		return c.Status(e.Status()).JSON(stepBody(false, e.Message, res))
	}
	h.setStepCookies(c, res)
	return c.Status(status).JSON(stepBody(true, message, res))
}

// Register handles POST /register.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.Register(c.UserContext(), req.Email)
	return h.writeStep(c, fiber.StatusCreated, "Registered. Verification email sent.", res, err)
}

// Verify handles POST /verify. It requires the step-1 cookies.
func (h *Handler) Verify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.Verify(c.UserContext(), stepProof(c), req.submitted())
	return h.writeStep(c, fiber.StatusOK, "Email verified.", res, err)
}

// ResendVerification handles POST /resend-verification.
func (h *Handler) ResendVerification(c *fiber.Ctx) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.ResendVerification(c.UserContext(), req.Email)
	if err != nil {
		return h.writeStep(c, fiber.StatusOK, "", res, err)
	}
	message := "Verification email sent."
	if !res.CodeSent {
		message = "Email already verified. Complete your registration."
	}
	return h.writeStep(c, fiber.StatusOK, message, res, nil)
}

// CompleteRegistration handles POST /complete-registration. It requires the step-2 cookies,
// clears them and sets the session cookies.
func (h *Handler) CompleteRegistration(c *fiber.Ctx) error {
	var req completeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.CompleteRegistration(c.UserContext(), stepProof(c), service.CompleteInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Phone:    normalizePhone(req.Phone),
	}, userAgent(c))
	if err != nil {
		return err
	}
	h.clearStepCookies(c)
	h.setTokenCookies(c, res)
	return c.Status(fiber.StatusCreated).JSON(authBody("Registration complete.", res))
}

// Login handles POST /login.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return apperr.Unauthorized(service.MsgInvalidCredentials)
	}
	res, err := h.svc.Login(c.UserContext(), req.Email, req.Password, userAgent(c))
	if err != nil {
		return err
	}
	h.setTokenCookies(c, res)
	return c.JSON(authBody("Logged in.", res))
}

// Refresh handles POST /refresh using the refresh_token cookie.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	res, err := h.svc.Refresh(c.UserContext(), c.Cookies(CookieRefresh), userAgent(c))
	if err != nil {
		return err
	}
	h.setTokenCookies(c, res)
	return c.JSON(authBody("Session refreshed.", res))
}

// Logout handles POST /logout. The caller is taken from the access token, or from the refresh
// token when the access token is gone. Every session of that user is revoked.
func (h *Handler) Logout(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c.UserContext())
	if !ok {
		if claims, err := h.codec.ParseRefresh(c.Cookies(CookieRefresh)); err == nil {
			userID = claims.UserID
		}
	}
	if err := h.svc.Logout(c.UserContext(), userID); err != nil {
		return err
	}
	h.clearTokenCookies(c)
	return c.JSON(fiber.Map{"success": true, "message": "Logged out."})
}

// Me handles GET /me for an authenticated caller.
func (h *Handler) Me(c *fiber.Ctx) error {
	userID, _ := middleware.GetUserID(c.UserContext())
	u, err := h.svc.CurrentUser(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "OK", "user": toUserResponse(u)})
}

// Routes mounts the auth endpoints on r. limits maps a route name (register, verify,
// resend, complete, login) to its rate limiter; missing entries are unlimited.
func (h *Handler) Routes(r fiber.Router, limits map[string]fiber.Handler) {
	with := func(name string, fn fiber.Handler) []fiber.Handler {
		if l, ok := limits[name]; ok && l != nil {
			return []fiber.Handler{l, fn}
		}
		return []fiber.Handler{fn}
	}
	r.Post("/register", with("register", h.Register)...)
	r.Post("/verify", with("verify", h.Verify)...)
	r.Post("/resend-verification", with("resend", h.ResendVerification)...)
	r.Post("/complete-registration", with("complete", h.CompleteRegistration)...)
	r.Post("/login", with("login", h.Login)...)
	r.Post("/refresh", h.Refresh)
	r.Post("/logout", h.Logout)
	r.Get("/me", middleware.RequireAuth(), h.Me)
}

func userAgent(c *fiber.Ctx) string {
	return c.Get(fiber.HeaderUserAgent)
}
