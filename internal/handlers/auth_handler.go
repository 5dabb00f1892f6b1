package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/finplay/settlement/internal/security"
	"github.com/finplay/settlement/internal/services"
)

type AuthHandler struct {
	users     *services.UserService
	jwtSecret string
}

func NewAuthHandler(users *services.UserService, jwtSecret string) *AuthHandler {
	return &AuthHandler{users: users, jwtSecret: jwtSecret}
}

type registerRequest struct {
	Username     string `json:"username"`
	DisplayName  string `json:"display_name"`
	ReferralCode string `json:"referral_code"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	user, err := h.users.Register(c.Context(),
		security.SanitizeString(req.Username),
		security.SanitizeReason(req.DisplayName),
		security.SanitizeString(req.ReferralCode))
	if err != nil {
		return respondError(c, err)
	}

	token, err := security.GenerateJWT(user.ID, user.IsAdmin, h.jwtSecret)
	if err != nil {
		return respondError(c, err)
	}
	return respondCreated(c, fiber.Map{"user": user, "token": token})
}

type tokenRequest struct {
	Username string `json:"username"`
}

// Token issues a JWT for an existing account. Upstream identity (the
// platform's SSO) is expected to gate this endpoint in production
// deployments; it exists so the API is usable standalone.
func (h *AuthHandler) Token(c *fiber.Ctx) error {
	var req tokenRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	user, err := h.users.GetByUsername(c.Context(), security.SanitizeString(req.Username))
	if err != nil {
		return respondError(c, err)
	}
	token, err := security.GenerateJWT(user.ID, user.IsAdmin, h.jwtSecret)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.Map{"token": token})
}
