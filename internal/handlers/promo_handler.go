package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/finplay/settlement/internal/middleware"
	"github.com/finplay/settlement/internal/security"
	"github.com/finplay/settlement/internal/services"
)

type PromoHandler struct {
	promos *services.PromoService
	users  *services.UserService
}

func NewPromoHandler(promos *services.PromoService, users *services.UserService) *PromoHandler {
	return &PromoHandler{promos: promos, users: users}
}

type redeemRequest struct {
	Code string `json:"code"`
}

func (h *PromoHandler) Redeem(c *fiber.Ctx) error {
	var req redeemRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	entry, err := h.promos.Redeem(c.Context(), middleware.UserID(c), security.SanitizeString(req.Code))
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.Map{
		"credited": entry.Delta.StringFixed(2),
		"balance":  entry.BalanceAfter.StringFixed(2),
	})
}

type promoCodeRequest struct {
	Code           string     `json:"code"`
	CreditAmount   string     `json:"credit_amount"`
	MaxRedemptions int        `json:"max_redemptions"`
	ExpiresAt      *time.Time `json:"expires_at"`
	IsActive       bool       `json:"is_active"`
}

func (h *PromoHandler) CreateCode(c *fiber.Ctx) error {
	var req promoCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	credit, err := decimal.NewFromString(req.CreditAmount)
	if err != nil {
		return badRequest(c, "credit_amount must be a decimal string")
	}

	actorID := middleware.UserID(c)
	actorName := actorID
	if user, uerr := h.users.Get(c.Context(), actorID); uerr == nil {
		actorName = user.Username
	}

	promo, err := h.promos.CreateCode(c.Context(), actorID, actorName, services.PromoCodeInput{
		Code:           security.SanitizeString(req.Code),
		CreditAmount:   credit,
		MaxRedemptions: req.MaxRedemptions,
		ExpiresAt:      req.ExpiresAt,
		IsActive:       req.IsActive,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondCreated(c, fiber.Map{"promo_code": promo})
}

func (h *PromoHandler) Deactivate(c *fiber.Ctx) error {
	actorID := middleware.UserID(c)
	promo, err := h.promos.Deactivate(c.Context(), actorID, actorID, c.Params("code"))
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.Map{"promo_code": promo})
}

func (h *PromoHandler) ListCodes(c *fiber.Ctx) error {
	codes, err := h.promos.ListCodes(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.Map{"promo_codes": codes})
}
