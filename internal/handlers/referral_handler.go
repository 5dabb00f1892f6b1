package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/finplay/settlement/internal/middleware"
	"github.com/finplay/settlement/internal/security"
	"github.com/finplay/settlement/internal/services"
)

type ReferralHandler struct {
	referrals *services.ReferralService
	users     *services.UserService
}

func NewReferralHandler(referrals *services.ReferralService, users *services.UserService) *ReferralHandler {
	return &ReferralHandler{referrals: referrals, users: users}
}

func (h *ReferralHandler) actor(c *fiber.Ctx) (string, string) {
	actorID := middleware.UserID(c)
	actorName := actorID
	if user, err := h.users.Get(c.Context(), actorID); err == nil {
		actorName = user.Username
	}
	return actorID, actorName
}

// MyTier reports the caller's standing on the referral ladder.
func (h *ReferralHandler) MyTier(c *fiber.Ctx) error {
	progress, err := h.referrals.MyTier(c.Context(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, progress)
}

// EffectiveBonus previews the commission percentage a given referrer
// would earn on a deposit approved now, with the source of the rate.
func (h *ReferralHandler) EffectiveBonus(c *fiber.Ctx) error {
	resolution, err := h.referrals.EffectiveBonus(c.Context(), c.Params("user_id"))
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, resolution)
}

func (h *ReferralHandler) ListTiers(c *fiber.Ctx) error {
	tiers, err := h.referrals.ListTiers(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.Map{"tiers": tiers})
}

type tierRequest struct {
	Name         string `json:"tier_name"`
	MinReferrals int    `json:"min_referrals"`
	MaxReferrals *int   `json:"max_referrals"`
	BonusPercent string `json:"bonus_percentage"`
	Description  string `json:"description"`
	IsActive     bool   `json:"is_active"`
}

func (h *ReferralHandler) SaveTier(c *fiber.Ctx) error {
	var req tierRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	percent, err := decimal.NewFromString(req.BonusPercent)
	if err != nil {
		return badRequest(c, "bonus_percentage must be a decimal string")
	}
	actorID, actorName := h.actor(c)

	tier, err := h.referrals.SaveTier(c.Context(), actorID, actorName, c.Params("id"), services.TierInput{
		Name:         security.SanitizeString(req.Name),
		MinReferrals: req.MinReferrals,
		MaxReferrals: req.MaxReferrals,
		BonusPercent: percent,
		Description:  security.SanitizeReason(req.Description),
		IsActive:     req.IsActive,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.Map{"tier": tier})
}

type campaignRequest struct {
	Name         string    `json:"name"`
	BonusPercent string    `json:"bonus_percentage"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	Description  string    `json:"description"`
	IsActive     bool      `json:"is_active"`
}

func (h *ReferralHandler) parseCampaign(c *fiber.Ctx) (services.CampaignInput, error) {
	var req campaignRequest
	if err := c.BodyParser(&req); err != nil {
		return services.CampaignInput{}, err
	}
	percent, err := decimal.NewFromString(req.BonusPercent)
	if err != nil {
		return services.CampaignInput{}, err
	}
	return services.CampaignInput{
		Name:         security.SanitizeString(req.Name),
		BonusPercent: percent,
		StartDate:    req.StartDate.UTC(),
		EndDate:      req.EndDate.UTC(),
		Description:  security.SanitizeReason(req.Description),
		IsActive:     req.IsActive,
	}, nil
}

func (h *ReferralHandler) CreateCampaign(c *fiber.Ctx) error {
	input, err := h.parseCampaign(c)
	if err != nil {
		return badRequest(c, "invalid campaign payload")
	}
	actorID, actorName := h.actor(c)
	campaign, err := h.referrals.CreateCampaign(c.Context(), actorID, actorName, input)
	if err != nil {
		return respondError(c, err)
	}
	return respondCreated(c, fiber.Map{"campaign": campaign})
}

func (h *ReferralHandler) UpdateCampaign(c *fiber.Ctx) error {
	input, err := h.parseCampaign(c)
	if err != nil {
		return badRequest(c, "invalid campaign payload")
	}
	actorID, actorName := h.actor(c)
	campaign, err := h.referrals.UpdateCampaign(c.Context(), actorID, actorName, c.Params("id"), input)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.Map{"campaign": campaign})
}

func (h *ReferralHandler) DeleteCampaign(c *fiber.Ctx) error {
	actorID, actorName := h.actor(c)
	if err := h.referrals.DeleteCampaign(c.Context(), actorID, actorName, c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.Map{"deleted": true})
}

func (h *ReferralHandler) ListCampaigns(c *fiber.Ctx) error {
	campaigns, err := h.referrals.ListCampaigns(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.Map{"campaigns": campaigns})
}

type overrideRequest struct {
	UserID       string     `json:"user_id"`
	BonusPercent string     `json:"bonus_percentage"`
	ExpiresAt    *time.Time `json:"expires_at"`
	Reason       string     `json:"reason"`
	IsActive     bool       `json:"is_active"`
}

func (h *ReferralHandler) SetOverride(c *fiber.Ctx) error {
	var req overrideRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	percent, err := decimal.NewFromString(req.BonusPercent)
	if err != nil {
		return badRequest(c, "bonus_percentage must be a decimal string")
	}
	actorID, actorName := h.actor(c)

	override, err := h.referrals.SetOverride(c.Context(), actorID, actorName, services.OverrideInput{
		UserID:       req.UserID,
		BonusPercent: percent,
		ExpiresAt:    req.ExpiresAt,
		Reason:       security.SanitizeReason(req.Reason),
		IsActive:     req.IsActive,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.Map{"override": override})
}

func (h *ReferralHandler) RemoveOverride(c *fiber.Ctx) error {
	actorID, actorName := h.actor(c)
	if err := h.referrals.RemoveOverride(c.Context(), actorID, actorName, c.Params("user_id")); err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.Map{"deleted": true})
}

func (h *ReferralHandler) ListOverrides(c *fiber.Ctx) error {
	overrides, err := h.referrals.ListOverrides(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.Map{"overrides": overrides})
}
