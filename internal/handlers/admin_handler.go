package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/finplay/settlement/internal/middleware"
	"github.com/finplay/settlement/internal/models"
	"github.com/finplay/settlement/internal/security"
	"github.com/finplay/settlement/internal/services"
)

type AdminHandler struct {
	orders   *services.OrderService
	approval *services.ApprovalService
	settings *services.SettingsService
	audit    *services.AuditService
	users    *services.UserService
}

func NewAdminHandler(orders *services.OrderService, approval *services.ApprovalService,
	settings *services.SettingsService, audit *services.AuditService, users *services.UserService) *AdminHandler {
	return &AdminHandler{orders: orders, approval: approval, settings: settings, audit: audit, users: users}
}

func (h *AdminHandler) actor(c *fiber.Ctx) (string, string) {
	actorID := middleware.UserID(c)
	actorName := actorID
	if user, err := h.users.Get(c.Context(), actorID); err == nil {
		actorName = user.Username
	}
	return actorID, actorName
}

func (h *AdminHandler) PendingQueue(c *fiber.Ctx) error {
	orders, err := h.orders.ListPending(c.Context(), c.QueryInt("limit"))
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.Map{"orders": orders})
}

type actionRequest struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

func (h *AdminHandler) DecideOrder(c *fiber.Ctx) error {
	var req actionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	snapshot, err := h.settings.Snapshot(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	actorID, actorName := h.actor(c)

	order, err := h.approval.ProcessAction(c.Context(), services.ActionInput{
		ActorID:   actorID,
		ActorName: actorName,
		OrderID:   c.Params("id"),
		Action:    req.Action,
		Reason:    security.SanitizeReason(req.Reason),
	}, snapshot)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.Map{"order": order})
}

type adjustRequest struct {
	UserID string `json:"user_id"`
	Amount string `json:"amount"`
	Reason string `json:"reason"`
}

func (h *AdminHandler) adjust(c *fiber.Ctx, load bool) error {
	var req adjustRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return badRequest(c, "amount must be a decimal string")
	}
	actorID, actorName := h.actor(c)

	order, err := h.approval.AdminAdjust(c.Context(), actorID, actorName,
		req.UserID, amount, load, security.SanitizeReason(req.Reason))
	if err != nil {
		return respondError(c, err)
	}
	return respondCreated(c, fiber.Map{"order": order})
}

func (h *AdminHandler) LoadBalance(c *fiber.Ctx) error {
	return h.adjust(c, true)
}

func (h *AdminHandler) WithdrawBalance(c *fiber.Ctx) error {
	return h.adjust(c, false)
}

func (h *AdminHandler) GetSettings(c *fiber.Ctx) error {
	settings, err := h.settings.Get(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.Map{"settings": settings})
}

type settingsRequest struct {
	AutoApproveDeposits  bool `json:"auto_approve_deposits"`
	AutoApproveGameLoads bool `json:"auto_approve_game_loads"`
	RequireDepositProof  bool `json:"require_deposit_proof"`
}

func (h *AdminHandler) UpdateSettings(c *fiber.Ctx) error {
	var req settingsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	actorID, actorName := h.actor(c)

	settings, err := h.settings.Update(c.Context(), actorID, actorName, services.SettingsInput{
		AutoApproveDeposits:  req.AutoApproveDeposits,
		AutoApproveGameLoads: req.AutoApproveGameLoads,
		RequireDepositProof:  req.RequireDepositProof,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.Map{"settings": settings})
}

func (h *AdminHandler) ListAudit(c *fiber.Ctx) error {
	resourceType := c.Query("resource_type")
	resourceID := c.Query("resource_id")

	var logs []models.AuditLog
	var err error
	if resourceType != "" && resourceID != "" {
		logs, err = h.audit.ListByResource(c.Context(), resourceType, resourceID)
	} else {
		logs, err = h.audit.List(c.Context(), c.QueryInt("limit"))
	}
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.Map{"logs": logs})
}
