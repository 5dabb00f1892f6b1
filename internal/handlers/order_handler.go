package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/finplay/settlement/internal/middleware"
	"github.com/finplay/settlement/internal/models"
	"github.com/finplay/settlement/internal/security"
	"github.com/finplay/settlement/internal/services"
)

type OrderHandler struct {
	orders    *services.OrderService
	ledger    *services.LedgerService
	settings  *services.SettingsService
	maxAmount decimal.Decimal
}

func NewOrderHandler(orders *services.OrderService, ledger *services.LedgerService,
	settings *services.SettingsService, maxAmount int64) *OrderHandler {
	return &OrderHandler{
		orders:    orders,
		ledger:    ledger,
		settings:  settings,
		maxAmount: decimal.NewFromInt(maxAmount),
	}
}

type createOrderRequest struct {
	OrderType string         `json:"order_type"`
	Amount    string         `json:"amount"`
	Metadata  models.JSONMap `json:"metadata"`
}

func (h *OrderHandler) Create(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return badRequest(c, "amount must be a decimal string")
	}
	if amount.GreaterThan(h.maxAmount) {
		return badRequest(c, "amount exceeds the maximum order size")
	}

	snapshot, err := h.settings.Snapshot(c.Context())
	if err != nil {
		return respondError(c, err)
	}

	result, err := h.orders.Create(c.Context(), services.CreateOrderInput{
		UserID:         middleware.UserID(c),
		Type:           req.OrderType,
		Amount:         amount,
		Metadata:       security.SanitizeMetadata(req.Metadata),
		IdempotencyKey: security.SanitizeString(c.Get("Idempotency-Key")),
	}, snapshot)
	if err != nil {
		return respondError(c, err)
	}

	if result.Replayed {
		return respondOK(c, fiber.Map{"order": result.Order, "replayed": true})
	}
	return respondCreated(c, fiber.Map{"order": result.Order})
}

type proofRequest struct {
	Proof models.JSONMap `json:"proof"`
}

func (h *OrderHandler) SubmitProof(c *fiber.Ctx) error {
	var req proofRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if len(req.Proof) == 0 {
		return badRequest(c, "proof is required")
	}

	order, err := h.orders.SubmitProof(c.Context(), middleware.UserID(c),
		c.Params("id"), security.SanitizeMetadata(req.Proof))
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.Map{"order": order})
}

func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	order, err := h.orders.Cancel(c.Context(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.Map{"order": order})
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	order, err := h.orders.Get(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	if order.UserID != middleware.UserID(c) {
		isAdmin, _ := c.Locals(middleware.LocalIsAdmin).(bool)
		if !isAdmin {
			return respondError(c, notYours())
		}
	}
	return respondOK(c, fiber.Map{"order": order})
}

func (h *OrderHandler) ListMine(c *fiber.Ctx) error {
	orders, err := h.orders.ListByUser(c.Context(), middleware.UserID(c), c.QueryInt("limit"))
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.Map{"orders": orders})
}

func (h *OrderHandler) Balance(c *fiber.Ctx) error {
	balance, err := h.ledger.GetBalance(c.Context(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.Map{"balance": balance.StringFixed(2)})
}

func (h *OrderHandler) LedgerHistory(c *fiber.Ctx) error {
	entries, err := h.ledger.History(c.Context(), middleware.UserID(c), c.QueryInt("limit"))
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.Map{"entries": entries})
}
