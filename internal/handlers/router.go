package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/finplay/settlement/internal/config"
	"github.com/finplay/settlement/internal/middleware"
	"github.com/finplay/settlement/internal/services"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Config    *config.Config
	Users     *services.UserService
	Orders    *services.OrderService
	Approval  *services.ApprovalService
	Referrals *services.ReferralService
	Promos    *services.PromoService
	Settings  *services.SettingsService
	Ledger    *services.LedgerService
	Audit     *services.AuditService
}

func NewApp(deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "settlement",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	limiter := middleware.NewRateLimiter(
		deps.Config.RateLimitPerUser, deps.Config.RateLimitPerIP, time.Minute)

	auth := NewAuthHandler(deps.Users, deps.Config.JWTSecret)
	orders := NewOrderHandler(deps.Orders, deps.Ledger, deps.Settings, deps.Config.MaxOrderAmount)
	admin := NewAdminHandler(deps.Orders, deps.Approval, deps.Settings, deps.Audit, deps.Users)
	referrals := NewReferralHandler(deps.Referrals, deps.Users)
	promos := NewPromoHandler(deps.Promos, deps.Users)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1", middleware.RateLimit(limiter))

	api.Post("/auth/register", auth.Register)
	api.Post("/auth/token", auth.Token)

	secured := api.Group("/", middleware.Auth(deps.Config.JWTSecret))

	secured.Post("/orders", orders.Create)
	secured.Get("/orders", orders.ListMine)
	secured.Get("/orders/:id", orders.Get)
	secured.Post("/orders/:id/proof", orders.SubmitProof)
	secured.Post("/orders/:id/cancel", orders.Cancel)

	secured.Get("/balance", orders.Balance)
	secured.Get("/ledger", orders.LedgerHistory)

	secured.Post("/promo/redeem", promos.Redeem)
	secured.Get("/referrals/me", referrals.MyTier)
	secured.Get("/referrals/tiers", referrals.ListTiers)

	adm := secured.Group("/admin", middleware.RequireAdmin())

	adm.Get("/orders/pending", admin.PendingQueue)
	adm.Post("/orders/:id/action", admin.DecideOrder)
	adm.Post("/balance/load", admin.LoadBalance)
	adm.Post("/balance/withdraw", admin.WithdrawBalance)

	adm.Get("/settings", admin.GetSettings)
	adm.Put("/settings", admin.UpdateSettings)
	adm.Get("/audit", admin.ListAudit)

	adm.Post("/referrals/tiers", referrals.SaveTier)
	adm.Put("/referrals/tiers/:id", referrals.SaveTier)
	adm.Post("/referrals/campaigns", referrals.CreateCampaign)
	adm.Get("/referrals/campaigns", referrals.ListCampaigns)
	adm.Put("/referrals/campaigns/:id", referrals.UpdateCampaign)
	adm.Delete("/referrals/campaigns/:id", referrals.DeleteCampaign)
	adm.Get("/referrals/effective/:user_id", referrals.EffectiveBonus)
	adm.Post("/referrals/overrides", referrals.SetOverride)
	adm.Get("/referrals/overrides", referrals.ListOverrides)
	adm.Delete("/referrals/overrides/:user_id", referrals.RemoveOverride)

	adm.Post("/promo/codes", promos.CreateCode)
	adm.Get("/promo/codes", promos.ListCodes)
	adm.Post("/promo/codes/:code/deactivate", promos.Deactivate)

	return app
}
