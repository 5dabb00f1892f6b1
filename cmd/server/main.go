package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/finplay/settlement/internal/config"
	"github.com/finplay/settlement/internal/database"
	"github.com/finplay/settlement/internal/handlers"
	"github.com/finplay/settlement/internal/jobs"
	"github.com/finplay/settlement/internal/repositories"
	"github.com/finplay/settlement/internal/services"
	"github.com/finplay/settlement/pkg/logger"
	"github.com/finplay/settlement/telegram"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Initialize logger
	logger.Init()
	defer logger.Sync()

	logger.Info("Starting settlement service...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", err)
	}

	// Validate production security settings
	if cfg.AppEnv == "production" {
		if err := cfg.ValidateProductionSecurity(); err != nil {
			logger.Fatal("Production security validation failed", err)
		}
		logger.Info("Production security validation passed")
	}

	// Pick the persistence backend
	var store repositories.Store
	if cfg.UseDatabase() {
		db, err := database.Connect(cfg)
		if err != nil {
			logger.Fatal("Failed to connect to database", err)
		}
		if err := database.AutoMigrate(db); err != nil {
			logger.Fatal("Failed to run migrations", err)
		}
		if err := database.SeedReferralTiers(db); err != nil {
			logger.Warn("Failed to seed referral tiers", "error", err)
		}
		store = repositories.NewGormStore(db)
	} else {
		logger.Warn("DB_HOST not set, running on the in-memory store")
		store = repositories.NewMemoryStore()
	}

	// Wire services
	userSvc := services.NewUserService(store)
	referralSvc := services.NewReferralService(store)
	settingsSvc := services.NewSettingsService(store)
	ledgerSvc := services.NewLedgerService(store)
	auditSvc := services.NewAuditService(store)
	promoSvc := services.NewPromoService(store)

	var notifier services.Notifier = services.NopNotifier{}
	approvalSvc := services.NewApprovalService(store, referralSvc, notifier)

	// The Telegram channel is optional; without a token the service runs
	// API-only.
	if cfg.BotToken != "" {
		bot, err := telegram.InitBot(cfg, approvalSvc, settingsSvc)
		if err != nil {
			logger.Fatal("Failed to initialize telegram bot", err)
		}
		notifier = bot
		approvalSvc = services.NewApprovalService(store, referralSvc, notifier)
	}
	orderSvc := services.NewOrderService(store, approvalSvc, notifier)

	// Background housekeeping
	scheduler, err := jobs.NewScheduler(cfg, store, orderSvc)
	if err != nil {
		logger.Fatal("Failed to create scheduler", err)
	}
	if err := scheduler.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", err)
	}

	// HTTP API
	app := handlers.NewApp(handlers.Deps{
		Config:    cfg,
		Users:     userSvc,
		Orders:    orderSvc,
		Approval:  approvalSvc,
		Referrals: referralSvc,
		Promos:    promoSvc,
		Settings:  settingsSvc,
		Ledger:    ledgerSvc,
		Audit:     auditSvc,
	})
	go func() {
		if err := app.Listen(":" + cfg.AppPort); err != nil {
			logger.Fatal("HTTP server stopped", err)
		}
	}()
	logger.Info("Settlement service started", "env", cfg.AppEnv, "port", cfg.AppPort)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down gracefully...")
	if err := scheduler.Stop(); err != nil {
		logger.Warn("Scheduler shutdown failed", "error", err)
	}
	if err := app.Shutdown(); err != nil {
		logger.Warn("HTTP shutdown failed", "error", err)
	}
	logger.Info("Settlement service stopped")
}
