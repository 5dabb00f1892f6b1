package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/finplay/settlement/internal/config"
	"github.com/finplay/settlement/internal/models"
	"github.com/finplay/settlement/pkg/logger"
)

func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := cfg.GetDSN()

	var logLevel gormlogger.LogLevel
	if cfg.AppEnv == "development" {
		logLevel = gormlogger.Info
	} else {
		logLevel = gormlogger.Error
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		// The store layer maps gorm.ErrDuplicatedKey onto its duplicate
		// sentinel; this only works with error translation on.
		TranslateError: true,
		PrepareStmt:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetMaxOpenConns(200)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	logger.Info("Database connected successfully")
	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	logger.Info("Running database migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.Order{},
		&models.LedgerEntry{},
		&models.PromoCode{},
		&models.PromoRedemption{},
		&models.ReferralTier{},
		&models.GlobalCampaign{},
		&models.ClientOverride{},
		&models.AuditLog{},
		&models.IdempotencyKey{},
		&models.Settings{},
	)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// SeedReferralTiers installs the default tier ladder on an empty
// database. Operators reshape the ladder through the admin API afterward.
func SeedReferralTiers(db *gorm.DB) error {
	var count int64
	db.Model(&models.ReferralTier{}).Count(&count)
	if count > 0 {
		return nil
	}

	logger.Info("Seeding default referral tiers...")
	intp := func(v int) *int { return &v }
	tiers := []models.ReferralTier{
		{ID: uuid.NewString(), Name: "Starter", MinReferrals: 0, MaxReferrals: intp(6), BonusPercent: decimal.NewFromInt(10), IsActive: true},
		{ID: uuid.NewString(), Name: "Silver", MinReferrals: 7, MaxReferrals: intp(14), BonusPercent: decimal.NewFromInt(15), IsActive: true},
		{ID: uuid.NewString(), Name: "Gold", MinReferrals: 15, MaxReferrals: intp(29), BonusPercent: decimal.NewFromInt(20), IsActive: true},
		{ID: uuid.NewString(), Name: "Platinum", MinReferrals: 30, MaxReferrals: intp(49), BonusPercent: decimal.NewFromInt(25), IsActive: true},
		{ID: uuid.NewString(), Name: "Ruby", MinReferrals: 50, BonusPercent: decimal.NewFromInt(30), IsActive: true},
	}

	return db.Create(&tiers).Error
}
