package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Security
	JWTSecret string

	// Telegram approvals
	BotToken    string
	AdminChatID int64

	// Application
	AppEnv   string
	AppPort  string
	LogLevel string

	// Rate Limiting
	RateLimitPerUser int
	RateLimitPerIP   int

	// Settlement
	IdempotencyRetentionHours int
	StalePendingHours         int
	MaxOrderAmount            int64
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		DBHost:     getEnv("DB_HOST", ""),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "settlement"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "settlement_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret: getEnv("JWT_SECRET_KEY", ""),

		BotToken: getEnv("BOT_TOKEN", ""),

		AppEnv:   getEnv("APP_ENV", "development"),
		AppPort:  getEnv("APP_PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		RateLimitPerUser: getEnvInt("RATE_LIMIT_PER_USER", 20),
		RateLimitPerIP:   getEnvInt("RATE_LIMIT_PER_IP", 100),

		IdempotencyRetentionHours: getEnvInt("IDEMPOTENCY_RETENTION_HOURS", 24),
		StalePendingHours:         getEnvInt("STALE_PENDING_HOURS", 24),
		MaxOrderAmount:            getEnvInt64("MAX_ORDER_AMOUNT", 1000000),
	}

	// Parse admin chat ID for Telegram approvals
	adminChatStr := getEnv("TELEGRAM_ADMIN_CHAT_ID", "")
	if adminChatStr != "" {
		id, err := strconv.ParseInt(adminChatStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_ADMIN_CHAT_ID: %w", err)
		}
		cfg.AdminChatID = id
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters")
	}
	if c.UseDatabase() && c.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required when DB_HOST is set")
	}
	if c.BotToken != "" && c.AdminChatID == 0 {
		return fmt.Errorf("TELEGRAM_ADMIN_CHAT_ID is required when BOT_TOKEN is set")
	}
	if c.IdempotencyRetentionHours < 1 {
		return fmt.Errorf("IDEMPOTENCY_RETENTION_HOURS must be at least 1")
	}
	return nil
}

func (c *Config) ValidateProductionSecurity() error {
	if c.AppEnv != "production" {
		return nil
	}

	if !c.UseDatabase() {
		return fmt.Errorf("DB_HOST must be set in production, the in-memory store is not durable")
	}
	if c.DBSSLMode != "require" {
		return fmt.Errorf("DB_SSLMODE must be 'require' in production")
	}
	if c.JWTSecret == "your_jwt_secret_minimum_32_chars_here_change_this" {
		return fmt.Errorf("JWT_SECRET_KEY must be changed from default in production")
	}

	return nil
}

// UseDatabase reports whether a Postgres host is configured. Without one
// the service runs on the in-memory store, which is intended for local
// development only.
func (c *Config) UseDatabase() bool {
	return c.DBHost != ""
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) IdempotencyRetention() time.Duration {
	return time.Duration(c.IdempotencyRetentionHours) * time.Hour
}

func (c *Config) StalePendingThreshold() time.Duration {
	return time.Duration(c.StalePendingHours) * time.Hour
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}
