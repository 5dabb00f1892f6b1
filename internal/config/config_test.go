package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	os.Setenv("JWT_SECRET_KEY", "this_is_a_test_secret_key_with_32_chars_minimum")
	os.Setenv("DB_HOST", "localhost")
	os.Setenv("DB_PASSWORD", "test_password")
	defer func() {
		os.Unsetenv("JWT_SECRET_KEY")
		os.Unsetenv("DB_HOST")
		os.Unsetenv("DB_PASSWORD")
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.DBPassword != "test_password" {
		t.Errorf("DBPassword = %q, want %q", cfg.DBPassword, "test_password")
	}
	if !cfg.UseDatabase() {
		t.Error("UseDatabase() = false with DB_HOST set")
	}
	if cfg.IdempotencyRetentionHours != 24 {
		t.Errorf("IdempotencyRetentionHours = %d, want 24", cfg.IdempotencyRetentionHours)
	}
}

func TestLoadConfig_MemoryMode(t *testing.T) {
	os.Clearenv()
	os.Setenv("JWT_SECRET_KEY", "this_is_a_test_secret_key_with_32_chars_minimum")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.UseDatabase() {
		t.Error("UseDatabase() = true without DB_HOST")
	}
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
	}{
		{
			name:    "Missing JWT_SECRET_KEY",
			envVars: map[string]string{},
		},
		{
			name: "Missing DB_PASSWORD with DB_HOST set",
			envVars: map[string]string{
				"JWT_SECRET_KEY": "this_is_a_test_secret_key_with_32_chars_minimum",
				"DB_HOST":        "localhost",
			},
		},
		{
			name: "Bot token without admin chat",
			envVars: map[string]string{
				"JWT_SECRET_KEY": "this_is_a_test_secret_key_with_32_chars_minimum",
				"BOT_TOKEN":      "token",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			_, err := LoadConfig()
			if err == nil {
				t.Error("LoadConfig() expected error for missing required field, got nil")
			}
		})
	}
}

func TestValidate_JWTSecretTooShort(t *testing.T) {
	cfg := &Config{
		JWTSecret:                 "short",
		IdempotencyRetentionHours: 24,
	}

	err := cfg.Validate()
	if err == nil {
		t.Error("Validate() expected error for short JWT secret, got nil")
	}
}

func TestValidateProductionSecurity(t *testing.T) {
	tests := []struct {
		name      string
		cfg       *Config
		shouldErr bool
	}{
		{
			name: "Valid production config",
			cfg: &Config{
				AppEnv:    "production",
				DBHost:    "db.internal",
				DBSSLMode: "require",
				JWTSecret: "production_secret_key_different_from_default",
			},
			shouldErr: false,
		},
		{
			name: "Development mode - no validation",
			cfg: &Config{
				AppEnv:    "development",
				DBSSLMode: "disable",
			},
			shouldErr: false,
		},
		{
			name: "Production on memory store",
			cfg: &Config{
				AppEnv:    "production",
				DBSSLMode: "require",
				JWTSecret: "production_secret_key_different_from_default",
			},
			shouldErr: true,
		},
		{
			name: "Production without SSL",
			cfg: &Config{
				AppEnv:    "production",
				DBHost:    "db.internal",
				DBSSLMode: "disable",
				JWTSecret: "production_secret_key_different_from_default",
			},
			shouldErr: true,
		},
		{
			name: "Production with default JWT secret",
			cfg: &Config{
				AppEnv:    "production",
				DBHost:    "db.internal",
				DBSSLMode: "require",
				JWTSecret: "your_jwt_secret_minimum_32_chars_here_change_this",
			},
			shouldErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.ValidateProductionSecurity()
			if tt.shouldErr && err == nil {
				t.Error("ValidateProductionSecurity() expected error, got nil")
			}
			if !tt.shouldErr && err != nil {
				t.Errorf("ValidateProductionSecurity() unexpected error = %v", err)
			}
		})
	}
}

func TestGetDSN(t *testing.T) {
	cfg := &Config{
		DBHost:     "localhost",
		DBPort:     "5432",
		DBUser:     "testuser",
		DBPassword: "testpass",
		DBName:     "testdb",
		DBSSLMode:  "disable",
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	dsn := cfg.GetDSN()

	if dsn != expected {
		t.Errorf("GetDSN() = %q, want %q", dsn, expected)
	}
}

func TestIdempotencyRetention(t *testing.T) {
	cfg := &Config{IdempotencyRetentionHours: 24}
	if cfg.IdempotencyRetention() != 24*time.Hour {
		t.Errorf("IdempotencyRetention() = %v, want 24h", cfg.IdempotencyRetention())
	}
}
