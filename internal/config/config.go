/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"tradechat-go/internal/models"
)

const (
	StoreBackendSQLite   = "sqlite"
	StoreBackendPostgres = "postgres"
)

func Load() (*models.Config, error) {
	durations := map[string]struct {
		key string
		def time.Duration
	}{
		"connMaxLifetime":   {"DB_CONN_MAX_LIFETIME", 5 * time.Minute},
		"connMaxIdleTime":   {"DB_CONN_MAX_IDLE_TIME", 30 * time.Second},
		"pingTimeout":       {"DB_PING_TIMEOUT", 5 * time.Second},
		"pgConnMaxLifetime": {"POSTGRES_CONN_MAX_LIFETIME", 5 * time.Minute},
		"deliveryTTL":       {"REDIS_DELIVERY_TTL", 24 * time.Hour},
		"readTimeout":       {"SERVER_READ_TIMEOUT", 15 * time.Second},
		"writeTimeout":      {"SERVER_WRITE_TIMEOUT", 90 * time.Second},
		"shutdownGrace":     {"SERVER_SHUTDOWN_GRACE", 30 * time.Second},
		"kiteTimeout":       {"KITE_REQUEST_TIMEOUT", 20 * time.Second},
		"anthropicTimeout":  {"ANTHROPIC_REQUEST_TIMEOUT", 60 * time.Second},
		"followUpWindow":    {"FOLLOW_UP_WINDOW", 5 * time.Minute},
		"tokenTTL":          {"LOGIN_TOKEN_TTL", 5 * time.Minute},
		"tokenCleanup":      {"LOGIN_TOKEN_CLEANUP_INTERVAL", time.Minute},
		"credentialTTL":     {"CREDENTIAL_TTL", 24 * time.Hour},
		"brokerFetch":       {"BROKER_FETCH_TIMEOUT", 30 * time.Second},
	}

	d := make(map[string]time.Duration, len(durations))
	for name, spec := range durations {
		value, err := getEnvDuration(spec.key, spec.def)
		if err != nil {
			return nil, err
		}
		d[name] = value
	}

	cfg := &models.Config{
		StoreBackend: getEnvString("STORE_BACKEND", StoreBackendSQLite),
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "tradechat.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: d["connMaxLifetime"],
			ConnMaxIdleTime: d["connMaxIdleTime"],
			PingTimeout:     d["pingTimeout"],
		},
		Postgres: models.PostgresConfig{
			DSN:             getEnvString("POSTGRES_DSN", ""),
			MaxOpenConns:    getEnvInt("POSTGRES_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: d["pgConnMaxLifetime"],
			PingTimeout:     d["pingTimeout"],
		},
		Redis: models.RedisConfig{
			Addr:        getEnvString("REDIS_ADDR", ""),
			Password:    getEnvString("REDIS_PASSWORD", ""),
			DB:          getEnvInt("REDIS_DB", 0),
			Prefix:      getEnvString("REDIS_PREFIX", "tradechat:"),
			DeliveryTTL: d["deliveryTTL"],
		},
		Server: models.ServerConfig{
			Addr:          getEnvString("SERVER_ADDR", ":3000"),
			PublicBaseURL: getEnvString("PUBLIC_BASE_URL", "http://localhost:3000"),
			ReadTimeout:   d["readTimeout"],
			WriteTimeout:  d["writeTimeout"],
			ShutdownGrace: d["shutdownGrace"],
		},
		Kite: models.KiteConfig{
			ApiKey:         getEnvString("KITE_API_KEY", ""),
			ApiSecret:      getEnvString("KITE_API_SECRET", ""),
			BaseURL:        getEnvString("KITE_BASE_URL", "https://api.kite.trade"),
			LoginURL:       getEnvString("KITE_LOGIN_URL", "https://kite.zerodha.com/connect/login"),
			RequestTimeout: d["kiteTimeout"],
		},
		Anthropic: models.AnthropicConfig{
			ApiKey:         getEnvString("ANTHROPIC_API_KEY", ""),
			Model:          getEnvString("ANTHROPIC_MODEL", "claude-3-haiku-20240307"),
			BaseURL:        getEnvString("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
			MaxTokens:      getEnvInt("ANTHROPIC_MAX_TOKENS", 1000),
			RequestTimeout: d["anthropicTimeout"],
		},
		WhatsApp: models.WhatsAppConfig{
			AccessToken:   getEnvString("WHATSAPP_ACCESS_TOKEN", ""),
			PhoneNumberId: getEnvString("WHATSAPP_PHONE_NUMBER_ID", ""),
			BaseURL:       getEnvString("WHATSAPP_BASE_URL", "https://graph.facebook.com/v18.0"),
			DryRun:        getEnvBool("WHATSAPP_DRY_RUN", false),
		},
		Assistant: models.AssistantConfig{
			HistoryWindow:        getEnvInt("HISTORY_WINDOW", 5),
			FollowUpWindow:       d["followUpWindow"],
			TokenTTL:             d["tokenTTL"],
			TokenCleanupInterval: d["tokenCleanup"],
			CredentialTTL:        d["credentialTTL"],
			FreeDailyLimit:       getEnvInt("FREE_DAILY_LIMIT", 100),
			ProDailyLimit:        getEnvInt("PRO_DAILY_LIMIT", 1000),
			QuotaTimezone:        getEnvString("QUOTA_TIMEZONE", "Asia/Kolkata"),
			TypoDictionaryFile:   getEnvString("TYPO_DICTIONARY_FILE", ""),
			BrokerFetchTimeout:   d["brokerFetch"],
		},
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot start with.
func Validate(cfg *models.Config) error {
	switch cfg.StoreBackend {
	case StoreBackendSQLite:
		if cfg.Database.Path == "" {
			return fmt.Errorf("DATABASE_PATH is required for the sqlite backend")
		}
	case StoreBackendPostgres:
		if cfg.Postgres.DSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	a := cfg.Assistant
	if a.HistoryWindow <= 0 {
		return fmt.Errorf("HISTORY_WINDOW must be positive, got %d", a.HistoryWindow)
	}
	if a.FreeDailyLimit <= 0 || a.ProDailyLimit <= 0 {
		return fmt.Errorf("daily limits must be positive, got free=%d pro=%d", a.FreeDailyLimit, a.ProDailyLimit)
	}
	if a.TokenTTL <= 0 || a.CredentialTTL <= 0 || a.FollowUpWindow <= 0 {
		return fmt.Errorf("token TTL, credential TTL and follow-up window must be positive")
	}
	if a.TokenCleanupInterval <= 0 {
		return fmt.Errorf("LOGIN_TOKEN_CLEANUP_INTERVAL must be positive, got %v", a.TokenCleanupInterval)
	}
	if _, err := time.LoadLocation(a.QuotaTimezone); err != nil {
		return fmt.Errorf("invalid QUOTA_TIMEZONE %q: %w", a.QuotaTimezone, err)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
