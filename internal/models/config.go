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

package models

import "time"

// Config holds application configuration
type Config struct {
	StoreBackend string
	Database     DatabaseConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Server       ServerConfig
	Kite         KiteConfig
	Anthropic    AnthropicConfig
	WhatsApp     WhatsAppConfig
	Assistant    AssistantConfig
}

// DatabaseConfig holds SQLite database settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// PostgresConfig holds settings for the Postgres store backend
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// RedisConfig enables Redis-backed inbound delivery dedupe when Addr is set
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	Prefix      string
	DeliveryTTL time.Duration
}

type ServerConfig struct {
	Addr          string
	PublicBaseURL string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	ShutdownGrace time.Duration
}

// KiteConfig holds brokerage API credentials
type KiteConfig struct {
	ApiKey         string
	ApiSecret      string
	BaseURL        string
	LoginURL       string
	RequestTimeout time.Duration
}

type AnthropicConfig struct {
	ApiKey         string
	Model          string
	BaseURL        string
	MaxTokens      int
	RequestTimeout time.Duration
}

// WhatsAppConfig holds Cloud API settings. DryRun logs outbound messages
// instead of sending them.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberId string
	BaseURL       string
	DryRun        bool
}

// AssistantConfig holds conversation, quota and handshake tuning
type AssistantConfig struct {
	HistoryWindow        int
	FollowUpWindow       time.Duration
	TokenTTL             time.Duration
	TokenCleanupInterval time.Duration
	CredentialTTL        time.Duration
	FreeDailyLimit       int
	ProDailyLimit        int
	QuotaTimezone        string
	TypoDictionaryFile   string
	BrokerFetchTimeout   time.Duration
}
