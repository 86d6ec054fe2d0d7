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
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.StoreBackend != StoreBackendSQLite {
		t.Errorf("Expected sqlite backend, got %s", cfg.StoreBackend)
	}
	if cfg.Assistant.FreeDailyLimit != 100 {
		t.Errorf("Expected free limit 100, got %d", cfg.Assistant.FreeDailyLimit)
	}
	if cfg.Assistant.ProDailyLimit != 1000 {
		t.Errorf("Expected pro limit 1000, got %d", cfg.Assistant.ProDailyLimit)
	}
	if cfg.Assistant.TokenTTL != 5*time.Minute {
		t.Errorf("Expected token TTL 5m, got %v", cfg.Assistant.TokenTTL)
	}
	if cfg.Assistant.CredentialTTL != 24*time.Hour {
		t.Errorf("Expected credential TTL 24h, got %v", cfg.Assistant.CredentialTTL)
	}
	if cfg.Assistant.HistoryWindow != 5 {
		t.Errorf("Expected history window 5, got %d", cfg.Assistant.HistoryWindow)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("LOGIN_TOKEN_TTL", "five minutes")

	_, err := Load()
	if err == nil {
		t.Fatal("Expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "LOGIN_TOKEN_TTL") {
		t.Errorf("Expected error to name the variable, got %v", err)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("FREE_DAILY_LIMIT", "20")
	t.Setenv("FOLLOW_UP_WINDOW", "2m")
	t.Setenv("WHATSAPP_DRY_RUN", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Assistant.FreeDailyLimit != 20 {
		t.Errorf("Expected free limit 20, got %d", cfg.Assistant.FreeDailyLimit)
	}
	if cfg.Assistant.FollowUpWindow != 2*time.Minute {
		t.Errorf("Expected follow-up window 2m, got %v", cfg.Assistant.FollowUpWindow)
	}
	if !cfg.WhatsApp.DryRun {
		t.Error("Expected dry run to be enabled")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"unknown backend", map[string]string{"STORE_BACKEND": "mongo"}, "unknown STORE_BACKEND"},
		{"postgres without dsn", map[string]string{"STORE_BACKEND": "postgres"}, "POSTGRES_DSN"},
		{"zero history window", map[string]string{"HISTORY_WINDOW": "0"}, "HISTORY_WINDOW"},
		{"bad timezone", map[string]string{"QUOTA_TIMEZONE": "Mars/Olympus"}, "QUOTA_TIMEZONE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatalf("Expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
