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

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradechat-go/internal/clock"
	"tradechat-go/internal/failure"
	"tradechat-go/internal/models"
	"tradechat-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultCredentialTTL = 24 * time.Hour

var (
	ErrNoRecentLogin  = errors.New("no recent login found")
	ErrExchangeFailed = errors.New("token exchange failed")
)

// ExchangeFailedError carries the broker's reason for rejecting a token.
type ExchangeFailedError struct {
	Reason string
	Err    error
}

func (e *ExchangeFailedError) Error() string {
	return fmt.Sprintf("%v: %s", ErrExchangeFailed, e.Reason)
}

func (e *ExchangeFailedError) Unwrap() []error {
	return []error{ErrExchangeFailed, e.Err}
}

// TokenExchanger is the brokerage surface the handshake needs.
type TokenExchanger interface {
	LoginURL(state string) string
	ExchangeToken(ctx context.Context, requestToken string) (*models.BrokerSession, error)
}

// Challenge is what the user receives to start a login.
type Challenge struct {
	LoginURL      string
	CorrelationId string
}

// HandshakeConfig contains configuration for Handshake
type HandshakeConfig struct {
	Store         store.Store
	Broker        TokenExchanger
	Registry      *TokenRegistry
	Clock         clock.Clock
	CredentialTTL time.Duration
}

// Handshake drives the external login: challenge, token callback, claim and
// credential exchange.
//
// A callback token is not bound to the user who asked for the challenge.
// CompleteHandshake claims the oldest unused token still inside the TTL, so
// two users logging in within the same window can receive each other's token.
type Handshake struct {
	store         store.Store
	broker        TokenExchanger
	registry      *TokenRegistry
	clock         clock.Clock
	credentialTTL time.Duration
}

func NewHandshake(cfg HandshakeConfig) *Handshake {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.CredentialTTL <= 0 {
		cfg.CredentialTTL = DefaultCredentialTTL
	}
	return &Handshake{
		store:         cfg.Store,
		broker:        cfg.Broker,
		registry:      cfg.Registry,
		clock:         cfg.Clock,
		credentialTTL: cfg.CredentialTTL,
	}
}

// IssueChallenge builds a login URL and records the correlation id on the
// user. It always returns a challenge; failing to store the id is logged.
func (h *Handshake) IssueChallenge(ctx context.Context, userId string) *Challenge {
	correlationId := fmt.Sprintf("session_%s", uuid.New().String())
	challenge := &Challenge{
		LoginURL:      h.broker.LoginURL(correlationId),
		CorrelationId: correlationId,
	}

	_, err := h.store.UpdateUser(ctx, userId, func(u *models.User) error {
		u.Auth.SessionId = correlationId
		return nil
	})
	if err != nil {
		zap.L().Warn("Failed to store login correlation id",
			zap.String("user_id", userId),
			zap.Error(err))
	}

	zap.L().Info("Login challenge issued",
		zap.String("user_id", userId),
		zap.String("correlation_id", correlationId))
	return challenge
}

// IngestToken feeds a login callback into the registry. The state is only
// logged; it does not decide which user the token goes to.
func (h *Handshake) IngestToken(cb models.LoginCallback) bool {
	if cb.RequestToken == "" {
		zap.L().Warn("Login callback without request token",
			zap.String("state", cb.State),
			zap.String("status", cb.Status))
		return false
	}

	added := h.registry.Ingest(cb.RequestToken)
	zap.L().Info("Login callback received",
		zap.String("state", cb.State),
		zap.String("token_prefix", tokenPrefix(cb.RequestToken)),
		zap.Bool("new", added))
	return added
}

// CompleteHandshake claims a recent token, exchanges it for a credential and
// stores the credential on the user in one update. Terminal failures
// (ErrNoRecentLogin, ExchangeFailedError) leave the user record unchanged.
func (h *Handshake) CompleteHandshake(ctx context.Context, userId string) (*models.Credential, error) {
	token, ok := h.registry.ClaimUnused()
	if !ok {
		zap.L().Info("No recent login to complete", zap.String("user_id", userId))
		return nil, failure.Terminal("complete handshake", ErrNoRecentLogin)
	}

	session, err := h.broker.ExchangeToken(ctx, token)
	if err != nil {
		zap.L().Warn("Token exchange failed",
			zap.String("user_id", userId),
			zap.String("token_prefix", tokenPrefix(token)),
			zap.Error(err))
		return nil, failure.Terminal("complete handshake", &ExchangeFailedError{Reason: err.Error(), Err: err})
	}
	if session == nil || session.AccessToken == "" {
		return nil, failure.Terminal("complete handshake", &ExchangeFailedError{Reason: "broker returned no access token"})
	}

	now := h.clock.Now()
	credential := models.Credential{
		AccessToken:  session.AccessToken,
		BrokerUserId: session.BrokerUserId,
		IssuedAt:     now,
		ExpiresAt:    now.Add(h.credentialTTL),
	}

	_, err = h.store.UpdateUser(ctx, userId, func(u *models.User) error {
		u.Auth.SetCredential(credential)
		return nil
	})
	if err != nil {
		return nil, failure.Transient("store credential", err)
	}

	zap.L().Info("Handshake completed",
		zap.String("user_id", userId),
		zap.String("broker_user_id", session.BrokerUserId),
		zap.Time("expires_at", credential.ExpiresAt))
	return &credential, nil
}

// RevokeCredential drops the stored credential after the brokerage rejected
// it, so the next data request asks the user to log in again.
func (h *Handshake) RevokeCredential(ctx context.Context, userId string) error {
	_, err := h.store.UpdateUser(ctx, userId, func(u *models.User) error {
		u.Auth.ClearCredential()
		return nil
	})
	if err != nil {
		return failure.Transient("revoke credential", err)
	}

	zap.L().Info("Credential revoked after broker rejection", zap.String("user_id", userId))
	return nil
}

// RequiresAuthentication reports whether user lacks a usable credential.
func (h *Handshake) RequiresAuthentication(user *models.User) bool {
	if user == nil || !user.Auth.HasCredential() {
		return true
	}
	return h.clock.Now().After(user.Auth.ExpiresAt)
}

// RequiresAuthenticationFor loads userId and applies RequiresAuthentication.
func (h *Handshake) RequiresAuthenticationFor(ctx context.Context, userId string) (bool, error) {
	user, err := h.store.GetUser(ctx, userId)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return true, nil
		}
		return true, err
	}
	return h.RequiresAuthentication(user), nil
}

func tokenPrefix(token string) string {
	if len(token) > 6 {
		return token[:6] + "..."
	}
	return "***"
}
