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

import (
	"time"

	"github.com/shopspring/decimal"
)

type SubscriptionTier string

const (
	TierFree SubscriptionTier = "free"
	TierPro  SubscriptionTier = "pro"
)

// ParseTier returns the tier for s, or false when s names no known tier.
func ParseTier(s string) (SubscriptionTier, bool) {
	switch SubscriptionTier(s) {
	case TierFree:
		return TierFree, true
	case TierPro:
		return TierPro, true
	}
	return "", false
}

// User represents a chat user keyed by their phone-equivalent identifier
type User struct {
	Id        string
	Auth      AuthState
	Usage     UsageState
	Dialogue  DialogueState
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AuthState holds the brokerage credential lifecycle. AccessToken and
// ExpiresAt are only ever set or cleared together via SetCredential and
// ClearCredential.
type AuthState struct {
	AccessToken     string
	BrokerUserId    string
	SessionId       string
	IsAuthenticated bool
	AuthenticatedAt time.Time
	ExpiresAt       time.Time
}

// Credential is the result of a successful token exchange
type Credential struct {
	AccessToken  string
	BrokerUserId string
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

func (a *AuthState) SetCredential(c Credential) {
	a.AccessToken = c.AccessToken
	a.BrokerUserId = c.BrokerUserId
	a.IsAuthenticated = true
	a.AuthenticatedAt = c.IssuedAt
	a.ExpiresAt = c.ExpiresAt
}

func (a *AuthState) ClearCredential() {
	a.AccessToken = ""
	a.BrokerUserId = ""
	a.IsAuthenticated = false
	a.AuthenticatedAt = time.Time{}
	a.ExpiresAt = time.Time{}
}

// HasCredential reports whether a credential is present, regardless of expiry.
func (a AuthState) HasCredential() bool {
	return a.AccessToken != "" && !a.ExpiresAt.IsZero()
}

type UsageState struct {
	TotalQueries      int64
	DailyQueryCount   int
	DailyQueryResetAt time.Time
	Tier              SubscriptionTier
}

type DialogueState struct {
	CurrentTopic  string
	MessageCount  int64
	LastMessageAt time.Time
}

// Entity is a typed value extracted from a message, e.g. {stock, TCS}
type Entity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ConversationTurn is an immutable record of one processed message
type ConversationTurn struct {
	Id             string
	UserId         string
	UserMessage    string
	NormalizedText string
	ResponseText   string
	Intent         string
	Confidence     float64
	Entities       []Entity
	IsFollowUp     bool
	TokensUsed     int
	ResponseTimeMs int64
	CreatedAt      time.Time
}

// Trade is an executed fill keyed by the broker-assigned trade id
type Trade struct {
	Id            string          `json:"id"`
	TradeId       string          `json:"tradeId"`
	OrderId       string          `json:"orderId"`
	UserId        string          `json:"userId"`
	TradingSymbol string          `json:"tradingSymbol"`
	Exchange      string          `json:"exchange"`
	Product       string          `json:"product"`
	Side          string          `json:"side"`
	Quantity      decimal.Decimal `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	TradedAt      time.Time       `json:"tradedAt"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}
