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

package api

import (
	"context"
	"errors"
	"fmt"

	"tradechat-go/internal/models"
	"tradechat-go/internal/store"

	"go.uber.org/zap"
)

var ErrUserIdRequired = errors.New("user_id is required")

// AccountService provides the read-only account API
type AccountService struct {
	store store.Store
}

func NewAccountService(s store.Store) *AccountService {
	return &AccountService{
		store: s,
	}
}

func (s *AccountService) HealthCheck(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// GetUserStats returns activity counters for a user
func (s *AccountService) GetUserStats(ctx context.Context, userId string) (*models.UserStats, error) {
	if userId == "" {
		return nil, ErrUserIdRequired
	}

	user, err := s.store.GetUser(ctx, userId)
	if err != nil {
		return nil, err
	}

	turns, err := s.store.CountTurns(ctx, userId)
	if err != nil {
		zap.L().Error("Failed to count conversation turns", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve conversation count")
	}

	trades, err := s.store.ListTrades(ctx, userId)
	if err != nil {
		zap.L().Error("Failed to list trades", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve trades")
	}

	stats := &models.UserStats{
		UserId:            user.Id,
		Tier:              user.Usage.Tier,
		IsAuthenticated:   user.Auth.IsAuthenticated,
		MessageCount:      user.Dialogue.MessageCount,
		TotalQueries:      user.Usage.TotalQueries,
		DailyQueryCount:   user.Usage.DailyQueryCount,
		ConversationCount: turns,
		TradeCount:        len(trades),
		MemberSince:       user.CreatedAt,
	}
	if !user.Dialogue.LastMessageAt.IsZero() {
		last := user.Dialogue.LastMessageAt
		stats.LastMessageAt = &last
	}
	return stats, nil
}

// GetTradeHistory returns a page of synced trades for a user
func (s *AccountService) GetTradeHistory(ctx context.Context, userId string, limit, offset int) ([]models.Trade, error) {
	if userId == "" {
		return nil, ErrUserIdRequired
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	trades, err := s.store.ListTrades(ctx, userId)
	if err != nil {
		zap.L().Error("Failed to get trade history", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve trade history")
	}

	if offset >= len(trades) {
		return []models.Trade{}, nil
	}
	end := offset + limit
	if end > len(trades) {
		end = len(trades)
	}
	return trades[offset:end], nil
}

// SetTier changes a user's subscription tier
func (s *AccountService) SetTier(ctx context.Context, userId string, tier models.SubscriptionTier) (*models.User, error) {
	if userId == "" {
		return nil, ErrUserIdRequired
	}
	if _, ok := models.ParseTier(string(tier)); !ok {
		return nil, fmt.Errorf("unknown tier %q", tier)
	}

	user, err := s.store.UpdateUser(ctx, userId, func(u *models.User) error {
		u.Usage.Tier = tier
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update tier: %w", err)
	}

	zap.L().Info("Subscription tier updated",
		zap.String("user_id", userId),
		zap.String("tier", string(tier)))
	return user, nil
}
