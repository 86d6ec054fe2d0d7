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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tradechat-go/internal/models"
	"tradechat-go/internal/store"

	"go.uber.org/zap"
)

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var tier string
	var authenticatedAt, expiresAt, resetAt, lastAt sql.NullTime
	err := row.Scan(
		&user.Id, &user.Auth.AccessToken, &user.Auth.BrokerUserId, &user.Auth.SessionId, &user.Auth.IsAuthenticated,
		&authenticatedAt, &expiresAt,
		&user.Usage.TotalQueries, &user.Usage.DailyQueryCount, &resetAt, &tier,
		&user.Dialogue.CurrentTopic, &user.Dialogue.MessageCount, &lastAt,
		&user.Version, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}

	user.Auth.AuthenticatedAt = fromNullTime(authenticatedAt)
	user.Auth.ExpiresAt = fromNullTime(expiresAt)
	user.Usage.DailyQueryResetAt = fromNullTime(resetAt)
	user.Usage.Tier = models.SubscriptionTier(tier)
	user.Dialogue.LastMessageAt = fromNullTime(lastAt)
	return &user, nil
}

func (s *Service) GetOrCreateUser(ctx context.Context, userId string) (*models.User, error) {
	if userId == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}

	now := s.now().UTC()
	result, err := s.db.ExecContext(ctx, queryInsertUser, userId, string(models.TierFree), now, now)
	if err != nil {
		zap.L().Error("Failed to insert user", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("unable to insert user: %w", err)
	}

	if rowsAffected, err := result.RowsAffected(); err == nil && rowsAffected > 0 {
		zap.L().Info("User created", zap.String("user_id", userId))
	}

	return s.GetUser(ctx, userId)
}

func (s *Service) GetUser(ctx context.Context, userId string) (*models.User, error) {
	zap.L().Debug("Querying user by ID", zap.String("user_id", userId))

	user, err := scanUser(s.db.QueryRowContext(ctx, queryGetUserById, userId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrUserNotFound, userId)
		}
		zap.L().Error("Failed to query user by ID", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("unable to query user by ID: %w", err)
	}
	return user, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, queryListUsers)
	if err != nil {
		zap.L().Error("Failed to query users", zap.Error(err))
		return nil, fmt.Errorf("unable to query users: %w", err)
	}
	defer closeRows(rows)

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan user row: %w", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	zap.L().Debug("Retrieved users", zap.Int("count", len(users)))
	return users, nil
}

func (s *Service) UpdateUser(ctx context.Context, userId string, mutate store.UserMutation) (*models.User, error) {
	return store.RetryOnConflict(ctx, func() (*models.User, error) {
		return s.updateUserOnce(ctx, userId, mutate)
	})
}

func (s *Service) updateUserOnce(ctx context.Context, userId string, mutate store.UserMutation) (*models.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to begin transaction: %w", err)
	}
	defer rollback(tx)

	user, err := scanUser(tx.QueryRowContext(ctx, queryGetUserById, userId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrUserNotFound, userId)
		}
		return nil, fmt.Errorf("unable to load user for update: %w", err)
	}

	expectedVersion := user.Version
	if err := mutate(user); err != nil {
		return nil, err
	}
	user.Id = userId
	user.Version = expectedVersion + 1
	user.UpdatedAt = s.now().UTC()

	result, err := tx.ExecContext(ctx, queryUpdateUser,
		user.Auth.AccessToken, user.Auth.BrokerUserId, user.Auth.SessionId, user.Auth.IsAuthenticated,
		nullTime(user.Auth.AuthenticatedAt), nullTime(user.Auth.ExpiresAt),
		user.Usage.TotalQueries, user.Usage.DailyQueryCount, nullTime(user.Usage.DailyQueryResetAt), string(user.Usage.Tier),
		user.Dialogue.CurrentTopic, user.Dialogue.MessageCount, nullTime(user.Dialogue.LastMessageAt),
		user.Version, user.UpdatedAt,
		userId, expectedVersion)
	if err != nil {
		return nil, fmt.Errorf("unable to update user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("unable to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		zap.L().Debug("Optimistic lock conflict on user",
			zap.String("user_id", userId),
			zap.Int64("expected_version", expectedVersion))
		return nil, store.ErrConcurrentModification
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("unable to commit user update: %w", err)
	}
	return user, nil
}
