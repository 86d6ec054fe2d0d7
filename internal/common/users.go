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

package common

import (
	"context"
	"fmt"

	"tradechat-go/internal/models"
	"tradechat-go/internal/store"

	"go.uber.org/zap"
)

// UserInfo represents simplified user information for command-line utilities
type UserInfo struct {
	Id              string
	Tier            models.SubscriptionTier
	IsAuthenticated bool
}

// InitializeUsers retrieves users based on an optional id filter.
// If userFilter is provided, returns a single user with that id.
// If userFilter is empty, returns all users.
func InitializeUsers(ctx context.Context, st store.Store, userFilter string, logger *zap.Logger) ([]UserInfo, error) {
	var users []UserInfo

	if userFilter != "" {
		logger.Info("Looking up user", zap.String("userId", userFilter))
		user, err := st.GetUser(ctx, userFilter)
		if err != nil {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		users = append(users, toUserInfo(*user))
	} else {
		allUsers, err := st.ListUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get users: %w", err)
		}
		for _, u := range allUsers {
			users = append(users, toUserInfo(u))
		}
	}

	logger.Info("Retrieved users", zap.Int("count", len(users)))
	return users, nil
}

func toUserInfo(u models.User) UserInfo {
	return UserInfo{
		Id:              u.Id,
		Tier:            u.Usage.Tier,
		IsAuthenticated: u.Auth.IsAuthenticated,
	}
}
