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

package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"tradechat-go/internal/api"
	"tradechat-go/internal/common"
	"tradechat-go/internal/config"
	"tradechat-go/internal/models"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	userFlag := flag.String("user", "", "User id to update (required)")
	tierFlag := flag.String("tier", "", "Subscription tier: free or pro (required)")
	flag.Parse()

	if *userFlag == "" || *tierFlag == "" {
		zap.L().Fatal("Both flags are required: --user and --tier")
	}

	tier, ok := models.ParseTier(*tierFlag)
	if !ok {
		zap.L().Fatal("Invalid tier", zap.String("tier", *tierFlag))
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	st, err := common.InitializeStore(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize store", zap.Error(err))
	}
	defer st.Close()

	user, err := api.NewAccountService(st).SetTier(ctx, *userFlag, tier)
	if err != nil {
		zap.L().Fatal("Failed to set tier", zap.String("user_id", *userFlag), zap.Error(err))
	}

	common.PrintHeader("TIER UPDATED", common.DefaultWidth)
	common.PrintUserBox(common.UserInfo{
		Id:              user.Id,
		Tier:            user.Usage.Tier,
		IsAuthenticated: user.Auth.IsAuthenticated,
	}, []common.ReportField{
		{Label: "Daily limit", Value: strconv.Itoa(limitFor(cfg, tier))},
		{Label: "Used today", Value: strconv.Itoa(user.Usage.DailyQueryCount)},
	}, common.DefaultWidth)
	fmt.Println()
}

func limitFor(cfg *models.Config, tier models.SubscriptionTier) int {
	if tier == models.TierPro {
		return cfg.Assistant.ProDailyLimit
	}
	return cfg.Assistant.FreeDailyLimit
}
