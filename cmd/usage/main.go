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
	"time"

	"tradechat-go/internal/api"
	"tradechat-go/internal/common"
	"tradechat-go/internal/config"
	"tradechat-go/internal/models"

	"go.uber.org/zap"
)

type usageStats struct {
	totalUsers    int
	authenticated int
	totalQueries  int64
	totalTrades   int
}

func formatLastSeen(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format("2006-01-02 15:04:05")
}

func printUserStats(user common.UserInfo, stats *models.UserStats) {
	// Stats are fresher than the listing that produced user.
	user.Tier = stats.Tier
	user.IsAuthenticated = stats.IsAuthenticated

	common.PrintUserBox(user, []common.ReportField{
		{Label: "Messages", Value: strconv.FormatInt(stats.MessageCount, 10)},
		{Label: "Queries today", Value: strconv.Itoa(stats.DailyQueryCount)},
		{Label: "Queries total", Value: strconv.FormatInt(stats.TotalQueries, 10)},
		{Label: "Stored turns", Value: strconv.FormatInt(stats.ConversationCount, 10)},
		{Label: "Synced trades", Value: strconv.Itoa(stats.TradeCount)},
		{Label: "Last message", Value: formatLastSeen(stats.LastMessageAt)},
		{Label: "Member since", Value: stats.MemberSince.Format("2006-01-02")},
	}, common.DefaultWidth)
}

func processUsersAndGenerateReport(ctx context.Context, users []common.UserInfo, accounts *api.AccountService, logger *zap.Logger) usageStats {
	report := usageStats{}

	for _, user := range users {
		report.totalUsers++

		stats, err := accounts.GetUserStats(ctx, user.Id)
		if err != nil {
			logger.Error("Failed to load user stats",
				zap.String("user_id", user.Id),
				zap.Error(err))
			continue
		}

		printUserStats(user, stats)
		if stats.IsAuthenticated {
			report.authenticated++
		}
		report.totalQueries += stats.TotalQueries
		report.totalTrades += stats.TradeCount
	}

	return report
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	userFlag := flag.String("user", "", "Filter by specific user id (optional)")
	flag.Parse()

	logger.Info("Starting usage report")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Read-only: no brokerage or generator clients needed
	st, err := common.InitializeStore(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize store", zap.Error(err))
	}
	defer st.Close()

	users, err := common.InitializeUsers(ctx, st, *userFlag, logger)
	if err != nil {
		logger.Fatal("Failed to initialize users", zap.Error(err))
	}

	common.PrintHeader("USER USAGE REPORT", common.DefaultWidth)

	report := processUsersAndGenerateReport(ctx, users, api.NewAccountService(st), logger)

	summary := fmt.Sprintf("SUMMARY: %d users (%d connected), %d queries, %d synced trades",
		report.totalUsers, report.authenticated, report.totalQueries, report.totalTrades)
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Usage report completed",
		zap.Int("users", report.totalUsers),
		zap.Int("authenticated", report.authenticated),
		zap.Int64("total_queries", report.totalQueries))
}
