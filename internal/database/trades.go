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
	"fmt"

	"tradechat-go/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UpsertTrade stores a fill keyed by its broker trade id. Re-ingesting a known
// trade id refreshes its fields in place; row id and created_at are kept.
func (s *Service) UpsertTrade(ctx context.Context, trade models.Trade) error {
	if trade.TradeId == "" {
		return fmt.Errorf("trade id cannot be empty")
	}

	now := s.now().UTC()
	_, err := s.db.ExecContext(ctx, queryUpsertTrade,
		uuid.New().String(), trade.TradeId, trade.OrderId, trade.UserId,
		trade.TradingSymbol, trade.Exchange, trade.Product, trade.Side,
		trade.Quantity, trade.Price, trade.TradedAt.UTC(), now, now)
	if err != nil {
		zap.L().Error("Failed to upsert trade",
			zap.String("trade_id", trade.TradeId),
			zap.String("user_id", trade.UserId),
			zap.Error(err))
		return fmt.Errorf("unable to upsert trade: %w", err)
	}
	return nil
}

func (s *Service) ListTrades(ctx context.Context, userId string) ([]models.Trade, error) {
	rows, err := s.db.QueryContext(ctx, queryListTrades, userId)
	if err != nil {
		return nil, fmt.Errorf("unable to query trades: %w", err)
	}
	defer closeRows(rows)

	var trades []models.Trade
	for rows.Next() {
		var trade models.Trade
		err := rows.Scan(&trade.Id, &trade.TradeId, &trade.OrderId, &trade.UserId,
			&trade.TradingSymbol, &trade.Exchange, &trade.Product, &trade.Side,
			&trade.Quantity, &trade.Price, &trade.TradedAt, &trade.CreatedAt, &trade.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("unable to scan trade row: %w", err)
		}
		trades = append(trades, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}
