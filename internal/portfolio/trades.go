package portfolio

import (
	"context"
	"errors"
	"fmt"

	"tradechat-go/internal/models"

	"go.uber.org/zap"
)

// TradeWriter is the slice of the store trade ingestion needs.
type TradeWriter interface {
	UpsertTrade(ctx context.Context, trade models.Trade) error
}

// IngestTrades upserts each fetched trade for userId by its broker trade id.
// A failing trade does not stop the rest; the count of stored trades and the
// joined errors are returned.
func IngestTrades(ctx context.Context, w TradeWriter, userId string, trades []models.Trade) (int, error) {
	var errs []error
	stored := 0
	for _, trade := range trades {
		if trade.TradeId == "" {
			errs = append(errs, fmt.Errorf("trade for %s has no trade id", trade.TradingSymbol))
			continue
		}
		trade.UserId = userId
		if err := w.UpsertTrade(ctx, trade); err != nil {
			errs = append(errs, fmt.Errorf("trade %s: %w", trade.TradeId, err))
			continue
		}
		stored++
	}

	if len(errs) > 0 {
		zap.L().Warn("Some trades could not be stored",
			zap.String("user_id", userId),
			zap.Int("stored", stored),
			zap.Int("failed", len(errs)))
	}
	return stored, errors.Join(errs...)
}
