package broker

import (
	"context"
	"errors"
	"sync"
	"time"

	"tradechat-go/internal/models"

	"go.uber.org/zap"
)

// Resource names used in BrokerSnapshot.Failed.
const (
	ResourceHoldings  = "holdings"
	ResourcePositions = "positions"
	ResourceMargins   = "margins"
	ResourceOrders    = "orders"
	ResourceTrades    = "trades"
)

// ErrSessionRejected is matched by client errors meaning the access token is
// no longer accepted and the user has to log in again.
var ErrSessionRejected = errors.New("broker session rejected")

// Client is the brokerage surface the assistant consumes.
type Client interface {
	LoginURL(state string) string
	ExchangeToken(ctx context.Context, requestToken string) (*models.BrokerSession, error)
	Holdings(ctx context.Context, accessToken string) ([]models.Holding, error)
	Positions(ctx context.Context, accessToken string) (*models.Positions, error)
	Margins(ctx context.Context, accessToken string) (*models.Margins, error)
	Orders(ctx context.Context, accessToken string) ([]models.Order, error)
	Trades(ctx context.Context, accessToken string) ([]models.Trade, error)
}

// FetchSnapshot loads all five resources concurrently. A failed sub-fetch is
// logged, left empty and named in Failed; it never aborts the others.
func FetchSnapshot(ctx context.Context, client Client, accessToken string, now time.Time) *models.BrokerSnapshot {
	snapshot := &models.BrokerSnapshot{
		Snapshot: models.Snapshot{
			Holdings:  []models.Holding{},
			Positions: models.Positions{Net: []models.Position{}, Day: []models.Position{}},
		},
		Orders:    []models.Order{},
		Trades:    []models.Trade{},
		FetchedAt: now,
	}

	var (
		wg    sync.WaitGroup
		mutex sync.Mutex
	)
	fail := func(resource string, err error) {
		zap.L().Warn("Broker sub-fetch failed, continuing with empty result",
			zap.String("resource", resource),
			zap.Error(err))
		mutex.Lock()
		snapshot.Failed = append(snapshot.Failed, resource)
		if errors.Is(err, ErrSessionRejected) {
			snapshot.SessionRejected = true
		}
		mutex.Unlock()
	}

	wg.Add(5)
	go func() {
		defer wg.Done()
		holdings, err := client.Holdings(ctx, accessToken)
		if err != nil {
			fail(ResourceHoldings, err)
			return
		}
		if holdings != nil {
			snapshot.Holdings = holdings
		}
	}()
	go func() {
		defer wg.Done()
		positions, err := client.Positions(ctx, accessToken)
		if err != nil {
			fail(ResourcePositions, err)
			return
		}
		if positions != nil {
			if positions.Net != nil {
				snapshot.Positions.Net = positions.Net
			}
			if positions.Day != nil {
				snapshot.Positions.Day = positions.Day
			}
		}
	}()
	go func() {
		defer wg.Done()
		margins, err := client.Margins(ctx, accessToken)
		if err != nil {
			fail(ResourceMargins, err)
			return
		}
		if margins != nil {
			snapshot.Margins = *margins
		}
	}()
	go func() {
		defer wg.Done()
		orders, err := client.Orders(ctx, accessToken)
		if err != nil {
			fail(ResourceOrders, err)
			return
		}
		if orders != nil {
			snapshot.Orders = orders
		}
	}()
	go func() {
		defer wg.Done()
		trades, err := client.Trades(ctx, accessToken)
		if err != nil {
			fail(ResourceTrades, err)
			return
		}
		if trades != nil {
			snapshot.Trades = trades
		}
	}()
	wg.Wait()

	zap.L().Debug("Broker snapshot fetched",
		zap.Int("holdings", len(snapshot.Holdings)),
		zap.Int("net_positions", len(snapshot.Positions.Net)),
		zap.Int("orders", len(snapshot.Orders)),
		zap.Int("trades", len(snapshot.Trades)),
		zap.Strings("failed", snapshot.Failed),
		zap.Bool("session_rejected", snapshot.SessionRejected))
	return snapshot
}
