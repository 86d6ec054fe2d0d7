package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BrokerSession is returned by the brokerage token exchange
type BrokerSession struct {
	AccessToken  string
	BrokerUserId string
	UserName     string
}

type Holding struct {
	TradingSymbol string          `json:"tradingsymbol"`
	Exchange      string          `json:"exchange"`
	Quantity      decimal.Decimal `json:"quantity"`
	AveragePrice  decimal.Decimal `json:"average_price"`
	LastPrice     decimal.Decimal `json:"last_price"`
	ClosePrice    decimal.Decimal `json:"close_price"`
}

type Position struct {
	TradingSymbol string          `json:"tradingsymbol"`
	Exchange      string          `json:"exchange"`
	Product       string          `json:"product"`
	Quantity      decimal.Decimal `json:"quantity"`
	AveragePrice  decimal.Decimal `json:"average_price"`
	LastPrice     decimal.Decimal `json:"last_price"`
	PnL           decimal.Decimal `json:"pnl"`
}

type Positions struct {
	Net []Position `json:"net"`
	Day []Position `json:"day"`
}

type AvailableMargin struct {
	Cash           decimal.Decimal `json:"cash"`
	LiveBalance    decimal.Decimal `json:"live_balance"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

type SegmentMargin struct {
	Enabled   bool            `json:"enabled"`
	Net       decimal.Decimal `json:"net"`
	Available AvailableMargin `json:"available"`
}

// Margins mirrors the per-segment funds report. A nil segment means the
// broker did not return it.
type Margins struct {
	Equity    *SegmentMargin `json:"equity"`
	Commodity *SegmentMargin `json:"commodity"`
}

type Order struct {
	OrderId        string
	TradingSymbol  string
	Exchange       string
	Status         string
	Side           string
	Quantity       decimal.Decimal
	Price          decimal.Decimal
	AveragePrice   decimal.Decimal
	OrderTimestamp time.Time
}

// Snapshot is the point-in-time input to metrics computation
type Snapshot struct {
	Holdings  []Holding
	Positions Positions
	Margins   Margins
}

// BrokerSnapshot is everything fetched for one request. Failed sub-fetches
// are left empty and named in Failed. SessionRejected is set when the
// brokerage refused the access token on any sub-fetch.
type BrokerSnapshot struct {
	Snapshot
	Orders          []Order
	Trades          []Trade
	FetchedAt       time.Time
	Failed          []string
	SessionRejected bool
}

// Complete reports whether every sub-fetch succeeded.
func (b *BrokerSnapshot) Complete() bool {
	return len(b.Failed) == 0
}
