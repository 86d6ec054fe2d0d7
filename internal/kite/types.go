package kite

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Kite reports exchange timestamps as naive IST wall-clock strings.
var ist = time.FixedZone("IST", 5*60*60+30*60)

const timestampLayout = "2006-01-02 15:04:05"

type envelope struct {
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data"`
	Message   string          `json:"message"`
	ErrorType string          `json:"error_type"`
}

type sessionData struct {
	UserId      string `json:"user_id"`
	UserName    string `json:"user_name"`
	AccessToken string `json:"access_token"`
}

type orderData struct {
	OrderId         string          `json:"order_id"`
	Status          string          `json:"status"`
	TradingSymbol   string          `json:"tradingsymbol"`
	Exchange        string          `json:"exchange"`
	TransactionType string          `json:"transaction_type"`
	Quantity        decimal.Decimal `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	AveragePrice    decimal.Decimal `json:"average_price"`
	OrderTimestamp  timestamp       `json:"order_timestamp"`
}

type tradeData struct {
	TradeId         string          `json:"trade_id"`
	OrderId         string          `json:"order_id"`
	Exchange        string          `json:"exchange"`
	TradingSymbol   string          `json:"tradingsymbol"`
	Product         string          `json:"product"`
	TransactionType string          `json:"transaction_type"`
	Quantity        decimal.Decimal `json:"quantity"`
	AveragePrice    decimal.Decimal `json:"average_price"`
	FillTimestamp   timestamp       `json:"fill_timestamp"`
	OrderTimestamp  timestamp       `json:"order_timestamp"`
}

type timestamp struct {
	time.Time
}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseInLocation(timestampLayout, s, ist)
	if err != nil {
		if parsed, err = time.Parse(time.RFC3339, s); err != nil {
			return err
		}
	}
	t.Time = parsed.UTC()
	return nil
}
