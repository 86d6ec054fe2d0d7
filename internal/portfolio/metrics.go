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

package portfolio

import (
	"sort"
	"strings"

	"tradechat-go/internal/models"

	"github.com/shopspring/decimal"
)

// TopN bounds the gainer and loser lists.
const TopN = 3

var hundred = decimal.NewFromInt(100)

type HoldingMetric struct {
	Symbol       string
	Exchange     string
	Quantity     decimal.Decimal
	AveragePrice decimal.Decimal
	LastPrice    decimal.Decimal
	CurrentValue decimal.Decimal
	Investment   decimal.Decimal
	PnL          decimal.Decimal
	PnLPercent   decimal.Decimal
	// DayChangePercent compares LastPrice with the previous close.
	DayChangePercent decimal.Decimal
}

type HoldingsSummary struct {
	TotalValue      decimal.Decimal
	TotalInvestment decimal.Decimal
	TotalPnL        decimal.Decimal
	TotalPnLPercent decimal.Decimal
	Count           int
	TopGainers      []HoldingMetric
	TopLosers       []HoldingMetric
	// Items preserves snapshot order.
	Items []HoldingMetric
}

type PositionsSummary struct {
	TotalPnL  decimal.Decimal
	OpenCount int
	DayPnL    decimal.Decimal
}

type OverallSummary struct {
	AvailableCash      decimal.Decimal
	TotalCapital       decimal.Decimal
	TotalDeployed      decimal.Decimal
	UtilizationPercent decimal.Decimal
}

// Metrics is derived from a Snapshot on every request and never stored.
type Metrics struct {
	Holdings  HoldingsSummary
	Positions PositionsSummary
	Overall   OverallSummary
}

// percent returns part/whole*100, or zero when whole is not positive.
func percent(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}

func holdingMetric(h models.Holding) HoldingMetric {
	currentValue := h.Quantity.Mul(h.LastPrice)
	investment := h.Quantity.Mul(h.AveragePrice)
	pnl := currentValue.Sub(investment)

	return HoldingMetric{
		Symbol:           h.TradingSymbol,
		Exchange:         h.Exchange,
		Quantity:         h.Quantity,
		AveragePrice:     h.AveragePrice,
		LastPrice:        h.LastPrice,
		CurrentValue:     currentValue,
		Investment:       investment,
		PnL:              pnl,
		PnLPercent:       percent(pnl, investment),
		DayChangePercent: percent(h.LastPrice.Sub(h.ClosePrice), h.ClosePrice),
	}
}

// Compute derives Metrics from snapshot. It does not modify snapshot.
func Compute(snapshot models.Snapshot) Metrics {
	var m Metrics

	items := make([]HoldingMetric, 0, len(snapshot.Holdings))
	var gainers, losers []HoldingMetric
	for _, h := range snapshot.Holdings {
		hm := holdingMetric(h)
		items = append(items, hm)

		m.Holdings.TotalValue = m.Holdings.TotalValue.Add(hm.CurrentValue)
		m.Holdings.TotalInvestment = m.Holdings.TotalInvestment.Add(hm.Investment)
		m.Holdings.TotalPnL = m.Holdings.TotalPnL.Add(hm.PnL)

		if hm.PnL.IsPositive() {
			gainers = append(gainers, hm)
		} else {
			losers = append(losers, hm)
		}
	}
	m.Holdings.Items = items
	m.Holdings.Count = len(items)
	m.Holdings.TotalPnLPercent = percent(m.Holdings.TotalPnL, m.Holdings.TotalInvestment)

	sort.SliceStable(gainers, func(i, j int) bool {
		return gainers[i].PnLPercent.GreaterThan(gainers[j].PnLPercent)
	})
	sort.SliceStable(losers, func(i, j int) bool {
		return losers[i].PnLPercent.LessThan(losers[j].PnLPercent)
	})
	m.Holdings.TopGainers = truncate(gainers, TopN)
	m.Holdings.TopLosers = truncate(losers, TopN)

	for _, p := range snapshot.Positions.Net {
		if p.Quantity.IsZero() {
			continue
		}
		m.Positions.OpenCount++
		m.Positions.TotalPnL = m.Positions.TotalPnL.Add(p.PnL)
	}
	for _, p := range snapshot.Positions.Day {
		m.Positions.DayPnL = m.Positions.DayPnL.Add(p.PnL)
	}

	if equity := snapshot.Margins.Equity; equity != nil {
		m.Overall.AvailableCash = equity.Available.Cash
		m.Overall.TotalCapital = equity.Net
	}
	m.Overall.TotalDeployed = m.Holdings.TotalValue
	m.Overall.UtilizationPercent = percent(m.Overall.TotalDeployed, m.Overall.TotalCapital)

	return m
}

func truncate(list []HoldingMetric, n int) []HoldingMetric {
	if len(list) > n {
		list = list[:n]
	}
	out := make([]HoldingMetric, len(list))
	copy(out, list)
	return out
}

// LargestByValue returns up to n holdings ordered by current value, largest first.
func (h HoldingsSummary) LargestByValue(n int) []HoldingMetric {
	sorted := make([]HoldingMetric, len(h.Items))
	copy(sorted, h.Items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CurrentValue.GreaterThan(sorted[j].CurrentValue)
	})
	return truncate(sorted, n)
}

// Find returns the holding for symbol, matched case-insensitively.
func (h HoldingsSummary) Find(symbol string) (HoldingMetric, bool) {
	for _, item := range h.Items {
		if strings.EqualFold(item.Symbol, symbol) {
			return item, true
		}
	}
	return HoldingMetric{}, false
}
