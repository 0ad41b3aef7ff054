package domain

import "time"

// PnLTotals is the account-level profit and loss aggregate.
type PnLTotals struct {
	Realized   float64 `json:"realized"`
	Unrealized float64 `json:"unrealized"`
	Day        float64 `json:"day"`
	Currency   string  `json:"currency"`
}

// PnLSymbol is the per-symbol profit and loss breakdown.
type PnLSymbol struct {
	Symbol     string  `json:"symbol"`
	Side       Side    `json:"side"`
	Qty        int     `json:"qty"`
	Avg        float64 `json:"avg"`
	LTP        float64 `json:"ltp"`
	Unrealized float64 `json:"unrealized"`
	TodayPnL   float64 `json:"todayPnL"`
}

// PnL is a single internally-consistent aggregate. It is never diffed: a
// partial update could present totals and breakdown from different snapshots.
type PnL struct {
	Totals     PnLTotals   `json:"totals"`
	PerSymbol  []PnLSymbol `json:"perSymbol"`
	UpdatedAt  time.Time   `json:"updatedAt"`
	TradingDay string      `json:"tradingDay"`
}

// UnrealizedDrift returns the absolute difference between the aggregate
// unrealized figure and the sum of the per-symbol unrealized figures.
func (p PnL) UnrealizedDrift() float64 {
	var sum float64
	for _, s := range p.PerSymbol {
		sum += s.Unrealized
	}
	drift := p.Totals.Unrealized - sum
	if drift < 0 {
		drift = -drift
	}
	return drift
}
