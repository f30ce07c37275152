// Package settlement computes binary settlement PnL (spec.md §4.8). PnL is
// recognized strictly at market settlement, never at fill time — a fill
// always looks profitable if marked at cost, which is exactly the
// numerical trap spec.md §4.8 calls out. shopspring/decimal is used for
// the per-fill/aggregate math since this is the one money-precision
// boundary in the engine where float64 accumulation error would actually
// show up in a PnL report.
package settlement

import (
	"github.com/shopspring/decimal"

	"binaryedge/pkg/types"
)

// FillPnL computes the realized PnL for one fill against the resolved
// outcome: if the fill's side matches outcome, the fill paid price and
// received $1 per share; otherwise it paid price and received $0.
func FillPnL(f types.Fill, outcome types.Outcome) decimal.Decimal {
	price := decimal.NewFromFloat(f.Price)
	size := decimal.NewFromFloat(f.SizeShares)

	if f.Side == outcome.Side() {
		return decimal.NewFromInt(1).Sub(price).Mul(size)
	}
	return price.Mul(size).Neg()
}

// Report is the outcome of settling one market: total PnL, broken down per
// strategy, plus the number of fills settled.
type Report struct {
	Outcome      types.Outcome
	MarketPnL    decimal.Decimal
	StrategyPnL  map[types.StrategyID]decimal.Decimal
	FillCount    int
}

// Settle computes the full settlement report for every fill recorded
// against a market. Fills are never consulted before the market's outcome
// is determined — calling this before outcome is known would silently
// mark every open position as a loss, since OutcomeUndetermined has no
// matching Side.
func Settle(fills []types.Fill, outcome types.Outcome) Report {
	report := Report{
		Outcome:     outcome,
		MarketPnL:   decimal.Zero,
		StrategyPnL: make(map[types.StrategyID]decimal.Decimal),
		FillCount:   len(fills),
	}

	for _, f := range fills {
		pnl := FillPnL(f, outcome)
		report.MarketPnL = report.MarketPnL.Add(pnl)
		report.StrategyPnL[f.StrategyID] = report.StrategyPnL[f.StrategyID].Add(pnl)
	}

	return report
}
