// Package strategy implements the six stateless signal evaluators: each
// reads only from a state.MarketState and returns zero or one Signal. None
// of them hold mutable fields or place orders directly — that is the
// signal pipeline and order gateway's job.
package strategy

import (
	"binaryedge/internal/quant"
	"binaryedge/pkg/types"
)

// Evaluator is the one operation every strategy implements.
type Evaluator interface {
	ID() types.StrategyID
	Evaluate(m MarketView, nowMs int64) (types.Signal, bool)
}

// MarketView is the subset of *state.MarketState a strategy needs. It is
// an interface so strategy tests can supply a fake market view without
// constructing a full PersistentOracleState.
type MarketView interface {
	SEff(nowMs int64) (float64, bool)
	Distance(nowMs int64) (float64, bool)
	DistFrac(nowMs int64) (float64, bool)
	D2(nowMs int64) (float64, bool)
	PFairUp(nowMs int64) (float64, bool)
	Z(nowMs int64) (float64, bool)
	DeltaBinary(nowMs int64) (float64, bool)
	VWAP() (float64, bool)
	Regime() quant.Regime
	TauEff(nowMs int64) float64
	ElapsedMs(nowMs int64) int64
	IsWarmedUp(minSamples int) bool
	UpAsk() (float64, bool)
	DownAsk() (float64, bool)
	UpBid() (float64, bool)
	DownBid() (float64, bool)
	Strike() float64
	Sigma(nowMs int64) float64
}

// clamp restricts v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// halfKellySizeFrac computes the Half-Kelly fraction from spec.md §4.4:
// half_kelly = 0.5 * edge/(1-price); size_frac = max(0, min(half_kelly, cap)).
func halfKellySizeFrac(edge, price, cap float64) float64 {
	if price >= 1 {
		return 0
	}
	halfKelly := 0.5 * edge / (1 - price)
	if halfKelly < 0 {
		return 0
	}
	if halfKelly > cap {
		return cap
	}
	return halfKelly
}
