package strategy

import "binaryedge/pkg/types"

// CrossTimeframeRV would fit a power-law implied-vol surface across
// multiple expiry windows and trade outliers (spec.md §4.4.6). It is
// disabled by default and self-disables whenever fewer than two
// cross-market inputs are supplied — which, absent a cross-market feed
// collaborator, is always. It is kept as a stub evaluator so the
// configuration toggle (STRAT_CROSS_TIMEFRAME_RV) has somewhere to land.
type CrossTimeframeRV struct {
	// CrossMarketInputs is the number of sibling-expiry markets currently
	// available for a power-law fit. The engine never populates more than
	// zero today; this field exists so the self-disable gate below is a
	// real check rather than a permanently-false literal.
	CrossMarketInputs int
}

func (CrossTimeframeRV) ID() types.StrategyID { return types.CrossTimeframe }

func (c CrossTimeframeRV) Evaluate(m MarketView, nowMs int64) (types.Signal, bool) {
	if c.CrossMarketInputs < 2 {
		return types.Signal{}, false
	}
	// Not implemented: no cross-market feed collaborator exists yet to
	// supply the sibling-expiry inputs a power-law vol surface fit needs.
	return types.Signal{}, false
}
