// Package state holds the engine's mutable data: PersistentOracleState
// (survives market boundaries) and the per-market aggregate MarketState,
// OrderBook and PositionTracker. Every type here is owned exclusively by
// the engine's single event-loop goroutine (spec.md §5) and carries no
// internal locking — feeds communicate with the engine only via channels,
// never by touching this state directly.
package state

import "binaryedge/internal/quant"

// PersistentOracleState is the sole producer of realized volatility, VWAP
// and regime readings. Exactly one instance exists for the life of the
// process; it is created at startup and mutated only by oracle trades.
type PersistentOracleState struct {
	vol    *quant.VolatilityEstimator
	vwap   *quant.VWAP
	regime *quant.RegimeClassifier

	lastPrice   float64
	lastTsMs    int64
	haveLastObs bool
}

// NewPersistentOracleState builds the persistent estimators from config
// primitives: EWMA decay lambda, per-second sigma floor, minimum sample
// count, VWAP window (ms), and regime window (ms).
func NewPersistentOracleState(lambda, sigmaFloorPerSec float64, minSamples int, vwapWindowMs, regimeWindowMs int64) *PersistentOracleState {
	return &PersistentOracleState{
		vol:    quant.NewVolatilityEstimator(lambda, sigmaFloorPerSec, minSamples),
		vwap:   quant.NewVWAP(vwapWindowMs),
		regime: quant.NewRegimeClassifier(regimeWindowMs),
	}
}

// OnOracleTrade updates every persistent estimator with a new trade. isBuy
// is accepted for symmetry with the inbound event shape even though only
// price and qty feed the kernels below (isBuy carries no
// directional weight here; the regime classifier derives direction from
// price movement, not trade side).
func (p *PersistentOracleState) OnOracleTrade(price, qty float64, tsMs int64, isBuy bool) {
	p.vol.OnTrade(price, tsMs)
	p.vwap.Push(price, qty, tsMs)
	p.regime.OnTrade(price, tsMs)
	p.lastPrice = price
	p.lastTsMs = tsMs
	p.haveLastObs = true
}

// Sigma returns the cached per-second realized volatility.
func (p *PersistentOracleState) Sigma(nowMs int64) float64 {
	return p.vol.Sigma(nowMs)
}

// VWAP returns the current rolling VWAP and whether it is populated.
func (p *PersistentOracleState) VWAP() (float64, bool) {
	return p.vwap.Value()
}

// Regime returns the current tick-direction regime classification.
func (p *PersistentOracleState) Regime() quant.Regime {
	return p.regime.Classify()
}

// RegimeDominantFrac returns the regime window's dominant-direction
// fraction (max(up,down)/total) and whether any ticks have been observed.
func (p *PersistentOracleState) RegimeDominantFrac() (float64, bool) {
	return p.regime.DominantFraction()
}

// LastPrice returns the most recent raw oracle price and whether any trade
// has ever been observed.
func (p *PersistentOracleState) LastPrice() (float64, bool) {
	return p.lastPrice, p.haveLastObs
}

// LastTsMs returns the timestamp of the most recent oracle trade.
func (p *PersistentOracleState) LastTsMs() int64 {
	return p.lastTsMs
}

// EWMASampleCount returns the number of fresh 1s-sampled EWMA observations
// taken since process start. Per-market warmup gating compares against a
// baseline snapshot of this value taken at market entry.
func (p *PersistentOracleState) EWMASampleCount() int {
	return p.vol.SampleCount()
}
