package state

import (
	"binaryedge/internal/quant"
	"binaryedge/pkg/types"
)

// MarketState is the per-market aggregate read by every strategy
// evaluator. It is created at market open and destroyed at market
// close+10s (spec.md §3); it holds the immutable MarketContext, a
// reference to the single PersistentOracleState, per-side order books, the
// position tracker, the house-side lock, and the warmup baseline.
type MarketState struct {
	Ctx        types.MarketContext
	Persistent *PersistentOracleState
	UpBook     *OrderBook
	DownBook   *OrderBook
	Position   *PositionTracker

	// HouseSide is SideUnknown until the first high-confidence active
	// signal is accepted (spec.md §4.5 step 6); once set it is immutable
	// for the life of the market.
	HouseSide types.Side

	// WarmupBaseline is the persistent EWMA sample count captured at
	// market entry; strategies compare the *delta* since this baseline
	// against the warmup threshold so cross-market volatility history
	// cannot be mistaken for this market's own warmup.
	WarmupBaseline int

	deltaOracleS float64
	beta         float64
}

// NewMarketState constructs a MarketState for a newly opened market.
// deltaOracleS and beta are the oracle-basis configuration constants
// (spec.md §4.1).
func NewMarketState(ctx types.MarketContext, persistent *PersistentOracleState, deltaOracleS, beta float64) *MarketState {
	return &MarketState{
		Ctx:          ctx,
		Persistent:   persistent,
		UpBook:       NewOrderBook(types.Up),
		DownBook:     NewOrderBook(types.Down),
		Position:     NewPositionTracker(),
		HouseSide:    types.SideUnknown,
		WarmupBaseline: persistent.EWMASampleCount(),
		deltaOracleS: deltaOracleS,
		beta:         beta,
	}
}

// ElapsedMs returns milliseconds since market start.
func (m *MarketState) ElapsedMs(nowMs int64) int64 {
	return nowMs - m.Ctx.StartMs
}

// TimeLeftMs returns milliseconds until market end (may be negative after
// expiry).
func (m *MarketState) TimeLeftMs(nowMs int64) int64 {
	return m.Ctx.EndMs - nowMs
}

// TauEff returns the oracle-basis-adjusted effective time-to-expiry in
// seconds, floored per spec.md §3.
func (m *MarketState) TauEff(nowMs int64) float64 {
	nominalTauS := float64(m.TimeLeftMs(nowMs)) / 1000.0
	_, tauEff := quant.OracleBasis(0, 0, nominalTauS, m.deltaOracleS)
	return tauEff
}

// SEff returns the oracle-basis-adjusted spot price and whether any oracle
// trade has ever been observed.
func (m *MarketState) SEff(nowMs int64) (float64, bool) {
	raw, ok := m.Persistent.LastPrice()
	if !ok {
		return 0, false
	}
	sEff, _ := quant.OracleBasis(raw, m.beta, 0, 0)
	return sEff, true
}

// Distance returns S_eff - K.
func (m *MarketState) Distance(nowMs int64) (float64, bool) {
	s, ok := m.SEff(nowMs)
	if !ok {
		return 0, false
	}
	return s - m.Ctx.Strike, true
}

// DistFrac returns (S_eff - K) / K.
func (m *MarketState) DistFrac(nowMs int64) (float64, bool) {
	d, ok := m.Distance(nowMs)
	if !ok || m.Ctx.Strike == 0 {
		return 0, false
	}
	return d / m.Ctx.Strike, true
}

// D2 returns the d2 pricing term computed from S_eff, K, persistent sigma,
// and tau_eff.
func (m *MarketState) D2(nowMs int64) (float64, bool) {
	s, ok := m.SEff(nowMs)
	if !ok {
		return 0, false
	}
	sigma := m.Persistent.Sigma(nowMs)
	tau := m.TauEff(nowMs)
	return quant.D2(s, m.Ctx.Strike, sigma, tau), true
}

// PFairUp returns the risk-neutral probability the market settles Up.
func (m *MarketState) PFairUp(nowMs int64) (float64, bool) {
	d2, ok := m.D2(nowMs)
	if !ok {
		return 0, false
	}
	return quant.PFairUp(d2), true
}

// Z returns the drift-free signal-to-noise ratio.
func (m *MarketState) Z(nowMs int64) (float64, bool) {
	s, ok := m.SEff(nowMs)
	if !ok {
		return 0, false
	}
	sigma := m.Persistent.Sigma(nowMs)
	tau := m.TauEff(nowMs)
	return quant.Z(s, m.Ctx.Strike, sigma, tau), true
}

// DeltaBinary returns the probability sensitivity per unit price.
func (m *MarketState) DeltaBinary(nowMs int64) (float64, bool) {
	d2, ok := m.D2(nowMs)
	if !ok {
		return 0, false
	}
	s, _ := m.SEff(nowMs)
	sigma := m.Persistent.Sigma(nowMs)
	tau := m.TauEff(nowMs)
	return quant.DeltaBinary(d2, s, sigma, tau), true
}

// WarmupSamplesElapsed returns how many fresh EWMA samples have landed
// since this market's warmup baseline was captured.
func (m *MarketState) WarmupSamplesElapsed() int {
	return m.Persistent.EWMASampleCount() - m.WarmupBaseline
}

// IsWarmedUp reports whether at least minSamples fresh samples have
// landed since market entry.
func (m *MarketState) IsWarmedUp(minSamples int) bool {
	return m.WarmupSamplesElapsed() >= minSamples
}

// UpAsk returns the best ask on the Up side book.
func (m *MarketState) UpAsk() (float64, bool) {
	return m.UpBook.BestAsk()
}

// DownAsk returns the best ask on the Down side book.
func (m *MarketState) DownAsk() (float64, bool) {
	return m.DownBook.BestAsk()
}

// UpBid returns the best bid on the Up side book.
func (m *MarketState) UpBid() (float64, bool) {
	return m.UpBook.BestBid()
}

// DownBid returns the best bid on the Down side book.
func (m *MarketState) DownBid() (float64, bool) {
	return m.DownBook.BestBid()
}

// Strike returns the market's strike price K.
func (m *MarketState) Strike() float64 {
	return m.Ctx.Strike
}

// Sigma returns the persistent per-second realized volatility.
func (m *MarketState) Sigma(nowMs int64) float64 {
	return m.Persistent.Sigma(nowMs)
}

// Regime returns the persistent tick-direction regime classification.
func (m *MarketState) Regime() quant.Regime {
	return m.Persistent.Regime()
}

// RegimeDominantFrac returns the persistent regime window's
// dominant-direction fraction and whether any ticks have been observed.
func (m *MarketState) RegimeDominantFrac() (float64, bool) {
	return m.Persistent.RegimeDominantFrac()
}

// VWAP returns the persistent rolling VWAP and whether it is populated.
func (m *MarketState) VWAP() (float64, bool) {
	return m.Persistent.VWAP()
}

// DetermineOutcome resolves the binary outcome from the final effective
// spot vs strike, per spec.md §4.7 step 7: Up if S_eff >= K, else Down.
func (m *MarketState) DetermineOutcome(nowMs int64) types.Outcome {
	s, ok := m.SEff(nowMs)
	if !ok {
		return types.OutcomeUndetermined
	}
	if s >= m.Ctx.Strike {
		return types.OutcomeUp
	}
	return types.OutcomeDown
}
