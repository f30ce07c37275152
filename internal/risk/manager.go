// Package risk enforces the two-tier risk gate of spec.md §4.6 over every
// signal the reconciliation pipeline wants to dispatch: portfolio-level
// hard gates (stale feed, daily/weekly loss halt, max exposure) checked
// first, then per-strategy gates (cooldown, max orders per market,
// per-trade/total caps, minimum notional).
//
// Manager is called only from the engine's single event-loop goroutine
// (spec.md §5: "No mutexes. No atomic reference counting on the hot
// path.") — every Evaluate/Prime/ResetMarket/RecordSettlement call happens
// on that one goroutine. Anything outside the loop that needs risk state
// (the API/metrics server) reads a Snapshot the engine copies out to its
// own lock-guarded cache once per diagnostic tick, the same publication
// pattern engine.go already uses for the current market's diagnostic
// snapshot; Manager itself carries no lock.
package risk

import (
	"time"

	"binaryedge/internal/errs"
	"binaryedge/pkg/types"
)

// StrategyLimits is the per-strategy portion of spec.md §4.4's per-trade
// cap / total cap / cooldown / max-orders table. CertaintyCapture's cap is
// tiered by |z| and is already baked into the signal's SizeFrac by the
// evaluator, so its PerTradeCapFrac here is the loosest tier (5%) — a
// backstop, not the primary control.
type StrategyLimits struct {
	CooldownMs         int64
	MaxOrdersPerMarket  int
	PerTradeCapFrac     float64
	TotalCapFrac        float64
}

// DefaultStrategyLimits returns the literal limits named in spec.md §4.4
// for each strategy.
func DefaultStrategyLimits() map[types.StrategyID]StrategyLimits {
	return map[types.StrategyID]StrategyLimits{
		types.LatencyArb:     {CooldownMs: 200, MaxOrdersPerMarket: 50, PerTradeCapFrac: 0.02, TotalCapFrac: 0.08},
		types.CertaintyCap:   {CooldownMs: 1000, MaxOrdersPerMarket: 15, PerTradeCapFrac: 0.05, TotalCapFrac: 0.05},
		types.ConvexityFade:  {CooldownMs: 2000, MaxOrdersPerMarket: 20, PerTradeCapFrac: 0.005, TotalCapFrac: 0.03},
		types.StrikeMisalign: {CooldownMs: 500, MaxOrdersPerMarket: 5, PerTradeCapFrac: 0.02, TotalCapFrac: 0.04},
		types.LPExtreme:      {CooldownMs: 2000, MaxOrdersPerMarket: 10, PerTradeCapFrac: 0.02, TotalCapFrac: 0.02},
		types.CrossTimeframe: {CooldownMs: 1000, MaxOrdersPerMarket: 10, PerTradeCapFrac: 0.02, TotalCapFrac: 0.02},
	}
}

const minNotionalUSD = 1.0

// Config is the portfolio-level gate configuration (spec.md §4.6, §6 env
// table: BANKROLL, MAX_EXPOSURE_FRAC, DAILY_LOSS_HALT, WEEKLY_LOSS_HALT).
type Config struct {
	BankrollUSD     float64
	MaxExposureFrac float64
	DailyLossHalt   float64
	WeeklyLossHalt  float64
	StaleFeedMs     int64
}

// marketCounters tracks the per-strategy cooldown/order-count state for
// one live market. Reset when the market closes.
type marketCounters struct {
	lastOrderMs map[types.StrategyID]int64
	orderCount  map[types.StrategyID]int
}

func newMarketCounters() *marketCounters {
	return &marketCounters{
		lastOrderMs: make(map[types.StrategyID]int64),
		orderCount:  make(map[types.StrategyID]int),
	}
}

// Manager is the two-tier risk gate. One instance lives for the life of
// the process; ResetMarket is called when a market closes to drop its
// per-market counters.
type Manager struct {
	cfg    Config
	limits map[types.StrategyID]StrategyLimits

	markets     map[string]*marketCounters
	pnlToday    float64
	pnlWeek     float64
	todayBucket string
	weekBucket  string
}

// NewManager builds a risk manager from portfolio config and the literal
// per-strategy limits table.
func NewManager(cfg Config, limits map[types.StrategyID]StrategyLimits) *Manager {
	if limits == nil {
		limits = DefaultStrategyLimits()
	}
	return &Manager{
		cfg:     cfg,
		limits:  limits,
		markets: make(map[string]*marketCounters),
	}
}

// GateInput is everything the risk gate needs to evaluate one signal; the
// engine/pipeline supplies the live figures (exposure, feed freshness) it
// already has on hand rather than the manager re-deriving them.
type GateInput struct {
	MarketSlug       string
	Signal           types.Signal
	TotalExposureUSD float64
	StrategyExposure float64
	LastFeedEventMs  int64
	NowMs            int64
}

// Evaluate runs the full two-tier gate and, on acceptance, records the
// cooldown/order-count bookkeeping for the strategy. Returns the approved
// USD notional size and nil on acceptance, or 0 and a *errs.RiskGateReject
// on rejection.
func (m *Manager) Evaluate(in GateInput) (float64, error) {
	if in.NowMs-in.LastFeedEventMs > m.cfg.StaleFeedMs {
		return 0, &errs.RiskGateReject{Gate: "stale_feed"}
	}

	if m.cfg.BankrollUSD > 0 {
		if m.pnlToday/m.cfg.BankrollUSD <= m.cfg.DailyLossHalt {
			return 0, &errs.RiskGateReject{Gate: "daily_loss_halt"}
		}
		if m.pnlWeek/m.cfg.BankrollUSD <= m.cfg.WeeklyLossHalt {
			return 0, &errs.RiskGateReject{Gate: "weekly_loss_halt"}
		}
	}

	portfolioRoom := m.cfg.MaxExposureFrac*m.cfg.BankrollUSD - in.TotalExposureUSD
	if portfolioRoom <= 0 {
		return 0, &errs.RiskGateReject{Gate: "max_exposure"}
	}

	limits, ok := m.limits[in.Signal.StrategyID]
	if !ok {
		limits = StrategyLimits{PerTradeCapFrac: 0.01, TotalCapFrac: 0.01, CooldownMs: 1000, MaxOrdersPerMarket: 5}
	}

	mc := m.markets[in.MarketSlug]
	if mc == nil {
		mc = newMarketCounters()
		m.markets[in.MarketSlug] = mc
	}

	if last, seen := mc.lastOrderMs[in.Signal.StrategyID]; seen && in.NowMs-last < limits.CooldownMs {
		return 0, &errs.RiskGateReject{Gate: "cooldown", Detail: string(in.Signal.StrategyID)}
	}
	if mc.orderCount[in.Signal.StrategyID] >= limits.MaxOrdersPerMarket {
		return 0, &errs.RiskGateReject{Gate: "max_orders_per_market", Detail: string(in.Signal.StrategyID)}
	}

	perTradeCap := limits.PerTradeCapFrac * m.cfg.BankrollUSD
	strategyRoom := limits.TotalCapFrac*m.cfg.BankrollUSD - in.StrategyExposure

	sizeUSD := in.Signal.SizeFrac * m.cfg.BankrollUSD
	sizeUSD = minF(sizeUSD, perTradeCap)
	sizeUSD = minF(sizeUSD, strategyRoom)
	sizeUSD = minF(sizeUSD, portfolioRoom)

	if sizeUSD < minNotionalUSD {
		return 0, &errs.RiskGateReject{Gate: "min_notional"}
	}

	mc.lastOrderMs[in.Signal.StrategyID] = in.NowMs
	mc.orderCount[in.Signal.StrategyID]++

	return sizeUSD, nil
}

// Prime seeds the daily/weekly PnL counters at process startup from
// persisted ledger history. Unlike RecordSettlement, which folds one
// market's PnL into both buckets under a single settlement timestamp,
// Prime sets each bucket's running total independently — the day-to-date
// and week-to-date sums read back from the ledger are not the same number.
func (m *Manager) Prime(pnlToday, pnlWeek float64, now time.Time) {
	m.todayBucket = now.Format("2006-01-02")
	year, week := now.ISOWeek()
	m.weekBucket = weekBucketKey(year, week)
	m.pnlToday = pnlToday
	m.pnlWeek = pnlWeek
}

// ResetMarket drops the cooldown/order-count counters for a closed market.
func (m *Manager) ResetMarket(marketSlug string) {
	delete(m.markets, marketSlug)
}

// RecordSettlement folds a market's realized PnL into the daily/weekly
// halt counters, bucketed by calendar day/ISO week of the settlement
// time. A bucket rollover resets that counter to the new period's PnL
// rather than accumulating across periods.
func (m *Manager) RecordSettlement(marketPnL float64, settledAt time.Time) {
	day := settledAt.Format("2006-01-02")
	year, week := settledAt.ISOWeek()
	weekKey := weekBucketKey(year, week)

	if day != m.todayBucket {
		m.todayBucket = day
		m.pnlToday = 0
	}
	if weekKey != m.weekBucket {
		m.weekBucket = weekKey
		m.pnlWeek = 0
	}
	m.pnlToday += marketPnL
	m.pnlWeek += marketPnL
}

func weekBucketKey(year, week int) string {
	return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, (week-1)*7).Format("2006-W02")
}

// Snapshot is a read-only view of the portfolio-level gate state, exposed
// to the telemetry/metrics/API collaborators.
type Snapshot struct {
	BankrollUSD     float64
	PnLToday        float64
	PnLWeek         float64
	DailyHalted     bool
	WeeklyHalted    bool
	MaxExposureFrac float64
}

// Snapshot returns the current portfolio gate state.
func (m *Manager) Snapshot() Snapshot {
	var dailyHalted, weeklyHalted bool
	if m.cfg.BankrollUSD > 0 {
		dailyHalted = m.pnlToday/m.cfg.BankrollUSD <= m.cfg.DailyLossHalt
		weeklyHalted = m.pnlWeek/m.cfg.BankrollUSD <= m.cfg.WeeklyLossHalt
	}
	return Snapshot{
		BankrollUSD:     m.cfg.BankrollUSD,
		PnLToday:        m.pnlToday,
		PnLWeek:         m.pnlWeek,
		DailyHalted:     dailyHalted,
		WeeklyHalted:    weeklyHalted,
		MaxExposureFrac: m.cfg.MaxExposureFrac,
	}
}

func minF(a, b float64) float64 {
	if b < a {
		return b
	}
	return a
}
