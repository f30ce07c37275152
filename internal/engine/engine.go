// Package engine implements the single-owner event loop of spec.md §4.7/§5:
// one goroutine owns PersistentOracleState and the current MarketState,
// processing one market window at a time end to end — discovery, warmup,
// signal evaluation, reconciliation, order dispatch, and settlement —
// before the next queued market is opened. Feeds, the discoverer, and the
// order gateway all talk to this loop through channels; nothing else
// touches the state directly, so none of it needs a lock (spec.md §5) save
// for the small read-only snapshot cache the API server polls.
//
// Grounded on the teacher's internal/engine/engine.go wiring shape (auth →
// client → feeds → scanner → risk → store, Start/Stop/goroutine-per-feed),
// generalized from a concurrent per-market-slot model to the spec's
// sequential one-market-at-a-time model: short-interval binary markets'
// windows are back-to-back, never overlapping, and §4.7 is explicit that
// oracle trades arriving between markets are discarded rather than queued
// for a next slot.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"binaryedge/internal/api"
	"binaryedge/internal/config"
	"binaryedge/internal/discovery"
	"binaryedge/internal/feed"
	"binaryedge/internal/gateway"
	"binaryedge/internal/ledger"
	"binaryedge/internal/metrics"
	"binaryedge/internal/pipeline"
	"binaryedge/internal/risk"
	"binaryedge/internal/settlement"
	"binaryedge/internal/state"
	"binaryedge/internal/strategy"
	"binaryedge/internal/telemetry"
	"binaryedge/pkg/types"
)

const (
	discoveryPollInterval = 5 * time.Second
	tickInterval          = 100 * time.Millisecond
	diagnosticInterval    = 10 * time.Second
	settlementGraceMs     = 10_000
)

// Engine is the process's single trading loop.
type Engine struct {
	cfg    config.Config
	logger *slog.Logger

	persistent *state.PersistentOracleState
	registry   *strategy.Registry
	riskMgr    *risk.Manager
	discoverer *discovery.Discoverer
	oracleFeed *feed.OracleFeed
	venueFeed  *feed.VenueFeed
	gw         *gateway.Gateway
	store      *ledger.Ledger
	sink       *telemetry.Sink

	pending         []types.MarketContext
	current         *state.MarketState
	lastFeedEventMs int64

	snapMu       sync.RWMutex
	cachedMarket *api.MarketSnapshot
	cachedRisk   risk.Snapshot

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires every collaborator named in spec.md §4.7/§6 and rehydrates the
// risk manager's daily/weekly loss counters from the ledger so a restart
// mid-day doesn't silently reopen a halted bankroll.
func New(cfg config.Config, logger *slog.Logger) (*Engine, error) {
	logger = logger.With("component", "engine")

	store, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	riskMgr := risk.NewManager(risk.Config{
		BankrollUSD:     cfg.Risk.BankrollUSD,
		MaxExposureFrac: cfg.Risk.MaxExposureFrac,
		DailyLossHalt:   cfg.Risk.DailyLossHalt,
		WeeklyLossHalt:  cfg.Risk.WeeklyLossHalt,
		StaleFeedMs:     cfg.Risk.StaleFeedMs,
	}, nil)

	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekStart := dayStart.AddDate(0, 0, -((int(now.Weekday())+6)%7)) // Monday of the ISO week

	pnlToday, err := store.PnLSince(dayStart)
	if err != nil {
		logger.Warn("failed to rehydrate daily pnl from ledger", "error", err)
	}
	pnlWeek, err := store.PnLSince(weekStart)
	if err != nil {
		logger.Warn("failed to rehydrate weekly pnl from ledger", "error", err)
	}
	riskMgr.Prime(pnlToday, pnlWeek, now)

	persistent := state.NewPersistentOracleState(
		cfg.Oracle.EWMALambda,
		cfg.SigmaFloorPerSec(),
		cfg.Oracle.MinSamples,
		int64(cfg.Oracle.VWAPWindowSecs)*1000,
		int64(cfg.Oracle.RegimeWindowSecs)*1000,
	)

	registry := strategy.NewRegistry(map[types.StrategyID]bool{
		types.LatencyArb:     cfg.Strategy.LatencyArb,
		types.CertaintyCap:   cfg.Strategy.CertaintyCap,
		types.ConvexityFade:  cfg.Strategy.ConvexityFade,
		types.StrikeMisalign: cfg.Strategy.StrikeMisalign,
		types.LPExtreme:      cfg.Strategy.LPExtreme,
		types.CrossTimeframe: cfg.Strategy.CrossTimeframe,
	})

	gw, err := gateway.New(cfg.Wallet, cfg.DryRun, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build order gateway: %w", err)
	}

	return &Engine{
		cfg:        cfg,
		logger:     logger,
		persistent: persistent,
		registry:   registry,
		riskMgr:    riskMgr,
		cachedRisk: riskMgr.Snapshot(),
		discoverer: discovery.NewDiscoverer(cfg.Market, logger),
		oracleFeed: feed.NewOracleFeed(cfg.Market.OracleWSURL, logger),
		venueFeed:  feed.NewVenueFeed(cfg.Market.VenueWSURL, logger),
		gw:         gw,
		store:      store,
		sink:       telemetry.New(logger),
	}, nil
}

// Start launches the feed, discovery and event-loop goroutines.
func (e *Engine) Start() error {
	e.ctx, e.cancel = context.WithCancel(context.Background())

	e.wg.Add(4)
	go func() { defer e.wg.Done(); e.runOracleFeed() }()
	go func() { defer e.wg.Done(); e.runVenueFeed() }()
	go func() { defer e.wg.Done(); e.discoverer.Run(e.ctx, discoveryPollInterval) }()
	go func() { defer e.wg.Done(); e.loop() }()

	e.logger.Info("engine started", "asset", e.cfg.Market.Asset, "interval", e.cfg.Market.Interval, "dry_run", e.cfg.DryRun)
	return nil
}

// Stop cancels the event loop and every feed goroutine and waits for a
// clean shutdown before closing the ledger.
func (e *Engine) Stop() {
	e.cancel()
	e.wg.Wait()
	if err := e.store.Close(); err != nil {
		e.logger.Warn("failed to close ledger", "error", err)
	}
	e.logger.Info("engine stopped")
}

func (e *Engine) runOracleFeed() {
	if err := e.oracleFeed.Run(e.ctx); err != nil && e.ctx.Err() == nil {
		e.logger.Error("oracle feed exited", "error", err)
	}
}

func (e *Engine) runVenueFeed() {
	if err := e.venueFeed.Run(e.ctx); err != nil && e.ctx.Err() == nil {
		e.logger.Error("venue feed exited", "error", err)
	}
}

// loop is the single goroutine described in spec.md §5: it owns
// PersistentOracleState and the current MarketState and is the only thing
// that ever mutates either.
func (e *Engine) loop() {
	tick := time.NewTicker(tickInterval)
	defer tick.Stop()
	diag := time.NewTicker(diagnosticInterval)
	defer diag.Stop()

	var wake *time.Timer
	defer func() {
		if wake != nil {
			wake.Stop()
		}
	}()

	for {
		var wakeCh <-chan time.Time
		if wake != nil {
			wakeCh = wake.C
		}

		select {
		case <-e.ctx.Done():
			return

		case mc, ok := <-e.discoverer.Markets():
			if !ok {
				continue
			}
			e.pending = append(e.pending, mc)
			if e.current == nil && wake == nil {
				wake = e.scheduleWake(e.pending[0])
			}

		case <-wakeCh:
			wake = nil
			if e.current == nil && len(e.pending) > 0 {
				mc := e.pending[0]
				e.pending = e.pending[1:]
				e.openMarket(mc)
			}
			if e.current == nil && len(e.pending) > 0 {
				wake = e.scheduleWake(e.pending[0])
			}

		case trade := <-e.oracleFeed.Trades():
			e.lastFeedEventMs = trade.TsMs
			if e.current != nil {
				e.persistent.OnOracleTrade(trade.Price, trade.Qty, trade.TsMs, trade.IsBuy)
				e.onOracleTrade(trade)
			}

		case quote := <-e.venueFeed.Quotes():
			e.lastFeedEventMs = quote.TsMs
			if e.current != nil {
				e.onVenueQuote(quote)
			}

		case book := <-e.venueFeed.Books():
			e.lastFeedEventMs = book.TsMs
			if e.current != nil {
				e.onVenueBook(book)
			}

		case ack := <-e.gw.Acks():
			e.onOrderAck(ack)

		case now := <-tick.C:
			nowMs := now.UnixMilli()
			if e.current != nil && nowMs >= e.current.Ctx.EndMs+settlementGraceMs {
				e.closeMarket(nowMs)
			}

		case <-diag.C:
			e.emitDiagnostic()
		}
	}
}

// scheduleWake arms a timer firing at market.start_ms minus the configured
// pre-wake offset (spec.md §4.7 step 2): short windows wake closer to
// start since there is less to warm up.
func (e *Engine) scheduleWake(mc types.MarketContext) *time.Timer {
	durationMs := mc.EndMs - mc.StartMs
	preWakeSecs := e.cfg.Market.PreWakeLongSecs
	if durationMs <= int64(e.cfg.Market.ShortWindowSecs)*1000 {
		preWakeSecs = e.cfg.Market.PreWakeShortSecs
	}

	wakeAtMs := mc.StartMs - int64(preWakeSecs)*1000
	delay := time.Until(time.UnixMilli(wakeAtMs))
	if delay < 0 {
		delay = 0
	}
	return time.NewTimer(delay)
}

// openMarket attaches a freshly discovered market window to the persistent
// oracle state (spec.md §4.7 step 3) and subscribes the venue feed to its
// two token IDs.
func (e *Engine) openMarket(mc types.MarketContext) {
	e.current = state.NewMarketState(mc, e.persistent, e.cfg.Oracle.DeltaS, e.cfg.Oracle.Beta)
	e.venueFeed.Subscribe(mc.UpTokenID, mc.DownTokenID)
	e.logger.Info("market opened", "slug", mc.Slug, "strike", mc.Strike, "start_ms", mc.StartMs, "end_ms", mc.EndMs)
}

// closeMarket runs settlement (spec.md §4.7 step 7 / §4.8), folds the
// result into the risk manager's loss-halt counters and the ledger, and
// detaches the market so the persistent state returns to discarding oracle
// trades until the next market opens.
func (e *Engine) closeMarket(nowMs int64) {
	m := e.current
	outcome := m.DetermineOutcome(nowMs)
	report := settlement.Settle(m.Position.Fills(), outcome)
	pnl, _ := report.MarketPnL.Float64()
	settledAt := time.UnixMilli(nowMs).UTC()

	if err := e.store.RecordSettlement(m.Ctx.Slug, outcome, pnl, settledAt); err != nil {
		e.logger.Error("failed to record settlement", "slug", m.Ctx.Slug, "error", err)
	}
	e.riskMgr.RecordSettlement(pnl, settledAt)
	e.riskMgr.ResetMarket(m.Ctx.Slug)
	e.sink.Settlement(m.Ctx.Slug, report)

	rs := e.riskMgr.Snapshot()
	metrics.SetDailyPnL(rs.PnLToday)
	metrics.SetWeeklyPnL(rs.PnLWeek)

	e.venueFeed.Unsubscribe(m.Ctx.UpTokenID, m.Ctx.DownTokenID)

	e.snapMu.Lock()
	e.cachedMarket = nil
	e.cachedRisk = rs
	e.snapMu.Unlock()

	e.current = nil
}

// onOracleTrade dispatches the oracle-triggered evaluator set once the
// per-market warmup is satisfied, plus the opening-window set whenever
// global sigma is valid regardless of this market's own warmup (spec.md
// §4.7 step 5).
func (e *Engine) onOracleTrade(trade types.OracleTrade) {
	var evs []strategy.Evaluator
	if e.current.IsWarmedUp(e.cfg.Oracle.WarmupSamples) {
		evs = append(evs, e.registry.OracleTriggered()...)
	}
	if e.persistent.EWMASampleCount() >= e.cfg.Oracle.MinSamples {
		evs = append(evs, e.registry.OpeningWindow()...)
	}
	e.evaluateAndDispatch(evs, trade.TsMs)
}

// onVenueQuote updates the per-side book and, once warmed up, dispatches
// the venue-triggered evaluator set.
func (e *Engine) onVenueQuote(quote types.VenueQuote) {
	book := e.current.UpBook
	if quote.Side == types.Down {
		book = e.current.DownBook
	}
	book.ApplyQuote(quote)

	if !e.current.IsWarmedUp(e.cfg.Oracle.WarmupSamples) {
		return
	}
	e.evaluateAndDispatch(e.registry.VenueTriggered(), quote.TsMs)
}

// onVenueBook updates the per-side depth snapshot and, once warmed up,
// dispatches the venue-triggered evaluator set.
func (e *Engine) onVenueBook(book types.VenueBook) {
	b := e.current.UpBook
	if book.Side == types.Down {
		b = e.current.DownBook
	}
	b.ApplyBook(book)

	if !e.current.IsWarmedUp(e.cfg.Oracle.WarmupSamples) {
		return
	}
	e.evaluateAndDispatch(e.registry.VenueTriggered(), book.TsMs)
}

// onOrderAck records a filled order into the market's position tracker and
// the ledger. Rejections and expiries carry no shares and are only logged
// by the telemetry sink via the dispatch path that produced them.
func (e *Engine) onOrderAck(ack types.OrderAck) {
	if e.current == nil || ack.Status != types.Filled {
		return
	}

	fill := types.Fill{
		StrategyID:  ack.StrategyID,
		Side:        ack.Side,
		Price:       ack.Price,
		SizeShares:  ack.SizeShares,
		TimestampMs: time.Now().UnixMilli(),
	}
	e.current.Position.RecordFill(fill)
	e.sink.Fill(e.current.Ctx.Slug, fill)

	if err := e.store.RecordFill(ack.OrderID, e.current.Ctx.Slug, fill); err != nil {
		e.logger.Error("failed to record fill", "error", err)
	}
}

// evaluateAndDispatch runs one event's evaluator set, reconciles the
// resulting signal batch (spec.md §4.5), and submits whatever survives to
// the order gateway. The per-strategy exposure map passed into the
// pipeline is a fresh copy of the position tracker's fill-confirmed
// totals — never a live reference — so the pipeline's running same-batch
// updates (needed to stop two signals in one batch double-spending the
// same headroom) can never leak back into the tracker itself.
func (e *Engine) evaluateAndDispatch(evs []strategy.Evaluator, nowMs int64) {
	if e.current == nil || len(evs) == 0 {
		return
	}

	var signals []types.Signal
	for _, ev := range evs {
		sig, ok := ev.Evaluate(e.current, nowMs)
		if !ok {
			continue
		}
		e.sink.Signal(e.current.Ctx.Slug, sig)
		signals = append(signals, sig)
	}
	if len(signals) == 0 {
		return
	}

	strategyExposure := make(map[types.StrategyID]float64, len(signals))
	for _, sig := range signals {
		if _, ok := strategyExposure[sig.StrategyID]; !ok {
			strategyExposure[sig.StrategyID] = e.current.Position.ExposureByStrategy(sig.StrategyID)
		}
	}

	dispatched, rejected := pipeline.Reconcile(pipeline.Input{
		Signals:          signals,
		Market:           e.current,
		Risk:             e.riskMgr,
		TotalExposureUSD: e.current.Position.TotalExposure(),
		StrategyExposure: strategyExposure,
		LastFeedEventMs:  e.lastFeedEventMs,
		NowMs:            nowMs,
	})

	for _, r := range rejected {
		e.sink.Rejected(e.current.Ctx.Slug, r)
	}

	for _, d := range dispatched {
		e.sink.Dispatched(e.current.Ctx.Slug, d)
		tokenID := e.current.Ctx.UpTokenID
		if d.Order.Side == types.Down {
			tokenID = e.current.Ctx.DownTokenID
		}
		e.gw.Submit(e.ctx, d.Order, tokenID, e.current.Ctx.NegRisk)
	}
}

// emitDiagnostic reports the periodic snapshot of spec.md §4.7 step 6 and
// refreshes the read-only cache the API server's Provider methods serve.
func (e *Engine) emitDiagnostic() {
	if e.current == nil {
		return
	}

	m := e.current
	nowMs := time.Now().UnixMilli()
	sEff, _ := m.SEff(nowMs)
	pFair, _ := m.PFairUp(nowMs)
	sigma := m.Sigma(nowMs)
	tauEff := m.TauEff(nowMs)
	zScore, _ := m.Z(nowMs)
	distance, _ := m.Distance(nowMs)
	distFrac, _ := m.DistFrac(nowMs)
	regimeFrac, _ := m.RegimeDominantFrac()
	totalExposure := m.Position.TotalExposure()
	staleness := nowMs - e.lastFeedEventMs
	timeLeftMs := m.TimeLeftMs(nowMs)

	e.sink.Diagnostic(telemetry.Snapshot{
		MarketSlug:         m.Ctx.Slug,
		NowMs:              nowMs,
		TimeLeftMs:         timeLeftMs,
		SEff:               sEff,
		Strike:             m.Ctx.Strike,
		Sigma:              sigma,
		TauEffSecs:         tauEff,
		PFairUp:            pFair,
		Z:                  zScore,
		Distance:           distance,
		DistFrac:           distFrac,
		RegimeDominantFrac: regimeFrac,
		HouseSide:          m.HouseSide,
		TotalExposure:      totalExposure,
		FeedStalenessMs:    staleness,
	})

	rs := e.riskMgr.Snapshot()
	metrics.SetDailyPnL(rs.PnLToday)
	metrics.SetWeeklyPnL(rs.PnLWeek)
	metrics.SetTotalExposure(totalExposure)

	e.snapMu.Lock()
	e.cachedMarket = &api.MarketSnapshot{
		Slug:               m.Ctx.Slug,
		Strike:             m.Ctx.Strike,
		SEff:               sEff,
		Sigma:              sigma,
		TauEffSecs:         tauEff,
		PFairUp:            pFair,
		Z:                  zScore,
		Distance:           distance,
		DistFrac:           distFrac,
		RegimeDominantFrac: regimeFrac,
		HouseSide:          m.HouseSide.String(),
		TotalExposure:      totalExposure,
		EndsAt:             time.UnixMilli(m.Ctx.EndMs),
	}
	e.cachedRisk = rs
	e.snapMu.Unlock()
}

// --- api.Provider ---

// DryRun reports whether the gateway is submitting simulated fills only.
func (e *Engine) DryRun() bool { return e.cfg.DryRun }

// Markets returns the single currently-open market's diagnostic snapshot,
// or none between markets.
func (e *Engine) Markets() []api.MarketSnapshot {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()
	if e.cachedMarket == nil {
		return nil
	}
	return []api.MarketSnapshot{*e.cachedMarket}
}

// Risk returns the portfolio-level risk gate's state as of the last
// diagnostic tick (or settlement, if more recent). It never calls into the
// risk Manager directly — that type is engine-goroutine-only — and instead
// reads the cache the event loop publishes under snapMu.
func (e *Engine) Risk() api.RiskSnapshot {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()

	exposure := 0.0
	if e.cachedMarket != nil {
		exposure = e.cachedMarket.TotalExposure
	}

	return api.RiskSnapshot{
		DailyPnL:      e.cachedRisk.PnLToday,
		WeeklyPnL:     e.cachedRisk.PnLWeek,
		TotalExposure: exposure,
		DailyHalted:   e.cachedRisk.DailyHalted,
		WeeklyHalted:  e.cachedRisk.WeeklyHalted,
	}
}
