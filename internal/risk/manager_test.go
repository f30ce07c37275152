package risk

import (
	"testing"
	"time"

	"binaryedge/internal/errs"
	"binaryedge/pkg/types"
)

func testConfig() Config {
	return Config{
		BankrollUSD:     10000,
		MaxExposureFrac: 0.15,
		DailyLossHalt:   -0.03,
		WeeklyLossHalt:  -0.08,
		StaleFeedMs:     5000,
	}
}

func TestEvaluateAcceptsWithinLimits(t *testing.T) {
	t.Parallel()
	m := NewManager(testConfig(), nil)

	sig := types.Signal{StrategyID: types.LatencyArb, SizeFrac: 0.02}
	size, err := m.Evaluate(GateInput{
		MarketSlug: "m1", Signal: sig, NowMs: 1000, LastFeedEventMs: 900,
	})
	if err != nil {
		t.Fatalf("expected acceptance, got %v", err)
	}
	if size != 200 {
		t.Fatalf("expected 200 USD (2%% of 10000), got %v", size)
	}
}

func TestEvaluateRejectsStaleFeed(t *testing.T) {
	t.Parallel()
	m := NewManager(testConfig(), nil)

	sig := types.Signal{StrategyID: types.LatencyArb, SizeFrac: 0.02}
	_, err := m.Evaluate(GateInput{
		MarketSlug: "m1", Signal: sig, NowMs: 10000, LastFeedEventMs: 0,
	})
	var rej *errs.RiskGateReject
	if !asRiskGateReject(err, &rej) || rej.Gate != "stale_feed" {
		t.Fatalf("expected stale_feed gate, got %v", err)
	}
}

func TestEvaluateRejectsCooldown(t *testing.T) {
	t.Parallel()
	m := NewManager(testConfig(), nil)
	sig := types.Signal{StrategyID: types.LatencyArb, SizeFrac: 0.02}

	if _, err := m.Evaluate(GateInput{MarketSlug: "m1", Signal: sig, NowMs: 1000, LastFeedEventMs: 1000}); err != nil {
		t.Fatalf("first order should be accepted: %v", err)
	}
	_, err := m.Evaluate(GateInput{MarketSlug: "m1", Signal: sig, NowMs: 1050, LastFeedEventMs: 1050})
	var rej *errs.RiskGateReject
	if !asRiskGateReject(err, &rej) || rej.Gate != "cooldown" {
		t.Fatalf("expected cooldown gate (200ms), got %v", err)
	}

	// After the 200ms cooldown elapses, the next order is accepted again.
	if _, err := m.Evaluate(GateInput{MarketSlug: "m1", Signal: sig, NowMs: 1250, LastFeedEventMs: 1250}); err != nil {
		t.Fatalf("expected acceptance after cooldown elapsed: %v", err)
	}
}

func TestEvaluateRejectsMaxOrdersPerMarket(t *testing.T) {
	t.Parallel()
	limits := map[types.StrategyID]StrategyLimits{
		types.ConvexityFade: {CooldownMs: 0, MaxOrdersPerMarket: 2, PerTradeCapFrac: 1, TotalCapFrac: 1},
	}
	m := NewManager(Config{BankrollUSD: 10000, MaxExposureFrac: 1, DailyLossHalt: -1, WeeklyLossHalt: -1, StaleFeedMs: 5000}, limits)
	sig := types.Signal{StrategyID: types.ConvexityFade, SizeFrac: 0.01}

	for i := 0; i < 2; i++ {
		nowMs := int64(i) * 10000
		if _, err := m.Evaluate(GateInput{MarketSlug: "m1", Signal: sig, NowMs: nowMs, LastFeedEventMs: nowMs}); err != nil {
			t.Fatalf("order %d should be accepted: %v", i, err)
		}
	}
	_, err := m.Evaluate(GateInput{MarketSlug: "m1", Signal: sig, NowMs: 99999, LastFeedEventMs: 99999})
	var rej *errs.RiskGateReject
	if !asRiskGateReject(err, &rej) || rej.Gate != "max_orders_per_market" {
		t.Fatalf("expected max_orders_per_market gate, got %v", err)
	}
}

func TestEvaluateRejectsMaxExposure(t *testing.T) {
	t.Parallel()
	m := NewManager(testConfig(), nil)
	sig := types.Signal{StrategyID: types.LatencyArb, SizeFrac: 0.02}

	// Total exposure already at the 15% cap leaves zero portfolio room.
	_, err := m.Evaluate(GateInput{
		MarketSlug: "m1", Signal: sig, TotalExposureUSD: 1500, NowMs: 1000, LastFeedEventMs: 1000,
	})
	var rej *errs.RiskGateReject
	if !asRiskGateReject(err, &rej) || rej.Gate != "max_exposure" {
		t.Fatalf("expected max_exposure gate, got %v", err)
	}
}

func TestEvaluateRejectsMinNotional(t *testing.T) {
	t.Parallel()
	m := NewManager(testConfig(), nil)
	sig := types.Signal{StrategyID: types.LatencyArb, SizeFrac: 0.00001}

	_, err := m.Evaluate(GateInput{MarketSlug: "m1", Signal: sig, NowMs: 1000, LastFeedEventMs: 1000})
	var rej *errs.RiskGateReject
	if !asRiskGateReject(err, &rej) || rej.Gate != "min_notional" {
		t.Fatalf("expected min_notional gate, got %v", err)
	}
}

func TestEvaluateRejectsDailyLossHalt(t *testing.T) {
	t.Parallel()
	m := NewManager(testConfig(), nil)
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	m.RecordSettlement(-400, now) // -4% of 10000 bankroll, breaches -3% halt

	sig := types.Signal{StrategyID: types.LatencyArb, SizeFrac: 0.02}
	_, err := m.Evaluate(GateInput{MarketSlug: "m1", Signal: sig, NowMs: 1000, LastFeedEventMs: 1000})
	var rej *errs.RiskGateReject
	if !asRiskGateReject(err, &rej) || rej.Gate != "daily_loss_halt" {
		t.Fatalf("expected daily_loss_halt gate, got %v", err)
	}
}

func TestRecordSettlementRollsOverBuckets(t *testing.T) {
	t.Parallel()
	m := NewManager(testConfig(), nil)
	day1 := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	m.RecordSettlement(-250, day1)
	snap := m.Snapshot()
	if snap.PnLToday != -250 {
		t.Fatalf("expected pnl_today -250, got %v", snap.PnLToday)
	}

	m.RecordSettlement(-100, day2)
	snap = m.Snapshot()
	if snap.PnLToday != -100 {
		t.Fatalf("expected pnl_today reset to -100 on day rollover, got %v", snap.PnLToday)
	}
	if snap.PnLWeek != -350 {
		t.Fatalf("expected pnl_week to keep accumulating within the same ISO week, got %v", snap.PnLWeek)
	}
}

func asRiskGateReject(err error, target **errs.RiskGateReject) bool {
	rej, ok := err.(*errs.RiskGateReject)
	if !ok {
		return false
	}
	*target = rej
	return true
}
