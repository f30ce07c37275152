package state

import (
	"testing"

	"binaryedge/pkg/types"
)

func newTestPersistent() *PersistentOracleState {
	return NewPersistentOracleState(0.94, 1e-7, 10, 60_000, 30_000)
}

func TestMarketStateWarmupBaselineIsolatesAcrossMarkets(t *testing.T) {
	t.Parallel()
	p := newTestPersistent()
	for i := 0; i < 20; i++ {
		p.OnOracleTrade(100+float64(i), 1, int64(i+1)*1000, true)
	}

	ctx := types.MarketContext{Strike: 100, StartMs: 20_000, EndMs: 320_000}
	m := NewMarketState(ctx, p, 2.0, 0)

	if m.WarmupBaseline != p.EWMASampleCount() {
		t.Fatalf("baseline = %d, want %d", m.WarmupBaseline, p.EWMASampleCount())
	}
	if m.WarmupSamplesElapsed() != 0 {
		t.Fatalf("elapsed = %d, want 0 at market entry", m.WarmupSamplesElapsed())
	}

	p.OnOracleTrade(200, 1, 21_000, true)
	if m.WarmupSamplesElapsed() != 1 {
		t.Fatalf("elapsed = %d, want 1 after one new sample", m.WarmupSamplesElapsed())
	}
}

func TestMarketStatePFairUpSumsToOne(t *testing.T) {
	t.Parallel()
	p := newTestPersistent()
	ts := int64(0)
	price := 68000.0
	for i := 0; i < 15; i++ {
		ts += 1000
		price *= 1.00005
		p.OnOracleTrade(price, 1, ts, true)
	}

	ctx := types.MarketContext{Strike: 68000, StartMs: 0, EndMs: 60_000}
	m := NewMarketState(ctx, p, 2.0, 0)

	up, ok := m.PFairUp(ts)
	if !ok {
		t.Fatal("expected PFairUp to be computable")
	}
	down := 1 - up
	if down < 0 || down > 1 {
		t.Fatalf("down = %v out of range", down)
	}
}

func TestMarketStateNoObservationYieldsFalse(t *testing.T) {
	t.Parallel()
	p := newTestPersistent()
	ctx := types.MarketContext{Strike: 100, StartMs: 0, EndMs: 60_000}
	m := NewMarketState(ctx, p, 2.0, 0)

	if _, ok := m.SEff(0); ok {
		t.Fatal("expected no spot price before any oracle trade")
	}
	if _, ok := m.PFairUp(0); ok {
		t.Fatal("expected PFairUp unavailable before any oracle trade")
	}
}

func TestDetermineOutcome(t *testing.T) {
	t.Parallel()
	p := newTestPersistent()
	p.OnOracleTrade(68500, 1, 0, true)

	ctx := types.MarketContext{Strike: 68000, StartMs: 0, EndMs: 60_000}
	m := NewMarketState(ctx, p, 0, 0)

	if got := m.DetermineOutcome(60_000); got != types.OutcomeUp {
		t.Fatalf("outcome = %v, want Up", got)
	}
}

func TestPositionTrackerNeverRealizesPnLAtFillTime(t *testing.T) {
	t.Parallel()
	pt := NewPositionTracker()
	pt.RecordFill(types.Fill{StrategyID: types.LatencyArb, Side: types.Up, Price: 0.6, SizeShares: 10})

	if got := pt.TotalExposure(); got != 6.0 {
		t.Fatalf("exposure = %v, want 6.0 (cost basis, not PnL)", got)
	}
	if got := pt.ExposureByStrategy(types.LatencyArb); got != 6.0 {
		t.Fatalf("strategy exposure = %v, want 6.0", got)
	}
}

func TestOrderBookStaleness(t *testing.T) {
	t.Parallel()
	b := NewOrderBook(types.Up)
	if !b.IsStale(1000, 500) {
		t.Fatal("expected book with no quote to be stale")
	}
	b.ApplyQuote(types.VenueQuote{TsMs: 1000, BestBid: 0.4, BestAsk: 0.5})
	if b.IsStale(1400, 500) {
		t.Fatal("expected fresh book not to be stale")
	}
	if !b.IsStale(2000, 500) {
		t.Fatal("expected book to go stale after maxAge elapses")
	}
}
