package pipeline

import (
	"testing"

	"binaryedge/internal/risk"
	"binaryedge/internal/state"
	"binaryedge/pkg/types"
)

func newTestMarket(slug string) *state.MarketState {
	persistent := state.NewPersistentOracleState(0.94, 0.00001, 10, 60000, 30000)
	ctx := types.MarketContext{Slug: slug, Strike: 68000, StartMs: 0, EndMs: 300000}
	return state.NewMarketState(ctx, persistent, 2.0, 0)
}

func newTestRisk() *risk.Manager {
	return risk.NewManager(risk.Config{
		BankrollUSD:     10000,
		MaxExposureFrac: 1,
		DailyLossHalt:   -1,
		WeeklyLossHalt:  -1,
		StaleFeedMs:     5000,
	}, nil)
}

// TestReconcileDeconflictsOpposingActiveSignals asserts that two active
// signals disagreeing on side, before house_side is set, resolve to only
// the higher-scoring side surviving (spec.md §4.5 step 2).
func TestReconcileDeconflictsOpposingActiveSignals(t *testing.T) {
	t.Parallel()
	market := newTestMarket("m1")
	r := newTestRisk()

	up := types.Signal{StrategyID: types.LatencyArb, Side: types.Up, Edge: 0.30, Confidence: 0.9, SizeFrac: 0.01, Ask: 0.5}
	down := types.Signal{StrategyID: types.ConvexityFade, Side: types.Down, Edge: 0.02, Confidence: 0.4, SizeFrac: 0.005, Ask: 0.3}

	dispatched, rejected := Reconcile(Input{
		Signals: []types.Signal{up, down},
		Market:  market,
		Risk:    r,
		NowMs:   1000,
	})

	if len(dispatched) != 1 {
		t.Fatalf("expected exactly one surviving order, got %d (rejected=%d)", len(dispatched), len(rejected))
	}
	if dispatched[0].Signal.Side != types.Up {
		t.Fatalf("expected the higher-score side (Up) to survive, got %v", dispatched[0].Signal.Side)
	}
}

// TestReconcileHouseSideLocksAndFiltersOpposite verifies that once an
// active signal with confidence >= 0.7 is accepted, house_side is set and
// later opposing active signals are dropped.
func TestReconcileHouseSideLocksAndFiltersOpposite(t *testing.T) {
	t.Parallel()
	market := newTestMarket("m1")
	r := newTestRisk()

	strong := types.Signal{StrategyID: types.LatencyArb, Side: types.Up, Edge: 0.30, Confidence: 0.9, SizeFrac: 0.01, Ask: 0.5}
	_, _ = Reconcile(Input{Signals: []types.Signal{strong}, Market: market, Risk: r, NowMs: 1000})

	if market.HouseSide != types.Up {
		t.Fatalf("expected house_side to be locked Up, got %v", market.HouseSide)
	}

	opposite := types.Signal{StrategyID: types.ConvexityFade, Side: types.Down, Edge: 0.02, Confidence: 0.4, SizeFrac: 0.005, Ask: 0.3}
	dispatched, _ := Reconcile(Input{Signals: []types.Signal{opposite}, Market: market, Risk: r, NowMs: 2000})
	if len(dispatched) != 0 {
		t.Fatalf("expected opposing active signal to be filtered once house_side is locked")
	}
}

// TestReconcileWeakConfidenceDoesNotLockHouseSide checks that an accepted
// active signal below the 0.7 confidence threshold never sets house_side.
func TestReconcileWeakConfidenceDoesNotLockHouseSide(t *testing.T) {
	t.Parallel()
	market := newTestMarket("m1")
	r := newTestRisk()

	weak := types.Signal{StrategyID: types.ConvexityFade, Side: types.Up, Edge: 0.02, Confidence: 0.4, SizeFrac: 0.005, Ask: 0.5}
	dispatched, _ := Reconcile(Input{Signals: []types.Signal{weak}, Market: market, Risk: r, NowMs: 1000})

	if len(dispatched) != 1 {
		t.Fatalf("expected the weak signal itself to be dispatched")
	}
	if market.HouseSide != types.SideUnknown {
		t.Fatalf("expected house_side to remain unset, got %v", market.HouseSide)
	}
}

// TestReconcilePassiveSignalExemptFromHouseSide checks LP-extreme-style
// passive signals are never filtered by an established house_side.
func TestReconcilePassiveSignalExemptFromHouseSide(t *testing.T) {
	t.Parallel()
	market := newTestMarket("m1")
	market.HouseSide = types.Up
	r := newTestRisk()

	passive := types.Signal{StrategyID: types.LPExtreme, Side: types.Down, IsPassive: true, Edge: 0.03, Confidence: 0.5, SizeFrac: 0.01, Ask: 0.05}
	dispatched, rejected := Reconcile(Input{Signals: []types.Signal{passive}, Market: market, Risk: r, NowMs: 1000})

	if len(dispatched) != 1 {
		t.Fatalf("expected passive signal to survive house-side filtering, rejected=%v", rejected)
	}
}

// TestReconcileRiskGateRejectsAreReportedNotDispatched checks a risk gate
// rejection shows up in the rejected list, never as a dispatched order.
func TestReconcileRiskGateRejectsAreReportedNotDispatched(t *testing.T) {
	t.Parallel()
	market := newTestMarket("m1")
	r := risk.NewManager(risk.Config{BankrollUSD: 10000, MaxExposureFrac: 1, StaleFeedMs: 5000}, nil)

	sig := types.Signal{StrategyID: types.LatencyArb, Side: types.Up, Edge: 0.30, Confidence: 0.9, SizeFrac: 0.01, Ask: 0.5}
	_, rejected := Reconcile(Input{
		Signals: []types.Signal{sig}, Market: market, Risk: r, NowMs: 10000, LastFeedEventMs: 0,
	})

	if len(rejected) != 1 {
		t.Fatalf("expected stale-feed rejection, got %d rejections", len(rejected))
	}
}
