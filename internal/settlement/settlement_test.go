package settlement

import (
	"testing"

	"github.com/shopspring/decimal"

	"binaryedge/pkg/types"
)

// TestSettleScenario replays spec.md §8 scenario 6: two fills, (Up, 0.60,
// 10 shares) and (Down, 0.30, 5 shares), outcome Up -> PnL = 2.5.
func TestSettleScenario(t *testing.T) {
	t.Parallel()
	fills := []types.Fill{
		{StrategyID: types.LatencyArb, Side: types.Up, Price: 0.60, SizeShares: 10},
		{StrategyID: types.CertaintyCap, Side: types.Down, Price: 0.30, SizeShares: 5},
	}

	report := Settle(fills, types.OutcomeUp)

	want := decimal.NewFromFloat(2.5)
	if !report.MarketPnL.Equal(want) {
		t.Fatalf("expected market pnl 2.5, got %s", report.MarketPnL.String())
	}

	sumStrategy := decimal.Zero
	for _, pnl := range report.StrategyPnL {
		sumStrategy = sumStrategy.Add(pnl)
	}
	if !sumStrategy.Equal(report.MarketPnL) {
		t.Fatalf("strategy pnl sum %s should equal market pnl %s", sumStrategy, report.MarketPnL)
	}
}

func TestFillPnLWinningSide(t *testing.T) {
	t.Parallel()
	f := types.Fill{Side: types.Up, Price: 0.60, SizeShares: 10}
	pnl := FillPnL(f, types.OutcomeUp)
	want := decimal.NewFromFloat(4.0)
	if !pnl.Equal(want) {
		t.Fatalf("expected 4.0, got %s", pnl.String())
	}
}

func TestFillPnLLosingSideIsNonPositive(t *testing.T) {
	t.Parallel()
	f := types.Fill{Side: types.Down, Price: 0.30, SizeShares: 5}
	pnl := FillPnL(f, types.OutcomeUp)
	if pnl.GreaterThan(decimal.Zero) {
		t.Fatalf("losing-side fill must never show positive pnl, got %s", pnl.String())
	}
	want := decimal.NewFromFloat(-1.5)
	if !pnl.Equal(want) {
		t.Fatalf("expected -1.5, got %s", pnl.String())
	}
}

func TestSettleEmptyFills(t *testing.T) {
	t.Parallel()
	report := Settle(nil, types.OutcomeDown)
	if !report.MarketPnL.Equal(decimal.Zero) {
		t.Fatalf("expected zero pnl for no fills, got %s", report.MarketPnL.String())
	}
}
