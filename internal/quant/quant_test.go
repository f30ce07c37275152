package quant

import (
	"math"
	"testing"
)

func TestPhiComplementsToOne(t *testing.T) {
	t.Parallel()
	cases := []float64{-3, -1.5, 0, 0.5, 1.5, 3, 4}
	for _, x := range cases {
		got := Phi(x) + Phi(-x)
		if math.Abs(got-1.0) > 1e-7 {
			t.Errorf("Phi(%v)+Phi(%v) = %v, want 1.0", x, -x, got)
		}
	}
}

func TestPhiKnownValues(t *testing.T) {
	t.Parallel()
	if math.Abs(Phi(0)-0.5) > 1e-9 {
		t.Errorf("Phi(0) = %v, want 0.5", Phi(0))
	}
	// Phi(1.96) ~= 0.975
	if got := Phi(1.96); math.Abs(got-0.975) > 1e-3 {
		t.Errorf("Phi(1.96) = %v, want ~0.975", got)
	}
}

func TestPFairUpPlusDownEqualsOne(t *testing.T) {
	t.Parallel()
	d2 := D2(68130, 68000, 0.00006, 60)
	up := PFairUp(d2)
	down := PFairDown(up)
	if math.Abs(up+down-1.0) > 1e-9 {
		t.Errorf("PFairUp+PFairDown = %v, want 1.0", up+down)
	}
}

func TestCertaintyCaptureScenario(t *testing.T) {
	t.Parallel()
	// Scenario 2 from spec.md §8: K=68000, S=68130, sigma=0.00006, tau=60s.
	// ln(S/K) = 0.00191 and sigma*sqrt(tau) = 0.000465, so z ~= 4.1.
	k, s, sigma, tau := 68000.0, 68130.0, 0.00006, 60.0
	z := Z(s, k, sigma, tau)
	if z < 3.9 || z > 4.3 {
		t.Fatalf("z = %v, want ~4.1", z)
	}

	d2 := D2(s, k, sigma, tau)
	up := PFairUp(d2)
	if up < 0.85 {
		t.Fatalf("PFairUp = %v, want > 0.85 for z~4.1", up)
	}
}

func TestVolatilityEstimatorWarmupAndFloor(t *testing.T) {
	t.Parallel()
	floor := SigmaFloorPerSec(0.30, 365*24*3600)
	v := NewVolatilityEstimator(0.94, floor, 10)

	if v.WarmedUp() {
		t.Fatal("estimator should not be warmed up before any samples")
	}

	ts := int64(0)
	price := 1000.0
	for i := 0; i < 15; i++ {
		ts += 1000
		price *= 1.0001
		v.OnTrade(price, ts)
	}

	if !v.WarmedUp() {
		t.Fatalf("expected warmed up after 15 samples, got count=%d", v.SampleCount())
	}

	sigma := v.Sigma(ts)
	if sigma < floor {
		t.Fatalf("sigma %v below floor %v", sigma, floor)
	}
}

func TestVolatilityEstimatorIgnoresSubSecondTrades(t *testing.T) {
	t.Parallel()
	v := NewVolatilityEstimator(0.94, 1e-6, 10)
	v.OnTrade(100, 0)
	v.OnTrade(101, 500) // < 1000ms since last sample, ignored
	if v.SampleCount() != 0 {
		t.Fatalf("expected 0 samples for sub-second trade, got %d", v.SampleCount())
	}
	v.OnTrade(102, 1000)
	if v.SampleCount() != 1 {
		t.Fatalf("expected 1 sample after 1000ms gap, got %d", v.SampleCount())
	}
}

func TestVWAPSlidingWindow(t *testing.T) {
	t.Parallel()
	w := NewVWAP(60_000)

	w.Push(100, 10, 0)
	w.Push(200, 10, 30_000)
	if vwap, ok := w.Value(); !ok || math.Abs(vwap-150) > 1e-9 {
		t.Fatalf("vwap = %v, ok=%v, want 150", vwap, ok)
	}

	// Push a trade far enough ahead that the first sample evicts.
	w.Push(300, 10, 60_001)
	vwap, ok := w.Value()
	if !ok {
		t.Fatal("expected value after eviction of one sample")
	}
	// Only the 200 and 300 samples should remain: (200*10+300*10)/20=250
	if math.Abs(vwap-250) > 1e-9 {
		t.Fatalf("vwap after eviction = %v, want 250", vwap)
	}
}

func TestVWAPEmptyWindow(t *testing.T) {
	t.Parallel()
	w := NewVWAP(60_000)
	if _, ok := w.Value(); ok {
		t.Fatal("expected no value for empty window")
	}
}

func TestRegimeClassifierTrendOnStrictUpticks(t *testing.T) {
	t.Parallel()
	c := NewRegimeClassifier(30_000)
	price := 100.0
	ts := int64(0)
	c.OnTrade(price, ts) // seeds lastPrice, no tick recorded
	for i := 0; i < 20; i++ {
		ts += 1000
		price += 1
		c.OnTrade(price, ts)
	}

	frac, ok := c.DominantFraction()
	if !ok {
		t.Fatal("expected ticks recorded")
	}
	if math.Abs(frac-1.0) > 1e-9 {
		t.Fatalf("dominant fraction = %v, want 1.0", frac)
	}
	if c.Classify() != Trend {
		t.Fatalf("classify = %v, want Trend", c.Classify())
	}
}

func TestRegimeClassifierIgnoresRepeatedPrice(t *testing.T) {
	t.Parallel()
	c := NewRegimeClassifier(30_000)
	c.OnTrade(100, 0)
	c.OnTrade(100, 1000) // same price, ignored
	c.OnTrade(100, 2000) // same price, ignored
	if _, ok := c.DominantFraction(); ok {
		t.Fatal("expected no ticks recorded for repeated-price trades")
	}
}

func TestRegimeClassifierRangeWhenBalanced(t *testing.T) {
	t.Parallel()
	c := NewRegimeClassifier(30_000)
	price := 100.0
	ts := int64(0)
	c.OnTrade(price, ts)
	// Alternate up/down evenly -> dominant fraction 0.5 -> Range.
	for i := 0; i < 10; i++ {
		ts += 1000
		if i%2 == 0 {
			price += 1
		} else {
			price -= 1
		}
		c.OnTrade(price, ts)
	}
	if c.Classify() != Range {
		t.Fatalf("classify = %v, want Range", c.Classify())
	}
}

func TestOracleBasisFloorsTauAndAddsBeta(t *testing.T) {
	t.Parallel()
	sEff, tauEff := OracleBasis(100, 5, -10, 2)
	if sEff != 105 {
		t.Fatalf("sEff = %v, want 105", sEff)
	}
	if tauEff != TauFloor {
		t.Fatalf("tauEff = %v, want floor %v", tauEff, TauFloor)
	}
}
