package strategy

import (
	"math"
	"testing"

	"binaryedge/internal/quant"
	"binaryedge/pkg/types"
)

// fakeMarket is a hand-built MarketView for isolated strategy testing,
// avoiding the need to wire a full state.PersistentOracleState/MarketState
// through a warmup sequence for every scenario.
type fakeMarket struct {
	sEff, distance, distFrac, d2, pFairUp, z, deltaBinary, vwap, sigma float64
	haveSEff, haveVWAP                                                 bool
	regime                                                             quant.Regime
	tauEff                                                             float64
	elapsedMs                                                          int64
	warmedUp                                                           bool
	upAsk, downAsk, upBid, downBid                                     float64
	haveUpAsk, haveDownAsk, haveUpBid, haveDownBid                     bool
	strike                                                             float64
}

func (f fakeMarket) SEff(int64) (float64, bool)        { return f.sEff, f.haveSEff }
func (f fakeMarket) Distance(int64) (float64, bool)    { return f.distance, f.haveSEff }
func (f fakeMarket) DistFrac(int64) (float64, bool)    { return f.distFrac, f.haveSEff }
func (f fakeMarket) D2(int64) (float64, bool)          { return f.d2, f.haveSEff }
func (f fakeMarket) PFairUp(int64) (float64, bool)     { return f.pFairUp, f.haveSEff }
func (f fakeMarket) Z(int64) (float64, bool)           { return f.z, f.haveSEff }
func (f fakeMarket) DeltaBinary(int64) (float64, bool) { return f.deltaBinary, f.haveSEff }
func (f fakeMarket) VWAP() (float64, bool)             { return f.vwap, f.haveVWAP }
func (f fakeMarket) Regime() quant.Regime              { return f.regime }
func (f fakeMarket) TauEff(int64) float64              { return f.tauEff }
func (f fakeMarket) ElapsedMs(int64) int64             { return f.elapsedMs }
func (f fakeMarket) IsWarmedUp(int) bool               { return f.warmedUp }
func (f fakeMarket) UpAsk() (float64, bool)            { return f.upAsk, f.haveUpAsk }
func (f fakeMarket) DownAsk() (float64, bool)          { return f.downAsk, f.haveDownAsk }
func (f fakeMarket) UpBid() (float64, bool)            { return f.upBid, f.haveUpBid }
func (f fakeMarket) DownBid() (float64, bool)          { return f.downBid, f.haveDownBid }
func (f fakeMarket) Strike() float64                   { return f.strike }
func (f fakeMarket) Sigma(int64) float64                { return f.sigma }

// TestLatencyArbScenario replays spec.md §8 scenario 1: K=68000, venue
// up_ask=down_ask=0.50, oracle jumps to 68500 with sigma=0.00006/s,
// tau=200s. d2 ~ 8.6, so PFairUp(d2) ~ 1.0 -> edge ~0.50, accepted.
func TestLatencyArbScenario(t *testing.T) {
	t.Parallel()
	sigma, tau := 0.00006, 200.0
	d2 := quant.D2(68500, 68000, sigma, tau)
	pUp := quant.PFairUp(d2)

	m := fakeMarket{
		sEff: 68500, pFairUp: pUp, haveSEff: true,
		upAsk: 0.50, downAsk: 0.50, haveUpAsk: true, haveDownAsk: true,
		strike: 68000,
	}

	sig, ok := LatencyArb{}.Evaluate(m, 0)
	if !ok {
		t.Fatal("expected latency_arb to fire")
	}
	if sig.Side != types.Up {
		t.Fatalf("side = %v, want Up", sig.Side)
	}
	if sig.Edge < 0.45 || sig.Edge > 0.55 {
		t.Fatalf("edge = %v, want ~0.50", sig.Edge)
	}
	if sig.SizeFrac <= 0 || sig.SizeFrac > latencyArbPerTrade {
		t.Fatalf("sizeFrac = %v, want (0, %v]", sig.SizeFrac, latencyArbPerTrade)
	}
}

func TestLatencyArbRejectsBelowMinEdge(t *testing.T) {
	t.Parallel()
	m := fakeMarket{
		sEff: 68000, pFairUp: 0.51, haveSEff: true,
		upAsk: 0.50, downAsk: 0.50, haveUpAsk: true, haveDownAsk: true,
		strike: 68000,
	}
	if _, ok := (LatencyArb{}).Evaluate(m, 0); ok {
		t.Fatal("expected no signal for edge below 0.03")
	}
}

// TestCertaintyCaptureScenario replays spec.md §8 scenario 2.
func TestCertaintyCaptureScenario(t *testing.T) {
	t.Parallel()
	k, s, sigma, tau := 68000.0, 68130.0, 0.00006, 60.0
	z := quant.Z(s, k, sigma, tau)
	d2 := quant.D2(s, k, sigma, tau)
	pUp := quant.PFairUp(d2)

	m := fakeMarket{
		sEff: s, z: z, pFairUp: pUp, haveSEff: true,
		upAsk: 0.90, haveUpAsk: true,
		strike: k,
	}

	sig, ok := CertaintyCapture{}.Evaluate(m, 0)
	if !ok {
		t.Fatal("expected certainty_capture to fire")
	}
	if sig.Side != types.Up {
		t.Fatalf("side = %v, want Up", sig.Side)
	}
	if sig.Confidence < 0.5 || sig.Confidence > 0.99 {
		t.Fatalf("confidence = %v out of documented range", sig.Confidence)
	}
}

func TestCertaintyCaptureRejectsBelowZThreshold(t *testing.T) {
	t.Parallel()
	m := fakeMarket{z: 1.0, haveSEff: true}
	if _, ok := (CertaintyCapture{}).Evaluate(m, 0); ok {
		t.Fatal("expected no signal for |z| below 1.5")
	}
}

// TestConvexityFadeRegimeGate replays spec.md §8 scenario 3: a Trend
// regime suppresses the signal regardless of other inputs.
func TestConvexityFadeRegimeGate(t *testing.T) {
	t.Parallel()
	m := fakeMarket{
		regime: quant.Trend, haveSEff: true,
		distFrac: 0.0001, tauEff: 100,
		pFairUp: 0.9, upAsk: 0.1, downAsk: 0.1,
		haveUpAsk: true, haveDownAsk: true,
	}
	if _, ok := (ConvexityFade{}).Evaluate(m, 0); ok {
		t.Fatal("expected no signal in Trend regime")
	}
}

func TestConvexityFadeFiresNearATMInRangeRegime(t *testing.T) {
	t.Parallel()
	m := fakeMarket{
		regime: quant.Range, haveSEff: true,
		distFrac: 0.0001, tauEff: 100,
		pFairUp: 0.55, upAsk: 0.40, downAsk: 0.40,
		haveUpAsk: true, haveDownAsk: true,
	}
	sig, ok := ConvexityFade{}.Evaluate(m, 0)
	if !ok {
		t.Fatal("expected convexity_fade to fire near ATM in Range regime")
	}
	if sig.Confidence != convexityConfidence {
		t.Fatalf("confidence = %v, want fixed %v", sig.Confidence, convexityConfidence)
	}
	if !sig.UseBid {
		t.Fatal("expected convexity_fade to post passively at best bid")
	}
}

// TestLPExtremePassiveExemption replays spec.md §8 scenario 5.
func TestLPExtremePassiveExemption(t *testing.T) {
	t.Parallel()

	// z=+2.0, down_ask=0.06, true_prob(Down)~0.023 -> edge negative, no signal.
	m := fakeMarket{
		sigma: 0.0001, tauEff: 90, regime: quant.Range,
		z: 2.0, pFairUp: 0.977, haveSEff: true,
		downAsk: 0.06, haveDownAsk: true,
	}
	if _, ok := (LPExtreme{}).Evaluate(m, 0); ok {
		t.Fatal("expected no signal: edge negative at down_ask=0.06")
	}

	// Raise true_prob scenario: z=+1.6 -> true_prob~0.055, down_ask=0.02 -> edge=0.035, fires.
	m2 := fakeMarket{
		sigma: 0.0001, tauEff: 90, regime: quant.Range,
		z: 1.6, pFairUp: 0.945, haveSEff: true,
		downAsk: 0.02, haveDownAsk: true,
	}
	sig, ok := LPExtreme{}.Evaluate(m2, 0)
	if !ok {
		t.Fatal("expected lp_extreme to fire")
	}
	if !sig.IsPassive {
		t.Fatal("expected lp_extreme signal to be marked passive")
	}
	if sig.SizeFrac < lpExtremeSizeFloor || sig.SizeFrac > lpExtremeSizeCeil {
		t.Fatalf("sizeFrac = %v out of clamp range", sig.SizeFrac)
	}
}

// TestStrikeMisalignScenario replays spec.md §8 scenario 4: K=68100,
// VWAP=68000, tau=280s, sigma=0.00006/s, d2 near 0 so sensitivity reduces
// to phi(0)/(VWAP*sigma*sqrt(tau)). epsilon=K-VWAP=100 makes dP negative, so
// the strategy buys Down with fair value recomputed from VWAP.
func TestStrikeMisalignScenario(t *testing.T) {
	t.Parallel()
	k, vwap, sigma, tau := 68100.0, 68000.0, 0.00006, 280.0

	d2VWAP := quant.D2(vwap, k, sigma, tau)
	pUpVWAP := quant.PFairUp(d2VWAP)
	fairDown := 1 - pUpVWAP

	m := fakeMarket{
		sEff: vwap, haveSEff: true,
		vwap: vwap, haveVWAP: true,
		d2: 0, sigma: sigma, tauEff: tau,
		strike:    k,
		elapsedMs: 5_000,
		downAsk:   0.85, haveDownAsk: true,
	}

	sig, ok := StrikeMisalign{}.Evaluate(m, 0)
	if !ok {
		t.Fatal("expected strike_misalign to fire")
	}
	if sig.Side != types.Down {
		t.Fatalf("side = %v, want Down", sig.Side)
	}
	wantEdge := fairDown - 0.85
	if math.Abs(sig.Edge-wantEdge) > 1e-6 {
		t.Fatalf("edge = %v, want %v", sig.Edge, wantEdge)
	}
	if sig.Confidence != 1.0 {
		t.Fatalf("confidence = %v, want 1.0 (saturated clamp)", sig.Confidence)
	}
	if sig.SizeFrac != strikeMisalignPerTrade {
		t.Fatalf("sizeFrac = %v, want cap %v (half-kelly exceeds cap)", sig.SizeFrac, strikeMisalignPerTrade)
	}
	if !sig.UseBid {
		t.Fatal("expected strike_misalign to post passively at best bid")
	}
}

func TestStrikeMisalignRejectsOutsideOpeningWindow(t *testing.T) {
	t.Parallel()
	m := fakeMarket{
		sEff: 68000, haveSEff: true,
		vwap: 68000, haveVWAP: true,
		strike: 68100, elapsedMs: strikeMisalignWindowMs + 1,
		downAsk: 0.85, haveDownAsk: true,
	}
	if _, ok := (StrikeMisalign{}).Evaluate(m, 0); ok {
		t.Fatal("expected no signal after the opening window closes")
	}
}

func TestCrossTimeframeSelfDisables(t *testing.T) {
	t.Parallel()
	c := CrossTimeframeRV{CrossMarketInputs: 0}
	if _, ok := c.Evaluate(fakeMarket{}, 0); ok {
		t.Fatal("expected cross_timeframe_rv to self-disable with <2 cross-market inputs")
	}
}

func TestHalfKellySizeFracClampsAtZeroAndCap(t *testing.T) {
	t.Parallel()
	if got := halfKellySizeFrac(-0.1, 0.5, 0.02); got != 0 {
		t.Fatalf("negative edge should clamp to 0, got %v", got)
	}
	if got := halfKellySizeFrac(1.0, 0.01, 0.02); got != 0.02 {
		t.Fatalf("large kelly should clamp to cap 0.02, got %v", got)
	}
}

func TestRegistryGroupsByTrigger(t *testing.T) {
	t.Parallel()
	r := NewRegistry(map[types.StrategyID]bool{
		types.LatencyArb:     true,
		types.CertaintyCap:   true,
		types.LPExtreme:      true,
		types.StrikeMisalign: false,
	})

	if len(r.OracleTriggered()) != 2 { // latency_arb, lp_extreme
		t.Fatalf("oracle-triggered count = %d, want 2", len(r.OracleTriggered()))
	}
	if len(r.VenueTriggered()) != 2 { // certainty_capture, lp_extreme
		t.Fatalf("venue-triggered count = %d, want 2", len(r.VenueTriggered()))
	}
	if len(r.OpeningWindow()) != 0 {
		t.Fatalf("opening-window count = %d, want 0 (strike_misalign disabled)", len(r.OpeningWindow()))
	}
	if r.Enabled(types.ConvexityFade) {
		t.Fatal("convexity_fade was never enabled")
	}
}

func TestAbsF(t *testing.T) {
	t.Parallel()
	if absF(-3.5) != 3.5 || absF(3.5) != 3.5 {
		t.Fatal("absF sign handling wrong")
	}
	if math.Abs(absF(0)) != 0 {
		t.Fatal("absF(0) should be 0")
	}
}
