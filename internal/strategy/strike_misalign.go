package strategy

import (
	"math"

	"binaryedge/internal/quant"
	"binaryedge/pkg/types"
)

// Strike-misalign constants, spec.md §4.4.4.
const (
	strikeMisalignWindowMs = 15_000
	strikeMisalignMinDP    = 0.02
	strikeMisalignMinEdge  = 0.02
	strikeMisalignPerTrade = 0.02
)

// StrikeMisalign corrects strike-setting bias in the opening moments of a
// market using the rolling VWAP as a steadier reference than the latest
// oracle tick. Triggered by the engine on oracle trades within the opening
// window and exempt from the usual warmup requirement.
type StrikeMisalign struct{}

func (StrikeMisalign) ID() types.StrategyID { return types.StrikeMisalign }

func (StrikeMisalign) Evaluate(m MarketView, nowMs int64) (types.Signal, bool) {
	if m.ElapsedMs(nowMs) > strikeMisalignWindowMs {
		return types.Signal{}, false
	}

	vwap, ok := m.VWAP()
	if !ok {
		return types.Signal{}, false
	}

	d2, ok := m.D2(nowMs)
	if !ok {
		return types.Signal{}, false
	}

	sigma := m.Sigma(nowMs)
	tau := m.TauEff(nowMs)
	k := m.Strike()

	epsilon := k - vwap
	sensitivity := quant.DeltaBinary(d2, vwap, sigma, tau)
	dP := -sensitivity * epsilon

	if math.Abs(dP) < strikeMisalignMinDP {
		return types.Signal{}, false
	}

	// Fair value recomputed with VWAP standing in for spot — the whole
	// point of this strategy is to trust the smoothed reference over a
	// single noisy opening tick.
	d2VWAP := quant.D2(vwap, k, sigma, tau)
	pUpVWAP := quant.PFairUp(d2VWAP)

	var side types.Side
	var fair, ask float64
	var haveAsk bool
	if dP > 0 {
		side = types.Up
		fair = pUpVWAP
		ask, haveAsk = m.UpAsk()
	} else {
		side = types.Down
		fair = 1 - pUpVWAP
		ask, haveAsk = m.DownAsk()
	}
	if !haveAsk {
		return types.Signal{}, false
	}

	edge := fair - ask
	if edge < strikeMisalignMinEdge {
		return types.Signal{}, false
	}

	sizeFrac := halfKellySizeFrac(edge, ask, strikeMisalignPerTrade)

	return types.Signal{
		StrategyID: types.StrikeMisalign,
		Side:       side,
		IsPassive:  false,
		UseBid:     true, // order type: passive post at best bid
		Edge:       edge,
		Confidence: clamp(math.Abs(dP)/0.10, 0.3, 1.0),
		SizeFrac:   sizeFrac,
		Fair:       fair,
		Ask:        ask,
		Reason:     "VWAP disagrees with strike in opening window",
	}, true
}
