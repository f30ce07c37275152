package strategy

import (
	"binaryedge/internal/quant"
	"binaryedge/pkg/types"
)

// LP-extreme constants, spec.md §4.4.5.
const (
	lpExtremeMinTauS    = 60.0
	lpExtremeMinZ       = 1.5
	lpExtremeMaxAsk     = 0.25
	lpExtremeMinEdge    = 0.02
	lpExtremeSizeFloor  = 0.001
	lpExtremeSizeCeil   = 0.02
)

// LPExtreme provides liquidity on the near-zero "losing" side where market
// makers retreat. It is passive and exempt from house-side enforcement.
type LPExtreme struct{}

func (LPExtreme) ID() types.StrategyID { return types.LPExtreme }

func (LPExtreme) Evaluate(m MarketView, nowMs int64) (types.Signal, bool) {
	sigma := m.Sigma(nowMs)
	if sigma <= 0 {
		return types.Signal{}, false
	}
	if m.TauEff(nowMs) < lpExtremeMinTauS {
		return types.Signal{}, false
	}
	if m.Regime() == quant.Trend {
		return types.Signal{}, false
	}

	z, ok := m.Z(nowMs)
	if !ok || absF(z) < lpExtremeMinZ {
		return types.Signal{}, false
	}

	pUp, ok := m.PFairUp(nowMs)
	if !ok {
		return types.Signal{}, false
	}

	var losingSide types.Side
	var trueProb, losingAsk float64
	var haveAsk bool
	if z > 0 {
		losingSide = types.Down
		trueProb = 1 - pUp
		losingAsk, haveAsk = m.DownAsk()
	} else {
		losingSide = types.Up
		trueProb = pUp
		losingAsk, haveAsk = m.UpAsk()
	}
	if !haveAsk || losingAsk >= lpExtremeMaxAsk {
		return types.Signal{}, false
	}

	edge := trueProb - losingAsk
	if edge < lpExtremeMinEdge {
		return types.Signal{}, false
	}

	a := losingAsk
	fStar := trueProb - (1-trueProb)*(1-a)/a
	sizeFrac := clamp(0.5*fStar, lpExtremeSizeFloor, lpExtremeSizeCeil)

	return types.Signal{
		StrategyID: types.LPExtreme,
		Side:       losingSide,
		IsPassive:  true,
		UseBid:     false, // pure passive post, long-lived; price is the ask itself
		Edge:       edge,
		Confidence: clamp(absF(z)/4, 0.3, 0.9),
		SizeFrac:   sizeFrac,
		Fair:       trueProb,
		Ask:        losingAsk,
		Reason:     "providing liquidity on abandoned losing side",
	}, true
}
