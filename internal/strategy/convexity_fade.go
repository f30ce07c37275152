package strategy

import (
	"binaryedge/internal/quant"
	"binaryedge/pkg/types"
)

// Convexity-fade constants, spec.md §4.4.3.
const (
	convexityMaxDistFrac = 0.003
	convexityMinTauS     = 30.0
	convexityMinEdge     = 0.02
	convexityPerTrade    = 0.005
	convexityConfidence  = 0.4
)

// ConvexityFade fades overreactions at the high-gamma ATM region in
// non-trending regimes. Triggered by the engine on venue events.
type ConvexityFade struct{}

func (ConvexityFade) ID() types.StrategyID { return types.ConvexityFade }

func (ConvexityFade) Evaluate(m MarketView, nowMs int64) (types.Signal, bool) {
	if m.Regime() == quant.Trend {
		return types.Signal{}, false
	}

	distFrac, ok := m.DistFrac(nowMs)
	if !ok || absF(distFrac) > convexityMaxDistFrac {
		return types.Signal{}, false
	}

	if m.TauEff(nowMs) < convexityMinTauS {
		return types.Signal{}, false
	}

	pUp, ok := m.PFairUp(nowMs)
	if !ok {
		return types.Signal{}, false
	}
	pDown := 1 - pUp

	upAsk, haveUp := m.UpAsk()
	downAsk, haveDown := m.DownAsk()
	if !haveUp || !haveDown {
		return types.Signal{}, false
	}

	edgeUp := pUp - upAsk
	edgeDown := pDown - downAsk

	var side types.Side
	var fair, ask, edge float64
	if edgeUp >= edgeDown {
		side, fair, ask, edge = types.Up, pUp, upAsk, edgeUp
	} else {
		side, fair, ask, edge = types.Down, pDown, downAsk, edgeDown
	}

	if edge < convexityMinEdge {
		return types.Signal{}, false
	}

	sizeFrac := halfKellySizeFrac(edge, ask, convexityPerTrade)

	return types.Signal{
		StrategyID: types.ConvexityFade,
		Side:       side,
		IsPassive:  false,
		UseBid:     true, // order type: passive post at best bid
		Edge:       edge,
		Confidence: convexityConfidence,
		SizeFrac:   sizeFrac,
		Fair:       fair,
		Ask:        ask,
		Reason:     "fading ATM overreaction in non-trending regime",
	}, true
}
