package strategy

import "binaryedge/pkg/types"

// Latency-arb constants, spec.md §4.4.1.
const (
	latencyArbMinEdge   = 0.03
	latencyArbPerTrade  = 0.02 // per-trade cap fraction used in sizing
	latencyArbConfDiv   = 0.10
)

// LatencyArb exploits the venue's lagged reaction to oracle moves. It is
// triggered by the engine on every oracle trade.
type LatencyArb struct{}

func (LatencyArb) ID() types.StrategyID { return types.LatencyArb }

func (LatencyArb) Evaluate(m MarketView, nowMs int64) (types.Signal, bool) {
	pUp, ok := m.PFairUp(nowMs)
	if !ok {
		return types.Signal{}, false
	}
	pDown := 1 - pUp

	upAsk, haveUpAsk := m.UpAsk()
	downAsk, haveDownAsk := m.DownAsk()

	var (
		side types.Side
		edge float64
		fair float64
		ask  float64
	)

	edgeUp := pUp - upAsk
	edgeDown := pDown - downAsk

	switch {
	case haveUpAsk && haveDownAsk:
		if edgeUp >= edgeDown {
			side, edge, fair, ask = types.Up, edgeUp, pUp, upAsk
		} else {
			side, edge, fair, ask = types.Down, edgeDown, pDown, downAsk
		}
	case haveUpAsk:
		side, edge, fair, ask = types.Up, edgeUp, pUp, upAsk
	case haveDownAsk:
		side, edge, fair, ask = types.Down, edgeDown, pDown, downAsk
	default:
		return types.Signal{}, false
	}

	if edge < latencyArbMinEdge {
		return types.Signal{}, false
	}

	confidence := clamp(edge/latencyArbConfDiv, 0.3, 1.0)
	sizeFrac := halfKellySizeFrac(edge, ask, latencyArbPerTrade)

	return types.Signal{
		StrategyID: types.LatencyArb,
		Side:       side,
		IsPassive:  false,
		UseBid:     false,
		Edge:       edge,
		Confidence: confidence,
		SizeFrac:   sizeFrac,
		Fair:       fair,
		Ask:        ask,
		Reason:     "oracle moved faster than venue repriced",
	}, true
}
