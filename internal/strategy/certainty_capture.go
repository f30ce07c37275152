package strategy

import "binaryedge/pkg/types"

// Certainty-capture constants, spec.md §4.4.2.
const (
	certaintyMinZ    = 1.5
	certaintyMinEdge = 0.02
)

// CertaintyCapture buys near-certain outcomes when the venue still prices
// residual doubt. Triggered by the engine on venue quote updates.
type CertaintyCapture struct{}

func (CertaintyCapture) ID() types.StrategyID { return types.CertaintyCap }

func (CertaintyCapture) Evaluate(m MarketView, nowMs int64) (types.Signal, bool) {
	z, ok := m.Z(nowMs)
	if !ok || absF(z) < certaintyMinZ {
		return types.Signal{}, false
	}

	pUp, ok := m.PFairUp(nowMs)
	if !ok {
		return types.Signal{}, false
	}

	var side types.Side
	var fair, ask float64
	var haveAsk bool

	if z > 0 {
		side = types.Up
		fair = pUp
		ask, haveAsk = m.UpAsk()
	} else {
		side = types.Down
		fair = 1 - pUp
		ask, haveAsk = m.DownAsk()
	}
	if !haveAsk {
		return types.Signal{}, false
	}

	edge := fair - ask
	if edge < certaintyMinEdge {
		return types.Signal{}, false
	}

	absZ := absF(z)
	var cap float64
	switch {
	case absZ > 3.0:
		cap = 0.05
	case absZ > 2.5:
		cap = 0.03
	default: // absZ > 1.5
		cap = 0.01
	}

	confidence := clamp(absZ/4, 0.5, 0.99)
	sizeFrac := halfKellySizeFrac(edge, ask, cap)

	return types.Signal{
		StrategyID: types.CertaintyCap,
		Side:       side,
		IsPassive:  false,
		UseBid:     false,
		Edge:       edge,
		Confidence: confidence,
		SizeFrac:   sizeFrac,
		Fair:       fair,
		Ask:        ask,
		Reason:     "venue underpricing near-certain outcome",
	}, true
}

func absF(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
