package state

import "binaryedge/pkg/types"

// PositionTracker accumulates the list of accepted fills for a market and
// the resulting exposure, aggregated per strategy and in total. It
// deliberately never computes realized PnL — spec.md §4.8 requires PnL to
// be recognized strictly at settlement, never at fill time (a token
// purchase always looks "positive" if marked at cost, which would make
// every open position appear profitable before the market even resolves).
type PositionTracker struct {
	fills              []types.Fill
	exposureByStrategy map[types.StrategyID]float64
	totalExposure      float64
}

// NewPositionTracker builds an empty tracker.
func NewPositionTracker() *PositionTracker {
	return &PositionTracker{
		exposureByStrategy: make(map[types.StrategyID]float64),
	}
}

// RecordFill appends a fill belonging to an accepted order and updates
// exposure. Exposure is cost basis (price * size), never marked-to-market.
func (p *PositionTracker) RecordFill(f types.Fill) {
	p.fills = append(p.fills, f)
	cost := f.Price * f.SizeShares
	p.exposureByStrategy[f.StrategyID] += cost
	p.totalExposure += cost
}

// Fills returns every fill recorded so far, in recording order.
func (p *PositionTracker) Fills() []types.Fill {
	return p.fills
}

// FillsByStrategy returns the subset of fills belonging to one strategy.
func (p *PositionTracker) FillsByStrategy(id types.StrategyID) []types.Fill {
	out := make([]types.Fill, 0, len(p.fills))
	for _, f := range p.fills {
		if f.StrategyID == id {
			out = append(out, f)
		}
	}
	return out
}

// ExposureByStrategy returns accumulated cost-basis exposure for one
// strategy.
func (p *PositionTracker) ExposureByStrategy(id types.StrategyID) float64 {
	return p.exposureByStrategy[id]
}

// TotalExposure returns accumulated cost-basis exposure across all
// strategies for this market.
func (p *PositionTracker) TotalExposure() float64 {
	return p.totalExposure
}
