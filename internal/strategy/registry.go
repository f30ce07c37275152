package strategy

import "binaryedge/pkg/types"

// Registry holds the configured set of enabled strategy evaluators and
// groups them the way the engine loop dispatches them (spec.md §4.7): one
// set triggered by oracle trades, one set triggered by venue events, and a
// shared opening-window set that runs as long as sigma is valid, exempt
// from the per-market warmup requirement.
type Registry struct {
	enabled map[types.StrategyID]Evaluator
}

// NewRegistry builds a registry from a set of enabled strategy IDs. Every
// known evaluator not named in enabled is left out entirely, matching the
// STRAT_<NAME> boolean toggle table in spec.md §6.
func NewRegistry(enabled map[types.StrategyID]bool) *Registry {
	all := map[types.StrategyID]Evaluator{
		types.LatencyArb:     LatencyArb{},
		types.CertaintyCap:   CertaintyCapture{},
		types.ConvexityFade:  ConvexityFade{},
		types.StrikeMisalign: StrikeMisalign{},
		types.LPExtreme:      LPExtreme{},
		types.CrossTimeframe: CrossTimeframeRV{},
	}

	r := &Registry{enabled: make(map[types.StrategyID]Evaluator)}
	for id, ev := range all {
		if enabled[id] {
			r.enabled[id] = ev
		}
	}
	return r
}

// OracleTriggered returns the evaluators run on an OracleTrade event
// outside the opening window: latency_arb, lp_extreme.
func (r *Registry) OracleTriggered() []Evaluator {
	return r.filter(types.LatencyArb, types.LPExtreme)
}

// VenueTriggered returns the evaluators run on a VenueQuote/VenueBook event
// outside the opening window: certainty_capture, convexity_fade,
// lp_extreme.
func (r *Registry) VenueTriggered() []Evaluator {
	return r.filter(types.CertaintyCap, types.ConvexityFade, types.LPExtreme)
}

// OpeningWindow returns the evaluators exempt from the per-market warmup
// requirement as long as sigma is valid: strike_misalign.
func (r *Registry) OpeningWindow() []Evaluator {
	return r.filter(types.StrikeMisalign)
}

func (r *Registry) filter(ids ...types.StrategyID) []Evaluator {
	out := make([]Evaluator, 0, len(ids))
	for _, id := range ids {
		if ev, ok := r.enabled[id]; ok {
			out = append(out, ev)
		}
	}
	return out
}

// Enabled reports whether a strategy is in the registry.
func (r *Registry) Enabled(id types.StrategyID) bool {
	_, ok := r.enabled[id]
	return ok
}
