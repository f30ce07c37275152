// Package pipeline implements signal reconciliation (spec.md §4.5): score,
// deconflict opposing active signals, enforce house-side coherence, sort,
// risk-gate each signal, lock the house side, and dispatch what survives.
// Without deconfliction the engine could buy both Up and Down in the same
// market — a guaranteed loss, since the combined cost would exceed the $1
// payout. Passive signals (liquidity provision) are exempt from house-side
// enforcement; their thesis is holding the opposite side's tail
// probability, not picking a direction.
package pipeline

import (
	"sort"

	"github.com/google/uuid"

	"binaryedge/internal/risk"
	"binaryedge/internal/state"
	"binaryedge/pkg/types"
)

// houseSideLockConfidence is the minimum confidence an accepted active
// signal must carry to set house_side (spec.md §4.5 step 6) — weak
// signals like convexity-fade should never be able to lock the portfolio's
// direction.
const houseSideLockConfidence = 0.7

// Dispatched is an accepted signal paired with the Order built from it and
// a correlation ID threading it through to telemetry/ledger rows.
type Dispatched struct {
	CorrelationID string
	Signal        types.Signal
	Order         types.Order
}

// Rejected is a signal that did not survive reconciliation or the risk
// gate, reported to telemetry but never dispatched.
type Rejected struct {
	CorrelationID string
	Signal        types.Signal
	Reason        string
}

// Input bundles everything Reconcile needs beyond the signal set itself.
type Input struct {
	Signals          []types.Signal
	Market           *state.MarketState
	Risk             *risk.Manager
	TotalExposureUSD float64
	StrategyExposure map[types.StrategyID]float64
	LastFeedEventMs  int64
	NowMs            int64
}

// Reconcile runs the full pipeline of spec.md §4.5 over one batch of
// signals produced from a single inbound event, returning the orders to
// dispatch (in pipeline order) and every rejection for telemetry.
func Reconcile(in Input) ([]Dispatched, []Rejected) {
	signals := in.Signals
	if len(signals) == 0 {
		return nil, nil
	}

	houseSideSet := in.Market.HouseSide != types.SideUnknown

	if !houseSideSet {
		signals = deconflictActiveSides(signals)
	} else {
		signals = filterHouseSide(signals, in.Market.HouseSide)
	}

	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].Score() > signals[j].Score()
	})

	var dispatched []Dispatched
	var rejected []Rejected

	for _, sig := range signals {
		correlationID := uuid.NewString()

		strategyExposure := 0.0
		if in.StrategyExposure != nil {
			strategyExposure = in.StrategyExposure[sig.StrategyID]
		}

		sizeUSD, err := in.Risk.Evaluate(risk.GateInput{
			MarketSlug:       in.Market.Ctx.Slug,
			Signal:           sig,
			TotalExposureUSD: in.TotalExposureUSD,
			StrategyExposure: strategyExposure,
			LastFeedEventMs:  in.LastFeedEventMs,
			NowMs:            in.NowMs,
		})
		if err != nil {
			rejected = append(rejected, Rejected{CorrelationID: correlationID, Signal: sig, Reason: err.Error()})
			continue
		}

		if !houseSideSet && !sig.IsPassive && sig.Confidence >= houseSideLockConfidence {
			in.Market.HouseSide = sig.Side
			houseSideSet = true
		}

		dispatched = append(dispatched, Dispatched{
			CorrelationID: correlationID,
			Signal:        sig,
			Order:         buildOrder(sig, sizeUSD, in.Market),
		})

		// Accepting this order consumes exposure room for every later
		// signal in the same batch — without this running update, two
		// signals in one batch could each be approved against the same
		// unconsumed portfolio headroom.
		in.TotalExposureUSD += sizeUSD
		if in.StrategyExposure != nil {
			in.StrategyExposure[sig.StrategyID] += sizeUSD
		}
	}

	return dispatched, rejected
}

// deconflictActiveSides sums score per side among active (non-passive)
// signals; every active signal whose side lost the sum is dropped before
// any signal reaches the risk gate. Passive signals always pass through.
func deconflictActiveSides(signals []types.Signal) []types.Signal {
	var scoreBySide = map[types.Side]float64{}
	var haveUp, haveDown bool

	for _, sig := range signals {
		if sig.IsPassive {
			continue
		}
		scoreBySide[sig.Side] += sig.Score()
		switch sig.Side {
		case types.Up:
			haveUp = true
		case types.Down:
			haveDown = true
		}
	}

	if !(haveUp && haveDown) {
		return signals
	}

	winner := types.Up
	if scoreBySide[types.Down] > scoreBySide[types.Up] {
		winner = types.Down
	}

	out := make([]types.Signal, 0, len(signals))
	for _, sig := range signals {
		if sig.IsPassive || sig.Side == winner {
			out = append(out, sig)
		}
	}
	return out
}

// filterHouseSide drops any active signal whose side disagrees with the
// already-locked house side. Passive signals are never filtered here.
func filterHouseSide(signals []types.Signal, houseSide types.Side) []types.Signal {
	out := make([]types.Signal, 0, len(signals))
	for _, sig := range signals {
		if sig.IsPassive || sig.Side == houseSide {
			out = append(out, sig)
		}
	}
	return out
}

// buildOrder maps a signal's is_passive/use_bid pair onto an order type
// (spec.md §9): aggressive IOC, timed aggressive, or passive post. The
// dispatch price is the ask for aggressive orders; a UseBid signal quotes
// at the market's current best bid on its side instead (convexity-fade and
// strike-misalign post passively at the bid). LP-extreme is passive but
// not UseBid — it posts at its own quoted ask, since it is supplying
// liquidity on the abandoned losing side itself.
func buildOrder(sig types.Signal, sizeUSD float64, market *state.MarketState) types.Order {
	orderType := types.AggressiveIOC
	price := sig.Ask

	switch {
	case sig.StrategyID == types.CertaintyCap:
		orderType = types.TimedAggressive
	case sig.UseBid:
		orderType = types.PassivePost
		if bid, ok := bidForSide(market, sig.Side); ok {
			price = bid
		}
	case sig.IsPassive:
		orderType = types.PassivePost
	}

	return types.Order{
		StrategyID: sig.StrategyID,
		Side:       sig.Side,
		Price:      price,
		SizeUSD:    sizeUSD,
		OrderType:  orderType,
	}
}

func bidForSide(market *state.MarketState, side types.Side) (float64, bool) {
	if side == types.Up {
		return market.UpBid()
	}
	return market.DownBid()
}
