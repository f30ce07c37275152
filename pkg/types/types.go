// Package types holds the shared wire and value vocabulary used across the
// engine: sides, signals, orders, fills, and the inbound event envelopes
// that cross goroutine boundaries. Nothing in this package imports any
// other internal package.
package types

// Side is the direction of a binary contract.
type Side int

const (
	SideUnknown Side = iota
	Up
	Down
)

func (s Side) String() string {
	switch s {
	case Up:
		return "Up"
	case Down:
		return "Down"
	default:
		return "Unknown"
	}
}

// Opposite returns the other side of a binary market.
func (s Side) Opposite() Side {
	switch s {
	case Up:
		return Down
	case Down:
		return Up
	default:
		return SideUnknown
	}
}

// StrategyID names the evaluator that produced a Signal.
type StrategyID string

const (
	LatencyArb      StrategyID = "latency_arb"
	CertaintyCap    StrategyID = "certainty_capture"
	ConvexityFade   StrategyID = "convexity_fade"
	StrikeMisalign  StrategyID = "strike_misalign"
	LPExtreme       StrategyID = "lp_extreme"
	CrossTimeframe  StrategyID = "cross_timeframe_rv"
)

// OrderType maps to how the order sink should submit a Signal.
type OrderType int

const (
	AggressiveIOC OrderType = iota
	PassivePost
	TimedAggressive
)

func (t OrderType) String() string {
	switch t {
	case AggressiveIOC:
		return "AggressiveIOC"
	case PassivePost:
		return "PassivePost"
	case TimedAggressive:
		return "TimedAggressive"
	default:
		return "Unknown"
	}
}

// Signal is a candidate trade emitted by one strategy evaluator for one
// market on one event. Signals are pure data; a strategy evaluator never
// places an order directly.
type Signal struct {
	StrategyID StrategyID
	Side       Side
	IsPassive  bool
	UseBid     bool
	Edge       float64
	Confidence float64
	SizeFrac   float64
	Fair       float64
	Ask        float64
	Reason     string
}

// Score is the reconciliation pipeline's ranking value for a Signal.
func (s Signal) Score() float64 {
	return s.Edge * s.Confidence
}

// Order is a signal that survived reconciliation and risk gating, ready to
// be handed to the order-gateway collaborator.
type Order struct {
	StrategyID StrategyID
	Side       Side
	Price      float64
	SizeUSD    float64
	OrderType  OrderType
}

// Fill is a single execution belonging to an accepted Order.
type Fill struct {
	StrategyID StrategyID
	Side       Side
	Price      float64
	SizeShares float64
	TimestampMs int64
}

// Outcome is the realized result of a binary market at expiry.
type Outcome int

const (
	OutcomeUndetermined Outcome = iota
	OutcomeUp
	OutcomeDown
)

func (o Outcome) Side() Side {
	switch o {
	case OutcomeUp:
		return Up
	case OutcomeDown:
		return Down
	default:
		return SideUnknown
	}
}

// MarketContext is the immutable-after-open description of a market window.
type MarketContext struct {
	Slug        string
	Strike      float64
	StartMs     int64
	EndMs       int64
	UpTokenID   string
	DownTokenID string
	TickSize    float64
	NegRisk     bool
}

// --- Inbound event envelopes (spec.md §6) ---

// OracleTrade is one observation from the reference exchange.
type OracleTrade struct {
	TsMs  int64
	Price float64
	Qty   float64
	IsBuy bool
}

// VenueQuote is a best-bid/ask update for one side of the venue book.
type VenueQuote struct {
	TsMs     int64
	Side     Side
	BestBid  float64
	BestAsk  float64
}

// VenueBookLevel is one price/size level of a venue depth update.
type VenueBookLevel struct {
	Price float64
	Size  float64
}

// VenueBook is a full depth snapshot for one side (Up or Down token) of the
// venue book. Bids are sorted descending by price (best bid first), Asks
// ascending (best ask first) — the same convention as the venue's own
// "book" WS message.
type VenueBook struct {
	TsMs int64
	Side Side
	Bids []VenueBookLevel
	Asks []VenueBookLevel
}

// Tick is the 100ms heartbeat used for stale-feed detection.
type Tick struct {
	TsMs int64
}

// AckStatus is the terminal state of a submitted order.
type AckStatus int

const (
	AckUnknown AckStatus = iota
	Filled
	Rejected
	Expired
)

// OrderAck reports an order lifecycle outcome from the order gateway.
type OrderAck struct {
	OrderID     string
	StrategyID  StrategyID
	Side        Side
	Status      AckStatus
	Price       float64
	SizeShares  float64
	LatencyMs   int64
}
