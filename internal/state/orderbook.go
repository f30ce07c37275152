package state

import "binaryedge/pkg/types"

// OrderBook holds the best bid/ask and depth snapshot for one side (Up or
// Down) of a market's venue book. One instance per side lives inside
// MarketState; both are mutated only by the engine goroutine as venue
// events arrive, so no lock is needed (spec.md §5).
type OrderBook struct {
	side types.Side

	bestBid float64
	bestAsk float64
	bids    []types.VenueBookLevel
	asks    []types.VenueBookLevel

	haveQuote   bool
	updatedAtMs int64
}

// NewOrderBook constructs an empty book for the given side.
func NewOrderBook(side types.Side) *OrderBook {
	return &OrderBook{side: side}
}

// ApplyQuote updates best bid/ask from a VenueQuote event.
func (b *OrderBook) ApplyQuote(q types.VenueQuote) {
	b.bestBid = q.BestBid
	b.bestAsk = q.BestAsk
	b.haveQuote = true
	b.updatedAtMs = q.TsMs
}

// ApplyBook replaces the depth snapshot from a VenueBook event. Bids and
// asks are stored sorted best-first by the feed collaborator; best bid/ask
// are refreshed from each ladder's top level whenever that ladder is
// non-empty, so a one-sided update (bids only, or asks only) doesn't wipe
// out the other side's last known best price.
func (b *OrderBook) ApplyBook(evt types.VenueBook) {
	b.bids = evt.Bids
	b.asks = evt.Asks
	if len(evt.Bids) > 0 {
		b.bestBid = evt.Bids[0].Price
	}
	if len(evt.Asks) > 0 {
		b.bestAsk = evt.Asks[0].Price
	}
	if len(evt.Bids) > 0 || len(evt.Asks) > 0 {
		b.haveQuote = true
	}
	b.updatedAtMs = evt.TsMs
}

// BestAsk returns the best ask price and whether a quote has been seen.
func (b *OrderBook) BestAsk() (float64, bool) {
	return b.bestAsk, b.haveQuote
}

// BestBid returns the best bid price and whether a quote has been seen.
func (b *OrderBook) BestBid() (float64, bool) {
	return b.bestBid, b.haveQuote
}

// UpdatedAtMs returns the timestamp of the last applied update.
func (b *OrderBook) UpdatedAtMs() int64 {
	return b.updatedAtMs
}

// IsStale reports whether the book hasn't updated within maxAgeMs of now.
func (b *OrderBook) IsStale(nowMs, maxAgeMs int64) bool {
	if !b.haveQuote {
		return true
	}
	return nowMs-b.updatedAtMs > maxAgeMs
}
