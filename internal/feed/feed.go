// Package feed implements the two real-time market-data collaborators
// named in spec.md §6 inbound: the oracle feed (reference exchange trades)
// and the venue feed (prediction-market CLOB quotes/book). Both are
// OUT OF SCOPE internals per spec.md §1/§2 — the core only consumes the
// typed events they produce on a channel — but are implemented here as a
// real collaborator seam, grounded verbatim on the teacher's
// internal/exchange/ws.go reconnect/backoff/ping shape generalized from
// "market + user channel" to "oracle + venue channel".
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"binaryedge/pkg/types"
)

const (
	pingInterval     = 50 * time.Second
	readTimeout      = 90 * time.Second
	maxReconnectWait = 30 * time.Second
	writeTimeout     = 10 * time.Second
	eventBufferSize  = 256
)

// OracleFeed connects to the reference exchange's trade stream and emits
// OracleTrade events. One instance lives for the life of the process; it
// is never re-created between markets (spec.md §4.7: trades arriving
// between markets are discarded by the engine, not by this feed).
type OracleFeed struct {
	url    string
	conn   *websocket.Conn
	connMu sync.Mutex
	tradeCh chan types.OracleTrade
	logger *slog.Logger
}

// NewOracleFeed builds an oracle feed pointed at wsURL.
func NewOracleFeed(wsURL string, logger *slog.Logger) *OracleFeed {
	return &OracleFeed{
		url:     wsURL,
		tradeCh: make(chan types.OracleTrade, eventBufferSize),
		logger:  logger.With("component", "feed-oracle"),
	}
}

// Trades returns the read-only channel of oracle trade events.
func (f *OracleFeed) Trades() <-chan types.OracleTrade { return f.tradeCh }

// Run connects and maintains the connection with exponential backoff,
// reconnecting until ctx is cancelled.
func (f *OracleFeed) Run(ctx context.Context) error {
	return runWithBackoff(ctx, f.logger, func(ctx context.Context) error {
		return f.connectAndRead(ctx)
	})
}

func (f *OracleFeed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial oracle feed: %w", err)
	}
	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()
	defer closeConn(&f.connMu, &f.conn)

	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go pingLoop(pingCtx, &f.connMu, conn, f.logger)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read oracle feed: %w", err)
		}
		f.dispatch(msg)
	}
}

// oracleTradeMsg is the wire shape of one reference-exchange trade print.
type oracleTradeMsg struct {
	Price string `json:"p"`
	Qty   string `json:"q"`
	TsMs  int64  `json:"T"`
	IsBuy bool   `json:"m"` // wire convention: taker-is-maker flag inverted to buy/sell upstream
}

func (f *OracleFeed) dispatch(raw []byte) {
	var msg oracleTradeMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		f.logger.Debug("ignoring unparsable oracle message", "error", err)
		return
	}

	price, qty, ok := parsePriceQty(msg.Price, msg.Qty)
	if !ok {
		return
	}

	evt := types.OracleTrade{TsMs: msg.TsMs, Price: price, Qty: qty, IsBuy: msg.IsBuy}
	select {
	case f.tradeCh <- evt:
	default:
		f.logger.Warn("oracle trade channel full, dropping event")
	}
}

// VenueFeed connects to the prediction market's CLOB and emits VenueQuote
// and VenueBook events for both sides of a market.
type VenueFeed struct {
	url    string
	conn   *websocket.Conn
	connMu sync.Mutex

	subscribedMu sync.RWMutex
	subscribed   map[string]bool

	quoteCh chan types.VenueQuote
	bookCh  chan types.VenueBook
	logger  *slog.Logger
}

// NewVenueFeed builds a venue feed pointed at wsURL.
func NewVenueFeed(wsURL string, logger *slog.Logger) *VenueFeed {
	return &VenueFeed{
		url:        wsURL,
		subscribed: make(map[string]bool),
		quoteCh:    make(chan types.VenueQuote, eventBufferSize),
		bookCh:     make(chan types.VenueBook, eventBufferSize),
		logger:     logger.With("component", "feed-venue"),
	}
}

// Quotes returns the read-only channel of best bid/ask updates.
func (f *VenueFeed) Quotes() <-chan types.VenueQuote { return f.quoteCh }

// Books returns the read-only channel of depth snapshot updates.
func (f *VenueFeed) Books() <-chan types.VenueBook { return f.bookCh }

// Subscribe adds token IDs to track for the current market; re-sent on
// every reconnect.
func (f *VenueFeed) Subscribe(tokenIDs ...string) {
	f.subscribedMu.Lock()
	defer f.subscribedMu.Unlock()
	for _, id := range tokenIDs {
		f.subscribed[id] = true
	}
}

// Unsubscribe drops token IDs when a market closes.
func (f *VenueFeed) Unsubscribe(tokenIDs ...string) {
	f.subscribedMu.Lock()
	defer f.subscribedMu.Unlock()
	for _, id := range tokenIDs {
		delete(f.subscribed, id)
	}
}

// Run connects and maintains the connection with exponential backoff.
func (f *VenueFeed) Run(ctx context.Context) error {
	return runWithBackoff(ctx, f.logger, func(ctx context.Context) error {
		return f.connectAndRead(ctx)
	})
}

func (f *VenueFeed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial venue feed: %w", err)
	}
	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()
	defer closeConn(&f.connMu, &f.conn)

	if err := f.sendSubscription(); err != nil {
		return fmt.Errorf("subscribe venue feed: %w", err)
	}

	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go pingLoop(pingCtx, &f.connMu, conn, f.logger)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read venue feed: %w", err)
		}
		f.dispatch(msg)
	}
}

func (f *VenueFeed) sendSubscription() error {
	f.subscribedMu.RLock()
	ids := make([]string, 0, len(f.subscribed))
	for id := range f.subscribed {
		ids = append(ids, id)
	}
	f.subscribedMu.RUnlock()

	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(map[string]any{"assets_ids": ids, "type": "market"})
}

type venueLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type venueEnvelope struct {
	EventType string       `json:"event_type"`
	Side      string       `json:"side"`
	TsMs      int64        `json:"timestamp"`
	BestBid   string       `json:"best_bid"`
	BestAsk   string       `json:"best_ask"`
	Bids      []venueLevel `json:"bids"`
	Asks      []venueLevel `json:"asks"`
}

func (f *VenueFeed) dispatch(raw []byte) {
	var env venueEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		f.logger.Debug("ignoring unparsable venue message", "error", err)
		return
	}

	side := sideFromString(env.Side)

	switch env.EventType {
	case "best_bid_ask":
		bid, okBid := parseFloat(env.BestBid)
		ask, okAsk := parseFloat(env.BestAsk)
		if !okBid || !okAsk {
			return
		}
		evt := types.VenueQuote{TsMs: env.TsMs, Side: side, BestBid: bid, BestAsk: ask}
		select {
		case f.quoteCh <- evt:
		default:
			f.logger.Warn("venue quote channel full, dropping event")
		}

	case "book":
		evt := types.VenueBook{
			TsMs: env.TsMs,
			Side: side,
			Bids: parseLevels(env.Bids),
			Asks: parseLevels(env.Asks),
		}
		select {
		case f.bookCh <- evt:
		default:
			f.logger.Warn("venue book channel full, dropping event")
		}

	default:
		f.logger.Debug("ignoring venue event", "type", env.EventType)
	}
}

func sideFromString(s string) types.Side {
	switch s {
	case "up", "UP", "yes", "YES":
		return types.Up
	case "down", "DOWN", "no", "NO":
		return types.Down
	default:
		return types.SideUnknown
	}
}

func runWithBackoff(ctx context.Context, logger *slog.Logger, connect func(context.Context) error) error {
	backoff := time.Second
	for {
		err := connect(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("feed disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

func pingLoop(ctx context.Context, mu *sync.Mutex, conn *websocket.Conn, logger *slog.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			mu.Unlock()
			if err != nil {
				logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func closeConn(mu *sync.Mutex, conn **websocket.Conn) {
	mu.Lock()
	defer mu.Unlock()
	if *conn != nil {
		(*conn).Close()
		*conn = nil
	}
}

func parsePriceQty(priceStr, qtyStr string) (float64, float64, bool) {
	price, okP := parseFloat(priceStr)
	qty, okQ := parseFloat(qtyStr)
	return price, qty, okP && okQ
}

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	var f float64
	_, err := fmt.Sscanf(s, "%f", &f)
	return f, err == nil
}

func parseLevels(raw []venueLevel) []types.VenueBookLevel {
	levels := make([]types.VenueBookLevel, 0, len(raw))
	for _, l := range raw {
		price, okP := parseFloat(l.Price)
		size, okS := parseFloat(l.Size)
		if okP && okS {
			levels = append(levels, types.VenueBookLevel{Price: price, Size: size})
		}
	}
	return levels
}
