// Package ledger persists realized PnL counters and the fill log to
// sqlite, so the daily/weekly loss halts of spec.md §4.6 survive a
// process restart. Grounded on the teacher's internal/store atomic
// JSON-file position persistence, generalized to a real embedded database
// since the halt gates need date-bucketed sums a flat file can't give
// cheaply (spec.md §4.6: "daily" and "weekly" are UTC-calendar buckets).
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"binaryedge/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS fills (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	correlation_id TEXT NOT NULL,
	market_slug TEXT NOT NULL,
	strategy_id TEXT NOT NULL,
	side INTEGER NOT NULL,
	price REAL NOT NULL,
	size_shares REAL NOT NULL,
	timestamp_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS settlements (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	market_slug TEXT NOT NULL UNIQUE,
	outcome INTEGER NOT NULL,
	market_pnl REAL NOT NULL,
	settled_at_ms INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_settlements_settled_at ON settlements(settled_at_ms);
`

// Ledger is a sqlite-backed store for fills and settlement PnL.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at path and ensures
// the schema exists.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply ledger schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// RecordFill appends one fill row, tagged with its correlation ID and
// owning market.
func (l *Ledger) RecordFill(correlationID, marketSlug string, f types.Fill) error {
	_, err := l.db.Exec(
		`INSERT INTO fills (correlation_id, market_slug, strategy_id, side, price, size_shares, timestamp_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		correlationID, marketSlug, string(f.StrategyID), int(f.Side), f.Price, f.SizeShares, f.TimestampMs,
	)
	if err != nil {
		return fmt.Errorf("record fill: %w", err)
	}
	return nil
}

// RecordSettlement persists one market's final PnL, keyed by slug so a
// restart-time replay never double counts the same market.
func (l *Ledger) RecordSettlement(marketSlug string, outcome types.Outcome, marketPnL float64, settledAt time.Time) error {
	_, err := l.db.Exec(
		`INSERT INTO settlements (market_slug, outcome, market_pnl, settled_at_ms) VALUES (?, ?, ?, ?)
		 ON CONFLICT(market_slug) DO UPDATE SET outcome=excluded.outcome, market_pnl=excluded.market_pnl, settled_at_ms=excluded.settled_at_ms`,
		marketSlug, int(outcome), marketPnL, settledAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record settlement: %w", err)
	}
	return nil
}

// PnLSince sums settlement PnL for every market settled at or after since,
// used to rehydrate the risk manager's daily/weekly loss counters on
// startup (spec.md §4.6).
func (l *Ledger) PnLSince(since time.Time) (float64, error) {
	var total sql.NullFloat64
	err := l.db.QueryRow(
		`SELECT SUM(market_pnl) FROM settlements WHERE settled_at_ms >= ?`,
		since.UnixMilli(),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum settlement pnl: %w", err)
	}
	return total.Float64, nil
}
