// Package api exposes a lightweight read-only HTTP snapshot of engine
// state, adapted from the teacher's dashboard (internal/api/server.go):
// the teacher's WebSocket hub and per-client broadcast machinery are
// dropped since nothing here requires a live push channel, but the same
// "one provider interface, one JSON snapshot endpoint" shape survives.
package api

import "time"

// Snapshot is the full read-only view served at /api/snapshot.
type Snapshot struct {
	Timestamp time.Time       `json:"timestamp"`
	DryRun    bool            `json:"dry_run"`
	Markets   []MarketSnapshot `json:"markets"`
	Risk      RiskSnapshot    `json:"risk"`
}

// MarketSnapshot is one active market's diagnostic view (spec.md §4.7.6).
type MarketSnapshot struct {
	Slug                string    `json:"slug"`
	Strike              float64   `json:"strike"`
	SEff                float64   `json:"s_eff"`
	Sigma               float64   `json:"sigma"`
	TauEffSecs          float64   `json:"tau_eff_s"`
	PFairUp             float64   `json:"p_fair_up"`
	Z                   float64   `json:"z"`
	Distance            float64   `json:"distance"`
	DistFrac            float64   `json:"dist_frac"`
	RegimeDominantFrac  float64   `json:"regime_dominant_frac"`
	HouseSide           string    `json:"house_side"`
	TotalExposure       float64   `json:"total_exposure_usd"`
	EndsAt              time.Time `json:"ends_at"`
}

// RiskSnapshot mirrors internal/risk.Snapshot for the wire.
type RiskSnapshot struct {
	DailyPnL      float64 `json:"daily_pnl_usd"`
	WeeklyPnL     float64 `json:"weekly_pnl_usd"`
	TotalExposure float64 `json:"total_exposure_usd"`
	DailyHalted   bool    `json:"daily_halted"`
	WeeklyHalted  bool    `json:"weekly_halted"`
}

// Provider supplies the data the snapshot endpoint serves. The engine
// implements this from a lock-guarded snapshot cache its event loop
// refreshes; HandleSnapshot calls it at request time.
type Provider interface {
	Markets() []MarketSnapshot
	Risk() RiskSnapshot
	DryRun() bool
}
