// Package telemetry is the diagnostic sink the engine reports every
// signal, dispatch, rejection, fill, and periodic snapshot to. The
// internals of what consumes this stream are out of scope (spec.md §1/§2
// names no dashboard or alerting system), but the seam itself is in
// scope: the engine must emit structured records somewhere. Grounded on
// the teacher's slog.Logger-with-component convention, extended with
// prometheus counters via internal/metrics for the numeric series a log
// line can't aggregate cheaply.
package telemetry

import (
	"log/slog"

	"binaryedge/internal/metrics"
	"binaryedge/internal/pipeline"
	"binaryedge/internal/settlement"
	"binaryedge/pkg/types"
)

// Sink reports engine activity to structured logs and prometheus.
type Sink struct {
	logger *slog.Logger
}

// New builds a telemetry sink.
func New(logger *slog.Logger) *Sink {
	return &Sink{logger: logger.With("component", "telemetry")}
}

// Signal reports one strategy evaluation that produced a candidate.
func (s *Sink) Signal(marketSlug string, sig types.Signal) {
	metrics.IncSignal(string(sig.StrategyID), sig.Side.String())
	s.logger.Info("signal emitted",
		"market", marketSlug,
		"strategy", sig.StrategyID,
		"side", sig.Side,
		"edge", sig.Edge,
		"confidence", sig.Confidence,
		"reason", sig.Reason,
	)
}

// Dispatched reports one order accepted by reconciliation and risk gating.
func (s *Sink) Dispatched(marketSlug string, d pipeline.Dispatched) {
	metrics.IncOrder(string(d.Order.StrategyID), d.Order.Side.String())
	s.logger.Info("order dispatched",
		"market", marketSlug,
		"correlation_id", d.CorrelationID,
		"strategy", d.Order.StrategyID,
		"side", d.Order.Side,
		"price", d.Order.Price,
		"size_usd", d.Order.SizeUSD,
		"order_type", d.Order.OrderType,
	)
}

// Rejected reports one signal that never became an order.
func (s *Sink) Rejected(marketSlug string, r pipeline.Rejected) {
	metrics.IncRiskRejection(r.Reason, string(r.Signal.StrategyID))
	s.logger.Warn("signal rejected",
		"market", marketSlug,
		"correlation_id", r.CorrelationID,
		"strategy", r.Signal.StrategyID,
		"side", r.Signal.Side,
		"reason", r.Reason,
	)
}

// Fill reports one execution landing.
func (s *Sink) Fill(marketSlug string, f types.Fill) {
	s.logger.Info("fill recorded",
		"market", marketSlug,
		"strategy", f.StrategyID,
		"side", f.Side,
		"price", f.Price,
		"size_shares", f.SizeShares,
	)
}

// Settlement reports the final PnL report for one market.
func (s *Sink) Settlement(marketSlug string, report settlement.Report) {
	metrics.SetMarketPnL(marketSlug, mustFloat(report.MarketPnL))
	s.logger.Info("market settled",
		"market", marketSlug,
		"outcome", report.Outcome,
		"pnl", report.MarketPnL.String(),
		"fill_count", report.FillCount,
	)
}

// Snapshot is the periodic diagnostic record of spec.md §4.7.6:
// (time_left, sigma, z, distance, dist_frac, regime(dominant_frac/total),
// house_side, per-strategy gate reason). Per-strategy gate-reject counts
// are reported continuously via Rejected rather than batched into this
// struct; everything else lands here once per tick.
type Snapshot struct {
	MarketSlug         string
	NowMs              int64
	TimeLeftMs         int64
	SEff               float64
	Strike             float64
	Sigma              float64
	TauEffSecs         float64
	PFairUp            float64
	Z                  float64
	Distance           float64
	DistFrac           float64
	RegimeDominantFrac float64
	HouseSide          types.Side
	TotalExposure      float64
	FeedStalenessMs    int64
}

// Diagnostic reports one periodic snapshot.
func (s *Sink) Diagnostic(snap Snapshot) {
	metrics.SetSigma(snap.MarketSlug, snap.Sigma)
	metrics.SetZ(snap.MarketSlug, snap.Z)
	metrics.SetDistance(snap.MarketSlug, snap.Distance)
	metrics.SetHouseSide(snap.MarketSlug, sideToGaugeValue(snap.HouseSide))
	metrics.SetTotalExposure(snap.TotalExposure)
	metrics.SetFeedStaleness(float64(snap.FeedStalenessMs))
	s.logger.Debug("diagnostic snapshot",
		"market", snap.MarketSlug,
		"time_left_ms", snap.TimeLeftMs,
		"s_eff", snap.SEff,
		"strike", snap.Strike,
		"sigma", snap.Sigma,
		"tau_eff_s", snap.TauEffSecs,
		"p_fair_up", snap.PFairUp,
		"z", snap.Z,
		"distance", snap.Distance,
		"dist_frac", snap.DistFrac,
		"regime_dominant_frac", snap.RegimeDominantFrac,
		"house_side", snap.HouseSide,
		"total_exposure_usd", snap.TotalExposure,
	)
}

func mustFloat(d interface{ Float64() (float64, bool) }) float64 {
	f, _ := d.Float64()
	return f
}

// sideToGaugeValue encodes house_side as a numeric gauge: Up=1, Down=-1,
// SideUnknown=0 (no house side locked yet).
func sideToGaugeValue(side types.Side) float64 {
	switch side {
	case types.Up:
		return 1
	case types.Down:
		return -1
	default:
		return 0
	}
}
