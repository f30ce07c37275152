// Package metrics exposes prometheus gauges and counters mirroring the
// spec.md §4.7.6 diagnostic snapshot, grounded on the teacher's metrics.go
// registration shape (package-level collectors, registered once, one
// helper setter per concern).
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	signalsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "binaryedge_signals_emitted_total",
			Help: "Signals emitted by strategy evaluators.",
		},
		[]string{"strategy", "side"},
	)

	ordersDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "binaryedge_orders_dispatched_total",
			Help: "Orders dispatched after reconciliation and risk gating.",
		},
		[]string{"strategy", "side"},
	)

	riskRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "binaryedge_risk_rejections_total",
			Help: "Signals rejected by the risk gate, by rejection reason text and strategy.",
		},
		[]string{"gate", "strategy"},
	)

	marketPnL = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "binaryedge_market_pnl_usd",
			Help: "Realized PnL for the most recently settled market.",
		},
		[]string{"market"},
	)

	dailyPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "binaryedge_daily_pnl_usd",
			Help: "Running realized PnL for the current UTC day.",
		},
	)

	weeklyPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "binaryedge_weekly_pnl_usd",
			Help: "Running realized PnL for the current UTC week.",
		},
	)

	totalExposure = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "binaryedge_total_exposure_usd",
			Help: "Sum of open notional exposure across all active markets.",
		},
	)

	sigma = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "binaryedge_sigma",
			Help: "Current per-second persistent realized volatility per market.",
		},
		[]string{"market"},
	)

	z = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "binaryedge_z",
			Help: "Current drift-free signal-to-noise ratio per market.",
		},
		[]string{"market"},
	)

	distance = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "binaryedge_distance",
			Help: "Current S_eff - K per market.",
		},
		[]string{"market"},
	)

	houseSide = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "binaryedge_house_side",
			Help: "Locked house side per market: 1=Up, -1=Down, 0=unlocked.",
		},
		[]string{"market"},
	)

	oracleBasisBps = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "binaryedge_oracle_basis_bps",
			Help: "Oracle-to-venue basis adjustment applied to the effective spot, in bps.",
		},
		[]string{"market"},
	)

	feedStaleness = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "binaryedge_feed_staleness_ms",
			Help: "Milliseconds since the last inbound feed event of any kind.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		signalsEmitted, ordersDispatched, riskRejections,
		marketPnL, dailyPnL, weeklyPnL, totalExposure,
		sigma, z, distance, houseSide, oracleBasisBps, feedStaleness,
	)
}

// IncSignal records one emitted signal.
func IncSignal(strategy, side string) { signalsEmitted.WithLabelValues(strategy, side).Inc() }

// IncOrder records one dispatched order.
func IncOrder(strategy, side string) { ordersDispatched.WithLabelValues(strategy, side).Inc() }

// IncRiskRejection records one risk-gate rejection, by gate and strategy.
func IncRiskRejection(gate, strategy string) { riskRejections.WithLabelValues(gate, strategy).Inc() }

// SetMarketPnL records one market's settlement PnL.
func SetMarketPnL(market string, pnl float64) { marketPnL.WithLabelValues(market).Set(pnl) }

// SetDailyPnL updates the running daily PnL gauge.
func SetDailyPnL(pnl float64) { dailyPnL.Set(pnl) }

// SetWeeklyPnL updates the running weekly PnL gauge.
func SetWeeklyPnL(pnl float64) { weeklyPnL.Set(pnl) }

// SetTotalExposure updates the portfolio exposure gauge.
func SetTotalExposure(usd float64) { totalExposure.Set(usd) }

// SetSigma records one market's current persistent per-second sigma.
func SetSigma(market string, value float64) { sigma.WithLabelValues(market).Set(value) }

// SetZ records one market's current drift-free z-score.
func SetZ(market string, value float64) { z.WithLabelValues(market).Set(value) }

// SetDistance records one market's current S_eff - K.
func SetDistance(market string, value float64) { distance.WithLabelValues(market).Set(value) }

// SetHouseSide records one market's locked house side (1=Up, -1=Down, 0=unlocked).
func SetHouseSide(market string, value float64) { houseSide.WithLabelValues(market).Set(value) }

// SetOracleBasisBps records one market's oracle-basis adjustment.
func SetOracleBasisBps(market string, bps float64) { oracleBasisBps.WithLabelValues(market).Set(bps) }

// SetFeedStaleness updates the feed-staleness gauge.
func SetFeedStaleness(ms float64) { feedStaleness.Set(ms) }

// Server exposes the registered collectors at /metrics for a prometheus
// scrape target, grounded on the teacher's promhttp.Handler wiring
// (_examples/chidi150c-coinbase/main.go).
type Server struct {
	server *http.Server
}

// NewServer builds a metrics server bound to port.
func NewServer(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
	}
}

// Start blocks serving the /metrics endpoint until Stop shuts it down.
func (s *Server) Start() error {
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts the metrics server down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
