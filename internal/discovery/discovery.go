// Package discovery resolves the market catalog and the open-price strike
// for each upcoming market window (spec.md §4.7.1). Grounded on the
// teacher's internal/market/scanner.go poll-and-filter shape, generalized
// from "rank many markets by opportunity score" to "find the next N market
// windows for one asset/interval series and fetch each one's strike."
// golang.org/x/sync/singleflight coalesces concurrent strike lookups for
// the same market slug into one REST round trip; Run itself resolves
// catalog entries one at a time.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"

	"binaryedge/internal/config"
	"binaryedge/internal/errs"
	"binaryedge/pkg/types"
)

// gammaMarket is the subset of the Gamma API market JSON discovery needs to
// resolve one binary-outcome market window.
type gammaMarket struct {
	Slug            string `json:"slug"`
	ConditionID     string `json:"conditionId"`
	Active          bool   `json:"active"`
	Closed          bool   `json:"closed"`
	AcceptingOrders bool   `json:"acceptingOrders"`
	EndDateISO      string `json:"endDate"`
	ClobTokenIds    string `json:"clobTokenIds"`
	NegRisk         bool   `json:"negRisk"`
	OrderPriceMinTickSize float64 `json:"orderPriceMinTickSize"`
}

// candleOpen is the reference-exchange candle-open response used to
// resolve a market's strike (spec.md §4.7.1: "the strike is the open price
// of the 1-minute candle at market start").
type candleOpen struct {
	Open string `json:"open"`
}

// Discoverer polls the market catalog for the configured asset/interval
// series and resolves each window's strike on demand.
type Discoverer struct {
	gammaClient  *resty.Client
	oracleClient *resty.Client
	cfg          config.MarketConfig
	logger       *slog.Logger

	group singleflight.Group

	resultCh chan types.MarketContext
}

// NewDiscoverer builds a discoverer pointed at the configured Gamma and
// reference-exchange REST endpoints.
func NewDiscoverer(cfg config.MarketConfig, logger *slog.Logger) *Discoverer {
	gammaClient := resty.New().
		SetBaseURL(cfg.GammaBaseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})

	oracleClient := resty.New().
		SetBaseURL(cfg.OracleRESTURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &Discoverer{
		gammaClient:  gammaClient,
		oracleClient: oracleClient,
		cfg:          cfg,
		logger:       logger.With("component", "discovery"),
		resultCh:     make(chan types.MarketContext, 4),
	}
}

// Markets returns the channel of fully-resolved market contexts (catalog
// entry plus strike), ready for the engine to schedule.
func (d *Discoverer) Markets() <-chan types.MarketContext { return d.resultCh }

// Run polls the catalog for the next upcoming window every pollInterval
// until ctx is cancelled, emitting each newly discovered market once.
func (d *Discoverer) Run(ctx context.Context, pollInterval time.Duration) {
	seen := make(map[string]bool)

	poll := func() {
		markets, err := d.fetchUpcoming(ctx)
		if err != nil {
			d.logger.Error("discovery poll failed", "error", err)
			return
		}
		for _, m := range markets {
			if seen[m.Slug] {
				continue
			}
			ctxMarket, err := d.resolve(ctx, m)
			if err != nil {
				d.logger.Warn("failed to resolve market strike", "slug", m.Slug, "error", err)
				continue
			}
			seen[m.Slug] = true
			select {
			case d.resultCh <- ctxMarket:
			case <-ctx.Done():
				return
			}
		}
	}

	poll()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poll()
		}
	}
}

// fetchUpcoming lists active, order-book-enabled markets for the
// configured asset/interval series.
func (d *Discoverer) fetchUpcoming(ctx context.Context) ([]gammaMarket, error) {
	var page []gammaMarket
	resp, err := d.gammaClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"active":  "true",
			"closed":  "false",
			"slug_contains": fmt.Sprintf("%s-%s", d.cfg.Asset, d.cfg.Interval),
		}).
		SetResult(&page).
		Get("/markets")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrMarketDiscoveryFail, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("%w: status %d", errs.ErrMarketDiscoveryFail, resp.StatusCode())
	}

	var out []gammaMarket
	for _, m := range page {
		if m.Active && !m.Closed && m.AcceptingOrders && m.ClobTokenIds != "" {
			out = append(out, m)
		}
	}
	return out, nil
}

// resolve turns a catalog entry into a full MarketContext, fetching the
// strike via the singleflight group so concurrent callers for the same
// slug share one REST round trip.
func (d *Discoverer) resolve(ctx context.Context, m gammaMarket) (types.MarketContext, error) {
	v, err, _ := d.group.Do(m.Slug, func() (any, error) {
		return d.buildContext(ctx, m)
	})
	if err != nil {
		return types.MarketContext{}, err
	}
	return v.(types.MarketContext), nil
}

func (d *Discoverer) buildContext(ctx context.Context, m gammaMarket) (types.MarketContext, error) {
	endMs, err := parseEndMs(m.EndDateISO)
	if err != nil {
		return types.MarketContext{}, fmt.Errorf("%w: %v", errs.ErrMarketDiscoveryFail, err)
	}

	durationMs := int64(intervalToDuration(d.cfg.Interval) / time.Millisecond)
	startMs := endMs - durationMs

	strike, err := d.fetchOpenPrice(ctx, startMs)
	if err != nil {
		return types.MarketContext{}, err
	}

	upToken, downToken := splitTokenIDs(m.ClobTokenIds)
	tick := tickSizeFrom(m.OrderPriceMinTickSize)

	return types.MarketContext{
		Slug:       m.Slug,
		Strike:     strike,
		StartMs:    startMs,
		EndMs:      endMs,
		UpTokenID:  upToken,
		DownTokenID: downToken,
		TickSize:   tick,
		NegRisk:    m.NegRisk,
	}, nil
}

func (d *Discoverer) fetchOpenPrice(ctx context.Context, startMs int64) (float64, error) {
	var candle candleOpen
	resp, err := d.oracleClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":    d.cfg.Asset,
			"interval":  "1m",
			"startTime": strconv.FormatInt(startMs, 10),
			"limit":     "1",
		}).
		SetResult(&candle).
		Get("/candle")
	if err != nil {
		return 0, fmt.Errorf("fetch candle open: %w", err)
	}
	if resp.StatusCode() != 200 {
		return 0, fmt.Errorf("fetch candle open: status %d", resp.StatusCode())
	}
	open, err := strconv.ParseFloat(candle.Open, 64)
	if err != nil {
		return 0, fmt.Errorf("parse candle open %q: %w", candle.Open, err)
	}
	return open, nil
}

func parseEndMs(iso string) (int64, error) {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

func intervalToDuration(interval string) time.Duration {
	switch interval {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "1h":
		return time.Hour
	default:
		return time.Minute
	}
}

func splitTokenIDs(raw string) (string, string) {
	var ids []string
	if err := parseJSONArray(raw, &ids); err != nil || len(ids) < 2 {
		return "", ""
	}
	return ids[0], ids[1]
}

func tickSizeFrom(v float64) float64 {
	if v <= 0 {
		return 0.01
	}
	return v
}

func parseJSONArray(s string, out *[]string) error {
	return json.Unmarshal([]byte(s), out)
}
