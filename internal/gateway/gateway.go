package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"binaryedge/internal/config"
	"binaryedge/internal/errs"
	"binaryedge/pkg/types"
)

// signedOrderPayload is the wire shape the venue CLOB expects for a signed
// limit order. buildPayload fills every field except Signature and
// SignatureType, which stay at their zero values: no per-order EIP-712
// signature is computed. Amount scaling follows the venue's 6-decimal USDC
// convention.
type signedOrderPayload struct {
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Side          string `json:"side"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

type orderResponse struct {
	Success     bool    `json:"success"`
	OrderID     string  `json:"orderID"`
	Status      string  `json:"status"`
	MakingShares float64 `json:"makingAmount"`
	Price       float64 `json:"price"`
	ErrorMsg    string  `json:"errorMsg"`
}

// Gateway submits orders to the venue CLOB over HMAC-signed (L2) requests
// and reports fills and rejections back as OrderAck events.
type Gateway struct {
	http     *resty.Client
	auth     *Auth
	rl       *RateLimiter
	dryRun   bool
	logger   *slog.Logger

	ackCh chan types.OrderAck
}

// New builds a Gateway from wallet configuration. Order carries no token
// ID (that lives on MarketContext), so the engine supplies it on every
// Submit call.
func New(cfg config.WalletConfig, dryRun bool, logger *slog.Logger) (*Gateway, error) {
	auth, err := NewAuth(cfg)
	if err != nil {
		return nil, fmt.Errorf("build gateway auth: %w", err)
	}

	httpClient := resty.New().
		SetBaseURL(cfg.CLOBBaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Gateway{
		http:   httpClient,
		auth:   auth,
		rl:     NewRateLimiter(),
		dryRun: dryRun,
		logger: logger.With("component", "gateway"),
		ackCh:  make(chan types.OrderAck, 64),
	}, nil
}

// Acks returns the channel of order lifecycle outcomes the engine consumes.
func (g *Gateway) Acks() <-chan types.OrderAck { return g.ackCh }

// Submit builds and submits one order for tokenID. Passive posts carry a
// 30s expiration; every other order type is sent with expiration 0, and
// the payload names no order type. The resulting ack is delivered
// asynchronously on Acks() so the engine's hot path never blocks on a
// network round trip.
func (g *Gateway) Submit(ctx context.Context, order types.Order, tokenID string, negRisk bool) {
	go g.submitAndReport(ctx, order, tokenID, negRisk)
}

func (g *Gateway) submitAndReport(ctx context.Context, order types.Order, tokenID string, negRisk bool) {
	orderID := uuid.NewString()
	started := time.Now()

	if g.dryRun {
		g.logger.Info("DRY-RUN: would submit order", "strategy", order.StrategyID, "side", order.Side, "price", order.Price, "size_usd", order.SizeUSD)
		g.emit(types.OrderAck{
			OrderID:    orderID,
			StrategyID: order.StrategyID,
			Side:       order.Side,
			Status:     types.Filled,
			Price:      order.Price,
			SizeShares: sharesFromNotional(order.SizeUSD, order.Price),
			LatencyMs:  time.Since(started).Milliseconds(),
		})
		return
	}

	if err := g.rl.Order.Wait(ctx); err != nil {
		g.logger.Warn("order rate limit wait aborted", "error", err)
		g.emit(rejectedAck(orderID, order, started))
		return
	}

	payload := g.buildPayload(order, tokenID)
	body, err := json.Marshal(payload)
	if err != nil {
		g.logger.Error("marshal order failed", "error", err)
		g.emit(rejectedAck(orderID, order, started))
		return
	}

	headers, err := g.auth.L2Headers(http.MethodPost, "/order", string(body))
	if err != nil {
		g.logger.Error("l2 headers failed", "error", err)
		g.emit(rejectedAck(orderID, order, started))
		return
	}

	var result orderResponse
	resp, err := g.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(payload).
		SetResult(&result).
		Post("/order")
	if err != nil {
		g.logger.Warn("post order failed", "error", err)
		g.emit(rejectedAck(orderID, order, started))
		return
	}
	if resp.StatusCode() != http.StatusOK || !result.Success {
		reason := result.ErrorMsg
		if reason == "" {
			reason = fmt.Sprintf("status %d", resp.StatusCode())
		}
		g.logger.Warn("order rejected by venue", "error", &errs.OrderRejectedRemote{OrderID: orderID, Reason: reason})
		g.emit(rejectedAck(orderID, order, started))
		return
	}

	g.emit(types.OrderAck{
		OrderID:    result.OrderID,
		StrategyID: order.StrategyID,
		Side:       order.Side,
		Status:     statusFromVenue(result.Status),
		Price:      order.Price,
		SizeShares: sharesFromNotional(order.SizeUSD, order.Price),
		LatencyMs:  time.Since(started).Milliseconds(),
	})
}

func (g *Gateway) buildPayload(order types.Order, tokenID string) signedOrderPayload {
	shares := sharesFromNotional(order.SizeUSD, order.Price)
	makerAmt, takerAmt := amountsForSide(order.Side, order.Price, shares)

	expiration := "0"
	if order.OrderType == types.PassivePost {
		expiration = fmt.Sprintf("%d", time.Now().Add(30*time.Second).Unix())
	}

	return signedOrderPayload{
		Maker:       g.auth.FunderAddress().Hex(),
		Signer:      g.auth.Address().Hex(),
		Taker:       "0x0000000000000000000000000000000000000000",
		TokenID:     tokenID,
		MakerAmount: makerAmt.String(),
		TakerAmount: takerAmt.String(),
		Side:        sideToVenueString(order.Side),
		Expiration:  expiration,
		Nonce:       "0",
		FeeRateBps:  "0",
	}
}

// amountsForSide converts a human price/size pair to the venue's 6-decimal
// USDC-scaled maker/taker amounts. Buying Up or Down both pay USDC for
// shares, so the convention is identical either side for a binary market.
func amountsForSide(side types.Side, price, shares float64) (decimal.Decimal, decimal.Decimal) {
	scale := decimal.New(1, 6)
	priceD := decimal.NewFromFloat(price)
	sharesD := decimal.NewFromFloat(shares)

	cost := priceD.Mul(sharesD)
	makerAmt := cost.Mul(scale).Truncate(0)
	takerAmt := sharesD.Mul(scale).Truncate(0)
	return makerAmt, takerAmt
}

func sharesFromNotional(sizeUSD, price float64) float64 {
	if price <= 0 {
		return 0
	}
	return sizeUSD / price
}

// sideToVenueString always signs a BUY: going "Down" means buying the
// Down token, never selling the Up token.
func sideToVenueString(types.Side) string {
	return "BUY"
}

func statusFromVenue(status string) types.AckStatus {
	switch status {
	case "matched", "live":
		return types.Filled
	case "delayed":
		return types.AckUnknown
	default:
		return types.Expired
	}
}

func rejectedAck(orderID string, order types.Order, started time.Time) types.OrderAck {
	return types.OrderAck{
		OrderID:    orderID,
		StrategyID: order.StrategyID,
		Side:       order.Side,
		Status:     types.Rejected,
		LatencyMs:  time.Since(started).Milliseconds(),
	}
}

func (g *Gateway) emit(ack types.OrderAck) {
	select {
	case g.ackCh <- ack:
	default:
		g.logger.Warn("order ack channel full, dropping ack", "order_id", ack.OrderID)
	}
}
