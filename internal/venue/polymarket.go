package venue

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/agentrader/internal/crypto"
	"github.com/alanyoungcy/agentrader/internal/domain"
	"github.com/alanyoungcy/agentrader/internal/platform/polymarket"
)

// sellDepthCap limits a sell to 80% of visible bid depth. Fill-or-kill
// sells sized at or above the full book are rejected outright by the
// venue rather than partially filled.
var sellDepthCap = decimal.RequireFromString("0.8")

// ClobAPI is the slice of the CLOB client the executor needs.
type ClobAPI interface {
	PostOrder(ctx context.Context, order polymarket.SignedOrder) (polymarket.APIOrderResult, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetOrder(ctx context.Context, orderID string) (polymarket.APIOrder, error)
	GetOrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error)
}

// OrderSigner signs EIP-712 order payloads. *crypto.Signer satisfies it.
type OrderSigner interface {
	SignOrder(order crypto.OrderPayload) (string, error)
	AddressHex() string
}

// PolymarketExecutor trades against the CLOB. Orders are signed off-chain
// and may rest on the book; settlement is asynchronous and confirmed by
// the settlement monitor, not here.
type PolymarketExecutor struct {
	api     ClobAPI
	signer  OrderSigner
	sigType int
	logger  *slog.Logger
}

// NewPolymarketExecutor creates the CLOB executor.
func NewPolymarketExecutor(api ClobAPI, signer OrderSigner, logger *slog.Logger) *PolymarketExecutor {
	return &PolymarketExecutor{
		api:    api,
		signer: signer,
		logger: logger.With(slog.String("component", "polymarket_executor")),
	}
}

// WithSignatureType overrides the order signature type (0 = EOA, the
// default; proxy wallet deployments use 1 or 2).
func (e *PolymarketExecutor) WithSignatureType(t int) *PolymarketExecutor {
	e.sigType = t
	return e
}

// Execute signs and submits one order. The venue settles whole units
// only, so sell sizes round down and buy sizes round up; a sell is
// additionally capped at 80% of visible bid depth. No internal retry.
func (e *PolymarketExecutor) Execute(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	price, qty, err := e.priceAndSize(ctx, req)
	if err != nil {
		return failedResult(domain.PolymarketOrderPrefix, domain.VenuePolymarket, err), err
	}

	signed, err := e.buildSignedOrder(req, price, qty)
	if err != nil {
		err = fmt.Errorf("polymarket executor: %w: %v", domain.ErrSigningFailed, err)
		return failedResult(domain.PolymarketOrderPrefix, domain.VenuePolymarket, err), err
	}

	apiResult, err := e.api.PostOrder(ctx, signed)
	if err != nil {
		err = fmt.Errorf("polymarket executor: submit %s %s: %w", req.Side, req.Instrument, err)
		return failedResult(domain.PolymarketOrderPrefix+apiResult.OrderID, domain.VenuePolymarket, err), err
	}

	orderID := domain.PolymarketOrderPrefix + apiResult.OrderID
	result := domain.OrderResult{
		OrderID:  orderID,
		Venue:    domain.VenuePolymarket,
		Success:  true,
		AvgPrice: price,
	}

	switch strings.ToLower(apiResult.Status) {
	case "matched":
		result.Status = domain.OrderStatusFilled
		result.FilledQuantity = qty
		result.TotalCost = qty.Mul(price)
	default:
		// Resting or delayed; fills are confirmed by polling later.
		result.Status = domain.OrderStatusOpen
		result.FilledQuantity = decimal.Zero
		result.TotalCost = decimal.Zero
	}

	return result, nil
}

// Fill reports the current fill view of a previously submitted order for
// the settlement monitor.
func (e *PolymarketExecutor) Fill(ctx context.Context, orderID string) (domain.OrderResult, error) {
	venueID := strings.TrimPrefix(orderID, domain.PolymarketOrderPrefix)
	apiOrder, err := e.api.GetOrder(ctx, venueID)
	if err != nil {
		return domain.OrderResult{}, err
	}
	return apiOrder.ToFill(orderID), nil
}

// Cancel cancels a resting order. Filled orders map to ErrNotCancellable.
func (e *PolymarketExecutor) Cancel(ctx context.Context, orderID string) (domain.CancelResult, error) {
	venueID := strings.TrimPrefix(orderID, domain.PolymarketOrderPrefix)
	if err := e.api.CancelOrder(ctx, venueID); err != nil {
		return domain.CancelResult{OrderID: orderID, Success: false, Message: err.Error()}, err
	}
	return domain.CancelResult{OrderID: orderID, Success: true}, nil
}

// priceAndSize resolves the execution price and the whole-unit size for
// the request, consulting the book for market orders.
func (e *PolymarketExecutor) priceAndSize(ctx context.Context, req domain.OrderRequest) (decimal.Decimal, decimal.Decimal, error) {
	if req.Kind == domain.OrderKindLimit {
		qty := roundUnits(req.Quantity, req.Side)
		if !qty.IsPositive() {
			return decimal.Zero, decimal.Zero, fmt.Errorf("polymarket executor: quantity %s rounds to zero units", req.Quantity)
		}
		return *req.LimitPrice, qty, nil
	}

	book, err := e.api.GetOrderBook(ctx, req.Instrument)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("polymarket executor: book for %s: %w", req.Instrument, err)
	}

	switch req.Side {
	case domain.OrderSideBuy:
		ask, ok := book.BestAsk()
		if !ok {
			return decimal.Zero, decimal.Zero, fmt.Errorf("polymarket executor: %s: %w: no asks", req.Instrument, domain.ErrNoLiquidity)
		}
		return ask.Price, roundUnits(req.Quantity, req.Side), nil

	case domain.OrderSideSell:
		bid, ok := book.BestBid()
		if !ok {
			return decimal.Zero, decimal.Zero, fmt.Errorf("polymarket executor: %s: %w: no bids", req.Instrument, domain.ErrNoLiquidity)
		}
		qty := req.Quantity
		if maxSize := book.BidDepth().Mul(sellDepthCap); qty.GreaterThan(maxSize) {
			e.logger.Debug("capping sell at bid depth",
				slog.String("requested", qty.String()),
				slog.String("capped", maxSize.String()))
			qty = maxSize
		}
		qty = roundUnits(qty, req.Side)
		if !qty.IsPositive() {
			return decimal.Zero, decimal.Zero, fmt.Errorf("polymarket executor: %s: %w: bid depth too thin", req.Instrument, domain.ErrNoLiquidity)
		}
		return bid.Price, qty, nil

	default:
		return decimal.Zero, decimal.Zero, fmt.Errorf("polymarket executor: unsupported side %q", req.Side)
	}
}

// buildSignedOrder converts the canonical request into native integer
// base units, signs the EIP-712 payload, and assembles the wire order.
// Raw base-unit amounts never leave this function.
func (e *PolymarketExecutor) buildSignedOrder(req domain.OrderRequest, price, qty decimal.Decimal) (polymarket.SignedOrder, error) {
	tokenUnits := toBaseUnits(qty)
	usdcUnits := toBaseUnits(qty.Mul(price))

	var side string
	var sideCode int
	var makerAmount, takerAmount *big.Int
	if req.Side == domain.OrderSideBuy {
		side, sideCode = "BUY", 0
		makerAmount, takerAmount = usdcUnits, tokenUnits
	} else {
		side, sideCode = "SELL", 1
		makerAmount, takerAmount = tokenUnits, usdcUnits
	}

	tif := req.TIF
	if tif == "" {
		if req.Kind == domain.OrderKindMarket {
			tif = domain.TIFFOK
		} else {
			tif = domain.TIFGTC
		}
	}

	wallet := e.signer.AddressHex()
	salt := fmt.Sprintf("%d", time.Now().UnixNano())

	sig, err := e.signer.SignOrder(crypto.OrderPayload{
		Salt:          salt,
		Maker:         wallet,
		Signer:        wallet,
		Taker:         "0x0000000000000000000000000000000000000000",
		TokenID:       req.Instrument,
		MakerAmount:   makerAmount.String(),
		TakerAmount:   takerAmount.String(),
		Expiration:    "0",
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          sideCode,
		SignatureType: e.sigType,
	})
	if err != nil {
		return polymarket.SignedOrder{}, err
	}

	return polymarket.SignedOrder{
		Salt:          salt,
		TokenID:       req.Instrument,
		MakerAmount:   makerAmount,
		TakerAmount:   takerAmount,
		Side:          side,
		TIF:           string(tif),
		Expiration:    "0",
		Wallet:        wallet,
		Signature:     sig,
		SignatureType: e.sigType,
	}, nil
}

// roundUnits snaps a size to whole units: buys round up, sells round
// down.
func roundUnits(qty decimal.Decimal, side domain.OrderSide) decimal.Decimal {
	if side == domain.OrderSideBuy {
		return qty.Ceil()
	}
	return qty.Floor()
}

// toBaseUnits converts a canonical decimal amount to 6-decimal integer
// base units, truncating dust.
func toBaseUnits(amount decimal.Decimal) *big.Int {
	return amount.Shift(6).Truncate(0).BigInt()
}
