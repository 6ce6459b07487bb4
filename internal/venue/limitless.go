package venue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/agentrader/internal/domain"
	"github.com/alanyoungcy/agentrader/internal/platform/limitless"
)

// fairValueEstimate is the placeholder price used to size a
// quantity-denominated market buy on the AMM. True price discovery only
// happens at execution, so this is a funding estimate that can under- or
// over-spend; the realized quantity and price are always taken from the
// settlement receipt, never from here.
var fairValueEstimate = decimal.RequireFromString("0.5")

// LimitlessAPI is the slice of the Limitless client the executor needs.
type LimitlessAPI interface {
	GetMarket(ctx context.Context, slug string) (limitless.APIMarket, error)
	Buy(ctx context.Context, slug string, outcome domain.Outcome, collateral decimal.Decimal, slippageBps int) (limitless.APITradeReceipt, error)
	Sell(ctx context.Context, slug string, outcome domain.Outcome, shares decimal.Decimal, slippageBps int) (limitless.APITradeReceipt, error)
}

// LimitlessExecutor trades against the Limitless AMM. Every accepted
// trade is already settled when the API responds, so results are always
// terminal and cancellation is structurally impossible.
type LimitlessExecutor struct {
	api    LimitlessAPI
	logger *slog.Logger
}

// NewLimitlessExecutor creates the AMM executor.
func NewLimitlessExecutor(api LimitlessAPI, logger *slog.Logger) *LimitlessExecutor {
	return &LimitlessExecutor{
		api:    api,
		logger: logger.With(slog.String("component", "limitless_executor")),
	}
}

// Execute submits one trade to the AMM. No internal retry: the API call
// either settled or it did not, and a resubmission would be a second
// trade.
func (e *LimitlessExecutor) Execute(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	orderID := domain.LimitlessOrderPrefix + uuid.NewString()

	market, err := e.api.GetMarket(ctx, req.Instrument)
	if err != nil {
		return failedResult(orderID, domain.VenueLimitless, err), err
	}
	if market.Closed || market.Expired {
		err := fmt.Errorf("limitless executor: market %s: %w: market closed", req.Instrument, domain.ErrVenueRejected)
		return failedResult(orderID, domain.VenueLimitless, err), err
	}

	var receipt limitless.APITradeReceipt
	switch req.Side {
	case domain.OrderSideBuy:
		collateral := req.Notional
		if !collateral.IsPositive() {
			collateral = req.Quantity.Mul(fairValueEstimate)
			e.logger.Debug("estimated funding from quantity",
				slog.String("quantity", req.Quantity.String()),
				slog.String("collateral", collateral.String()))
		}
		receipt, err = e.api.Buy(ctx, req.Instrument, req.Outcome, collateral, req.SlippageBps)
	case domain.OrderSideSell:
		receipt, err = e.api.Sell(ctx, req.Instrument, req.Outcome, req.Quantity, req.SlippageBps)
	default:
		err = fmt.Errorf("limitless executor: unsupported side %q", req.Side)
	}
	if err != nil {
		err = fmt.Errorf("limitless executor: %s %s: %w", req.Side, req.Instrument, err)
		return failedResult(orderID, domain.VenueLimitless, err), err
	}

	result, convErr := receipt.ToOrderResult(orderID)
	if convErr != nil {
		convErr = fmt.Errorf("limitless executor: malformed receipt for %s: %w", req.Instrument, convErr)
		return failedResult(orderID, domain.VenueLimitless, convErr), convErr
	}

	return result, nil
}

// Cancel always fails: AMM trades settle atomically at submission, so
// there is never a resting order to cancel.
func (e *LimitlessExecutor) Cancel(_ context.Context, orderID string) (domain.CancelResult, error) {
	return domain.CancelResult{
		OrderID: orderID,
		Success: false,
		Message: "limitless trades settle atomically and cannot be cancelled",
	}, fmt.Errorf("limitless executor: order %s: %w", orderID, domain.ErrNotCancellable)
}

func failedResult(orderID string, ven domain.Venue, err error) domain.OrderResult {
	return domain.OrderResult{
		OrderID: orderID,
		Venue:   ven,
		Status:  domain.OrderStatusFailed,
		Success: false,
		Message: err.Error(),
	}
}
