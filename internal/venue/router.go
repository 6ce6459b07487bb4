// Package venue routes venue-agnostic order and cancel requests to the
// executor for the right trading venue and owns cross-venue result
// normalization. Executors submit exactly one trade action per invocation
// and never retry internally: a resubmission can fill independently of
// whether the first attempt already settled, so retry policy belongs to
// the orchestrator, behind an explicit idempotency boundary.
package venue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/agentrader/internal/domain"
)

// Executor submits one trade action against one venue's native API and
// normalizes the result into canonical decimal units.
type Executor interface {
	Execute(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error)
	Cancel(ctx context.Context, orderID string) (domain.CancelResult, error)
}

// Router validates requests and dispatches them to the matching venue
// executor. It performs no persistence; bookkeeping is the caller's
// responsibility.
type Router struct {
	executors map[domain.Venue]Executor
	logger    *slog.Logger
}

// NewRouter builds a router over the given per-venue executors.
func NewRouter(limitless, polymarket Executor, logger *slog.Logger) *Router {
	return &Router{
		executors: map[domain.Venue]Executor{
			domain.VenueLimitless:  limitless,
			domain.VenuePolymarket: polymarket,
		},
		logger: logger.With(slog.String("component", "venue_router")),
	}
}

// PlaceOrder validates the request, dispatches it to the venue executor,
// and returns the normalized result. Structurally invalid requests are
// rejected before any network call and are never retried.
func (r *Router) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	if err := req.Validate(); err != nil {
		return domain.OrderResult{}, fmt.Errorf("venue: invalid order: %w", err)
	}

	exec, ok := r.executors[req.Venue]
	if !ok {
		return domain.OrderResult{}, fmt.Errorf("venue: no executor for %s", req.Venue)
	}

	r.logger.Info("placing order",
		slog.String("venue", string(req.Venue)),
		slog.String("instrument", req.Instrument),
		slog.String("side", string(req.Side)),
		slog.String("outcome", string(req.Outcome)),
		slog.String("quantity", req.Quantity.String()))

	result, err := exec.Execute(ctx, req)
	if err != nil {
		r.logger.Warn("order failed",
			slog.String("venue", string(req.Venue)),
			slog.String("instrument", req.Instrument),
			slog.Any("error", err))
		return result, err
	}

	r.logger.Info("order placed",
		slog.String("order_id", result.OrderID),
		slog.String("status", string(result.Status)),
		slog.String("filled", result.FilledQuantity.String()),
		slog.String("avg_price", result.AvgPrice.String()))
	return result, nil
}

// CancelOrder routes a cancel by the identifier's venue prefix, with no
// lookup. Identifiers for the immediate-settlement venue always come back
// not cancellable, since those trades execute atomically at submission.
func (r *Router) CancelOrder(ctx context.Context, orderID string) (domain.CancelResult, error) {
	ven, ok := domain.VenueForOrderID(orderID)
	if !ok {
		return domain.CancelResult{OrderID: orderID},
			fmt.Errorf("venue: order id %q carries no known venue prefix", orderID)
	}

	exec, ok := r.executors[ven]
	if !ok {
		return domain.CancelResult{OrderID: orderID}, fmt.Errorf("venue: no executor for %s", ven)
	}

	return exec.Cancel(ctx, orderID)
}
