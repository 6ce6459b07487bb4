package venue

import (
	"context"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/agentrader/internal/domain"
)

// recordingExecutor counts Execute calls so tests can assert no network
// activity happened for rejected requests.
type recordingExecutor struct {
	executeCalls int
	cancelCalls  int
	result       domain.OrderResult
	cancelResult domain.CancelResult
	err          error
}

func (f *recordingExecutor) Execute(_ context.Context, _ domain.OrderRequest) (domain.OrderResult, error) {
	f.executeCalls++
	return f.result, f.err
}

func (f *recordingExecutor) Cancel(_ context.Context, orderID string) (domain.CancelResult, error) {
	f.cancelCalls++
	res := f.cancelResult
	res.OrderID = orderID
	return res, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func marketBuy(ven domain.Venue) domain.OrderRequest {
	return domain.OrderRequest{
		Venue:      ven,
		Instrument: "will-it-rain-2026",
		Side:       domain.OrderSideBuy,
		Outcome:    domain.OutcomeYes,
		Kind:       domain.OrderKindMarket,
		Quantity:   decimal.NewFromInt(10),
	}
}

func TestPlaceOrderRejectsBeforeDispatch(t *testing.T) {
	half := decimal.RequireFromString("0.5")

	tests := []struct {
		name   string
		mutate func(*domain.OrderRequest)
	}{
		{"limit without price", func(r *domain.OrderRequest) {
			r.Venue = domain.VenuePolymarket
			r.Kind = domain.OrderKindLimit
		}},
		{"market with price", func(r *domain.OrderRequest) {
			r.LimitPrice = &half
		}},
		{"limit on amm venue", func(r *domain.OrderRequest) {
			r.Kind = domain.OrderKindLimit
			r.LimitPrice = &half
		}},
		{"zero quantity", func(r *domain.OrderRequest) {
			r.Quantity = decimal.Zero
		}},
		{"negative quantity", func(r *domain.OrderRequest) {
			r.Quantity = decimal.NewFromInt(-1)
		}},
		{"notional sell", func(r *domain.OrderRequest) {
			r.Side = domain.OrderSideSell
			r.Notional = decimal.NewFromInt(5)
		}},
		{"unknown venue", func(r *domain.OrderRequest) {
			r.Venue = "kalshi"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lmtl := &recordingExecutor{}
			poly := &recordingExecutor{}
			router := NewRouter(lmtl, poly, discardLogger())

			req := marketBuy(domain.VenueLimitless)
			tt.mutate(&req)

			_, err := router.PlaceOrder(context.Background(), req)
			require.Error(t, err)
			if req.Venue == domain.VenueLimitless || req.Venue == domain.VenuePolymarket {
				assert.True(t, domain.IsValidation(err), "want validation error, got %v", err)
			}
			assert.Zero(t, lmtl.executeCalls, "executor must not be reached")
			assert.Zero(t, poly.executeCalls, "executor must not be reached")
		})
	}
}

func TestPlaceOrderDispatchesByVenue(t *testing.T) {
	lmtl := &recordingExecutor{result: domain.OrderResult{OrderID: "lmtl-1", Status: domain.OrderStatusFilled, Success: true}}
	poly := &recordingExecutor{result: domain.OrderResult{OrderID: "poly-1", Status: domain.OrderStatusOpen, Success: true}}
	router := NewRouter(lmtl, poly, discardLogger())

	res, err := router.PlaceOrder(context.Background(), marketBuy(domain.VenueLimitless))
	require.NoError(t, err)
	assert.Equal(t, "lmtl-1", res.OrderID)
	assert.Equal(t, 1, lmtl.executeCalls)
	assert.Zero(t, poly.executeCalls)

	res, err = router.PlaceOrder(context.Background(), marketBuy(domain.VenuePolymarket))
	require.NoError(t, err)
	assert.Equal(t, "poly-1", res.OrderID)
	assert.Equal(t, 1, poly.executeCalls)
}

func TestCancelOrderRoutesByPrefix(t *testing.T) {
	lmtl := NewLimitlessExecutor(nil, discardLogger())
	poly := &recordingExecutor{cancelResult: domain.CancelResult{Success: true}}
	router := NewRouter(lmtl, poly, discardLogger())

	res, err := router.CancelOrder(context.Background(), "poly-abc123")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, poly.cancelCalls)

	// AMM-prefixed ids are always semantically not cancellable.
	res, err = router.CancelOrder(context.Background(), "lmtl-abc123")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotCancellable)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "cannot be cancelled")

	_, err = router.CancelOrder(context.Background(), "mystery-id")
	require.Error(t, err)
}
