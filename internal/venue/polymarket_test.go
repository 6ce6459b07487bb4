package venue

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/agentrader/internal/crypto"
	"github.com/alanyoungcy/agentrader/internal/domain"
	"github.com/alanyoungcy/agentrader/internal/platform/polymarket"
)

type fakeClob struct {
	book domain.OrderBook

	postCalls int
	lastOrder polymarket.SignedOrder
	result    polymarket.APIOrderResult
	postErr   error

	cancelled []string
	cancelErr error
}

func (f *fakeClob) PostOrder(_ context.Context, order polymarket.SignedOrder) (polymarket.APIOrderResult, error) {
	f.postCalls++
	f.lastOrder = order
	return f.result, f.postErr
}

func (f *fakeClob) CancelOrder(_ context.Context, orderID string) error {
	f.cancelled = append(f.cancelled, orderID)
	return f.cancelErr
}

func (f *fakeClob) GetOrder(_ context.Context, orderID string) (polymarket.APIOrder, error) {
	return polymarket.APIOrder{
		ID:           orderID,
		Status:       "MATCHED",
		OriginalSize: "10",
		SizeMatched:  "10",
		Price:        "0.40",
	}, nil
}

func (f *fakeClob) GetOrderBook(_ context.Context, _ string) (domain.OrderBook, error) {
	return f.book, nil
}

type fakeSigner struct{}

func (fakeSigner) SignOrder(_ crypto.OrderPayload) (string, error) { return "0xsigned", nil }
func (fakeSigner) AddressHex() string                              { return "0x96216849c49358B10257cb55b28eA603c874b05E" }

func level(price, size string) domain.BookLevel {
	return domain.BookLevel{
		Price: decimal.RequireFromString(price),
		Size:  decimal.RequireFromString(size),
	}
}

func matchedResult(id string) polymarket.APIOrderResult {
	return polymarket.APIOrderResult{Success: true, Status: "matched", OrderID: id}
}

func TestPolymarketMarketBuyAgainstBook(t *testing.T) {
	clob := &fakeClob{
		book:   domain.OrderBook{Asks: []domain.BookLevel{level("0.40", "50")}},
		result: matchedResult("0xorder1"),
	}
	exec := NewPolymarketExecutor(clob, fakeSigner{}, discardLogger())

	res, err := exec.Execute(context.Background(), marketBuy(domain.VenuePolymarket))
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, domain.OrderStatusFilled, res.Status)
	assert.Equal(t, "poly-0xorder1", res.OrderID)
	assert.True(t, res.FilledQuantity.Equal(decimal.NewFromInt(10)), "filled %s", res.FilledQuantity)
	assert.True(t, res.AvgPrice.Equal(decimal.RequireFromString("0.40")), "avg %s", res.AvgPrice)
	assert.True(t, res.TotalCost.Equal(decimal.RequireFromString("4.00")), "cost %s", res.TotalCost)

	// Wire order is in 6-decimal base units: 4 USDC for 10 tokens.
	require.Equal(t, 1, clob.postCalls)
	assert.Equal(t, "BUY", clob.lastOrder.Side)
	assert.Equal(t, "FOK", clob.lastOrder.TIF)
	assert.Equal(t, int64(4_000_000), clob.lastOrder.MakerAmount.Int64())
	assert.Equal(t, int64(10_000_000), clob.lastOrder.TakerAmount.Int64())
	assert.Equal(t, "0xsigned", clob.lastOrder.Signature)
}

func TestPolymarketBuyRoundsUpToWholeUnits(t *testing.T) {
	clob := &fakeClob{
		book:   domain.OrderBook{Asks: []domain.BookLevel{level("0.25", "100")}},
		result: matchedResult("0xorder2"),
	}
	exec := NewPolymarketExecutor(clob, fakeSigner{}, discardLogger())

	req := marketBuy(domain.VenuePolymarket)
	req.Quantity = decimal.RequireFromString("9.2")

	res, err := exec.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.FilledQuantity.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, int64(10_000_000), clob.lastOrder.TakerAmount.Int64())
}

func TestPolymarketSellCapsAtBidDepth(t *testing.T) {
	clob := &fakeClob{
		book: domain.OrderBook{Bids: []domain.BookLevel{
			level("0.55", "5"),
			level("0.54", "5"),
		}},
		result: matchedResult("0xorder3"),
	}
	exec := NewPolymarketExecutor(clob, fakeSigner{}, discardLogger())

	req := marketBuy(domain.VenuePolymarket)
	req.Side = domain.OrderSideSell
	req.Quantity = decimal.NewFromInt(20)

	res, err := exec.Execute(context.Background(), req)
	require.NoError(t, err)

	// Depth 10, 80% cap gives 8; sells round down.
	assert.True(t, res.FilledQuantity.Equal(decimal.NewFromInt(8)), "filled %s", res.FilledQuantity)
	assert.True(t, res.AvgPrice.Equal(decimal.RequireFromString("0.55")))
	assert.Equal(t, "SELL", clob.lastOrder.Side)
	assert.Equal(t, int64(8_000_000), clob.lastOrder.MakerAmount.Int64())
}

func TestPolymarketSellRoundsDown(t *testing.T) {
	clob := &fakeClob{
		book:   domain.OrderBook{Bids: []domain.BookLevel{level("0.50", "100")}},
		result: matchedResult("0xorder4"),
	}
	exec := NewPolymarketExecutor(clob, fakeSigner{}, discardLogger())

	req := marketBuy(domain.VenuePolymarket)
	req.Side = domain.OrderSideSell
	req.Quantity = decimal.RequireFromString("9.7")

	res, err := exec.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.FilledQuantity.Equal(decimal.NewFromInt(9)))
}

func TestPolymarketBuyWithEmptyBook(t *testing.T) {
	clob := &fakeClob{book: domain.OrderBook{}}
	exec := NewPolymarketExecutor(clob, fakeSigner{}, discardLogger())

	res, err := exec.Execute(context.Background(), marketBuy(domain.VenuePolymarket))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoLiquidity)
	assert.Equal(t, domain.OrderStatusFailed, res.Status)
	assert.Zero(t, clob.postCalls)
}

func TestPolymarketLimitOrderRestsOpen(t *testing.T) {
	clob := &fakeClob{
		result: polymarket.APIOrderResult{Success: true, Status: "live", OrderID: "0xorder5"},
	}
	exec := NewPolymarketExecutor(clob, fakeSigner{}, discardLogger())

	limit := decimal.RequireFromString("0.35")
	req := marketBuy(domain.VenuePolymarket)
	req.Kind = domain.OrderKindLimit
	req.LimitPrice = &limit

	res, err := exec.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusOpen, res.Status)
	assert.True(t, res.FilledQuantity.IsZero(), "resting orders have no fill yet")
	assert.True(t, res.AvgPrice.Equal(limit))
	assert.Equal(t, "GTC", clob.lastOrder.TIF)
}

func TestPolymarketCancelStripsPrefix(t *testing.T) {
	clob := &fakeClob{}
	exec := NewPolymarketExecutor(clob, fakeSigner{}, discardLogger())

	res, err := exec.Cancel(context.Background(), "poly-0xorder1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, clob.cancelled, 1)
	assert.Equal(t, "0xorder1", clob.cancelled[0])
}

func TestPolymarketFillView(t *testing.T) {
	clob := &fakeClob{}
	exec := NewPolymarketExecutor(clob, fakeSigner{}, discardLogger())

	res, err := exec.Fill(context.Background(), "poly-0xorder1")
	require.NoError(t, err)
	assert.Equal(t, "poly-0xorder1", res.OrderID)
	assert.Equal(t, domain.OrderStatusFilled, res.Status)
	assert.True(t, res.FilledQuantity.Equal(decimal.NewFromInt(10)))
	// filled × avg price matches reported cost.
	assert.True(t, res.TotalCost.Equal(res.FilledQuantity.Mul(res.AvgPrice)))
}

func TestPolymarketCancelFailure(t *testing.T) {
	clob := &fakeClob{cancelErr: domain.ErrNotCancellable}
	exec := NewPolymarketExecutor(clob, fakeSigner{}, discardLogger())

	res, err := exec.Cancel(context.Background(), "poly-0xorder1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotCancellable)
	assert.False(t, res.Success)
}
