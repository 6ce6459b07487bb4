package venue

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/agentrader/internal/domain"
	"github.com/alanyoungcy/agentrader/internal/platform/limitless"
)

type fakeLimitlessAPI struct {
	market limitless.APIMarket

	buyCalls       int
	sellCalls      int
	lastCollateral decimal.Decimal
	lastShares     decimal.Decimal
	receipt        limitless.APITradeReceipt
	tradeErr       error
}

func (f *fakeLimitlessAPI) GetMarket(_ context.Context, _ string) (limitless.APIMarket, error) {
	return f.market, nil
}

func (f *fakeLimitlessAPI) Buy(_ context.Context, _ string, _ domain.Outcome, collateral decimal.Decimal, _ int) (limitless.APITradeReceipt, error) {
	f.buyCalls++
	f.lastCollateral = collateral
	return f.receipt, f.tradeErr
}

func (f *fakeLimitlessAPI) Sell(_ context.Context, _ string, _ domain.Outcome, shares decimal.Decimal, _ int) (limitless.APITradeReceipt, error) {
	f.sellCalls++
	f.lastShares = shares
	return f.receipt, f.tradeErr
}

func openMarket() limitless.APIMarket {
	var m limitless.APIMarket
	m.Slug = "will-it-rain-2026"
	m.Prices = []string{"0.62", "0.38"}
	return m
}

func TestLimitlessBuyEstimatesFundingFromQuantity(t *testing.T) {
	api := &fakeLimitlessAPI{
		market: openMarket(),
		receipt: limitless.APITradeReceipt{
			TxHash:       "0xabc",
			SharesFilled: "8.0645",
			AvgPrice:     "0.62",
			CostUSDC:     "5",
		},
	}
	exec := NewLimitlessExecutor(api, discardLogger())

	res, err := exec.Execute(context.Background(), marketBuy(domain.VenueLimitless))
	require.NoError(t, err)

	// Quantity 10 funds at the 0.5 placeholder price.
	assert.Equal(t, 1, api.buyCalls)
	assert.True(t, api.lastCollateral.Equal(decimal.NewFromInt(5)),
		"collateral %s", api.lastCollateral)

	// Realized figures come from the receipt, not the estimate.
	assert.True(t, res.Success)
	assert.Equal(t, domain.OrderStatusFilled, res.Status)
	assert.True(t, res.FilledQuantity.Equal(decimal.RequireFromString("8.0645")))
	assert.True(t, res.AvgPrice.Equal(decimal.RequireFromString("0.62")))
	assert.Equal(t, "0xabc", res.SettlementRef)
	assert.True(t, strings.HasPrefix(res.OrderID, domain.LimitlessOrderPrefix))
}

func TestLimitlessBuyPrefersExplicitNotional(t *testing.T) {
	api := &fakeLimitlessAPI{
		market:  openMarket(),
		receipt: limitless.APITradeReceipt{TxHash: "0xabc", SharesFilled: "32", AvgPrice: "0.625", CostUSDC: "20"},
	}
	exec := NewLimitlessExecutor(api, discardLogger())

	req := marketBuy(domain.VenueLimitless)
	req.Quantity = decimal.Zero
	req.Notional = decimal.NewFromInt(20)

	_, err := exec.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, api.lastCollateral.Equal(decimal.NewFromInt(20)))
}

func TestLimitlessSellIsShareDenominated(t *testing.T) {
	api := &fakeLimitlessAPI{
		market:  openMarket(),
		receipt: limitless.APITradeReceipt{TxHash: "0xdef", SharesFilled: "10", AvgPrice: "0.6", CostUSDC: "6"},
	}
	exec := NewLimitlessExecutor(api, discardLogger())

	req := marketBuy(domain.VenueLimitless)
	req.Side = domain.OrderSideSell

	res, err := exec.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, api.sellCalls)
	assert.True(t, api.lastShares.Equal(decimal.NewFromInt(10)))
	assert.True(t, res.TotalCost.Equal(decimal.NewFromInt(6)))
}

func TestLimitlessRejectsClosedMarket(t *testing.T) {
	market := openMarket()
	market.Closed = true
	api := &fakeLimitlessAPI{market: market}
	exec := NewLimitlessExecutor(api, discardLogger())

	res, err := exec.Execute(context.Background(), marketBuy(domain.VenueLimitless))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrVenueRejected)
	assert.Equal(t, domain.OrderStatusFailed, res.Status)
	assert.Zero(t, api.buyCalls, "no trade may be submitted to a closed market")
}

func TestLimitlessResultCostConsistency(t *testing.T) {
	api := &fakeLimitlessAPI{
		market: openMarket(),
		receipt: limitless.APITradeReceipt{
			TxHash:       "0xabc",
			SharesFilled: "8.064516",
			AvgPrice:     "0.62",
			CostUSDC:     "4.99999992",
		},
	}
	exec := NewLimitlessExecutor(api, discardLogger())

	res, err := exec.Execute(context.Background(), marketBuy(domain.VenueLimitless))
	require.NoError(t, err)

	// filled × avg price must match reported cost within rounding tolerance.
	product := res.FilledQuantity.Mul(res.AvgPrice)
	diff := product.Sub(res.TotalCost).Abs()
	assert.True(t, diff.LessThan(decimal.RequireFromString("0.000001")),
		"cost drift %s", diff)
}
