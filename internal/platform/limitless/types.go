package limitless

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/agentrader/internal/domain"
)

// APIMarket is a market as returned by the Limitless API. Prices are
// quoted per share in collateral terms, in [0,1].
type APIMarket struct {
	Slug            string `json:"slug"`
	Title           string `json:"title"`
	Closed          bool   `json:"closed"`
	Expired         bool   `json:"expired"`
	CollateralToken struct {
		Symbol   string `json:"symbol"`
		Address  string `json:"address"`
		Decimals int    `json:"decimals"`
	} `json:"collateralToken"`
	// Prices is [yes, no] as decimal strings.
	Prices    []string `json:"prices"`
	Liquidity string   `json:"liquidityFormatted"`
	Volume    string   `json:"volumeFormatted"`
}

// OutcomePrice returns the quoted price for the given outcome side, or
// false when the market carries no usable quote.
func (m *APIMarket) OutcomePrice(outcome domain.Outcome) (decimal.Decimal, bool) {
	if len(m.Prices) < 2 {
		return decimal.Zero, false
	}
	idx := 0
	if outcome == domain.OutcomeNo {
		idx = 1
	}
	price, err := decimal.NewFromString(m.Prices[idx])
	if err != nil || !price.IsPositive() {
		return decimal.Zero, false
	}
	return price, true
}

// APITradeReceipt is the execution receipt for an AMM trade. The trade is
// final once this is returned; TxHash is the Base transaction that moved
// the collateral and shares.
type APITradeReceipt struct {
	TxHash       string `json:"transactionHash"`
	Slug         string `json:"slug"`
	Outcome      string `json:"outcome"`
	Side         string `json:"side"`
	SharesFilled string `json:"sharesFilled"`
	AvgPrice     string `json:"avgPrice"`
	CostUSDC     string `json:"costUsdc"`
}

// ToOrderResult converts the receipt into a venue-neutral result. AMM
// trades settle atomically, so the status is always terminal.
func (r *APITradeReceipt) ToOrderResult(orderID string) (domain.OrderResult, error) {
	filled, err := decimal.NewFromString(r.SharesFilled)
	if err != nil {
		return domain.OrderResult{}, err
	}
	price, err := decimal.NewFromString(r.AvgPrice)
	if err != nil {
		return domain.OrderResult{}, err
	}
	cost, err := decimal.NewFromString(r.CostUSDC)
	if err != nil {
		return domain.OrderResult{}, err
	}

	return domain.OrderResult{
		OrderID:        orderID,
		Venue:          domain.VenueLimitless,
		Status:         domain.OrderStatusFilled,
		Success:        true,
		FilledQuantity: filled,
		AvgPrice:       price,
		TotalCost:      cost,
		SettlementRef:  r.TxHash,
	}, nil
}
