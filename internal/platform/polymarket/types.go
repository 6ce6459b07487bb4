package polymarket

import (
	"math/big"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/agentrader/internal/domain"
)

// SignedOrder is the wire form of an EIP-712 signed CLOB order, ready for
// submission. Amounts are in 6-decimal base units.
type SignedOrder struct {
	Salt          string
	TokenID       string
	MakerAmount   *big.Int
	TakerAmount   *big.Int
	Side          string // "BUY" or "SELL"
	TIF           string // "GTC", "FOK", "GTD"
	Expiration    string
	Wallet        string
	Signature     string
	SignatureType int
}

// APIOrderResult is the CLOB response to placing an order.
type APIOrderResult struct {
	Success     bool   `json:"success"`
	ErrorMsg    string `json:"errorMsg,omitempty"`
	OrderID     string `json:"orderID,omitempty"`
	Status      string `json:"status,omitempty"`
	TransactID  string `json:"transactID,omitempty"`
	ShouldRetry bool   `json:"shouldRetry,omitempty"`
}

// APIOrder is an order as returned by the CLOB order query endpoints.
type APIOrder struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	AssetID      string `json:"asset_id"`
	Side         string `json:"side"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	Price        string `json:"price"`
	CreatedAt    string `json:"created_at"`
}

// ToFill converts the API order into the venue-neutral fill view used by
// the settlement monitor. Unparseable numeric fields fold to zero; the
// status mapping is the interesting part.
func (o *APIOrder) ToFill(orderID string) domain.OrderResult {
	size, _ := decimal.NewFromString(o.OriginalSize)
	matched, _ := decimal.NewFromString(o.SizeMatched)
	price, _ := decimal.NewFromString(o.Price)

	res := domain.OrderResult{
		OrderID:        orderID,
		Venue:          domain.VenuePolymarket,
		FilledQuantity: matched,
		AvgPrice:       price,
		TotalCost:      matched.Mul(price),
	}

	switch o.Status {
	case "MATCHED":
		res.Status = domain.OrderStatusFilled
		res.Success = true
	case "LIVE", "DELAYED":
		if matched.IsPositive() && matched.LessThan(size) {
			res.Status = domain.OrderStatusPartial
		} else {
			res.Status = domain.OrderStatusOpen
		}
		res.Success = true
	case "CANCELED", "UNMATCHED":
		if matched.IsPositive() {
			res.Status = domain.OrderStatusPartial
			res.Success = true
		} else {
			res.Status = domain.OrderStatusFailed
			res.Message = "order canceled before any fill"
		}
	default:
		res.Status = domain.OrderStatusOpen
		res.Success = true
	}

	return res
}

// APIBook is the CLOB depth snapshot for one token.
type APIBook struct {
	AssetID string     `json:"asset_id"`
	Bids    []APILevel `json:"bids"`
	Asks    []APILevel `json:"asks"`
}

// APILevel is one price level of an APIBook.
type APILevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// ToOrderBook converts the API snapshot into a domain book, dropping
// levels with malformed numbers. The CLOB sends bids ascending and asks
// descending; the domain book wants best-first on both sides, so both are
// re-sorted here.
func (b *APIBook) ToOrderBook() domain.OrderBook {
	book := domain.OrderBook{Instrument: b.AssetID}
	for _, lvl := range b.Bids {
		price, perr := decimal.NewFromString(lvl.Price)
		size, serr := decimal.NewFromString(lvl.Size)
		if perr != nil || serr != nil {
			continue
		}
		book.Bids = append(book.Bids, domain.BookLevel{Price: price, Size: size})
	}
	for _, lvl := range b.Asks {
		price, perr := decimal.NewFromString(lvl.Price)
		size, serr := decimal.NewFromString(lvl.Size)
		if perr != nil || serr != nil {
			continue
		}
		book.Asks = append(book.Asks, domain.BookLevel{Price: price, Size: size})
	}
	sort.Slice(book.Bids, func(i, j int) bool {
		return book.Bids[i].Price.GreaterThan(book.Bids[j].Price)
	})
	sort.Slice(book.Asks, func(i, j int) bool {
		return book.Asks[i].Price.LessThan(book.Asks[j].Price)
	})
	return book
}
