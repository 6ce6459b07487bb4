package domain

import "github.com/shopspring/decimal"

// BookLevel is one resting price level of an order book.
type BookLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// OrderBook is a depth snapshot for one side of a binary market. Bids are
// sorted best (highest) first, asks best (lowest) first.
type OrderBook struct {
	Instrument string
	Bids       []BookLevel
	Asks       []BookLevel
}

// BestBid returns the highest resting bid, or false when the bid side is
// empty.
func (b OrderBook) BestBid() (BookLevel, bool) {
	if len(b.Bids) == 0 {
		return BookLevel{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the lowest resting ask, or false when the ask side is
// empty.
func (b OrderBook) BestAsk() (BookLevel, bool) {
	if len(b.Asks) == 0 {
		return BookLevel{}, false
	}
	return b.Asks[0], true
}

// BidDepth sums the resting size across all bid levels.
func (b OrderBook) BidDepth() decimal.Decimal {
	total := decimal.Zero
	for _, lvl := range b.Bids {
		total = total.Add(lvl.Size)
	}
	return total
}

// AskDepth sums the resting size across all ask levels.
func (b OrderBook) AskDepth() decimal.Decimal {
	total := decimal.Zero
	for _, lvl := range b.Asks {
		total = total.Add(lvl.Size)
	}
	return total
}
