package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeAction is what the trade did to the position.
type TradeAction string

const (
	TradeActionBuy    TradeAction = "buy"
	TradeActionSell   TradeAction = "sell"
	TradeActionRedeem TradeAction = "redeem"
)

// TradeRecord is an immutable persisted fact about an executed trade.
// Records are bookkeeping only: the executed trade is ground truth, and a
// failed write is reconciled from on-chain state on the next cycle, never
// rolled back.
type TradeRecord struct {
	ID            string
	DecisionID    string
	AgentID       string
	Venue         Venue
	Instrument    string
	Outcome       Outcome
	Side          OrderSide
	Action        TradeAction
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	Notional      decimal.Decimal
	SettlementRef string // venue-prefixed order id or tx hash
	CreatedAt     time.Time
}
