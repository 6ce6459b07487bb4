package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Decision is the structured output of one decision-engine invocation.
// The engine is an external collaborator; the core only requires that
// every reported trade corresponds to exactly one already-executed order
// action.
type Decision struct {
	ID             string
	AgentID        string
	Label          string // e.g. "open", "close", "hold", "rebalance"
	Rationale      string
	Confidence     float64 // 0..1
	Trades         []TradeRecord
	PortfolioValue decimal.Decimal
	DecidedAt      time.Time
}

// MarketSignal is an asynchronous market event that can trigger a
// trading cycle for the agents watching the instrument.
type MarketSignal struct {
	ID         string
	Venue      Venue
	Instrument string
	Kind       string // "price_move", "volume_spike", "new_market"
	Price      decimal.Decimal
	ObservedAt time.Time
}

// StreamMessage is a single entry read back from a durable signal stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}
