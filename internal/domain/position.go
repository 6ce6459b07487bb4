package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the per-agent, per-instrument holding, split by outcome.
// Positions are mutated only by delta: buys increase, sells and
// redemptions decrease. A position is upserted on first delta and only
// deleted once both outcome quantities reach zero.
type Position struct {
	AgentID     string
	Venue       Venue
	Instrument  string
	YesQuantity decimal.Decimal
	NoQuantity  decimal.Decimal
	UpdatedAt   time.Time
}

// Flat reports whether both outcome holdings are zero.
func (p Position) Flat() bool {
	return p.YesQuantity.IsZero() && p.NoQuantity.IsZero()
}

// PositionDelta is a signed change to one outcome of a position. Deltas
// for the same agent+instrument are serialized by the storage layer's
// upsert; deltas for different instruments never contend.
type PositionDelta struct {
	AgentID    string
	Venue      Venue
	Instrument string
	Outcome    Outcome
	Delta      decimal.Decimal // positive for buys, negative for sells/redeems
}

// DeltaForTrade derives the position delta implied by a trade record.
func DeltaForTrade(t TradeRecord) PositionDelta {
	d := PositionDelta{
		AgentID:    t.AgentID,
		Venue:      t.Venue,
		Instrument: t.Instrument,
		Outcome:    t.Outcome,
		Delta:      t.Quantity,
	}
	if t.Action == TradeActionSell || t.Action == TradeActionRedeem {
		d.Delta = d.Delta.Neg()
	}
	return d
}
