package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradingSession is the global session every agent run attaches to.
// Reading it is step 1 of the workflow and is idempotent.
type TradingSession struct {
	ID        string
	Label     string
	Status    string // "active" or "closed"
	StartedAt time.Time
}

// AgentSession is the per-(session, decision model) sub-session. It is
// created lazily on an agent's first decision and updated on every
// recorded result. CurrentValue is refreshed from on-chain truth, not
// from recorded trade history, so leaderboard consumers never drift.
type AgentSession struct {
	ID              string
	SessionID       string
	AgentID         string
	Model           string // decision model identifier
	StartingCapital decimal.Decimal
	CurrentValue    decimal.Decimal
	BaseAddress     string // wallet address on Base
	PolygonAddress  string // wallet address on Polygon
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ChainBalances is a point-in-time snapshot of an agent's collateral on
// both chains, in canonical USDC units.
type ChainBalances struct {
	Base    decimal.Decimal
	Polygon decimal.Decimal
}

// Total returns the combined balance across chains.
func (b ChainBalances) Total() decimal.Decimal {
	return b.Base.Add(b.Polygon)
}
