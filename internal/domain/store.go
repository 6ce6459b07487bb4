package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// TradingSessionStore persists global trading sessions.
type TradingSessionStore interface {
	GetActive(ctx context.Context) (TradingSession, error)
	GetByID(ctx context.Context, id string) (TradingSession, error)
	Create(ctx context.Context, s TradingSession) error
}

// AgentSessionStore persists per-agent sub-sessions.
type AgentSessionStore interface {
	// Upsert creates the sub-session on first use and is a no-op update on
	// replay, keyed by (session_id, agent_id, model).
	Upsert(ctx context.Context, s AgentSession) (AgentSession, error)
	GetByAgent(ctx context.Context, sessionID, agentID string) (AgentSession, error)
	UpdateValue(ctx context.Context, id string, balances ChainBalances) error
	List(ctx context.Context, sessionID string) ([]AgentSession, error)
}

// DecisionStore persists decision-engine outputs.
type DecisionStore interface {
	// Upsert is keyed by decision ID so step replays are safe.
	Upsert(ctx context.Context, d Decision) error
	GetByID(ctx context.Context, id string) (Decision, error)
	ListByAgent(ctx context.Context, agentID string, opts ListOpts) ([]Decision, error)
}

// TradeStore persists immutable trade records.
type TradeStore interface {
	// Upsert is keyed by trade ID; replaying a recording step is a no-op.
	// inserted reports whether the row was newly created, so callers can
	// apply position deltas exactly once per trade.
	Upsert(ctx context.Context, t TradeRecord) (inserted bool, err error)
	GetByID(ctx context.Context, id string) (TradeRecord, error)
	ListByAgent(ctx context.Context, agentID string, opts ListOpts) ([]TradeRecord, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]TradeRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// PositionStore persists positions via delta upserts.
type PositionStore interface {
	// ApplyDelta upserts the position row and adds the signed delta to the
	// matching outcome column. Same-instrument deltas are serialized by
	// the upsert; different instruments never contend.
	ApplyDelta(ctx context.Context, d PositionDelta) (Position, error)
	Get(ctx context.Context, agentID string, venue Venue, instrument string) (Position, error)
	ListByAgent(ctx context.Context, agentID string) ([]Position, error)
	DeleteFlat(ctx context.Context, agentID string) (int64, error)
}

// WorkflowStore persists workflow runs and step checkpoints.
type WorkflowStore interface {
	CreateRun(ctx context.Context, run WorkflowRun) error
	GetRun(ctx context.Context, id string) (WorkflowRun, error)
	ListResumable(ctx context.Context) ([]WorkflowRun, error)
	SaveCheckpoint(ctx context.Context, cp StepCheckpoint) error
	GetCheckpoints(ctx context.Context, runID string) (map[int]StepCheckpoint, error)
	FinishRun(ctx context.Context, id string, status RunStatus, runErr string) error
	ListBefore(ctx context.Context, before time.Time, limit int) ([]WorkflowRun, error)
}

// SignalBus provides pub/sub delivery of market signals plus a durable
// stream for replay.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// PriceCache holds the last observed price per instrument, fed by the
// market data feed and read by signal consumers and the HTTP surface.
type PriceCache interface {
	SetPrice(ctx context.Context, venue Venue, instrument string, price decimal.Decimal, ts time.Time) error
	GetPrice(ctx context.Context, venue Venue, instrument string) (decimal.Decimal, time.Time, error)
}

// LockManager provides distributed locking (one run per agent at a time).
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
