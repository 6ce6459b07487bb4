// Package agent defines the boundary to the decision engine. The engine
// is an external collaborator: the orchestrator hands it the agent's
// identity, current holdings, and an order placer, and gets back a
// structured decision whose trades each correspond to exactly one
// already-executed order action. How the engine reasons is its own
// business.
package agent

import (
	"context"

	"github.com/alanyoungcy/agentrader/internal/domain"
)

// OrderPlacer is the only execution capability an engine receives. It is
// the venue router in production and a fake in tests.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error)
}

// Input is everything an engine may consider for one decision.
type Input struct {
	AgentID   string
	Model     string
	SessionID string
	Balances  domain.ChainBalances
	Positions []domain.Position

	// Orders executes trades. Every submission through it settles or
	// fails exactly once; the engine must not resubmit on ambiguity.
	Orders OrderPlacer

	// MaxSteps bounds the engine's reasoning/tool-call budget.
	MaxSteps int
}

// Engine produces one trading decision per invocation. Implementations
// must report, in the returned decision, exactly the trades they
// executed through Input.Orders, no more and no fewer.
type Engine interface {
	Decide(ctx context.Context, in Input) (domain.Decision, error)
}

// HoldEngine is an Engine that never trades. Useful as a safe default
// and for wiring smoke tests.
type HoldEngine struct{}

// Decide returns a hold decision with no trades.
func (HoldEngine) Decide(_ context.Context, in Input) (domain.Decision, error) {
	return domain.Decision{
		AgentID:        in.AgentID,
		Label:          "hold",
		Rationale:      "no action taken",
		Confidence:     1.0,
		PortfolioValue: in.Balances.Total(),
	}, nil
}
