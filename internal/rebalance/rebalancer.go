// Package rebalance keeps each agent's per-chain USDC within policy
// bounds by triggering bridge transfers when a chain runs dry.
package rebalance

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/agentrader/internal/crypto"
	"github.com/alanyoungcy/agentrader/internal/domain"
	"github.com/alanyoungcy/agentrader/internal/wallet"
)

// Depositor moves USDC Base -> Polygon. *bridge.DepositCoordinator
// satisfies it.
type Depositor interface {
	Deposit(ctx context.Context, baseSigner *crypto.Signer, polygonWallet string, amount decimal.Decimal) (domain.BridgeTransfer, error)
}

// Withdrawer moves USDC Polygon -> Base. *bridge.WithdrawCoordinator
// satisfies it.
type Withdrawer interface {
	Withdraw(ctx context.Context, polygonSigner, baseSigner *crypto.Signer, amount decimal.Decimal) (domain.BridgeTransfer, error)
}

// Direction says which way a planned transfer flows.
type Direction string

const (
	DirectionDeposit  Direction = "deposit"  // Base -> Polygon
	DirectionWithdraw Direction = "withdraw" // Polygon -> Base
)

// Plan is one planned bridge transfer.
type Plan struct {
	Direction Direction
	Amount    decimal.Decimal
}

// Policy bounds per-chain balances: a chain below Min is topped up toward
// Target from the other chain.
type Policy struct {
	Min    decimal.Decimal
	Target decimal.Decimal
}

// Rebalancer evaluates balances against policy and runs planned
// transfers asynchronously so workflow completion never blocks on a
// bridge.
type Rebalancer struct {
	depositor  Depositor
	withdrawer Withdrawer
	policy     Policy
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// NewRebalancer builds a rebalancer over the two bridge pathways.
func NewRebalancer(depositor Depositor, withdrawer Withdrawer, policy Policy, logger *slog.Logger) *Rebalancer {
	return &Rebalancer{
		depositor:  depositor,
		withdrawer: withdrawer,
		policy:     policy,
		logger:     logger.With(slog.String("component", "rebalancer")),
	}
}

// Evaluate decides whether the balances need a transfer. It is pure: no
// network, no side effects. The donor chain is never drained below what
// it currently holds; a donor that cannot fund any top-up yields no plan.
func (r *Rebalancer) Evaluate(balances domain.ChainBalances) *Plan {
	switch {
	case balances.Polygon.LessThan(r.policy.Min):
		amount := r.policy.Target.Sub(balances.Polygon)
		if amount.GreaterThan(balances.Base) {
			amount = balances.Base
		}
		if !amount.IsPositive() {
			return nil
		}
		return &Plan{Direction: DirectionDeposit, Amount: amount}

	case balances.Base.LessThan(r.policy.Min):
		amount := r.policy.Target.Sub(balances.Base)
		if amount.GreaterThan(balances.Polygon) {
			amount = balances.Polygon
		}
		if !amount.IsPositive() {
			return nil
		}
		return &Plan{Direction: DirectionWithdraw, Amount: amount}
	}

	return nil
}

// Maybe evaluates the balances and, when a transfer is due, starts it in
// the background. It returns the plan (nil when balances are in bounds)
// immediately.
func (r *Rebalancer) Maybe(ctx context.Context, caps wallet.CapabilitySet, balances domain.ChainBalances) *Plan {
	plan := r.Evaluate(balances)
	if plan == nil {
		return nil
	}

	r.logger.Info("rebalance triggered",
		slog.String("agent", caps.AgentID),
		slog.String("direction", string(plan.Direction)),
		slog.String("amount", plan.Amount.String()))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		var transfer domain.BridgeTransfer
		var err error
		switch plan.Direction {
		case DirectionDeposit:
			transfer, err = r.depositor.Deposit(ctx, caps.Base, caps.PolygonAddress(), plan.Amount)
		case DirectionWithdraw:
			transfer, err = r.withdrawer.Withdraw(ctx, caps.Polygon, caps.Base, plan.Amount)
		}
		if err != nil {
			r.logger.Error("rebalance transfer failed",
				slog.String("agent", caps.AgentID),
				slog.String("direction", string(plan.Direction)),
				slog.Any("error", err))
			return
		}
		r.logger.Info("rebalance transfer finished",
			slog.String("agent", caps.AgentID),
			slog.String("transfer_id", transfer.ID),
			slog.String("state", string(transfer.State)))
	}()

	return plan
}

// Wait blocks until every background transfer has finished. Call on
// shutdown.
func (r *Rebalancer) Wait() {
	r.wg.Wait()
}
