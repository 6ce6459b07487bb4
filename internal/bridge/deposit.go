package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/agentrader/internal/crypto"
	"github.com/alanyoungcy/agentrader/internal/domain"
	"github.com/alanyoungcy/agentrader/internal/settle"
)

// arrivalTolerance accepts a destination balance rise of at least 99% of
// the sent amount; the missing 1% absorbs relayer fees.
var arrivalTolerance = decimal.RequireFromString("0.99")

// DepositAddressProvider issues the per-wallet deposit address on Base.
// *polymarket.BridgeClient satisfies it.
type DepositAddressProvider interface {
	DepositAddress(ctx context.Context, wallet string) (string, error)
}

// DepositCoordinator moves USDC from Base to Polygon through the
// venue-operated bridge: transfer to the issued deposit address, wait for
// source finality, then poll the Polygon balance until it rises by the
// tolerated share of the sent amount.
type DepositCoordinator struct {
	provider  DepositAddressProvider
	base      ChainClient
	polygon   ChainClient
	monitor   *settle.Monitor
	minAmount decimal.Decimal
	policy    settle.Policy
	logger    *slog.Logger
}

// NewDepositCoordinator builds the deposit pathway. interval and budget
// tune destination balance polling; by default 10s for up to 10 minutes.
func NewDepositCoordinator(provider DepositAddressProvider, base, polygon ChainClient, monitor *settle.Monitor, minAmount decimal.Decimal, interval, budget time.Duration, logger *slog.Logger) *DepositCoordinator {
	return &DepositCoordinator{
		provider:  provider,
		base:      base,
		polygon:   polygon,
		monitor:   monitor,
		minAmount: minAmount,
		policy: settle.Policy{
			Initial:     interval,
			Multiplier:  1.0,
			MaxInterval: interval,
			MaxAttempts: int(budget / interval),
		},
		logger: logger.With(slog.String("component", "bridge_deposit")),
	}
}

// Deposit sends amount from the agent's Base wallet toward its Polygon
// wallet. A polling timeout leaves the transfer in the initiated state
// (in transit, unconfirmed) because funds may still arrive; it is not a
// failure.
func (d *DepositCoordinator) Deposit(ctx context.Context, baseSigner *crypto.Signer, polygonWallet string, amount decimal.Decimal) (domain.BridgeTransfer, error) {
	transfer := domain.BridgeTransfer{
		ID:          uuid.NewString(),
		SourceChain: domain.ChainBase,
		DestChain:   domain.ChainPolygon,
		Amount:      amount,
		State:       domain.BridgeStateFailed,
		StartedAt:   time.Now().UTC(),
	}

	if amount.LessThan(d.minAmount) {
		return transfer, fmt.Errorf("bridge: deposit of %s USDC: %w (minimum %s)", amount, domain.ErrBelowMinimum, d.minAmount)
	}

	depositAddr, err := d.provider.DepositAddress(ctx, polygonWallet)
	if err != nil {
		return transfer, fmt.Errorf("bridge: deposit address: %w", err)
	}

	initial, err := d.polygon.USDCBalance(ctx, polygonWallet)
	if err != nil {
		return transfer, fmt.Errorf("bridge: initial destination balance: %w", err)
	}
	target := initial.Add(amount.Mul(arrivalTolerance))

	txHash, err := d.base.TransferUSDC(ctx, baseSigner, depositAddr, amount)
	if err != nil {
		return transfer, fmt.Errorf("bridge: source transfer: %w", err)
	}
	transfer.SourceTx = txHash
	transfer.State = domain.BridgeStateInitiated

	if err := d.base.ConfirmTx(ctx, txHash); err != nil {
		// The transfer was broadcast; arrival is unknown, not failed.
		return transfer, fmt.Errorf("bridge: source finality: %w", err)
	}

	d.logger.Info("deposit in flight",
		slog.String("transfer_id", transfer.ID),
		slog.String("source_tx", txHash),
		slog.String("amount", amount.String()),
		slog.String("target_balance", target.String()))

	outcome, err := d.monitor.Poll(ctx, transfer.ID, d.policy, func(ctx context.Context) (settle.CheckStatus, error) {
		balance, err := d.polygon.USDCBalance(ctx, polygonWallet)
		if err != nil {
			return settle.StatusPending, err
		}
		if balance.GreaterThanOrEqual(target) {
			return settle.StatusConfirmed, nil
		}
		return settle.StatusPending, nil
	})
	if err != nil {
		return transfer, fmt.Errorf("bridge: deposit %s: %w", transfer.ID, err)
	}

	switch outcome {
	case settle.OutcomeConfirmed:
		now := time.Now().UTC()
		transfer.State = domain.BridgeStateCompleted
		transfer.CompletedAt = &now
		d.logger.Info("deposit arrived", slog.String("transfer_id", transfer.ID))
	default:
		// Still initiated: in transit, unconfirmed.
		d.logger.Warn("deposit unconfirmed within budget, funds may still arrive",
			slog.String("transfer_id", transfer.ID),
			slog.String("source_tx", transfer.SourceTx))
	}

	return transfer, nil
}
