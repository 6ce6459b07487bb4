package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/agentrader/internal/chain"
	"github.com/alanyoungcy/agentrader/internal/crypto"
	"github.com/alanyoungcy/agentrader/internal/domain"
	"github.com/alanyoungcy/agentrader/internal/settle"
)

// AttestationSource resolves CCTP attestations for burn transactions.
// *IrisClient satisfies it.
type AttestationSource interface {
	Attestation(ctx context.Context, sourceDomain uint32, burnTx string) (Attestation, error)
}

// WithdrawCoordinator moves USDC from Polygon back to Base through CCTP:
// burn on Polygon via TokenMessenger, poll Iris for the attestation, then
// mint on Base via MessageTransmitter.receiveMessage.
type WithdrawCoordinator struct {
	iris           AttestationSource
	polygon        ChainClient
	base           ChainClient
	monitor        *settle.Monitor
	minAmount      decimal.Decimal
	tokenMessenger common.Address // Polygon
	transmitter    common.Address // Base
	polygonUSDC    common.Address
	baseDomain     uint32
	policy         settle.Policy
	logger         *slog.Logger
}

// WithdrawConfig carries the contract addresses and polling tuning for
// the CCTP pathway.
type WithdrawConfig struct {
	MinAmount           decimal.Decimal
	TokenMessenger      string
	Transmitter         string
	PolygonUSDC         string
	BaseDomain          uint32
	AttestationInterval time.Duration
	AttestationBudget   time.Duration
}

// NewWithdrawCoordinator builds the withdrawal pathway.
func NewWithdrawCoordinator(iris AttestationSource, polygon, base ChainClient, monitor *settle.Monitor, cfg WithdrawConfig, logger *slog.Logger) *WithdrawCoordinator {
	policy := settle.AttestationPolicy()
	if cfg.AttestationInterval > 0 && cfg.AttestationBudget > 0 {
		policy = settle.Policy{
			Initial:     cfg.AttestationInterval,
			Multiplier:  1.0,
			MaxInterval: cfg.AttestationInterval,
			MaxAttempts: int(cfg.AttestationBudget / cfg.AttestationInterval),
		}
	}

	return &WithdrawCoordinator{
		iris:           iris,
		polygon:        polygon,
		base:           base,
		monitor:        monitor,
		minAmount:      cfg.MinAmount,
		tokenMessenger: common.HexToAddress(cfg.TokenMessenger),
		transmitter:    common.HexToAddress(cfg.Transmitter),
		polygonUSDC:    common.HexToAddress(cfg.PolygonUSDC),
		baseDomain:     cfg.BaseDomain,
		policy:         policy,
		logger:         logger.With(slog.String("component", "bridge_withdraw")),
	}
}

// Withdraw burns amount on Polygon and mints it to the agent's Base
// wallet. An attestation timeout is a distinct terminal state that keeps
// the burn transaction reference so the mint can be completed manually;
// it is never auto-retried, because a second burn would double-spend.
func (w *WithdrawCoordinator) Withdraw(ctx context.Context, polygonSigner, baseSigner *crypto.Signer, amount decimal.Decimal) (domain.BridgeTransfer, error) {
	transfer := domain.BridgeTransfer{
		ID:          uuid.NewString(),
		SourceChain: domain.ChainPolygon,
		DestChain:   domain.ChainBase,
		Amount:      amount,
		State:       domain.BridgeStateFailed,
		StartedAt:   time.Now().UTC(),
	}

	if amount.LessThan(w.minAmount) {
		return transfer, fmt.Errorf("bridge: withdrawal of %s USDC: %w (minimum %s)", amount, domain.ErrBelowMinimum, w.minAmount)
	}

	approveTx, err := w.polygon.ApproveUSDC(ctx, polygonSigner, w.tokenMessenger, amount)
	if err != nil {
		return transfer, fmt.Errorf("bridge: approve burn allowance: %w", err)
	}
	if err := w.polygon.ConfirmTx(ctx, approveTx); err != nil {
		return transfer, fmt.Errorf("bridge: approve confirmation: %w", err)
	}

	burnData := PackDepositForBurn(chain.ToBaseUnits(amount), w.baseDomain, baseSigner.Address(), w.polygonUSDC)
	burnTx, err := w.polygon.SendContractTx(ctx, polygonSigner, w.tokenMessenger, burnData)
	if err != nil {
		return transfer, fmt.Errorf("bridge: depositForBurn: %w", err)
	}
	transfer.SourceTx = burnTx
	transfer.State = domain.BridgeStateInitiated

	if err := w.polygon.ConfirmTx(ctx, burnTx); err != nil {
		return transfer, fmt.Errorf("bridge: burn confirmation: %w", err)
	}

	w.logger.Info("burn confirmed, awaiting attestation",
		slog.String("transfer_id", transfer.ID),
		slog.String("burn_tx", burnTx))

	var att Attestation
	outcome, err := w.monitor.Poll(ctx, transfer.ID, w.policy, func(ctx context.Context) (settle.CheckStatus, error) {
		got, err := w.iris.Attestation(ctx, PolygonDomain, burnTx)
		if errors.Is(err, ErrAttestationPending) {
			return settle.StatusPending, nil
		}
		if err != nil {
			return settle.StatusPending, err
		}
		att = got
		return settle.StatusConfirmed, nil
	})
	if err != nil {
		return transfer, fmt.Errorf("bridge: withdrawal %s: %w", transfer.ID, err)
	}
	if outcome != settle.OutcomeConfirmed {
		transfer.State = domain.BridgeStateTimeout
		w.logger.Error("attestation timed out, complete manually with the burn tx",
			slog.String("transfer_id", transfer.ID),
			slog.String("burn_tx", burnTx))
		return transfer, nil
	}
	transfer.State = domain.BridgeStateAttested

	mintData := PackReceiveMessage(att.Message, att.Attestation)
	mintTx, err := w.base.SendContractTx(ctx, baseSigner, w.transmitter, mintData)
	if err != nil {
		return transfer, fmt.Errorf("bridge: receiveMessage: %w", err)
	}
	if err := w.base.ConfirmTx(ctx, mintTx); err != nil {
		return transfer, fmt.Errorf("bridge: mint confirmation: %w", err)
	}

	now := time.Now().UTC()
	transfer.DestTx = mintTx
	transfer.State = domain.BridgeStateCompleted
	transfer.CompletedAt = &now

	w.logger.Info("withdrawal completed",
		slog.String("transfer_id", transfer.ID),
		slog.String("mint_tx", mintTx))
	return transfer, nil
}
