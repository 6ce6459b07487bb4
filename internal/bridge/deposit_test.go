package bridge

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/agentrader/internal/crypto"
	"github.com/alanyoungcy/agentrader/internal/domain"
	"github.com/alanyoungcy/agentrader/internal/settle"
)

const (
	testKey    = "4c0883a69102937d6231471b5dbb6204fe512961708279feb1be6ae5538da033"
	testWallet = "0xb960bED53c17f9a021538b5d6f08e7466B966c53"
)

// fakeChain scripts balance reads and records every transaction it is
// asked to send.
type fakeChain struct {
	balances     []decimal.Decimal // consumed per USDCBalance call; last repeats
	balanceCalls int

	transfers    []string // destination addresses
	contractTxs  [][]byte
	confirmCalls int
	transferErr  error
}

func (f *fakeChain) USDCBalance(_ context.Context, _ string) (decimal.Decimal, error) {
	i := f.balanceCalls
	f.balanceCalls++
	if i >= len(f.balances) {
		i = len(f.balances) - 1
	}
	return f.balances[i], nil
}

func (f *fakeChain) TransferUSDC(_ context.Context, _ *crypto.Signer, to string, _ decimal.Decimal) (string, error) {
	f.transfers = append(f.transfers, to)
	return "0xsourcetx", f.transferErr
}

func (f *fakeChain) ApproveUSDC(_ context.Context, _ *crypto.Signer, _ common.Address, _ decimal.Decimal) (string, error) {
	return "0xapprovetx", nil
}

func (f *fakeChain) SendContractTx(_ context.Context, _ *crypto.Signer, _ common.Address, data []byte) (string, error) {
	f.contractTxs = append(f.contractTxs, data)
	return "0xcontracttx", nil
}

func (f *fakeChain) ConfirmTx(_ context.Context, _ string) error {
	f.confirmCalls++
	return nil
}

type fakeProvider struct {
	calls int
}

func (f *fakeProvider) DepositAddress(_ context.Context, _ string) (string, error) {
	f.calls++
	return "0x9daF8c91AEFAE50b9c0E69629D3F6Ca40cA3B3FE", nil
}

func testSigner(t *testing.T) *crypto.Signer {
	t.Helper()
	s, err := crypto.NewSigner(testKey, 8453)
	require.NoError(t, err)
	return s
}

func newDeposit(provider DepositAddressProvider, base, polygon ChainClient) *DepositCoordinator {
	logger := slog.New(slog.DiscardHandler)
	return NewDepositCoordinator(provider, base, polygon,
		settle.NewMonitor(logger),
		decimal.NewFromInt(1),
		time.Millisecond, 5*time.Millisecond,
		logger)
}

func TestDepositRejectsBelowMinimum(t *testing.T) {
	provider := &fakeProvider{}
	base := &fakeChain{balances: []decimal.Decimal{decimal.Zero}}
	polygon := &fakeChain{balances: []decimal.Decimal{decimal.Zero}}

	transfer, err := newDeposit(provider, base, polygon).
		Deposit(context.Background(), testSigner(t), testWallet, decimal.RequireFromString("0.5"))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBelowMinimum)
	assert.Equal(t, domain.BridgeStateFailed, transfer.State)
	assert.Zero(t, provider.calls, "rejected before any network call")
	assert.Empty(t, base.transfers)
}

func TestDepositCompletesAtTolerantTarget(t *testing.T) {
	// Initial 100; deposit 50 completes at >= 149.5 (99% tolerance),
	// not at 149.4.
	provider := &fakeProvider{}
	base := &fakeChain{balances: []decimal.Decimal{decimal.Zero}}
	// Reads: initial, then three polls; only the last reaches target.
	polygon := &fakeChain{balances: []decimal.Decimal{
		decimal.NewFromInt(100),
		decimal.NewFromInt(100),
		decimal.RequireFromString("149.4"),
		decimal.RequireFromString("149.5"),
	}}

	transfer, err := newDeposit(provider, base, polygon).
		Deposit(context.Background(), testSigner(t), testWallet, decimal.NewFromInt(50))

	require.NoError(t, err)
	assert.Equal(t, domain.BridgeStateCompleted, transfer.State)
	assert.Equal(t, "0xsourcetx", transfer.SourceTx)
	assert.NotNil(t, transfer.CompletedAt)
	assert.Equal(t, 4, polygon.balanceCalls, "must not confirm below the tolerant target")

	// Funds went to the issued deposit address, not the wallet.
	require.Len(t, base.transfers, 1)
	assert.Equal(t, "0x9daF8c91AEFAE50b9c0E69629D3F6Ca40cA3B3FE", base.transfers[0])
}

func TestDepositTimeoutStaysInitiated(t *testing.T) {
	provider := &fakeProvider{}
	base := &fakeChain{balances: []decimal.Decimal{decimal.Zero}}
	polygon := &fakeChain{balances: []decimal.Decimal{decimal.NewFromInt(100)}}

	transfer, err := newDeposit(provider, base, polygon).
		Deposit(context.Background(), testSigner(t), testWallet, decimal.NewFromInt(50))

	// In transit, unconfirmed: not a failure.
	require.NoError(t, err)
	assert.Equal(t, domain.BridgeStateInitiated, transfer.State)
	assert.Equal(t, "0xsourcetx", transfer.SourceTx)
	assert.Nil(t, transfer.CompletedAt)
}
