package bridge

import (
	"bytes"
	"context"
	"encoding/hex"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/agentrader/internal/domain"
	"github.com/alanyoungcy/agentrader/internal/settle"
)

type fakeIris struct {
	calls       int
	pendingFor  int
	attestation Attestation
}

func (f *fakeIris) Attestation(_ context.Context, _ uint32, _ string) (Attestation, error) {
	f.calls++
	if f.calls <= f.pendingFor {
		return Attestation{}, ErrAttestationPending
	}
	return f.attestation, nil
}

func newWithdraw(iris AttestationSource, polygon, base ChainClient) *WithdrawCoordinator {
	logger := slog.New(slog.DiscardHandler)
	return NewWithdrawCoordinator(iris, polygon, base,
		settle.NewMonitor(logger),
		WithdrawConfig{
			MinAmount:           decimal.NewFromInt(1),
			TokenMessenger:      "0x9daF8c91AEFAE50b9c0E69629D3F6Ca40cA3B3FE",
			Transmitter:         "0xAD09780d193884d503182aD4588450C416D6F9D4",
			PolygonUSDC:         "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
			BaseDomain:          6,
			AttestationInterval: time.Millisecond,
			AttestationBudget:   5 * time.Millisecond,
		},
		logger)
}

func TestWithdrawRejectsBelowMinimum(t *testing.T) {
	iris := &fakeIris{}
	polygon := &fakeChain{balances: []decimal.Decimal{decimal.Zero}}
	base := &fakeChain{balances: []decimal.Decimal{decimal.Zero}}

	transfer, err := newWithdraw(iris, polygon, base).
		Withdraw(context.Background(), testSigner(t), testSigner(t), decimal.RequireFromString("0.25"))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBelowMinimum)
	assert.Equal(t, domain.BridgeStateFailed, transfer.State)
	assert.Empty(t, polygon.contractTxs)
	assert.Zero(t, iris.calls)
}

func TestWithdrawCompletesWithAttestation(t *testing.T) {
	iris := &fakeIris{
		pendingFor: 2,
		attestation: Attestation{
			Message:     []byte("burn-message"),
			Attestation: []byte("circle-signature"),
		},
	}
	polygon := &fakeChain{balances: []decimal.Decimal{decimal.Zero}}
	base := &fakeChain{balances: []decimal.Decimal{decimal.Zero}}

	transfer, err := newWithdraw(iris, polygon, base).
		Withdraw(context.Background(), testSigner(t), testSigner(t), decimal.NewFromInt(25))

	require.NoError(t, err)
	assert.Equal(t, domain.BridgeStateCompleted, transfer.State)
	assert.Equal(t, "0xcontracttx", transfer.SourceTx)
	assert.Equal(t, "0xcontracttx", transfer.DestTx)
	assert.Equal(t, 3, iris.calls)

	// Polygon saw the burn; Base saw the mint with the attested payload.
	require.Len(t, polygon.contractTxs, 1)
	expectedBurn := PackDepositForBurn(big.NewInt(25_000_000), 6,
		common.HexToAddress(testWallet),
		common.HexToAddress("0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"))
	assert.True(t, bytes.Equal(expectedBurn, polygon.contractTxs[0]))

	require.Len(t, base.contractTxs, 1)
	expectedMint := PackReceiveMessage([]byte("burn-message"), []byte("circle-signature"))
	assert.True(t, bytes.Equal(expectedMint, base.contractTxs[0]))
}

func TestWithdrawAttestationTimeoutIsTerminal(t *testing.T) {
	iris := &fakeIris{pendingFor: 1 << 30}
	polygon := &fakeChain{balances: []decimal.Decimal{decimal.Zero}}
	base := &fakeChain{balances: []decimal.Decimal{decimal.Zero}}

	transfer, err := newWithdraw(iris, polygon, base).
		Withdraw(context.Background(), testSigner(t), testSigner(t), decimal.NewFromInt(25))

	require.NoError(t, err)
	assert.Equal(t, domain.BridgeStateTimeout, transfer.State)
	assert.Equal(t, "0xcontracttx", transfer.SourceTx, "burn tx retained for manual completion")
	assert.Empty(t, transfer.DestTx)
	assert.Empty(t, base.contractTxs, "no mint attempt without an attestation")
	require.Len(t, polygon.contractTxs, 1, "burn is never auto-retried")
}

func TestPackDepositForBurnLayout(t *testing.T) {
	data := PackDepositForBurn(big.NewInt(1_000_000), 6,
		common.HexToAddress(testWallet),
		common.HexToAddress("0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"))

	require.Len(t, data, 4+4*32)
	assert.Equal(t, int64(1_000_000), new(big.Int).SetBytes(data[4:36]).Int64())
	assert.Equal(t, int64(6), new(big.Int).SetBytes(data[36:68]).Int64())
	// Recipient is an address left-padded to bytes32.
	assert.Equal(t, make([]byte, 12), data[68:80])
}

func TestPackReceiveMessageLayout(t *testing.T) {
	message := []byte("0123456789abcdef0123456789abcdef0123") // 36 bytes
	attestation := []byte("sig")

	data := PackReceiveMessage(message, attestation)

	assert.Equal(t, "57ecfd28", hex.EncodeToString(data[:4]))
	// Head: message offset 0x40, attestation offset past message payload.
	assert.Equal(t, int64(64), new(big.Int).SetBytes(data[4:36]).Int64())
	assert.Equal(t, int64(64+32+64), new(big.Int).SetBytes(data[36:68]).Int64())
	// Message tail: length word then padded payload.
	assert.Equal(t, int64(36), new(big.Int).SetBytes(data[68:100]).Int64())
	assert.Equal(t, message, data[100:136])
	// Attestation tail.
	attLenOff := 4 + 64 + 32 + 64
	assert.Equal(t, int64(3), new(big.Int).SetBytes(data[attLenOff:attLenOff+32]).Int64())
}
