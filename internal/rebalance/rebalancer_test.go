package rebalance

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/agentrader/internal/config"
	"github.com/alanyoungcy/agentrader/internal/crypto"
	"github.com/alanyoungcy/agentrader/internal/domain"
	"github.com/alanyoungcy/agentrader/internal/wallet"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe512961708279feb1be6ae5538da033"

type fakeDepositor struct {
	calls  atomic.Int32
	amount decimal.Decimal
}

func (f *fakeDepositor) Deposit(_ context.Context, _ *crypto.Signer, _ string, amount decimal.Decimal) (domain.BridgeTransfer, error) {
	f.calls.Add(1)
	f.amount = amount
	return domain.BridgeTransfer{ID: "t1", State: domain.BridgeStateCompleted}, nil
}

type fakeWithdrawer struct {
	calls atomic.Int32
}

func (f *fakeWithdrawer) Withdraw(_ context.Context, _, _ *crypto.Signer, _ decimal.Decimal) (domain.BridgeTransfer, error) {
	f.calls.Add(1)
	return domain.BridgeTransfer{ID: "t2", State: domain.BridgeStateCompleted}, nil
}

func policy() Policy {
	return Policy{Min: decimal.NewFromInt(25), Target: decimal.NewFromInt(100)}
}

func balances(base, polygon int64) domain.ChainBalances {
	return domain.ChainBalances{
		Base:    decimal.NewFromInt(base),
		Polygon: decimal.NewFromInt(polygon),
	}
}

func newRebalancer(d Depositor, w Withdrawer) *Rebalancer {
	return NewRebalancer(d, w, policy(), slog.New(slog.DiscardHandler))
}

func testCaps(t *testing.T) wallet.CapabilitySet {
	t.Helper()
	reg, err := wallet.NewRegistry([]config.AgentKey{{Series: "alpha", PrivateKey: testKey}}, 8453, 137)
	require.NoError(t, err)
	caps, err := reg.Capabilities("alpha")
	require.NoError(t, err)
	return caps
}

func TestEvaluateInBoundsNeedsNothing(t *testing.T) {
	r := newRebalancer(&fakeDepositor{}, &fakeWithdrawer{})
	assert.Nil(t, r.Evaluate(balances(200, 200)))
	assert.Nil(t, r.Evaluate(balances(25, 25)))
}

func TestEvaluatePlansDepositTowardTarget(t *testing.T) {
	r := newRebalancer(&fakeDepositor{}, &fakeWithdrawer{})

	plan := r.Evaluate(balances(500, 10))
	require.NotNil(t, plan)
	assert.Equal(t, DirectionDeposit, plan.Direction)
	assert.True(t, plan.Amount.Equal(decimal.NewFromInt(90)), "amount %s", plan.Amount)
}

func TestEvaluateCapsAtDonorBalance(t *testing.T) {
	r := newRebalancer(&fakeDepositor{}, &fakeWithdrawer{})

	plan := r.Evaluate(balances(40, 10))
	require.NotNil(t, plan)
	assert.True(t, plan.Amount.Equal(decimal.NewFromInt(40)))

	// A broke donor yields no plan at all.
	assert.Nil(t, r.Evaluate(balances(0, 10)))
}

func TestEvaluatePlansWithdrawal(t *testing.T) {
	r := newRebalancer(&fakeDepositor{}, &fakeWithdrawer{})

	plan := r.Evaluate(balances(10, 500))
	require.NotNil(t, plan)
	assert.Equal(t, DirectionWithdraw, plan.Direction)
	assert.True(t, plan.Amount.Equal(decimal.NewFromInt(90)))
}

func TestMaybeRunsTransferAsynchronously(t *testing.T) {
	dep := &fakeDepositor{}
	wit := &fakeWithdrawer{}
	r := newRebalancer(dep, wit)

	plan := r.Maybe(context.Background(), testCaps(t), balances(500, 10))
	require.NotNil(t, plan)
	r.Wait()

	assert.Equal(t, int32(1), dep.calls.Load())
	assert.Zero(t, wit.calls.Load())
	assert.True(t, dep.amount.Equal(decimal.NewFromInt(90)))
}

func TestMaybeNoopWhenBalanced(t *testing.T) {
	dep := &fakeDepositor{}
	r := newRebalancer(dep, &fakeWithdrawer{})

	assert.Nil(t, r.Maybe(context.Background(), testCaps(t), balances(100, 100)))
	r.Wait()
	assert.Zero(t, dep.calls.Load())
}
