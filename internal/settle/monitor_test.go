package settle

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		Initial:     time.Millisecond,
		Multiplier:  2.0,
		MaxInterval: 4 * time.Millisecond,
		MaxAttempts: attempts,
	}
}

func newTestMonitor() *Monitor {
	return NewMonitor(slog.New(slog.DiscardHandler))
}

func TestPollConfirmsOnTerminalStatus(t *testing.T) {
	calls := 0
	outcome, err := newTestMonitor().Poll(context.Background(), "order-1", fastPolicy(10),
		func(context.Context) (CheckStatus, error) {
			calls++
			if calls < 3 {
				return StatusPending, nil
			}
			return StatusConfirmed, nil
		})

	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)
	assert.Equal(t, 3, calls, "must stop on first terminal observation")
}

func TestPollFailureIsNotTimeout(t *testing.T) {
	outcome, err := newTestMonitor().Poll(context.Background(), "order-2", fastPolicy(10),
		func(context.Context) (CheckStatus, error) {
			return StatusFailed, nil
		})

	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
}

func TestPollExhaustsBudgetToTimeout(t *testing.T) {
	calls := 0
	outcome, err := newTestMonitor().Poll(context.Background(), "order-3", fastPolicy(4),
		func(context.Context) (CheckStatus, error) {
			calls++
			return StatusPending, nil
		})

	require.NoError(t, err)
	assert.Equal(t, OutcomeTimeout, outcome)
	assert.Equal(t, 4, calls)
}

func TestPollTransientErrorsContinue(t *testing.T) {
	calls := 0
	outcome, err := newTestMonitor().Poll(context.Background(), "order-4", fastPolicy(10),
		func(context.Context) (CheckStatus, error) {
			calls++
			if calls < 3 {
				return StatusPending, errors.New("rpc hiccup")
			}
			return StatusConfirmed, nil
		})

	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)
	assert.Equal(t, 3, calls)
}

func TestPollHonorsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	_, err := newTestMonitor().Poll(ctx, "order-5", Policy{
		Initial:     time.Minute,
		Multiplier:  2.0,
		MaxInterval: time.Minute,
		MaxAttempts: 5,
	}, func(context.Context) (CheckStatus, error) {
		cancel()
		return StatusPending, nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPollRejectsEmptyBudget(t *testing.T) {
	_, err := newTestMonitor().Poll(context.Background(), "order-6", Policy{}, nil)
	require.Error(t, err)
}

func TestPolicyShapes(t *testing.T) {
	fill := FillPolicy()
	assert.Equal(t, 5*time.Second, fill.Initial)
	assert.Equal(t, 60*time.Second, fill.MaxInterval)
	assert.Equal(t, 10, fill.MaxAttempts)

	att := AttestationPolicy()
	assert.Equal(t, att.Initial, att.MaxInterval, "attestation cadence is fixed")
	assert.Equal(t, 30*time.Minute, time.Duration(att.MaxAttempts)*att.Initial)
}
