// Package settle is the generic polling loop for operations that
// confirm asynchronously: order fills on the order-book venue and
// cross-chain bridge completion. One loop, two tuning policies.
package settle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Outcome is the terminal result of a polling run. Timeout means the
// attempt budget ran out with the operation still pending; it is never
// conflated with an explicit failure, because the operation may still
// complete on its own.
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimeout   Outcome = "timeout"
)

// CheckStatus is one observation of the monitored operation.
type CheckStatus int

const (
	StatusPending CheckStatus = iota
	StatusConfirmed
	StatusFailed
)

// CheckFunc inspects the referenced operation once. A non-nil error is
// treated as transient infrastructure trouble and consumes an attempt
// without aborting the loop; an explicit failure is reported through
// StatusFailed.
type CheckFunc func(ctx context.Context) (CheckStatus, error)

// Policy tunes one polling loop.
type Policy struct {
	Initial     time.Duration
	Multiplier  float64
	MaxInterval time.Duration
	MaxAttempts int
}

// FillPolicy confirms order fills: 5s doubling to a 60s cap, 10 attempts
// (about five and a half minutes worst case).
func FillPolicy() Policy {
	return Policy{
		Initial:     5 * time.Second,
		Multiplier:  2.0,
		MaxInterval: 60 * time.Second,
		MaxAttempts: 10,
	}
}

// AttestationPolicy confirms bridge attestations: fixed 30s cadence for
// up to 30 minutes.
func AttestationPolicy() Policy {
	return Policy{
		Initial:     30 * time.Second,
		Multiplier:  1.0,
		MaxInterval: 30 * time.Second,
		MaxAttempts: 60,
	}
}

// Monitor runs polling loops. It is stateless and safe for concurrent
// use by independent workflow instances.
type Monitor struct {
	logger *slog.Logger
}

// NewMonitor creates a settlement monitor.
func NewMonitor(logger *slog.Logger) *Monitor {
	return &Monitor{
		logger: logger.With(slog.String("component", "settle_monitor")),
	}
}

// Poll drives check until it reports a terminal status or the policy's
// attempt budget is exhausted. The first check fires immediately;
// subsequent checks follow the policy's backoff schedule.
func (m *Monitor) Poll(ctx context.Context, ref string, policy Policy, check CheckFunc) (Outcome, error) {
	if policy.MaxAttempts <= 0 {
		return "", fmt.Errorf("settle: policy for %s has no attempt budget", ref)
	}

	cfg := backoff.NewExponentialBackOff()
	cfg.InitialInterval = policy.Initial
	cfg.Multiplier = policy.Multiplier
	cfg.MaxInterval = policy.MaxInterval
	cfg.RandomizationFactor = 0

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		status, err := check(ctx)
		switch {
		case err != nil:
			// Transient trouble consumes an attempt but never aborts.
			m.logger.Warn("check errored, continuing",
				slog.String("ref", ref),
				slog.Int("attempt", attempt),
				slog.Any("error", err))
		case status == StatusConfirmed:
			m.logger.Info("confirmed",
				slog.String("ref", ref),
				slog.Int("attempt", attempt))
			return OutcomeConfirmed, nil
		case status == StatusFailed:
			m.logger.Warn("failed",
				slog.String("ref", ref),
				slog.Int("attempt", attempt))
			return OutcomeFailed, nil
		}

		if attempt == policy.MaxAttempts {
			break
		}

		sleep := cfg.NextBackOff()
		if sleep == backoff.Stop {
			sleep = policy.MaxInterval
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("settle: polling %s: %w", ref, ctx.Err())
		case <-time.After(sleep):
		}
	}

	m.logger.Warn("attempt budget exhausted",
		slog.String("ref", ref),
		slog.Int("attempts", policy.MaxAttempts))
	return OutcomeTimeout, nil
}
