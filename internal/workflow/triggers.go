package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/agentrader/internal/domain"
)

// Runner is the trigger-facing slice of the orchestrator.
type Runner interface {
	Run(ctx context.Context, agentID string, trigger domain.RunTrigger) error
}

// Scheduler starts one run per agent on a fixed cadence. Runs for
// different agents proceed concurrently; the per-agent run lock prevents
// a slow cycle from overlapping its successor.
type Scheduler struct {
	runner   Runner
	agents   []string
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler builds a schedule trigger over the given agents.
func NewScheduler(runner Runner, agents []string, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		agents:   agents,
		interval: interval,
		logger:   logger.With(slog.String("component", "scheduler")),
	}
}

// Start ticks until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started",
		slog.Duration("interval", s.interval),
		slog.Int("agents", len(s.agents)))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Scheduler) runAll(ctx context.Context) {
	for _, agentID := range s.agents {
		go func(agentID string) {
			if err := s.runner.Run(ctx, agentID, domain.TriggerSchedule); err != nil {
				s.logger.Error("scheduled run failed",
					slog.String("agent", agentID),
					slog.Any("error", err))
			}
		}(agentID)
	}
}

// SignalListener suspends on the market-signal channel at no compute
// cost, spawns one workflow execution per signal, then resumes
// listening.
type SignalListener struct {
	runner  Runner
	bus     domain.SignalBus
	channel string
	agents  []string
	logger  *slog.Logger
}

// NewSignalListener builds the asynchronous trigger source.
func NewSignalListener(runner Runner, bus domain.SignalBus, channel string, agents []string, logger *slog.Logger) *SignalListener {
	return &SignalListener{
		runner:  runner,
		bus:     bus,
		channel: channel,
		agents:  agents,
		logger:  logger.With(slog.String("component", "signal_listener")),
	}
}

// Listen blocks until the context is cancelled or the subscription
// closes.
func (l *SignalListener) Listen(ctx context.Context) error {
	ch, err := l.bus.Subscribe(ctx, l.channel)
	if err != nil {
		return fmt.Errorf("workflow: subscribe %s: %w", l.channel, err)
	}

	l.logger.Info("listening for market signals", slog.String("channel", l.channel))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-ch:
			if !ok {
				return fmt.Errorf("workflow: signal channel %s closed: %w", l.channel, domain.ErrWSDisconnect)
			}

			var signal domain.MarketSignal
			if err := json.Unmarshal(payload, &signal); err != nil {
				l.logger.Warn("malformed signal, skipping", slog.Any("error", err))
				continue
			}

			l.logger.Info("signal received",
				slog.String("signal_id", signal.ID),
				slog.String("instrument", signal.Instrument),
				slog.String("kind", signal.Kind))

			for _, agentID := range l.agents {
				go func(agentID string) {
					if err := l.runner.Run(ctx, agentID, domain.TriggerSignal); err != nil {
						l.logger.Error("signal run failed",
							slog.String("agent", agentID),
							slog.Any("error", err))
					}
				}(agentID)
			}
		}
	}
}
