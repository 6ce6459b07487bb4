package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/agentrader/internal/agent"
	"github.com/alanyoungcy/agentrader/internal/domain"
	"github.com/alanyoungcy/agentrader/internal/feed"
	"github.com/alanyoungcy/agentrader/internal/server"
	"github.com/alanyoungcy/agentrader/internal/server/handler"
	"github.com/alanyoungcy/agentrader/internal/workflow"
)

// archiveInterval is how often the full mode sweeps old records to
// object storage.
const archiveInterval = 24 * time.Hour

// RunMode starts the trading loop: resume interrupted runs, then drive
// fresh runs from the schedule and signal triggers, fed by the market
// data stream.
func (a *App) RunMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting run mode")

	if err := a.ensureActiveSession(ctx, deps); err != nil {
		return err
	}
	orch := a.buildOrchestrator(deps)

	if err := orch.ResumeAll(ctx); err != nil {
		return fmt.Errorf("run mode: resume: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startTriggers(ctx, g, deps, orch)

	err := g.Wait()
	deps.Rebalancer.Wait()
	return err
}

// OnceMode resumes interrupted runs, executes a single manual cycle for
// every registered agent, waits for any rebalancing transfers, and exits.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting once mode")

	if err := a.ensureActiveSession(ctx, deps); err != nil {
		return err
	}
	orch := a.buildOrchestrator(deps)

	if err := orch.ResumeAll(ctx); err != nil {
		return fmt.Errorf("once mode: resume: %w", err)
	}

	for _, agentID := range deps.Registry.AgentIDs() {
		if err := orch.Run(ctx, agentID, domain.TriggerManual); err != nil {
			a.logger.ErrorContext(ctx, "manual run failed",
				slog.String("agent", agentID),
				slog.Any("error", err))
		}
	}

	deps.Rebalancer.Wait()
	a.logger.InfoContext(ctx, "once mode finished")
	return nil
}

// ServerMode serves only the read surface; nothing trades.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the trading loop, the read surface, and the daily
// archival sweep together.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	if err := a.ensureActiveSession(ctx, deps); err != nil {
		return err
	}
	orch := a.buildOrchestrator(deps)

	if err := orch.ResumeAll(ctx); err != nil {
		return fmt.Errorf("full mode: resume: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startTriggers(ctx, g, deps, orch)
	a.startHTTPServer(ctx, g, deps)

	if deps.Archiver != nil {
		g.Go(func() error {
			return a.archiveLoop(ctx, deps.Archiver)
		})
	}

	err := g.Wait()
	deps.Rebalancer.Wait()
	return err
}

// buildOrchestrator assembles the workflow state machine over the wired
// dependencies. The decision engine defaults to hold-only; a real engine
// is attached by the deployment that hosts it.
func (a *App) buildOrchestrator(deps *Dependencies) *workflow.Orchestrator {
	return workflow.NewOrchestrator(workflow.Deps{
		Registry:      deps.Registry,
		Sessions:      deps.Sessions,
		AgentSessions: deps.AgentSessions,
		Decisions:     deps.Decisions,
		Trades:        deps.Trades,
		Positions:     deps.Positions,
		Runs:          deps.Runs,
		Engine:        agent.HoldEngine{},
		Orders:        deps.Router,
		Fills:         deps.PolyExec,
		Monitor:       deps.Monitor,
		Base:          deps.Base,
		Polygon:       deps.Polygon,
		Rebalancer:    deps.Rebalancer,
		Locks:         deps.LockManager,
		Notifier:      deps.Notifier,
		MaxSteps:      a.cfg.Workflow.DecisionBudget,
		RunLockTTL:    a.cfg.Workflow.RunLockTTL.Duration,
		Logger:        a.logger,
	})
}

// startTriggers launches the schedule and signal trigger sources plus the
// market data feed that produces the signals.
func (a *App) startTriggers(ctx context.Context, g *errgroup.Group, deps *Dependencies, orch *workflow.Orchestrator) {
	agents := deps.Registry.AgentIDs()

	scheduler := workflow.NewScheduler(orch, agents, a.cfg.Workflow.Schedule.Duration, a.logger)
	g.Go(func() error {
		return scheduler.Start(ctx)
	})

	listener := workflow.NewSignalListener(orch, deps.SignalBus, a.cfg.Workflow.SignalChannel, agents, a.logger)
	g.Go(func() error {
		return listener.Listen(ctx)
	})

	if len(a.cfg.Workflow.WatchAssets) > 0 && a.cfg.Polymarket.WsHost != "" {
		marketFeed := feed.NewSignalFeed(
			a.cfg.Polymarket.WsHost,
			a.cfg.Workflow.WatchAssets,
			deps.SignalBus,
			deps.PriceCache,
			a.logger,
		)
		g.Go(func() error {
			return marketFeed.Run(ctx)
		})
	} else {
		a.logger.InfoContext(ctx, "no watch assets configured, market feed disabled")
	}
}

// startHTTPServer launches the read-only HTTP surface.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	handlers := server.Handlers{
		Health:   handler.NewHealthHandler(a.logger),
		Sessions: handler.NewSessionHandler(deps.Sessions, deps.AgentSessions, a.logger),
		Agents:   handler.NewAgentHandler(deps.Registry, deps.Positions, deps.Trades, deps.Decisions, deps.Base, deps.Polygon, a.logger),
	}
	if deps.BlobReader != nil {
		handlers.Archives = handler.NewArchiveHandler(deps.BlobReader, a.logger)
	}
	if deps.PriceCache != nil {
		handlers.Prices = handler.NewPriceHandler(deps.PriceCache, a.logger)
	}

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
		},
		handlers,
		a.logger,
	)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// ensureActiveSession creates the global trading session on first boot so
// step 1 of every workflow has something to read.
func (a *App) ensureActiveSession(ctx context.Context, deps *Dependencies) error {
	_, err := deps.Sessions.GetActive(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNoActiveSession) {
		return fmt.Errorf("app: read active session: %w", err)
	}

	session := domain.TradingSession{
		ID:        uuid.NewString(),
		Label:     "season-" + time.Now().UTC().Format("2006-01-02"),
		Status:    "active",
		StartedAt: time.Now().UTC(),
	}
	if err := deps.Sessions.Create(ctx, session); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Another process won the race; its session is the active one.
			return nil
		}
		return fmt.Errorf("app: create trading session: %w", err)
	}
	a.logger.InfoContext(ctx, "created trading session",
		slog.String("session_id", session.ID),
		slog.String("label", session.Label))
	return nil
}

// archiveLoop sweeps trades and terminal runs older than the retention
// window to object storage once a day.
func (a *App) archiveLoop(ctx context.Context, archiver domain.Archiver) error {
	ticker := time.NewTicker(archiveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.S3.RetentionDays)

			trades, err := archiver.ArchiveTrades(ctx, cutoff)
			if err != nil {
				a.logger.ErrorContext(ctx, "archive trades", slog.Any("error", err))
			}
			runs, err := archiver.ArchiveRuns(ctx, cutoff)
			if err != nil {
				a.logger.ErrorContext(ctx, "archive runs", slog.Any("error", err))
			}
			a.logger.InfoContext(ctx, "archival sweep finished",
				slog.Int64("trades", trades),
				slog.Int64("runs", runs),
				slog.Time("cutoff", cutoff))
		}
	}
}
