// Package workflow runs the durable per-agent trading cycle: a seven
// step state machine whose step outputs are checkpointed in Postgres. A
// crash between steps resumes at the first step without a checkpoint; a
// crash mid-step re-executes that whole step from its start. The only
// money-moving call sits inside the decision step, which is therefore
// one atomic unit of re-execution: a completed checkpoint means the
// engine, and any order it submitted, never runs again for that run.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/agentrader/internal/agent"
	"github.com/alanyoungcy/agentrader/internal/domain"
	"github.com/alanyoungcy/agentrader/internal/notify"
	"github.com/alanyoungcy/agentrader/internal/rebalance"
	"github.com/alanyoungcy/agentrader/internal/settle"
	"github.com/alanyoungcy/agentrader/internal/wallet"
)

const (
	stepSession = iota + 1
	stepAgentSession
	stepDecide
	stepConfirmFills
	stepRecord
	stepRefreshBalances
	stepRebalance
)

const runLockTTL = 15 * time.Minute

// BalanceReader reads an address's USDC balance on one chain.
// *chain.Client satisfies it.
type BalanceReader interface {
	USDCBalance(ctx context.Context, owner string) (decimal.Decimal, error)
}

// FillSource reports the current fill view of a submitted order.
// *venue.PolymarketExecutor satisfies it.
type FillSource interface {
	Fill(ctx context.Context, orderID string) (domain.OrderResult, error)
}

// Deps wires the orchestrator. Everything is an interface or explicit
// object so tests substitute fakes without environment mutation.
type Deps struct {
	Registry      *wallet.Registry
	Sessions      domain.TradingSessionStore
	AgentSessions domain.AgentSessionStore
	Decisions     domain.DecisionStore
	Trades        domain.TradeStore
	Positions     domain.PositionStore
	Runs          domain.WorkflowStore
	Engine        agent.Engine
	Orders        agent.OrderPlacer
	Fills         FillSource
	Monitor       *settle.Monitor
	Base          BalanceReader
	Polygon       BalanceReader
	Rebalancer    *rebalance.Rebalancer
	Locks         domain.LockManager
	Notifier      *notify.Notifier // optional
	MaxSteps      int
	RunLockTTL    time.Duration // defaults to 15m when zero
	Logger        *slog.Logger
}

// Orchestrator drives workflow runs. One logical flow of control per
// agent run; instances share nothing mutable.
type Orchestrator struct {
	deps   Deps
	logger *slog.Logger
}

// NewOrchestrator builds the orchestrator.
func NewOrchestrator(deps Deps) *Orchestrator {
	if deps.RunLockTTL <= 0 {
		deps.RunLockTTL = runLockTTL
	}
	return &Orchestrator{
		deps:   deps,
		logger: deps.Logger.With(slog.String("component", "workflow")),
	}
}

// Run starts a fresh trading cycle for the agent. The per-agent lock is
// taken before the run record is created: a trigger that fires while a
// cycle is already in flight is dropped without leaving a resumable
// trail, so it can never replay later as a fresh cycle. Once the record
// exists, a crash at any point leaves it resumable.
func (o *Orchestrator) Run(ctx context.Context, agentID string, trigger domain.RunTrigger) error {
	unlock, err := o.acquireRunLock(ctx, agentID)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			o.logger.Warn("agent already running, skipping trigger",
				slog.String("agent", agentID),
				slog.String("trigger", string(trigger)))
			return nil
		}
		return err
	}
	defer unlock()

	run := domain.WorkflowRun{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		Trigger:   trigger,
		Status:    domain.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := o.deps.Runs.CreateRun(ctx, run); err != nil {
		return fmt.Errorf("workflow: create run: %w", err)
	}

	return o.execute(ctx, run, map[int]domain.StepCheckpoint{})
}

// ResumeAll re-executes every run left in the running state, picking
// each up at its first incomplete step. Call once at startup. A run
// whose agent lock is held stays resumable and is picked up by a later
// sweep.
func (o *Orchestrator) ResumeAll(ctx context.Context) error {
	runs, err := o.deps.Runs.ListResumable(ctx)
	if err != nil {
		return fmt.Errorf("workflow: list resumable: %w", err)
	}

	for _, run := range runs {
		unlock, err := o.acquireRunLock(ctx, run.AgentID)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				o.logger.Warn("agent already running, deferring resume",
					slog.String("run_id", run.ID),
					slog.String("agent", run.AgentID))
				continue
			}
			return err
		}

		cps, err := o.deps.Runs.GetCheckpoints(ctx, run.ID)
		if err != nil {
			unlock()
			return fmt.Errorf("workflow: checkpoints for %s: %w", run.ID, err)
		}
		o.logger.Info("resuming run",
			slog.String("run_id", run.ID),
			slog.String("agent", run.AgentID),
			slog.Int("checkpoints", len(cps)))
		if err := o.execute(ctx, run, cps); err != nil {
			o.logger.Error("resumed run failed",
				slog.String("run_id", run.ID),
				slog.Any("error", err))
		}
		unlock()
	}
	return nil
}

func (o *Orchestrator) acquireRunLock(ctx context.Context, agentID string) (func(), error) {
	unlock, err := o.deps.Locks.Acquire(ctx, "run:"+agentID, o.deps.RunLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return nil, err
		}
		return nil, fmt.Errorf("workflow: acquire run lock: %w", err)
	}
	return unlock, nil
}

// execute runs the state machine for one run. The caller holds the
// per-agent run lock.
func (o *Orchestrator) execute(ctx context.Context, run domain.WorkflowRun, cps map[int]domain.StepCheckpoint) (err error) {
	defer func() {
		status, runErr := domain.RunStatusCompleted, ""
		if err != nil {
			status, runErr = domain.RunStatusFailed, err.Error()
		}
		if finishErr := o.deps.Runs.FinishRun(context.WithoutCancel(ctx), run.ID, status, runErr); finishErr != nil {
			o.logger.Error("finish run", slog.String("run_id", run.ID), slog.Any("error", finishErr))
		}
		if err != nil && o.deps.Notifier != nil {
			_ = o.deps.Notifier.RunFailed(context.WithoutCancel(ctx), run.AgentID, run.ID, err.Error())
		}
	}()

	caps, err := o.deps.Registry.Capabilities(run.AgentID)
	if err != nil {
		return fmt.Errorf("workflow: %w", err)
	}

	logger := o.logger.With(slog.String("run_id", run.ID), slog.String("agent", run.AgentID))

	// Step 1: resolve the global trading session (idempotent read).
	var session domain.TradingSession
	err = o.step(ctx, run.ID, cps, stepSession, &session, func(ctx context.Context) (any, error) {
		return o.deps.Sessions.GetActive(ctx)
	})
	if err != nil {
		return fmt.Errorf("workflow: resolve session: %w", err)
	}

	// Step 2: resolve-or-create the per-agent sub-session (idempotent
	// upsert keyed by session, agent, and model).
	var sub agentSessionOutput
	err = o.step(ctx, run.ID, cps, stepAgentSession, &sub, func(ctx context.Context) (any, error) {
		balances, err := o.readBalances(ctx, caps)
		if err != nil {
			return nil, err
		}
		created, err := o.deps.AgentSessions.Upsert(ctx, domain.AgentSession{
			ID:              uuid.NewString(),
			SessionID:       session.ID,
			AgentID:         run.AgentID,
			Model:           caps.Model,
			StartingCapital: balances.Total(),
			CurrentValue:    balances.Total(),
			BaseAddress:     caps.BaseAddress(),
			PolygonAddress:  caps.PolygonAddress(),
		})
		if err != nil {
			return nil, err
		}
		return agentSessionOutput{Session: created, Balances: balances}, nil
	})
	if err != nil {
		return fmt.Errorf("workflow: agent sub-session: %w", err)
	}

	// Step 3: invoke the decision engine. This is the single most
	// sensitive correctness boundary: order submissions happen inside the
	// engine, so the step is atomic: a saved checkpoint means no replay
	// can ever resubmit, and no finer-grained retry wraps the submit path.
	var decision domain.Decision
	err = o.step(ctx, run.ID, cps, stepDecide, &decision, func(ctx context.Context) (any, error) {
		positions, err := o.deps.Positions.ListByAgent(ctx, run.AgentID)
		if err != nil {
			return nil, err
		}
		d, err := o.deps.Engine.Decide(ctx, agent.Input{
			AgentID:   run.AgentID,
			Model:     caps.Model,
			SessionID: session.ID,
			Balances:  sub.Balances,
			Positions: positions,
			Orders:    o.deps.Orders,
			MaxSteps:  o.deps.MaxSteps,
		})
		if err != nil {
			return nil, err
		}
		o.stampDecision(&d, run.AgentID)
		return d, nil
	})
	if err != nil {
		return fmt.Errorf("workflow: decide: %w", err)
	}

	// Step 4: confirm fills for any resting orders from step 3.
	var fills map[string]settle.Outcome
	err = o.step(ctx, run.ID, cps, stepConfirmFills, &fills, func(ctx context.Context) (any, error) {
		return o.confirmFills(ctx, decision.Trades)
	})
	if err != nil {
		return fmt.Errorf("workflow: confirm fills: %w", err)
	}

	// Step 5: record decision, trades, and position deltas. All upserts
	// are keyed by ids minted in step 3, so re-running the step is safe.
	// Recording failures never roll back an executed trade: the trade is
	// ground truth and step 6 reconciles from chain state next cycle.
	err = o.step(ctx, run.ID, cps, stepRecord, nil, func(ctx context.Context) (any, error) {
		o.record(ctx, logger, decision)
		return struct{}{}, nil
	})
	if err != nil {
		return fmt.Errorf("workflow: record: %w", err)
	}

	// Step 6: refresh balances from on-chain truth, not recorded history.
	var balances domain.ChainBalances
	err = o.step(ctx, run.ID, cps, stepRefreshBalances, &balances, func(ctx context.Context) (any, error) {
		fresh, err := o.readBalances(ctx, caps)
		if err != nil {
			return nil, err
		}
		if err := o.deps.AgentSessions.UpdateValue(ctx, sub.Session.ID, fresh); err != nil {
			return nil, err
		}
		return fresh, nil
	})
	if err != nil {
		return fmt.Errorf("workflow: refresh balances: %w", err)
	}

	// Step 7: evaluate rebalancing; transfers run asynchronously and
	// outlive run completion.
	var plan *rebalance.Plan
	err = o.step(ctx, run.ID, cps, stepRebalance, &plan, func(ctx context.Context) (any, error) {
		return o.deps.Rebalancer.Maybe(context.WithoutCancel(ctx), caps, balances), nil
	})
	if err != nil {
		return fmt.Errorf("workflow: rebalance: %w", err)
	}

	logger.Info("run completed",
		slog.String("decision", decision.Label),
		slog.Int("trades", len(decision.Trades)),
		slog.String("portfolio_value", balances.Total().String()))
	return nil
}

type agentSessionOutput struct {
	Session  domain.AgentSession
	Balances domain.ChainBalances
}

// step executes one durable step. A checkpointed step replays its stored
// output into target without running fn. A fresh execution round-trips
// fn's output through JSON so fresh and resumed runs observe identical
// values.
func (o *Orchestrator) step(ctx context.Context, runID string, cps map[int]domain.StepCheckpoint, idx int, target any, fn func(ctx context.Context) (any, error)) error {
	if cp, ok := cps[idx]; ok {
		if target == nil || len(cp.Output) == 0 {
			return nil
		}
		if err := json.Unmarshal(cp.Output, target); err != nil {
			return fmt.Errorf("step %d: replay checkpoint: %w", idx, err)
		}
		return nil
	}

	out, err := fn(ctx)
	if err != nil {
		return fmt.Errorf("step %d: %w", idx, err)
	}

	payload, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("step %d: encode output: %w", idx, err)
	}
	if err := o.deps.Runs.SaveCheckpoint(ctx, domain.StepCheckpoint{
		RunID:       runID,
		Step:        idx,
		Output:      payload,
		CompletedAt: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("step %d: checkpoint: %w", idx, err)
	}

	if target != nil {
		if err := json.Unmarshal(payload, target); err != nil {
			return fmt.Errorf("step %d: decode output: %w", idx, err)
		}
	}
	return nil
}

func (o *Orchestrator) readBalances(ctx context.Context, caps wallet.CapabilitySet) (domain.ChainBalances, error) {
	base, err := o.deps.Base.USDCBalance(ctx, caps.BaseAddress())
	if err != nil {
		return domain.ChainBalances{}, fmt.Errorf("base balance: %w", err)
	}
	polygon, err := o.deps.Polygon.USDCBalance(ctx, caps.PolygonAddress())
	if err != nil {
		return domain.ChainBalances{}, fmt.Errorf("polygon balance: %w", err)
	}
	return domain.ChainBalances{Base: base, Polygon: polygon}, nil
}

// stampDecision fills in the identifiers recording will key on. Minting
// them here, inside the atomic decision step, is what makes step 5
// replays idempotent.
func (o *Orchestrator) stampDecision(d *domain.Decision, agentID string) {
	now := time.Now().UTC()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.AgentID = agentID
	if d.DecidedAt.IsZero() {
		d.DecidedAt = now
	}
	for i := range d.Trades {
		t := &d.Trades[i]
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		t.DecisionID = d.ID
		t.AgentID = agentID
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
	}
}

// confirmFills polls every order-book trade until its order reaches a
// terminal fill state. Atomic-settlement trades are confirmed by
// construction and skipped.
func (o *Orchestrator) confirmFills(ctx context.Context, trades []domain.TradeRecord) (map[string]settle.Outcome, error) {
	outcomes := make(map[string]settle.Outcome)
	for _, t := range trades {
		if t.Venue != domain.VenuePolymarket || t.SettlementRef == "" {
			continue
		}
		ref := t.SettlementRef
		outcome, err := o.deps.Monitor.Poll(ctx, ref, settle.FillPolicy(), func(ctx context.Context) (settle.CheckStatus, error) {
			res, err := o.deps.Fills.Fill(ctx, ref)
			if err != nil {
				return settle.StatusPending, err
			}
			switch res.Status {
			case domain.OrderStatusFilled:
				return settle.StatusConfirmed, nil
			case domain.OrderStatusFailed:
				return settle.StatusFailed, nil
			default:
				return settle.StatusPending, nil
			}
		})
		if err != nil {
			return nil, err
		}
		outcomes[ref] = outcome
	}
	return outcomes, nil
}

func (o *Orchestrator) record(ctx context.Context, logger *slog.Logger, decision domain.Decision) {
	if err := o.deps.Decisions.Upsert(ctx, decision); err != nil {
		logger.Warn("record decision", slog.Any("error", err))
	}

	for _, t := range decision.Trades {
		inserted, err := o.deps.Trades.Upsert(ctx, t)
		if err != nil {
			logger.Warn("record trade",
				slog.String("trade_id", t.ID),
				slog.Any("error", err))
			continue
		}
		if !inserted {
			continue
		}
		if _, err := o.deps.Positions.ApplyDelta(ctx, domain.DeltaForTrade(t)); err != nil {
			logger.Warn("apply position delta",
				slog.String("trade_id", t.ID),
				slog.Any("error", err))
		}
		if o.deps.Notifier != nil {
			_ = o.deps.Notifier.TradeExecuted(ctx, t)
		}
	}

	if len(decision.Trades) > 0 {
		if _, err := o.deps.Positions.DeleteFlat(ctx, decision.AgentID); err != nil {
			logger.Warn("prune flat positions", slog.Any("error", err))
		}
	}
}
