package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/agentrader/internal/domain"
)

// WorkflowStore implements domain.WorkflowStore using PostgreSQL.
type WorkflowStore struct {
	pool *pgxpool.Pool
}

// NewWorkflowStore creates a WorkflowStore backed by the given connection pool.
func NewWorkflowStore(pool *pgxpool.Pool) *WorkflowStore {
	return &WorkflowStore{pool: pool}
}

const runSelectCols = `id, agent_id, session_id, trigger, status, error, started_at, updated_at`

func scanRunRows(rows pgx.Rows) ([]domain.WorkflowRun, error) {
	var runs []domain.WorkflowRun
	for rows.Next() {
		var run domain.WorkflowRun
		var trigger, status string
		if err := rows.Scan(
			&run.ID, &run.AgentID, &run.SessionID,
			&trigger, &status, &run.Error,
			&run.StartedAt, &run.UpdatedAt,
		); err != nil {
			return nil, err
		}
		run.Trigger = domain.RunTrigger(trigger)
		run.Status = domain.RunStatus(status)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CreateRun inserts a new workflow run in the running state.
func (s *WorkflowStore) CreateRun(ctx context.Context, run domain.WorkflowRun) error {
	const query = `
		INSERT INTO workflow_runs (
			id, agent_id, session_id, trigger, status, error, started_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`

	_, err := s.pool.Exec(ctx, query,
		run.ID, run.AgentID, run.SessionID,
		string(run.Trigger), string(run.Status), run.Error, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun retrieves a workflow run by its ID.
func (s *WorkflowStore) GetRun(ctx context.Context, id string) (domain.WorkflowRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+runSelectCols+` FROM workflow_runs WHERE id = $1`, id)

	var run domain.WorkflowRun
	var trigger, status string
	err := row.Scan(
		&run.ID, &run.AgentID, &run.SessionID,
		&trigger, &status, &run.Error,
		&run.StartedAt, &run.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.WorkflowRun{}, domain.ErrNotFound
		}
		return domain.WorkflowRun{}, fmt.Errorf("postgres: get run %s: %w", id, err)
	}
	run.Trigger = domain.RunTrigger(trigger)
	run.Status = domain.RunStatus(status)
	return run, nil
}

// ListResumable returns every run still in the running state, oldest
// first. A running row belongs to either a live process or a crashed
// one; the per-agent run lock disambiguates at resume time.
func (s *WorkflowStore) ListResumable(ctx context.Context) ([]domain.WorkflowRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+runSelectCols+` FROM workflow_runs
		 WHERE status = 'running'
		 ORDER BY started_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list resumable runs: %w", err)
	}
	defer rows.Close()

	runs, err := scanRunRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan resumable runs: %w", err)
	}
	return runs, nil
}

// SaveCheckpoint persists one completed step's output. The write is the
// step's commit point: a run resumes at the first step with no row here.
func (s *WorkflowStore) SaveCheckpoint(ctx context.Context, cp domain.StepCheckpoint) error {
	const query = `
		INSERT INTO workflow_checkpoints (run_id, step, output, completed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (run_id, step) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		cp.RunID, cp.Step, cp.Output, cp.CompletedAt)
	if err != nil {
		return fmt.Errorf("postgres: save checkpoint %s/%d: %w", cp.RunID, cp.Step, err)
	}
	return nil
}

// GetCheckpoints returns the run's checkpoints keyed by step number.
func (s *WorkflowStore) GetCheckpoints(ctx context.Context, runID string) (map[int]domain.StepCheckpoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, step, output, completed_at
		 FROM workflow_checkpoints WHERE run_id = $1`, runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: get checkpoints %s: %w", runID, err)
	}
	defer rows.Close()

	cps := make(map[int]domain.StepCheckpoint)
	for rows.Next() {
		var cp domain.StepCheckpoint
		if err := rows.Scan(&cp.RunID, &cp.Step, &cp.Output, &cp.CompletedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan checkpoint: %w", err)
		}
		cps[cp.Step] = cp
	}
	return cps, rows.Err()
}

// FinishRun records the run's terminal status.
func (s *WorkflowStore) FinishRun(ctx context.Context, id string, status domain.RunStatus, runErr string) error {
	const query = `
		UPDATE workflow_runs SET
			status     = $2,
			error      = $3,
			updated_at = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, string(status), runErr)
	if err != nil {
		return fmt.Errorf("postgres: finish run %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListBefore returns terminal runs started before the cutoff, oldest
// first, for archival batching. Running rows are never archived.
func (s *WorkflowStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.WorkflowRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+runSelectCols+` FROM workflow_runs
		 WHERE started_at < $1 AND status != 'running'
		 ORDER BY started_at ASC
		 LIMIT $2`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list runs before %s: %w", before, err)
	}
	defer rows.Close()

	runs, err := scanRunRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan archived runs: %w", err)
	}
	return runs, nil
}
