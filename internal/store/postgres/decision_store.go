package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/agentrader/internal/domain"
)

// DecisionStore implements domain.DecisionStore using PostgreSQL.
// Trades embedded in a decision are persisted separately by TradeStore.
type DecisionStore struct {
	pool *pgxpool.Pool
}

// NewDecisionStore creates a DecisionStore backed by the given pool.
func NewDecisionStore(pool *pgxpool.Pool) *DecisionStore {
	return &DecisionStore{pool: pool}
}

const decisionSelectCols = `id, agent_id, label, rationale, confidence,
	portfolio_value, decided_at`

func scanDecisionRow(row pgx.Row) (domain.Decision, error) {
	var d domain.Decision
	err := row.Scan(
		&d.ID, &d.AgentID, &d.Label, &d.Rationale, &d.Confidence,
		&d.PortfolioValue, &d.DecidedAt,
	)
	if err != nil {
		return domain.Decision{}, err
	}
	return d, nil
}

// Upsert writes the decision, keyed by ID so step replays are no-ops.
func (s *DecisionStore) Upsert(ctx context.Context, d domain.Decision) error {
	const query = `
		INSERT INTO decisions (
			id, agent_id, label, rationale, confidence, portfolio_value, decided_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		d.ID, d.AgentID, d.Label, d.Rationale, d.Confidence,
		d.PortfolioValue, d.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert decision %s: %w", d.ID, err)
	}
	return nil
}

// GetByID retrieves a decision by its ID.
func (s *DecisionStore) GetByID(ctx context.Context, id string) (domain.Decision, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+decisionSelectCols+` FROM decisions WHERE id = $1`, id)

	d, err := scanDecisionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Decision{}, domain.ErrNotFound
		}
		return domain.Decision{}, fmt.Errorf("postgres: get decision %s: %w", id, err)
	}
	return d, nil
}

// ListByAgent returns the agent's decisions, newest first, with
// pagination and optional time filtering.
func (s *DecisionStore) ListByAgent(ctx context.Context, agentID string, opts domain.ListOpts) ([]domain.Decision, error) {
	query := `SELECT ` + decisionSelectCols + ` FROM decisions WHERE agent_id = $1`
	args := []any{agentID}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND decided_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND decided_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY decided_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list decisions: %w", err)
	}
	defer rows.Close()

	var decisions []domain.Decision
	for rows.Next() {
		var d domain.Decision
		if err := rows.Scan(
			&d.ID, &d.AgentID, &d.Label, &d.Rationale, &d.Confidence,
			&d.PortfolioValue, &d.DecidedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan decision: %w", err)
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}
