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

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, decision_id, agent_id, venue, instrument,
	outcome, side, action, quantity, price, notional, settlement_ref, created_at`

func scanTradeRows(rows pgx.Rows) ([]domain.TradeRecord, error) {
	var trades []domain.TradeRecord
	for rows.Next() {
		var t domain.TradeRecord
		var venue, outcome, side, action string

		if err := rows.Scan(
			&t.ID, &t.DecisionID, &t.AgentID, &venue, &t.Instrument,
			&outcome, &side, &action,
			&t.Quantity, &t.Price, &t.Notional,
			&t.SettlementRef, &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		t.Venue = domain.Venue(venue)
		t.Outcome = domain.Outcome(outcome)
		t.Side = domain.OrderSide(side)
		t.Action = domain.TradeAction(action)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Upsert inserts the trade record, keyed by ID. A conflicting ID is left
// untouched: records are immutable, and inserted reports whether this
// call created the row so position deltas apply exactly once per trade.
func (s *TradeStore) Upsert(ctx context.Context, t domain.TradeRecord) (bool, error) {
	const query = `
		INSERT INTO trades (
			id, decision_id, agent_id, venue, instrument,
			outcome, side, action, quantity, price, notional,
			settlement_ref, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query,
		t.ID, t.DecisionID, t.AgentID, string(t.Venue), t.Instrument,
		string(t.Outcome), string(t.Side), string(t.Action),
		t.Quantity, t.Price, t.Notional,
		t.SettlementRef, t.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("postgres: upsert trade %s: %w", t.ID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetByID retrieves a trade record by its ID.
func (s *TradeStore) GetByID(ctx context.Context, id string) (domain.TradeRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tradeSelectCols+` FROM trades WHERE id = $1`, id)

	var t domain.TradeRecord
	var venue, outcome, side, action string
	err := row.Scan(
		&t.ID, &t.DecisionID, &t.AgentID, &venue, &t.Instrument,
		&outcome, &side, &action,
		&t.Quantity, &t.Price, &t.Notional,
		&t.SettlementRef, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TradeRecord{}, domain.ErrNotFound
		}
		return domain.TradeRecord{}, fmt.Errorf("postgres: get trade %s: %w", id, err)
	}
	t.Venue = domain.Venue(venue)
	t.Outcome = domain.Outcome(outcome)
	t.Side = domain.OrderSide(side)
	t.Action = domain.TradeAction(action)
	return t, nil
}

// ListByAgent returns the agent's trades, newest first, with pagination
// and optional time filtering.
func (s *TradeStore) ListByAgent(ctx context.Context, agentID string, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE agent_id = $1`
	args := []any{agentID}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

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
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades: %w", err)
	}
	return trades, nil
}

// ListBefore returns trades created before the cutoff, oldest first, for
// archival batching.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.TradeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM trades
		 WHERE created_at < $1
		 ORDER BY created_at ASC
		 LIMIT $2`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before %s: %w", before, err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan archived trades: %w", err)
	}
	return trades, nil
}

// DeleteBefore removes trades created before the cutoff, returning the
// number of rows deleted. Call only after the batch has been archived.
func (s *TradeStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM trades WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete trades before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}
