package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/agentrader/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `agent_id, venue, instrument, yes_quantity, no_quantity, updated_at`

func scanPositionRow(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var venue string

	err := row.Scan(
		&p.AgentID, &venue, &p.Instrument,
		&p.YesQuantity, &p.NoQuantity, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Position{}, err
	}
	p.Venue = domain.Venue(venue)
	return p, nil
}

// ApplyDelta upserts the position row and adds the signed delta to the
// matching outcome column. The row-level upsert serializes concurrent
// deltas on the same instrument.
func (s *PositionStore) ApplyDelta(ctx context.Context, d domain.PositionDelta) (domain.Position, error) {
	yes, no := d.Delta, decimal.Zero
	if d.Outcome == domain.OutcomeNo {
		yes, no = decimal.Zero, d.Delta
	}

	const query = `
		INSERT INTO positions (agent_id, venue, instrument, yes_quantity, no_quantity, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (agent_id, venue, instrument) DO UPDATE SET
			yes_quantity = positions.yes_quantity + EXCLUDED.yes_quantity,
			no_quantity  = positions.no_quantity + EXCLUDED.no_quantity,
			updated_at   = NOW()
		RETURNING ` + positionSelectCols

	row := s.pool.QueryRow(ctx, query,
		d.AgentID, string(d.Venue), d.Instrument, yes, no)

	p, err := scanPositionRow(row)
	if err != nil {
		return domain.Position{}, fmt.Errorf("postgres: apply position delta %s/%s: %w", d.AgentID, d.Instrument, err)
	}
	return p, nil
}

// Get retrieves a single position.
func (s *PositionStore) Get(ctx context.Context, agentID string, venue domain.Venue, instrument string) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE agent_id = $1 AND venue = $2 AND instrument = $3`,
		agentID, string(venue), instrument)

	p, err := scanPositionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s/%s: %w", agentID, instrument, err)
	}
	return p, nil
}

// ListByAgent returns the agent's non-flat positions.
func (s *PositionStore) ListByAgent(ctx context.Context, agentID string) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE agent_id = $1 AND (yes_quantity != 0 OR no_quantity != 0)
		 ORDER BY instrument`, agentID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		var venue string
		if err := rows.Scan(
			&p.AgentID, &venue, &p.Instrument,
			&p.YesQuantity, &p.NoQuantity, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		p.Venue = domain.Venue(venue)
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// DeleteFlat removes positions where both outcome quantities are zero,
// returning the number of rows removed.
func (s *PositionStore) DeleteFlat(ctx context.Context, agentID string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM positions
		 WHERE agent_id = $1 AND yes_quantity = 0 AND no_quantity = 0`, agentID)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete flat positions: %w", err)
	}
	return tag.RowsAffected(), nil
}
