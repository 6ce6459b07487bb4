package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/agentrader/internal/domain"
)

// TradingSessionStore implements domain.TradingSessionStore using PostgreSQL.
type TradingSessionStore struct {
	pool *pgxpool.Pool
}

// NewTradingSessionStore creates a TradingSessionStore backed by the given pool.
func NewTradingSessionStore(pool *pgxpool.Pool) *TradingSessionStore {
	return &TradingSessionStore{pool: pool}
}

const sessionSelectCols = `id, label, status, started_at`

func scanSessionRow(row pgx.Row) (domain.TradingSession, error) {
	var s domain.TradingSession
	err := row.Scan(&s.ID, &s.Label, &s.Status, &s.StartedAt)
	if err != nil {
		return domain.TradingSession{}, err
	}
	return s, nil
}

// GetActive returns the single active session. A partial unique index
// guarantees at most one row has status 'active'.
func (s *TradingSessionStore) GetActive(ctx context.Context) (domain.TradingSession, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sessionSelectCols+` FROM trading_sessions WHERE status = 'active'`)

	session, err := scanSessionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TradingSession{}, domain.ErrNoActiveSession
		}
		return domain.TradingSession{}, fmt.Errorf("postgres: get active session: %w", err)
	}
	return session, nil
}

// GetByID retrieves a session by its ID.
func (s *TradingSessionStore) GetByID(ctx context.Context, id string) (domain.TradingSession, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sessionSelectCols+` FROM trading_sessions WHERE id = $1`, id)

	session, err := scanSessionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TradingSession{}, domain.ErrNotFound
		}
		return domain.TradingSession{}, fmt.Errorf("postgres: get session %s: %w", id, err)
	}
	return session, nil
}

// Create inserts a new trading session. Inserting a second active
// session violates the one-active partial index and reports
// domain.ErrAlreadyExists.
func (s *TradingSessionStore) Create(ctx context.Context, session domain.TradingSession) error {
	const query = `
		INSERT INTO trading_sessions (id, label, status, started_at)
		VALUES ($1, $2, $3, $4)`

	_, err := s.pool.Exec(ctx, query,
		session.ID, session.Label, session.Status, session.StartedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return fmt.Errorf("postgres: create session %s: %w", session.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create session %s: %w", session.ID, err)
	}
	return nil
}

// AgentSessionStore implements domain.AgentSessionStore using PostgreSQL.
type AgentSessionStore struct {
	pool *pgxpool.Pool
}

// NewAgentSessionStore creates an AgentSessionStore backed by the given pool.
func NewAgentSessionStore(pool *pgxpool.Pool) *AgentSessionStore {
	return &AgentSessionStore{pool: pool}
}

const agentSessionSelectCols = `id, session_id, agent_id, model,
	starting_capital, current_value, base_address, polygon_address,
	created_at, updated_at`

func scanAgentSessionRow(row pgx.Row) (domain.AgentSession, error) {
	var s domain.AgentSession
	err := row.Scan(
		&s.ID, &s.SessionID, &s.AgentID, &s.Model,
		&s.StartingCapital, &s.CurrentValue,
		&s.BaseAddress, &s.PolygonAddress,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return domain.AgentSession{}, err
	}
	return s, nil
}

// Upsert creates the sub-session on first use. On conflict with the
// (session_id, agent_id, model) key the insert is a no-op update that
// leaves the existing row untouched, and the existing row is returned,
// so workflow step replays always observe the original starting capital.
func (s *AgentSessionStore) Upsert(ctx context.Context, session domain.AgentSession) (domain.AgentSession, error) {
	const query = `
		INSERT INTO agent_sessions (
			id, session_id, agent_id, model,
			starting_capital, current_value, base_address, polygon_address,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (session_id, agent_id, model) DO UPDATE
			SET updated_at = NOW()
		RETURNING ` + agentSessionSelectCols

	row := s.pool.QueryRow(ctx, query,
		session.ID, session.SessionID, session.AgentID, session.Model,
		session.StartingCapital, session.CurrentValue,
		session.BaseAddress, session.PolygonAddress,
	)

	created, err := scanAgentSessionRow(row)
	if err != nil {
		return domain.AgentSession{}, fmt.Errorf("postgres: upsert agent session: %w", err)
	}
	return created, nil
}

// GetByAgent retrieves the agent's sub-session within a trading session.
func (s *AgentSessionStore) GetByAgent(ctx context.Context, sessionID, agentID string) (domain.AgentSession, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+agentSessionSelectCols+` FROM agent_sessions
		 WHERE session_id = $1 AND agent_id = $2`, sessionID, agentID)

	session, err := scanAgentSessionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AgentSession{}, domain.ErrNotFound
		}
		return domain.AgentSession{}, fmt.Errorf("postgres: get agent session %s/%s: %w", sessionID, agentID, err)
	}
	return session, nil
}

// UpdateValue refreshes the sub-session's current portfolio value.
func (s *AgentSessionStore) UpdateValue(ctx context.Context, id string, balances domain.ChainBalances) error {
	const query = `
		UPDATE agent_sessions SET
			current_value = $2,
			updated_at    = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, balances.Total())
	if err != nil {
		return fmt.Errorf("postgres: update agent session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns every sub-session in the trading session, best performer first.
func (s *AgentSessionStore) List(ctx context.Context, sessionID string) ([]domain.AgentSession, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+agentSessionSelectCols+` FROM agent_sessions
		 WHERE session_id = $1
		 ORDER BY current_value DESC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list agent sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.AgentSession
	for rows.Next() {
		var s domain.AgentSession
		if err := rows.Scan(
			&s.ID, &s.SessionID, &s.AgentID, &s.Model,
			&s.StartingCapital, &s.CurrentValue,
			&s.BaseAddress, &s.PolygonAddress,
			&s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan agent session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
