package app

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/agentrader/internal/config"
	"github.com/alanyoungcy/agentrader/internal/domain"
)

// fakeSessionStore scripts the active-session read and records creates.
type fakeSessionStore struct {
	active    *domain.TradingSession
	createErr error
	created   []domain.TradingSession
}

func (s *fakeSessionStore) GetActive(context.Context) (domain.TradingSession, error) {
	if s.active == nil {
		return domain.TradingSession{}, domain.ErrNoActiveSession
	}
	return *s.active, nil
}

func (s *fakeSessionStore) GetByID(_ context.Context, id string) (domain.TradingSession, error) {
	return domain.TradingSession{}, domain.ErrNotFound
}

func (s *fakeSessionStore) Create(_ context.Context, session domain.TradingSession) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, session)
	return nil
}

func newTestApp() *App {
	cfg := config.Defaults()
	return New(&cfg, slog.New(slog.DiscardHandler))
}

func TestEnsureActiveSessionReusesExisting(t *testing.T) {
	store := &fakeSessionStore{active: &domain.TradingSession{ID: "sess-1", Status: "active"}}
	deps := &Dependencies{Sessions: store}

	require.NoError(t, newTestApp().ensureActiveSession(context.Background(), deps))
	assert.Empty(t, store.created)
}

func TestEnsureActiveSessionCreatesWhenMissing(t *testing.T) {
	store := &fakeSessionStore{}
	deps := &Dependencies{Sessions: store}

	require.NoError(t, newTestApp().ensureActiveSession(context.Background(), deps))
	require.Len(t, store.created, 1)
	assert.Equal(t, "active", store.created[0].Status)
	assert.NotEmpty(t, store.created[0].ID)
}

func TestEnsureActiveSessionToleratesCreationRace(t *testing.T) {
	// Another process created the session between the read and the insert;
	// the unique-violation mapping makes that benign.
	store := &fakeSessionStore{createErr: domain.ErrAlreadyExists}
	deps := &Dependencies{Sessions: store}

	require.NoError(t, newTestApp().ensureActiveSession(context.Background(), deps))
}
