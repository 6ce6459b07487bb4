package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/agentrader/internal/domain"
)

// SessionHandler serves the trading session and leaderboard endpoints.
type SessionHandler struct {
	sessions      domain.TradingSessionStore
	agentSessions domain.AgentSessionStore
	logger        *slog.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(sessions domain.TradingSessionStore, agentSessions domain.AgentSessionStore, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions:      sessions,
		agentSessions: agentSessions,
		logger:        logger.With(slog.String("handler", "session")),
	}
}

type sessionResponse struct {
	Session domain.TradingSession `json:"session"`
	Agents  []agentSessionView    `json:"agents"`
}

type agentSessionView struct {
	AgentID         string `json:"agent_id"`
	Model           string `json:"model"`
	StartingCapital string `json:"starting_capital"`
	CurrentValue    string `json:"current_value"`
	BaseAddress     string `json:"base_address"`
	PolygonAddress  string `json:"polygon_address"`
}

// GetActive returns the active trading session with its per-agent
// sub-sessions ordered by current value.
// GET /api/session
func (h *SessionHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.GetActive(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveSession) {
			writeError(w, http.StatusNotFound, "no active trading session")
			return
		}
		h.logger.Error("get active session", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	agents, err := h.agentSessions.List(r.Context(), session.ID)
	if err != nil {
		h.logger.Error("list agent sessions", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to load agent sessions")
		return
	}

	views := make([]agentSessionView, 0, len(agents))
	for _, a := range agents {
		views = append(views, agentSessionView{
			AgentID:         a.AgentID,
			Model:           a.Model,
			StartingCapital: a.StartingCapital.String(),
			CurrentValue:    a.CurrentValue.String(),
			BaseAddress:     a.BaseAddress,
			PolygonAddress:  a.PolygonAddress,
		})
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Session: session,
		Agents:  views,
	})
}
