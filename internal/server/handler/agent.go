package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/agentrader/internal/domain"
	"github.com/alanyoungcy/agentrader/internal/wallet"
)

// BalanceReader reads an address's USDC balance on one chain.
type BalanceReader interface {
	USDCBalance(ctx context.Context, owner string) (decimal.Decimal, error)
}

// AgentHandler serves the per-agent read endpoints: balances, positions,
// and trade history.
type AgentHandler struct {
	registry  *wallet.Registry
	positions domain.PositionStore
	trades    domain.TradeStore
	decisions domain.DecisionStore
	base      BalanceReader
	polygon   BalanceReader
	logger    *slog.Logger
}

// NewAgentHandler creates an AgentHandler.
func NewAgentHandler(registry *wallet.Registry, positions domain.PositionStore, trades domain.TradeStore, decisions domain.DecisionStore, base, polygon BalanceReader, logger *slog.Logger) *AgentHandler {
	return &AgentHandler{
		registry:  registry,
		positions: positions,
		trades:    trades,
		decisions: decisions,
		base:      base,
		polygon:   polygon,
		logger:    logger.With(slog.String("handler", "agent")),
	}
}

// GetBalances reads the agent's live USDC balances from both chains.
// GET /api/agents/{id}/balances
func (h *AgentHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")

	caps, err := h.registry.Capabilities(agentID)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownAgent) {
			writeError(w, http.StatusNotFound, "unknown agent")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to resolve agent")
		return
	}

	base, err := h.base.USDCBalance(r.Context(), caps.BaseAddress())
	if err != nil {
		h.logger.Error("base balance", slog.String("agent", agentID), slog.Any("error", err))
		writeError(w, http.StatusBadGateway, "failed to read base balance")
		return
	}
	polygon, err := h.polygon.USDCBalance(r.Context(), caps.PolygonAddress())
	if err != nil {
		h.logger.Error("polygon balance", slog.String("agent", agentID), slog.Any("error", err))
		writeError(w, http.StatusBadGateway, "failed to read polygon balance")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"agent_id": agentID,
		"base":     base.String(),
		"polygon":  polygon.String(),
		"total":    base.Add(polygon).String(),
	})
}

// ListPositions returns the agent's non-flat positions.
// GET /api/agents/{id}/positions
func (h *AgentHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")

	positions, err := h.positions.ListByAgent(r.Context(), agentID)
	if err != nil {
		h.logger.Error("list positions", slog.String("agent", agentID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to load positions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"agent_id":  agentID,
		"positions": positions,
	})
}

// ListTrades returns the agent's trade history, newest first.
// GET /api/agents/{id}/trades
func (h *AgentHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")

	trades, err := h.trades.ListByAgent(r.Context(), agentID, parseListOpts(r))
	if err != nil {
		h.logger.Error("list trades", slog.String("agent", agentID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to load trades")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"agent_id": agentID,
		"trades":   trades,
	})
}

// ListDecisions returns the agent's decision history, newest first.
// GET /api/agents/{id}/decisions
func (h *AgentHandler) ListDecisions(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")

	decisions, err := h.decisions.ListByAgent(r.Context(), agentID, parseListOpts(r))
	if err != nil {
		h.logger.Error("list decisions", slog.String("agent", agentID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to load decisions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"agent_id":  agentID,
		"decisions": decisions,
	})
}
