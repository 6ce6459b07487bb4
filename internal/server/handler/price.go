package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/agentrader/internal/domain"
)

// PriceHandler serves the last observed price per instrument, fed by the
// market data feed.
type PriceHandler struct {
	prices domain.PriceCache
	logger *slog.Logger
}

// NewPriceHandler creates a PriceHandler over the given price cache.
func NewPriceHandler(prices domain.PriceCache, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{prices: prices, logger: logger}
}

// GetPrice returns the cached price for one instrument.
// GET /api/prices/{venue}/{instrument}
func (h *PriceHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	venue := domain.Venue(r.PathValue("venue"))
	if venue != domain.VenueLimitless && venue != domain.VenuePolymarket {
		writeError(w, http.StatusBadRequest, "unknown venue")
		return
	}
	instrument := r.PathValue("instrument")
	if instrument == "" {
		writeError(w, http.StatusBadRequest, "instrument is required")
		return
	}

	price, observedAt, err := h.prices.GetPrice(r.Context(), venue, instrument)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no price observed for instrument")
			return
		}
		h.logger.ErrorContext(r.Context(), "read price",
			slog.String("venue", string(venue)),
			slog.String("instrument", instrument),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read price")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"venue":       venue,
		"instrument":  instrument,
		"price":       price.String(),
		"observed_at": observedAt.UTC().Format(time.RFC3339),
	})
}
