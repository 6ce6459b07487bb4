package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/agentrader/internal/domain"
)

type fakePriceCache struct {
	prices map[string]decimal.Decimal
}

func (f *fakePriceCache) SetPrice(_ context.Context, venue domain.Venue, instrument string, price decimal.Decimal, _ time.Time) error {
	f.prices[string(venue)+":"+instrument] = price
	return nil
}

func (f *fakePriceCache) GetPrice(_ context.Context, venue domain.Venue, instrument string) (decimal.Decimal, time.Time, error) {
	price, ok := f.prices[string(venue)+":"+instrument]
	if !ok {
		return decimal.Zero, time.Time{}, domain.ErrNotFound
	}
	return price, time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC), nil
}

func priceProbe(t *testing.T, cache domain.PriceCache, venue, instrument string) *httptest.ResponseRecorder {
	t.Helper()
	h := NewPriceHandler(cache, slog.New(slog.DiscardHandler))
	req := httptest.NewRequest(http.MethodGet, "/api/prices/"+venue+"/"+instrument, nil)
	req.SetPathValue("venue", venue)
	req.SetPathValue("instrument", instrument)
	rec := httptest.NewRecorder()
	h.GetPrice(rec, req)
	return rec
}

func TestGetPriceReturnsCachedValue(t *testing.T) {
	cache := &fakePriceCache{prices: map[string]decimal.Decimal{
		"polymarket:123456789": decimal.RequireFromString("0.42"),
	}}

	rec := priceProbe(t, cache, "polymarket", "123456789")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "0.42", resp["price"])
	assert.Equal(t, "123456789", resp["instrument"])
}

func TestGetPriceUnknownVenueRejected(t *testing.T) {
	cache := &fakePriceCache{prices: map[string]decimal.Decimal{}}
	rec := priceProbe(t, cache, "kalshi", "abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPriceUnobservedInstrumentReturns404(t *testing.T) {
	cache := &fakePriceCache{prices: map[string]decimal.Decimal{}}
	rec := priceProbe(t, cache, "limitless", "will-it-rain")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
