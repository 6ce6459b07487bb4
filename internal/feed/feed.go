// Package feed turns real-time venue market data into signals on the
// shared bus. Signals only nudge scheduling: a lost or duplicate signal
// costs at most one extra or one delayed trading cycle.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/agentrader/internal/domain"
	"github.com/alanyoungcy/agentrader/internal/platform/polymarket"
)

const (
	// SignalChannel is the pub/sub channel trading signals fan out on.
	SignalChannel = "signals:market"

	// SignalStream is the durable stream signals are appended to.
	SignalStream = "stream:signals"

	reconnectDelay = 2 * time.Second
)

// SignalFeed watches the order-book venue's market WebSocket and
// publishes a MarketSignal for every price move on a watched instrument.
// It reconnects on disconnect and runs until its context is cancelled.
type SignalFeed struct {
	wsURL  string
	assets []string
	bus    domain.SignalBus
	prices domain.PriceCache
	logger *slog.Logger
}

// NewSignalFeed creates a feed for the given token IDs.
func NewSignalFeed(wsURL string, assets []string, bus domain.SignalBus, prices domain.PriceCache, logger *slog.Logger) *SignalFeed {
	return &SignalFeed{
		wsURL:  wsURL,
		assets: assets,
		bus:    bus,
		prices: prices,
		logger: logger.With(slog.String("component", "signal_feed")),
	}
}

// Run connects, subscribes, and republishes until ctx is cancelled.
func (f *SignalFeed) Run(ctx context.Context) error {
	if len(f.assets) == 0 {
		f.logger.Info("no instruments to watch, feed idle")
		<-ctx.Done()
		return ctx.Err()
	}

	for {
		if err := f.runConnection(ctx); err != nil && ctx.Err() == nil {
			f.logger.Warn("market feed disconnected, reconnecting",
				slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (f *SignalFeed) runConnection(ctx context.Context) error {
	client := polymarket.NewWSClient(f.wsURL)
	defer client.Close()

	client.OnPriceChange(func(change polymarket.PriceChange) {
		f.publish(ctx, "price_move", change)
	})
	client.OnLastTrade(func(change polymarket.PriceChange) {
		f.publish(ctx, "trade", change)
	})

	if err := client.Connect(ctx); err != nil {
		return err
	}
	if err := client.SubscribeMarket(f.assets); err != nil {
		return err
	}
	f.logger.Info("market feed subscribed", slog.Int("instruments", len(f.assets)))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-client.Done():
		return domain.ErrWSDisconnect
	}
}

func (f *SignalFeed) publish(ctx context.Context, kind string, change polymarket.PriceChange) {
	signal := domain.MarketSignal{
		ID:         uuid.NewString(),
		Venue:      domain.VenuePolymarket,
		Instrument: change.AssetID,
		Kind:       kind,
		Price:      change.Price,
		ObservedAt: change.Timestamp,
	}

	payload, err := json.Marshal(signal)
	if err != nil {
		f.logger.Warn("encode signal", slog.Any("error", err))
		return
	}

	if err := f.bus.Publish(ctx, SignalChannel, payload); err != nil {
		f.logger.Warn("publish signal", slog.Any("error", err))
	}
	if err := f.bus.StreamAppend(ctx, SignalStream, payload); err != nil {
		f.logger.Warn("append signal to stream", slog.Any("error", err))
	}

	if f.prices != nil {
		if err := f.prices.SetPrice(ctx, signal.Venue, signal.Instrument, signal.Price, signal.ObservedAt); err != nil {
			f.logger.Debug("cache price", slog.Any("error", err))
		}
	}
}
