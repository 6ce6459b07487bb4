package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/agentrader/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// PriceChange is one level update from the market channel, already
// parsed into canonical units.
type PriceChange struct {
	AssetID   string
	Side      string
	Price     decimal.Decimal
	Size      decimal.Decimal
	Timestamp time.Time
}

// PriceChangeHandler is called for every price level update.
type PriceChangeHandler func(PriceChange)

// LastTradeHandler is called for every executed trade on a watched asset.
type LastTradeHandler func(PriceChange)

type wsCommand struct {
	Type    string   `json:"type"`
	Channel string   `json:"channel"`
	Assets  []string `json:"assets_ids"`
}

type wsEnvelope struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Price     string `json:"price"`
	Side      string `json:"side"`
	Size      string `json:"size"`
	Timestamp string `json:"timestamp"`
	Changes   []struct {
		Price string `json:"price"`
		Side  string `json:"side"`
		Size  string `json:"size"`
	} `json:"changes"`
}

// WSClient is a client for the CLOB market-data WebSocket. It manages
// the connection, keep-alive, and subscription state, and dispatches
// price messages to registered handlers. It does not reconnect itself;
// the owner watches Done and redials.
type WSClient struct {
	wsURL string
	conn  *websocket.Conn

	mu     sync.RWMutex
	closed bool

	subscriptions []wsCommand

	handlerMu     sync.RWMutex
	priceHandlers []PriceChangeHandler
	tradeHandlers []LastTradeHandler

	done chan struct{}
}

// NewWSClient creates a client for the given WebSocket endpoint, e.g.
// "wss://ws-subscriptions-clob.polymarket.com/ws/market".
func NewWSClient(wsURL string) *WSClient {
	return &WSClient{
		wsURL: wsURL,
		done:  make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the read and
// ping loops. Previously registered subscriptions are restored.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("polymarket/ws: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("polymarket/ws: connect: %w", err)
	}

	w.conn = conn

	w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go w.readLoop()
	go w.pingLoop()

	for _, cmd := range w.subscriptions {
		if err := w.sendCommand(cmd); err != nil {
			return fmt.Errorf("polymarket/ws: restore subscription: %w", err)
		}
	}

	return nil
}

// SubscribeMarket subscribes to price_change and last_trade_price for
// the given token IDs.
func (w *WSClient) SubscribeMarket(assetIDs []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("polymarket/ws: not connected")
	}

	cmd := wsCommand{
		Type:    "subscribe",
		Channel: "market",
		Assets:  assetIDs,
	}
	if err := w.sendCommand(cmd); err != nil {
		return fmt.Errorf("polymarket/ws: subscribe market: %w", err)
	}

	w.subscriptions = append(w.subscriptions, cmd)
	return nil
}

// OnPriceChange registers a handler for price level updates.
func (w *WSClient) OnPriceChange(handler PriceChangeHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.priceHandlers = append(w.priceHandlers, handler)
}

// OnLastTrade registers a handler for executed trades.
func (w *WSClient) OnLastTrade(handler LastTradeHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.tradeHandlers = append(w.tradeHandlers, handler)
}

// Done is closed once the read loop has exited, whether by Close or by a
// connection failure.
func (w *WSClient) Done() <-chan struct{} {
	return w.done
}

// Close shuts down the connection and stops the loops.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.conn != nil {
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}
	return nil
}

// sendCommand sends a JSON command to the WebSocket. Caller must hold w.mu.
func (w *WSClient) sendCommand(cmd wsCommand) error {
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *WSClient) readLoop() {
	defer func() {
		select {
		case <-w.done:
		default:
			close(w.done)
		}
	}()

	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			return
		}
		w.dispatch(data)
	}
}

func (w *WSClient) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.mu.RLock()
			conn := w.conn
			w.mu.RUnlock()
			if conn == nil {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch parses one wire message and fans it out. The server batches
// some messages as JSON arrays, so both shapes are handled.
func (w *WSClient) dispatch(data []byte) {
	var envs []wsEnvelope
	if err := json.Unmarshal(data, &envs); err != nil {
		var env wsEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return
		}
		envs = []wsEnvelope{env}
	}

	for _, env := range envs {
		ts := parseWSTimestamp(env.Timestamp)

		switch env.EventType {
		case "price_change":
			for _, ch := range env.Changes {
				change, ok := parseChange(env.AssetID, ch.Side, ch.Price, ch.Size, ts)
				if !ok {
					continue
				}
				w.handlerMu.RLock()
				handlers := w.priceHandlers
				w.handlerMu.RUnlock()
				for _, h := range handlers {
					h(change)
				}
			}
		case "last_trade_price":
			change, ok := parseChange(env.AssetID, env.Side, env.Price, env.Size, ts)
			if !ok {
				continue
			}
			w.handlerMu.RLock()
			handlers := w.tradeHandlers
			w.handlerMu.RUnlock()
			for _, h := range handlers {
				h(change)
			}
		}
	}
}

func parseChange(assetID, side, price, size string, ts time.Time) (PriceChange, bool) {
	if assetID == "" || price == "" {
		return PriceChange{}, false
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return PriceChange{}, false
	}
	s := decimal.Zero
	if size != "" {
		if parsed, err := decimal.NewFromString(size); err == nil {
			s = parsed
		}
	}
	return PriceChange{
		AssetID:   assetID,
		Side:      side,
		Price:     p,
		Size:      s,
		Timestamp: ts,
	}, true
}

// parseWSTimestamp handles the millisecond-epoch strings the market
// channel sends, falling back to now.
func parseWSTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Now().UTC()
	}
	var ms int64
	if _, err := fmt.Sscanf(raw, "%d", &ms); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC()
	}
	return time.Now().UTC()
}
