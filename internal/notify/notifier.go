// Package notify delivers operator alerts over one or more channels
// (Telegram, Discord). Events can be filtered so operators receive only
// the alerts they care about; attestation timeouts always go out, since
// they require a manual completion step.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/agentrader/internal/domain"
)

// Event types emitted by the trading system.
const (
	EventTradeExecuted      = "trade_executed"
	EventBridgeCompleted    = "bridge_completed"
	EventAttestationTimeout = "attestation_timeout"
	EventRunFailed          = "run_failed"
)

// Sender is one delivery channel.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches notifications to all registered senders, filtered
// by event type. NotifyAll bypasses the filter.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. Only
// events named in the events slice pass the filter; an empty slice
// allows everything.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify sends to all senders if the event type passes the filter.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", event),
		)
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// NotifyAll sends to all senders regardless of event type.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, title, message)
}

// TradeExecuted reports a recorded trade.
func (n *Notifier) TradeExecuted(ctx context.Context, t domain.TradeRecord) error {
	return n.Notify(ctx, EventTradeExecuted,
		fmt.Sprintf("Trade: %s %s", t.Action, t.Instrument),
		fmt.Sprintf("agent %s %s %s %s @ %s on %s (notional %s USDC)",
			t.AgentID, t.Action, t.Quantity, t.Outcome, t.Price, t.Venue, t.Notional))
}

// BridgeCompleted reports a finished cross-chain transfer.
func (n *Notifier) BridgeCompleted(ctx context.Context, tr domain.BridgeTransfer) error {
	return n.Notify(ctx, EventBridgeCompleted,
		fmt.Sprintf("Bridge %s -> %s completed", tr.SourceChain, tr.DestChain),
		fmt.Sprintf("%s USDC moved, source tx %s", tr.Amount, tr.SourceTx))
}

// AttestationTimeout reports a withdrawal stuck waiting for attestation.
// It bypasses the event filter: funds are burned on the source chain and
// an operator must complete the mint manually with the burn tx.
func (n *Notifier) AttestationTimeout(ctx context.Context, tr domain.BridgeTransfer) error {
	return n.NotifyAll(ctx,
		"Withdrawal attestation timed out",
		fmt.Sprintf("%s USDC burned in tx %s but no attestation arrived; complete the mint manually", tr.Amount, tr.SourceTx))
}

// RunFailed reports a failed workflow run.
func (n *Notifier) RunFailed(ctx context.Context, agentID, runID, reason string) error {
	return n.Notify(ctx, EventRunFailed,
		fmt.Sprintf("Run failed: %s", agentID),
		fmt.Sprintf("run %s: %s", runID, reason))
}

// dispatch sends to every sender, collecting failures so one broken
// channel never blocks the others.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
				slog.String("title", title),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
