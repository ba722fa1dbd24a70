package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
)

// Relay bridges the engine's event bus to the notification channels. It
// subscribes to the trade and halt channels and forwards each event through
// the Notifier's filter.
type Relay struct {
	bus      domain.EventBus
	notifier *Notifier
	logger   *slog.Logger

	tradeChannel string
	haltChannel  string
}

// NewRelay creates a Relay reading trade and halt events from the given bus
// channels.
func NewRelay(bus domain.EventBus, notifier *Notifier, tradeChannel, haltChannel string, logger *slog.Logger) *Relay {
	return &Relay{
		bus:          bus,
		notifier:     notifier,
		logger:       logger.With(slog.String("component", "notify_relay")),
		tradeChannel: tradeChannel,
		haltChannel:  haltChannel,
	}
}

// Run consumes events until the context is cancelled. Malformed payloads and
// delivery failures are logged and skipped; the relay never stops the engine.
func (r *Relay) Run(ctx context.Context) error {
	trades, err := r.bus.Subscribe(ctx, r.tradeChannel)
	if err != nil {
		return fmt.Errorf("notify: subscribe %s: %w", r.tradeChannel, err)
	}
	halts, err := r.bus.Subscribe(ctx, r.haltChannel)
	if err != nil {
		return fmt.Errorf("notify: subscribe %s: %w", r.haltChannel, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-trades:
			if !ok {
				return nil
			}
			r.handleTrade(ctx, payload)
		case payload, ok := <-halts:
			if !ok {
				return nil
			}
			r.handleHalt(ctx, payload)
		}
	}
}

func (r *Relay) handleTrade(ctx context.Context, payload []byte) {
	var ev domain.TradeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		r.logger.WarnContext(ctx, "malformed trade event", slog.String("error", err.Error()))
		return
	}

	switch ev.Type {
	case domain.TradeEventOpened:
		if ev.Open == nil {
			return
		}
		title := fmt.Sprintf("Position opened (%s)", ev.Mode)
		msg := fmt.Sprintf("window %s\nside %s @ %.3f\nstake %.2f (confidence %.0f%%)",
			ev.Open.WindowID, ev.Open.Side, ev.Open.Entry, ev.Open.Stake, ev.Open.Confidence)
		r.deliver(ctx, "position_opened", title, msg)
	case domain.TradeEventSettled:
		if ev.Trade == nil {
			return
		}
		title := fmt.Sprintf("Trade %s (%s)", ev.Trade.Outcome, ev.Mode)
		msg := fmt.Sprintf("window %s\nside %s @ %.3f\npnl %+.2f, balance %.2f",
			ev.Trade.Position.WindowID, ev.Trade.Position.Side, ev.Trade.Position.Entry,
			ev.Trade.PnL, ev.Trade.BalanceAfter)
		r.deliver(ctx, "trade_settled", title, msg)
	}
}

func (r *Relay) handleHalt(ctx context.Context, payload []byte) {
	var ev domain.HaltEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		r.logger.WarnContext(ctx, "malformed halt event", slog.String("error", err.Error()))
		return
	}

	if ev.Halted {
		title := fmt.Sprintf("Trading halted (%s)", ev.Mode)
		r.deliver(ctx, "halt", title, ev.Reason)
		return
	}
	r.deliver(ctx, "halt", fmt.Sprintf("Trading resumed (%s)", ev.Mode), "protection cleared")
}

func (r *Relay) deliver(ctx context.Context, event, title, message string) {
	if err := r.notifier.Notify(ctx, event, title, message); err != nil {
		r.logger.ErrorContext(ctx, "notification delivery failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
