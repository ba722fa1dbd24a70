package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/cache/redis"
	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/engine"
)

// Ticker drives the engine at a fixed cadence: assemble the atomic snapshot
// from the market feed and signal source, feed it to the engine, then publish
// the refreshed projection and any lifecycle events to the bus. The engine
// stays single-owner; all concurrency lives here.
type Ticker struct {
	engine      *engine.Engine
	feed        domain.MarketFeed
	signals     domain.SignalSource
	projections *redis.ProjectionCache
	bus         domain.EventBus
	interval    time.Duration
	logger      *slog.Logger

	prev *domain.StateProjection
}

// NewTicker creates a Ticker. projections and bus may be nil; the loop then
// only drives the engine.
func NewTicker(
	eng *engine.Engine,
	feed domain.MarketFeed,
	signals domain.SignalSource,
	projections *redis.ProjectionCache,
	bus domain.EventBus,
	interval time.Duration,
	logger *slog.Logger,
) *Ticker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Ticker{
		engine:      eng,
		feed:        feed,
		signals:     signals,
		projections: projections,
		bus:         bus,
		interval:    interval,
		logger:      logger.With(slog.String("component", "ticker"), slog.String("mode", string(eng.Mode()))),
	}
}

// Run ticks immediately and then at the configured interval until the
// context is cancelled. Individual tick failures are logged and skipped; the
// loop itself only stops with the context.
func (t *Ticker) Run(ctx context.Context) error {
	t.logger.InfoContext(ctx, "tick loop started", slog.Duration("interval", t.interval))
	defer t.logger.Info("tick loop stopped")

	t.step(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.step(ctx)
		}
	}
}

// step runs one tick end to end.
func (t *Ticker) step(ctx context.Context) {
	tick, err := t.feed.Tick(ctx)
	if err != nil {
		t.logger.WarnContext(ctx, "market feed unavailable", slog.String("error", err.Error()))
		return
	}

	// A failed prediction never blocks the tick: settlement must still be
	// evaluated, so the engine gets an unknown direction and skips entry.
	pred, err := t.signals.Predict(ctx, tick, t.engine.LearningContext())
	if err != nil {
		t.logger.WarnContext(ctx, "prediction unavailable", slog.String("error", err.Error()))
		pred = domain.Prediction{Direction: domain.DirectionUnknown}
	}

	proj, err := t.engine.Tick(ctx, domain.TickSnapshot{Market: tick, Prediction: pred})
	if err != nil {
		t.logger.WarnContext(ctx, "engine tick rejected", slog.String("error", err.Error()))
		return
	}

	t.publish(ctx, &proj)
	t.prev = &proj
}

// publish pushes the projection to the cache and bus and derives lifecycle
// events by diffing against the previous projection. Publish failures are
// logged; the engine state is already durable.
func (t *Ticker) publish(ctx context.Context, proj *domain.StateProjection) {
	if t.projections != nil {
		if err := t.projections.Set(ctx, proj.Mode, proj); err != nil {
			t.logger.WarnContext(ctx, "projection cache update failed", slog.String("error", err.Error()))
		}
	}
	if t.bus == nil {
		return
	}

	t.publishJSON(ctx, redis.ChannelProjection, proj)

	if trade := t.newlySettled(proj); trade != nil {
		t.publishJSON(ctx, redis.ChannelSettlement, domain.TradeEvent{
			Type:  domain.TradeEventSettled,
			Mode:  proj.Mode,
			Trade: trade,
		})
	}
	if t.newlyOpened(proj) {
		t.publishJSON(ctx, redis.ChannelSettlement, domain.TradeEvent{
			Type: domain.TradeEventOpened,
			Mode: proj.Mode,
			Open: proj.Open,
		})
	}
	if t.prev != nil && t.prev.Protection.Halted != proj.Protection.Halted {
		t.publishJSON(ctx, redis.ChannelHalt, domain.HaltEvent{
			Mode:   proj.Mode,
			Halted: proj.Protection.Halted,
			Reason: proj.Protection.Reason,
		})
	}
}

// newlySettled returns the trade that settled since the previous projection,
// or nil.
func (t *Ticker) newlySettled(proj *domain.StateProjection) *domain.SettledTrade {
	if len(proj.RecentTrades) == 0 {
		return nil
	}
	// No baseline on the first tick after start; history may be restored.
	if t.prev == nil || decided(t.prev) == decided(proj) {
		return nil
	}
	trade := proj.RecentTrades[len(proj.RecentTrades)-1]
	return &trade
}

func (t *Ticker) newlyOpened(proj *domain.StateProjection) bool {
	if proj.Open == nil {
		return false
	}
	return t.prev == nil || t.prev.Open == nil || t.prev.Open.WindowID != proj.Open.WindowID
}

func decided(p *domain.StateProjection) int {
	return p.Wins + p.Losses + p.Voids
}

func (t *Ticker) publishJSON(ctx context.Context, channel string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		t.logger.ErrorContext(ctx, "event marshal failed", slog.String("channel", channel), slog.String("error", err.Error()))
		return
	}
	if err := t.bus.Publish(ctx, channel, data); err != nil {
		t.logger.WarnContext(ctx, "event publish failed", slog.String("channel", channel), slog.String("error", err.Error()))
	}
}
