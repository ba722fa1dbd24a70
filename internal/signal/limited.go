// Package signal provides SignalSource implementations and decorators: an
// HTTP-backed prediction client and a rate-limited caching wrapper.
package signal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
)

// rateLimitKey buckets all upstream prediction calls together.
const rateLimitKey = "signal:predict"

// PredictionCache is the subset of the Redis prediction cache the decorator
// needs.
type PredictionCache interface {
	Get(ctx context.Context, windowID string) (domain.Prediction, error)
	Set(ctx context.Context, windowID string, p domain.Prediction, ttl time.Duration) error
}

// LimitedConfig tunes the rate-limited decorator.
type LimitedConfig struct {
	MaxRequests int
	Window      time.Duration
	CacheTTL    time.Duration
}

// Limited wraps a SignalSource with a sliding-window rate limit and a
// per-window prediction cache. When the upstream is rate limited or fails,
// the most recent cached prediction for the same window is returned with its
// Stale flag set; with no cached fallback the error propagates.
type Limited struct {
	inner   domain.SignalSource
	limiter domain.RateLimiter
	cache   PredictionCache
	cfg     LimitedConfig
	logger  *slog.Logger
}

// NewLimited creates the decorator around inner.
func NewLimited(inner domain.SignalSource, limiter domain.RateLimiter, cache PredictionCache, cfg LimitedConfig, logger *slog.Logger) *Limited {
	return &Limited{
		inner:   inner,
		limiter: limiter,
		cache:   cache,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "signal_limiter")),
	}
}

// Predict implements domain.SignalSource.
func (l *Limited) Predict(ctx context.Context, tick domain.MarketTick, learningContext string) (domain.Prediction, error) {
	allowed, err := l.limiter.Allow(ctx, rateLimitKey, l.cfg.MaxRequests, l.cfg.Window)
	if err != nil {
		// A broken limiter should not take the tick loop down with it.
		l.logger.Warn("rate limiter unavailable, allowing request", slog.String("error", err.Error()))
		allowed = true
	}

	if !allowed {
		if cached, ok := l.cached(ctx, tick.WindowID); ok {
			return cached, nil
		}
		return domain.Prediction{}, fmt.Errorf("signal: predict %s: %w", tick.WindowID, domain.ErrRateLimited)
	}

	p, err := l.inner.Predict(ctx, tick, learningContext)
	if err != nil {
		if cached, ok := l.cached(ctx, tick.WindowID); ok {
			l.logger.Warn("upstream prediction failed, serving cached",
				slog.String("window_id", tick.WindowID),
				slog.String("error", err.Error()))
			return cached, nil
		}
		return domain.Prediction{}, err
	}

	if cacheErr := l.cache.Set(ctx, tick.WindowID, p, l.cfg.CacheTTL); cacheErr != nil {
		l.logger.Warn("failed to cache prediction", slog.String("error", cacheErr.Error()))
	}
	return p, nil
}

// cached fetches the window's last prediction and marks it stale.
func (l *Limited) cached(ctx context.Context, windowID string) (domain.Prediction, bool) {
	p, err := l.cache.Get(ctx, windowID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			l.logger.Warn("prediction cache read failed", slog.String("error", err.Error()))
		}
		return domain.Prediction{}, false
	}
	p.Stale = true
	return p, true
}

// Compile-time interface check.
var _ domain.SignalSource = (*Limited)(nil)
