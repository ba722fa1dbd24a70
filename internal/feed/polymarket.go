// Package feed assembles the per-tick market view of the current
// fixed-duration prediction window: window discovery via the Gamma API, live
// outcome prices from the CLOB WebSocket when available, and the settlement
// delta computed from a spot-price reference captured when the window is
// first observed.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/platform/polymarket"
)

// WindowSource discovers the live market of a recurring window series.
type WindowSource interface {
	CurrentWindow(ctx context.Context, series string, now time.Time) (polymarket.WindowMarket, error)
}

// SpotSource supplies the coin's current spot price.
type SpotSource interface {
	Price(ctx context.Context) (float64, error)
}

// QuoteStream is a live best bid/ask stream for outcome tokens. Optional; the
// feed falls back to the discovery prices when no stream is wired.
type QuoteStream interface {
	Connect(ctx context.Context) error
	SubscribeBook(ctx context.Context, assetIDs []string) error
	UnsubscribeBook(ctx context.Context, assetIDs []string) error
	OnQuote(handler polymarket.QuoteHandler)
	Close() error
}

// SeriesSlug builds the recurring-market series slug for a coin and window
// length, e.g. ("BTC", 15) -> "btc-up-or-down-15m".
func SeriesSlug(coin string, windowMinutes int) string {
	return fmt.Sprintf("%s-up-or-down-%dm", strings.ToLower(coin), windowMinutes)
}

// windowState is the feed's view of one window: the discovered market plus
// the spot reference price the delta is measured against. The reference stays
// nil until a spot read succeeds, and the delta stays nil with it.
type windowState struct {
	market   polymarket.WindowMarket
	refPrice *float64
}

// Feed implements domain.MarketFeed by polling the Gamma API for the current
// window and overlaying live WebSocket quotes when a stream is attached.
type Feed struct {
	windows WindowSource
	spot    SpotSource
	stream  QuoteStream
	series  string
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	current *windowState
	quotes  map[string]polymarket.Quote
}

// Options carries the feed's optional collaborators.
type Options struct {
	// Stream, when set, supplies live best bid/ask quotes for the current
	// window's outcome tokens.
	Stream QuoteStream
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// New creates a Feed for the given series.
func New(windows WindowSource, spot SpotSource, series string, logger *slog.Logger, opts Options) *Feed {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Feed{
		windows: windows,
		spot:    spot,
		stream:  opts.Stream,
		series:  series,
		logger:  logger.With(slog.String("component", "feed")),
		now:     clock,
		quotes:  make(map[string]polymarket.Quote),
	}
}

// Start connects the quote stream, if any, and registers the quote handler.
// Call before the first Tick; Close releases the stream.
func (f *Feed) Start(ctx context.Context) error {
	if f.stream == nil {
		return nil
	}
	f.stream.OnQuote(func(q polymarket.Quote) {
		if q.Mid <= 0 {
			return
		}
		f.mu.Lock()
		f.quotes[q.AssetID] = q
		f.mu.Unlock()
	})
	if err := f.stream.Connect(ctx); err != nil {
		return fmt.Errorf("feed: connect quote stream: %w", err)
	}
	return nil
}

// Close releases the quote stream, if any.
func (f *Feed) Close() error {
	if f.stream == nil {
		return nil
	}
	return f.stream.Close()
}

// Tick returns the market view of the current window. The window identifier
// is the market slug; the delta is spot minus the reference price captured
// when this window was first observed, nil until both are known.
func (f *Feed) Tick(ctx context.Context) (domain.MarketTick, error) {
	now := f.now()

	market, err := f.windows.CurrentWindow(ctx, f.series, now)
	if err != nil {
		return domain.MarketTick{}, fmt.Errorf("feed: discover window: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.current == nil || f.current.market.Slug != market.Slug {
		f.rollWindowLocked(ctx, market)
	} else {
		// Refresh discovery prices within the window.
		f.current.market.UpPrice = market.UpPrice
		f.current.market.DownPrice = market.DownPrice
	}

	spot, spotErr := f.spot.Price(ctx)
	if spotErr != nil {
		f.logger.WarnContext(ctx, "spot price unavailable", slog.String("error", spotErr.Error()))
	} else if f.current.refPrice == nil {
		ref := spot
		f.current.refPrice = &ref
		f.logger.InfoContext(ctx, "window reference price captured",
			slog.String("window", market.Slug),
			slog.Float64("reference", ref),
		)
	}

	tick := domain.MarketTick{
		WindowID:   market.Slug,
		UpPrice:    f.priceLocked(f.current.market.UpToken, f.current.market.UpPrice),
		DownPrice:  f.priceLocked(f.current.market.DownToken, f.current.market.DownPrice),
		ObservedAt: now,
	}
	if remaining := market.EndAt.Sub(now).Minutes(); remaining > 0 {
		tick.TimeRemaining = remaining
	}
	if f.current.refPrice != nil && spotErr == nil {
		d := spot - *f.current.refPrice
		tick.Delta = &d
	}
	return tick, nil
}

// rollWindowLocked switches the feed to a newly discovered window: swap the
// stream subscription to the new outcome tokens and drop the old reference
// price and quotes.
func (f *Feed) rollWindowLocked(ctx context.Context, market polymarket.WindowMarket) {
	if f.stream != nil {
		if f.current != nil {
			old := []string{f.current.market.UpToken, f.current.market.DownToken}
			if err := f.stream.UnsubscribeBook(ctx, old); err != nil {
				f.logger.WarnContext(ctx, "unsubscribe expired window failed", slog.String("error", err.Error()))
			}
		}
		next := []string{market.UpToken, market.DownToken}
		if err := f.stream.SubscribeBook(ctx, next); err != nil {
			f.logger.WarnContext(ctx, "subscribe new window failed", slog.String("error", err.Error()))
		}
	}
	f.current = &windowState{market: market}
	f.quotes = make(map[string]polymarket.Quote)
	f.logger.InfoContext(ctx, "window rolled",
		slog.String("window", market.Slug),
		slog.Time("ends_at", market.EndAt),
	)
}

// priceLocked prefers the live quote mid for a token, falling back to the
// discovery price.
func (f *Feed) priceLocked(token string, fallback float64) float64 {
	if q, ok := f.quotes[token]; ok && q.Mid > 0 {
		return q.Mid
	}
	return fallback
}

// TokenFor maps a trade side onto the current window's outcome token. Used
// by the order venue's token resolver in real mode.
func (f *Feed) TokenFor(side domain.Side) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return "", errors.New("feed: no window discovered yet")
	}
	if side == domain.SideLong {
		return f.current.market.UpToken, nil
	}
	return f.current.market.DownToken, nil
}

var _ domain.MarketFeed = (*Feed)(nil)
