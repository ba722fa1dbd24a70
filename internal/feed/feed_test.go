package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/platform/polymarket"
)

type stubWindows struct {
	market polymarket.WindowMarket
	err    error
}

func (s *stubWindows) CurrentWindow(context.Context, string, time.Time) (polymarket.WindowMarket, error) {
	return s.market, s.err
}

type stubSpot struct {
	price float64
	err   error
}

func (s *stubSpot) Price(context.Context) (float64, error) {
	return s.price, s.err
}

type stubStream struct {
	handler    polymarket.QuoteHandler
	subscribed [][]string
	removed    [][]string
}

func (s *stubStream) Connect(context.Context) error { return nil }
func (s *stubStream) Close() error                  { return nil }

func (s *stubStream) SubscribeBook(_ context.Context, ids []string) error {
	s.subscribed = append(s.subscribed, ids)
	return nil
}

func (s *stubStream) UnsubscribeBook(_ context.Context, ids []string) error {
	s.removed = append(s.removed, ids)
	return nil
}

func (s *stubStream) OnQuote(h polymarket.QuoteHandler) { s.handler = h }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMarket(slug string, endAt time.Time) polymarket.WindowMarket {
	return polymarket.WindowMarket{
		Slug:      slug,
		UpToken:   slug + "-up",
		DownToken: slug + "-down",
		UpPrice:   0.55,
		DownPrice: 0.45,
		EndAt:     endAt,
	}
}

func TestSeriesSlug(t *testing.T) {
	assert.Equal(t, "btc-up-or-down-15m", SeriesSlug("BTC", 15))
	assert.Equal(t, "eth-up-or-down-5m", SeriesSlug("eth", 5))
}

func TestTick_SnapshotFromDiscovery(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	windows := &stubWindows{market: testMarket("w1", base.Add(10*time.Minute))}
	spot := &stubSpot{price: 50_000}

	f := New(windows, spot, "btc-up-or-down-15m", testLogger(), Options{
		Clock: func() time.Time { return base },
	})

	tick, err := f.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "w1", tick.WindowID)
	assert.Equal(t, 0.55, tick.UpPrice)
	assert.Equal(t, 0.45, tick.DownPrice)
	assert.InDelta(t, 10, tick.TimeRemaining, 0.001)

	// Reference captured this tick, so the first delta is zero.
	require.NotNil(t, tick.Delta)
	assert.Equal(t, 0.0, *tick.Delta)
}

func TestTick_DeltaAgainstWindowReference(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	windows := &stubWindows{market: testMarket("w1", base.Add(10*time.Minute))}
	spot := &stubSpot{price: 50_000}

	f := New(windows, spot, "series", testLogger(), Options{
		Clock: func() time.Time { return base },
	})

	_, err := f.Tick(context.Background())
	require.NoError(t, err)

	spot.price = 50_120
	tick, err := f.Tick(context.Background())
	require.NoError(t, err)
	require.NotNil(t, tick.Delta)
	assert.InDelta(t, 120, *tick.Delta, 0.001)

	spot.price = 49_900
	tick, err = f.Tick(context.Background())
	require.NoError(t, err)
	require.NotNil(t, tick.Delta)
	assert.InDelta(t, -100, *tick.Delta, 0.001)
}

func TestTick_NilDeltaUntilSpotKnown(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	windows := &stubWindows{market: testMarket("w1", base.Add(10*time.Minute))}
	spot := &stubSpot{err: errors.New("ticker down")}

	f := New(windows, spot, "series", testLogger(), Options{
		Clock: func() time.Time { return base },
	})

	tick, err := f.Tick(context.Background())
	require.NoError(t, err)
	assert.Nil(t, tick.Delta)

	// Spot recovers: the reference is captured now, not backdated.
	spot.err = nil
	spot.price = 50_000
	tick, err = f.Tick(context.Background())
	require.NoError(t, err)
	require.NotNil(t, tick.Delta)
	assert.Equal(t, 0.0, *tick.Delta)
}

func TestTick_RolloverResetsReference(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	windows := &stubWindows{market: testMarket("w1", base.Add(10*time.Minute))}
	spot := &stubSpot{price: 50_000}

	f := New(windows, spot, "series", testLogger(), Options{
		Clock: func() time.Time { return base },
	})
	_, err := f.Tick(context.Background())
	require.NoError(t, err)

	spot.price = 50_500
	windows.market = testMarket("w2", base.Add(25*time.Minute))
	tick, err := f.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "w2", tick.WindowID)

	// New window, new reference: delta restarts at zero from 50500.
	require.NotNil(t, tick.Delta)
	assert.Equal(t, 0.0, *tick.Delta)
}

func TestTick_DiscoveryFailurePropagates(t *testing.T) {
	windows := &stubWindows{err: errors.New("gamma down")}
	f := New(windows, &stubSpot{price: 1}, "series", testLogger(), Options{})

	_, err := f.Tick(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discover window")
}

func TestTick_LiveQuotesOverrideDiscoveryPrices(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	windows := &stubWindows{market: testMarket("w1", base.Add(10*time.Minute))}
	stream := &stubStream{}

	f := New(windows, &stubSpot{price: 50_000}, "series", testLogger(), Options{
		Stream: stream,
		Clock:  func() time.Time { return base },
	})
	require.NoError(t, f.Start(context.Background()))

	_, err := f.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, stream.subscribed, 1)
	assert.Equal(t, []string{"w1-up", "w1-down"}, stream.subscribed[0])

	stream.handler(polymarket.Quote{AssetID: "w1-up", BestBid: 0.60, BestAsk: 0.62, Mid: 0.61})

	tick, err := f.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.61, tick.UpPrice)
	assert.Equal(t, 0.45, tick.DownPrice)
}

func TestTick_RolloverSwapsStreamSubscription(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	windows := &stubWindows{market: testMarket("w1", base.Add(10*time.Minute))}
	stream := &stubStream{}

	f := New(windows, &stubSpot{price: 50_000}, "series", testLogger(), Options{
		Stream: stream,
		Clock:  func() time.Time { return base },
	})
	require.NoError(t, f.Start(context.Background()))

	_, err := f.Tick(context.Background())
	require.NoError(t, err)

	windows.market = testMarket("w2", base.Add(25*time.Minute))
	_, err = f.Tick(context.Background())
	require.NoError(t, err)

	require.Len(t, stream.removed, 1)
	assert.Equal(t, []string{"w1-up", "w1-down"}, stream.removed[0])
	require.Len(t, stream.subscribed, 2)
	assert.Equal(t, []string{"w2-up", "w2-down"}, stream.subscribed[1])
}

func TestTokenFor(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	windows := &stubWindows{market: testMarket("w1", base.Add(10*time.Minute))}
	f := New(windows, &stubSpot{price: 50_000}, "series", testLogger(), Options{
		Clock: func() time.Time { return base },
	})

	_, err := f.TokenFor(domain.SideLong)
	require.Error(t, err)

	_, err = f.Tick(context.Background())
	require.NoError(t, err)

	up, err := f.TokenFor(domain.SideLong)
	require.NoError(t, err)
	assert.Equal(t, "w1-up", up)

	down, err := f.TokenFor(domain.SideShort)
	require.NoError(t, err)
	assert.Equal(t, "w1-down", down)
}
