package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/cache/redis"
	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/engine"
	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/feed"
	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/notify"
	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/platform/polymarket"
	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/server"
	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/server/handler"
	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/server/ws"
	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/signal"
)

const (
	// engineLockTTL bounds how long a crashed owner blocks a restart; the
	// lock is renewed while held.
	engineLockTTL = 30 * time.Second

	// API rate limit per client IP.
	apiRateLimit  = 120
	apiRateWindow = time.Minute

	// archiveDelay after UTC midnight before exporting the previous day.
	archiveDelay = 10 * time.Minute
)

// EngineMode runs one engine variant: the tick loop, the notification relay,
// daily trade archival, and (when enabled) the HTTP API over the live engine.
// A distributed lock guarantees a single engine owner per variant.
func (a *App) EngineMode(ctx context.Context, deps *Dependencies, mode domain.Mode) error {
	a.logger.InfoContext(ctx, "starting engine mode", slog.String("variant", string(mode)))

	release, err := deps.Locks.Acquire(ctx, "engine:"+string(mode), engineLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return fmt.Errorf("app: another process already owns the %s engine", mode)
		}
		return fmt.Errorf("app: acquire engine lock: %w", err)
	}
	defer release()

	// Market feed: Gamma discovery, spot delta, live CLOB quotes.
	gamma := polymarket.NewGammaClient(a.cfg.Feed.GammaHost)
	spot := feed.NewSpotClient(a.cfg.Feed.SpotHost, a.cfg.Engine.Coin)
	var stream feed.QuoteStream
	if a.cfg.Feed.WsHost != "" {
		stream = polymarket.NewWSClient(a.cfg.Feed.WsHost)
	}
	series := feed.SeriesSlug(a.cfg.Engine.Coin, a.cfg.Engine.WindowMinutes)
	marketFeed := feed.New(gamma, spot, series, a.logger, feed.Options{Stream: stream})
	if err := marketFeed.Start(ctx); err != nil {
		// Discovery prices still flow over HTTP; quotes degrade gracefully.
		a.logger.WarnContext(ctx, "quote stream unavailable", slog.String("error", err.Error()))
	}
	defer marketFeed.Close()

	// Signal source, rate limited with cached fallback.
	source := signal.NewHTTPSource(signal.HTTPSourceConfig{
		Endpoint: a.cfg.Signal.Endpoint,
		ApiKey:   a.cfg.Signal.ApiKey,
		Provider: a.cfg.Signal.Provider,
		Timeout:  a.cfg.Signal.Timeout.Duration,
	})
	signals := signal.NewLimited(source, deps.Limiter, deps.Predictions, signal.LimitedConfig{
		MaxRequests: a.cfg.Signal.MaxRequests,
		Window:      a.cfg.Signal.Window.Duration,
		CacheTTL:    a.cfg.Signal.CacheTTL.Duration,
	}, a.logger)

	opts := engine.Options{
		Store:  deps.StateStore,
		Trades: deps.TradeLog,
		Audit:  deps.Audit,
		Logger: a.logger,
	}
	riskCfg := a.cfg.Paper
	if mode == domain.ModeReal {
		riskCfg = a.cfg.Real
		opts.Venue = polymarket.NewVenue(a.cfg.Feed.ClobHost, polymarket.Credentials{
			Key:        a.cfg.Venue.ApiKey,
			Secret:     a.cfg.Venue.ApiSecret,
			Passphrase: a.cfg.Venue.ApiPassphrase,
		}, marketFeed.TokenFor)
	}

	eng, err := engine.New(ctx, mode, riskCfg, opts)
	if err != nil {
		return fmt.Errorf("app: build engine: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	ticker := NewTicker(eng, marketFeed, signals, deps.Projections, deps.Bus, a.cfg.Engine.TickInterval.Duration, a.logger)
	g.Go(func() error {
		return ticker.Run(ctx)
	})

	if deps.Notifier.HasSenders() {
		relay := notify.NewRelay(deps.Bus, deps.Notifier, redis.ChannelSettlement, redis.ChannelHalt, a.logger)
		g.Go(func() error {
			return relay.Run(ctx)
		})
	}

	if deps.Archiver != nil {
		g.Go(func() error {
			return a.archiveLoop(ctx, deps.Archiver, mode)
		})
	}

	if a.cfg.Server.Enabled {
		reader := &engineReader{engine: eng, fallback: deps.Projections}
		a.startHTTPServer(ctx, g, deps, reader, eng, eng.Mode())
	}

	return g.Wait()
}

// ServeMode runs the HTTP API without an engine: projections come from the
// cache the tick loop maintains and control operations answer 503.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	if !a.cfg.Server.Enabled {
		return fmt.Errorf("app: serve mode requires server.enabled")
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, cacheReader{cache: deps.Projections}, nil, domain.ModePaper)
	return g.Wait()
}

// startHTTPServer registers the API handlers, runs the WebSocket hub, and
// serves until the context is cancelled.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	reader handler.ProjectionReader,
	controller handler.EngineController,
	defaultMode domain.Mode,
) {
	hub := ws.NewHub(deps.Bus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(a.logger),
		State:   handler.NewStateHandler(reader, defaultMode, a.logger),
		Trades:  handler.NewTradesHandler(deps.TradeLog, defaultMode, a.logger),
		Control: handler.NewControlHandler(controller, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		Limiter:     deps.Limiter,
		RateLimit:   apiRateLimit,
		RateWindow:  apiRateWindow,
	}, handlers, hub, a.logger)

	g.Go(func() error {
		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			return ctx.Err()
		case err := <-errCh:
			return err
		}
	})
}

// archiveLoop exports the previous UTC day's settled trades shortly after
// each midnight rollover.
func (a *App) archiveLoop(ctx context.Context, archiver domain.Archiver, mode domain.Mode) error {
	for {
		now := time.Now().UTC()
		next := now.Truncate(24 * time.Hour).Add(24*time.Hour + archiveDelay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(next.Sub(now)):
		}

		day := next.AddDate(0, 0, -1)
		count, err := archiver.ArchiveTrades(ctx, mode, day)
		if err != nil {
			a.logger.ErrorContext(ctx, "trade archival failed",
				slog.String("day", day.Format("2006-01-02")),
				slog.String("error", err.Error()),
			)
			continue
		}
		a.logger.InfoContext(ctx, "trades archived",
			slog.String("day", day.Format("2006-01-02")),
			slog.Int64("count", count),
		)
	}
}

// engineReader serves the owned variant straight from the engine and answers
// for the other variant from the projection cache, so one API process can
// report both.
type engineReader struct {
	engine   *engine.Engine
	fallback *redis.ProjectionCache
}

func (r *engineReader) Projection(ctx context.Context, mode domain.Mode) (*domain.StateProjection, error) {
	if mode == r.engine.Mode() {
		p := r.engine.Projection()
		return &p, nil
	}
	if r.fallback == nil {
		return nil, domain.ErrNotFound
	}
	return r.fallback.Get(ctx, mode)
}

// cacheReader serves projections from the cache only.
type cacheReader struct {
	cache *redis.ProjectionCache
}

func (r cacheReader) Projection(ctx context.Context, mode domain.Mode) (*domain.StateProjection, error) {
	return r.cache.Get(ctx, mode)
}
