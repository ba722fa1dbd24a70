// Package engine implements the decision-and-risk core: a trade lifecycle
// state machine over recurring fixed-duration prediction-market windows, with
// adaptive risk control and crash-safe persistence. One Engine instance owns
// one variant's state (paper or real); all mutation goes through Tick and the
// explicit control operations.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
)

// settleEpsilon is the time-remaining threshold, in minutes, under which an
// open position is settled from the current delta without waiting for the
// window identifier to roll over. Covers late or irregular tick delivery.
const settleEpsilon = 0.1

// recentTradeLimit bounds the recent-trade list in the public projection.
const recentTradeLimit = 20

// Options carries the engine's collaborators. Store is required; the rest
// are optional except Venue, which is required in real mode.
type Options struct {
	Store  domain.StateStore
	Trades domain.TradeLog
	Audit  domain.AuditLog
	Venue  domain.OrderVenue
	Logger *slog.Logger
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Engine is the per-variant decision engine. It is safe for concurrent use:
// Tick and the control operations serialize on an internal mutex, so the
// state machine only ever observes one transition at a time.
type Engine struct {
	mu sync.Mutex

	mode     domain.Mode
	key      string
	defaults domain.RiskConfig

	state    *domain.EngineState
	store    domain.StateStore
	trades   domain.TradeLog
	audit    domain.AuditLog
	venue    domain.OrderVenue
	analyzer *Analyzer
	logger   *slog.Logger
	now      func() time.Time
}

// New loads the engine's state from the store (or builds it from defaults
// when no record exists) and returns a ready engine. In real mode the session
// always starts unconfirmed, regardless of what was persisted: a restart
// requires explicit re-confirmation before any entry.
func New(ctx context.Context, mode domain.Mode, defaults domain.RiskConfig, opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("engine: state store is required")
	}
	if mode == domain.ModeReal && opts.Venue == nil {
		return nil, fmt.Errorf("engine: order venue is required in real mode")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	e := &Engine{
		mode:     mode,
		key:      stateKey(mode),
		defaults: defaults,
		store:    opts.Store,
		trades:   opts.Trades,
		audit:    opts.Audit,
		venue:    opts.Venue,
		analyzer: NewAnalyzer(),
		logger:   logger.With(slog.String("component", "engine"), slog.String("mode", string(mode))),
		now:      clock,
	}

	state, err := opts.Store.Load(ctx, e.key)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		state = defaultState(mode, defaults, clock())
		e.logger.InfoContext(ctx, "no persisted state, starting from defaults")
	case err != nil:
		return nil, fmt.Errorf("engine: load state: %w", err)
	default:
		e.logger.InfoContext(ctx, "state restored",
			slog.Float64("balance", state.Balance()),
			slog.Int("trades", len(state.History)),
			slog.Bool("open_position", state.Open != nil),
		)
	}

	if mode == domain.ModeReal {
		state.SessionConfirmed = false
	}
	e.state = state
	e.persist(ctx)
	return e, nil
}

func stateKey(mode domain.Mode) string {
	return "engine:" + string(mode)
}

// defaultState builds a fresh EngineState from a risk configuration.
func defaultState(mode domain.Mode, cfg domain.RiskConfig, now time.Time) *domain.EngineState {
	return &domain.EngineState{
		Mode:        mode,
		Capital:     cfg.InitialCapital,
		PeakBalance: cfg.InitialCapital,
		DailyDate:   now.UTC().Format("2006-01-02"),
		Risk:        cfg,
		UpdatedAt:   now,
	}
}

// Tick feeds the engine one atomic snapshot. Settlement is always evaluated
// before entry so a window rollover closes the old position before a new one
// can open. The returned projection is a deep copy and always reflects the
// true halt or skip reason.
func (e *Engine) Tick(ctx context.Context, snap domain.TickSnapshot) (domain.StateProjection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if snap.Market.WindowID == "" {
		return e.projectionLocked(), domain.ErrInvalidSnapshot
	}

	now := e.now()

	e.settleIfDue(ctx, snap, now)

	// Only after settlement handling does the incoming delta become the
	// last observed one; a rollover must settle against the delta seen
	// before the new window began.
	if snap.Market.Delta != nil {
		d := *snap.Market.Delta
		e.state.LastDelta = &d
	}

	e.maybeEnter(ctx, snap, now)

	e.persist(ctx)
	return e.projectionLocked(), nil
}

// settleIfDue runs the settlement transition when the open position's window
// has rolled over or expired. Re-settling an idle engine is a no-op.
func (e *Engine) settleIfDue(ctx context.Context, snap domain.TickSnapshot, now time.Time) {
	pos := e.state.Open
	if pos == nil {
		return
	}

	// A real-mode position without a venue acknowledgment is a phantom:
	// entry never completed on the venue side, so it cannot settle. Clear it.
	if e.mode == domain.ModeReal && pos.ExternalOrderID == "" {
		e.logger.WarnContext(ctx, "clearing phantom position", slog.String("window", pos.WindowID))
		e.state.Open = nil
		e.auditLog(ctx, "phantom_cleared", map[string]any{"window_id": pos.WindowID})
		return
	}

	switch {
	case pos.WindowID != snap.Market.WindowID:
		// Window rollover: the position's window has ended. Resolve from the
		// last delta observed while that window was still live.
		e.settle(ctx, pos, e.state.LastDelta, now)
	case snap.Market.TimeRemaining <= settleEpsilon && snap.Market.Delta != nil && *snap.Market.Delta != 0:
		e.settle(ctx, pos, snap.Market.Delta, now)
	}
}

// settle resolves the open position against a settlement delta, computes PnL,
// updates the ledger and rolling stats, appends the trade record, and rebuilds
// the learning profile and adaptive thresholds.
func (e *Engine) settle(ctx context.Context, pos *domain.Position, delta *float64, now time.Time) {
	outcome, d := resolveOutcome(pos.Side, delta)

	var pnl float64
	switch outcome {
	case domain.OutcomeWin:
		pnl = pos.Shares*1.0 - pos.Stake
	case domain.OutcomeLoss:
		pnl = -pos.Stake
	case domain.OutcomeVoid:
		pnl = 0
	}

	// Ledger update. Paper capital was debited at entry: a win pays out the
	// shares at 1.0, a void returns the stake, a loss returns nothing.
	if e.mode == domain.ModePaper {
		switch outcome {
		case domain.OutcomeWin:
			e.state.Capital += pos.Shares
		case domain.OutcomeVoid:
			e.state.Capital += pos.Stake
		}
	} else {
		e.state.RealizedPnL += pnl
		recordRealLoss(e.state, pnl, now)
	}

	trade := domain.SettledTrade{
		Position:     *pos,
		Outcome:      outcome,
		PnL:          pnl,
		BalanceAfter: e.state.Balance(),
		Delta:        d,
		SettledAt:    now,
	}

	// Rolling stats. The streak flips sign on an outcome flip; voids leave
	// it untouched.
	switch outcome {
	case domain.OutcomeWin:
		e.state.Wins++
		if e.state.Streak < 0 {
			e.state.Streak = 0
		}
		e.state.Streak++
		e.state.MartingaleLevel = 0
	case domain.OutcomeLoss:
		e.state.Losses++
		if e.state.Streak > 0 {
			e.state.Streak = 0
		}
		e.state.Streak--
		if e.state.MartingaleLevel < e.state.Risk.MartingaleMaxLevel {
			e.state.MartingaleLevel++
		}
	case domain.OutcomeVoid:
		e.state.Voids++
	}
	if bal := e.state.Balance(); bal > e.state.PeakBalance {
		e.state.PeakBalance = bal
	}

	e.state.History = append(e.state.History, trade)
	e.state.LastSettledWindowID = pos.WindowID
	e.state.Open = nil

	if e.mode == domain.ModePaper {
		e.appendJournal(trade)
	}

	e.state.Learning = e.analyzer.Profile(e.state.History, now)
	retune(e.state)

	e.logger.InfoContext(ctx, "position settled",
		slog.String("window", pos.WindowID),
		slog.String("outcome", string(outcome)),
		slog.Float64("pnl", pnl),
		slog.Float64("balance", e.state.Balance()),
	)

	if e.trades != nil {
		if err := e.trades.Append(ctx, e.mode, trade); err != nil {
			e.logger.ErrorContext(ctx, "trade log append failed", slog.String("error", err.Error()))
		}
	}
	e.auditLog(ctx, "settled", map[string]any{
		"window_id": pos.WindowID,
		"outcome":   string(outcome),
		"pnl":       pnl,
		"balance":   e.state.Balance(),
	})
}

// resolveOutcome maps a settlement delta onto the position's side. A missing
// or exactly-zero delta voids the window; this intentionally conflates "no
// data" with "settled exactly at the strike", matching the venue's observed
// behavior.
func resolveOutcome(side domain.Side, delta *float64) (domain.Outcome, float64) {
	if delta == nil || *delta == 0 {
		return domain.OutcomeVoid, 0
	}
	d := *delta
	upWon := d > 0
	if (side == domain.SideLong && upWon) || (side == domain.SideShort && !upWon) {
		return domain.OutcomeWin, d
	}
	return domain.OutcomeLoss, d
}

func (e *Engine) appendJournal(trade domain.SettledTrade) {
	e.state.Journal = append(e.state.Journal, domain.JournalEntry{
		Trade:    trade,
		Analysis: analysisNote(trade),
	})
	limit := e.state.Risk.JournalLimit
	if limit <= 0 {
		limit = 50
	}
	if overflow := len(e.state.Journal) - limit; overflow > 0 {
		e.state.Journal = append([]domain.JournalEntry(nil), e.state.Journal[overflow:]...)
	}
}

// maybeEnter evaluates the entry transition. Every condition must hold; a
// failed condition skips entry for this tick only, with no retry scheduled.
func (e *Engine) maybeEnter(ctx context.Context, snap domain.TickSnapshot, now time.Time) {
	if e.state.Open != nil {
		return
	}

	if ok, reason := guardEntry(e.state, now); !ok {
		e.logger.DebugContext(ctx, "entry blocked", slog.String("reason", reason))
		return
	}

	pred := snap.Prediction
	if pred.Direction == domain.DirectionUnknown || pred.Direction == "" {
		return
	}
	if pred.Confidence < e.state.Risk.ConfidenceThreshold {
		return
	}

	tick := snap.Market
	if tick.TimeRemaining < e.state.Risk.MinTimeRemaining || tick.TimeRemaining > e.state.Risk.MaxTimeRemaining {
		return
	}
	// Never re-enter the window that was just resolved.
	if tick.WindowID == e.state.LastSettledWindowID {
		return
	}
	if !priceInRange(tick.UpPrice) || !priceInRange(tick.DownPrice) {
		return
	}

	side := domain.SideLong
	if pred.Direction == domain.DirectionShort {
		side = domain.SideShort
	}
	entry := tick.SideFor(side)

	stake := computeStake(e.state)
	shares, stake := sharesFor(e.mode, stake, entry)
	if shares <= 0 || stake <= 0 {
		return
	}
	if e.mode == domain.ModePaper && stake > e.state.Capital {
		return
	}

	pos := &domain.Position{
		ID:              uuid.NewString(),
		WindowID:        tick.WindowID,
		Side:            side,
		Entry:           entry,
		Stake:           stake,
		Shares:          shares,
		OpenedAt:        now,
		TimeRemaining:   tick.TimeRemaining,
		Confidence:      pred.Confidence,
		Provenance:      pred.Provenance,
		Regime:          pred.Regime,
		MartingaleLevel: e.state.MartingaleLevel,
		Signals:         append([]domain.SignalContribution(nil), pred.Signals...),
	}

	if e.mode == domain.ModeReal {
		// Entry is not speculative: the position is recorded only after the
		// venue's synchronous acknowledgment, including its order id.
		ack, err := e.venue.SubmitBuy(ctx, side, entry, shares)
		if err != nil {
			e.logger.WarnContext(ctx, "order submission failed, skipping entry",
				slog.String("window", tick.WindowID),
				slog.String("error", err.Error()),
			)
			e.auditLog(ctx, "entry_rejected", map[string]any{"window_id": tick.WindowID, "error": err.Error()})
			return
		}
		pos.ExternalOrderID = ack.OrderID
	} else {
		e.state.Capital -= stake
	}

	e.state.Open = pos

	e.logger.InfoContext(ctx, "position opened",
		slog.String("window", pos.WindowID),
		slog.String("side", string(pos.Side)),
		slog.Float64("entry", pos.Entry),
		slog.Float64("stake", pos.Stake),
		slog.Float64("confidence", pos.Confidence),
		slog.Int("martingale_level", pos.MartingaleLevel),
	)
	e.auditLog(ctx, "entered", map[string]any{
		"window_id": pos.WindowID,
		"side":      string(pos.Side),
		"entry":     pos.Entry,
		"stake":     pos.Stake,
	})
}

func priceInRange(p float64) bool {
	return p > 0 && p < 1
}

// persist writes the full state after a transition. A write failure is logged
// and the transition stands: the next tick writes again, and a crash in
// between replays idempotently from the last durable record.
func (e *Engine) persist(ctx context.Context) {
	e.state.UpdatedAt = e.now()
	if err := e.store.Save(ctx, e.key, e.state); err != nil {
		e.logger.ErrorContext(ctx, "state persist failed", slog.String("error", err.Error()))
	}
}

func (e *Engine) auditLog(ctx context.Context, event string, detail map[string]any) {
	if e.audit == nil {
		return
	}
	detail["mode"] = string(e.mode)
	if err := e.audit.Log(ctx, event, detail); err != nil {
		e.logger.ErrorContext(ctx, "audit log failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}

// LearningContext renders the current learning profile for the signal
// source's next prediction request. Empty until enough trades have settled.
func (e *Engine) LearningContext() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.analyzer.RenderContext(e.state.Learning)
}

// Mode returns the engine variant.
func (e *Engine) Mode() domain.Mode { return e.mode }
