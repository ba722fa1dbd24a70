package engine

import (
	"context"
	"log/slog"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
)

// Reset discards all state and rebuilds from the configured defaults. Any
// open position is dropped without settlement.
func (e *Engine) Reset(ctx context.Context) domain.StateProjection {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = defaultState(e.mode, e.defaults, e.now())
	e.logger.InfoContext(ctx, "engine state reset to defaults")
	e.auditLog(ctx, "reset", map[string]any{})
	e.persist(ctx)
	return e.projectionLocked()
}

// SetMartingale toggles martingale sizing. Disabling it also resets the
// current level so a later re-enable starts from the base stake.
func (e *Engine) SetMartingale(ctx context.Context, enabled bool) domain.StateProjection {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.Risk.MartingaleEnabled = enabled
	if !enabled {
		e.state.MartingaleLevel = 0
	}
	e.logger.InfoContext(ctx, "martingale toggled", slog.Bool("enabled", enabled))
	e.auditLog(ctx, "martingale_toggled", map[string]any{"enabled": enabled})
	e.persist(ctx)
	return e.projectionLocked()
}

// UpdateRiskConfig replaces the risk-configuration record, bumping its
// version. The initial capital of a running paper ledger is not rewritten.
func (e *Engine) UpdateRiskConfig(ctx context.Context, cfg domain.RiskConfig) domain.StateProjection {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg.Version = e.state.Risk.Version + 1
	cfg.InitialCapital = e.state.Risk.InitialCapital
	e.state.Risk = cfg
	e.logger.InfoContext(ctx, "risk config updated", slog.Int("version", cfg.Version))
	e.auditLog(ctx, "risk_config_updated", map[string]any{"version": cfg.Version})
	e.persist(ctx)
	return e.projectionLocked()
}

// ConfirmSession marks the real-mode session as explicitly confirmed,
// permitting entries again after a halt or restart. A no-op in paper mode.
func (e *Engine) ConfirmSession(ctx context.Context) domain.StateProjection {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.mode == domain.ModeReal {
		e.state.SessionConfirmed = true
		if e.state.Halted && e.state.HaltReason == haltReasonKillSwitch {
			e.state.Halted = false
			e.state.HaltReason = ""
		}
		e.logger.InfoContext(ctx, "session confirmed")
		e.auditLog(ctx, "session_confirmed", map[string]any{})
		e.persist(ctx)
	}
	return e.projectionLocked()
}

// KillSwitch halts the engine immediately, cancels outstanding venue orders
// best-effort, and clears the local open position. Further entries require an
// explicit ConfirmSession. A no-op in paper mode: the paper guard's drawdown
// halt is self-clearing and would silently release the halt on a later tick.
func (e *Engine) KillSwitch(ctx context.Context) domain.StateProjection {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.mode != domain.ModeReal {
		return e.projectionLocked()
	}

	e.state.Halted = true
	e.state.HaltReason = haltReasonKillSwitch
	e.state.SessionConfirmed = false

	if e.venue != nil {
		// Fire-and-forget: a cancel failure does not block clearing the
		// local position.
		if err := e.venue.CancelAll(ctx); err != nil {
			e.logger.ErrorContext(ctx, "cancel all failed", slog.String("error", err.Error()))
		}
	}
	e.state.Open = nil

	e.logger.WarnContext(ctx, "kill switch engaged")
	e.auditLog(ctx, "kill_switch", map[string]any{})
	e.persist(ctx)
	return e.projectionLocked()
}
