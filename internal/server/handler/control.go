package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
)

// EngineController is the set of control operations the API exposes. The
// running engine implements it directly; in serve mode no controller is
// wired and the routes answer 503.
type EngineController interface {
	Reset(ctx context.Context) domain.StateProjection
	SetMartingale(ctx context.Context, enabled bool) domain.StateProjection
	UpdateRiskConfig(ctx context.Context, cfg domain.RiskConfig) domain.StateProjection
	ConfirmSession(ctx context.Context) domain.StateProjection
	KillSwitch(ctx context.Context) domain.StateProjection
}

// ControlHandler serves the engine control operations. Every operation
// responds with the refreshed state projection.
type ControlHandler struct {
	engine EngineController
	logger *slog.Logger
}

// NewControlHandler creates a ControlHandler. engine may be nil when the
// process does not own an engine.
func NewControlHandler(engine EngineController, logger *slog.Logger) *ControlHandler {
	return &ControlHandler{engine: engine, logger: logger}
}

func (h *ControlHandler) available(w http.ResponseWriter) bool {
	if h.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "no engine running in this process")
		return false
	}
	return true
}

// Reset discards all engine state and rebuilds from configured defaults.
// POST /api/control/reset
func (h *ControlHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	h.logger.WarnContext(r.Context(), "api reset requested")
	writeJSON(w, http.StatusOK, h.engine.Reset(r.Context()))
}

// SetMartingale toggles martingale sizing.
// POST /api/control/martingale {"enabled": bool}
func (h *ControlHandler) SetMartingale(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	writeJSON(w, http.StatusOK, h.engine.SetMartingale(r.Context(), req.Enabled))
}

// UpdateRiskConfig replaces the risk-configuration record. The engine bumps
// the version and preserves the running initial capital.
// POST /api/control/risk-config {RiskConfig}
func (h *ControlHandler) UpdateRiskConfig(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	var cfg domain.RiskConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validateRiskUpdate(cfg); err != "" {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.UpdateRiskConfig(r.Context(), cfg))
}

// validateRiskUpdate rejects obviously broken records before they reach the
// engine. Returns an empty string when valid.
func validateRiskUpdate(cfg domain.RiskConfig) string {
	switch {
	case cfg.RiskFraction <= 0 || cfg.RiskFraction > 1:
		return "risk_fraction must be in (0, 1]"
	case cfg.MinRiskFraction <= 0 || cfg.MinRiskFraction > cfg.MaxRiskFraction:
		return "min_risk_fraction must be > 0 and <= max_risk_fraction"
	case cfg.FixedStake <= 0:
		return "fixed_stake must be > 0"
	case cfg.ConfidenceThreshold < cfg.ConfidenceFloor || cfg.ConfidenceThreshold > 100:
		return "confidence_threshold must be between confidence_floor and 100"
	case cfg.MinTimeRemaining < 0 || cfg.MaxTimeRemaining <= cfg.MinTimeRemaining:
		return "time band requires 0 <= min_time_remaining < max_time_remaining"
	case cfg.DailyLossCap <= 0:
		return "daily_loss_cap must be > 0"
	default:
		return ""
	}
}

// ConfirmSession re-arms real-mode entries after a halt or restart.
// POST /api/control/confirm-session
func (h *ControlHandler) ConfirmSession(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	h.logger.InfoContext(r.Context(), "api session confirmation")
	writeJSON(w, http.StatusOK, h.engine.ConfirmSession(r.Context()))
}

// KillSwitch halts the engine immediately and cancels outstanding orders.
// POST /api/control/kill-switch
func (h *ControlHandler) KillSwitch(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	h.logger.WarnContext(r.Context(), "api kill switch engaged")
	writeJSON(w, http.StatusOK, h.engine.KillSwitch(r.Context()))
}
