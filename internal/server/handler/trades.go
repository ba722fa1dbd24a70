package handler

import (
	"log/slog"
	"net/http"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
)

// TradesHandler serves the settled-trade history.
type TradesHandler struct {
	trades      domain.TradeLog
	defaultMode domain.Mode
	logger      *slog.Logger
}

// NewTradesHandler creates a TradesHandler.
func NewTradesHandler(trades domain.TradeLog, defaultMode domain.Mode, logger *slog.Logger) *TradesHandler {
	return &TradesHandler{trades: trades, defaultMode: defaultMode, logger: logger}
}

// ListRecent returns the most recent settled trades, newest first.
// GET /api/trades/recent?mode=paper|real&limit=N
func (h *TradesHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	mode := h.defaultMode
	switch v := r.URL.Query().Get("mode"); v {
	case "":
	case string(domain.ModePaper):
		mode = domain.ModePaper
	case string(domain.ModeReal):
		mode = domain.ModeReal
	default:
		writeError(w, http.StatusBadRequest, "mode must be paper or real")
		return
	}

	limit := parseLimit(r, 50, 500)

	trades, err := h.trades.ListRecent(r.Context(), mode, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list recent trades failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}
	if trades == nil {
		trades = []domain.SettledTrade{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":   mode,
		"trades": trades,
	})
}
