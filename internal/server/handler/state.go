package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
)

// ProjectionReader supplies the latest state projection for a variant. In
// engine-owning modes it reads straight from the engine; in serve mode it
// reads the projection cache the tick loop maintains.
type ProjectionReader interface {
	Projection(ctx context.Context, mode domain.Mode) (*domain.StateProjection, error)
}

// StateHandler serves read-only state projection endpoints.
type StateHandler struct {
	reader      ProjectionReader
	defaultMode domain.Mode
	logger      *slog.Logger
}

// NewStateHandler creates a StateHandler.
func NewStateHandler(reader ProjectionReader, defaultMode domain.Mode, logger *slog.Logger) *StateHandler {
	return &StateHandler{reader: reader, defaultMode: defaultMode, logger: logger}
}

// modeParam resolves the requested engine variant, defaulting to the
// handler's configured mode.
func (h *StateHandler) modeParam(r *http.Request) (domain.Mode, bool) {
	v := r.URL.Query().Get("mode")
	switch v {
	case "":
		return h.defaultMode, true
	case string(domain.ModePaper):
		return domain.ModePaper, true
	case string(domain.ModeReal):
		return domain.ModeReal, true
	default:
		return "", false
	}
}

func (h *StateHandler) projection(w http.ResponseWriter, r *http.Request) (*domain.StateProjection, bool) {
	mode, ok := h.modeParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "mode must be paper or real")
		return nil, false
	}

	p, err := h.reader.Projection(r.Context(), mode)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no projection available for "+string(mode))
			return nil, false
		}
		h.logger.ErrorContext(r.Context(), "projection read failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read state")
		return nil, false
	}
	return p, true
}

// GetProjection returns the full state projection.
// GET /api/state?mode=paper|real
func (h *StateHandler) GetProjection(w http.ResponseWriter, r *http.Request) {
	p, ok := h.projection(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetMetrics returns only the risk metrics block.
// GET /api/state/metrics?mode=paper|real
func (h *StateHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	p, ok := h.projection(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p.Metrics)
}

// GetLearning returns the learning profile, or 404 while too few trades have
// settled for one to exist.
// GET /api/state/learning?mode=paper|real
func (h *StateHandler) GetLearning(w http.ResponseWriter, r *http.Request) {
	p, ok := h.projection(w, r)
	if !ok {
		return
	}
	if p.Learning == nil {
		writeError(w, http.StatusNotFound, "not enough settled trades for a learning profile")
		return
	}
	writeJSON(w, http.StatusOK, p.Learning)
}
