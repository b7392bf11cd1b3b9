package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
)

// TickHandler serves tick history and the manual trigger.
type TickHandler struct {
	runner TickRunner
	store  domain.TickStore
	logger *slog.Logger
}

// NewTickHandler creates a TickHandler. store may be nil, in which case the
// history endpoint only returns the last in-memory report.
func NewTickHandler(runner TickRunner, store domain.TickStore, logger *slog.Logger) *TickHandler {
	return &TickHandler{runner: runner, store: store, logger: logHandler(logger, "tick")}
}

// ListTicks returns recent tick reports, newest first.
// GET /api/ticks?limit=&offset=&since=
func (h *TickHandler) ListTicks(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		reports := []domain.TickReport{}
		if last, ok := h.runner.LastReport(); ok {
			reports = append(reports, last)
		}
		writeJSON(w, http.StatusOK, reports)
		return
	}

	reports, err := h.store.ListTicks(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list ticks failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list ticks")
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// TriggerTick runs one tick now and returns its report. A tick already in
// flight yields 409 Conflict. The tick runs detached from the request so a
// client disconnect cannot abort transactions mid-tick.
// POST /api/tick
func (h *TickHandler) TriggerTick(w http.ResponseWriter, r *http.Request) {
	h.logger.InfoContext(r.Context(), "manual tick requested")

	report, err := h.runner.TriggerTick(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, domain.ErrTickInProgress):
		writeError(w, http.StatusConflict, "tick already in progress")
	case errors.Is(err, domain.ErrLockHeld):
		writeError(w, http.StatusConflict, "another keeper holds the tick lock")
	case err != nil:
		h.logger.ErrorContext(r.Context(), "manual tick failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, report)
	}
}
