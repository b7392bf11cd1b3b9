package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
)

// TickRunner is the keeper surface the API reads and triggers.
type TickRunner interface {
	TriggerTick(ctx context.Context) (domain.TickReport, error)
	Busy() bool
	LastReport() (domain.TickReport, bool)
}

// KeeperInfo is the static part of the status response.
type KeeperInfo struct {
	Chain             string `json:"chain"`
	Network           string `json:"network"`
	Program           string `json:"program"`
	Signer            string `json:"signer"`
	TickInterval      string `json:"tick_interval"`
	RoundDuration     string `json:"round_duration"`
	AutoStartNewRound bool   `json:"auto_start_new_round"`
	AutoCollectFees   bool   `json:"auto_collect_fees"`
}

// StatusHandler serves the keeper status.
type StatusHandler struct {
	info      KeeperInfo
	runner    TickRunner
	startedAt time.Time
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(info KeeperInfo, runner TickRunner) *StatusHandler {
	return &StatusHandler{info: info, runner: runner, startedAt: time.Now().UTC()}
}

// GetStatus responds with the keeper configuration, the busy flag and the
// last tick report.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"keeper":         h.info,
		"busy":           h.runner.Busy(),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	}
	if last, ok := h.runner.LastReport(); ok {
		body["last_tick"] = last
	}
	writeJSON(w, http.StatusOK, body)
}
