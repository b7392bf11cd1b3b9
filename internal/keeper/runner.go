package keeper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
)

// Ticker runs a single lifecycle step.
type Ticker interface {
	Tick(ctx context.Context) domain.TickReport
}

// RunnerConfig configures the scheduler.
type RunnerConfig struct {
	Interval time.Duration
	// LockKey and LockTTL apply only when a LockManager is set.
	LockKey string
	LockTTL time.Duration
}

// Runner schedules ticks on a fixed interval and guarantees that at most one
// tick is in flight. Timer ticks and manual triggers share the same guard;
// a tick that finds the guard held is skipped, never queued.
type Runner struct {
	cfg       RunnerConfig
	ticker    Ticker
	lock      domain.LockManager
	observers []Observer
	guard     *semaphore.Weighted
	logger    *slog.Logger

	mu   sync.RWMutex
	last *domain.TickReport
}

// NewRunner creates a Runner. lock may be nil.
func NewRunner(cfg RunnerConfig, ticker Ticker, lock domain.LockManager, logger *slog.Logger, observers ...Observer) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	return &Runner{
		cfg:       cfg,
		ticker:    ticker,
		lock:      lock,
		observers: observers,
		guard:     semaphore.NewWeighted(1),
		logger:    logger.With(slog.String("component", "runner")),
	}
}

// Run ticks once immediately and then on every interval until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "keeper started", slog.Duration("interval", r.cfg.Interval))
	r.scheduled(ctx)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "keeper stopping")
			return ctx.Err()
		case <-ticker.C:
			r.scheduled(ctx)
		}
	}
}

func (r *Runner) scheduled(ctx context.Context) {
	_, err := r.TriggerTick(ctx)
	switch {
	case errors.Is(err, domain.ErrTickInProgress):
		r.logger.WarnContext(ctx, "previous tick still running, skipping")
	case errors.Is(err, domain.ErrLockHeld):
		r.logger.InfoContext(ctx, "another keeper holds the tick lock, skipping")
	case err != nil:
		r.logger.ErrorContext(ctx, "tick not run", slog.String("error", err.Error()))
	}
}

// TriggerTick runs one tick now through the single-flight guard. It returns
// domain.ErrTickInProgress when a tick is already running and
// domain.ErrLockHeld when another replica holds the distributed lock.
func (r *Runner) TriggerTick(ctx context.Context) (domain.TickReport, error) {
	if !r.guard.TryAcquire(1) {
		return domain.TickReport{}, domain.ErrTickInProgress
	}
	defer r.guard.Release(1)

	if r.lock != nil {
		unlock, err := r.lock.Acquire(ctx, r.cfg.LockKey, r.cfg.LockTTL)
		if err != nil {
			return domain.TickReport{}, err
		}
		defer unlock()
	}

	report := r.ticker.Tick(ctx)

	r.mu.Lock()
	r.last = &report
	r.mu.Unlock()

	notifyAll(ctx, r.logger, r.observers, report)
	return report, nil
}

// Busy reports whether a tick is currently running in this process.
func (r *Runner) Busy() bool {
	if r.guard.TryAcquire(1) {
		r.guard.Release(1)
		return false
	}
	return true
}

// LastReport returns the most recent tick report, if any.
func (r *Runner) LastReport() (domain.TickReport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return domain.TickReport{}, false
	}
	return *r.last, true
}
