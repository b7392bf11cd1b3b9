// Package keeper advances prediction-market rounds: it reads on-chain state
// each tick, resolves expired rounds with an oracle price, collects fees and
// starts the next round.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
)

// PriceSource yields the current reference price in integer cents.
type PriceSource interface {
	FetchPrice(ctx context.Context) (int64, error)
}

// Config parameterises the lifecycle driver.
type Config struct {
	RoundDuration     time.Duration
	AutoStartNewRound bool
	AutoCollectFees   bool
}

// Recorder collects the actions taken during one tick.
type Recorder struct {
	actions []domain.ActionRecord
}

// Add appends an action record. A nil Recorder discards it.
func (r *Recorder) Add(a domain.ActionRecord) {
	if r == nil {
		return
	}
	r.actions = append(r.actions, a)
}

// Actions returns the recorded actions in submission order.
func (r *Recorder) Actions() []domain.ActionRecord {
	if r == nil || r.actions == nil {
		return []domain.ActionRecord{}
	}
	return r.actions
}

// Driver decides, from the active round and the wall clock, which action to
// take. It keeps no state between ticks.
type Driver struct {
	cfg    Config
	chain  string
	reader domain.RoundReader
	exec   *Executor
	prices PriceSource
	now    func() time.Time
	logger *slog.Logger
}

// NewDriver creates a Driver for the named chain.
func NewDriver(cfg Config, chain string, reader domain.RoundReader, writer domain.RoundWriter, prices PriceSource, logger *slog.Logger) *Driver {
	if cfg.RoundDuration <= 0 {
		cfg.RoundDuration = 180 * time.Second
	}
	return &Driver{
		cfg:    cfg,
		chain:  chain,
		reader: reader,
		exec:   NewExecutor(writer, logger),
		prices: prices,
		now:    time.Now,
		logger: logger.With(slog.String("component", "driver")),
	}
}

// Tick runs one lifecycle step and reports what happened. Errors are
// captured in the report; Tick never fails the caller.
func (d *Driver) Tick(ctx context.Context) domain.TickReport {
	report := domain.TickReport{
		ID:        uuid.NewString(),
		Chain:     d.chain,
		StartedAt: d.now(),
	}
	rec := &Recorder{}

	err := d.tick(ctx, &report, rec)

	report.Actions = rec.Actions()
	report.FinishedAt = d.now()
	if err != nil {
		report.Error = err.Error()
		d.logger.ErrorContext(ctx, "tick failed",
			slog.String("decision", string(report.Decision)),
			slog.Uint64("round_id", report.RoundID),
			slog.String("error", err.Error()),
		)
	}
	return report
}

func (d *Driver) tick(ctx context.Context, report *domain.TickReport, rec *Recorder) error {
	gc, err := d.reader.GlobalConfig(ctx)
	if err != nil {
		report.Decision = domain.DecisionReadFailed
		return fmt.Errorf("keeper: read config: %w", err)
	}
	if gc.Paused {
		report.Decision = domain.DecisionPaused
		d.logger.InfoContext(ctx, "program paused, no action")
		return nil
	}

	id, ok := gc.ActiveRoundID()
	if !ok {
		d.logger.InfoContext(ctx, "no round found, starting first round")
		report.Decision = domain.DecisionStartNew
		return d.startNewRound(ctx, report, rec)
	}

	round, err := d.reader.Round(ctx, id)
	if errors.Is(err, domain.ErrAccountNotFound) {
		d.logger.InfoContext(ctx, "round not found, starting new round", slog.Uint64("round_id", id))
		report.Decision = domain.DecisionStartNew
		return d.startNewRound(ctx, report, rec)
	}
	if err != nil {
		report.Decision = domain.DecisionReadFailed
		report.RoundID = id
		return fmt.Errorf("keeper: read round %d: %w", id, err)
	}

	report.HasRound = true
	report.RoundID = id
	report.UpPool = round.UpPool
	report.DownPool = round.DownPool

	now := d.now()
	switch {
	case !round.Resolved && !round.Expired(now):
		report.Decision = domain.DecisionWait
		report.RemainingSec = int64(round.Remaining(now).Round(time.Second) / time.Second)
		d.logger.InfoContext(ctx, "round active",
			slog.Uint64("round_id", id),
			slog.Int64("remaining_sec", report.RemainingSec),
			slog.String("up_pool", domain.FormatUnits(round.UpPool, domain.USDCDecimals)),
			slog.String("down_pool", domain.FormatUnits(round.DownPool, domain.USDCDecimals)),
		)
		return nil

	case !round.Resolved:
		report.Decision = domain.DecisionResolve
		d.logger.InfoContext(ctx, "round expired, resolving", slog.Uint64("round_id", id))
		if err := d.resolveRound(ctx, report, rec, id); err != nil {
			return err
		}
		d.collectFeesStep(ctx, rec, id)
		return d.startNewRound(ctx, report, rec)

	default:
		report.Decision = domain.DecisionAdvance
		report.Outcome = round.Outcome.String()
		d.logger.InfoContext(ctx, "round already resolved",
			slog.Uint64("round_id", id),
			slog.String("outcome", round.Outcome.String()),
		)
		d.collectFeesStep(ctx, rec, id)
		return d.startNewRound(ctx, report, rec)
	}
}

func (d *Driver) resolveRound(ctx context.Context, report *domain.TickReport, rec *Recorder, id uint64) error {
	price, err := d.prices.FetchPrice(ctx)
	if err != nil {
		return fmt.Errorf("keeper: resolve round %d: %w", id, err)
	}
	d.logger.InfoContext(ctx, "resolving round",
		slog.Uint64("round_id", id),
		slog.String("price", domain.FormatCents(price)),
	)
	if !d.exec.Resolve(ctx, rec, id, price) {
		return fmt.Errorf("keeper: resolve round %d: %w", id, domain.ErrTransactionFailed)
	}

	// The program decides the outcome; read it back for the log line only.
	resolved, err := d.reader.Round(ctx, id)
	if err != nil {
		d.logger.WarnContext(ctx, "could not read resolved round", slog.Uint64("round_id", id), slog.String("error", err.Error()))
		return nil
	}
	report.Outcome = resolved.Outcome.String()
	d.logger.InfoContext(ctx, "round resolved",
		slog.Uint64("round_id", id),
		slog.String("outcome", resolved.Outcome.String()),
		slog.String("locked_price", domain.FormatCents(resolved.LockedPrice)),
		slog.String("final_price", domain.FormatCents(resolved.FinalPrice)),
	)
	return nil
}

func (d *Driver) startNewRound(ctx context.Context, report *domain.TickReport, rec *Recorder) error {
	if !d.cfg.AutoStartNewRound {
		rec.Add(domain.ActionRecord{Kind: domain.ActionStartRound, Skipped: "auto start disabled"})
		d.logger.InfoContext(ctx, "auto start disabled, not starting a new round")
		return nil
	}

	price, err := d.prices.FetchPrice(ctx)
	if err != nil {
		return fmt.Errorf("keeper: start round: %w", err)
	}
	d.logger.InfoContext(ctx, "starting new round",
		slog.String("price", domain.FormatCents(price)),
		slog.Duration("duration", d.cfg.RoundDuration),
	)
	if !d.exec.Start(ctx, rec, price, d.cfg.RoundDuration) {
		return fmt.Errorf("keeper: start round: %w", domain.ErrTransactionFailed)
	}

	gc, err := d.reader.GlobalConfig(ctx)
	if err != nil {
		d.logger.WarnContext(ctx, "could not read new round id", slog.String("error", err.Error()))
		return nil
	}
	if id, ok := gc.ActiveRoundID(); ok {
		report.NewRoundID = &id
		d.logger.InfoContext(ctx, "round started", slog.Uint64("round_id", id))
	}
	return nil
}

// collectFeesStep is best-effort: only failures are logged, at error level,
// and nothing is returned to the tick.
func (d *Driver) collectFeesStep(ctx context.Context, rec *Recorder, id uint64) {
	if !d.cfg.AutoCollectFees {
		return
	}
	res := d.CollectFees(ctx, rec, id)
	switch res.Status {
	case domain.FeesFailed:
		d.logger.ErrorContext(ctx, "fee collection failed",
			slog.Uint64("round_id", id),
			slog.String("reason", res.Reason),
		)
	case domain.FeesCollected:
		d.logger.InfoContext(ctx, "fees collected", slog.Uint64("round_id", id), slog.String("tx", res.TxID))
	}
}

// CollectFees reads the round and submits fee collection when fees are
// pending. The result distinguishes skipped, collected and failed attempts.
func (d *Driver) CollectFees(ctx context.Context, rec *Recorder, id uint64) domain.FeeResult {
	round, err := d.reader.Round(ctx, id)
	if err != nil {
		rec.Add(domain.ActionRecord{Kind: domain.ActionCollectFees, RoundID: id, Error: err.Error()})
		return domain.FeeResult{Status: domain.FeesFailed, Reason: err.Error(), Err: err}
	}

	if !round.HasPendingFees() {
		reason := "already collected"
		switch {
		case !round.Resolved:
			reason = "not resolved"
		case round.TotalFees == 0:
			reason = "no fees"
		}
		rec.Add(domain.ActionRecord{Kind: domain.ActionCollectFees, RoundID: id, Skipped: reason})
		return domain.FeeResult{Status: domain.FeesSkipped, Reason: reason}
	}

	res, err := d.exec.CollectFees(ctx, rec, id)
	if err != nil {
		return domain.FeeResult{Status: domain.FeesFailed, Reason: err.Error(), Err: err}
	}
	return domain.FeeResult{Status: domain.FeesCollected, TxID: res.TxID}
}
