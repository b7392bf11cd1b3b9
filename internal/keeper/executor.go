package keeper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
)

// resolveLogTail is how many program log lines a failed resolve logs.
const resolveLogTail = 5

// Executor wraps every submission through the chain's RoundWriter. It logs
// the outcome, records an ActionRecord and reports success as a boolean; it
// never returns an error.
type Executor struct {
	writer domain.RoundWriter
	logger *slog.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(writer domain.RoundWriter, logger *slog.Logger) *Executor {
	return &Executor{
		writer: writer,
		logger: logger.With(slog.String("component", "executor")),
	}
}

// Start submits the start-round instruction.
func (e *Executor) Start(ctx context.Context, rec *Recorder, priceCents int64, duration time.Duration) bool {
	res, err := e.writer.StartRound(ctx, priceCents, duration)
	return e.finish(ctx, rec, domain.ActionRecord{Kind: domain.ActionStartRound, PriceCents: priceCents}, res, err)
}

// Resolve submits the resolve instruction for roundID.
func (e *Executor) Resolve(ctx context.Context, rec *Recorder, roundID uint64, priceCents int64) bool {
	res, err := e.writer.ResolveRound(ctx, roundID, priceCents)
	return e.finish(ctx, rec, domain.ActionRecord{Kind: domain.ActionResolveRound, RoundID: roundID, PriceCents: priceCents}, res, err)
}

// CollectFees submits the collect-fees instruction for roundID.
func (e *Executor) CollectFees(ctx context.Context, rec *Recorder, roundID uint64) (domain.TxResult, error) {
	res, err := e.writer.CollectFees(ctx, roundID)
	e.finish(ctx, rec, domain.ActionRecord{Kind: domain.ActionCollectFees, RoundID: roundID}, res, err)
	return res, err
}

func (e *Executor) finish(ctx context.Context, rec *Recorder, action domain.ActionRecord, res domain.TxResult, err error) bool {
	if err == nil {
		action.Success = true
		action.TxID = res.TxID
		rec.Add(action)
		e.logger.InfoContext(ctx, "transaction confirmed",
			slog.String("action", string(action.Kind)),
			slog.Uint64("round_id", action.RoundID),
			slog.String("tx", res.TxID),
		)
		return true
	}

	action.Error = err.Error()
	attrs := []any{
		slog.String("action", string(action.Kind)),
		slog.Uint64("round_id", action.RoundID),
		slog.String("error", err.Error()),
	}
	var txErr *domain.TxError
	if errors.As(err, &txErr) {
		action.TxID = txErr.TxID
		if action.Kind == domain.ActionResolveRound && len(txErr.Logs) > 0 {
			attrs = append(attrs, slog.Any("program_logs", txErr.TailLogs(resolveLogTail)))
		}
	}
	rec.Add(action)

	// Fee collection failures are reported by the driver as FeesFailed.
	if action.Kind != domain.ActionCollectFees {
		e.logger.ErrorContext(ctx, "transaction failed", attrs...)
	}
	return false
}
