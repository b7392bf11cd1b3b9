package keeper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
)

// Observer receives every finished tick report. Errors are logged by the
// runner and never affect the keeper.
type Observer interface {
	Name() string
	Observe(ctx context.Context, report domain.TickReport) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc struct {
	Label string
	Fn    func(ctx context.Context, report domain.TickReport) error
}

func (f ObserverFunc) Name() string { return f.Label }

func (f ObserverFunc) Observe(ctx context.Context, report domain.TickReport) error {
	return f.Fn(ctx, report)
}

func notifyAll(ctx context.Context, logger *slog.Logger, observers []Observer, report domain.TickReport) {
	for _, o := range observers {
		if err := o.Observe(ctx, report); err != nil {
			logger.WarnContext(ctx, "tick observer failed",
				slog.String("observer", o.Name()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// StoreObserver records every tick in a TickStore.
type StoreObserver struct {
	Store domain.TickStore
}

func (o StoreObserver) Name() string { return "store" }

func (o StoreObserver) Observe(ctx context.Context, report domain.TickReport) error {
	return o.Store.RecordTick(ctx, report)
}

// BusObserver publishes tick reports on the event bus. Ticks that resolved a
// round or started a new one are also published on the round channel.
type BusObserver struct {
	Bus domain.EventBus
}

func (o BusObserver) Name() string { return "bus" }

func (o BusObserver) Observe(ctx context.Context, report domain.TickReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("keeper: marshal report: %w", err)
	}
	if err := o.Bus.Publish(ctx, domain.ChannelTick, payload); err != nil {
		return err
	}
	if report.Succeeded(domain.ActionResolveRound) || report.Succeeded(domain.ActionStartRound) {
		return o.Bus.Publish(ctx, domain.ChannelRound, payload)
	}
	return nil
}

// ArchiveObserver snapshots a round once this keeper resolved it.
type ArchiveObserver struct {
	Reader   domain.RoundReader
	Archiver domain.RoundArchiver
}

func (o ArchiveObserver) Name() string { return "archive" }

func (o ArchiveObserver) Observe(ctx context.Context, report domain.TickReport) error {
	if !report.Succeeded(domain.ActionResolveRound) {
		return nil
	}
	round, err := o.Reader.Round(ctx, report.RoundID)
	if err != nil {
		return fmt.Errorf("keeper: read round %d for archive: %w", report.RoundID, err)
	}
	return o.Archiver.ArchiveRound(ctx, round, report)
}

// BroadcastObserver pushes reports to an in-process broadcaster such as the
// websocket hub.
type BroadcastObserver struct {
	Broadcaster interface{ Broadcast(msg []byte) }
}

func (o BroadcastObserver) Name() string { return "broadcast" }

func (o BroadcastObserver) Observe(_ context.Context, report domain.TickReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("keeper: marshal report: %w", err)
	}
	o.Broadcaster.Broadcast(payload)
	return nil
}
