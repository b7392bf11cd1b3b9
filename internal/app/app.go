// Package app wires the keeper's dependencies and runs it in the configured
// mode.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/roundkeeper/internal/cache/redis"
	"github.com/alanyoungcy/roundkeeper/internal/config"
	"github.com/alanyoungcy/roundkeeper/internal/keeper"
	"github.com/alanyoungcy/roundkeeper/internal/notify"
	"github.com/alanyoungcy/roundkeeper/internal/server"
	"github.com/alanyoungcy/roundkeeper/internal/server/handler"
	"github.com/alanyoungcy/roundkeeper/internal/server/ws"
)

// ErrTickFailed is returned by once mode when its single tick failed.
var ErrTickFailed = errors.New("tick failed")

// App owns the configuration, the logger and the cleanup functions run in
// reverse order on Close.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates an App.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires dependencies and runs the configured mode until ctx is done.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting keeper",
		slog.String("mode", a.cfg.Mode),
		slog.String("chain", a.cfg.Chain),
		slog.String("network", a.cfg.Network),
		slog.String("rpc", a.cfg.RPCURL()),
		slog.String("program", a.cfg.ProgramAddress()),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, true, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)
	a.logger.InfoContext(ctx, "admin signer loaded", slog.String("signer", deps.Chain.Signer()))

	switch strings.ToLower(a.cfg.Mode) {
	case "keeper":
		return a.KeeperMode(ctx, deps)
	case "once":
		return a.OnceMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down resources in reverse registration order.
func (a *App) Close() {
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) newDriver(deps *Dependencies) *keeper.Driver {
	return keeper.NewDriver(keeper.Config{
		RoundDuration:     a.cfg.Keeper.RoundDuration.Duration,
		AutoStartNewRound: a.cfg.Keeper.AutoStartNewRound,
		AutoCollectFees:   a.cfg.Keeper.AutoCollectFees,
	}, deps.Chain.Name(), deps.Chain, deps.Chain, deps.Oracle, a.logger)
}

// observers returns the tick observers for the wired dependencies.
func (a *App) observers(deps *Dependencies, hub *ws.Hub) []keeper.Observer {
	obs := []keeper.Observer{notify.TickObserver{Notifier: deps.Notifier}}
	if deps.TickStore != nil {
		obs = append(obs, keeper.StoreObserver{Store: deps.TickStore})
	}
	if deps.EventBus != nil {
		obs = append(obs, keeper.BusObserver{Bus: deps.EventBus})
	}
	if deps.Archiver != nil {
		obs = append(obs, keeper.ArchiveObserver{Reader: deps.Chain, Archiver: deps.Archiver})
	}
	// With a bus the hub follows the bus channels instead, which also
	// carries ticks from other replicas.
	if hub != nil && deps.EventBus == nil {
		obs = append(obs, keeper.BroadcastObserver{Broadcaster: hub})
	}
	return obs
}

func (a *App) newRunner(deps *Dependencies, hub *ws.Hub) *keeper.Runner {
	return keeper.NewRunner(keeper.RunnerConfig{
		Interval: a.cfg.Keeper.TickInterval.Duration,
		LockKey:  redis.TickLockKey(a.cfg.ProgramAddress()),
		LockTTL:  a.cfg.Keeper.LockTTL.Duration,
	}, a.newDriver(deps), deps.LockManager, a.logger, a.observers(deps, hub)...)
}

// KeeperMode runs the tick scheduler and, when enabled, the status server.
func (a *App) KeeperMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	var hub *ws.Hub
	if a.cfg.Server.Enabled {
		hub = ws.NewHub(deps.EventBus, deps.Chain.Name(), a.logger)
		g.Go(func() error { return hub.Run(ctx) })
	}

	runner := a.newRunner(deps, hub)
	g.Go(func() error { return runner.Run(ctx) })

	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps, runner, hub)
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// OnceMode runs exactly one tick and returns ErrTickFailed if it failed.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	runner := a.newRunner(deps, nil)
	report, err := runner.TriggerTick(ctx)
	if err != nil {
		return fmt.Errorf("app: once: %w", err)
	}
	a.logger.InfoContext(ctx, "tick finished",
		slog.String("decision", string(report.Decision)),
		slog.Uint64("round_id", report.RoundID),
		slog.Int("actions", len(report.Actions)),
	)
	if report.Failed() {
		return fmt.Errorf("%w: %s", ErrTickFailed, report.Error)
	}
	return nil
}

func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, runner *keeper.Runner, hub *ws.Hub) {
	info := handler.KeeperInfo{
		Chain:             deps.Chain.Name(),
		Network:           a.cfg.Network,
		Program:           a.cfg.ProgramAddress(),
		Signer:            deps.Chain.Signer(),
		TickInterval:      a.cfg.Keeper.TickInterval.String(),
		RoundDuration:     a.cfg.Keeper.RoundDuration.String(),
		AutoStartNewRound: a.cfg.Keeper.AutoStartNewRound,
		AutoCollectFees:   a.cfg.Keeper.AutoCollectFees,
	}
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(deps.HealthChecks, a.logger),
		Status: handler.NewStatusHandler(info, runner),
		Ticks:  handler.NewTickHandler(runner, deps.TickStore, a.logger),
	}
	if deps.AuditStore != nil {
		handlers.Audit = handler.NewAuditHandler(deps.AuditStore, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
