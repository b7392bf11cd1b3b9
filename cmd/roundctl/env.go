package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/alanyoungcy/roundkeeper/internal/app"
	"github.com/alanyoungcy/roundkeeper/internal/config"
	"github.com/alanyoungcy/roundkeeper/internal/domain"
	"github.com/alanyoungcy/roundkeeper/internal/notify"
)

// env holds what a command needs. Chain and history are opened lazily.
type env struct {
	cfg     *config.Config
	out     io.Writer
	logger  *slog.Logger
	closers []func()
}

func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

func (e *env) chain(ctx context.Context, withSigner bool) (domain.Chain, error) {
	c, err := app.OpenChain(ctx, e.cfg, withSigner, e.logger)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, c.Close)
	return c, nil
}

func (e *env) history(ctx context.Context) (*app.History, error) {
	h, err := app.OpenHistory(ctx, e.cfg)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, h.Close)
	return h, nil
}

// audit records an operator action. Without a configured store it is a no-op.
func (e *env) audit(ctx context.Context, event string, detail map[string]any) {
	h, err := e.history(ctx)
	if err != nil {
		e.logger.Warn("audit store unavailable", slog.String("error", err.Error()))
		return
	}
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Log(ctx, event, detail); err != nil {
		e.logger.Warn("audit log failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}

// notify tells the operator channels about an admin action.
func (e *env) notify(ctx context.Context, title, message string) {
	n := app.NewNotifier(e.cfg, e.logger)
	if err := n.Notify(ctx, notify.EventAdminAction, title, message); err != nil {
		e.logger.Warn("notification failed", slog.String("error", err.Error()))
	}
}

func (e *env) printf(format string, args ...any) {
	fmt.Fprintf(e.out, format, args...)
}
