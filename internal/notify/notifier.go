// Package notify alerts operators about keeper events through Telegram and
// Discord. Events are filtered by type so only the configured ones are sent.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Sender delivers one message to a channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string // "telegram", "discord"
}

// Notifier routes keeper events to its senders. A nil or sender-less
// Notifier drops everything.
type Notifier struct {
	senders []Sender
	allow   map[string]struct{}
	label   string
	logger  *slog.Logger
}

// NewNotifier creates a Notifier for the given event types. An empty events
// list allows every type.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allow := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allow[e] = struct{}{}
		}
	}
	return &Notifier{
		senders: senders,
		allow:   allow,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// WithLabel returns a copy that prefixes every title with "[label] ", e.g.
// the chain and network, so alerts from several keepers can share a channel.
func (n *Notifier) WithLabel(label string) *Notifier {
	cp := *n
	cp.label = label
	return &cp
}

// Enabled reports whether an event of this type would reach any sender.
func (n *Notifier) Enabled(event string) bool {
	if n == nil || len(n.senders) == 0 {
		return false
	}
	if len(n.allow) == 0 {
		return true
	}
	_, ok := n.allow[event]
	return ok
}

// Notify sends the message to every sender if the event type is enabled.
// One failing sender does not stop the rest; their errors are joined.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if !n.Enabled(event) {
		return nil
	}
	if n.label != "" {
		title = "[" + n.label + "] " + title
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("event", event),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %w", errors.Join(errs...))
	}
	return nil
}
