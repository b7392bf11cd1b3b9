package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
)

// Keeper event types.
const (
	EventRoundStarted  = "round_started"
	EventRoundResolved = "round_resolved"
	EventFeesCollected = "fees_collected"
	EventFeesFailed    = "fees_failed"
	EventTickFailed    = "tick_failed"
	EventAdminAction   = "admin_action"
)

type event struct {
	kind, title, message string
}

// tickEvents derives operator events from a tick report.
func tickEvents(r domain.TickReport) []event {
	var out []event
	for _, a := range r.Actions {
		switch {
		case a.Kind == domain.ActionResolveRound && a.Success:
			msg := fmt.Sprintf("round %d on %s resolved", a.RoundID, r.Chain)
			if r.Outcome != "" {
				msg += ", outcome " + r.Outcome
			}
			if a.PriceCents != 0 {
				msg += ", final price " + domain.FormatCents(a.PriceCents)
			}
			out = append(out, event{EventRoundResolved, "Round resolved", msg + "\ntx " + a.TxID})
		case a.Kind == domain.ActionStartRound && a.Success:
			msg := "new round started on " + r.Chain
			if r.NewRoundID != nil {
				msg = fmt.Sprintf("round %d started on %s", *r.NewRoundID, r.Chain)
			}
			out = append(out, event{EventRoundStarted, "Round started", fmt.Sprintf("%s at %s\ntx %s", msg, domain.FormatCents(a.PriceCents), a.TxID)})
		case a.Kind == domain.ActionCollectFees && a.Success:
			out = append(out, event{EventFeesCollected, "Fees collected", fmt.Sprintf("round %d\ntx %s", a.RoundID, a.TxID)})
		case a.Kind == domain.ActionCollectFees && a.Skipped == "" && !a.Success:
			out = append(out, event{EventFeesFailed, "Fee collection failed", fmt.Sprintf("round %d: %s", a.RoundID, a.Error)})
		}
	}
	if r.Failed() {
		out = append(out, event{EventTickFailed, "Keeper tick failed", fmt.Sprintf("%s (%s): %s", r.Chain, r.Decision, r.Error)})
	}
	return out
}

// TickObserver turns tick reports into notifications.
type TickObserver struct {
	Notifier *Notifier
}

// Name returns "notify".
func (o TickObserver) Name() string { return "notify" }

// Observe sends one notification per event in the report.
func (o TickObserver) Observe(ctx context.Context, r domain.TickReport) error {
	var errs []error
	for _, e := range tickEvents(r) {
		if err := o.Notifier.Notify(ctx, e.kind, e.title, e.message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
