package domain

import "time"

// ActionKind names an on-chain instruction the keeper or operator submits.
type ActionKind string

const (
	ActionStartRound            ActionKind = "start_round"
	ActionResolveRound          ActionKind = "resolve_round"
	ActionCollectFees           ActionKind = "collect_fees"
	ActionInitialize            ActionKind = "initialize"
	ActionUpdateTreasury        ActionKind = "update_treasury"
	ActionEmergencyWithdraw     ActionKind = "emergency_withdraw"
	ActionEmergencyWithdrawUrim ActionKind = "emergency_withdraw_urim"
)

// TxResult identifies a confirmed transaction.
type TxResult struct {
	TxID string
	Logs []string
}

// ActionRecord is the outcome of one submitted (or skipped) action.
type ActionRecord struct {
	Kind       ActionKind `json:"kind"`
	RoundID    uint64     `json:"round_id"`
	PriceCents int64      `json:"price_cents,omitempty"`
	Success    bool       `json:"success"`
	Skipped    string     `json:"skipped,omitempty"`
	TxID       string     `json:"tx_id,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// FeeStatus classifies a best-effort fee collection attempt.
type FeeStatus string

const (
	FeesSkipped   FeeStatus = "skipped"
	FeesCollected FeeStatus = "collected"
	FeesFailed    FeeStatus = "failed"
)

// FeeResult is returned by fee collection. Only FeesFailed carries an error;
// callers log it and carry on.
type FeeResult struct {
	Status FeeStatus
	Reason string
	TxID   string
	Err    error
}

// Decision is the branch the lifecycle driver took during a tick.
type Decision string

const (
	DecisionStartNew   Decision = "start_new_round"
	DecisionWait       Decision = "wait"
	DecisionResolve    Decision = "resolve"
	DecisionAdvance    Decision = "advance_resolved"
	DecisionPaused     Decision = "paused"
	DecisionReadFailed Decision = "read_failed"
)

// TickReport summarises one tick for logs, history and notifications.
type TickReport struct {
	ID           string         `json:"id"`
	Chain        string         `json:"chain"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
	Decision     Decision       `json:"decision"`
	RoundID      uint64         `json:"round_id"`
	HasRound     bool           `json:"has_round"`
	RemainingSec int64          `json:"remaining_sec"`
	UpPool       uint64         `json:"up_pool"`
	DownPool     uint64         `json:"down_pool"`
	Outcome      string         `json:"outcome,omitempty"`
	NewRoundID   *uint64        `json:"new_round_id,omitempty"`
	Actions      []ActionRecord `json:"actions"`
	Error        string         `json:"error,omitempty"`
}

// Failed reports whether the tick ended with an error.
func (r TickReport) Failed() bool { return r.Error != "" }

// Action returns the first record of the given kind.
func (r TickReport) Action(kind ActionKind) (ActionRecord, bool) {
	for _, a := range r.Actions {
		if a.Kind == kind {
			return a, true
		}
	}
	return ActionRecord{}, false
}

// Succeeded reports whether an action of the given kind succeeded.
func (r TickReport) Succeeded(kind ActionKind) bool {
	a, ok := r.Action(kind)
	return ok && a.Success
}
