package domain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// Outcome is the resolution result of a round, set on chain by comparing the
// final price against the locked price.
type Outcome uint8

const (
	OutcomePending Outcome = iota
	OutcomeUp
	OutcomeDown
	OutcomeDraw
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUp:
		return "up"
	case OutcomeDown:
		return "down"
	case OutcomeDraw:
		return "draw"
	default:
		return "pending"
	}
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText decodes an outcome name.
func (o *Outcome) UnmarshalText(b []byte) error {
	switch string(b) {
	case "up":
		*o = OutcomeUp
	case "down":
		*o = OutcomeDown
	case "draw":
		*o = OutcomeDraw
	case "pending", "":
		*o = OutcomePending
	default:
		return fmt.Errorf("domain: unknown outcome %q", b)
	}
	return nil
}

// OutcomeFor mirrors the program's comparison. The keeper never submits it;
// it exists for test fakes and operator output.
func OutcomeFor(finalPrice, lockedPrice int64) Outcome {
	switch {
	case finalPrice > lockedPrice:
		return OutcomeUp
	case finalPrice < lockedPrice:
		return OutcomeDown
	default:
		return OutcomeDraw
	}
}

// GlobalConfig is the program's singleton configuration record.
type GlobalConfig struct {
	Authority      string `json:"authority"`
	Treasury       string `json:"treasury"`
	CurrentRoundID uint64 `json:"current_round_id"` // next round to be created
	Paused         bool   `json:"paused"`
}

// ActiveRoundID returns the id of the most recently started round. The
// counter always points one past it; a zero counter means no round has ever
// been started.
func (c GlobalConfig) ActiveRoundID() (uint64, bool) {
	if c.CurrentRoundID == 0 {
		return 0, false
	}
	return c.CurrentRoundID - 1, true
}

// Round is one betting epoch as stored on chain. Prices are integer cents.
type Round struct {
	ID            uint64    `json:"id"`
	LockedPrice   int64     `json:"locked_price"`
	FinalPrice    int64     `json:"final_price"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Resolved      bool      `json:"resolved"`
	Outcome       Outcome   `json:"outcome"`
	UpPool        uint64    `json:"up_pool"`
	DownPool      uint64    `json:"down_pool"`
	UpPoolUrim    uint64    `json:"up_pool_urim"`
	DownPoolUrim  uint64    `json:"down_pool_urim"`
	TotalFees     uint64    `json:"total_fees"`
	FeesCollected bool      `json:"fees_collected"`
}

// Expired reports whether the round may be resolved. EndTime is an inclusive
// boundary: the round is active while now < EndTime.
func (r Round) Expired(now time.Time) bool {
	return !now.Before(r.EndTime)
}

// Remaining returns the time left before the round can be resolved, or zero.
func (r Round) Remaining(now time.Time) time.Duration {
	if r.Expired(now) {
		return 0
	}
	return r.EndTime.Sub(now)
}

// HasPendingFees reports whether fee collection would move funds.
func (r Round) HasPendingFees() bool {
	return r.Resolved && r.TotalFees > 0 && !r.FeesCollected
}

// Settlement asset precision in minor units.
const (
	USDCDecimals = 6
	UrimDecimals = 6
)

// FormatUnits renders an integer token amount with the given decimals, e.g.
// 1500000 with 6 decimals is "1.5".
func FormatUnits(amount uint64, decimals int32) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -decimals).String()
}

// FormatCents renders an integer cents price as dollars, e.g. 13196 is "131.96".
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
