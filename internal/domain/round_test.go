package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestActiveRoundID(t *testing.T) {
	id, ok := GlobalConfig{CurrentRoundID: 6}.ActiveRoundID()
	assert.True(t, ok)
	assert.Equal(t, uint64(5), id)

	_, ok = GlobalConfig{}.ActiveRoundID()
	assert.False(t, ok)
}

func TestRoundEndTimeIsInclusive(t *testing.T) {
	end := time.Unix(1700000180, 0)
	r := Round{EndTime: end}

	assert.False(t, r.Expired(end.Add(-time.Second)))
	assert.Equal(t, time.Second, r.Remaining(end.Add(-time.Second)))
	assert.True(t, r.Expired(end))
	assert.Zero(t, r.Remaining(end.Add(time.Minute)))
}

func TestOutcomeFor(t *testing.T) {
	assert.Equal(t, OutcomeUp, OutcomeFor(14500, 14000))
	assert.Equal(t, OutcomeDown, OutcomeFor(13900, 14000))
	assert.Equal(t, OutcomeDraw, OutcomeFor(14000, 14000))
	assert.Equal(t, "draw", OutcomeDraw.String())
}

func TestHasPendingFees(t *testing.T) {
	assert.True(t, Round{Resolved: true, TotalFees: 1}.HasPendingFees())
	assert.False(t, Round{Resolved: false, TotalFees: 1}.HasPendingFees())
	assert.False(t, Round{Resolved: true}.HasPendingFees())
	assert.False(t, Round{Resolved: true, TotalFees: 1, FeesCollected: true}.HasPendingFees())
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "1.5", FormatUnits(1_500_000, USDCDecimals))
	assert.Equal(t, "0", FormatUnits(0, USDCDecimals))
	assert.Equal(t, "131.96", FormatCents(13196))
	assert.Equal(t, "140.00", FormatCents(14000))
}

func TestTxError(t *testing.T) {
	cause := errors.New("blockhash not found")
	err := fmt.Errorf("keeper: %w", &TxError{Op: "resolve_round", TxID: "sig", Logs: []string{"a", "b", "c"}, Err: cause})

	assert.ErrorIs(t, err, ErrTransactionFailed)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "resolve_round: transaction failed (tx sig): blockhash not found")

	var txErr *TxError
	assert.True(t, errors.As(err, &txErr))
	assert.Equal(t, []string{"b", "c"}, txErr.TailLogs(2))
	assert.Len(t, txErr.TailLogs(10), 3)
}
