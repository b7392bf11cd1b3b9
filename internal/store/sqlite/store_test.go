package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func report(id string, at time.Time, decision domain.Decision) domain.TickReport {
	return domain.TickReport{
		ID:         id,
		Chain:      "solana",
		StartedAt:  at,
		FinishedAt: at.Add(time.Second),
		Decision:   decision,
		RoundID:    5,
		Actions:    []domain.ActionRecord{},
	}
}

func TestStore_Ticks(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.LastTick(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	next := uint64(6)
	resolved := report("b", base.Add(time.Minute), domain.DecisionResolve)
	resolved.NewRoundID = &next
	resolved.Actions = []domain.ActionRecord{{Kind: domain.ActionResolveRound, RoundID: 5, Success: true, TxID: "sig"}}

	require.NoError(t, s.RecordTick(ctx, report("a", base, domain.DecisionWait)))
	require.NoError(t, s.RecordTick(ctx, resolved))
	require.NoError(t, s.RecordTick(ctx, resolved)) // duplicate ignored

	last, err := s.LastTick(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", last.ID)
	require.NotNil(t, last.NewRoundID)
	assert.Equal(t, uint64(6), *last.NewRoundID)
	assert.True(t, last.Succeeded(domain.ActionResolveRound))

	all, err := s.ListTicks(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].ID)

	since := base.Add(30 * time.Second)
	recent, err := s.ListTicks(ctx, domain.ListOpts{Since: &since})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "b", recent[0].ID)

	page, err := s.ListTicks(ctx, domain.ListOpts{Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a", page[0].ID)
}

func TestStore_Audit(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return at }

	require.NoError(t, s.Log(ctx, "update_treasury", map[string]any{"address": "Treas111", "tx": "sig"}))
	s.now = func() time.Time { return at.Add(time.Second) }
	require.NoError(t, s.Log(ctx, "emergency_withdraw", map[string]any{"round_id": float64(3)}))

	entries, err := s.List(ctx, domain.ListOpts{Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "emergency_withdraw", entries[0].Event)
	assert.Equal(t, float64(3), entries[0].Detail["round_id"])
	assert.Equal(t, "Treas111", entries[1].Detail["address"])
	assert.True(t, entries[1].CreatedAt.Equal(at))
}
