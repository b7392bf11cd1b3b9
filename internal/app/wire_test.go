package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/roundkeeper/internal/config"
	"github.com/alanyoungcy/roundkeeper/internal/domain"
	"github.com/alanyoungcy/roundkeeper/internal/keeper"
	"github.com/alanyoungcy/roundkeeper/internal/logging"
	"github.com/alanyoungcy/roundkeeper/internal/notify"
)

func TestOpenHistory_None(t *testing.T) {
	cfg := config.Defaults()
	cfg.Storage.Driver = "none"

	h, err := OpenHistory(context.Background(), &cfg)
	require.NoError(t, err)
	assert.Nil(t, h.Ticks)
	assert.Nil(t, h.Audit)
	h.Close()
}

func TestOpenHistory_SQLite(t *testing.T) {
	cfg := config.Defaults()
	cfg.Storage.Driver = "sqlite"
	cfg.SQLite.Path = ":memory:"

	h, err := OpenHistory(context.Background(), &cfg)
	require.NoError(t, err)
	defer h.Close()

	require.NotNil(t, h.Ticks)
	require.NotNil(t, h.Audit)

	ctx := context.Background()
	report := domain.TickReport{
		ID:         "0c5b2a8e-6f0e-4f6c-9a53-3d1f2b7c4e10",
		Chain:      "solana",
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
		Decision:   domain.DecisionWait,
	}
	require.NoError(t, h.Ticks.RecordTick(ctx, report))
	last, err := h.Ticks.LastTick(ctx)
	require.NoError(t, err)
	assert.Equal(t, report.ID, last.ID)
}

func TestObservers(t *testing.T) {
	cfg := config.Defaults()
	a := New(&cfg, logging.Discard())

	deps := &Dependencies{Notifier: notify.NewNotifier(nil, nil, logging.Discard())}
	names := func(obs []keeper.Observer) []string {
		var out []string
		for _, o := range obs {
			out = append(out, o.Name())
		}
		return out
	}

	assert.Equal(t, []string{"notify"}, names(a.observers(deps, nil)))

	h, err := OpenHistory(context.Background(), &config.Config{Storage: config.StorageConfig{Driver: "sqlite"}, SQLite: config.SQLiteConfig{Path: ":memory:"}})
	require.NoError(t, err)
	defer h.Close()
	deps.TickStore = h.Ticks
	assert.Equal(t, []string{"notify", "store"}, names(a.observers(deps, nil)))
}
