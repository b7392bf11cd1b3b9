package keeper

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
	"github.com/alanyoungcy/roundkeeper/internal/logging"
)

type blockingTicker struct {
	started chan struct{}
	release chan struct{}
	count   atomic.Int32
}

func newBlockingTicker() *blockingTicker {
	return &blockingTicker{started: make(chan struct{}, 10), release: make(chan struct{})}
}

func (b *blockingTicker) Tick(context.Context) domain.TickReport {
	n := b.count.Add(1)
	b.started <- struct{}{}
	<-b.release
	return domain.TickReport{RoundID: uint64(n), Decision: domain.DecisionWait}
}

type countingTicker struct {
	count atomic.Int32
}

func (c *countingTicker) Tick(context.Context) domain.TickReport {
	n := c.count.Add(1)
	return domain.TickReport{RoundID: uint64(n)}
}

type fakeLock struct {
	mu       sync.Mutex
	held     bool
	keys     []string
	released int
}

func (l *fakeLock) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	if l.held {
		return nil, domain.ErrLockHeld
	}
	return func() {
		l.mu.Lock()
		l.released++
		l.mu.Unlock()
	}, nil
}

func TestRunner_OverlappingTickIsSkipped(t *testing.T) {
	bt := newBlockingTicker()
	r := NewRunner(RunnerConfig{Interval: time.Hour}, bt, nil, logging.Discard())

	done := make(chan error, 1)
	go func() {
		_, err := r.TriggerTick(context.Background())
		done <- err
	}()
	<-bt.started

	assert.True(t, r.Busy())
	_, err := r.TriggerTick(context.Background())
	assert.ErrorIs(t, err, domain.ErrTickInProgress)

	close(bt.release)
	require.NoError(t, <-done)
	assert.False(t, r.Busy())
	assert.Equal(t, int32(1), bt.count.Load())
}

func TestRunner_LastReportAndObservers(t *testing.T) {
	var seen []domain.TickReport
	obs := ObserverFunc{Label: "capture", Fn: func(_ context.Context, rep domain.TickReport) error {
		seen = append(seen, rep)
		return nil
	}}
	failing := ObserverFunc{Label: "broken", Fn: func(context.Context, domain.TickReport) error {
		return errors.New("boom")
	}}
	r := NewRunner(RunnerConfig{}, &countingTicker{}, nil, logging.Discard(), failing, obs)

	_, ok := r.LastReport()
	assert.False(t, ok)

	rep, err := r.TriggerTick(context.Background())
	require.NoError(t, err)

	last, ok := r.LastReport()
	require.True(t, ok)
	assert.Equal(t, rep, last)
	require.Len(t, seen, 1)
	assert.Equal(t, uint64(1), seen[0].RoundID)
}

func TestRunner_DistributedLock(t *testing.T) {
	lock := &fakeLock{}
	ct := &countingTicker{}
	r := NewRunner(RunnerConfig{LockKey: "keeper:tick:prog"}, ct, lock, logging.Discard())

	_, err := r.TriggerTick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, lock.released)
	assert.Equal(t, []string{"keeper:tick:prog"}, lock.keys)

	lock.held = true
	_, err = r.TriggerTick(context.Background())
	assert.ErrorIs(t, err, domain.ErrLockHeld)
	assert.Equal(t, int32(1), ct.count.Load())
}

func TestRunner_RunTicksImmediatelyAndStops(t *testing.T) {
	ct := &countingTicker{}
	r := NewRunner(RunnerConfig{Interval: 10 * time.Millisecond}, ct, nil, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return ct.count.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
}
