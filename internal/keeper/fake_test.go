package keeper

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
)

// fakeChain models the program closely enough for the driver: the counter
// points one past the newest round and resolution compares prices.
type fakeChain struct {
	mu      sync.Mutex
	now     time.Time
	config  domain.GlobalConfig
	rounds  map[uint64]domain.Round
	calls   []string
	reads   int
	readErr error

	startErr   error
	resolveErr error
	collectErr error
}

func newFakeChain(now time.Time) *fakeChain {
	return &fakeChain{now: now, rounds: make(map[uint64]domain.Round)}
}

func (f *fakeChain) GlobalConfig(context.Context) (domain.GlobalConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.readErr != nil {
		return domain.GlobalConfig{}, f.readErr
	}
	return f.config, nil
}

func (f *fakeChain) Round(_ context.Context, id uint64) (domain.Round, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	r, ok := f.rounds[id]
	if !ok {
		return domain.Round{}, domain.ErrAccountNotFound
	}
	return r, nil
}

func (f *fakeChain) StartRound(_ context.Context, price int64, d time.Duration) (domain.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "start")
	if f.startErr != nil {
		return domain.TxResult{}, f.startErr
	}
	id := f.config.CurrentRoundID
	f.rounds[id] = domain.Round{
		ID:          id,
		LockedPrice: price,
		StartTime:   f.now,
		EndTime:     f.now.Add(d),
	}
	f.config.CurrentRoundID++
	return domain.TxResult{TxID: "tx-start"}, nil
}

func (f *fakeChain) ResolveRound(_ context.Context, id uint64, price int64) (domain.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "resolve")
	if f.resolveErr != nil {
		return domain.TxResult{}, f.resolveErr
	}
	r := f.rounds[id]
	r.Resolved = true
	r.FinalPrice = price
	r.Outcome = domain.OutcomeFor(price, r.LockedPrice)
	f.rounds[id] = r
	return domain.TxResult{TxID: "tx-resolve"}, nil
}

func (f *fakeChain) CollectFees(_ context.Context, id uint64) (domain.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "collect")
	if f.collectErr != nil {
		return domain.TxResult{}, f.collectErr
	}
	r := f.rounds[id]
	r.FeesCollected = true
	f.rounds[id] = r
	return domain.TxResult{TxID: "tx-collect"}, nil
}

func (f *fakeChain) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// seed stores a round and moves the counter past it.
func (f *fakeChain) seed(r domain.Round) {
	f.rounds[r.ID] = r
	f.config.CurrentRoundID = r.ID + 1
}

type fakePrices struct {
	price int64
	err   error
	calls int
}

func (p *fakePrices) FetchPrice(context.Context) (int64, error) {
	p.calls++
	if p.err != nil {
		return 0, p.err
	}
	return p.price, nil
}

var errRPC = errors.New("rpc unavailable")
