package evm

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
	"github.com/alanyoungcy/roundkeeper/internal/logging"
)

const testContract = "0x00000000000000000000000000000000000000aa"

type fakeBackend struct {
	mu          sync.Mutex
	views       map[string][]any
	rounds      map[uint64][]any
	estimateErr error
	replayErr   error
	status      uint64
	sent        []*types.Transaction
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		views:  make(map[string][]any),
		rounds: make(map[uint64][]any),
		status: types.ReceiptStatusSuccessful,
	}
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	if block != nil {
		return nil, f.replayErr
	}
	method, err := contractABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	if method.Name == "rounds" {
		args, err := method.Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}
		out, ok := f.rounds[args[0].(*big.Int).Uint64()]
		if !ok {
			out = emptyRound()
		}
		return method.Outputs.Pack(out...)
	}
	return method.Outputs.Pack(f.views[method.Name]...)
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) { return 3, nil }

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) { return big.NewInt(1e9), nil }

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 100_000, f.estimateErr
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return &types.Receipt{Status: f.status, BlockNumber: big.NewInt(10)}, nil
}

func (f *fakeBackend) Close() {}

func emptyRound() []any {
	z := func() *big.Int { return new(big.Int) }
	return []any{z(), z(), z(), z(), z(), false, uint8(0), z(), z(), z(), false}
}

func newTestClient(t *testing.T, withKey bool) (*Client, *fakeBackend) {
	t.Helper()
	f := newFakeBackend()
	opts := Options{ChainID: 31337, ContractAddress: testContract, ConfirmTimeout: time.Second}
	if withKey {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		opts.Key = crypto.FromECDSA(key)
	}
	c, err := newClient(f, opts, logging.Discard())
	require.NoError(t, err)
	c.pollInterval = 5 * time.Millisecond
	return c, f
}

func TestGlobalConfig(t *testing.T) {
	c, f := newTestClient(t, false)
	owner := common.HexToAddress("0x00000000000000000000000000000000000000b1")
	f.views["currentRoundId"] = []any{big.NewInt(6)}
	f.views["owner"] = []any{owner}
	f.views["treasury"] = []any{owner}
	f.views["paused"] = []any{true}

	cfg, err := c.GlobalConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, owner.Hex(), cfg.Authority)
	assert.True(t, cfg.Paused)

	active, ok := cfg.ActiveRoundID()
	assert.True(t, ok)
	assert.Equal(t, uint64(5), active)
}

func TestRound(t *testing.T) {
	c, f := newTestClient(t, false)
	f.rounds[5] = []any{
		big.NewInt(5), big.NewInt(14000), big.NewInt(14000),
		big.NewInt(1700000000), big.NewInt(1700000180),
		true, uint8(3),
		big.NewInt(1_000_000), big.NewInt(2_000_000), big.NewInt(30_000), false,
	}

	r, err := c.Round(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), r.ID)
	assert.Equal(t, domain.OutcomeDraw, r.Outcome)
	assert.Equal(t, time.Unix(1700000180, 0).UTC(), r.EndTime)
	assert.Equal(t, uint64(30_000), r.TotalFees)
	assert.True(t, r.HasPendingFees())

	_, err = c.Round(context.Background(), 6)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestResolveRoundSendsOneTransaction(t *testing.T) {
	c, f := newTestClient(t, true)

	res, err := c.ResolveRound(context.Background(), 5, 14500)
	require.NoError(t, err)
	require.Len(t, f.sent, 1)

	tx := f.sent[0]
	assert.Equal(t, tx.Hash().Hex(), res.TxID)
	assert.Equal(t, common.HexToAddress(testContract), *tx.To())
	assert.Equal(t, uint64(3), tx.Nonce())
	assert.Equal(t, uint64(120_000), tx.Gas())

	want, err := contractABI.Pack("resolveRoundManual", big.NewInt(14500))
	require.NoError(t, err)
	assert.Equal(t, want, tx.Data())
}

func TestRevertedTransactionCarriesReason(t *testing.T) {
	c, f := newTestClient(t, true)
	f.status = types.ReceiptStatusFailed
	f.replayErr = errors.New("execution reverted: RoundNotEnded")

	_, err := c.StartRound(context.Background(), 14000, 180*time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransactionFailed)

	var txErr *domain.TxError
	require.True(t, errors.As(err, &txErr))
	assert.NotEmpty(t, txErr.TxID)
	assert.Equal(t, []string{"execution reverted: RoundNotEnded"}, txErr.Logs)
}

func TestEstimateFailureSendsNothing(t *testing.T) {
	c, f := newTestClient(t, true)
	f.estimateErr = errors.New("execution reverted: NoFees")

	_, err := c.CollectFees(context.Background(), 5)
	assert.ErrorIs(t, err, domain.ErrTransactionFailed)
	assert.Empty(t, f.sent)
}

func TestUnsupportedAndReadOnly(t *testing.T) {
	c, f := newTestClient(t, false)
	_, err := c.ResolveRound(context.Background(), 5, 1)
	assert.ErrorIs(t, err, domain.ErrTransactionFailed)
	assert.Empty(t, f.sent)
	assert.Empty(t, c.Signer())

	signer, _ := newTestClient(t, true)
	_, err = signer.EmergencyWithdraw(context.Background(), 5, true)
	assert.ErrorIs(t, err, errUnsupported)
	_, err = signer.Initialize(context.Background(), testContract)
	assert.ErrorIs(t, err, errUnsupported)
}
