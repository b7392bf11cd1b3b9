package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
)

// ethBackend is the subset of *ethclient.Client the adapter uses.
type ethBackend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

// Options configures a Client.
type Options struct {
	RPCURL          string
	ChainID         int64
	ContractAddress string
	ConfirmTimeout  time.Duration
	// Key is the admin's 32-byte secp256k1 key. Nil gives a read-only client.
	Key []byte
}

// Client implements domain.Chain against the round contract.
type Client struct {
	backend        ethBackend
	contract       common.Address
	chainID        *big.Int
	key            *ecdsa.PrivateKey
	from           common.Address
	confirmTimeout time.Duration
	pollInterval   time.Duration
	logger         *slog.Logger
}

var _ domain.Chain = (*Client)(nil)

var errUnsupported = errors.New("not supported by the EVM contract")

// New dials the RPC endpoint and returns a client.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*Client, error) {
	backend, err := ethclient.DialContext(ctx, opts.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("evm: dial rpc %s: %w", opts.RPCURL, err)
	}
	c, err := newClient(backend, opts, logger)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return c, nil
}

func newClient(backend ethBackend, opts Options, logger *slog.Logger) (*Client, error) {
	if !common.IsHexAddress(opts.ContractAddress) {
		return nil, fmt.Errorf("%w: evm contract_address %q is not a hex address", domain.ErrConfiguration, opts.ContractAddress)
	}
	timeout := opts.ConfirmTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	c := &Client{
		backend:        backend,
		contract:       common.HexToAddress(opts.ContractAddress),
		chainID:        big.NewInt(opts.ChainID),
		confirmTimeout: timeout,
		pollInterval:   2 * time.Second,
		logger:         logger.With(slog.String("component", "evm")),
	}

	if len(opts.Key) > 0 {
		key, err := crypto.ToECDSA(opts.Key)
		if err != nil {
			return nil, fmt.Errorf("%w: evm private key: %v", domain.ErrConfiguration, err)
		}
		c.key = key
		c.from = crypto.PubkeyToAddress(key.PublicKey)
	}
	return c, nil
}

// Name implements domain.Chain.
func (c *Client) Name() string { return "evm" }

// Signer returns the admin address, or "" for a read-only client.
func (c *Client) Signer() string {
	if c.key == nil {
		return ""
	}
	return c.from.Hex()
}

// Close releases the RPC connection.
func (c *Client) Close() { c.backend.Close() }

func (c *Client) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("evm: pack %s: %w", method, err)
	}
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("evm: call %s: %w", method, err)
	}
	values, err := contractABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("evm: unpack %s: %w", method, err)
	}
	return values, nil
}

// GlobalConfig reads the counter, owner, treasury and pause flag.
func (c *Client) GlobalConfig(ctx context.Context) (domain.GlobalConfig, error) {
	var cfg domain.GlobalConfig

	counter, err := c.call(ctx, "currentRoundId")
	if err != nil {
		return cfg, err
	}
	owner, err := c.call(ctx, "owner")
	if err != nil {
		return cfg, err
	}
	treasury, err := c.call(ctx, "treasury")
	if err != nil {
		return cfg, err
	}
	paused, err := c.call(ctx, "paused")
	if err != nil {
		return cfg, err
	}

	cfg.CurrentRoundID = counter[0].(*big.Int).Uint64()
	cfg.Authority = owner[0].(common.Address).Hex()
	cfg.Treasury = treasury[0].(common.Address).Hex()
	cfg.Paused = paused[0].(bool)
	return cfg, nil
}

// Round reads round id. The contract returns a zero struct for unknown ids;
// an endTime of zero is domain.ErrAccountNotFound.
func (c *Client) Round(ctx context.Context, id uint64) (domain.Round, error) {
	v, err := c.call(ctx, "rounds", new(big.Int).SetUint64(id))
	if err != nil {
		return domain.Round{}, err
	}
	if len(v) != 11 {
		return domain.Round{}, fmt.Errorf("evm: rounds returned %d values", len(v))
	}

	end := v[4].(*big.Int)
	if end.Sign() == 0 {
		return domain.Round{}, fmt.Errorf("evm: round %d: %w", id, domain.ErrAccountNotFound)
	}

	return domain.Round{
		ID:            v[0].(*big.Int).Uint64(),
		LockedPrice:   v[1].(*big.Int).Int64(),
		FinalPrice:    v[2].(*big.Int).Int64(),
		StartTime:     time.Unix(v[3].(*big.Int).Int64(), 0).UTC(),
		EndTime:       time.Unix(end.Int64(), 0).UTC(),
		Resolved:      v[5].(bool),
		Outcome:       outcomeFromUint8(v[6].(uint8)),
		UpPool:        v[7].(*big.Int).Uint64(),
		DownPool:      v[8].(*big.Int).Uint64(),
		TotalFees:     v[9].(*big.Int).Uint64(),
		FeesCollected: v[10].(bool),
	}, nil
}

func outcomeFromUint8(v uint8) domain.Outcome {
	switch v {
	case 1:
		return domain.OutcomeUp
	case 2:
		return domain.OutcomeDown
	case 3:
		return domain.OutcomeDraw
	default:
		return domain.OutcomePending
	}
}

// StartRound calls startRoundManual(price, duration).
func (c *Client) StartRound(ctx context.Context, priceCents int64, duration time.Duration) (domain.TxResult, error) {
	return c.transact(ctx, string(domain.ActionStartRound), "startRoundManual",
		big.NewInt(priceCents), big.NewInt(int64(duration/time.Second)))
}

// ResolveRound calls resolveRoundManual(price). The contract resolves its
// current round; roundID is only used for logging.
func (c *Client) ResolveRound(ctx context.Context, roundID uint64, priceCents int64) (domain.TxResult, error) {
	c.logger.DebugContext(ctx, "resolving current round", slog.Uint64("round_id", roundID))
	return c.transact(ctx, string(domain.ActionResolveRound), "resolveRoundManual", big.NewInt(priceCents))
}

// CollectFees calls collectFees(roundId).
func (c *Client) CollectFees(ctx context.Context, roundID uint64) (domain.TxResult, error) {
	return c.transact(ctx, string(domain.ActionCollectFees), "collectFees", new(big.Int).SetUint64(roundID))
}

// Initialize is done by the contract constructor.
func (c *Client) Initialize(context.Context, string) (domain.TxResult, error) {
	return domain.TxResult{}, &domain.TxError{Op: string(domain.ActionInitialize), Err: errUnsupported}
}

// UpdateTreasury calls updateTreasury(address).
func (c *Client) UpdateTreasury(ctx context.Context, treasury string) (domain.TxResult, error) {
	op := string(domain.ActionUpdateTreasury)
	if !common.IsHexAddress(treasury) {
		return domain.TxResult{}, &domain.TxError{Op: op, Err: fmt.Errorf("treasury %q is not a hex address", treasury)}
	}
	return c.transact(ctx, op, "updateTreasury", common.HexToAddress(treasury))
}

// EmergencyWithdraw calls emergencyWithdraw(roundId). The contract holds a
// single settlement asset, so the URIM variant is unsupported.
func (c *Client) EmergencyWithdraw(ctx context.Context, roundID uint64, urim bool) (domain.TxResult, error) {
	if urim {
		return domain.TxResult{}, &domain.TxError{Op: string(domain.ActionEmergencyWithdrawUrim), Err: errUnsupported}
	}
	return c.transact(ctx, string(domain.ActionEmergencyWithdraw), "emergencyWithdraw", new(big.Int).SetUint64(roundID))
}
