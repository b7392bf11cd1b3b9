package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
)

// rpcAPI is the subset of *rpc.Client the adapter uses.
type rpcAPI interface {
	GetAccountInfoWithOpts(ctx context.Context, account solanago.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solanago.Transaction, opts rpc.TransactionOpts) (solanago.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...solanago.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetTransaction(ctx context.Context, txSig solanago.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error)
}

// Options configures a Client.
type Options struct {
	RPCURL    string
	ProgramID string
	USDCMint  string
	UrimMint  string
	// Treasury is the token account receiving fees. Empty means the admin's
	// associated USDC account.
	Treasury       string
	RatePerSec     float64
	ConfirmTimeout time.Duration
	// Key is the admin's 64-byte secret key. Nil gives a read-only client.
	Key []byte
}

// Client implements domain.Chain for the Solana program.
type Client struct {
	rpc            rpcAPI
	closeRPC       func() error
	program        Program
	admin          solanago.PrivateKey
	treasury       solanago.PublicKey
	limiter        *rate.Limiter
	confirmTimeout time.Duration
	pollInterval   time.Duration
	logger         *slog.Logger
}

var _ domain.Chain = (*Client)(nil)

// New dials the RPC endpoint and returns a client.
func New(opts Options, logger *slog.Logger) (*Client, error) {
	rpcClient := rpc.New(opts.RPCURL)
	c, err := newClient(rpcClient, opts, logger)
	if err != nil {
		_ = rpcClient.Close()
		return nil, err
	}
	c.closeRPC = rpcClient.Close
	return c, nil
}

func newClient(api rpcAPI, opts Options, logger *slog.Logger) (*Client, error) {
	program, err := ParseProgram(opts.ProgramID, opts.USDCMint, opts.UrimMint)
	if err != nil {
		return nil, err
	}

	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}
	confirmTimeout := opts.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = 60 * time.Second
	}

	c := &Client{
		rpc:            api,
		program:        program,
		limiter:        rate.NewLimiter(limit, 1),
		confirmTimeout: confirmTimeout,
		pollInterval:   500 * time.Millisecond,
		logger:         logger.With(slog.String("component", "solana")),
	}

	if len(opts.Key) > 0 {
		if len(opts.Key) != 64 {
			return nil, fmt.Errorf("%w: solana secret key must be 64 bytes, got %d", domain.ErrConfiguration, len(opts.Key))
		}
		c.admin = solanago.PrivateKey(opts.Key)
	}

	if opts.Treasury != "" {
		c.treasury, err = solanago.PublicKeyFromBase58(opts.Treasury)
		if err != nil {
			return nil, fmt.Errorf("%w: solana treasury: %v", domain.ErrConfiguration, err)
		}
	} else if c.admin != nil {
		c.treasury, _, err = solanago.FindAssociatedTokenAddress(c.admin.PublicKey(), program.USDCMint)
		if err != nil {
			return nil, fmt.Errorf("solana: derive treasury account: %w", err)
		}
	}
	return c, nil
}

// ParseProgram parses base58 program and mint addresses.
func ParseProgram(programID, usdcMint, urimMint string) (Program, error) {
	var (
		p   Program
		err error
	)
	if p.ID, err = solanago.PublicKeyFromBase58(programID); err != nil {
		return p, fmt.Errorf("%w: solana program_id: %v", domain.ErrConfiguration, err)
	}
	if usdcMint != "" {
		if p.USDCMint, err = solanago.PublicKeyFromBase58(usdcMint); err != nil {
			return p, fmt.Errorf("%w: solana usdc_mint: %v", domain.ErrConfiguration, err)
		}
	}
	if urimMint != "" {
		if p.UrimMint, err = solanago.PublicKeyFromBase58(urimMint); err != nil {
			return p, fmt.Errorf("%w: solana urim_mint: %v", domain.ErrConfiguration, err)
		}
	}
	return p, nil
}

// Name implements domain.Chain.
func (c *Client) Name() string { return "solana" }

// Signer returns the admin public key, or "" for a read-only client.
func (c *Client) Signer() string {
	if c.admin == nil {
		return ""
	}
	return c.admin.PublicKey().String()
}

// Program returns the program the client talks to.
func (c *Client) Program() Program { return c.program }

// Close releases the RPC connection.
func (c *Client) Close() {
	if c.closeRPC != nil {
		_ = c.closeRPC()
	}
}

// GlobalConfig reads and decodes the config account.
func (c *Client) GlobalConfig(ctx context.Context) (domain.GlobalConfig, error) {
	addr, err := c.program.ConfigAddress()
	if err != nil {
		return domain.GlobalConfig{}, err
	}
	data, err := c.fetch(ctx, addr)
	if err != nil {
		return domain.GlobalConfig{}, fmt.Errorf("solana: global config: %w", err)
	}
	return decodeGlobalConfig(data)
}

// Round reads and decodes round id. A missing account is
// domain.ErrAccountNotFound.
func (c *Client) Round(ctx context.Context, id uint64) (domain.Round, error) {
	addr, err := c.program.RoundAddress(id)
	if err != nil {
		return domain.Round{}, err
	}
	data, err := c.fetch(ctx, addr)
	if err != nil {
		return domain.Round{}, fmt.Errorf("solana: round %d: %w", id, err)
	}
	return decodeRound(data)
}

func (c *Client) fetch(ctx context.Context, addr solanago.PublicKey) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	out, err := c.rpc.GetAccountInfoWithOpts(ctx, addr, &rpc.GetAccountInfoOpts{
		Commitment: rpc.CommitmentConfirmed,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	if out == nil || out.Value == nil || out.Value.Data == nil {
		return nil, domain.ErrAccountNotFound
	}
	return out.Value.Data.GetBinary(), nil
}
