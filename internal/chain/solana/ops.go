package solana

import (
	"context"
	"fmt"
	"time"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
)

// StartRound opens the round numbered by the current config counter.
func (c *Client) StartRound(ctx context.Context, priceCents int64, duration time.Duration) (domain.TxResult, error) {
	op := string(domain.ActionStartRound)
	authority, err := c.authority(op)
	if err != nil {
		return domain.TxResult{}, err
	}
	cfg, err := c.GlobalConfig(ctx)
	if err != nil {
		return domain.TxResult{}, &domain.TxError{Op: op, Err: err}
	}
	ix, err := c.program.startRoundIx(cfg.CurrentRoundID, authority, priceCents, int64(duration/time.Second))
	if err != nil {
		return domain.TxResult{}, &domain.TxError{Op: op, Err: err}
	}
	return c.submit(ctx, op, ix)
}

// ResolveRound settles roundID at priceCents. The program computes the outcome.
func (c *Client) ResolveRound(ctx context.Context, roundID uint64, priceCents int64) (domain.TxResult, error) {
	op := string(domain.ActionResolveRound)
	authority, err := c.authority(op)
	if err != nil {
		return domain.TxResult{}, err
	}
	ix, err := c.program.resolveRoundIx(roundID, authority, priceCents)
	if err != nil {
		return domain.TxResult{}, &domain.TxError{Op: op, Err: err}
	}
	return c.submit(ctx, op, ix)
}

// CollectFees moves the round's accrued fees from its USDC vault to the
// treasury token account.
func (c *Client) CollectFees(ctx context.Context, roundID uint64) (domain.TxResult, error) {
	op := string(domain.ActionCollectFees)
	authority, err := c.authority(op)
	if err != nil {
		return domain.TxResult{}, err
	}
	ix, err := c.program.collectFeesIx(roundID, c.treasury, authority)
	if err != nil {
		return domain.TxResult{}, &domain.TxError{Op: op, Err: err}
	}
	return c.submit(ctx, op, ix)
}

// Initialize creates the config account with treasury as fee recipient.
func (c *Client) Initialize(ctx context.Context, treasury string) (domain.TxResult, error) {
	op := string(domain.ActionInitialize)
	authority, err := c.authority(op)
	if err != nil {
		return domain.TxResult{}, err
	}
	pk, err := solanago.PublicKeyFromBase58(treasury)
	if err != nil {
		return domain.TxResult{}, &domain.TxError{Op: op, Err: fmt.Errorf("treasury: %w", err)}
	}
	ix, err := c.program.initializeIx(authority, pk)
	if err != nil {
		return domain.TxResult{}, &domain.TxError{Op: op, Err: err}
	}
	return c.submit(ctx, op, ix)
}

// UpdateTreasury changes the config's treasury.
func (c *Client) UpdateTreasury(ctx context.Context, treasury string) (domain.TxResult, error) {
	op := string(domain.ActionUpdateTreasury)
	authority, err := c.authority(op)
	if err != nil {
		return domain.TxResult{}, err
	}
	pk, err := solanago.PublicKeyFromBase58(treasury)
	if err != nil {
		return domain.TxResult{}, &domain.TxError{Op: op, Err: fmt.Errorf("treasury: %w", err)}
	}
	ix, err := c.program.updateTreasuryIx(authority, pk)
	if err != nil {
		return domain.TxResult{}, &domain.TxError{Op: op, Err: err}
	}
	return c.submit(ctx, op, ix)
}

// EmergencyWithdraw drains a round vault to the admin: the USDC vault into
// the treasury account, or the URIM vault into the admin's URIM account.
func (c *Client) EmergencyWithdraw(ctx context.Context, roundID uint64, urim bool) (domain.TxResult, error) {
	op := string(domain.ActionEmergencyWithdraw)
	if urim {
		op = string(domain.ActionEmergencyWithdrawUrim)
	}
	authority, err := c.authority(op)
	if err != nil {
		return domain.TxResult{}, err
	}

	dest := c.treasury
	if urim {
		ata, _, err := solanago.FindAssociatedTokenAddress(authority, c.program.UrimMint)
		if err != nil {
			return domain.TxResult{}, &domain.TxError{Op: op, Err: err}
		}
		dest = ata
	}
	ix, err := c.program.emergencyWithdrawIx(roundID, urim, dest, authority)
	if err != nil {
		return domain.TxResult{}, &domain.TxError{Op: op, Err: err}
	}
	return c.submit(ctx, op, ix)
}
