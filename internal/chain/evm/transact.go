package evm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
)

var errNoSigner = errors.New("no signing key configured")

// transact sends one contract call as a legacy EIP-155 transaction and waits
// for its receipt.
func (c *Client) transact(ctx context.Context, op, method string, args ...any) (domain.TxResult, error) {
	if c.key == nil {
		return domain.TxResult{}, &domain.TxError{Op: op, Err: errNoSigner}
	}

	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return domain.TxResult{}, &domain.TxError{Op: op, Err: fmt.Errorf("pack %s: %w", method, err)}
	}

	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return domain.TxResult{}, &domain.TxError{Op: op, Err: fmt.Errorf("nonce: %w", err)}
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return domain.TxResult{}, &domain.TxError{Op: op, Err: fmt.Errorf("gas price: %w", err)}
	}

	msg := ethereum.CallMsg{From: c.from, To: &c.contract, GasPrice: gasPrice, Data: data}
	gas, err := c.backend.EstimateGas(ctx, msg)
	if err != nil {
		// A failed estimate is almost always a revert; the node's message
		// carries the reason.
		return domain.TxResult{}, &domain.TxError{Op: op, Logs: []string{err.Error()}, Err: fmt.Errorf("estimate gas: %w", err)}
	}
	gas = gas * 12 / 10

	tx := types.NewTransaction(nonce, c.contract, big.NewInt(0), gas, gasPrice, data)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.key)
	if err != nil {
		return domain.TxResult{}, &domain.TxError{Op: op, Err: fmt.Errorf("sign: %w", err)}
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return domain.TxResult{}, &domain.TxError{Op: op, Err: fmt.Errorf("send: %w", err)}
	}

	hash := signed.Hash()
	c.logger.DebugContext(ctx, "transaction sent",
		slog.String("op", op),
		slog.String("tx", hash.Hex()),
	)

	receipt, err := c.waitForReceipt(ctx, hash)
	if err != nil {
		return domain.TxResult{}, &domain.TxError{Op: op, TxID: hash.Hex(), Err: err}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return domain.TxResult{}, &domain.TxError{
			Op:   op,
			TxID: hash.Hex(),
			Logs: c.revertReason(ctx, msg, receipt.BlockNumber),
			Err:  errors.New("transaction reverted"),
		}
	}
	return domain.TxResult{TxID: hash.Hex()}, nil
}

func (c *Client) waitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			c.logger.DebugContext(ctx, "receipt poll failed",
				slog.String("tx", hash.Hex()),
				slog.String("error", err.Error()),
			)
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("not confirmed within %s", c.confirmTimeout)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// revertReason replays msg at the block the transaction landed in. Best
// effort: nil when the replay does not fail.
func (c *Client) revertReason(ctx context.Context, msg ethereum.CallMsg, block *big.Int) []string {
	_, err := c.backend.CallContract(ctx, msg, block)
	if err == nil {
		return nil
	}
	return []string{err.Error()}
}
