package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
)

var errNoSigner = errors.New("no signing key configured")

func (c *Client) authority(op string) (solanago.PublicKey, error) {
	if c.admin == nil {
		return solanago.PublicKey{}, &domain.TxError{Op: op, Err: errNoSigner}
	}
	return c.admin.PublicKey(), nil
}

// submit signs ix into a single-instruction transaction, sends it and waits
// until the cluster reports it confirmed.
func (c *Client) submit(ctx context.Context, op string, ix solanago.Instruction) (domain.TxResult, error) {
	payer, err := c.authority(op)
	if err != nil {
		return domain.TxResult{}, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return domain.TxResult{}, &domain.TxError{Op: op, Err: err}
	}
	bh, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return domain.TxResult{}, &domain.TxError{Op: op, Err: fmt.Errorf("latest blockhash: %w", err)}
	}
	if bh == nil || bh.Value == nil {
		return domain.TxResult{}, &domain.TxError{Op: op, Err: errors.New("latest blockhash: empty response")}
	}

	tx, err := solanago.NewTransaction(
		[]solanago.Instruction{ix},
		bh.Value.Blockhash,
		solanago.TransactionPayer(payer),
	)
	if err != nil {
		return domain.TxResult{}, &domain.TxError{Op: op, Err: fmt.Errorf("build: %w", err)}
	}
	if _, err := tx.Sign(func(key solanago.PublicKey) *solanago.PrivateKey {
		if key.Equals(payer) {
			return &c.admin
		}
		return nil
	}); err != nil {
		return domain.TxResult{}, &domain.TxError{Op: op, Err: fmt.Errorf("sign: %w", err)}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return domain.TxResult{}, &domain.TxError{Op: op, Err: err}
	}
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return domain.TxResult{}, &domain.TxError{Op: op, Logs: logsFromRPCError(err), Err: err}
	}

	c.logger.DebugContext(ctx, "transaction sent",
		slog.String("op", op),
		slog.String("signature", sig.String()),
	)

	if err := c.awaitConfirmation(ctx, op, sig); err != nil {
		return domain.TxResult{}, err
	}
	return domain.TxResult{TxID: sig.String()}, nil
}

// awaitConfirmation polls the signature status until it is confirmed, fails,
// or confirmTimeout passes.
func (c *Client) awaitConfirmation(ctx context.Context, op string, sig solanago.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return c.confirmErr(op, sig, err)
		}
		out, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
		if err == nil && out != nil && len(out.Value) > 0 && out.Value[0] != nil {
			st := out.Value[0]
			if st.Err != nil {
				return &domain.TxError{
					Op:   op,
					TxID: sig.String(),
					Logs: c.transactionLogs(ctx, sig),
					Err:  fmt.Errorf("program error: %v", st.Err),
				}
			}
			if st.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				st.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		} else if err != nil {
			c.logger.DebugContext(ctx, "signature status poll failed",
				slog.String("signature", sig.String()),
				slog.String("error", err.Error()),
			)
		}

		select {
		case <-ctx.Done():
			return c.confirmErr(op, sig, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) confirmErr(op string, sig solanago.Signature, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("not confirmed within %s", c.confirmTimeout)
	}
	return &domain.TxError{Op: op, TxID: sig.String(), Err: err}
}

// transactionLogs fetches the program log lines of a landed transaction. It
// is best effort; a failure returns nil.
func (c *Client) transactionLogs(ctx context.Context, sig solanago.Signature) []string {
	var maxVersion uint64
	out, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil || out == nil || out.Meta == nil {
		return nil
	}
	return out.Meta.LogMessages
}

// logsFromRPCError extracts simulation logs from a preflight failure.
func logsFromRPCError(err error) []string {
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return nil
	}
	data, ok := rpcErr.Data.(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := data["logs"].([]any)
	if !ok {
		return nil
	}
	logs := make([]string, 0, len(raw))
	for _, l := range raw {
		if s, ok := l.(string); ok {
			logs = append(logs, s)
		}
	}
	return logs
}
