package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrAccountNotFound   = errors.New("account not found")
	ErrOracleUnavailable = errors.New("oracle unavailable")
	ErrTransactionFailed = errors.New("transaction failed")
	ErrConfiguration     = errors.New("configuration error")
	ErrLockHeld          = errors.New("lock already held")
	ErrTickInProgress    = errors.New("tick already in progress")
)

// TxError is returned by chain adapters when a transaction could not be
// submitted or was rejected on confirmation. It matches ErrTransactionFailed
// under errors.Is and carries the program log lines the node returned, if any.
type TxError struct {
	Op   string
	TxID string
	Logs []string
	Err  error
}

func (e *TxError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %v", e.Op, ErrTransactionFailed)
	if e.TxID != "" {
		fmt.Fprintf(&b, " (tx %s)", e.TxID)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *TxError) Unwrap() error { return e.Err }

// Is reports ErrTransactionFailed as a match so callers can test the class
// of failure without caring about the underlying RPC error.
func (e *TxError) Is(target error) bool { return target == ErrTransactionFailed }

// TailLogs returns at most n trailing log lines.
func (e *TxError) TailLogs(n int) []string {
	if len(e.Logs) <= n {
		return e.Logs
	}
	return e.Logs[len(e.Logs)-n:]
}
