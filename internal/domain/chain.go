package domain

import (
	"context"
	"time"
)

// RoundReader reads program state. Round returns ErrAccountNotFound when the
// round record does not exist.
type RoundReader interface {
	GlobalConfig(ctx context.Context) (GlobalConfig, error)
	Round(ctx context.Context, id uint64) (Round, error)
}

// RoundWriter submits the keeper's lifecycle instructions, one transaction
// each. Failures are *TxError values.
type RoundWriter interface {
	StartRound(ctx context.Context, priceCents int64, duration time.Duration) (TxResult, error)
	ResolveRound(ctx context.Context, roundID uint64, priceCents int64) (TxResult, error)
	CollectFees(ctx context.Context, roundID uint64) (TxResult, error)
}

// ChainAdmin covers the administrative instructions the keeper never issues
// on its own. Operators reach them through roundctl.
type ChainAdmin interface {
	Initialize(ctx context.Context, treasury string) (TxResult, error)
	UpdateTreasury(ctx context.Context, treasury string) (TxResult, error)
	EmergencyWithdraw(ctx context.Context, roundID uint64, urim bool) (TxResult, error)
}

// Chain is a settlement backend as seen by the keeper.
type Chain interface {
	RoundReader
	RoundWriter
	ChainAdmin
	Name() string
	Signer() string
	Close()
}
