package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
)

// TickStore implements domain.TickStore using PostgreSQL. The full report is
// kept as JSONB next to the columns used for filtering.
type TickStore struct {
	pool *pgxpool.Pool
}

// NewTickStore creates a new TickStore backed by the given connection pool.
func NewTickStore(pool *pgxpool.Pool) *TickStore {
	return &TickStore{pool: pool}
}

// RecordTick inserts a tick report. Re-recording the same id is a no-op.
func (s *TickStore) RecordTick(ctx context.Context, r domain.TickReport) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("postgres: marshal tick %s: %w", r.ID, err)
	}

	var newRound *int64
	if r.NewRoundID != nil {
		v := int64(*r.NewRoundID)
		newRound = &v
	}

	const query = `
		INSERT INTO tick_reports (id, chain, decision, round_id, new_round_id, outcome, error, started_at, finished_at, report)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`
	_, err = s.pool.Exec(ctx, query,
		r.ID, r.Chain, string(r.Decision), int64(r.RoundID), newRound,
		r.Outcome, r.Error, r.StartedAt, r.FinishedAt, body,
	)
	if err != nil {
		return fmt.Errorf("postgres: record tick %s: %w", r.ID, err)
	}
	return nil
}

// ListTicks returns tick reports, newest first.
func (s *TickStore) ListTicks(ctx context.Context, opts domain.ListOpts) ([]domain.TickReport, error) {
	query, args := listQuery(`SELECT report FROM tick_reports WHERE 1=1`, "started_at", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list ticks: %w", err)
	}

	reports, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TickReport, error) {
		var body []byte
		if err := row.Scan(&body); err != nil {
			return domain.TickReport{}, err
		}
		return decodeReport(body)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: list ticks: %w", err)
	}
	if reports == nil {
		reports = []domain.TickReport{}
	}
	return reports, nil
}

func decodeReport(body []byte) (domain.TickReport, error) {
	var r domain.TickReport
	if err := json.Unmarshal(body, &r); err != nil {
		return r, fmt.Errorf("decode tick report: %w", err)
	}
	return r, nil
}

// LastTick returns the most recent report or domain.ErrNotFound.
func (s *TickStore) LastTick(ctx context.Context) (domain.TickReport, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT report FROM tick_reports ORDER BY started_at DESC LIMIT 1`).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TickReport{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.TickReport{}, fmt.Errorf("postgres: last tick: %w", err)
	}
	r, err := decodeReport(body)
	if err != nil {
		return r, fmt.Errorf("postgres: last tick: %w", err)
	}
	return r, nil
}

var _ domain.TickStore = (*TickStore)(nil)
