// Package sqlite keeps tick history and the audit log in a local SQLite file
// for single-host deployments (pure Go, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS tick_reports (
    id          TEXT PRIMARY KEY,
    chain       TEXT    NOT NULL,
    decision    TEXT    NOT NULL,
    round_id    INTEGER NOT NULL,
    error       TEXT    NOT NULL DEFAULT '',
    started_at  INTEGER NOT NULL,
    report      TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    event      TEXT    NOT NULL,
    detail     TEXT,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ticks_started ON tick_reports(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_log(created_at DESC);
`

// Store implements domain.TickStore and domain.AuditStore. Timestamps are
// stored as unix nanoseconds.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordTick inserts a tick report. Re-recording the same id is a no-op.
func (s *Store) RecordTick(ctx context.Context, r domain.TickReport) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("sqlite: marshal tick %s: %w", r.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO tick_reports (id, chain, decision, round_id, error, started_at, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Chain, string(r.Decision), int64(r.RoundID), r.Error, r.StartedAt.UnixNano(), string(body),
	)
	if err != nil {
		return fmt.Errorf("sqlite: record tick %s: %w", r.ID, err)
	}
	return nil
}

// ListTicks returns tick reports, newest first.
func (s *Store) ListTicks(ctx context.Context, opts domain.ListOpts) ([]domain.TickReport, error) {
	query, args := listQuery(`SELECT report FROM tick_reports WHERE 1=1`, "started_at", opts)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list ticks: %w", err)
	}
	defer rows.Close()

	reports := []domain.TickReport{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("sqlite: scan tick: %w", err)
		}
		var r domain.TickReport
		if err := json.Unmarshal([]byte(body), &r); err != nil {
			return nil, fmt.Errorf("sqlite: unmarshal tick: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list ticks rows: %w", err)
	}
	return reports, nil
}

// LastTick returns the most recent report or domain.ErrNotFound.
func (s *Store) LastTick(ctx context.Context) (domain.TickReport, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT report FROM tick_reports ORDER BY started_at DESC LIMIT 1`).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TickReport{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.TickReport{}, fmt.Errorf("sqlite: last tick: %w", err)
	}
	var r domain.TickReport
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return domain.TickReport{}, fmt.Errorf("sqlite: unmarshal tick: %w", err)
	}
	return r, nil
}

// Log appends an audit entry.
func (s *Store) Log(ctx context.Context, event string, detail map[string]any) error {
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("sqlite: marshal audit detail: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_log (event, detail, created_at) VALUES (?, ?, ?)`,
		event, string(detailJSON), s.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: log audit event %s: %w", event, err)
	}
	return nil
}

// List returns audit entries, newest first.
func (s *Store) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	query, args := listQuery(`SELECT id, event, detail, created_at FROM audit_log WHERE 1=1`, "created_at", opts)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.AuditEntry{}
	for rows.Next() {
		var (
			e       domain.AuditEntry
			detail  sql.NullString
			created int64
		)
		if err := rows.Scan(&e.ID, &e.Event, &detail, &created); err != nil {
			return nil, fmt.Errorf("sqlite: scan audit entry: %w", err)
		}
		if detail.Valid && detail.String != "" {
			if err := json.Unmarshal([]byte(detail.String), &e.Detail); err != nil {
				return nil, fmt.Errorf("sqlite: unmarshal audit detail: %w", err)
			}
		}
		e.CreatedAt = time.Unix(0, created).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list audit entries rows: %w", err)
	}
	return entries, nil
}

func listQuery(base, column string, opts domain.ListOpts) (string, []any) {
	query := base
	var args []any
	if opts.Since != nil {
		query += " AND " + column + " >= ?"
		args = append(args, opts.Since.UnixNano())
	}
	if opts.Until != nil {
		query += " AND " + column + " <= ?"
		args = append(args, opts.Until.UnixNano())
	}
	query += " ORDER BY " + column + " DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	} else if opts.Offset > 0 {
		query += " LIMIT -1"
	}
	if opts.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}
	return query, args
}

var (
	_ domain.TickStore  = (*Store)(nil)
	_ domain.AuditStore = (*Store)(nil)
)
