// Package history keeps a local SQLite ledger of backup runs so operators can
// see what each tier did without trawling logs.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hatemosphere/pgrotate/internal/backup"

	_ "modernc.org/sqlite"
)

// Entry is one recorded tier outcome.
type Entry struct {
	RunID      string
	Tier       string
	State      string
	CreatedID  string
	EvictedID  string
	Errors     string // newline-separated
	RanAt      time.Time
	DurationMS int64
}

// Store implements backup.Recorder on top of SQLite in WAL mode.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the ledger at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=synchronous(normal)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS tier_runs (
    run_id TEXT NOT NULL,
    tier TEXT NOT NULL,
    state TEXT NOT NULL,
    created_id TEXT NOT NULL DEFAULT '',
    evicted_id TEXT NOT NULL DEFAULT '',
    errors TEXT NOT NULL DEFAULT '',
    ran_at INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, tier)
);

CREATE INDEX IF NOT EXISTS idx_tier_runs_tier_ran_at ON tier_runs (tier, ran_at DESC);
`

// Record writes every outcome of the report in a single transaction.
func (s *Store) Record(ctx context.Context, report backup.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	for _, o := range report.Outcomes {
		msgs := make([]string, 0, len(o.Errors))
		for _, e := range o.Errors {
			msgs = append(msgs, e.Error())
		}
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO tier_runs (run_id, tier, state, created_id, evicted_id, errors, ran_at, duration_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			report.RunID, string(o.Tier.Name), string(o.State), o.CreatedID, o.EvictedID,
			strings.Join(msgs, "\n"), report.StartedAt.Unix(), o.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("insert %s outcome: %w", o.Tier.Name, err)
		}
	}
	return tx.Commit()
}

// Recent returns up to limit entries for tier, newest first.
func (s *Store) Recent(ctx context.Context, tier string, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, tier, state, created_id, evicted_id, errors, ran_at, duration_ms
		 FROM tier_runs WHERE tier=? ORDER BY ran_at DESC, rowid DESC LIMIT ?`, tier, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ranAt int64
		if err := rows.Scan(&e.RunID, &e.Tier, &e.State, &e.CreatedID, &e.EvictedID, &e.Errors, &ranAt, &e.DurationMS); err != nil {
			return nil, err
		}
		e.RanAt = time.Unix(ranAt, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
