// Package sqlite implements the run store on SQLite via modernc.org/sqlite,
// a pure-Go driver that keeps the binary cgo-free.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/cvsift/pkg/cvsift/internalerr"
	"github.com/cognicore/cvsift/pkg/cvsift/store"
)

// sqliteStore implements store.Store using SQLite.
type sqliteStore struct {
	db *sql.DB
}

// Open opens (creating if needed) a SQLite run store with WAL mode enabled.
func Open(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// WAL for concurrent readers during batch writes.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection.
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	doc_id TEXT,
	lang TEXT,
	created_at TEXT NOT NULL,
	input_lines INTEGER NOT NULL,
	non_empty_lines INTEGER NOT NULL,
	total_blocks INTEGER NOT NULL,
	keep_rate REAL NOT NULL,
	coverage REAL NOT NULL,
	fp_prevention REAL NOT NULL,
	mean_confidence REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS run_results (
	run_id TEXT NOT NULL,
	block_idx INTEGER NOT NULL,
	preview TEXT,
	category TEXT,
	decision TEXT NOT NULL,
	confidence REAL NOT NULL,
	final_score REAL NOT NULL,
	exp_score REAL NOT NULL,
	org_score REAL NOT NULL,
	date_score REAL NOT NULL,
	reasoning TEXT,
	PRIMARY KEY(run_id, block_idx),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// SaveRun persists the run and its block results in one transaction.
func (s *sqliteStore) SaveRun(ctx context.Context, run store.Run, results []store.BlockResult) error {
	if run.ID == "" {
		return fmt.Errorf("%w: run id required", internalerr.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, doc_id, lang, created_at, input_lines, non_empty_lines,
			total_blocks, keep_rate, coverage, fp_prevention, mean_confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.DocID, run.Lang, run.CreatedAt.UTC().Format(time.RFC3339Nano),
		run.InputLines, run.NonEmptyLines, run.TotalBlocks,
		run.KeepRate, run.Coverage, run.FalsePositivePrevention, run.MeanConfidence)
	if err != nil {
		return err
	}

	for _, r := range results {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_results (run_id, block_idx, preview, category, decision,
				confidence, final_score, exp_score, org_score, date_score, reasoning)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, r.BlockIdx, r.Preview, r.Category, r.Decision,
			r.Confidence, r.FinalScore, r.ExpScore, r.OrgScore, r.DateScore, r.Reasoning)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetRun fetches a run and its block results.
func (s *sqliteStore) GetRun(ctx context.Context, id string) (store.Run, []store.BlockResult, error) {
	var run store.Run
	var createdAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, doc_id, lang, created_at, input_lines, non_empty_lines,
			total_blocks, keep_rate, coverage, fp_prevention, mean_confidence
		FROM runs WHERE id = ?`, id).Scan(
		&run.ID, &run.DocID, &run.Lang, &createdAt,
		&run.InputLines, &run.NonEmptyLines, &run.TotalBlocks,
		&run.KeepRate, &run.Coverage, &run.FalsePositivePrevention, &run.MeanConfidence)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Run{}, nil, internalerr.ErrNotFound
	}
	if err != nil {
		return store.Run{}, nil, err
	}
	if t, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
		run.CreatedAt = t
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, block_idx, preview, category, decision, confidence,
			final_score, exp_score, org_score, date_score, reasoning
		FROM run_results WHERE run_id = ? ORDER BY block_idx`, id)
	if err != nil {
		return store.Run{}, nil, err
	}
	defer rows.Close()

	var results []store.BlockResult
	for rows.Next() {
		var r store.BlockResult
		if err := rows.Scan(&r.RunID, &r.BlockIdx, &r.Preview, &r.Category, &r.Decision,
			&r.Confidence, &r.FinalScore, &r.ExpScore, &r.OrgScore, &r.DateScore, &r.Reasoning); err != nil {
			return store.Run{}, nil, err
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return store.Run{}, nil, err
	}

	return run, results, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *sqliteStore) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, doc_id, lang, created_at, input_lines, non_empty_lines,
			total_blocks, keep_rate, coverage, fp_prevention, mean_confidence
		FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []store.Run
	for rows.Next() {
		var run store.Run
		var createdAt string
		if err := rows.Scan(&run.ID, &run.DocID, &run.Lang, &createdAt,
			&run.InputLines, &run.NonEmptyLines, &run.TotalBlocks,
			&run.KeepRate, &run.Coverage, &run.FalsePositivePrevention, &run.MeanConfidence); err != nil {
			return nil, err
		}
		if t, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
			run.CreatedAt = t
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
