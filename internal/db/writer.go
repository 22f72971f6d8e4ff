package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses
const (
	RunRunning   = "running"
	RunFinished  = "finished"
	RunAbandoned = "abandoned"
)

// Run is one index build.
type Run struct {
	ID        string
	StartedAt time.Time
	StopCount int
	Status    string
}

// StopResult is the recorded outcome of querying one stop during a run.
// Err is non-empty when the query failed; Lines is then empty.
type StopResult struct {
	Position   int
	StopID     string
	StopNumber string
	Lines      []string
	Err        string
}

// StartRun creates a new run record and returns it
func (db *DB) StartRun(ctx context.Context, stopCount int) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		StartedAt: time.Now().UTC(),
		StopCount: stopCount,
		Status:    RunRunning,
	}

	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO crawl_runs (run_id, started_at_utc, stop_count, status) VALUES (?, ?, ?, ?)",
		run.ID, run.StartedAt.Format(time.RFC3339), run.StopCount, run.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// LatestUnfinishedRun returns the most recently started run that never
// finished, or nil if there is none.
func (db *DB) LatestUnfinishedRun(ctx context.Context) (*Run, error) {
	var (
		run       Run
		startedAt string
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT run_id, started_at_utc, stop_count, status
		FROM crawl_runs
		WHERE status = ?
		ORDER BY started_at_utc DESC, rowid DESC
		LIMIT 1`, RunRunning,
	).Scan(&run.ID, &startedAt, &run.StopCount, &run.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	run.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	return &run, nil
}

// SaveResults records a batch of stop outcomes for a run in one transaction.
// Re-saving a position overwrites it.
func (db *DB) SaveResults(ctx context.Context, runID string, results []StopResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO crawl_stop_results (run_id, position, stop_id, stop_number, lines_json, error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, position) DO UPDATE SET
			stop_id = excluded.stop_id,
			stop_number = excluded.stop_number,
			lines_json = excluded.lines_json,
			error = excluded.error`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		lines := r.Lines
		if lines == nil {
			lines = []string{}
		}
		linesJSON, err := json.Marshal(lines)
		if err != nil {
			return fmt.Errorf("failed to encode lines for position %d: %w", r.Position, err)
		}

		var errText *string
		if r.Err != "" {
			errText = &r.Err
		}

		if _, err := stmt.ExecContext(ctx, runID, r.Position, r.StopID, r.StopNumber, string(linesJSON), errText); err != nil {
			return fmt.Errorf("failed to save result for position %d: %w", r.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}
	return nil
}

// LoadResults returns every recorded outcome of a run, keyed by position.
func (db *DB) LoadResults(ctx context.Context, runID string) (map[int]StopResult, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT position, stop_id, stop_number, lines_json, error
		FROM crawl_stop_results
		WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	results := make(map[int]StopResult)
	for rows.Next() {
		var (
			r         StopResult
			linesJSON string
			errText   sql.NullString
		)
		if err := rows.Scan(&r.Position, &r.StopID, &r.StopNumber, &linesJSON, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if err := json.Unmarshal([]byte(linesJSON), &r.Lines); err != nil {
			return nil, fmt.Errorf("failed to decode lines for position %d: %w", r.Position, err)
		}
		r.Err = errText.String
		results[r.Position] = r
	}
	return results, rows.Err()
}

// FinishRun marks a run as finished.
func (db *DB) FinishRun(ctx context.Context, runID string) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE crawl_runs SET status = ?, finished_at_utc = ? WHERE run_id = ?",
		RunFinished, time.Now().UTC().Format(time.RFC3339), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// AbandonRun marks a run so it is never offered for resuming again.
func (db *DB) AbandonRun(ctx context.Context, runID string) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE crawl_runs SET status = ?, finished_at_utc = ? WHERE run_id = ?",
		RunAbandoned, time.Now().UTC().Format(time.RFC3339), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to abandon run: %w", err)
	}
	return nil
}

// AbandonUnfinishedRuns abandons every run still marked running, so that
// Cleanup can prune it and it is never resumed. Returns the number of runs
// abandoned.
func (db *DB) AbandonUnfinishedRuns(ctx context.Context) (int, error) {
	result, err := db.conn.ExecContext(ctx,
		"UPDATE crawl_runs SET status = ?, finished_at_utc = ? WHERE status = ?",
		RunAbandoned, time.Now().UTC().Format(time.RFC3339), RunRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to abandon unfinished runs: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}
