package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Fakelatency/ztm-schedule/internal/api/models"
	"github.com/Fakelatency/ztm-schedule/internal/lineindex"
	"github.com/Fakelatency/ztm-schedule/internal/stops"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS line_stops (
	line        TEXT NOT NULL,
	position    INTEGER NOT NULL,
	stop_id     TEXT NOT NULL,
	stop_number TEXT NOT NULL,
	name        TEXT NOT NULL,
	direction   TEXT NOT NULL,
	PRIMARY KEY (line, position)
);

CREATE TABLE IF NOT EXISTS line_index_meta (
	id           BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (id),
	run_id       TEXT NOT NULL,
	generated_at TIMESTAMPTZ NOT NULL
);
`

// PostgresLineRepository mirrors the line index into Postgres, for
// deployments where the API runs away from the machine doing the crawl.
type PostgresLineRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresLineRepository connects to databaseURL and ensures the schema
func NewPostgresLineRepository(ctx context.Context, databaseURL string) (*PostgresLineRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresLineRepository{pool: pool}, nil
}

// Close releases the pool
func (r *PostgresLineRepository) Close() {
	r.pool.Close()
}

// Publish replaces the mirrored index with idx in one transaction, so readers
// see either the old index or the new one.
func (r *PostgresLineRepository) Publish(ctx context.Context, idx lineindex.Index, runID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM line_stops"); err != nil {
		return fmt.Errorf("failed to clear line_stops: %w", err)
	}

	var rows [][]interface{}
	for _, line := range idx.Lines() {
		for pos, s := range idx[line] {
			rows = append(rows, []interface{}{line, pos, s.ID, s.Number, s.Name, s.Direction})
		}
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"line_stops"},
		[]string{"line", "position", "stop_id", "stop_number", "name", "direction"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy line_stops: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO line_index_meta (id, run_id, generated_at) VALUES (TRUE, $1, $2)
		ON CONFLICT (id) DO UPDATE SET run_id = excluded.run_id, generated_at = excluded.generated_at`,
		runID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update line_index_meta: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// ListLines returns every line with its stop count, sorted by line
func (r *PostgresLineRepository) ListLines(ctx context.Context) ([]models.LineSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT line, COUNT(*)
		FROM line_stops
		GROUP BY line
		ORDER BY line`)
	if err != nil {
		return nil, fmt.Errorf("failed to query lines: %w", err)
	}
	defer rows.Close()

	lines := []models.LineSummary{}
	for rows.Next() {
		var s models.LineSummary
		if err := rows.Scan(&s.Line, &s.StopCount); err != nil {
			return nil, fmt.Errorf("failed to scan line: %w", err)
		}
		lines = append(lines, s)
	}
	return lines, rows.Err()
}

// GetLineStops returns the stops of a line in index order
func (r *PostgresLineRepository) GetLineStops(ctx context.Context, line string) ([]stops.Stop, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT stop_id, stop_number, name, direction
		FROM line_stops
		WHERE line = $1
		ORDER BY position`, line)
	if err != nil {
		return nil, fmt.Errorf("failed to query line stops: %w", err)
	}
	defer rows.Close()

	var list []stops.Stop
	for rows.Next() {
		var s stops.Stop
		if err := rows.Scan(&s.ID, &s.Number, &s.Name, &s.Direction); err != nil {
			return nil, fmt.Errorf("failed to scan stop: %w", err)
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%q: %w", line, lineindex.ErrLineNotFound)
	}
	return list, nil
}

// IndexInfo describes the mirrored index
func (r *PostgresLineRepository) IndexInfo(ctx context.Context) (models.IndexInfo, error) {
	info := models.IndexInfo{Source: "postgres"}

	if err := r.pool.QueryRow(ctx, "SELECT COUNT(DISTINCT line) FROM line_stops").Scan(&info.Lines); err != nil {
		return info, fmt.Errorf("failed to count lines: %w", err)
	}

	var generatedAt time.Time
	err := r.pool.QueryRow(ctx, "SELECT run_id, generated_at FROM line_index_meta").Scan(&info.RunID, &generatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return info, nil
	}
	if err != nil {
		return info, fmt.Errorf("failed to query line_index_meta: %w", err)
	}
	info.GeneratedAt = &generatedAt
	return info, nil
}
