package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Fakelatency/ztm-schedule/internal/api/models"

	_ "modernc.org/sqlite"
)

// SQLiteDB wraps a read connection to the crawl checkpoint database
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB opens the checkpoint database written by index-lines
func NewSQLiteDB(dbPath string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *SQLiteDB) GetDB() *sql.DB {
	return s.db
}

// SQLiteCrawlRepository reads crawl runs and their progress
type SQLiteCrawlRepository struct {
	db *sql.DB
}

// NewSQLiteCrawlRepository creates a new SQLiteCrawlRepository
func NewSQLiteCrawlRepository(db *sql.DB) *SQLiteCrawlRepository {
	return &SQLiteCrawlRepository{db: db}
}

// parseTimeString converts an RFC3339 string to *time.Time
// Returns nil if the input is nil or empty
func parseTimeString(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil
	}
	return &t
}

// ListRuns returns the most recent runs, newest first
func (r *SQLiteCrawlRepository) ListRuns(ctx context.Context, limit int) ([]models.CrawlRun, error) {
	query := `
		SELECT
			r.run_id,
			r.status,
			r.started_at_utc,
			r.finished_at_utc,
			r.stop_count,
			COUNT(s.position),
			COUNT(s.error)
		FROM crawl_runs r
		LEFT JOIN crawl_stop_results s ON s.run_id = r.run_id
		GROUP BY r.run_id
		ORDER BY r.started_at_utc DESC, r.rowid DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query crawl runs: %w", err)
	}
	defer rows.Close()

	runs := []models.CrawlRun{}
	for rows.Next() {
		var (
			run         models.CrawlRun
			startedStr  string
			finishedStr *string
		)
		if err := rows.Scan(&run.RunID, &run.Status, &startedStr, &finishedStr, &run.StopCount, &run.Attempted, &run.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan crawl run: %w", err)
		}
		if t := parseTimeString(&startedStr); t != nil {
			run.StartedAt = *t
		}
		run.FinishedAt = parseTimeString(finishedStr)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
