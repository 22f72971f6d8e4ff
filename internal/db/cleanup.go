package db

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Cleanup deletes runs that ended more than retention ago, together with their
// stop results. Unfinished runs are left alone so they can still be resumed.
func (db *DB) Cleanup(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-retention).Format(time.RFC3339)

	queries := []struct {
		name  string
		query string
	}{
		{
			name: "stop_results",
			query: `DELETE FROM crawl_stop_results WHERE run_id IN (
				SELECT run_id FROM crawl_runs WHERE status != 'running' AND finished_at_utc < ?)`,
		},
		{
			name:  "runs",
			query: "DELETE FROM crawl_runs WHERE status != 'running' AND finished_at_utc < ?",
		},
	}

	runsDeleted := 0
	for _, q := range queries {
		result, err := db.conn.ExecContext(ctx, q.query, cutoff)
		if err != nil {
			return 0, fmt.Errorf("failed to cleanup %s: %w", q.name, err)
		}
		if q.name == "runs" {
			rows, _ := result.RowsAffected()
			runsDeleted = int(rows)
		}
	}

	if runsDeleted > 0 {
		db.logger.Info("pruned old crawl runs",
			zap.Int("runs", runsDeleted),
			zap.Duration("retention", retention),
		)
	}
	return runsDeleted, nil
}
