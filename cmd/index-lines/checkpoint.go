package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Fakelatency/ztm-schedule/internal/db"
	"github.com/Fakelatency/ztm-schedule/internal/static"
)

// crawlDue reports whether a crawl should run. Without ifStale every run
// crawls; with it, only a missing or outdated index does.
func crawlDue(ifStale bool, indexFile, manifestPath string, refreshDays int) bool {
	if !ifStale {
		return true
	}
	return static.IsStaleOrMissing(indexFile, manifestPath, refreshDays)
}

// openCheckpoint opens and prepares the checkpoint database. Any failure is
// logged and yields nil: the crawl then runs without checkpoints.
func openCheckpoint(ctx context.Context, logger *zap.Logger, path string, retention time.Duration) *db.DB {
	checkpoint, err := db.Connect(logger, path)
	if err != nil {
		logger.Warn("checkpoint database unavailable, crawling without checkpoints",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil
	}
	if err := checkpoint.EnsureSchema(ctx); err != nil {
		logger.Warn("checkpoint schema unavailable, crawling without checkpoints",
			zap.String("path", path),
			zap.Error(err),
		)
		checkpoint.Close()
		return nil
	}
	if _, err := checkpoint.Cleanup(ctx, retention); err != nil {
		logger.Warn("checkpoint cleanup failed", zap.Error(err))
	}
	return checkpoint
}

// openRun starts a new checkpointed run, or picks up the last unfinished one
// when resuming. A run is only resumed if it covers the same number of stops
// and started within maxAge (0 means no age limit). Every other unfinished run
// is abandoned before a new one starts.
func openRun(ctx context.Context, logger *zap.Logger, checkpoint *db.DB, stopCount int, resume bool, maxAge time.Duration) (*db.Run, map[int]db.StopResult, error) {
	if resume {
		last, err := checkpoint.LatestUnfinishedRun(ctx)
		if err != nil {
			return nil, nil, err
		}
		switch {
		case last == nil:
			logger.Info("no interrupted crawl to resume, starting fresh")
		case last.StopCount != stopCount:
			logger.Warn("stop directory changed since the interrupted crawl, starting fresh",
				zap.String("run_id", last.ID),
				zap.Int("was", last.StopCount),
				zap.Int("now", stopCount),
			)
		case maxAge > 0 && time.Since(last.StartedAt) > maxAge:
			logger.Warn("interrupted crawl is too old to resume, starting fresh",
				zap.String("run_id", last.ID),
				zap.Time("started_at", last.StartedAt),
			)
		default:
			replay, err := checkpoint.LoadResults(ctx, last.ID)
			if err != nil {
				return nil, nil, err
			}
			logger.Info("resuming crawl",
				zap.String("run_id", last.ID),
				zap.Int("recorded", len(replay)),
				zap.Int("stops", stopCount),
			)
			return last, replay, nil
		}
	}

	abandoned, err := checkpoint.AbandonUnfinishedRuns(ctx)
	if err != nil {
		return nil, nil, err
	}
	if abandoned > 0 {
		logger.Info("abandoned interrupted crawls", zap.Int("runs", abandoned))
	}

	run, err := checkpoint.StartRun(ctx, stopCount)
	if err != nil {
		return nil, nil, err
	}
	return run, nil, nil
}
