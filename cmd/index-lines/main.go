package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Fakelatency/ztm-schedule/internal/api/repository"
	"github.com/Fakelatency/ztm-schedule/internal/config"
	"github.com/Fakelatency/ztm-schedule/internal/db"
	"github.com/Fakelatency/ztm-schedule/internal/lineindex"
	"github.com/Fakelatency/ztm-schedule/internal/static"
	"github.com/Fakelatency/ztm-schedule/internal/stops"
	"github.com/Fakelatency/ztm-schedule/internal/ztm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	input := flag.String("input", cfg.StopsFile, "Stop directory written by fetch-stops")
	output := flag.String("output", cfg.IndexFile, "Where to write the line index")
	ifStale := flag.Bool("if-stale", false, "Skip the crawl while the index is younger than ZTM_INDEX_REFRESH_DAYS")
	resume := flag.Bool("resume", false, "Continue the last interrupted crawl from its checkpoint")
	csvPath := flag.String("csv", "", "Also export the index as CSV to this path")
	flag.Parse()

	logger, err := cfg.NewLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	manifestPath := *output + ".manifest.json"

	// ═══════════════════════════════════════════════════════
	// PHASE 1: Freshness check (opt-in)
	// ═══════════════════════════════════════════════════════
	if !crawlDue(*ifStale && !*resume, *output, manifestPath, cfg.IndexRefreshDays) {
		logger.Info("line index is fresh, skipping crawl",
			zap.String("index", *output),
			zap.Int("refresh_days", cfg.IndexRefreshDays),
		)
		return
	}

	if err := cfg.RequireAPIKey(); err != nil {
		logger.Fatal("cannot call the API", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// ═══════════════════════════════════════════════════════
	// PHASE 2: Checkpoint database (optional)
	// ═══════════════════════════════════════════════════════
	checkpoint := openCheckpoint(ctx, logger, cfg.CheckpointDB, cfg.CheckpointRetention)
	if checkpoint != nil {
		defer checkpoint.Close()
	} else if *resume {
		logger.Warn("cannot resume without the checkpoint database, crawling every stop")
	}

	// ═══════════════════════════════════════════════════════
	// PHASE 3: Crawl
	// ═══════════════════════════════════════════════════════
	client := ztm.NewClient(logger, cfg)
	builder := lineindex.NewBuilder(logger, client, lineindex.Options{
		Delay:           cfg.RequestDelay,
		ProgressEvery:   cfg.ProgressEvery,
		CheckpointEvery: cfg.CheckpointEvery,
	})

	var run *db.Run
	job := lineindex.NewJob(logger, *input, *output, builder)
	job.Prepare = func(ctx context.Context, all []stops.Stop) error {
		if len(all) == 0 {
			logger.Warn("stop directory is empty, the index will have no lines", zap.String("input", *input))
		}
		if checkpoint == nil {
			return nil
		}

		r, replay, err := openRun(ctx, logger, checkpoint, len(all), *resume, cfg.CheckpointRetention)
		if err != nil {
			logger.Warn("checkpointing disabled for this crawl", zap.Error(err))
			return nil
		}
		run = r
		builder.WithCheckpoint(checkpoint, run.ID, replay)
		return nil
	}

	logger.Warn("this crawl queries the API once per stop and can take over an hour")
	res, err := job.Run(ctx)
	if errors.Is(err, lineindex.ErrAborted) {
		logger.Fatal("line index not built", zap.Error(err))
	}
	if err != nil {
		logger.Fatal("line index not written; rerun with -resume to continue", zap.Error(err))
	}

	// ═══════════════════════════════════════════════════════
	// PHASE 4: Bookkeeping
	// ═══════════════════════════════════════════════════════
	var runID string
	if run != nil {
		runID = run.ID
		if err := checkpoint.FinishRun(ctx, run.ID); err != nil {
			logger.Warn("failed to mark run finished", zap.Error(err))
		}
	}

	manifest := static.Manifest{
		RunID:       runID,
		StopCount:   res.Processed,
		LineCount:   len(res.Index),
		FailedStops: res.Failed,
	}
	if err := static.WriteManifest(manifestPath, manifest); err != nil {
		logger.Warn("failed to write index manifest", zap.Error(err))
	}

	if *csvPath != "" {
		if err := res.Index.ExportCSV(*csvPath); err != nil {
			logger.Warn("failed to export index as CSV", zap.Error(err))
		} else {
			logger.Info("index exported as CSV", zap.String("path", *csvPath))
		}
	}

	if cfg.DatabaseURL != "" {
		publish(ctx, logger, cfg.DatabaseURL, res.Index, runID)
	}

	logger.Info("line database created",
		zap.Int("unique_lines", len(res.Index)),
		zap.String("output", *output),
	)
}

func publish(ctx context.Context, logger *zap.Logger, databaseURL string, idx lineindex.Index, runID string) {
	repo, err := repository.NewPostgresLineRepository(ctx, databaseURL)
	if err != nil {
		logger.Warn("failed to connect to Postgres, index not mirrored", zap.Error(err))
		return
	}
	defer repo.Close()

	if err := repo.Publish(ctx, idx, runID); err != nil {
		logger.Warn("failed to mirror index to Postgres", zap.Error(err))
		return
	}
	logger.Info("line index mirrored to Postgres", zap.Int("lines", len(idx)))
}
