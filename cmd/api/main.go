package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Fakelatency/ztm-schedule/internal/api"
	"github.com/Fakelatency/ztm-schedule/internal/api/repository"
	"github.com/Fakelatency/ztm-schedule/internal/config"
	"github.com/Fakelatency/ztm-schedule/internal/ztm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	deps := api.Deps{
		Timetable:      ztm.NewClient(logger, cfg),
		AllowedOrigins: cfg.AllowedOrigins,
	}
	if cfg.TimetableCacheSize > 0 {
		cached, err := ztm.NewTimetableCache(deps.Timetable, cfg.TimetableCacheSize)
		if err != nil {
			logger.Fatal("failed to create timetable cache", zap.Error(err))
		}
		deps.Timetable = cached
	}

	// Postgres mirror when configured, otherwise the JSON index on disk
	if cfg.DatabaseURL != "" {
		logger.Info("serving line index from Postgres")
		pgRepo, err := repository.NewPostgresLineRepository(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to connect to Postgres", zap.Error(err))
		}
		defer pgRepo.Close()
		deps.Lines = pgRepo
	} else {
		logger.Info("serving line index from file", zap.String("path", cfg.IndexFile))
		fileRepo, err := repository.NewFileLineRepository(cfg.IndexFile, cfg.ManifestFile())
		if err != nil {
			logger.Fatal("failed to load line index", zap.Error(err))
		}
		deps.Lines = fileRepo
		deps.Reloader = fileRepo
	}

	if cfg.APIKey == "" {
		logger.Warn("ZTM_API_KEY is not set, departure boards will fail")
	}

	// Crawl history is only available once index-lines has run here
	if _, err := os.Stat(cfg.CheckpointDB); err == nil {
		sqliteDB, err := repository.NewSQLiteDB(cfg.CheckpointDB)
		if err != nil {
			logger.Warn("failed to open checkpoint database, crawl endpoints disabled", zap.Error(err))
		} else {
			defer sqliteDB.Close()
			deps.Crawl = repository.NewSQLiteCrawlRepository(sqliteDB.GetDB())
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           api.NewRouter(logger, deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("API server starting",
		zap.String("addr", srv.Addr),
		zap.Bool("crawl_endpoints", deps.Crawl != nil),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("API server stopped")
}
