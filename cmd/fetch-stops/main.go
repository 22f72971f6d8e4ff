package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Fakelatency/ztm-schedule/internal/config"
	"github.com/Fakelatency/ztm-schedule/internal/stops"
	"github.com/Fakelatency/ztm-schedule/internal/ztm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	output := flag.String("output", cfg.StopsFile, "Where to write the stop directory")
	flag.Parse()

	logger, err := cfg.NewLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := cfg.RequireAPIKey(); err != nil {
		logger.Fatal("cannot call the API", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("fetching stop directory from ZTM API")
	client := ztm.NewClient(logger, cfg)
	all, err := client.FetchStops(ctx)
	if err != nil {
		logger.Fatal("failed to fetch stop directory", zap.Error(err))
	}

	if err := stops.Save(*output, all); err != nil {
		logger.Fatal("failed to write stop directory", zap.Error(err))
	}

	logger.Info("stop directory written",
		zap.String("output", *output),
		zap.Int("stops", len(all)),
	)
}
