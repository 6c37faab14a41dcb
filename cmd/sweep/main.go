// Command sweep deletes expired login sessions once and exits. Run it from cron.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"atelier.dev/internal/app"
	"atelier.dev/internal/config"
	"atelier.dev/internal/obs"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	timeout := flag.Duration("timeout", time.Minute, "Abort the sweep after this long")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := obs.InitLogger(app.LogConfig(cfg))
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("bootstrap failed", zap.Error(err))
	}
	defer func() { _ = deps.Close() }()

	n, err := deps.Service.PurgeExpiredSessions(ctx)
	if err != nil {
		logger.Fatal("sweep failed", zap.Error(err))
	}
	logger.Info("sweep complete", zap.Int64("purged", n))
}
