package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Freeeeeet/video_access/internal/app"
	"github.com/Freeeeeet/video_access/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)

	defer logger.Sync()

	logger.Sugar().Infow("Starting video access service",
		"environment", cfg.Environment,
		"storage", cfg.StorageDriver,
		"cache", cfg.CacheDriver,
		"telegram", cfg.TelegramToken != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		logger.Error("Service stopped with error", zap.Error(err))
		return
	}

	logger.Info("Service stopped")
}
