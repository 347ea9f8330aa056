// cmd/historian is the worker that persists the action log pushed by the server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/nines/internal/cache"
	"github.com/jason-s-yu/nines/internal/config"
	"github.com/jason-s-yu/nines/internal/database"
	"github.com/jason-s-yu/nines/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisAddr := cfg.RedisAddr
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	if err := cache.ConnectRedis(ctx, redisAddr, cfg.RedisDB); err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer cache.Close()

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}
	if err := database.ConnectDB(ctx, cfg.DatabaseURL); err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer database.Close()
	if err := database.EnsureSchema(ctx); err != nil {
		logger.Fatalf("schema: %v", err)
	}

	svc := historian.NewService(
		historian.RedisSource{Client: cache.Rdb, Queue: cfg.HistorianQueue},
		historian.PostgresSink{},
		historian.Options{
			BatchSize:  cfg.HistorianBatchSize,
			FlushDelay: cfg.HistorianFlush,
			Inactivity: cfg.InactivityTimeout,
			SweepEvery: cfg.HistorianSweepEvery,
		},
		logger.WithField("queue", cfg.HistorianQueue),
	)
	if err := svc.Run(ctx); err != nil {
		logger.WithError(err).Error("historian exited")
	}
	logger.Info("Historian shutdown complete.")
}
