// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/nines/internal/auth"
	"github.com/jason-s-yu/nines/internal/cache"
	"github.com/jason-s-yu/nines/internal/config"
	"github.com/jason-s-yu/nines/internal/database"
	"github.com/jason-s-yu/nines/internal/game"
	"github.com/jason-s-yu/nines/internal/handlers"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := newLogger(cfg)

	if err := auth.Init(cfg.TokenExpire); err != nil {
		logger.Fatalf("auth: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis and Postgres are optional; without them actions and outcomes are only logged.
	if cfg.RedisAddr != "" {
		cache.QueueName = cfg.HistorianQueue
		if err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB); err != nil {
			logger.WithError(err).Warn("continuing without action log")
		} else {
			defer cache.Close()
		}
	}
	if cfg.DatabaseURL != "" {
		if err := database.ConnectDB(ctx, cfg.DatabaseURL); err != nil {
			logger.WithError(err).Warn("continuing without result store")
		} else {
			defer database.Close()
			if err := database.EnsureSchema(ctx); err != nil {
				logger.WithError(err).Error("failed to ensure schema")
			}
		}
	}

	store := game.NewTableStore(game.TableOptions{
		MaxPlayers:   cfg.MaxPlayers,
		TurnDuration: cfg.TurnTimeout,
		Logger:       logger,
	})
	srv := handlers.NewServer(store, handlers.ServerOptions{
		ClientOrigins:    cfg.ClientOrigins,
		AllowRawPlayerID: cfg.AllowRawPlayerID,
	}, logger)

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		logger.Infof("Running on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		store.CloseAll("server shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := eg.Wait(); err != nil {
		logger.WithError(err).Error("server exited")
	}
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warnf("unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}
