package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/amarcoder01/typemaster-realtime/internal/config"
	"github.com/amarcoder01/typemaster-realtime/internal/coordinator"
	"github.com/amarcoder01/typemaster-realtime/internal/httpapi"
	"github.com/amarcoder01/typemaster-realtime/internal/hub"
	"github.com/amarcoder01/typemaster-realtime/internal/leaderboard"
	"github.com/amarcoder01/typemaster-realtime/internal/logging"
	"github.com/amarcoder01/typemaster-realtime/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()

	var st store.Store
	if cfg.RedisURL != "" {
		rs, err := store.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		if err := rs.Ping(ctx); err != nil {
			logger.Fatal("redis ping", zap.Error(err))
		}
		defer rs.Close() //nolint:errcheck
		st = rs
		logger.Info("using redis store")
	} else {
		st = store.NewMemory()
		logger.Warn("REDIS_URL not set, race state will not survive restarts")
	}

	opts := coordinator.Options{
		CountdownSeconds: cfg.CountdownSeconds,
		DefaultDuration:  cfg.DefaultDuration,
		CleanupSeconds:   cfg.CleanupSeconds,
	}

	var races *hub.Hub[*coordinator.Coordinator]
	races = hub.New(ctx, func(actorCtx context.Context, raceID string) *coordinator.Coordinator {
		return coordinator.New(actorCtx, raceID, st, clock, logger, opts, func() {
			races.Inbox() <- hub.Remove[*coordinator.Coordinator]{Key: raceID}
		})
	})

	leaderboards := hub.New(ctx, func(actorCtx context.Context, shard string) *leaderboard.Broadcaster {
		return leaderboard.New(actorCtx, shard, clock, logger)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpapi.SetupRoutes(races, leaderboards, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server", zap.Error(err))
	}
	logger.Info("shut down cleanly")
}
