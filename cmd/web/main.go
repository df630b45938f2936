package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdamBeresnev/bracket-engine/internal/cache"
	"github.com/AdamBeresnev/bracket-engine/internal/config"
	"github.com/AdamBeresnev/bracket-engine/internal/db"
	"github.com/AdamBeresnev/bracket-engine/internal/logging"
	"github.com/AdamBeresnev/bracket-engine/internal/metrics"
	"github.com/AdamBeresnev/bracket-engine/internal/middleware"
	"github.com/AdamBeresnev/bracket-engine/internal/notify"
	"github.com/AdamBeresnev/bracket-engine/internal/service"
	"github.com/AdamBeresnev/bracket-engine/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.InitDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	var standingsCache cache.Cache
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedis(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisCache.Close()
		standingsCache = redisCache
		logger.Info("Using redis standings cache")
	} else {
		memory := cache.NewMemory()
		go every(ctx, time.Minute, func() { memory.Sweep() })
		standingsCache = memory
	}

	tournamentStore := store.NewTournamentStore(database)
	deps := service.Dependencies{
		Locks:    service.NewLocker(),
		Cache:    standingsCache,
		CacheTTL: cfg.CacheTTL,
		Notifier: notify.NewLogDispatcher(logger),
		Metrics:  metrics.NewService(),
		Players:  store.NewPlayerStore(database),
		Logger:   logger,
	}

	limiter := middleware.NewRateLimiter(cfg.Limit.RPS, cfg.Limit.Burst)
	go every(ctx, time.Minute, func() { limiter.Cleanup(3 * time.Minute) })

	router := newRouter(&app{
		db:          database,
		tournaments: service.NewTournamentService(database, tournamentStore, deps),
		matches:     service.NewMatchService(database, tournamentStore, deps),
		limiter:     limiter,
		metrics:     metrics.NewMetricsHandler(),
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "addr", "http://localhost:"+cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func every(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
