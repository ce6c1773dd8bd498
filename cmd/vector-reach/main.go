package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/radiusdt/vector-reach/internal/config"
	"github.com/radiusdt/vector-reach/internal/database"
	"github.com/radiusdt/vector-reach/internal/httpserver"
	"github.com/radiusdt/vector-reach/internal/metrics"
	"github.com/radiusdt/vector-reach/internal/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Can't use logger yet, fall back to standard log
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	logger, err := middleware.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer logger.Sync()

	logger.Info("starting Vector-Reach",
		zap.String("env", cfg.Server.Env),
		zap.String("addr", cfg.Server.Addr),
		zap.String("estimator_source", cfg.Estimator.Source),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Backends are optional: a failed connection degrades the estimator to
	// heuristic mode instead of refusing to start.
	var db *database.PostgresDB
	if cfg.Estimator.Source == "postgres" {
		db, err = database.NewPostgresDB(ctx, cfg.Database, logger)
		if err != nil {
			logger.Warn("PostgreSQL unavailable, estimates degrade to heuristic", zap.Error(err))
			db = nil
		} else {
			defer db.Close()
		}
	}

	var ch *database.ClickHouseDB
	if cfg.Estimator.Source == "clickhouse" {
		ch, err = database.NewClickHouseDB(ctx, cfg.ClickHouse, logger)
		if err != nil {
			logger.Warn("ClickHouse unavailable, estimates degrade to heuristic", zap.Error(err))
			ch = nil
		} else {
			defer ch.Close()
		}
	}

	var redis *database.RedisDB
	if cfg.Cache.Enabled {
		redis, err = database.NewRedisDB(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis unavailable, estimate memoization disabled", zap.Error(err))
			redis = nil
		} else {
			defer redis.Close()
		}
	}

	deps := &httpserver.Dependencies{
		DB:         db,
		Redis:      redis,
		ClickHouse: ch,
		Config:     cfg,
		Logger:     logger,
		Metrics:    metrics.NewMetrics("vector_reach"),
	}

	handler := httpserver.NewServer(deps)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info("HTTP server starting", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	cancel()

	logger.Info("server stopped")
}
