// Package main is the entrypoint for the MediaScribe API server. It runs the
// HTTP surface and the single queue worker in one process.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"mediascribe/internal/api"
	"mediascribe/internal/api/handler"
	mw "mediascribe/internal/api/middleware"
	"mediascribe/internal/cache"
	"mediascribe/internal/config"
	"mediascribe/internal/downloader"
	"mediascribe/internal/ingest"
	"mediascribe/internal/mediainfo"
	"mediascribe/internal/storage"
	"mediascribe/internal/store"
	"mediascribe/internal/transcriber"
	"mediascribe/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Info("config loaded", "env", cfg.Server.Env, "data_dir", cfg.Storage.DataDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database and run migrations
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations applied")

	// 3. Connect to Redis
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("redis connected")

	// 4. Build services
	pgStore := store.NewPostgresStore(pool)
	artifacts := storage.New(cfg.Storage.DataDir)
	ingestSvc := ingest.NewService(pgStore, redisCache, logger)
	mediaClient := &mediainfo.Client{}

	// 5. Start the queue worker
	w := worker.New(
		pgStore,
		redisCache,
		&downloader.YtDlp{},
		transcriber.NewAssemblyAI(cfg.Transcriber),
		artifacts,
		cfg.Worker.PollInterval,
		logger,
	)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run(workerCtx)
	}()

	// 6. Build router with dependencies
	deps := api.Dependencies{
		Logger:    logger,
		RateLimit: mw.NewRateLimit(redisCache, 60),

		HealthHandler: handler.NewHealthHandler(pgStore, redisCache),

		SubmitHandler:    handler.NewSubmitHandler(ingestSvc),
		JobStatusHandler: handler.NewJobStatusHandler(ingestSvc),

		SearchHandler:          handler.NewSearchHandler(pgStore),
		ListTranscriptsHandler: handler.NewListTranscriptsHandler(pgStore),
		ReadTranscriptHandler:  handler.NewReadTranscriptHandler(pgStore, artifacts),

		MediaSearchHandler:   handler.NewMediaSearchHandler(mediaClient),
		MediaMetadataHandler: handler.NewMediaMetadataHandler(mediaClient),
		MediaCommentsHandler: handler.NewMediaCommentsHandler(mediaClient),
	}

	router := api.NewRouter(deps)

	// 7. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutdown signal received, draining connections...")
	}

	// Stop taking requests, then stop the worker once in-flight requests drain.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	stopWorker()
	wg.Wait()

	logger.Info("server stopped gracefully")
	return nil
}
