package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	http_handler "docpipe.ingest/internal/adapters/handler/http"
	"docpipe.ingest/internal/adapters/queue/memory"
	redis_adapter "docpipe.ingest/internal/adapters/queue/redis"
	memrepo "docpipe.ingest/internal/adapters/repository/memory"
	"docpipe.ingest/internal/adapters/repository/pg"
	"docpipe.ingest/internal/config"
	"docpipe.ingest/internal/core/logger"
	"docpipe.ingest/internal/core/ports"
	"docpipe.ingest/internal/core/services"
	"docpipe.ingest/internal/core/tracing"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.Init(cfg.LogLevel, cfg.LogFormat)
	logger.Info("Starting ingestion sandbox", "version", version)

	if cfg.EnableTracing {
		shutdownTracing, err := tracing.Init(tracing.Options{
			ServiceName:    cfg.ServiceName + "-sandbox",
			ServiceVersion: version,
			Endpoint:       cfg.OTLPEndpoint,
			SampleRatio:    cfg.TraceSampleRatio,
		})
		if err != nil {
			logger.Error("Failed to initialize tracing", "error", err)
		} else {
			logger.Info("Tracing initialized", "endpoint", cfg.OTLPEndpoint)
			defer func() {
				if err := shutdownTracing(context.Background()); err != nil {
					logger.Error("Failed to shutdown tracing", "error", err)
				}
			}()
		}
	}

	var bus ports.JobEventBus
	if cfg.RedisURL != "" {
		adapter, redisClient, err := redis_adapter.NewRedisAdapter(cfg.RedisURL)
		if err != nil {
			logger.Error("Failed to init redis", "error", err)
			log.Fatalf("failed to init redis: %v", err)
		}
		defer redisClient.Close()
		bus = adapter
		logger.Info("Using redis job event bus")
	} else {
		bus = memory.NewBus(memory.DefaultRetention)
		logger.Info("Using in-memory job event bus")
	}

	var jobs ports.JobRepository
	if cfg.DatabaseURL != "" {
		repo, err := pg.NewRepository(cfg.DatabaseURL)
		if err != nil {
			logger.Error("Failed to init postgres", "error", err)
			log.Fatalf("failed to init postgres: %v", err)
		}
		defer repo.Close()
		jobs = repo
		logger.Info("Using postgres job store")
	} else {
		jobs = memrepo.NewRepository()
		logger.Info("Using in-memory job store")
	}

	pipeline := services.NewPipeline(bus, jobs, cfg.SandboxStepDelay)
	httpServer := http_handler.NewServer(pipeline, bus, http_handler.NewHub(), http_handler.WithMetrics(cfg.EnableMetrics))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP Server starting", "port", cfg.HTTPPort)
		errCh <- httpServer.Run(":" + cfg.HTTPPort)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	case <-sigChan:
		logger.Info("Shutting down gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("Shutdown incomplete", "error", err)
		}
	}
}
