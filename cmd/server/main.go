package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/paperframe/paperframe/internal/amqp"
	"github.com/paperframe/paperframe/internal/config"
	"github.com/paperframe/paperframe/internal/handlers"
	"github.com/paperframe/paperframe/internal/orchestrator"
	"github.com/paperframe/paperframe/internal/redis"
	"github.com/paperframe/paperframe/internal/source"
	"github.com/paperframe/paperframe/internal/transport"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Load configuration; any fleet file problem is fatal here, never later
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional event sinks
	var sinks orchestrator.Fanout
	if cfg.Redis.Addr != "" {
		publisher, err := redis.NewPublisher(cfg.Redis, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer publisher.Close()
		sinks = append(sinks, publisher)
	}

	var broker *amqp.Connection
	if cfg.AMQP.URL != "" {
		broker, err = amqp.NewConnection(cfg.AMQP, logger)
		if err != nil {
			logger.Fatal("Failed to connect to AMQP", zap.Error(err))
		}
		defer broker.Close()
		sinks = append(sinks, broker)
	}

	var events orchestrator.EventPublisher
	if len(sinks) > 0 {
		events = sinks
	}

	sendTimeout := transport.DefaultTimeout
	if cfg.Fleet.SendTimeoutSec > 0 {
		sendTimeout = time.Duration(cfg.Fleet.SendTimeoutSec) * time.Second
	}

	orch := orchestrator.New(logger, cfg.Fleet.BuildDisplays(), orchestrator.Options{
		Client:    transport.NewClient(sendTimeout, logger),
		Poller:    transport.NewPoller(logger),
		Events:    events,
		OutputDir: cfg.Fleet.OutputDir,
	})

	// Instantiate content sources from the registry
	for name, sc := range cfg.Fleet.Sources {
		src, err := source.New(sc.Type, name, sc.Config, source.Deps{
			Logger: logger,
			Status: orch,
		})
		if err != nil {
			logger.Fatal("Failed to create content source",
				zap.String("source", name), zap.Error(err))
		}
		if err := orch.AddSource(name, src); err != nil {
			logger.Fatal("Failed to register content source",
				zap.String("source", name), zap.Error(err))
		}
	}

	if err := orch.Schedule(cfg.Fleet.Entries()); err != nil {
		logger.Fatal("Invalid schedule", zap.Error(err))
	}

	// Start the scheduling loop
	done := make(chan struct{})
	go func() {
		defer close(done)
		orch.Run(ctx)
	}()

	// Consume external refresh requests when a broker is configured
	if broker != nil {
		consumer := amqp.NewRefreshConsumer(broker, orch, logger)
		go func() {
			if err := consumer.Start(ctx, cfg.AMQP.RefreshQueue); err != nil && ctx.Err() == nil {
				logger.Error("Refresh consumer stopped", zap.Error(err))
			}
		}()
	}

	// Create HTTP server for the introspection API
	mux := http.NewServeMux()
	statusHandler := handlers.NewStatusHandler(orch, logger)
	statusHandler.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", zap.Error(err))
			cancel()
		}
	}()

	logger.Info("Server started",
		zap.Int("port", cfg.Server.Port),
		zap.Int("displays", len(cfg.Fleet.Displays)),
		zap.Int("sources", len(cfg.Fleet.Sources)))

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}

	// Stop the scheduling loop; Run cleans up all sources before returning
	cancel()
	select {
	case <-done:
		logger.Info("Server shutdown complete")
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout exceeded")
	}
}
