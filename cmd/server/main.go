package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/tonwatch/service/config"
	"github.com/brojonat/tonwatch/service/db"
	"github.com/brojonat/tonwatch/service/logging"
	"github.com/brojonat/tonwatch/service/metrics"
	natspkg "github.com/brojonat/tonwatch/service/nats"
	"github.com/brojonat/tonwatch/service/server"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg, err := config.LoadAPI()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	metricsCollector := metrics.NewMetrics(nil)
	store := db.NewStore(dbPool, metricsCollector)

	// The stream endpoint is optional; the REST API works without NATS.
	var events server.EventSubscriber
	consumer, err := natspkg.NewConsumer(cfg.NATSURL, "tonwatch-sse", logger)
	if err != nil {
		logger.Warn("NATS unavailable, streaming disabled", "url", cfg.NATSURL, "error", err)
	} else {
		defer consumer.Close()
		events = consumer
	}

	httpServer := server.New(cfg.ServerAddr, store, events, metricsCollector, logger)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start(ctx)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Cancel streams first so open SSE responses return.
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}
