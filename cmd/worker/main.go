package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/tonwatch/service/comment"
	"github.com/brojonat/tonwatch/service/config"
	"github.com/brojonat/tonwatch/service/db"
	"github.com/brojonat/tonwatch/service/ledger"
	"github.com/brojonat/tonwatch/service/logging"
	"github.com/brojonat/tonwatch/service/metrics"
	natspkg "github.com/brojonat/tonwatch/service/nats"
	redispkg "github.com/brojonat/tonwatch/service/redis"
	"github.com/brojonat/tonwatch/service/sink"
	"github.com/brojonat/tonwatch/service/solana"
	"github.com/brojonat/tonwatch/service/subscriber"
	"github.com/brojonat/tonwatch/service/temporal"
	"github.com/brojonat/tonwatch/service/ton"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// solanaRequestDelay spaces per-signature lookups on public RPC endpoints.
const solanaRequestDelay = 100 * time.Millisecond

func main() {
	_ = godotenv.Load()

	// Load and validate configuration from environment
	cfg := config.MustLoad()

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting worker",
		"account", cfg.AccountAddress,
		"ledger", cfg.Ledger,
		"scheduler", cfg.Scheduler,
		"poll_interval", cfg.PollInterval,
		"page_size", cfg.PageSize,
		"log_level", cfg.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if err := db.Migrate(ctx, cfg.DatabaseURL, logger); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("connected to database")

	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry
	store := db.NewStore(dbPool, metricsCollector)

	natsPublisher, err := natspkg.NewPublisher(cfg.NATSURL, metricsCollector, logger)
	if err != nil {
		return fmt.Errorf("failed to create NATS publisher: %w", err)
	}
	defer natsPublisher.Close()
	logger.Info("connected to NATS", "url", cfg.NATSURL)

	handlers := []sink.Handler{
		sink.Persist(store, metricsCollector, logger),
		sink.Broadcast(natsPublisher),
	}

	if cfg.RedisURL != "" {
		streamPublisher, err := redispkg.NewStreamPublisher(cfg.RedisURL, cfg.RedisStream, logger)
		if err != nil {
			return fmt.Errorf("failed to create redis stream publisher: %w", err)
		}
		defer streamPublisher.Close()
		handlers = append(handlers, sink.Stream(streamPublisher))
		logger.Info("redis stream sink enabled", "stream", cfg.RedisStream)
	}

	dispatcher := sink.NewDispatcher(cfg.SinkBuffer, metricsCollector, logger, handlers...)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := dispatcher.Close(closeCtx); err != nil {
			logger.Error("sink queue not drained before shutdown", "error", err)
		}
	}()

	ledgerClient, err := newLedgerClient(cfg, metricsCollector, logger)
	if err != nil {
		return err
	}

	sub := subscriber.NewSubscriber(
		subscriber.Config{
			Account:      cfg.AccountAddress,
			PollInterval: cfg.PollInterval,
			PageSize:     cfg.PageSize,
			MaxRetries:   cfg.MaxRetries,
			RetryDelay:   cfg.RetryDelay,
		},
		ledgerClient,
		comment.NewDecoder(),
		dispatcher,
		metricsCollector,
		logger,
	)

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: newStatusMux(sub, store, logger),
	}
	go func() {
		logger.Info("starting metrics HTTP server", "addr", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", "error", err)
		}
	}()

	switch cfg.Scheduler {
	case config.SchedulerTemporal:
		return runTemporal(ctx, cfg, sub, metricsCollector, logger)
	default:
		logger.Info("polling with in-process ticker", "interval", cfg.PollInterval)
		return sub.Run(ctx)
	}
}

func newLedgerClient(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (ledger.Client, error) {
	switch cfg.Ledger {
	case config.LedgerSolana:
		rpc := solana.NewRPCClient(cfg.SolanaRPCURL)
		logger.Info("initialized solana RPC client", "endpoint", solana.EndpointLabel(cfg.SolanaRPCURL))
		return solana.NewClient(rpc, solana.EndpointLabel(cfg.SolanaRPCURL), solanaRequestDelay, m, logger), nil
	default:
		if err := ton.ValidateAddress(cfg.AccountAddress); err != nil {
			return nil, fmt.Errorf("invalid ACCOUNT_ADDRESS: %w", err)
		}
		logger.Info("initialized toncenter client", "url", cfg.ToncenterURL, "api_key_set", cfg.ToncenterAPIKey != "")
		return ton.NewClient(cfg.ToncenterURL, cfg.ToncenterAPIKey, nil, m, logger), nil
	}
}

func runTemporal(ctx context.Context, cfg *config.Config, sub *subscriber.Subscriber, m *metrics.Metrics, logger *slog.Logger) error {
	worker, err := temporal.NewWorker(temporal.WorkerConfig{
		TemporalHost:      cfg.TemporalHost,
		TemporalNamespace: cfg.TemporalNamespace,
		TaskQueue:         cfg.TemporalTaskQueue,
		Syncer:            sub,
		Metrics:           m,
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create temporal worker: %w", err)
	}
	defer worker.Close()

	temporalClient, err := temporal.NewClient(cfg.TemporalHost, cfg.TemporalNamespace, cfg.TemporalTaskQueue, logger)
	if err != nil {
		return fmt.Errorf("failed to create temporal client: %w", err)
	}
	defer temporalClient.Close()

	if err := temporalClient.UpsertSyncSchedule(ctx, cfg.AccountAddress, cfg.PollInterval); err != nil {
		return fmt.Errorf("failed to upsert sync schedule: %w", err)
	}

	err = worker.Run(ctx)
	if err != nil && errors.Is(ctx.Err(), context.Canceled) {
		// Interrupted during shutdown.
		return nil
	}
	return err
}
