package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/brojonat/tonwatch/service/db"
	"github.com/brojonat/tonwatch/service/metrics"
	natspkg "github.com/brojonat/tonwatch/service/nats"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// TransactionStore is the read side of db.Store used by the API.
type TransactionStore interface {
	GetTransaction(ctx context.Context, hash string) (*db.Transaction, error)
	ListTransactions(ctx context.Context, params db.ListTransactionsParams) ([]*db.Transaction, error)
	CountTransactions(ctx context.Context, account string) (int64, error)
	Ping(ctx context.Context) error
}

// EventSubscriber delivers transaction events as they are published.
// *nats.Consumer implements it.
type EventSubscriber interface {
	Subscribe(ctx context.Context, opts natspkg.SubscribeOptions) (<-chan *natspkg.TransactionEvent, error)
}

// Server represents the HTTP server for the transaction API.
type Server struct {
	addr      string
	store     TransactionStore
	events    EventSubscriber
	keepalive time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
	server    *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The events subscriber is optional - if nil, SSE endpoints won't be available.
// The metrics is optional - if nil, metrics endpoints won't be available.
func New(addr string, store TransactionStore, events EventSubscriber, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:      addr,
		store:     store,
		events:    events,
		keepalive: 10 * time.Second,
		metrics:   m,
		logger:    logger,
	}
}

// Handler builds the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	instrument := func(name string, h http.Handler) http.Handler {
		return metrics.HTTPMetricsMiddleware(s.metrics, name)(h)
	}

	mux.Handle("GET /api/v1/transactions", instrument("/api/v1/transactions", handleListTransactions(s.store, s.logger)))
	mux.Handle("GET /api/v1/transactions/{hash}", instrument("/api/v1/transactions/{hash}", handleGetTransaction(s.store, s.logger)))

	if s.events != nil {
		mux.Handle("GET /api/v1/stream/transactions", handleStreamTransactions(s.events, s.keepalive, s.metrics, s.logger))
		s.logger.Info("SSE streaming endpoint enabled")
	} else {
		s.logger.Warn("event subscriber not configured, streaming endpoint disabled")
	}

	mux.Handle("GET /health", handleHealth(s.store, s.logger))

	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server. Request contexts derive from ctx, so
// cancelling it ends open event streams.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		BaseContext: func(net.Listener) context.Context { return ctx },
		ReadTimeout: 15 * time.Second,
		// No write timeout: SSE responses stay open.
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
