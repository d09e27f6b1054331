package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/brojonat/tonwatch/service/subscriber"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type statusSource interface {
	Status() subscriber.Status
}

type pinger interface {
	Ping(ctx context.Context) error
}

// newStatusMux serves /metrics, /health and /status on the worker's metrics listener.
func newStatusMux(sub statusSource, db pinger, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			logger.WarnContext(r.Context(), "health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("database unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sub.Status())
	})

	return mux
}
