package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/tonwatch/service/metrics"
	natspkg "github.com/brojonat/tonwatch/service/nats"
)

// EventTransactionFound is the SSE event name for a newly discovered transaction.
const EventTransactionFound = "transaction.found"

// handleStreamTransactions streams new transactions as Server-Sent Events.
// The optional account query parameter restricts the stream to one account.
func handleStreamTransactions(events EventSubscriber, keepaliveInterval time.Duration, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		account := r.URL.Query().Get("account")
		if err := validateAccount(account); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		accountDesc := account
		if accountDesc == "" {
			accountDesc = "all accounts"
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		ch, err := events.Subscribe(ctx, natspkg.SubscribeOptions{Account: account, DeliverNew: true})
		if err != nil {
			logger.ErrorContext(ctx, "failed to subscribe to events",
				"account", accountDesc,
				"error", err,
			)
			writeError(w, "failed to subscribe", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		if m != nil {
			m.RecordSSEConnectionChange(1)
			defer m.RecordSSEConnectionChange(-1)
		}

		logger.DebugContext(ctx, "SSE client connected",
			"account", accountDesc,
			"remote_addr", r.RemoteAddr,
		)

		connected, _ := json.Marshal(map[string]string{"account": accountDesc})
		fmt.Fprintf(w, "event: connected\ndata: %s\n\n", connected)
		flusher.Flush()

		keepalive := time.NewTicker(keepaliveInterval)
		defer keepalive.Stop()

		for {
			select {
			case <-keepalive.C:
				fmt.Fprintf(w, ": keepalive\n\n")
				flusher.Flush()

			case event := <-ch:
				data, err := json.Marshal(event)
				if err != nil {
					logger.WarnContext(ctx, "failed to marshal event", "error", err)
					continue
				}
				fmt.Fprintf(w, "event: %s\nid: %s\ndata: %s\n\n", EventTransactionFound, event.Hash, data)
				flusher.Flush()
				if m != nil {
					m.RecordSSEEventSent()
				}

				logger.DebugContext(ctx, "sent transaction event",
					"account", event.Account,
					"hash", event.Hash,
				)

			case <-ctx.Done():
				logger.DebugContext(ctx, "SSE client disconnected",
					"account", accountDesc,
					"remote_addr", r.RemoteAddr,
				)
				return
			}
		}
	})
}
