package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/brojonat/tonwatch/service/db"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
	maxAccountLength = 128
)

// handleHealth reports whether the database is reachable.
func handleHealth(store TransactionStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			logger.WarnContext(r.Context(), "health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("database unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

// handleListTransactions returns a handler that lists stored transactions, newest first.
// GET /api/v1/transactions?account=ADDRESS&since=UNIX&limit=N&offset=N
func handleListTransactions(store TransactionStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		account := query.Get("account")
		if err := validateAccount(account); err != nil {
			logger.DebugContext(r.Context(), "invalid account", "account", account, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		limit, err := parseIntParam(query.Get("limit"), "limit", defaultListLimit)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if limit < 1 {
			writeError(w, "limit must be at least 1", http.StatusBadRequest)
			return
		}
		if limit > maxListLimit {
			writeError(w, fmt.Sprintf("limit cannot exceed %d", maxListLimit), http.StatusBadRequest)
			return
		}

		offset, err := parseIntParam(query.Get("offset"), "offset", 0)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if offset < 0 {
			writeError(w, "offset cannot be negative", http.StatusBadRequest)
			return
		}

		since, err := parseIntParam(query.Get("since"), "since", 0)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		transactions, err := store.ListTransactions(r.Context(), db.ListTransactionsParams{
			Account: account,
			Since:   since,
			Limit:   int32(limit),
			Offset:  int32(offset),
		})
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to list transactions", "account", account, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		total, err := store.CountTransactions(r.Context(), account)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to count transactions", "account", account, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		logger.DebugContext(r.Context(), "transactions listed", "account", account, "count", len(transactions))

		resp := make([]transactionResponse, len(transactions))
		for i := range transactions {
			resp[i] = transactionToResponse(transactions[i])
		}

		writeJSON(w, listTransactionsResponse{
			Transactions: resp,
			Count:        len(resp),
			Total:        total,
			Limit:        limit,
			Offset:       offset,
		}, http.StatusOK)
	})
}

// handleGetTransaction returns a single transaction by hash.
// GET /api/v1/transactions/{hash}
func handleGetTransaction(store TransactionStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hash := r.PathValue("hash")
		if hash == "" || len(hash) > 128 {
			writeError(w, "invalid transaction hash", http.StatusBadRequest)
			return
		}

		txn, err := store.GetTransaction(r.Context(), hash)
		if errors.Is(err, db.ErrTransactionNotFound) {
			writeError(w, "transaction not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to get transaction", "hash", hash, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, transactionToResponse(txn), http.StatusOK)
	})
}

type listTransactionsResponse struct {
	Transactions []transactionResponse `json:"transactions"`
	Count        int                   `json:"count"`
	Total        int64                 `json:"total"`
	Limit        int64                 `json:"limit"`
	Offset       int64                 `json:"offset"`
}

// transactionResponse is the JSON response format for a transaction.
type transactionResponse struct {
	Account     string    `json:"account"`
	Hash        string    `json:"hash"`
	Timestamp   int64     `json:"timestamp"`
	Time        time.Time `json:"time"`
	LogicalTime string    `json:"lt"`
	TotalFees   string    `json:"total_fees"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	Value       string    `json:"value"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

// transactionToResponse converts a stored Transaction to a response format.
func transactionToResponse(t *db.Transaction) transactionResponse {
	return transactionResponse{
		Account:     t.Account,
		Hash:        t.Hash,
		Timestamp:   t.Timestamp,
		Time:        t.Time(),
		LogicalTime: t.LogicalTime,
		TotalFees:   t.TotalFees,
		Source:      t.Source,
		Destination: t.Destination,
		Value:       t.Value,
		Message:     t.Message,
		CreatedAt:   t.CreatedAt,
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateAccount checks an optional account filter. Both TON (user-friendly
// and raw) and Solana addresses are printable ASCII without whitespace.
func validateAccount(account string) error {
	if account == "" {
		return nil
	}
	if len(account) > maxAccountLength {
		return fmt.Errorf("account too long (max %d characters)", maxAccountLength)
	}
	for _, r := range account {
		if r <= ' ' || r > '~' {
			return fmt.Errorf("account contains invalid characters")
		}
	}
	return nil
}

func parseIntParam(value, name string, def int64) (int64, error) {
	if value == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter: must be an integer", name)
	}
	return n, nil
}
