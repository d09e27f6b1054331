package sink

import (
	"context"
	"log/slog"

	"github.com/brojonat/tonwatch/service/ledger"
	"github.com/brojonat/tonwatch/service/metrics"
	natspkg "github.com/brojonat/tonwatch/service/nats"
)

// TransactionWriter persists records.
type TransactionWriter interface {
	InsertTransaction(ctx context.Context, rec *ledger.TransactionRecord) (bool, error)
}

// StreamAppender appends records to a stream and returns the entry id.
type StreamAppender interface {
	Publish(ctx context.Context, rec *ledger.TransactionRecord) (string, error)
}

type persistHandler struct {
	store   TransactionWriter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Persist stores each record. Records already stored are skipped.
func Persist(store TransactionWriter, m *metrics.Metrics, logger *slog.Logger) Handler {
	return &persistHandler{store: store, metrics: m, logger: logger}
}

func (h *persistHandler) Name() string { return "postgres" }

func (h *persistHandler) Handle(ctx context.Context, rec *ledger.TransactionRecord) error {
	inserted, err := h.store.InsertTransaction(ctx, rec)
	if err != nil {
		return err
	}
	result := "inserted"
	if !inserted {
		result = "exists"
	}
	if h.metrics != nil {
		h.metrics.RecordTransactionPersisted(result)
	}
	h.logger.InfoContext(ctx, "transaction stored",
		"hash", rec.Hash,
		"account", rec.Account,
		"value", rec.Value,
		"result", result,
	)
	return nil
}

type natsHandler struct {
	publisher natspkg.Publisher
}

// Broadcast publishes each record as a TransactionEvent to JetStream.
func Broadcast(publisher natspkg.Publisher) Handler {
	return &natsHandler{publisher: publisher}
}

func (h *natsHandler) Name() string { return "nats" }

func (h *natsHandler) Handle(ctx context.Context, rec *ledger.TransactionRecord) error {
	return h.publisher.PublishTransaction(ctx, natspkg.FromRecord(rec))
}

type streamHandler struct {
	appender StreamAppender
}

// Stream appends each record to a Redis stream.
func Stream(appender StreamAppender) Handler {
	return &streamHandler{appender: appender}
}

func (h *streamHandler) Name() string { return "redis" }

func (h *streamHandler) Handle(ctx context.Context, rec *ledger.TransactionRecord) error {
	_, err := h.appender.Publish(ctx, rec)
	return err
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc struct {
	Label string
	Fn    func(ctx context.Context, rec *ledger.TransactionRecord) error
}

func (f HandlerFunc) Name() string { return f.Label }

func (f HandlerFunc) Handle(ctx context.Context, rec *ledger.TransactionRecord) error {
	return f.Fn(ctx, rec)
}
