package redis

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/brojonat/tonwatch/service/ledger"
	"github.com/redis/go-redis/v9"
)

// DefaultStream is the stream key records are appended to.
const DefaultStream = "tonwatch:transactions"

// DefaultMaxLen caps the stream length (approximate trimming).
const DefaultMaxLen = 100_000

// StreamPublisher appends admitted records to a Redis stream with XADD.
type StreamPublisher struct {
	rdb    redis.Cmdable
	closer io.Closer
	stream string
	maxLen int64
	logger *slog.Logger
}

// NewStreamPublisher connects to Redis at url and verifies the connection.
func NewStreamPublisher(url, stream string, logger *slog.Logger) (*StreamPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	p := newStreamPublisher(rdb, stream, logger)
	p.closer = rdb
	logger.Info("redis stream publisher initialized", "stream", p.stream)
	return p, nil
}

func newStreamPublisher(rdb redis.Cmdable, stream string, logger *slog.Logger) *StreamPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamPublisher{
		rdb:    rdb,
		stream: stream,
		maxLen: DefaultMaxLen,
		logger: logger,
	}
}

// Publish appends rec to the stream and returns the entry id.
func (p *StreamPublisher) Publish(ctx context.Context, rec *ledger.TransactionRecord) (string, error) {
	id, err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: recordValues(rec),
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd failed: %w", err)
	}

	p.logger.DebugContext(ctx, "appended transaction to redis stream",
		"stream", p.stream,
		"id", id,
		"hash", rec.Hash,
	)
	return id, nil
}

// Close closes the Redis connection if the publisher opened it.
func (p *StreamPublisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

func recordValues(rec *ledger.TransactionRecord) map[string]interface{} {
	return map[string]interface{}{
		"account":     rec.Account,
		"hash":        rec.Hash,
		"timestamp":   strconv.FormatInt(rec.Timestamp, 10),
		"lt":          rec.LogicalTime,
		"total_fees":  rec.TotalFees,
		"source":      rec.Source,
		"destination": rec.Destination,
		"value":       rec.Value,
		"message":     rec.Message,
	}
}
