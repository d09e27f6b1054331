package sink

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/brojonat/tonwatch/service/ledger"
	"github.com/brojonat/tonwatch/service/metrics"
)

// DefaultBuffer is the default queue length of a Dispatcher.
const DefaultBuffer = 256

// ErrClosed is reported when a record is published after Close.
var ErrClosed = errors.New("dispatcher closed")

// Handler delivers a record to one downstream system.
type Handler interface {
	Name() string
	Handle(ctx context.Context, rec *ledger.TransactionRecord) error
}

// Dispatcher queues records and delivers each to every handler in order on a
// single goroutine. Publish never waits for delivery; handler failures are
// logged and counted but do not stop later handlers.
type Dispatcher struct {
	handlers []Handler
	queue    chan *ledger.TransactionRecord
	done     chan struct{}
	stopped  chan struct{}
	once     sync.Once
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher and starts its delivery goroutine.
// If metrics is nil, no metrics will be recorded.
func NewDispatcher(buffer int, m *metrics.Metrics, logger *slog.Logger, handlers ...Handler) *Dispatcher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	d := &Dispatcher{
		handlers: handlers,
		queue:    make(chan *ledger.TransactionRecord, buffer),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		metrics:  m,
		logger:   logger,
	}
	go d.loop()
	return d
}

// Publish enqueues rec. It blocks only while the queue is full, and gives up
// when ctx is done or the dispatcher is closed.
func (d *Dispatcher) Publish(ctx context.Context, rec *ledger.TransactionRecord) {
	select {
	case <-d.done:
		d.logger.WarnContext(ctx, "dropping record, dispatcher closed", "hash", rec.Hash, "error", ErrClosed)
		return
	default:
	}

	select {
	case d.queue <- rec:
		if d.metrics != nil {
			d.metrics.SetSinkQueueDepth(len(d.queue))
		}
	case <-ctx.Done():
		d.logger.WarnContext(ctx, "dropping record, context done", "hash", rec.Hash, "error", ctx.Err())
	case <-d.done:
		d.logger.WarnContext(ctx, "dropping record, dispatcher closed", "hash", rec.Hash, "error", ErrClosed)
	}
}

// Close stops accepting records, delivers what is already queued and waits
// for the delivery goroutine, or until ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.once.Do(func() { close(d.done) })
	select {
	case <-d.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) loop() {
	defer close(d.stopped)
	for {
		select {
		case rec := <-d.queue:
			d.deliver(rec)
		case <-d.done:
			for {
				select {
				case rec := <-d.queue:
					d.deliver(rec)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(rec *ledger.TransactionRecord) {
	// Delivery outlives the cycle that published the record.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if d.metrics != nil {
		d.metrics.SetSinkQueueDepth(len(d.queue))
	}
	for _, h := range d.handlers {
		start := time.Now()
		err := h.Handle(ctx, rec)
		if d.metrics != nil {
			d.metrics.RecordSinkDelivery(h.Name(), time.Since(start).Seconds(), err)
		}
		if err != nil {
			d.logger.ErrorContext(ctx, "sink delivery failed",
				"sink", h.Name(),
				"hash", rec.Hash,
				"account", rec.Account,
				"error", err,
			)
		}
	}
}
