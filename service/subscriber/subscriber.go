package subscriber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brojonat/tonwatch/service/ledger"
	"github.com/brojonat/tonwatch/service/metrics"
	"github.com/google/uuid"
)

// ErrRetriesExhausted is returned when a page could not be fetched within the retry budget.
var ErrRetriesExhausted = errors.New("page fetch retries exhausted")

const (
	DefaultPollInterval = 10 * time.Second
	DefaultPageSize     = 10
	DefaultMaxRetries   = 5
	DefaultRetryDelay   = time.Second
)

// Config controls a Subscriber.
type Config struct {
	Account      string
	PollInterval time.Duration
	PageSize     int
	MaxRetries   int // retries after the first attempt
	RetryDelay   time.Duration

	// StartWatermark is the initial watermark in unix seconds.
	// Zero means the current time, so history is not replayed on startup.
	StartWatermark int64
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	return c
}

// Sink receives admitted records. Publish must not block on delivery.
type Sink interface {
	Publish(ctx context.Context, rec *ledger.TransactionRecord)
}

// CycleStatus is the outcome of a Sync call.
type CycleStatus string

const (
	StatusDone    CycleStatus = "done"
	StatusAborted CycleStatus = "aborted"
	StatusFailed  CycleStatus = "failed"
	StatusSkipped CycleStatus = "skipped"
)

// CycleResult summarizes one Sync call.
type CycleResult struct {
	CycleID           string        `json:"cycle_id,omitempty"`
	Status            CycleStatus   `json:"status"`
	StartedAt         time.Time     `json:"started_at"`
	Duration          time.Duration `json:"duration"`
	Pages             int           `json:"pages"`
	Fetched           int           `json:"fetched"`
	Published         int           `json:"published"`
	PreviousWatermark int64         `json:"previous_watermark"`
	Watermark         int64         `json:"watermark"`
	Advanced          bool          `json:"advanced"`
	Error             string        `json:"error,omitempty"`
}

// Status is a point-in-time view of a Subscriber.
type Status struct {
	Account    string       `json:"account"`
	Watermark  int64        `json:"watermark"`
	InProgress bool         `json:"in_progress"`
	LastCycle  *CycleResult `json:"last_cycle,omitempty"`
}

// Subscriber polls one account's history and hands new comment-bearing
// incoming transfers to a Sink. At most one cycle runs at a time.
type Subscriber struct {
	cfg     Config
	client  ledger.Client
	filter  *Filter
	sink    Sink
	metrics *metrics.Metrics
	logger  *slog.Logger

	processing atomic.Bool
	watermark  atomic.Int64
	lastCycle  atomic.Pointer[CycleResult]
}

// NewSubscriber creates a Subscriber. If metrics is nil, no metrics will be recorded.
func NewSubscriber(
	cfg Config,
	client ledger.Client,
	decoder CommentDecoder,
	sink Sink,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Subscriber {
	cfg = cfg.withDefaults()
	s := &Subscriber{
		cfg:     cfg,
		client:  client,
		filter:  NewFilter(cfg.Account, decoder),
		sink:    sink,
		metrics: m,
		logger:  logger,
	}
	start := cfg.StartWatermark
	if start == 0 {
		start = time.Now().Unix()
	}
	s.watermark.Store(start)
	if m != nil {
		m.SetWatermark(start)
	}
	return s
}

// Watermark returns the timestamp at or below which transactions are considered processed.
func (s *Subscriber) Watermark() int64 {
	return s.watermark.Load()
}

// InProgress reports whether a cycle is currently running.
func (s *Subscriber) InProgress() bool {
	return s.processing.Load()
}

// Status returns the current watermark and the last cycle summary.
func (s *Subscriber) Status() Status {
	return Status{
		Account:    s.cfg.Account,
		Watermark:  s.Watermark(),
		InProgress: s.InProgress(),
		LastCycle:  s.lastCycle.Load(),
	}
}

// Run calls Sync every poll interval until ctx is cancelled. Each tick starts
// its own Sync, so a tick that lands on a running cycle is dropped by the
// guard instead of waiting in the ticker. Run waits for the running cycle
// before returning.
func (s *Subscriber) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	s.logger.InfoContext(ctx, "subscriber started",
		"account", s.cfg.Account,
		"poll_interval", s.cfg.PollInterval,
		"page_size", s.cfg.PageSize,
		"max_retries", s.cfg.MaxRetries,
		"watermark", s.Watermark(),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "subscriber stopping", "account", s.cfg.Account)
			return nil
		case <-ticker.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.Sync(ctx)
			}()
		}
	}
}

// Sync runs one cycle unless one is already running, in which case it
// returns immediately with StatusSkipped. Errors and panics inside the cycle
// are logged and reported in the result; they never escape.
func (s *Subscriber) Sync(ctx context.Context) (res CycleResult) {
	if !s.processing.CompareAndSwap(false, true) {
		s.logger.DebugContext(ctx, "cycle in progress, dropping tick", "account", s.cfg.Account)
		if s.metrics != nil {
			s.metrics.RecordTickDropped()
		}
		return CycleResult{Status: StatusSkipped, Watermark: s.Watermark(), PreviousWatermark: s.Watermark()}
	}
	defer s.processing.Store(false)

	start := time.Now()
	watermark := s.watermark.Load()
	res = CycleResult{
		CycleID:           uuid.NewString(),
		StartedAt:         start,
		PreviousWatermark: watermark,
	}
	log := s.logger.With("cycle_id", res.CycleID, "account", s.cfg.Account)

	if s.metrics != nil {
		s.metrics.SetCycleInProgress(true)
	}

	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "sync cycle panicked",
				"panic", r,
				"stack", string(debug.Stack()),
			)
			res.Status = StatusFailed
			res.Error = fmt.Sprint(r)
		}
		res.Duration = time.Since(start)
		res.Watermark = s.watermark.Load()
		if s.metrics != nil {
			s.metrics.SetCycleInProgress(false)
			s.metrics.RecordCycle(string(res.Status), res.Duration.Seconds())
		}
		last := res
		s.lastCycle.Store(&last)
	}()

	log.DebugContext(ctx, "sync cycle started", "watermark", watermark)

	candidate, found, err := s.walk(ctx, log, watermark, &res)
	if err != nil {
		res.Error = err.Error()
		if errors.Is(err, ErrRetriesExhausted) || ctx.Err() != nil {
			res.Status = StatusAborted
			log.WarnContext(ctx, "sync cycle aborted, watermark unchanged",
				"watermark", watermark,
				"pages", res.Pages,
				"published", res.Published,
				"error", err,
			)
		} else {
			res.Status = StatusFailed
			log.ErrorContext(ctx, "sync cycle failed",
				"watermark", watermark,
				"error", err,
			)
		}
		return res
	}

	res.Status = StatusDone
	if found && candidate > watermark {
		s.watermark.Store(candidate)
		res.Advanced = true
		if s.metrics != nil {
			s.metrics.SetWatermark(candidate)
		}
	}

	log.InfoContext(ctx, "sync cycle complete",
		"pages", res.Pages,
		"fetched", res.Fetched,
		"published", res.Published,
		"previous_watermark", watermark,
		"watermark", s.watermark.Load(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res
}
