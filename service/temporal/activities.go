package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/tonwatch/service/metrics"
	"github.com/brojonat/tonwatch/service/subscriber"
	temporalsdk "go.temporal.io/sdk/temporal"
)

// SyncAccountInput contains the input parameters for one scheduled cycle.
type SyncAccountInput struct {
	Account string `json:"account"`
}

// SyncAccountResult is the outcome of one scheduled cycle.
type SyncAccountResult struct {
	Account string                 `json:"account"`
	Cycle   subscriber.CycleResult `json:"cycle"`
}

// Syncer runs one guarded sync cycle. *subscriber.Subscriber implements it.
type Syncer interface {
	Sync(ctx context.Context) subscriber.CycleResult
	Status() subscriber.Status
}

// Activities holds the dependencies needed by Temporal activities.
type Activities struct {
	syncer  Syncer
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// If metrics is nil, no metrics will be recorded.
func NewActivities(syncer Syncer, m *metrics.Metrics, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		syncer:  syncer,
		metrics: m,
		logger:  logger,
	}
}

// SyncAccount runs one cycle in this worker's subscriber. Cycle failures are
// reported in the result rather than as an activity error; the next scheduled
// run is the retry.
func (a *Activities) SyncAccount(ctx context.Context, input SyncAccountInput) (*SyncAccountResult, error) {
	start := time.Now()
	status := "error"
	defer func() {
		if a.metrics != nil {
			a.metrics.RecordActivityDuration("SyncAccount", status, time.Since(start).Seconds())
		}
	}()

	account := a.syncer.Status().Account
	if input.Account != account {
		a.logger.ErrorContext(ctx, "schedule targets a different account",
			"requested", input.Account,
			"watched", account,
		)
		return nil, temporalsdk.NewNonRetryableApplicationError(
			fmt.Sprintf("worker watches %q, not %q", account, input.Account),
			"AccountMismatch",
			nil,
		)
	}

	cycle := a.syncer.Sync(ctx)
	status = string(cycle.Status)

	a.logger.InfoContext(ctx, "sync activity finished",
		"account", account,
		"cycle_id", cycle.CycleID,
		"status", cycle.Status,
		"published", cycle.Published,
		"watermark", cycle.Watermark,
	)

	return &SyncAccountResult{Account: account, Cycle: cycle}, nil
}
