package temporal

import (
	"context"
	"time"
)

// Scheduler manages the Temporal schedule that drives sync cycles.
// Each watched account gets one schedule that triggers SyncAccountWorkflow.
type Scheduler interface {
	// UpsertSyncSchedule creates the schedule for an account, or updates its
	// interval if it already exists.
	UpsertSyncSchedule(ctx context.Context, account string, interval time.Duration) error

	// DeleteSyncSchedule deletes the schedule for an account.
	DeleteSyncSchedule(ctx context.Context, account string) error
}

// ScheduleID returns the Temporal schedule ID for an account.
func ScheduleID(account string) string {
	return "sync-account-" + account
}

// workflowID returns the ID given to workflows started by an account's schedule.
func workflowID(account string) string {
	return "sync-account-run-" + account
}
