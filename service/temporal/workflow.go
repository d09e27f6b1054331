package temporal

import (
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// SyncAccountWorkflow runs a single sync cycle for an account. It is started
// by the account's schedule every poll interval.
func SyncAccountWorkflow(ctx workflow.Context, input SyncAccountInput) (*SyncAccountResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("SyncAccountWorkflow started", "account", input.Account)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		// Page retries happen inside the cycle; the schedule provides the next attempt.
		RetryPolicy: &temporalsdk.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	var result *SyncAccountResult
	if err := workflow.ExecuteActivity(ctx, a.SyncAccount, input).Get(ctx, &result); err != nil {
		logger.Error("sync activity failed", "account", input.Account, "error", err)
		return nil, err
	}

	logger.Info("SyncAccountWorkflow completed",
		"account", input.Account,
		"status", result.Cycle.Status,
		"published", result.Cycle.Published,
		"watermark", result.Cycle.Watermark,
	)
	return result, nil
}
