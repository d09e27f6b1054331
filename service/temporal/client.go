package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	enums "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
)

// Client is a production implementation of Scheduler that talks to Temporal.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}, nil
}

// scheduleOptions builds the schedule for an account. Overlapping runs are
// skipped by the server, so a slow cycle never queues a second one behind it.
func (c *Client) scheduleOptions(account string, interval time.Duration) client.ScheduleOptions {
	return client.ScheduleOptions{
		ID: ScheduleID(account),
		Spec: client.ScheduleSpec{
			Intervals: []client.ScheduleIntervalSpec{
				{Every: interval},
			},
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        workflowID(account),
			Workflow:  SyncAccountWorkflow,
			TaskQueue: c.taskQueue,
			Args:      []interface{}{SyncAccountInput{Account: account}},
		},
		Overlap: enums.SCHEDULE_OVERLAP_POLICY_SKIP,
		Memo: map[string]interface{}{
			"account":    account,
			"created_by": "tonwatch",
		},
	}
}

// UpsertSyncSchedule creates or updates the schedule for an account.
// If the schedule already exists, its interval is replaced.
func (c *Client) UpsertSyncSchedule(ctx context.Context, account string, interval time.Duration) error {
	id := ScheduleID(account)

	c.logger.DebugContext(ctx, "upserting sync schedule",
		"account", account,
		"schedule_id", id,
		"interval", interval,
	)

	handle := c.client.ScheduleClient().GetHandle(ctx, id)
	if _, err := handle.Describe(ctx); err != nil {
		c.logger.DebugContext(ctx, "schedule not found, creating new one",
			"schedule_id", id,
			"error", err,
		)
		if _, err := c.client.ScheduleClient().Create(ctx, c.scheduleOptions(account, interval)); err != nil {
			c.logger.ErrorContext(ctx, "failed to create schedule",
				"account", account,
				"schedule_id", id,
				"error", err,
			)
			return fmt.Errorf("failed to create schedule %q: %w", id, err)
		}
		c.logger.InfoContext(ctx, "sync schedule created",
			"account", account,
			"schedule_id", id,
			"interval", interval,
		)
		return nil
	}

	err := handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(input client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			input.Description.Schedule.Spec.Intervals = []client.ScheduleIntervalSpec{
				{Every: interval},
			}
			if input.Description.Schedule.Policy != nil {
				input.Description.Schedule.Policy.Overlap = enums.SCHEDULE_OVERLAP_POLICY_SKIP
			}
			return &client.ScheduleUpdate{
				Schedule: &input.Description.Schedule,
			}, nil
		},
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to update schedule",
			"account", account,
			"schedule_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to update schedule %q: %w", id, err)
	}

	c.logger.InfoContext(ctx, "sync schedule updated",
		"account", account,
		"schedule_id", id,
		"interval", interval,
	)
	return nil
}

// DeleteSyncSchedule deletes the schedule for an account.
func (c *Client) DeleteSyncSchedule(ctx context.Context, account string) error {
	id := ScheduleID(account)

	handle := c.client.ScheduleClient().GetHandle(ctx, id)
	if err := handle.Delete(ctx); err != nil {
		c.logger.ErrorContext(ctx, "failed to delete schedule",
			"account", account,
			"schedule_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to delete schedule %q: %w", id, err)
	}

	c.logger.InfoContext(ctx, "sync schedule deleted",
		"account", account,
		"schedule_id", id,
	)
	return nil
}

// SDKClient returns the underlying Temporal SDK client.
func (c *Client) SDKClient() client.Client {
	return c.client
}

// TaskQueue returns the configured task queue for this client.
func (c *Client) TaskQueue() string {
	return c.taskQueue
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
