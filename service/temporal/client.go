package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
)

// Client is a production implementation of Scheduler that talks to Temporal.
type Client struct {
	client    client.Client
	taskQueue string
	retention time.Duration
	logger    *slog.Logger
}

// NewClient creates a new Temporal client. Scheduled refreshes prune
// snapshots older than retention; zero keeps everything.
func NewClient(host, namespace, taskQueue string, retention time.Duration, logger *slog.Logger) (*Client, error) {
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

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		retention: retention,
		logger:    logger,
	}, nil
}

func (c *Client) workflowInput(symbol string) RefreshTokenStatsInput {
	return RefreshTokenStatsInput{Symbol: symbol, Retention: c.retention}
}

// createStatsSchedule creates the refresh schedule of symbol.
func (c *Client) createStatsSchedule(ctx context.Context, symbol string, interval time.Duration) error {
	id := scheduleID(symbol)

	_, err := c.client.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID: id,
		Spec: client.ScheduleSpec{
			Intervals: []client.ScheduleIntervalSpec{{Every: interval}},
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        "refresh-token-stats-" + symbol,
			Workflow:  RefreshTokenStatsWorkflow,
			TaskQueue: c.taskQueue,
			Args:      []interface{}{c.workflowInput(symbol)},
		},
		Memo: map[string]interface{}{
			"symbol":     symbol,
			"created_by": "bittensor-explorer",
		},
	})
	if err != nil {
		c.logger.Error("failed to create schedule", "symbol", symbol, "schedule_id", id, "error", err)
		return fmt.Errorf("failed to create schedule %q: %w", id, err)
	}

	c.logger.Info("token stats schedule created", "symbol", symbol, "schedule_id", id, "interval", interval)
	return nil
}

// UpsertStatsSchedule creates the refresh schedule of symbol, or updates its
// interval if it already exists.
func (c *Client) UpsertStatsSchedule(ctx context.Context, symbol string, interval time.Duration) error {
	id := scheduleID(symbol)

	handle := c.client.ScheduleClient().GetHandle(ctx, id)
	if _, err := handle.Describe(ctx); err != nil {
		c.logger.Debug("schedule not found, creating new one", "schedule_id", id, "error", err)
		return c.createStatsSchedule(ctx, symbol, interval)
	}

	err := handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(input client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			input.Description.Schedule.Spec.Intervals = []client.ScheduleIntervalSpec{{Every: interval}}
			return &client.ScheduleUpdate{Schedule: &input.Description.Schedule}, nil
		},
	})
	if err != nil {
		c.logger.Error("failed to update schedule", "symbol", symbol, "schedule_id", id, "error", err)
		return fmt.Errorf("failed to update schedule %q: %w", id, err)
	}

	c.logger.Info("token stats schedule updated", "symbol", symbol, "schedule_id", id, "interval", interval)
	return nil
}

// DeleteStatsSchedule deletes the refresh schedule of symbol.
func (c *Client) DeleteStatsSchedule(ctx context.Context, symbol string) error {
	id := scheduleID(symbol)

	handle := c.client.ScheduleClient().GetHandle(ctx, id)
	if err := handle.Delete(ctx); err != nil {
		c.logger.Error("failed to delete schedule", "symbol", symbol, "schedule_id", id, "error", err)
		return fmt.Errorf("failed to delete schedule %q: %w", id, err)
	}

	c.logger.Info("token stats schedule deleted", "symbol", symbol, "schedule_id", id)
	return nil
}

// RefreshNow runs one refresh outside the schedule and waits for its result.
func (c *Client) RefreshNow(ctx context.Context, symbol string) (*RefreshTokenStatsResult, error) {
	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        fmt.Sprintf("refresh-token-stats-%s-manual-%d", symbol, time.Now().UnixNano()),
		TaskQueue: c.taskQueue,
	}, RefreshTokenStatsWorkflow, c.workflowInput(symbol))
	if err != nil {
		return nil, fmt.Errorf("failed to start refresh workflow: %w", err)
	}

	var result RefreshTokenStatsResult
	if err := run.Get(ctx, &result); err != nil {
		return nil, fmt.Errorf("refresh workflow %s failed: %w", run.GetID(), err)
	}
	return &result, nil
}

// SDKClient returns the underlying Temporal SDK client for direct workflow operations.
func (c *Client) SDKClient() client.Client {
	return c.client
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
