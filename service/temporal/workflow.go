package temporal

import (
	"fmt"
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/gabrielcipriano/bittensor-explorer/service/db"
	"github.com/gabrielcipriano/bittensor-explorer/service/pricefeed"
)

var a *Activities // for type-safe activity invocation

// RefreshTokenStatsWorkflow fetches the market snapshot of a token, stores it
// and publishes it to NATS. It is triggered by a Temporal schedule.
//
// A failed publish does not fail the run: the snapshot is already stored and
// the next run publishes a fresh one. Every run records its outcome.
func RefreshTokenStatsWorkflow(ctx workflow.Context, input RefreshTokenStatsInput) (*RefreshTokenStatsResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("RefreshTokenStatsWorkflow started", "symbol", input.Symbol)

	startedAt := workflow.Now(ctx)
	result := &RefreshTokenStatsResult{Symbol: input.Symbol}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    3,
		},
	})

	fail := func(step string, err error) (*RefreshTokenStatsResult, error) {
		msg := fmt.Sprintf("%s: %v", step, err)
		result.Error = &msg
		recordRun(ctx, input.Symbol, RunStatusFailed, &msg, startedAt)
		return result, fmt.Errorf("%s: %w", step, err)
	}

	var stats *pricefeed.TokenStats
	if err := workflow.ExecuteActivity(ctx, a.FetchTokenStats, FetchTokenStatsInput{Symbol: input.Symbol}).Get(ctx, &stats); err != nil {
		return fail("failed to fetch token stats", err)
	}
	result.Price = stats.Price
	result.Change24h = stats.PriceChange24h
	result.FetchedAt = stats.FetchedAt

	var saved *db.TokenStats
	if err := workflow.ExecuteActivity(ctx, a.SaveTokenStats, SaveTokenStatsInput{Stats: *stats}).Get(ctx, &saved); err != nil {
		return fail("failed to save token stats", err)
	}
	result.StatsID = saved.ID

	if err := workflow.ExecuteActivity(ctx, a.PublishTokenStats, PublishTokenStatsInput{Stats: *saved}).Get(ctx, &result.Published); err != nil {
		logger.Warn("failed to publish token stats", "symbol", input.Symbol, "error", err)
	}

	if input.Retention > 0 {
		prune := PruneTokenStatsInput{Symbol: input.Symbol, Before: startedAt.Add(-input.Retention)}
		if err := workflow.ExecuteActivity(ctx, a.PruneTokenStats, prune).Get(ctx, &result.Pruned); err != nil {
			logger.Warn("failed to prune token stats", "symbol", input.Symbol, "error", err)
		}
	}

	recordRun(ctx, input.Symbol, RunStatusSuccess, nil, startedAt)

	logger.Info("RefreshTokenStatsWorkflow completed successfully",
		"symbol", input.Symbol,
		"price", result.Price,
		"published", result.Published,
	)
	return result, nil
}

// recordRun stores the run outcome. A failure here is logged, never returned.
func recordRun(ctx workflow.Context, symbol, status string, errMsg *string, startedAt time.Time) {
	finishedAt := workflow.Now(ctx)
	input := RecordRefreshRunInput{
		WorkflowID: workflow.GetInfo(ctx).WorkflowExecution.ID,
		Symbol:     symbol,
		Status:     status,
		Error:      errMsg,
		StartedAt:  startedAt,
		FinishedAt: &finishedAt,
	}
	if err := workflow.ExecuteActivity(ctx, a.RecordRefreshRun, input).Get(ctx, nil); err != nil {
		workflow.GetLogger(ctx).Warn("failed to record refresh run", "symbol", symbol, "error", err)
	}
}
