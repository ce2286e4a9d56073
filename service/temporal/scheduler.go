package temporal

import (
	"context"
	"time"
)

// Scheduler manages the Temporal schedules that refresh token stats.
// Each token gets its own schedule that triggers RefreshTokenStatsWorkflow.
type Scheduler interface {
	// UpsertStatsSchedule creates the schedule of symbol or updates its interval.
	UpsertStatsSchedule(ctx context.Context, symbol string, interval time.Duration) error

	// DeleteStatsSchedule stops refreshing symbol.
	DeleteStatsSchedule(ctx context.Context, symbol string) error
}

// scheduleID returns the Temporal schedule ID for a token.
func scheduleID(symbol string) string {
	return "refresh-token-stats-" + symbol
}
