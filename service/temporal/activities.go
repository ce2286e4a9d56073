package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gabrielcipriano/bittensor-explorer/service/db"
	"github.com/gabrielcipriano/bittensor-explorer/service/metrics"
	natspkg "github.com/gabrielcipriano/bittensor-explorer/service/nats"
	"github.com/gabrielcipriano/bittensor-explorer/service/pricefeed"
)

// RefreshTokenStatsInput contains the input parameters of a refresh.
type RefreshTokenStatsInput struct {
	Symbol string `json:"symbol"`
	// Retention prunes older snapshots after saving; zero disables pruning.
	Retention time.Duration `json:"retention"`
}

// RefreshTokenStatsResult summarizes one refresh.
type RefreshTokenStatsResult struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Change24h float64   `json:"change_24h"`
	StatsID   int64     `json:"stats_id"`
	Published bool      `json:"published"`
	Pruned    int64     `json:"pruned"`
	FetchedAt time.Time `json:"fetched_at"`
	Error     *string   `json:"error,omitempty"`
}

// FetchTokenStatsInput contains parameters for the FetchTokenStats activity.
type FetchTokenStatsInput struct {
	Symbol string `json:"symbol"`
}

// SaveTokenStatsInput contains parameters for the SaveTokenStats activity.
type SaveTokenStatsInput struct {
	Stats pricefeed.TokenStats `json:"stats"`
}

// PublishTokenStatsInput contains parameters for the PublishTokenStats activity.
type PublishTokenStatsInput struct {
	Stats db.TokenStats `json:"stats"`
}

// PruneTokenStatsInput contains parameters for the PruneTokenStats activity.
type PruneTokenStatsInput struct {
	Symbol string    `json:"symbol"`
	Before time.Time `json:"before"`
}

// RecordRefreshRunInput contains parameters for the RecordRefreshRun activity.
type RecordRefreshRunInput struct {
	WorkflowID string     `json:"workflow_id"`
	Symbol     string     `json:"symbol"`
	Status     string     `json:"status"`
	Error      *string    `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Refresh run statuses.
const (
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// StoreInterface defines the database operations needed by activities.
type StoreInterface interface {
	InsertTokenStats(context.Context, db.InsertTokenStatsParams) (*db.TokenStats, error)
	PruneTokenStats(context.Context, time.Time) (int64, error)
	UpsertRefreshRun(context.Context, db.RefreshRun) (*db.RefreshRun, error)
}

// PriceFeedInterface defines the market data operations needed by activities.
type PriceFeedInterface interface {
	FetchTokenStats(ctx context.Context) (*pricefeed.TokenStats, error)
}

// PublisherInterface defines the NATS publishing operations needed by activities.
type PublisherInterface interface {
	PublishTokenStats(ctx context.Context, event *natspkg.TokenStatsEvent) error
}

// Activities holds the dependencies needed by Temporal activities.
type Activities struct {
	store     StoreInterface
	priceFeed PriceFeedInterface
	publisher PublisherInterface
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// If metrics is nil, no metrics will be recorded. A nil publisher skips publishing.
func NewActivities(store StoreInterface, priceFeed PriceFeedInterface, publisher PublisherInterface, m *metrics.Metrics, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		store:     store,
		priceFeed: priceFeed,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

func (a *Activities) observe(activity, symbol string, start time.Time) {
	if a.metrics != nil {
		a.metrics.RecordActivityDuration(activity, symbol, time.Since(start).Seconds())
	}
}

// FetchTokenStats reads the current market snapshot from the price feed.
func (a *Activities) FetchTokenStats(ctx context.Context, input FetchTokenStatsInput) (*pricefeed.TokenStats, error) {
	defer a.observe("FetchTokenStats", input.Symbol, time.Now())

	stats, err := a.priceFeed.FetchTokenStats(ctx)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to fetch token stats", "symbol", input.Symbol, "error", err)
		return nil, fmt.Errorf("failed to fetch token stats: %w", err)
	}
	if stats.Symbol != input.Symbol {
		return nil, fmt.Errorf("price feed serves %s, not %s", stats.Symbol, input.Symbol)
	}
	return stats, nil
}

// SaveTokenStats stores a snapshot.
func (a *Activities) SaveTokenStats(ctx context.Context, input SaveTokenStatsInput) (*db.TokenStats, error) {
	defer a.observe("SaveTokenStats", input.Stats.Symbol, time.Now())

	saved, err := a.store.InsertTokenStats(ctx, db.InsertTokenStatsParams{
		Symbol:         input.Stats.Symbol,
		Price:          input.Stats.Price,
		PriceChange24h: input.Stats.PriceChange24h,
		Volume24h:      input.Stats.Volume24h,
		MarketCap:      input.Stats.MarketCap,
		FetchedAt:      input.Stats.FetchedAt,
	})
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to save token stats", "symbol", input.Stats.Symbol, "error", err)
		return nil, fmt.Errorf("failed to save token stats: %w", err)
	}

	a.logger.InfoContext(ctx, "saved token stats",
		"symbol", saved.Symbol,
		"id", saved.ID,
		"price", saved.Price,
	)
	return saved, nil
}

// PublishTokenStats publishes a stored snapshot to NATS. It reports false when
// no publisher is configured.
func (a *Activities) PublishTokenStats(ctx context.Context, input PublishTokenStatsInput) (bool, error) {
	defer a.observe("PublishTokenStats", input.Stats.Symbol, time.Now())

	if a.publisher == nil {
		a.logger.DebugContext(ctx, "no publisher configured, skipping publish", "symbol", input.Stats.Symbol)
		return false, nil
	}
	if err := a.publisher.PublishTokenStats(ctx, natspkg.FromDBTokenStats(&input.Stats)); err != nil {
		return false, fmt.Errorf("failed to publish token stats: %w", err)
	}
	return true, nil
}

// PruneTokenStats deletes snapshots older than the cutoff.
func (a *Activities) PruneTokenStats(ctx context.Context, input PruneTokenStatsInput) (int64, error) {
	defer a.observe("PruneTokenStats", input.Symbol, time.Now())

	n, err := a.store.PruneTokenStats(ctx, input.Before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune token stats: %w", err)
	}
	if n > 0 {
		a.logger.InfoContext(ctx, "pruned token stats", "before", input.Before, "deleted", n)
	}
	return n, nil
}

// RecordRefreshRun stores the outcome of a workflow run and records its duration.
func (a *Activities) RecordRefreshRun(ctx context.Context, input RecordRefreshRunInput) error {
	defer a.observe("RecordRefreshRun", input.Symbol, time.Now())

	_, err := a.store.UpsertRefreshRun(ctx, db.RefreshRun{
		WorkflowID: input.WorkflowID,
		Symbol:     input.Symbol,
		Status:     input.Status,
		Error:      input.Error,
		StartedAt:  input.StartedAt,
		FinishedAt: input.FinishedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to record refresh run: %w", err)
	}

	if a.metrics != nil && input.FinishedAt != nil {
		a.metrics.RecordWorkflowDuration(input.Symbol, input.Status, input.FinishedAt.Sub(input.StartedAt).Seconds())
	}
	return nil
}
