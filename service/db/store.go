package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gabrielcipriano/bittensor-explorer/service/metrics"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store provides database operations for the token stats pipeline.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// If metrics is nil, no metrics will be recorded.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{pool: pool, metrics: m}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// TokenStats is a stored market snapshot.
type TokenStats struct {
	ID             int64     `json:"id"`
	Symbol         string    `json:"symbol"`
	Price          float64   `json:"price"`
	PriceChange24h float64   `json:"priceChange24h"`
	Volume24h      float64   `json:"volume24h"`
	MarketCap      float64   `json:"marketCap"`
	FetchedAt      time.Time `json:"fetchedAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

// InsertTokenStatsParams contains the parameters for storing a snapshot.
type InsertTokenStatsParams struct {
	Symbol         string
	Price          float64
	PriceChange24h float64
	Volume24h      float64
	MarketCap      float64
	FetchedAt      time.Time
}

const tokenStatsColumns = `id, symbol, price, price_change_24h, volume_24h, market_cap, fetched_at, created_at`

const insertTokenStatsSQL = `
	INSERT INTO token_stats (symbol, price, price_change_24h, volume_24h, market_cap, fetched_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING ` + tokenStatsColumns

const latestTokenStatsSQL = `
	SELECT ` + tokenStatsColumns + `
	FROM token_stats
	WHERE symbol = $1
	ORDER BY fetched_at DESC
	LIMIT 1`

const listTokenStatsSQL = `
	SELECT ` + tokenStatsColumns + `
	FROM token_stats
	WHERE symbol = $1 AND fetched_at >= $2
	ORDER BY fetched_at ASC
	LIMIT $3`

const pruneTokenStatsSQL = `DELETE FROM token_stats WHERE fetched_at < $1`

// InsertTokenStats stores a snapshot.
func (s *Store) InsertTokenStats(ctx context.Context, p InsertTokenStatsParams) (*TokenStats, error) {
	start := time.Now()
	row := s.pool.QueryRow(ctx, insertTokenStatsSQL,
		p.Symbol, p.Price, p.PriceChange24h, p.Volume24h, p.MarketCap, p.FetchedAt)
	stats, err := scanTokenStats(row)
	s.record("insert", "token_stats", start, err)
	if err != nil {
		return nil, fmt.Errorf("insert token stats: %w", err)
	}
	return stats, nil
}

// LatestTokenStats returns the most recent snapshot of symbol.
func (s *Store) LatestTokenStats(ctx context.Context, symbol string) (*TokenStats, error) {
	start := time.Now()
	stats, err := scanTokenStats(s.pool.QueryRow(ctx, latestTokenStatsSQL, symbol))
	if errors.Is(err, pgx.ErrNoRows) {
		s.record("select", "token_stats", start, nil)
		return nil, fmt.Errorf("token stats for %s: %w", symbol, ErrNotFound)
	}
	s.record("select", "token_stats", start, err)
	if err != nil {
		return nil, fmt.Errorf("latest token stats: %w", err)
	}
	return stats, nil
}

// ListTokenStats returns snapshots of symbol fetched since the given time, oldest first.
func (s *Store) ListTokenStats(ctx context.Context, symbol string, since time.Time, limit int32) ([]*TokenStats, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx, listTokenStatsSQL, symbol, since, limit)
	if err != nil {
		s.record("select", "token_stats", start, err)
		return nil, fmt.Errorf("list token stats: %w", err)
	}
	defer rows.Close()

	out := make([]*TokenStats, 0)
	for rows.Next() {
		stats, err := scanTokenStats(rows)
		if err != nil {
			s.record("select", "token_stats", start, err)
			return nil, fmt.Errorf("scan token stats: %w", err)
		}
		out = append(out, stats)
	}
	err = rows.Err()
	s.record("select", "token_stats", start, err)
	if err != nil {
		return nil, fmt.Errorf("list token stats: %w", err)
	}
	return out, nil
}

// PruneTokenStats deletes snapshots fetched before cutoff and returns how many were removed.
func (s *Store) PruneTokenStats(ctx context.Context, cutoff time.Time) (int64, error) {
	start := time.Now()
	tag, err := s.pool.Exec(ctx, pruneTokenStatsSQL, cutoff)
	s.record("delete", "token_stats", start, err)
	if err != nil {
		return 0, fmt.Errorf("prune token stats: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RefreshRun records one execution of the stats refresh workflow.
type RefreshRun struct {
	WorkflowID string     `json:"workflowId"`
	Symbol     string     `json:"symbol"`
	Status     string     `json:"status"`
	Error      *string    `json:"error,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

const upsertRefreshRunSQL = `
	INSERT INTO stats_refresh_runs (workflow_id, symbol, status, error, started_at, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (workflow_id) DO UPDATE SET
		status = EXCLUDED.status,
		error = EXCLUDED.error,
		finished_at = EXCLUDED.finished_at
	RETURNING workflow_id, symbol, status, error, started_at, finished_at`

const listRefreshRunsSQL = `
	SELECT workflow_id, symbol, status, error, started_at, finished_at
	FROM stats_refresh_runs
	WHERE symbol = $1
	ORDER BY started_at DESC
	LIMIT $2`

// UpsertRefreshRun creates or updates the record of a workflow run.
func (s *Store) UpsertRefreshRun(ctx context.Context, run RefreshRun) (*RefreshRun, error) {
	start := time.Now()
	var out RefreshRun
	err := s.pool.QueryRow(ctx, upsertRefreshRunSQL,
		run.WorkflowID, run.Symbol, run.Status, run.Error, run.StartedAt, run.FinishedAt,
	).Scan(&out.WorkflowID, &out.Symbol, &out.Status, &out.Error, &out.StartedAt, &out.FinishedAt)
	s.record("upsert", "stats_refresh_runs", start, err)
	if err != nil {
		return nil, fmt.Errorf("upsert refresh run: %w", err)
	}
	return &out, nil
}

// ListRefreshRuns returns the latest runs for symbol, newest first.
func (s *Store) ListRefreshRuns(ctx context.Context, symbol string, limit int32) ([]*RefreshRun, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx, listRefreshRunsSQL, symbol, limit)
	if err != nil {
		s.record("select", "stats_refresh_runs", start, err)
		return nil, fmt.Errorf("list refresh runs: %w", err)
	}
	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*RefreshRun, error) {
		var r RefreshRun
		err := row.Scan(&r.WorkflowID, &r.Symbol, &r.Status, &r.Error, &r.StartedAt, &r.FinishedAt)
		return &r, err
	})
	s.record("select", "stats_refresh_runs", start, err)
	if err != nil {
		return nil, fmt.Errorf("list refresh runs: %w", err)
	}
	return runs, nil
}

func scanTokenStats(row pgx.Row) (*TokenStats, error) {
	var t TokenStats
	err := row.Scan(&t.ID, &t.Symbol, &t.Price, &t.PriceChange24h, &t.Volume24h, &t.MarketCap, &t.FetchedAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) record(operation, table string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordDBQuery(operation, table, time.Since(start).Seconds(), err)
	}
}
