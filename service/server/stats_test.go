package server

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielcipriano/bittensor-explorer/service/db"
	"github.com/gabrielcipriano/bittensor-explorer/service/metrics"
	"github.com/gabrielcipriano/bittensor-explorer/service/pricefeed"
)

type countingSource struct {
	calls int
}

func (c *countingSource) SimplePrice(ctx context.Context, tokenID string) (*pricefeed.SimplePrice, error) {
	c.calls++
	return &pricefeed.SimplePrice{USD: 400 + float64(c.calls)}, nil
}

func TestLiveStatsCaches(t *testing.T) {
	src := &countingSource{}
	feed := pricefeed.NewClient(src, "bittensor", "TAO", metrics.NewMetrics(prometheus.NewRegistry()), testLogger())
	live := NewLiveStats(feed, time.Hour)

	first, err := live.LatestTokenStats(context.Background())
	require.NoError(t, err)
	second, err := live.LatestTokenStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
	assert.Equal(t, first, second)
	assert.Equal(t, 401.0, second.Price)
}

type fakeStatsStore struct {
	latest *db.TokenStats
	err    error
}

func (f fakeStatsStore) LatestTokenStats(ctx context.Context, symbol string) (*db.TokenStats, error) {
	return f.latest, f.err
}

func (f fakeStatsStore) ListTokenStats(ctx context.Context, symbol string, since time.Time, limit int32) ([]*db.TokenStats, error) {
	return nil, nil
}

func TestStoredStats(t *testing.T) {
	live := fakeStats{stats: &pricefeed.TokenStats{Symbol: "TAO", Price: 1}}

	t.Run("reads the newest snapshot", func(t *testing.T) {
		s := NewStoredStats(fakeStatsStore{latest: &db.TokenStats{Symbol: "TAO", Price: 2, MarketCap: 10}}, "TAO", live)
		stats, err := s.LatestTokenStats(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2.0, stats.Price)
		assert.Equal(t, 10.0, stats.MarketCap)
	})

	t.Run("falls back to live when nothing is stored", func(t *testing.T) {
		s := NewStoredStats(fakeStatsStore{err: fmt.Errorf("latest TAO: %w", db.ErrNotFound)}, "TAO", live)
		stats, err := s.LatestTokenStats(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1.0, stats.Price)
	})

	t.Run("without live source the miss is an error", func(t *testing.T) {
		s := NewStoredStats(fakeStatsStore{err: db.ErrNotFound}, "TAO", nil)
		_, err := s.LatestTokenStats(context.Background())
		assert.ErrorIs(t, err, db.ErrNotFound)
	})
}
