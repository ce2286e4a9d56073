package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gabrielcipriano/bittensor-explorer/service/db"
	"github.com/gabrielcipriano/bittensor-explorer/service/pricefeed"
)

// StatsSource returns the latest token stats shown in the header.
type StatsSource interface {
	LatestTokenStats(ctx context.Context) (*pricefeed.TokenStats, error)
}

// StatsHistory lists stored snapshots.
type StatsHistory interface {
	ListTokenStats(ctx context.Context, symbol string, since time.Time, limit int32) ([]*db.TokenStats, error)
}

// StatsStore is the part of db.Store the stats sources read.
type StatsStore interface {
	StatsHistory
	LatestTokenStats(ctx context.Context, symbol string) (*db.TokenStats, error)
}

// LiveStats asks the price feed directly, reusing an answer for ttl.
type LiveStats struct {
	feed *pricefeed.Client
	ttl  time.Duration

	mu      sync.Mutex
	last    *pricefeed.TokenStats
	fetched time.Time
}

// NewLiveStats creates a LiveStats source.
func NewLiveStats(feed *pricefeed.Client, ttl time.Duration) *LiveStats {
	return &LiveStats{feed: feed, ttl: ttl}
}

// LatestTokenStats returns the cached snapshot while it is fresh.
func (l *LiveStats) LatestTokenStats(ctx context.Context) (*pricefeed.TokenStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.last != nil && time.Since(l.fetched) < l.ttl {
		return l.last, nil
	}
	stats, err := l.feed.FetchTokenStats(ctx)
	if err != nil {
		return nil, err
	}
	l.last, l.fetched = stats, time.Now()
	return stats, nil
}

// StoredStats reads the snapshots the refresh workflow writes. When none is
// stored yet it falls back to live, if set.
type StoredStats struct {
	store  StatsStore
	symbol string
	live   StatsSource
}

// NewStoredStats creates a StoredStats source. live may be nil.
func NewStoredStats(store StatsStore, symbol string, live StatsSource) *StoredStats {
	return &StoredStats{store: store, symbol: symbol, live: live}
}

// LatestTokenStats returns the newest stored snapshot.
func (s *StoredStats) LatestTokenStats(ctx context.Context) (*pricefeed.TokenStats, error) {
	row, err := s.store.LatestTokenStats(ctx, s.symbol)
	if errors.Is(err, db.ErrNotFound) && s.live != nil {
		return s.live.LatestTokenStats(ctx)
	}
	if err != nil {
		return nil, err
	}
	return tokenStatsFromDB(row), nil
}

func tokenStatsFromDB(row *db.TokenStats) *pricefeed.TokenStats {
	return &pricefeed.TokenStats{
		Symbol:         row.Symbol,
		Price:          row.Price,
		PriceChange24h: row.PriceChange24h,
		Volume24h:      row.Volume24h,
		MarketCap:      row.MarketCap,
		FetchedAt:      row.FetchedAt,
	}
}
