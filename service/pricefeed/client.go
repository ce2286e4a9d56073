package pricefeed

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/gabrielcipriano/bittensor-explorer/service/metrics"
)

// Client fetches token stats for one token.
type Client struct {
	source  Source
	tokenID string
	symbol  string
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewClient creates a price feed client for the CoinGecko tokenID, labelled symbol.
// If metrics is nil, no metrics will be recorded.
func NewClient(source Source, tokenID, symbol string, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		source:  source,
		tokenID: tokenID,
		symbol:  symbol,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Symbol is the ticker the stats are reported under.
func (c *Client) Symbol() string {
	return c.symbol
}

// FetchTokenStats returns the current market snapshot.
// The 24h change is rounded to two decimals the way the header shows it.
func (c *Client) FetchTokenStats(ctx context.Context) (*TokenStats, error) {
	start := time.Now()
	p, err := c.source.SimplePrice(ctx, c.tokenID)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordPriceFeedCall(c.symbol, status, duration)
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "price feed request failed", "token", c.tokenID, "error", err)
		return nil, fmt.Errorf("fetch %s stats: %w", c.symbol, err)
	}

	stats := &TokenStats{
		Symbol:         c.symbol,
		Price:          p.USD,
		PriceChange24h: math.Round(p.USD24hChange*100) / 100,
		Volume24h:      p.USD24hVol,
		MarketCap:      p.USDMarketCap,
		FetchedAt:      c.now().UTC(),
	}
	c.logger.DebugContext(ctx, "fetched token stats",
		"symbol", stats.Symbol,
		"price", stats.Price,
		"change_24h", stats.PriceChange24h,
	)
	return stats, nil
}
