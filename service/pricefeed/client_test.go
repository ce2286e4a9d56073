package pricefeed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielcipriano/bittensor-explorer/service/metrics"
)

// mockSource implements Source for testing.
type mockSource struct {
	price *SimplePrice
	err   error
}

func (m *mockSource) SimplePrice(ctx context.Context, tokenID string) (*SimplePrice, error) {
	return m.price, m.err
}

func newTestClient(src Source) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewClient(src, "bittensor", "TAO", metrics.NewMetrics(prometheus.NewRegistry()), logger)
	c.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestFetchTokenStats(t *testing.T) {
	c := newTestClient(&mockSource{price: &SimplePrice{
		USD:          412.5,
		USD24hChange: -3.14159,
		USD24hVol:    52_300_000,
		USDMarketCap: 2_800_000_000,
	}})

	stats, err := c.FetchTokenStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "TAO", stats.Symbol)
	assert.Equal(t, 412.5, stats.Price)
	assert.Equal(t, -3.14, stats.PriceChange24h)
	assert.Equal(t, 52_300_000.0, stats.Volume24h)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), stats.FetchedAt)
}

func TestFetchTokenStats_Error(t *testing.T) {
	c := newTestClient(&mockSource{err: errors.New("rate limited")})

	_, err := c.FetchTokenStats(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch TAO stats")
}

func TestCoinGeckoSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/simple/price", r.URL.Path)
		assert.Equal(t, "bittensor", r.URL.Query().Get("ids"))
		assert.Equal(t, "true", r.URL.Query().Get("include_market_cap"))
		_, _ = w.Write([]byte(`{"bittensor": {"usd": 400.1, "usd_24h_change": 1.5, "usd_24h_vol": 10, "usd_market_cap": 20}}`))
	}))
	defer srv.Close()

	src := NewCoinGeckoSource(srv.URL+"/api/v3/", srv.Client())
	p, err := src.SimplePrice(context.Background(), "bittensor")
	require.NoError(t, err)
	assert.Equal(t, &SimplePrice{USD: 400.1, USD24hChange: 1.5, USD24hVol: 10, USDMarketCap: 20}, p)

	_, err = src.SimplePrice(context.Background(), "other")
	assert.ErrorContains(t, err, `token "other" not in response`)
}

func TestCoinGeckoSource_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewCoinGeckoSource(srv.URL, srv.Client()).SimplePrice(context.Background(), "bittensor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}
