package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Source is the market data API the client needs.
// This allows us to mock the HTTP layer in tests without hitting CoinGecko.
type Source interface {
	SimplePrice(ctx context.Context, tokenID string) (*SimplePrice, error)
}

// coinGeckoSource calls the public CoinGecko REST API.
type coinGeckoSource struct {
	baseURL    string
	httpClient *http.Client
}

// NewCoinGeckoSource creates a Source for baseURL, e.g. https://api.coingecko.com/api/v3.
// For the pro API include the key in the URL query.
func NewCoinGeckoSource(baseURL string, httpClient *http.Client) Source {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &coinGeckoSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (s *coinGeckoSource) SimplePrice(ctx context.Context, tokenID string) (*SimplePrice, error) {
	q := url.Values{}
	q.Set("ids", tokenID)
	q.Set("vs_currencies", "usd")
	q.Set("include_24hr_change", "true")
	q.Set("include_24hr_vol", "true")
	q.Set("include_market_cap", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/simple/price?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request simple price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("simple price: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out map[string]SimplePrice
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode simple price: %w", err)
	}
	p, ok := out[tokenID]
	if !ok {
		return nil, fmt.Errorf("simple price: token %q not in response", tokenID)
	}
	return &p, nil
}
