package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gabrielcipriano/bittensor-explorer/service/metrics"
)

// VerifiedDelegate is a delegate that published its identity in the public registry.
type VerifiedDelegate struct {
	Name        string `json:"name"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
	Signature   string `json:"signature,omitempty"`
}

const verifiedDelegatesKey = "verified-delegates"

// VerifiedDelegates loads the delegate registry over HTTP and caches it.
type VerifiedDelegates struct {
	url        string
	ttl        time.Duration
	httpClient *http.Client
	cache      Cache
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewVerifiedDelegates creates a registry loader. If metrics is nil, no metrics are recorded.
func NewVerifiedDelegates(url string, ttl time.Duration, httpClient *http.Client, cache Cache, m *metrics.Metrics, logger *slog.Logger) *VerifiedDelegates {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &VerifiedDelegates{
		url:        url,
		ttl:        ttl,
		httpClient: httpClient,
		cache:      cache,
		metrics:    m,
		logger:     logger,
	}
}

// All returns the registry keyed by delegate address.
func (v *VerifiedDelegates) All(ctx context.Context) (map[string]VerifiedDelegate, error) {
	raw, ok, err := v.cache.Get(ctx, verifiedDelegatesKey)
	if err != nil {
		// A broken cache should not take the pages down with it.
		v.logger.WarnContext(ctx, "verified delegates cache read failed", "error", err)
		v.record("error")
	}
	if ok {
		var out map[string]VerifiedDelegate
		if err := json.Unmarshal(raw, &out); err == nil {
			v.record("hit")
			return out, nil
		}
	}
	v.record("miss")

	raw, err = v.fetch(ctx)
	if err != nil {
		return nil, err
	}
	var out map[string]VerifiedDelegate
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode verified delegates: %w", err)
	}

	if err := v.cache.Set(ctx, verifiedDelegatesKey, raw, v.ttl); err != nil {
		v.logger.WarnContext(ctx, "verified delegates cache write failed", "error", err)
	}
	v.logger.DebugContext(ctx, "loaded verified delegates", "count", len(out))
	return out, nil
}

func (v *VerifiedDelegates) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build verified delegates request: %w", err)
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch verified delegates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch verified delegates: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read verified delegates: %w", err)
	}
	return body, nil
}

func (v *VerifiedDelegates) record(result string) {
	if v.metrics != nil {
		v.metrics.RecordVerifiedDelegatesLookup(result)
	}
}

// DelegateName returns the verified name of a delegate address, if any.
func DelegateName(verified map[string]VerifiedDelegate, address string) (string, bool) {
	d, ok := verified[address]
	if !ok || d.Name == "" {
		return "", false
	}
	return d.Name, true
}
