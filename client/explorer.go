// Package client is the HTTP client of the explorer JSON API.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gabrielcipriano/bittensor-explorer/service/db"
	"github.com/gabrielcipriano/bittensor-explorer/service/explorer"
	natspkg "github.com/gabrielcipriano/bittensor-explorer/service/nats"
	"github.com/gabrielcipriano/bittensor-explorer/service/pricefeed"
	"github.com/gabrielcipriano/bittensor-explorer/service/views"
)

// Network is a chain the server explores.
type Network struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Currency    string `json:"currency"`
	SS58Prefix  uint16 `json:"ss58_prefix"`
	Default     bool   `json:"default"`
}

// Page selects a window of a list.
type Page struct {
	Offset int
	Limit  int
}

func (p Page) apply(q url.Values) {
	if p.Offset > 0 {
		q.Set("offset", strconv.Itoa(p.Offset))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
}

// DelegatesQuery mirrors the delegates table controls.
// Account and Validator are mutually exclusive.
type DelegatesQuery struct {
	Account   string
	Validator string
	Sort      string // amount or time
	Dir       string // ASC or DESC
	MinAmount string // raw amount; must be one of the server's filter values
	Search    string
	Page
}

func (d DelegatesQuery) values() url.Values {
	q := url.Values{}
	if d.Account != "" {
		q.Set("account", d.Account)
	}
	if d.Validator != "" {
		q.Set("validator", d.Validator)
	}
	if d.Sort != "" {
		q.Set("sort", d.Sort)
		if d.Dir != "" {
			q.Set("dir", d.Dir)
		}
	}
	if d.MinAmount != "" {
		q.Set("filter.amount", d.MinAmount)
	}
	if d.Search != "" {
		q.Set("search", d.Search)
	}
	d.Page.apply(q)
	return q
}

// Client is the HTTP client for the explorer server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new explorer client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Networks lists the configured networks.
func (c *Client) Networks(ctx context.Context) ([]Network, error) {
	var resp struct {
		Networks []Network `json:"networks"`
	}
	if err := c.getJSON(ctx, "/api/v1/networks", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Networks, nil
}

// Transfers lists transfers of a network, of one account when account is set.
func (c *Client) Transfers(ctx context.Context, network, account string, page Page) (*explorer.ItemsResponse[explorer.Transfer], error) {
	q := url.Values{}
	if account != "" {
		q.Set("account", account)
	}
	page.apply(q)

	var resp explorer.ItemsResponse[explorer.Transfer]
	if err := c.getJSON(ctx, networkPath(network, "transfers"), q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Calls lists calls of a network, by Pallet.call name when name is set.
func (c *Client) Calls(ctx context.Context, network, name string, page Page) (*explorer.ItemsResponse[explorer.Call], error) {
	q := url.Values{}
	if name != "" {
		q.Set("name", name)
	}
	page.apply(q)

	var resp explorer.ItemsResponse[explorer.Call]
	if err := c.getJSON(ctx, networkPath(network, "calls"), q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Delegates lists delegation events.
func (c *Client) Delegates(ctx context.Context, network string, query DelegatesQuery) (*explorer.ItemsResponse[explorer.Delegate], error) {
	var resp explorer.ItemsResponse[explorer.Delegate]
	if err := c.getJSON(ctx, networkPath(network, "delegates"), query.values(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Account resolves an address into its account.
func (c *Client) Account(ctx context.Context, network, address string) (*explorer.Account, error) {
	var resp explorer.Account
	if err := c.getJSON(ctx, networkPath(network, "accounts", address), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DelegateHistory returns the stake-per-delegate chart of an account.
func (c *Client) DelegateHistory(ctx context.Context, network, address string) (*views.DelegateHistoryChart, error) {
	var resp views.DelegateHistoryChart
	if err := c.getJSON(ctx, networkPath(network, "accounts", address, "delegate-history"), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Validator returns the latest snapshot of a validator.
func (c *Client) Validator(ctx context.Context, network, address string) (*explorer.Validator, error) {
	var resp explorer.Validator
	if err := c.getJSON(ctx, networkPath(network, "validators", address), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ValidatorStakeHistory returns the page of stake history after cursor.
func (c *Client) ValidatorStakeHistory(ctx context.Context, network, address, after string) (*explorer.ValidatorStakeHistoryPage, error) {
	q := url.Values{}
	if after != "" {
		q.Set("after", after)
	}
	var resp explorer.ValidatorStakeHistoryPage
	if err := c.getJSON(ctx, networkPath(network, "validators", address, "stake-history"), q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stats returns the latest token stats.
func (c *Client) Stats(ctx context.Context) (*pricefeed.TokenStats, error) {
	var resp pricefeed.TokenStats
	if err := c.getJSON(ctx, "/api/v1/stats", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StatsHistory lists stored token stats of the last window, oldest first.
func (c *Client) StatsHistory(ctx context.Context, window time.Duration, limit int) ([]*db.TokenStats, error) {
	q := url.Values{}
	if window > 0 {
		q.Set("since", window.String())
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp struct {
		Stats []*db.TokenStats `json:"stats"`
	}
	if err := c.getJSON(ctx, "/api/v1/stats/history", q, &resp); err != nil {
		return nil, err
	}
	return resp.Stats, nil
}

// DelegatesCSV downloads the delegates export of an account, or of a validator
// when fromValidator is set, into w.
func (c *Client) DelegatesCSV(ctx context.Context, network, address string, fromValidator bool, query DelegatesQuery, w io.Writer) error {
	kind := "account"
	if fromValidator {
		kind = "validators"
	}
	query.Account, query.Validator = "", ""
	return c.download(ctx, "/"+url.PathEscape(network)+"/"+kind+"/"+url.PathEscape(address)+"/delegates.csv", query.values(), w)
}

// DelegateHistoryCSV downloads the delegate history export of an account into w.
func (c *Client) DelegateHistoryCSV(ctx context.Context, network, address string, w io.Writer) error {
	return c.download(ctx, "/"+url.PathEscape(network)+"/account/"+url.PathEscape(address)+"/delegate-history.csv", nil, w)
}

// Health checks the server.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	return nil
}

// StreamStats calls fn with each token stats event the server streams until
// ctx is done, the stream ends, or fn returns an error.
func (c *Client) StreamStats(ctx context.Context, symbol string, fn func(*natspkg.TokenStatsEvent) error) error {
	u := c.baseURL + "/api/v1/stream/stats"
	if symbol != "" {
		u += "?symbol=" + url.QueryEscape(symbol)
	}
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream outlives the client timeout.
	streamClient := *c.httpClient
	streamClient.Timeout = 0
	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	var event string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data := strings.TrimPrefix(line, "data: ")
			switch event {
			case "stats":
				var e natspkg.TokenStatsEvent
				if err := json.Unmarshal([]byte(data), &e); err != nil {
					c.logger.Warn("failed to decode stats event", "error", err)
					continue
				}
				if err := fn(&e); err != nil {
					return err
				}
			case "error":
				return fmt.Errorf("stream error: %s", data)
			default:
				c.logger.Debug("sse event", "event", event, "data", data)
			}
		case line == "":
			event = ""
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return ctx.Err()
}

func networkPath(network string, parts ...string) string {
	var b strings.Builder
	b.WriteString("/api/v1/")
	b.WriteString(url.PathEscape(network))
	for _, p := range parts {
		b.WriteString("/")
		b.WriteString(url.PathEscape(p))
	}
	return b.String()
}

func (c *Client) get(ctx context.Context, path string, q url.Values) (*http.Response, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.parseErrorResponse(resp)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, v interface{}) error {
	resp, err := c.get(ctx, path, q)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	c.logger.Debug("api request", "path", path)
	return nil
}

func (c *Client) download(ctx context.Context, path string, q url.Values, w io.Writer) error {
	resp, err := c.get(ctx, path, q)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to read export: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed: %s", errResp.Error)
}
