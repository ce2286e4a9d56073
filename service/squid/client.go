// Package squid issues GraphQL queries against the per-network indexing backends.
package squid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gabrielcipriano/bittensor-explorer/service/metrics"
)

var (
	ErrUnknownNetwork      = errors.New("unknown network")
	ErrBackendNotSupported = errors.New("backend not supported by network")
)

// Query is a GraphQL document plus its variables.
// Name labels the query in logs and metrics.
type Query struct {
	Name string
	Text string
	Vars map[string]any
}

// Runner executes a query and decodes the "data" member into out.
// This allows us to fake the transport in tests.
type Runner interface {
	Run(ctx context.Context, q Query, out any) error
}

// RunnerFactory creates the Runner for one backend endpoint.
type RunnerFactory func(endpoint string) Runner

// Client routes queries to the right backend of a network.
type Client struct {
	registry *Registry
	runners  map[string]map[Backend]Runner
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewClient creates runners for every configured endpoint.
// If metrics is nil, no metrics will be recorded.
func NewClient(registry *Registry, factory RunnerFactory, m *metrics.Metrics, logger *slog.Logger) *Client {
	c := &Client{
		registry: registry,
		runners:  make(map[string]map[Backend]Runner),
		logger:   logger,
		metrics:  m,
	}
	for _, name := range registry.Names() {
		n, _ := registry.Get(name)
		c.runners[name] = make(map[Backend]Runner, len(n.Endpoints))
		for backend, endpoint := range n.Endpoints {
			c.runners[name][backend] = factory(endpoint)
		}
	}
	return c
}

// HTTPRunnerFactory returns a factory building machinebox runners sharing one HTTP client.
func HTTPRunnerFactory(timeout time.Duration) RunnerFactory {
	httpClient := &http.Client{Timeout: timeout}
	return func(endpoint string) Runner {
		return NewRunner(endpoint, httpClient)
	}
}

// Registry exposes the network registry the client was built from.
func (c *Client) Registry() *Registry {
	return c.registry
}

// HasSupport reports whether the network has the given backend configured.
func (c *Client) HasSupport(network string, backend Backend) bool {
	return c.registry.HasSupport(network, backend)
}

// FetchArchive runs q against the archive backend of network.
func (c *Client) FetchArchive(ctx context.Context, network string, q Query, out any) error {
	return c.Fetch(ctx, network, Archive, q, out)
}

// FetchMainSquid runs q against the main-squid backend of network.
func (c *Client) FetchMainSquid(ctx context.Context, network string, q Query, out any) error {
	return c.Fetch(ctx, network, MainSquid, q, out)
}

// FetchIndexer runs q against the delegation indexer of network.
func (c *Client) FetchIndexer(ctx context.Context, network string, q Query, out any) error {
	return c.Fetch(ctx, network, Indexer, q, out)
}

// Fetch runs q against the given backend and decodes the response data into out.
func (c *Client) Fetch(ctx context.Context, network string, backend Backend, q Query, out any) error {
	if _, err := c.registry.Get(network); err != nil {
		return err
	}
	runner, ok := c.runners[network][backend]
	if !ok {
		return fmt.Errorf("%w: %s on %s", ErrBackendNotSupported, backend, network)
	}

	c.logger.DebugContext(ctx, "running graphql query",
		"network", network,
		"backend", string(backend),
		"query", q.Name,
	)

	start := time.Now()
	err := runner.Run(ctx, q, out)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
		c.logger.ErrorContext(ctx, "graphql query failed",
			"network", network,
			"backend", string(backend),
			"query", q.Name,
			"error", err,
		)
	}
	if c.metrics != nil {
		c.metrics.RecordGraphQLCall(network, string(backend), q.Name, status, duration)
	}

	if err != nil {
		return fmt.Errorf("%s query %s: %w", backend, q.Name, err)
	}
	return nil
}
