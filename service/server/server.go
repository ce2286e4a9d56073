package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gabrielcipriano/bittensor-explorer/service/config"
	"github.com/gabrielcipriano/bittensor-explorer/service/metrics"
)

// Server represents the HTTP server of the explorer.
type Server struct {
	addr         string
	cfg          *config.Config
	explorer     Explorer
	stats        StatsSource
	history      StatsHistory
	ssePublisher *SSEPublisher
	renderer     *TemplateRenderer
	metrics      *metrics.Metrics
	gatherer     prometheus.Gatherer
	logger       *slog.Logger
	now          func() time.Time
	server       *http.Server
}

// Option configures optional server dependencies.
type Option func(*Server)

// WithStatsHistory enables the stored token stats history endpoint.
func WithStatsHistory(h StatsHistory) Option {
	return func(s *Server) { s.history = h }
}

// WithSSE enables the token stats stream.
func WithSSE(p *SSEPublisher) Option {
	return func(s *Server) { s.ssePublisher = p }
}

// WithMetrics enables request metrics and the /metrics endpoint served from gatherer.
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// WithClock overrides the time source of relative times and chart exports.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a new HTTP server with the given dependencies.
// stats may be nil, in which case the header shows no prices.
func New(addr string, cfg *config.Config, explorer Explorer, stats StatsSource, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		addr:     addr,
		cfg:      cfg,
		explorer: explorer,
		stats:    stats,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithTemplates adds template rendering support to the server using embedded files.
func (s *Server) WithTemplates() error {
	renderer, err := NewTemplateRenderer(s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize templates: %w", err)
	}
	s.renderer = renderer
	s.logger.Info("HTML templates loaded from embedded files")
	return nil
}

// Handler builds the routing tree.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.Handler) {
		if s.metrics != nil {
			h = metrics.HTTPMetricsMiddleware(s.metrics, pattern)(h)
		}
		mux.Handle(pattern, h)
	}

	// JSON API
	handle("GET /api/v1/networks", handleListNetworks(s.cfg))
	handle("GET /api/v1/{network}/transfers", handleListTransfers(s.explorer, s.logger))
	handle("GET /api/v1/{network}/calls", handleListCalls(s.explorer, s.logger))
	handle("GET /api/v1/{network}/delegates", handleListDelegates(s.explorer, s.cfg, s.logger))
	handle("GET /api/v1/{network}/accounts/{address}", handleGetAccount(s.explorer, s.logger))
	handle("GET /api/v1/{network}/accounts/{address}/delegate-history", handleGetDelegateHistory(s.explorer, s.now, s.logger))
	handle("GET /api/v1/{network}/validators/{address}", handleGetValidator(s.explorer, s.logger))
	handle("GET /api/v1/{network}/validators/{address}/stake-history", handleGetValidatorStakeHistory(s.explorer, s.logger))
	handle("GET /api/v1/stats", handleGetStats(s.stats, s.logger))
	handle("GET /api/v1/stats/history", handleGetStatsHistory(s.history, s.cfg, s.logger))

	// CSV exports
	handle("GET /{network}/account/{address}/delegates.csv", handleDelegatesCSV(s.explorer, s.cfg, false, s.metrics, s.logger))
	handle("GET /{network}/validators/{address}/delegates.csv", handleDelegatesCSV(s.explorer, s.cfg, true, s.metrics, s.logger))
	handle("GET /{network}/account/{address}/delegate-history.csv", handleDelegateHistoryCSV(s.explorer, s.now, s.metrics, s.logger))

	if s.ssePublisher != nil {
		mux.Handle("GET /api/v1/stream/stats", handleStreamStats(s.ssePublisher, s.cfg.TokenSymbol, s.metrics, s.logger))
		s.logger.Info("SSE streaming endpoint enabled")
	} else {
		s.logger.Warn("SSE publisher not configured, streaming endpoint disabled")
	}

	if s.renderer != nil {
		p := &pages{
			renderer: s.renderer,
			explorer: s.explorer,
			stats:    s.stats,
			cfg:      s.cfg,
			now:      s.now,
			logger:   s.logger,
		}
		handle("GET /{$}", http.HandlerFunc(p.index))
		handle("GET /{network}/search", http.HandlerFunc(p.search))
		handle("GET /{network}/account/{address}", http.HandlerFunc(p.account))
		handle("GET /{network}/account/{address}/{tab}", http.HandlerFunc(p.account))
		handle("GET /{network}/validators/{address}", http.HandlerFunc(p.validator))
		handle("GET /{network}/calls", http.HandlerFunc(p.calls))
		handle("GET /{network}/transfers", http.HandlerFunc(p.transfers))
		s.logger.Info("HTML page endpoints enabled")
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // the SSE handler clears its own deadline
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	// Close SSE publisher first (disconnects all clients)
	if s.ssePublisher != nil {
		s.ssePublisher.Close()
	}
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
