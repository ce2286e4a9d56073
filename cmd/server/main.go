package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/gabrielcipriano/bittensor-explorer/service/config"
	"github.com/gabrielcipriano/bittensor-explorer/service/db"
	"github.com/gabrielcipriano/bittensor-explorer/service/explorer"
	"github.com/gabrielcipriano/bittensor-explorer/service/metrics"
	"github.com/gabrielcipriano/bittensor-explorer/service/pricefeed"
	"github.com/gabrielcipriano/bittensor-explorer/service/server"
	"github.com/gabrielcipriano/bittensor-explorer/service/squid"
)

// liveStatsTTL bounds how often the header asks the price feed directly.
const liveStatsTTL = 30 * time.Second

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
		"networks", len(cfg.Networks),
		"default_network", cfg.DefaultNetwork,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	// GraphQL backends of every network
	registry := squid.NewRegistry(cfg.Networks)
	gql := squid.NewClient(registry, squid.HTTPRunnerFactory(cfg.HTTPTimeout), metricsCollector, logger)

	// Verified delegates registry, cached in Redis when configured
	var cache explorer.Cache = explorer.NewMemoryCache()
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid redis url", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("failed to ping redis", "error", err)
			os.Exit(1)
		}
		cache = explorer.NewRedisCache(redisClient, "explorer:")
		logger.Info("connected to redis")
	}
	verified := explorer.NewVerifiedDelegates(cfg.VerifiedDelegatesURL, cfg.VerifiedDelegatesTTL, httpClient, cache, metricsCollector, logger)

	svc := explorer.NewService(gql, registry, verified, logger)

	// Header stats: the live price feed, behind stored snapshots when a database is configured
	feed := pricefeed.NewClient(
		pricefeed.NewCoinGeckoSource(cfg.CoinGeckoURL, httpClient),
		cfg.CoinGeckoTokenID,
		cfg.TokenSymbol,
		metricsCollector,
		logger,
	)
	var stats server.StatsSource = server.NewLiveStats(feed, liveStatsTTL)

	opts := []server.Option{server.WithMetrics(metricsCollector, prometheus.DefaultGatherer)}

	if cfg.DatabaseURL != "" {
		dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		logger.Info("connected to database")

		store := db.NewStore(dbPool, metricsCollector)
		stats = server.NewStoredStats(store, cfg.TokenSymbol, stats)
		opts = append(opts, server.WithStatsHistory(store))
	} else {
		logger.Warn("DATABASE_URL not set, serving live token stats without history")
	}

	if cfg.NATSURL != "" {
		ssePublisher, err := server.NewSSEPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Error("failed to create SSE publisher", "error", err)
			os.Exit(1)
		}
		defer ssePublisher.Close()
		opts = append(opts, server.WithSSE(ssePublisher))
	}

	httpServer := server.New(cfg.ServerAddr, cfg, svc, stats, logger, opts...)
	if err := httpServer.WithTemplates(); err != nil {
		logger.Error("failed to load templates", "error", err)
		os.Exit(1)
	}

	logger.Info("server initialized, all dependencies ready",
		"database", cfg.DatabaseURL != "",
		"redis", cfg.RedisURL != "",
		"nats_url", cfg.NATSURL,
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
