package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Networks served by the explorer. The first entry is the default network.
	Networks       []NetworkConfig
	DefaultNetwork string

	// Delegation display configuration
	MinDelegationAmount string // raw amount, smallest unit

	// Verified delegate registry
	VerifiedDelegatesURL string
	VerifiedDelegatesTTL time.Duration
	RedisURL             string // optional; in-process cache when empty

	// Outbound HTTP
	HTTPTimeout time.Duration

	// Database configuration (token stats history); optional for the server
	DatabaseURL string

	// NATS configuration
	NATSURL string

	// Token price feed
	CoinGeckoURL         string
	CoinGeckoTokenID     string
	TokenSymbol          string
	StatsRefreshInterval time.Duration
	MinRefreshInterval   time.Duration
	StatsRetention       time.Duration // zero keeps every snapshot

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string
}

// NetworkConfig describes one chain and the indexing backends that serve it.
// An empty endpoint means the network lacks that backend.
type NetworkConfig struct {
	Name         string
	DisplayName  string
	Currency     string
	SS58Prefix   uint16
	ArchiveURL   string
	MainSquidURL string
	IndexerURL   string
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Networks
	names := splitList(getEnvOrDefault("NETWORKS", "bittensor"))
	if len(names) == 0 {
		errs = append(errs, fmt.Errorf("NETWORKS must list at least one network"))
	}
	for _, name := range names {
		n, nerrs := loadNetwork(name)
		errs = append(errs, nerrs...)
		cfg.Networks = append(cfg.Networks, n)
	}
	if len(cfg.Networks) > 0 {
		cfg.DefaultNetwork = cfg.Networks[0].Name
	}

	cfg.MinDelegationAmount = getEnvOrDefault("MIN_DELEGATION_AMOUNT", "100000000")
	if _, ok := parseRawAmount(cfg.MinDelegationAmount); !ok {
		errs = append(errs, fmt.Errorf("MIN_DELEGATION_AMOUNT: invalid raw amount %q", cfg.MinDelegationAmount))
	}

	// Verified delegates
	cfg.VerifiedDelegatesURL = getEnvOrDefault("VERIFIED_DELEGATES_URL",
		"https://raw.githubusercontent.com/opentensor/bittensor-delegates/main/public/delegates.json")
	ttl, err := parseDuration("VERIFIED_DELEGATES_TTL", "10m")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.VerifiedDelegatesTTL = ttl
	}
	cfg.RedisURL = os.Getenv("REDIS_URL")

	httpTimeout, err := parseDuration("HTTP_TIMEOUT", "30s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.HTTPTimeout = httpTimeout
	}

	// Database configuration
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	// NATS configuration
	cfg.NATSURL = getEnvOrDefault("NATS_URL", "nats://localhost:4222")

	// Price feed
	cfg.CoinGeckoURL = getEnvOrDefault("COINGECKO_URL", "https://api.coingecko.com/api/v3")
	cfg.CoinGeckoTokenID = getEnvOrDefault("COINGECKO_TOKEN_ID", "bittensor")
	cfg.TokenSymbol = getEnvOrDefault("TOKEN_SYMBOL", "TAO")

	refresh, err := parseDuration("STATS_REFRESH_INTERVAL", "1m")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.StatsRefreshInterval = refresh
	}

	minRefresh, err := parseDuration("MIN_REFRESH_INTERVAL", "10s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MinRefreshInterval = minRefresh
	}

	retention, err := parseDuration("STATS_RETENTION", "720h")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.StatsRetention = retention
	}

	if cfg.MinRefreshInterval > cfg.StatsRefreshInterval {
		errs = append(errs, fmt.Errorf("MIN_REFRESH_INTERVAL (%v) cannot be greater than STATS_REFRESH_INTERVAL (%v)",
			cfg.MinRefreshInterval, cfg.StatsRefreshInterval))
	}

	// Temporal configuration
	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "explorer-token-stats")

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Networks) == 0 {
		errs = append(errs, fmt.Errorf("at least one network is required"))
	}

	seen := make(map[string]bool)
	for _, n := range c.Networks {
		if n.Name == "" {
			errs = append(errs, fmt.Errorf("network name is required"))
			continue
		}
		if seen[n.Name] {
			errs = append(errs, fmt.Errorf("network %q is configured twice", n.Name))
		}
		seen[n.Name] = true
		if n.ArchiveURL == "" {
			errs = append(errs, fmt.Errorf("network %q: ArchiveURL is required", n.Name))
		}
	}

	if c.DefaultNetwork != "" && !seen[c.DefaultNetwork] {
		errs = append(errs, fmt.Errorf("DefaultNetwork %q is not a configured network", c.DefaultNetwork))
	}

	if _, ok := parseRawAmount(c.MinDelegationAmount); !ok {
		errs = append(errs, fmt.Errorf("MinDelegationAmount must be a non-negative integer"))
	}

	if c.TemporalHost == "" {
		errs = append(errs, fmt.Errorf("TemporalHost is required"))
	}

	if c.TemporalNamespace == "" {
		errs = append(errs, fmt.Errorf("TemporalNamespace is required"))
	}

	if c.TemporalTaskQueue == "" {
		errs = append(errs, fmt.Errorf("TemporalTaskQueue is required"))
	}

	if c.MinRefreshInterval > c.StatsRefreshInterval {
		errs = append(errs, fmt.Errorf("MinRefreshInterval cannot be greater than StatsRefreshInterval"))
	}

	if c.StatsRefreshInterval < time.Second {
		errs = append(errs, fmt.Errorf("StatsRefreshInterval must be at least 1 second"))
	}

	if c.StatsRetention < 0 {
		errs = append(errs, fmt.Errorf("StatsRetention cannot be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// RequireDatabase reports an error when the token stats database is not configured.
// The worker and the db CLI commands cannot run without it.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// Network returns the configuration of the named network.
func (c *Config) Network(name string) (NetworkConfig, bool) {
	for _, n := range c.Networks {
		if n.Name == name {
			return n, true
		}
	}
	return NetworkConfig{}, false
}

// loadNetwork reads the per-network variables, prefixed by the upper-cased network name.
func loadNetwork(name string) (NetworkConfig, []error) {
	var errs []error
	prefix := envPrefix(name)

	n := NetworkConfig{
		Name:         name,
		DisplayName:  getEnvOrDefault(prefix+"DISPLAY_NAME", strings.ToUpper(name[:1])+name[1:]),
		Currency:     getEnvOrDefault(prefix+"CURRENCY", "TAO"),
		ArchiveURL:   os.Getenv(prefix + "ARCHIVE_URL"),
		MainSquidURL: os.Getenv(prefix + "MAIN_SQUID_URL"),
		IndexerURL:   os.Getenv(prefix + "INDEXER_URL"),
	}

	if n.ArchiveURL == "" {
		errs = append(errs, fmt.Errorf("%sARCHIVE_URL is required", prefix))
	}

	ss58, err := parseInt(prefix+"SS58_PREFIX", 42)
	if err != nil {
		errs = append(errs, err)
	} else if ss58 < 0 || ss58 > 16383 {
		errs = append(errs, fmt.Errorf("%sSS58_PREFIX: %d out of range", prefix, ss58))
	} else {
		n.SS58Prefix = uint16(ss58)
	}

	return n, errs
}

func envPrefix(network string) string {
	return strings.ToUpper(strings.ReplaceAll(network, "-", "_")) + "_"
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseRawAmount(value string) (uint64, bool) {
	v, err := strconv.ParseUint(value, 10, 64)
	return v, err == nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}
