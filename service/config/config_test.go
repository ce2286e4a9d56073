package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidConfig(t *testing.T) {
	os.Setenv("BITTENSOR_ARCHIVE_URL", "https://archive.example.com/graphql")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	require.Len(t, cfg.Networks, 1)
	n := cfg.Networks[0]
	assert.Equal(t, "bittensor", n.Name)
	assert.Equal(t, "Bittensor", n.DisplayName)
	assert.Equal(t, "TAO", n.Currency)
	assert.Equal(t, uint16(42), n.SS58Prefix)
	assert.Equal(t, "https://archive.example.com/graphql", n.ArchiveURL)
	assert.Empty(t, n.MainSquidURL)

	assert.Equal(t, "bittensor", cfg.DefaultNetwork)
	assert.Equal(t, ":8080", cfg.ServerAddr) // Default
	assert.Equal(t, "info", cfg.LogLevel)    // Default
	assert.Equal(t, "100000000", cfg.MinDelegationAmount)
	assert.Equal(t, 10*time.Minute, cfg.VerifiedDelegatesTTL)
	assert.Equal(t, time.Minute, cfg.StatsRefreshInterval)
	assert.Equal(t, 30*24*time.Hour, cfg.StatsRetention)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoad_MissingArchiveURL(t *testing.T) {
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "BITTENSOR_ARCHIVE_URL is required")
}

func TestLoad_MultipleNetworks(t *testing.T) {
	os.Setenv("NETWORKS", "bittensor, bittensor-test")
	os.Setenv("BITTENSOR_ARCHIVE_URL", "https://archive.example.com/graphql")
	os.Setenv("BITTENSOR_MAIN_SQUID_URL", "https://squid.example.com/graphql")
	os.Setenv("BITTENSOR_TEST_ARCHIVE_URL", "https://test-archive.example.com/graphql")
	os.Setenv("BITTENSOR_TEST_SS58_PREFIX", "13116")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Networks, 2)

	primary, ok := cfg.Network("bittensor")
	require.True(t, ok)
	assert.Equal(t, "https://squid.example.com/graphql", primary.MainSquidURL)

	test, ok := cfg.Network("bittensor-test")
	require.True(t, ok)
	assert.Equal(t, uint16(13116), test.SS58Prefix)
	assert.Empty(t, test.MainSquidURL)

	_, ok = cfg.Network("kusama")
	assert.False(t, ok)
}

func TestLoad_InvalidSS58Prefix(t *testing.T) {
	os.Setenv("BITTENSOR_ARCHIVE_URL", "https://archive.example.com/graphql")
	os.Setenv("BITTENSOR_SS58_PREFIX", "abc")
	defer cleanupEnv()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid integer")
}

func TestLoad_InvalidMinDelegationAmount(t *testing.T) {
	os.Setenv("BITTENSOR_ARCHIVE_URL", "https://archive.example.com/graphql")
	os.Setenv("MIN_DELEGATION_AMOUNT", "0.1")
	defer cleanupEnv()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MIN_DELEGATION_AMOUNT")
}

func TestLoad_InvalidRefreshInterval(t *testing.T) {
	os.Setenv("BITTENSOR_ARCHIVE_URL", "https://archive.example.com/graphql")
	os.Setenv("STATS_REFRESH_INTERVAL", "invalid")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoad_MinIntervalGreaterThanRefresh(t *testing.T) {
	os.Setenv("BITTENSOR_ARCHIVE_URL", "https://archive.example.com/graphql")
	os.Setenv("STATS_REFRESH_INTERVAL", "10s")
	os.Setenv("MIN_REFRESH_INTERVAL", "30s")
	defer cleanupEnv()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be greater than")
}

func TestLoad_RetentionDisabled(t *testing.T) {
	os.Setenv("BITTENSOR_ARCHIVE_URL", "https://archive.example.com/graphql")
	os.Setenv("STATS_RETENTION", "0s")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.Zero(t, cfg.StatsRetention)
}

func TestLoad_CustomValues(t *testing.T) {
	os.Setenv("BITTENSOR_ARCHIVE_URL", "https://archive.example.com/graphql")
	os.Setenv("SERVER_ADDR", ":9090")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("NATS_URL", "nats://nats.example.com:4222")
	os.Setenv("TEMPORAL_HOST", "temporal.example.com:7233")
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("REDIS_URL", "redis://localhost:6379/0")
	os.Setenv("STATS_REFRESH_INTERVAL", "5m")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "nats://nats.example.com:4222", cfg.NATSURL)
	assert.Equal(t, "temporal.example.com:7233", cfg.TemporalHost)
	assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 5*time.Minute, cfg.StatsRefreshInterval)
	assert.NoError(t, cfg.RequireDatabase())
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_NoNetworks(t *testing.T) {
	cfg := validConfig()
	cfg.Networks = nil
	cfg.DefaultNetwork = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one network is required")
}

func TestValidate_DuplicateNetwork(t *testing.T) {
	cfg := validConfig()
	cfg.Networks = append(cfg.Networks, cfg.Networks[0])

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configured twice")
}

func TestValidate_UnknownDefaultNetwork(t *testing.T) {
	cfg := validConfig()
	cfg.DefaultNetwork = "polkadot"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a configured network")
}

func TestValidate_TooShortInterval(t *testing.T) {
	cfg := validConfig()
	cfg.StatsRefreshInterval = 500 * time.Millisecond
	cfg.MinRefreshInterval = 100 * time.Millisecond

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be at least 1 second")
}

func TestRequireDatabase(t *testing.T) {
	cfg := validConfig()
	err := cfg.RequireDatabase()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
}

func TestMustLoad_Panics(t *testing.T) {
	// Don't set required env vars
	defer cleanupEnv()

	assert.Panics(t, func() {
		MustLoad()
	})
}

func TestMustLoad_Success(t *testing.T) {
	os.Setenv("BITTENSOR_ARCHIVE_URL", "https://archive.example.com/graphql")
	defer cleanupEnv()

	assert.NotPanics(t, func() {
		cfg := MustLoad()
		assert.NotNil(t, cfg)
	})
}

func validConfig() *Config {
	return &Config{
		Networks: []NetworkConfig{{
			Name:       "bittensor",
			Currency:   "TAO",
			SS58Prefix: 42,
			ArchiveURL: "https://archive.example.com/graphql",
		}},
		DefaultNetwork:       "bittensor",
		MinDelegationAmount:  "100000000",
		TemporalHost:         "localhost:7233",
		TemporalNamespace:    "default",
		TemporalTaskQueue:    "explorer-token-stats",
		StatsRefreshInterval: time.Minute,
		MinRefreshInterval:   10 * time.Second,
	}
}

// cleanupEnv clears all environment variables used in tests
func cleanupEnv() {
	for _, key := range []string{
		"NETWORKS",
		"BITTENSOR_ARCHIVE_URL",
		"BITTENSOR_MAIN_SQUID_URL",
		"BITTENSOR_SS58_PREFIX",
		"BITTENSOR_TEST_ARCHIVE_URL",
		"BITTENSOR_TEST_SS58_PREFIX",
		"MIN_DELEGATION_AMOUNT",
		"SERVER_ADDR",
		"LOG_LEVEL",
		"NATS_URL",
		"TEMPORAL_HOST",
		"DATABASE_URL",
		"REDIS_URL",
		"STATS_REFRESH_INTERVAL",
		"MIN_REFRESH_INTERVAL",
		"STATS_RETENTION",
	} {
		os.Unsetenv(key)
	}
}
