package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(APIKeyEnv, "")
	t.Setenv("CRAWLER_RIOT_API_KEY", "")

	cfg, err := load("", "")
	require.NoError(t, err)

	require.Equal(t, 1500*time.Millisecond, cfg.Riot.MinInterval)
	require.Equal(t, 100, cfg.Riot.WindowRequests)
	require.Equal(t, 2*time.Minute, cfg.Riot.Window)
	require.Equal(t, 3, cfg.Riot.MaxConcurrent)
	require.Equal(t, 60, cfg.Riot.DefaultRetryAfterSeconds)
	require.Equal(t, 30*time.Second, cfg.Riot.Timeout())

	require.Equal(t, "tr1", cfg.Crawler.Region)
	require.Equal(t, []string{"tr1", "euw1"}, cfg.Crawler.Regions)
	require.Equal(t, 100, cfg.Crawler.BatchSize)
	require.Equal(t, 10, cfg.Crawler.MaxMatchesPerPlayer)
	require.Equal(t, 24*time.Hour, cfg.Crawler.Freshness())
	require.Equal(t, 10000, cfg.Crawler.QueueCapacity)
	require.Equal(t, 100*time.Millisecond, cfg.Crawler.MatchFetchDelay)
	require.Equal(t, 5*time.Second, cfg.Crawler.RotationCooldown)
	require.Equal(t, 420, cfg.Crawler.MatchQueue)
	require.Equal(t, "14.24.1", cfg.Crawler.FallbackVersion)
	require.True(t, cfg.Crawler.PersistOverflow)

	require.Equal(t, "data/matches.db", cfg.Storage.Path)
	require.Equal(t, ":8080", cfg.Server.Addr)

	require.ErrorIs(t, cfg.RequireAPIKey(), ErrMissingAPIKey)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Setenv(APIKeyEnv, "")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
riot:
  api_key: RGAPI-file
  min_interval: 250ms
  max_concurrent: 5
  routing:
    tr1: europe
    br1: americas
crawler:
  regions: [kr, na1]
  batch_size: 25
  freshness_hours: 6
  match_queue: 440
storage:
  path: /tmp/other.db
server:
  addr: 127.0.0.1:9090
  api_key: secret
logging:
  development: false
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := load(path, "")
	require.NoError(t, err)

	require.Equal(t, "RGAPI-file", cfg.Riot.APIKey)
	require.Equal(t, 250*time.Millisecond, cfg.Riot.MinInterval)
	require.Equal(t, 5, cfg.Riot.MaxConcurrent)
	require.Equal(t, map[string]string{"tr1": "europe", "br1": "americas"}, cfg.Riot.Routing)
	require.Equal(t, []string{"kr", "na1"}, cfg.Crawler.Regions)
	require.Equal(t, 25, cfg.Crawler.BatchSize)
	require.Equal(t, 6*time.Hour, cfg.Crawler.Freshness())
	require.Equal(t, 440, cfg.Crawler.MatchQueue)
	require.Equal(t, "/tmp/other.db", cfg.Storage.Path)
	require.Equal(t, "secret", cfg.Server.APIKey)
	require.False(t, cfg.Logging.Development)
	require.Equal(t, "warn", cfg.Logging.Level)
	require.NoError(t, cfg.RequireAPIKey())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(APIKeyEnv, "")
	t.Setenv("CRAWLER_RIOT_API_KEY", "RGAPI-env")
	t.Setenv("CRAWLER_CRAWLER_BATCH_SIZE", "7")

	cfg, err := load("", "")
	require.NoError(t, err)
	require.Equal(t, "RGAPI-env", cfg.Riot.APIKey)
	require.Equal(t, 7, cfg.Crawler.BatchSize)
}

func TestLoadAPIKeyFallback(t *testing.T) {
	t.Setenv("CRAWLER_RIOT_API_KEY", "")
	t.Setenv(APIKeyEnv, "RGAPI-plain")

	cfg, err := load("", "")
	require.NoError(t, err)
	require.Equal(t, "RGAPI-plain", cfg.Riot.APIKey)
}

func TestLoadDotEnv(t *testing.T) {
	t.Setenv("CRAWLER_RIOT_API_KEY", "")
	// t.Setenv restores the variable after the test; unset it so .env can supply it.
	t.Setenv(APIKeyEnv, "")
	require.NoError(t, os.Unsetenv(APIKeyEnv))

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("RIOT_API_KEY=RGAPI-dotenv\n"), 0o600))

	cfg, err := load("", envFile)
	require.NoError(t, err)
	require.Equal(t, "RGAPI-dotenv", cfg.Riot.APIKey)
}

func TestLoadMissingDotEnvIsIgnored(t *testing.T) {
	t.Setenv(APIKeyEnv, "")

	_, err := load("", filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv(APIKeyEnv, "")

	_, err := load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	require.ErrorContains(t, err, "read config")
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Riot:    RiotConfig{MaxConcurrent: 3, TimeoutSeconds: 30, WindowRequests: 100, Window: 2 * time.Minute},
		Crawler: CrawlerConfig{BatchSize: 100, MaxMatchesPerPlayer: 10, QueueCapacity: 10, MatchQueue: 420, Regions: []string{"euw1"}},
		Storage: StorageConfig{Path: "x.db"},
		Server:  ServerConfig{Addr: ":8080"},
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative interval", func(c *Config) { c.Riot.MinInterval = -time.Second }, "riot.min_interval"},
		{"window missing", func(c *Config) { c.Riot.Window = 0 }, "riot.window"},
		{"no concurrency", func(c *Config) { c.Riot.MaxConcurrent = 0 }, "riot.max_concurrent"},
		{"no timeout", func(c *Config) { c.Riot.TimeoutSeconds = 0 }, "riot.timeout_seconds"},
		{"no batch", func(c *Config) { c.Crawler.BatchSize = 0 }, "crawler.batch_size"},
		{"too many per player", func(c *Config) { c.Crawler.MaxMatchesPerPlayer = 101 }, "crawler.max_matches_per_player"},
		{"no capacity", func(c *Config) { c.Crawler.QueueCapacity = 0 }, "crawler.queue_capacity"},
		{"bad queue", func(c *Config) { c.Crawler.MatchQueue = 450 }, "crawler.match_queue"},
		{"no regions", func(c *Config) { c.Crawler.Regions = nil }, "crawler.regions"},
		{"no path", func(c *Config) { c.Storage.Path = "" }, "storage.path"},
		{"no addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			cfg.Crawler.Regions = append([]string(nil), base.Crawler.Regions...)
			tt.mutate(&cfg)
			require.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
