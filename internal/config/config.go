// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingAPIKey is returned when a command that talks to Riot has no API key.
var ErrMissingAPIKey = errors.New("riot api key is required (riot.api_key or RIOT_API_KEY)")

// APIKeyEnv is the conventional environment variable read when riot.api_key is unset.
const APIKeyEnv = "RIOT_API_KEY"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Riot    RiotConfig    `mapstructure:"riot"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Storage StorageConfig `mapstructure:"storage"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// RiotConfig controls the remote API client and its rate limiting.
type RiotConfig struct {
	APIKey                   string            `mapstructure:"api_key"`
	PlatformBase             string            `mapstructure:"platform_base"`
	RoutingBase              string            `mapstructure:"routing_base"`
	VersionsURL              string            `mapstructure:"versions_url"`
	Routing                  map[string]string `mapstructure:"routing"`
	MinInterval              time.Duration     `mapstructure:"min_interval"`
	WindowRequests           int               `mapstructure:"window_requests"`
	Window                   time.Duration     `mapstructure:"window"`
	MaxConcurrent            int               `mapstructure:"max_concurrent"`
	DefaultRetryAfterSeconds int               `mapstructure:"default_retry_after_seconds"`
	TimeoutSeconds           int               `mapstructure:"timeout_seconds"`
}

// Timeout is the per-request HTTP client timeout.
func (r RiotConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// CrawlerConfig governs the crawl loop and continuous rotation.
type CrawlerConfig struct {
	Region              string        `mapstructure:"region"`
	Regions             []string      `mapstructure:"regions"`
	MaxMatches          int           `mapstructure:"max_matches"`
	MaxPlayers          int           `mapstructure:"max_players"`
	BatchSize           int           `mapstructure:"batch_size"`
	MaxMatchesPerPlayer int           `mapstructure:"max_matches_per_player"`
	FreshnessHours      int           `mapstructure:"freshness_hours"`
	QueueCapacity       int           `mapstructure:"queue_capacity"`
	MatchFetchDelay     time.Duration `mapstructure:"match_fetch_delay"`
	ProgressEvery       int           `mapstructure:"progress_every"`
	SeedCap             int           `mapstructure:"seed_cap"`
	SeedTierCap         int           `mapstructure:"seed_tier_cap"`
	RotationCooldown    time.Duration `mapstructure:"rotation_cooldown"`
	RotationPlayerLimit int           `mapstructure:"rotation_player_limit"`
	MatchQueue          int           `mapstructure:"match_queue"`
	FallbackVersion     string        `mapstructure:"fallback_version"`
	PersistOverflow     bool          `mapstructure:"persist_overflow"`
	KeepRawPayload      bool          `mapstructure:"keep_raw_payload"`
}

// Freshness is the minimum age of a player's last crawl before it is crawled again.
func (c CrawlerConfig) Freshness() time.Duration {
	return time.Duration(c.FreshnessHours) * time.Hour
}

// StorageConfig locates and tunes the SQLite database.
type StorageConfig struct {
	Path          string `mapstructure:"path"`
	CacheSizeKB   int    `mapstructure:"cache_size_kb"`
	MmapSizeBytes int64  `mapstructure:"mmap_size_bytes"`
	BusyTimeoutMS int    `mapstructure:"busy_timeout_ms"`
	MaxOpenConns  int    `mapstructure:"max_open_conns"`
}

// ServerConfig controls the HTTP read API.
type ServerConfig struct {
	Addr   string `mapstructure:"addr"`
	APIKey string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from an optional .env file, an optional config file and the
// environment. CRAWLER_-prefixed variables override file values.
func Load(path string) (Config, error) {
	return load(path, ".env")
}

func load(path, envFile string) (Config, error) {
	if err := loadDotEnv(envFile); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Riot.APIKey == "" {
		cfg.Riot.APIKey = strings.TrimSpace(os.Getenv(APIKeyEnv))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadDotEnv reads KEY=value pairs into the process environment without overriding
// variables that are already set. A missing file is not an error.
func loadDotEnv(file string) error {
	if file == "" {
		return nil
	}
	if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", file, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("riot.api_key", "")
	v.SetDefault("riot.platform_base", "https://{region}.api.riotgames.com")
	v.SetDefault("riot.routing_base", "https://{routing}.api.riotgames.com")
	v.SetDefault("riot.versions_url", "https://ddragon.leagueoflegends.com/api/versions.json")
	v.SetDefault("riot.min_interval", 1500*time.Millisecond)
	v.SetDefault("riot.window_requests", 100)
	v.SetDefault("riot.window", 2*time.Minute)
	v.SetDefault("riot.max_concurrent", 3)
	v.SetDefault("riot.default_retry_after_seconds", 60)
	v.SetDefault("riot.timeout_seconds", 30)

	v.SetDefault("crawler.region", "tr1")
	v.SetDefault("crawler.regions", []string{"tr1", "euw1"})
	v.SetDefault("crawler.max_matches", 10000)
	v.SetDefault("crawler.max_players", 500)
	v.SetDefault("crawler.batch_size", 100)
	v.SetDefault("crawler.max_matches_per_player", 10)
	v.SetDefault("crawler.freshness_hours", 24)
	v.SetDefault("crawler.queue_capacity", 10000)
	v.SetDefault("crawler.match_fetch_delay", 100*time.Millisecond)
	v.SetDefault("crawler.progress_every", 10)
	v.SetDefault("crawler.seed_cap", 100)
	v.SetDefault("crawler.seed_tier_cap", 50)
	v.SetDefault("crawler.rotation_cooldown", 5*time.Second)
	v.SetDefault("crawler.rotation_player_limit", 100)
	v.SetDefault("crawler.match_queue", 420)
	v.SetDefault("crawler.fallback_version", "14.24.1")
	v.SetDefault("crawler.persist_overflow", true)
	v.SetDefault("crawler.keep_raw_payload", false)

	v.SetDefault("storage.path", "data/matches.db")
	v.SetDefault("storage.cache_size_kb", 64000)
	v.SetDefault("storage.mmap_size_bytes", 268435456)
	v.SetDefault("storage.busy_timeout_ms", 30000)
	v.SetDefault("storage.max_open_conns", 8)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.api_key", "")

	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits. The API key is not
// checked here because read-only commands run without one; see RequireAPIKey.
func (c Config) Validate() error {
	if c.Riot.MinInterval < 0 {
		return fmt.Errorf("riot.min_interval must be >= 0")
	}
	if c.Riot.WindowRequests < 0 {
		return fmt.Errorf("riot.window_requests must be >= 0")
	}
	if c.Riot.WindowRequests > 0 && c.Riot.Window <= 0 {
		return fmt.Errorf("riot.window must be > 0 when riot.window_requests is set")
	}
	if c.Riot.MaxConcurrent <= 0 {
		return fmt.Errorf("riot.max_concurrent must be > 0")
	}
	if c.Riot.TimeoutSeconds <= 0 {
		return fmt.Errorf("riot.timeout_seconds must be > 0")
	}
	if c.Crawler.BatchSize <= 0 {
		return fmt.Errorf("crawler.batch_size must be > 0")
	}
	if c.Crawler.MaxMatchesPerPlayer <= 0 || c.Crawler.MaxMatchesPerPlayer > 100 {
		return fmt.Errorf("crawler.max_matches_per_player must be between 1 and 100")
	}
	if c.Crawler.QueueCapacity <= 0 {
		return fmt.Errorf("crawler.queue_capacity must be > 0")
	}
	if c.Crawler.FreshnessHours < 0 {
		return fmt.Errorf("crawler.freshness_hours must be >= 0")
	}
	if c.Crawler.MatchQueue != 420 && c.Crawler.MatchQueue != 440 {
		return fmt.Errorf("crawler.match_queue must be 420 or 440")
	}
	if len(c.Crawler.Regions) == 0 {
		return fmt.Errorf("crawler.regions must not be empty")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path must be set")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must be set")
	}
	return nil
}

// RequireAPIKey returns ErrMissingAPIKey when no Riot key is configured.
func (c Config) RequireAPIKey() error {
	if strings.TrimSpace(c.Riot.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}
