package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ajitpratap0/reclaim/internal/matcher"
)

const (
	// DefaultStaleAfterDays is how long an entry may stay Open before the
	// sweep closes it.
	DefaultStaleAfterDays = 90

	// DefaultTokenTTL is the lifetime of issued bearer tokens.
	DefaultTokenTTL = 24 * time.Hour

	// DefaultConcurrency is the number of goroutines used for large match runs.
	DefaultConcurrency = 4
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config holds all configuration for reclaim.
type Config struct {
	Store     StoreConfig     `mapstructure:"store"`
	Auth      AuthConfig      `mapstructure:"auth"`
	API       APIConfig       `mapstructure:"api"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Neo4j     Neo4jConfig     `mapstructure:"neo4j"`
	Claude    ClaudeConfig    `mapstructure:"claude"`
	Matching  MatchingConfig  `mapstructure:"matching"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// StoreConfig selects and configures the entry store.
type StoreConfig struct {
	Driver      string `mapstructure:"driver"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
	// SeedFile is a JSON array of entries loaded into the memory store at startup.
	SeedFile string `mapstructure:"seed_file"`
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	// Disabled treats every request as an anonymous admin. Local use only.
	Disabled bool `mapstructure:"disabled"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// RedisConfig holds change bus settings.
type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Channel string `mapstructure:"channel"`
}

// Neo4jConfig holds match graph projection settings.
type Neo4jConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URI      string `mapstructure:"uri"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// ClaudeConfig holds Anthropic Claude API settings.
type ClaudeConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// String returns a safe representation of ClaudeConfig with the API key masked.
func (c ClaudeConfig) String() string {
	return fmt.Sprintf("ClaudeConfig{APIKey:%s, Model:%s}", maskSecret(c.APIKey), c.Model)
}

// MatchingConfig tunes the matcher.
type MatchingConfig struct {
	Weights     matcher.Weights    `mapstructure:"weights"`
	Thresholds  matcher.Thresholds `mapstructure:"thresholds"`
	Concurrency int                `mapstructure:"concurrency"`
	// MaxPairs bounds lost x found pairs per run; 0 means unbounded.
	MaxPairs int `mapstructure:"max_pairs"`
}

// LifecycleConfig holds sweep settings.
type LifecycleConfig struct {
	StaleAfterDays int `mapstructure:"stale_after_days"`
}

// StaleAfter returns the configured staleness window.
func (l LifecycleConfig) StaleAfter() time.Duration {
	return time.Duration(l.StaleAfterDays) * 24 * time.Hour
}

// WatchConfig holds recompute loop settings.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// String returns a representation of the whole config with secrets masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Store:{Driver:%s, PostgresDSN:%s, SeedFile:%s}, Auth:{JWTSecret:%s, TokenTTL:%s, Disabled:%t}, API:{ListenAddr:%s}, "+
			"Redis:{Enabled:%t, Addr:%s, Channel:%s}, Neo4j:{Enabled:%t, URI:%s, User:%s, Password:%s, Database:%s}, Claude:%s, "+
			"Matching:{Weights:%+v, Thresholds:%+v, Concurrency:%d, MaxPairs:%d}, Lifecycle:{StaleAfterDays:%d}, Watch:{Debounce:%s}, Logging:{Level:%s, Format:%s}}",
		c.Store.Driver, maskDSN(c.Store.PostgresDSN), c.Store.SeedFile,
		maskSecret(c.Auth.JWTSecret), c.Auth.TokenTTL, c.Auth.Disabled, c.API.ListenAddr,
		c.Redis.Enabled, c.Redis.Addr, c.Redis.Channel,
		c.Neo4j.Enabled, c.Neo4j.URI, c.Neo4j.User, maskSecret(c.Neo4j.Password), c.Neo4j.Database,
		c.Claude,
		c.Matching.Weights, c.Matching.Thresholds, c.Matching.Concurrency, c.Matching.MaxPairs,
		c.Lifecycle.StaleAfterDays, c.Watch.Debounce, c.Logging.Level, c.Logging.Format,
	)
}

// maskSecret shows first 4 + last 4 chars, replacing the middle with asterisks.
func maskSecret(key string) string {
	const visible = 4
	if key == "" {
		return ""
	}
	if len(key) <= visible*2 {
		return "***"
	}
	return key[:visible] + "****" + key[len(key)-visible:]
}

// maskDSN hides the password of a postgres URL DSN.
func maskDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return maskSecret(dsn)
	}
	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	user, _, hasPassword := strings.Cut(userinfo, ":")
	if !hasPassword {
		return dsn
	}
	return scheme + "://" + user + ":***@" + host
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("store.seed_file", "")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", DefaultTokenTTL)
	v.SetDefault("auth.disabled", false)

	v.SetDefault("api.listen_addr", ":8080")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.channel", "reclaim.changes")

	v.SetDefault("neo4j.enabled", false)
	v.SetDefault("neo4j.uri", "neo4j://localhost:7687")
	v.SetDefault("neo4j.user", "neo4j")
	v.SetDefault("neo4j.password", "")
	v.SetDefault("neo4j.database", "")

	v.SetDefault("claude.api_key", "")
	v.SetDefault("claude.model", "claude-haiku-4-5-20251001")

	w := matcher.DefaultWeights()
	v.SetDefault("matching.weights.document", w.Document)
	v.SetDefault("matching.weights.name", w.Name)
	v.SetDefault("matching.weights.location", w.Location)
	v.SetDefault("matching.weights.geo_near", w.GeoNear)
	v.SetDefault("matching.weights.geo_far", w.GeoFar)
	v.SetDefault("matching.weights.date", w.Date)
	th := matcher.DefaultThresholds()
	v.SetDefault("matching.thresholds.name_similarity", th.NameSimilarity)
	v.SetDefault("matching.thresholds.location_similarity", th.LocationSimilarity)
	v.SetDefault("matching.thresholds.geo_near_km", th.GeoNearKm)
	v.SetDefault("matching.thresholds.geo_far_km", th.GeoFarKm)
	v.SetDefault("matching.thresholds.date_window_days", th.DateWindowDays)
	v.SetDefault("matching.thresholds.min_score", th.MinScore)
	v.SetDefault("matching.concurrency", DefaultConcurrency)
	v.SetDefault("matching.max_pairs", 0)

	v.SetDefault("lifecycle.stale_after_days", DefaultStaleAfterDays)
	v.SetDefault("watch.debounce", 2*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(homeDir(), ".reclaim"))
	v.AddConfigPath(".")

	// Environment variables: RECLAIM_STORE_DRIVER, RECLAIM_AUTH_JWT_SECRET, ...
	v.SetEnvPrefix("RECLAIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map specific env vars
	_ = v.BindEnv("claude.api_key", "RECLAIM_CLAUDE_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("store.postgres_dsn", "RECLAIM_STORE_POSTGRES_DSN", "DATABASE_URL")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK: use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are set and consistent.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("store.postgres_dsn must be set when store.driver is postgres")
		}
	default:
		return fmt.Errorf("store.driver must be %q or %q, got %q", DriverMemory, DriverPostgres, c.Store.Driver)
	}
	if !c.Auth.Disabled && c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("auth.jwt_secret must be at least 16 characters")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be greater than 0")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr must be set when redis is enabled")
	}
	if c.Neo4j.Enabled && c.Neo4j.URI == "" {
		return fmt.Errorf("neo4j.uri must be set when neo4j is enabled")
	}
	if err := c.Matching.Weights.Validate(); err != nil {
		return fmt.Errorf("matching.weights: %w", err)
	}
	if err := c.Matching.Thresholds.Validate(); err != nil {
		return fmt.Errorf("matching.thresholds: %w", err)
	}
	if c.Matching.Concurrency < 1 {
		return fmt.Errorf("matching.concurrency must be at least 1")
	}
	if c.Matching.MaxPairs < 0 {
		return fmt.Errorf("matching.max_pairs must be >= 0")
	}
	if c.Lifecycle.StaleAfterDays <= 0 {
		return fmt.Errorf("lifecycle.stale_after_days must be greater than 0")
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must be >= 0")
	}
	return nil
}

// Matcher builds a matcher from the matching section.
func (c *Config) Matcher(opts ...matcher.Option) *matcher.Matcher {
	opts = append([]matcher.Option{
		matcher.WithConcurrency(c.Matching.Concurrency),
		matcher.WithMaxPairs(c.Matching.MaxPairs),
	}, opts...)
	return matcher.New(c.Matching.Weights, c.Matching.Thresholds, opts...)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
