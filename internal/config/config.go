// Package config loads gitdash settings from defaults, a .env file, an
// optional TOML file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Environment variables read by Load.
const (
	EnvToken      = "GITHUB_TOKEN"
	EnvAPIURL     = "GITHUB_API_URL"
	EnvGraphQLURL = "GITHUB_GRAPHQL_URL"
	EnvRedisURL   = "GITDASH_REDIS_URL"
	EnvLogLevel   = "GITDASH_LOG_LEVEL"
	EnvLogFormat  = "GITDASH_LOG_FORMAT"

	EnvMaxConcurrency = "GITDASH_MAX_CONCURRENCY"
)

type Config struct {
	GitHub      GitHubConfig      `toml:"github"`
	Redis       RedisConfig       `toml:"redis"`
	Cache       CacheConfig       `toml:"cache"`
	Aggregation AggregationConfig `toml:"aggregation"`
	Log         LogConfig         `toml:"log"`
}

type GitHubConfig struct {
	// Token is only ever read from the environment.
	Token             string   `toml:"-"`
	APIURL            string   `toml:"api_url"`
	GraphQLURL        string   `toml:"graphql_url"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
	Timeout           Duration `toml:"timeout"`
}

// RedisConfig selects the cache backend. An empty URL disables caching.
type RedisConfig struct {
	URL         string   `toml:"url"`
	Prefix      string   `toml:"prefix"`
	DialTimeout Duration `toml:"dial_timeout"`
}

type CacheConfig struct {
	DefaultTTL Duration  `toml:"default_ttl"`
	TTL        TTLConfig `toml:"ttl"`
}

// TTLConfig sets the cache lifetime of each operation.
type TTLConfig struct {
	Repositories   Duration `toml:"repositories"`
	Commits        Duration `toml:"commits"`
	Collaborators  Duration `toml:"collaborators"`
	Overview       Duration `toml:"overview"`
	WeeklyActivity Duration `toml:"weekly_activity"`
	Activity       Duration `toml:"activity"`
	CodeChanges    Duration `toml:"code_changes"`
	Repository     Duration `toml:"repository"`
}

type AggregationConfig struct {
	MaxConcurrency int `toml:"max_concurrency"`
	CommitLimit    int `toml:"commit_limit"`
}

type LogConfig struct {
	Level  string `toml:"level"`  // debug | info | warn | error
	Format string `toml:"format"` // text | json
}

// Duration is a time.Duration written as a string such as "15m" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func Default() Config {
	return Config{
		GitHub: GitHubConfig{
			RequestsPerSecond: 10,
			Burst:             10,
			Timeout:           Duration{30 * time.Second},
		},
		Redis: RedisConfig{
			Prefix:      "gitdash",
			DialTimeout: Duration{5 * time.Second},
		},
		Cache: CacheConfig{
			DefaultTTL: Duration{30 * time.Minute},
			TTL: TTLConfig{
				Repositories:   Duration{10 * time.Minute},
				Commits:        Duration{10 * time.Minute},
				Collaborators:  Duration{15 * time.Minute},
				Overview:       Duration{15 * time.Minute},
				WeeklyActivity: Duration{30 * time.Minute},
				Activity:       Duration{15 * time.Minute},
				CodeChanges:    Duration{30 * time.Minute},
				Repository:     Duration{30 * time.Minute},
			},
		},
		Aggregation: AggregationConfig{
			MaxConcurrency: 4,
			CommitLimit:    500,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration. A .env file in the working directory is
// loaded first without overriding variables already set. path names an
// optional TOML file; an empty path skips it. Environment variables win
// over the file.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if strings.TrimSpace(path) != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(content, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode toml: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.GitHub.Token = os.Getenv(EnvToken)
	setIfPresent(&c.GitHub.APIURL, EnvAPIURL)
	setIfPresent(&c.GitHub.GraphQLURL, EnvGraphQLURL)
	setIfPresent(&c.Redis.URL, EnvRedisURL)
	setIfPresent(&c.Log.Level, EnvLogLevel)
	setIfPresent(&c.Log.Format, EnvLogFormat)

	if v := os.Getenv(EnvMaxConcurrency); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvMaxConcurrency, v, err)
		}
		c.Aggregation.MaxConcurrency = n
	}
	return nil
}

func setIfPresent(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func (c Config) Validate() error {
	if c.Aggregation.MaxConcurrency <= 0 {
		return fmt.Errorf("aggregation.max_concurrency must be > 0, got %d", c.Aggregation.MaxConcurrency)
	}
	if c.Aggregation.CommitLimit <= 0 {
		return fmt.Errorf("aggregation.commit_limit must be > 0, got %d", c.Aggregation.CommitLimit)
	}
	if c.GitHub.RequestsPerSecond < 0 {
		return fmt.Errorf("github.requests_per_second must be >= 0, got %v", c.GitHub.RequestsPerSecond)
	}
	if c.GitHub.Timeout.Duration <= 0 {
		return errors.New("github.timeout must be positive")
	}
	ttls := map[string]Duration{
		"cache.default_ttl":         c.Cache.DefaultTTL,
		"cache.ttl.repositories":    c.Cache.TTL.Repositories,
		"cache.ttl.commits":         c.Cache.TTL.Commits,
		"cache.ttl.collaborators":   c.Cache.TTL.Collaborators,
		"cache.ttl.overview":        c.Cache.TTL.Overview,
		"cache.ttl.weekly_activity": c.Cache.TTL.WeeklyActivity,
		"cache.ttl.activity":        c.Cache.TTL.Activity,
		"cache.ttl.code_changes":    c.Cache.TTL.CodeChanges,
		"cache.ttl.repository":      c.Cache.TTL.Repository,
	}
	for name, ttl := range ttls {
		if ttl.Duration <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log.format: %q", c.Log.Format)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	return nil
}
