// Package config loads the fetch-proxy configuration from the environment.
// A .env file in the working directory is read first if present; variables
// already set in the environment take precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/Sternrassler/fetchcache/pkg/cache"
	"github.com/Sternrassler/fetchcache/pkg/client"
	"github.com/Sternrassler/fetchcache/pkg/coordinator"
	"github.com/Sternrassler/fetchcache/pkg/logging"
	"github.com/Sternrassler/fetchcache/pkg/ratelimit"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the fetch-proxy configuration.
type Config struct {
	Port      string `env:"PORT" envDefault:"8080"`
	UserAgent string `env:"USER_AGENT" envDefault:"fetchcache/0.1.0"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	CacheMaxEntries    int           `env:"CACHE_MAX_ENTRIES" envDefault:"50"`
	CachePolicy        string        `env:"CACHE_POLICY" envDefault:"lru"`
	CacheCleanupPeriod time.Duration `env:"CACHE_CLEANUP_PERIOD" envDefault:"0s"`

	MaxRetries     int           `env:"MAX_RETRIES" envDefault:"2"`
	AttemptTimeout time.Duration `env:"ATTEMPT_TIMEOUT" envDefault:"30s"`
	RetryBackoff   time.Duration `env:"RETRY_BACKOFF" envDefault:"0s"`

	// RedisURL enables the shared rate limit state when set.
	RedisURL string `env:"REDIS_URL"`

	// ReachabilityProbeAddr ("host:port") enables the TCP reachability probe when set.
	ReachabilityProbeAddr string `env:"REACHABILITY_PROBE_ADDR"`

	RateLimitRemainingHeader string `env:"RATE_LIMIT_REMAINING_HEADER" envDefault:"X-RateLimit-Remaining"`
	RateLimitResetHeader     string `env:"RATE_LIMIT_RESET_HEADER" envDefault:"X-RateLimit-Reset"`
}

// Load reads .env (if present) and parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse parses the environment without reading .env.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if _, err := cfg.CacheConfig(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// CacheConfig returns the response store configuration.
func (c Config) CacheConfig() (cache.Config, error) {
	policy, err := cache.ParsePolicy(c.CachePolicy)
	if err != nil {
		return cache.Config{}, fmt.Errorf("CACHE_POLICY: %w", err)
	}

	cfg := cache.Config{
		MaxEntries:    c.CacheMaxEntries,
		Policy:        policy,
		CleanupPeriod: c.CacheCleanupPeriod,
	}
	if err := cfg.Validate(); err != nil {
		return cache.Config{}, err
	}
	return cfg, nil
}

// ClientConfig returns the client configuration.
func (c Config) ClientConfig() (client.Config, error) {
	cacheCfg, err := c.CacheConfig()
	if err != nil {
		return client.Config{}, err
	}

	coordCfg := coordinator.DefaultConfig()
	coordCfg.AttemptTimeout = c.AttemptTimeout
	coordCfg.InitialBackoff = c.RetryBackoff

	return client.Config{
		UserAgent:   c.UserAgent,
		MaxRetries:  c.MaxRetries,
		Cache:       cacheCfg,
		Coordinator: coordCfg,
	}, nil
}

// RateLimitConfig returns the rate limit tracker configuration.
func (c Config) RateLimitConfig() ratelimit.Config {
	cfg := ratelimit.DefaultConfig()
	cfg.RemainingHeader = c.RateLimitRemainingHeader
	cfg.ResetHeader = c.RateLimitResetHeader
	return cfg
}

// LoggingConfig returns the logger configuration.
func (c Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.LogLevel)
	cfg.Pretty = c.LogPretty
	return cfg
}
