package config

import (
	"testing"
	"time"

	"github.com/Sternrassler/fetchcache/pkg/cache"
	"github.com/Sternrassler/fetchcache/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 50, cfg.CacheMaxEntries)
	assert.Equal(t, "lru", cfg.CachePolicy)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Empty(t, cfg.RedisURL)

	cc, err := cfg.CacheConfig()
	require.NoError(t, err)
	assert.Equal(t, cache.DefaultConfig(), cc)
}

func TestParse_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_PRETTY", "true")
	t.Setenv("CACHE_MAX_ENTRIES", "10")
	t.Setenv("CACHE_POLICY", "older-than:5m")
	t.Setenv("CACHE_CLEANUP_PERIOD", "30s")
	t.Setenv("MAX_RETRIES", "4")
	t.Setenv("ATTEMPT_TIMEOUT", "2s")
	t.Setenv("RETRY_BACKOFF", "250ms")
	t.Setenv("RATE_LIMIT_REMAINING_HEADER", "X-ESI-Error-Limit-Remain")

	cfg, err := Parse()
	require.NoError(t, err)

	cc, err := cfg.ClientConfig()
	require.NoError(t, err)
	assert.Equal(t, 10, cc.Cache.MaxEntries)
	assert.Equal(t, cache.EvictOlderThan(5*time.Minute), cc.Cache.Policy)
	assert.Equal(t, 30*time.Second, cc.Cache.CleanupPeriod)
	assert.Equal(t, 4, cc.MaxRetries)
	assert.Equal(t, 2*time.Second, cc.Coordinator.AttemptTimeout)
	assert.Equal(t, 250*time.Millisecond, cc.Coordinator.InitialBackoff)

	assert.Equal(t, "X-ESI-Error-Limit-Remain", cfg.RateLimitConfig().RemainingHeader)
	assert.Equal(t, "X-RateLimit-Reset", cfg.RateLimitConfig().ResetHeader)

	lc := cfg.LoggingConfig()
	assert.Equal(t, logging.LevelDebug, lc.Level)
	assert.True(t, lc.Pretty)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"unknown policy", "CACHE_POLICY", "fifo"},
		{"zero capacity", "CACHE_MAX_ENTRIES", "0"},
		{"bad duration", "ATTEMPT_TIMEOUT", "soon"},
		{"bad number", "MAX_RETRIES", "many"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Parse()
			assert.Error(t, err)
		})
	}
}
