package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/fetchcache/pkg/logging"
	"github.com/rs/zerolog"
)

// Defaults mirror a small mobile-style response cache.
const (
	DefaultMaxEntries    = 50
	DefaultCleanupPeriod = 0
)

var (
	// ErrInvalidConfig indicates a store configuration that cannot be applied
	ErrInvalidConfig = errors.New("invalid cache config")

	// ErrClosed indicates the store was closed
	ErrClosed = errors.New("cache store is closed")
)

// Config holds the store configuration.
type Config struct {
	// MaxEntries bounds the number of entries (must be >= 1).
	MaxEntries int

	// Policy decides which entries go when a new key arrives at a full store.
	Policy Policy

	// CleanupPeriod is the interval of the background sweep; 0 disables it.
	CleanupPeriod time.Duration
}

// DefaultConfig returns a 50 entry LRU store without background sweep.
func DefaultConfig() Config {
	return Config{
		MaxEntries:    DefaultMaxEntries,
		Policy:        EvictLeastRecentlyUsed(),
		CleanupPeriod: DefaultCleanupPeriod,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxEntries < 1 {
		return fmt.Errorf("%w: max entries must be >= 1 (got %d)", ErrInvalidConfig, c.MaxEntries)
	}
	if c.CleanupPeriod < 0 {
		return fmt.Errorf("%w: cleanup period must be >= 0 (got %v)", ErrInvalidConfig, c.CleanupPeriod)
	}
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces time.Now (used by tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the store logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Store is a capacity-bounded key -> payload cache.
// Every Get, Put and eviction runs under one mutex.
type Store struct {
	mu      sync.Mutex
	entries map[string]*Entry
	config  Config
	closed  bool

	now    func() time.Time
	logger zerolog.Logger

	// sweep goroutine ownership; replaced on every Configure
	sweepMu     sync.Mutex
	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
}

// New creates a store and starts the background sweep if configured.
func New(cfg Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Store{
		entries: make(map[string]*Entry, cfg.MaxEntries),
		config:  cfg,
		now:     time.Now,
		logger:  logging.NewLogger("cache"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.restartSweep(cfg.CleanupPeriod)

	return s, nil
}

// Get returns a copy of the payload stored under key and records the access.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		CacheMisses.Inc()
		return nil, false
	}

	e.touch(s.now())
	CacheHits.Inc()

	return bytes.Clone(e.Payload), true
}

// Peek returns a copy of the entry without touching its bookkeeping.
func (s *Store) Peek(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return Entry{}, false
	}
	out := *e
	out.Payload = bytes.Clone(e.Payload)
	return out, true
}

// Put stores a copy of payload under key. A new key arriving at a full store triggers
// cleanup first; an existing key is replaced by a fresh entry.
func (s *Store) Put(key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	now := s.now()

	if _, exists := s.entries[key]; !exists {
		s.cleanupLocked(now)

		// The policy may leave a full store full (older-than / below-count
		// matching nothing, or a lowered MaxEntries). Fall back to LRU until
		// the new entry fits.
		for len(s.entries) >= s.config.MaxEntries {
			victim, ok := leastRecent(s.entries)
			if !ok {
				break
			}
			s.removeLocked([]string{victim}, "capacity")
		}
	}

	s.entries[key] = newEntry(key, bytes.Clone(payload), now)
	CacheEntries.Set(float64(len(s.entries)))

	s.logger.Debug().
		Str("key", key).
		Int("size", len(s.entries)).
		Msg("Cached response")

	return nil
}

// Delete removes key. It reports whether the key was present.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return false
	}
	delete(s.entries, key)
	CacheEntries.Set(float64(len(s.entries)))
	return true
}

// Evict applies the configured policy regardless of fill level and returns
// the number of removed entries.
func (s *Store) Evict() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.evictLocked(s.now())
}

// Cleanup applies the configured policy only if the store is at capacity.
// This is the routine shared by Put and the background sweep.
func (s *Store) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cleanupLocked(s.now())
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// IsFull reports whether the store holds MaxEntries entries or more.
func (s *Store) IsFull() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fullLocked()
}

// Config returns the active configuration.
func (s *Store) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// Configure replaces the configuration and re-arms the sweep with the new
// period. Existing entries are not re-evicted.
func (s *Store) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.config = cfg
	s.mu.Unlock()

	s.restartSweep(cfg.CleanupPeriod)

	s.logger.Info().
		Int("max_entries", cfg.MaxEntries).
		Str("policy", cfg.Policy.String()).
		Dur("cleanup_period", cfg.CleanupPeriod).
		Msg("Cache reconfigured")

	return nil
}

// Close stops the background sweep. Close is safe to call multiple times.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.restartSweep(0)
	return nil
}

func (s *Store) fullLocked() bool {
	return len(s.entries) >= s.config.MaxEntries
}

func (s *Store) cleanupLocked(now time.Time) int {
	if !s.fullLocked() {
		return 0
	}
	return s.evictLocked(now)
}

func (s *Store) evictLocked(now time.Time) int {
	victims := s.config.Policy.victims(s.entries, now)
	s.removeLocked(victims, string(s.config.Policy.Type))
	return len(victims)
}

func (s *Store) removeLocked(keys []string, reason string) {
	if len(keys) == 0 {
		return
	}
	for _, key := range keys {
		delete(s.entries, key)
	}
	CacheEvictions.WithLabelValues(reason).Add(float64(len(keys)))
	CacheEntries.Set(float64(len(s.entries)))

	s.logger.Debug().
		Str("policy", reason).
		Int("evicted", len(keys)).
		Int("size", len(s.entries)).
		Msg("Evicted cache entries")
}
