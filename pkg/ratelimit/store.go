package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateStore persists the rate limit state.
type StateStore interface {
	// Load returns the stored state. ok is false when nothing was stored yet.
	Load(ctx context.Context) (state State, ok bool, err error)

	// Save replaces the stored state.
	Save(ctx context.Context, state State) error
}

// MemoryStore keeps the state in process.
type MemoryStore struct {
	mu    sync.Mutex
	state State
	set   bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements StateStore.
func (m *MemoryStore) Load(ctx context.Context) (State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.set, nil
}

// Save implements StateStore.
func (m *MemoryStore) Save(ctx context.Context, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.set = true
	return nil
}

// DefaultRedisPrefix namespaces the keys written by RedisStore.
const DefaultRedisPrefix = "fetchcache:rate_limit"

// RedisStore shares the state through Redis so that every instance behind
// the same upstream sees the same budget.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a RedisStore. An empty prefix uses DefaultRedisPrefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(field string) string {
	return r.prefix + ":" + field
}

// Load implements StateStore.
func (r *RedisStore) Load(ctx context.Context) (State, bool, error) {
	pipe := r.client.Pipeline()
	remainingCmd := pipe.Get(ctx, r.key("remaining"))
	resetCmd := pipe.Get(ctx, r.key("reset_at"))
	updateCmd := pipe.Get(ctx, r.key("last_update"))

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return State{}, false, fmt.Errorf("load rate limit state from redis: %w", err)
	}

	remaining, err := remainingCmd.Int()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("get remaining: %w", err)
	}

	resetAt, err := resetCmd.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return State{}, false, fmt.Errorf("get reset timestamp: %w", err)
	}

	lastUpdate, err := updateCmd.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return State{}, false, fmt.Errorf("get last update: %w", err)
	}

	return State{
		Remaining:  remaining,
		ResetAt:    time.Unix(resetAt, 0),
		LastUpdate: time.UnixMilli(lastUpdate),
	}, true, nil
}

// Save implements StateStore. The fields expire with the window so a stale
// budget does not outlive it.
func (r *RedisStore) Save(ctx context.Context, state State) error {
	ttl := time.Until(state.ResetAt) + time.Minute
	if ttl < time.Minute {
		ttl = time.Minute
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key("remaining"), state.Remaining, ttl)
	pipe.Set(ctx, r.key("reset_at"), state.ResetAt.Unix(), ttl)
	pipe.Set(ctx, r.key("last_update"), state.LastUpdate.UnixMilli(), ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}
	return nil
}
