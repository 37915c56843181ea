//go:build integration

// Package integration exercises the full request flow against a mock upstream
// with the rate limit state shared through a real Redis.
package integration

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/fetchcache/internal/testutil"
	"github.com/Sternrassler/fetchcache/pkg/apierr"
	"github.com/Sternrassler/fetchcache/pkg/client"
	"github.com/Sternrassler/fetchcache/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: endpoint})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		redisClient.Close()
		redisContainer.Terminate(ctx)
	}
	return redisClient, cleanup
}

func newClient(t *testing.T, redisClient *redis.Client) *client.Client {
	t.Helper()

	tracker := ratelimit.NewTracker(ratelimit.NewRedisStore(redisClient, "it"), ratelimit.DefaultConfig(), zerolog.Nop())
	transport := client.NewHTTPTransport("fetchcache-it/1.0",
		client.WithRateLimiter(tracker),
		client.WithTransportLogger(zerolog.Nop()),
	)

	c, err := client.New(client.DefaultConfig("fetchcache-it/1.0"),
		client.WithTransport(transport),
		client.WithLogger(zerolog.Nop()),
	)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// TestFullRequestFlow: rate limit gate, cache miss, upstream, cache store, cache hit.
func TestFullRequestFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	upstream := testutil.NewMockUpstream()
	defer upstream.Close()
	upstream.SetResponse("/orders", testutil.MockResponse{
		Body: `[{"order_id":1,"price":100.5}]`,
		Headers: map[string]string{
			ratelimit.DefaultRemainingHeader: "80",
			ratelimit.DefaultResetHeader:     "60",
		},
	})

	c := newClient(t, redisClient)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Fetch(ctx, client.Get(upstream.URL()+"/orders")); err != nil {
				t.Errorf("Fetch failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if _, err := c.Fetch(ctx, client.Get(upstream.URL()+"/orders")); err != nil {
		t.Fatalf("cached Fetch failed: %v", err)
	}

	if n := upstream.PathCount("/orders"); n != 1 {
		t.Errorf("upstream hit %d times, want 1", n)
	}

	remaining, err := redisClient.Get(ctx, "it:remaining").Int()
	if err != nil {
		t.Fatalf("read rate limit state: %v", err)
	}
	if remaining != 80 {
		t.Errorf("shared remaining = %d, want 80", remaining)
	}
}

// TestSharedRateLimitBlocksSecondClient: a critical budget reported to one
// client blocks upstream traffic of another client sharing the same Redis.
func TestSharedRateLimitBlocksSecondClient(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	upstream := testutil.NewMockUpstream()
	defer upstream.Close()
	upstream.SetResponse("/critical", testutil.MockResponse{
		StatusCode: http.StatusBadRequest,
		Headers: map[string]string{
			ratelimit.DefaultRemainingHeader: "1",
			ratelimit.DefaultResetHeader:     "60",
		},
	})

	first := newClient(t, redisClient)
	second := newClient(t, redisClient)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req := client.Get(upstream.URL() + "/critical")
	req.MaxRetries = 0
	if _, err := first.Fetch(ctx, req); err == nil {
		t.Fatal("expected upstream 400 to fail")
	}

	_, err := second.Fetch(ctx, client.Get(upstream.URL()+"/other"))
	if !errors.Is(err, apierr.ErrRetryExhausted) || !errors.Is(err, ratelimit.ErrRateLimited) {
		t.Fatalf("error = %v, want retry exhaustion caused by the rate limit", err)
	}
	if n := upstream.PathCount("/other"); n != 0 {
		t.Errorf("blocked client reached upstream %d times", n)
	}
}
