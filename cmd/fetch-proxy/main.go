package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/fetchcache/internal/config"
	"github.com/Sternrassler/fetchcache/pkg/apierr"
	"github.com/Sternrassler/fetchcache/pkg/client"
	"github.com/Sternrassler/fetchcache/pkg/logging"
	"github.com/Sternrassler/fetchcache/pkg/metrics"
	"github.com/Sternrassler/fetchcache/pkg/ratelimit"
	"github.com/Sternrassler/fetchcache/pkg/reachability"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LoggingConfig())

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func run(cfg config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clientCfg, err := cfg.ClientConfig()
	if err != nil {
		return err
	}

	var stateStore ratelimit.StateStore = ratelimit.NewMemoryStore()
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info().Str("addr", opts.Addr).Msg("Connected to Redis")
		stateStore = ratelimit.NewRedisStore(redisClient, "")
	}

	tracker := ratelimit.NewTracker(stateStore, cfg.RateLimitConfig(), logging.NewLogger("ratelimit"))
	transport := client.NewHTTPTransport(cfg.UserAgent, client.WithRateLimiter(tracker))

	var checker reachability.Checker = reachability.Static(true)
	if cfg.ReachabilityProbeAddr != "" {
		checker = reachability.NewProbe(cfg.ReachabilityProbeAddr)
	}

	c, err := client.New(clientCfg, client.WithTransport(transport), client.WithReachability(checker))
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer c.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newServer(c, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("user_agent", cfg.UserAgent).
			Msg("Starting fetch proxy")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newServer wires the HTTP routes.
func newServer(c *client.Client, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /fetch", fetchHandler(c, logger))
	mux.HandleFunc("GET /cache", cacheStatsHandler(c))
	mux.HandleFunc("DELETE /cache", cacheEvictHandler(c, logger))
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// fetchHandler answers GET /fetch?url=... with the upstream body.
func fetchHandler(c *client.Client, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := r.URL.Query().Get("url")
		if target == "" {
			http.Error(w, "missing url parameter", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
		defer cancel()

		payload, err := c.Fetch(ctx, client.Get(target))
		if err != nil {
			status := statusFor(err)
			logger.Warn().
				Err(err).
				Str("url", target).
				Str("error_kind", string(apierr.KindOf(err))).
				Int("status_code", status).
				Msg("Fetch failed")
			http.Error(w, err.Error(), status)
			return
		}

		w.Header().Set("Content-Type", http.DetectContentType(payload))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(payload); err != nil {
			logger.Debug().Err(err).Msg("Failed to write response")
		}
	}
}

// statusFor maps an error kind onto the proxy's response status.
func statusFor(err error) int {
	switch apierr.KindOf(err) {
	case apierr.KindRequestConstruction:
		return http.StatusBadRequest
	case apierr.KindConnectivity:
		return http.StatusServiceUnavailable
	case apierr.KindCancelled:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

type cacheStats struct {
	Entries    int    `json:"entries"`
	MaxEntries int    `json:"max_entries"`
	Policy     string `json:"policy"`
	Pending    int    `json:"pending"`
}

func cacheStatsHandler(c *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store := c.Cache()
		cfg := store.Config()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(cacheStats{
			Entries:    store.Len(),
			MaxEntries: cfg.MaxEntries,
			Policy:     cfg.Policy.String(),
			Pending:    c.Pending(),
		})
	}
}

// cacheEvictHandler applies the cache policy once, regardless of fill level.
func cacheEvictHandler(c *client.Client, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		removed := c.Cache().Evict()
		logger.Info().Int("evicted", removed).Msg("Cache evicted on request")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"evicted": removed})
	}
}
