// Package client is the entry point of fetchcache: a response cache in front
// of a request coordinator in front of a network transport.
//
// A request is answered from the cache when possible. Otherwise concurrent
// identical requests share a single upstream call, transient failures are
// retried within the request's budget and the payload is cached before any
// waiter sees it. Payloads are cached as raw bytes and decoded per caller.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/fetchcache/pkg/apierr"
	"github.com/Sternrassler/fetchcache/pkg/cache"
	"github.com/Sternrassler/fetchcache/pkg/codec"
	"github.com/Sternrassler/fetchcache/pkg/coordinator"
	"github.com/Sternrassler/fetchcache/pkg/logging"
	"github.com/Sternrassler/fetchcache/pkg/reachability"
	"github.com/rs/zerolog"
)

// DefaultMaxRetries is the retry budget of requests using DefaultRetries.
const DefaultMaxRetries = 2

// Config holds the client configuration.
type Config struct {
	// UserAgent is sent on every request by the default HTTP transport.
	UserAgent string

	// MaxRetries is the retry budget of requests using DefaultRetries.
	MaxRetries int

	// Cache configures the response store.
	Cache cache.Config

	// Coordinator configures attempt timeouts and retry backoff.
	Coordinator coordinator.Config
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent:   userAgent,
		MaxRetries:  DefaultMaxRetries,
		Cache:       cache.DefaultConfig(),
		Coordinator: coordinator.DefaultConfig(),
	}
}

// Option customizes a Client.
type Option func(*Client)

// WithTransport replaces the default HTTP transport.
func WithTransport(t Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithReachability sets the network reachability checker.
func WithReachability(r reachability.Checker) Option {
	return func(c *Client) { c.reachability = r }
}

// WithLogger sets the logger of the client and the components it creates.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
		c.customLogger = true
	}
}

// Handle identifies an asynchronous submission.
type Handle = coordinator.Handle

// Callback receives the outcome of an asynchronous submission.
type Callback = coordinator.Callback

// Result is delivered to a Callback.
type Result = coordinator.Result

// Client answers requests from the cache or through the coordinator.
type Client struct {
	store        *cache.Store
	coordinator  *coordinator.Coordinator
	transport    Transport
	reachability reachability.Checker
	config       Config
	logger       zerolog.Logger
	customLogger bool
}

// New creates a new client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}

	c := &Client{
		reachability: reachability.Static(true),
		config:       cfg,
		logger:       logging.NewLogger("client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		c.transport = NewHTTPTransport(cfg.UserAgent, WithTransportLogger(c.subLogger("transport")))
	}

	store, err := cache.New(cfg.Cache, cache.WithLogger(c.subLogger("cache")))
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	c.store = store

	c.coordinator = coordinator.New(cfg.Coordinator,
		coordinator.WithReachability(c.reachability),
		coordinator.WithLogger(c.subLogger("coordinator")),
		coordinator.WithOnSuccess(c.storeResult),
		coordinator.WithRecheck(c.recheck),
	)

	return c, nil
}

// subLogger returns the logger for a component the client owns. A caller
// supplied logger already carries its own component field.
func (c *Client) subLogger(name string) zerolog.Logger {
	if c.customLogger {
		return c.logger.With().Str("subcomponent", name).Logger()
	}
	return logging.NewLogger(name)
}

// storeResult runs under the coordinator's registry lock.
func (c *Client) storeResult(key string, payload []byte) {
	if err := c.store.Put(key, payload); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to cache response")
	}
}

// recheck runs under the coordinator's registry lock.
func (c *Client) recheck(key string) ([]byte, bool) {
	if _, ok := c.store.Peek(key); !ok {
		return nil, false
	}
	return c.store.Get(key)
}

// Fetch returns the raw payload of req.
func (c *Client) Fetch(ctx context.Context, req *Request) ([]byte, error) {
	start := time.Now()
	defer func() {
		RequestDuration.Observe(time.Since(start).Seconds())
	}()

	if err := req.validate(); err != nil {
		RequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	req = req.clone()
	key := req.Key()

	if payload, ok := c.store.Get(key); ok {
		RequestsTotal.WithLabelValues("cache").Inc()
		c.logger.Debug().Str("key", key).Msg("Cache hit")
		return payload, nil
	}

	if !c.reachability.IsOnline() {
		RequestsTotal.WithLabelValues("error").Inc()
		return nil, &apierr.Error{Kind: apierr.KindConnectivity, Key: key}
	}

	r := c.coordinator.Wait(ctx, key, c.factory(req), c.retries(req))
	RequestsTotal.WithLabelValues(resultSource(r)).Inc()
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Payload, nil
}

// Perform fetches req and decodes the payload into out with cd. A nil codec
// decodes JSON. Decoding failures are local to this caller.
func (c *Client) Perform(ctx context.Context, req *Request, cd codec.Codec, out any) error {
	if cd == nil {
		cd = codec.JSON{}
	}
	if req != nil && req.Header.Get("Accept") == "" {
		req = req.clone()
		if req.Header == nil {
			req.Header = http.Header{}
		}
		req.Header.Set("Accept", cd.ContentType())
	}

	payload, err := c.Fetch(ctx, req)
	if err != nil {
		return err
	}

	if err := cd.Decode(payload, out); err != nil {
		return &apierr.Error{Kind: apierr.KindDecoding, Key: req.Key(), Err: err}
	}
	return nil
}

// Do fetches req and decodes the payload into a T.
func Do[T any](ctx context.Context, c *Client, req *Request, cd codec.Codec) (T, error) {
	var out T
	err := c.Perform(ctx, req, cd, &out)
	return out, err
}

// Submit starts req asynchronously. A cache hit invokes cb before Submit
// returns. Requests that cannot be built or cannot be sent because the
// network is unreachable fail in the returned error and cb is never invoked.
func (c *Client) Submit(req *Request, cb Callback) (Handle, error) {
	if err := req.validate(); err != nil {
		return Handle{}, err
	}
	req = req.clone()
	key := req.Key()

	if payload, ok := c.store.Get(key); ok {
		RequestsTotal.WithLabelValues("cache").Inc()
		cb(Result{Payload: payload, Cached: true})
		return Handle{Key: key}, nil
	}

	if !c.reachability.IsOnline() {
		return Handle{Key: key}, &apierr.Error{Kind: apierr.KindConnectivity, Key: key}
	}

	return c.coordinator.Submit(key, c.factory(req), c.retries(req), func(r Result) {
		RequestsTotal.WithLabelValues(resultSource(r)).Inc()
		cb(r)
	}), nil
}

// resultSource is the requests_total label for a coordinator result.
func resultSource(r Result) string {
	switch {
	case r.Err != nil:
		return "error"
	case r.Cached:
		return "cache"
	default:
		return "upstream"
	}
}

// Cancel detaches the submission. Its callback will not be invoked. The
// upstream call is aborted once no submission waits for it.
func (c *Client) Cancel(h Handle) bool {
	return c.coordinator.Cancel(h.Key, h.WaiterID)
}

// CancelAll aborts every pending request; their waiters receive
// apierr.KindCancelled.
func (c *Client) CancelAll() int {
	return c.coordinator.CancelAll()
}

// Cache returns the response store, e.g. to Configure or Evict it.
func (c *Client) Cache() *cache.Store {
	return c.store
}

// Pending returns the number of upstream requests in flight.
func (c *Client) Pending() int {
	return c.coordinator.Pending()
}

// Close aborts pending requests and stops the cache sweep.
func (c *Client) Close() error {
	return errors.Join(c.coordinator.Close(), c.store.Close())
}

func (c *Client) factory(req *Request) coordinator.Factory {
	return func(ctx context.Context) ([]byte, error) {
		return c.transport.Invoke(ctx, req)
	}
}

func (c *Client) retries(req *Request) int {
	if req.MaxRetries < 0 {
		return c.config.MaxRetries
	}
	return req.MaxRetries
}
