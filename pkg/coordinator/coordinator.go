package coordinator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/Sternrassler/fetchcache/pkg/apierr"
	"github.com/Sternrassler/fetchcache/pkg/logging"
	"github.com/Sternrassler/fetchcache/pkg/reachability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrClosed is the cause delivered to submissions made after Close.
var ErrClosed = errors.New("coordinator is closed")

// Factory performs one attempt of the underlying operation.
type Factory func(ctx context.Context) ([]byte, error)

// Result is what every waiter of an operation receives.
// Each waiter gets its own copy of Payload.
type Result struct {
	Payload []byte
	Err     error

	// Cached reports that the Recheck hook answered without running the
	// factory.
	Cached bool
}

// Callback receives the outcome of an operation.
type Callback func(Result)

// Handle identifies one waiter of a pending operation.
type Handle struct {
	Key      string
	WaiterID uuid.UUID
}

// Config holds the retry timing configuration.
type Config struct {
	// AttemptTimeout bounds a single factory call; 0 means no bound.
	// An attempt that hits the bound counts as a transient failure.
	AttemptTimeout time.Duration

	// InitialBackoff is the wait before the first retry; 0 retries immediately.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential growth of the backoff.
	MaxBackoff time.Duration

	// BackoffMultiplier is the factor applied to the backoff after every retry.
	BackoffMultiplier float64
}

// DefaultConfig returns immediate retries without an attempt timeout.
func DefaultConfig() Config {
	return Config{
		AttemptTimeout:    0,
		InitialBackoff:    0,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithReachability sets the checker consulted before every attempt.
func WithReachability(r reachability.Checker) Option {
	return func(c *Coordinator) { c.reachability = r }
}

// WithLogger sets the coordinator logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithOnSuccess registers a hook called with the payload of every successful
// operation, under the registry lock, before its waiters are notified.
// The hook must not call back into the coordinator.
func WithOnSuccess(fn func(key string, payload []byte)) Option {
	return func(c *Coordinator) { c.onSuccess = fn }
}

// WithRecheck registers a hook consulted under the registry lock before a new
// operation is created. A hit completes the submission without a factory call.
// The hook must not call back into the coordinator.
func WithRecheck(fn func(key string) ([]byte, bool)) Option {
	return func(c *Coordinator) { c.recheck = fn }
}

// operation is one pending keyed request shared by all its waiters.
type operation struct {
	key     string
	ctx     context.Context
	cancel  context.CancelFunc
	waiters map[uuid.UUID]Callback

	// owned by the attempt goroutine
	retriesRemaining int
	attempts         int
}

// Coordinator is the registry of pending operations.
type Coordinator struct {
	mu      sync.Mutex
	pending map[string]*operation
	closed  bool
	wg      sync.WaitGroup

	config       Config
	reachability reachability.Checker
	onSuccess    func(key string, payload []byte)
	recheck      func(key string) ([]byte, bool)
	logger       zerolog.Logger
}

// New creates a Coordinator. Without WithReachability the network is assumed
// to be reachable.
func New(cfg Config, opts ...Option) *Coordinator {
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 1
	}

	c := &Coordinator{
		pending:      make(map[string]*operation),
		config:       cfg,
		reachability: reachability.Static(true),
		logger:       logging.NewLogger("coordinator"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit attaches cb to the pending operation for key, creating the operation
// if none exists. maxRetries only applies when a new operation is created.
//
// cb is invoked exactly once unless the waiter is cancelled first. It runs on
// the operation's goroutine, or synchronously inside Submit when the Recheck
// hook hits or the coordinator is closed.
func (c *Coordinator) Submit(key string, factory Factory, maxRetries int, cb Callback) Handle {
	h := Handle{Key: key, WaiterID: uuid.New()}

	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		cb(Result{Err: &apierr.Error{Kind: apierr.KindCancelled, Key: key, Err: ErrClosed}})
		return h
	}

	if op, ok := c.pending[key]; ok {
		op.waiters[h.WaiterID] = cb
		waiters := len(op.waiters)
		c.mu.Unlock()

		CoalescedWaiters.Inc()
		c.logger.Debug().
			Str("key", key).
			Int("waiters", waiters).
			Msg("Attached to pending operation")
		return h
	}

	if c.recheck != nil {
		if payload, ok := c.recheck(key); ok {
			c.mu.Unlock()
			cb(Result{Payload: payload, Cached: true})
			return h
		}
	}

	if maxRetries < 0 {
		maxRetries = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	op := &operation{
		key:              key,
		ctx:              ctx,
		cancel:           cancel,
		waiters:          map[uuid.UUID]Callback{h.WaiterID: cb},
		retriesRemaining: maxRetries,
	}
	c.pending[key] = op
	InflightOperations.Set(float64(len(c.pending)))
	c.wg.Add(1)
	c.mu.Unlock()

	c.logger.Debug().
		Str("key", key).
		Int("max_retries", maxRetries).
		Msg("Started operation")

	go c.run(op, factory)

	return h
}

// Do submits and blocks until the operation finishes or ctx ends. When ctx
// ends first, only this caller's waiter is cancelled.
func (c *Coordinator) Do(ctx context.Context, key string, factory Factory, maxRetries int) ([]byte, error) {
	r := c.Wait(ctx, key, factory, maxRetries)
	return r.Payload, r.Err
}

// Wait is Do returning the full Result.
func (c *Coordinator) Wait(ctx context.Context, key string, factory Factory, maxRetries int) Result {
	done := make(chan Result, 1)
	h := c.Submit(key, factory, maxRetries, func(r Result) { done <- r })

	select {
	case r := <-done:
		return r
	case <-ctx.Done():
		if c.Cancel(h.Key, h.WaiterID) {
			return Result{Err: &apierr.Error{Kind: apierr.KindCancelled, Key: key, Err: ctx.Err()}}
		}
		// The result is already on its way.
		return <-done
	}
}

// Cancel detaches the waiter. It reports whether the waiter was still
// attached. Removing the last waiter aborts the operation.
func (c *Coordinator) Cancel(key string, waiterID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	op, ok := c.pending[key]
	if !ok {
		return false
	}
	if _, ok := op.waiters[waiterID]; !ok {
		return false
	}
	delete(op.waiters, waiterID)

	if len(op.waiters) == 0 {
		delete(c.pending, key)
		op.cancel()
		InflightOperations.Set(float64(len(c.pending)))
		c.logger.Debug().Str("key", key).Msg("Last waiter left, operation aborted")
		return true
	}

	c.logger.Debug().
		Str("key", key).
		Int("waiters", len(op.waiters)).
		Msg("Waiter detached")
	return true
}

// CancelAll aborts every pending operation. Each attached waiter receives an
// apierr.KindCancelled error.
func (c *Coordinator) CancelAll() int {
	c.mu.Lock()
	ops := make([]*operation, 0, len(c.pending))
	for key, op := range c.pending {
		ops = append(ops, op)
		delete(c.pending, key)
	}
	InflightOperations.Set(0)
	c.mu.Unlock()

	for _, op := range ops {
		op.cancel()
		res := Result{Err: &apierr.Error{Kind: apierr.KindCancelled, Key: op.key, Err: context.Canceled}}
		for _, cb := range op.waiters {
			cb(res)
		}
	}

	if len(ops) > 0 {
		c.logger.Info().Int("operations", len(ops)).Msg("Cancelled all pending operations")
	}
	return len(ops)
}

// Pending returns the number of registered operations.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Waiters returns the number of waiters attached to key's operation.
func (c *Coordinator) Waiters(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if op, ok := c.pending[key]; ok {
		return len(op.waiters)
	}
	return 0
}

// Close cancels everything pending, rejects further submissions and waits
// for the attempt goroutines to return.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.CancelAll()
	c.wg.Wait()
	return nil
}

func (c *Coordinator) run(op *operation, factory Factory) {
	defer c.wg.Done()

	payload, err := c.attemptLoop(op, factory)
	c.finish(op, payload, err)
}

// attemptLoop calls factory until it succeeds, fails terminally or the retry
// budget is used up.
func (c *Coordinator) attemptLoop(op *operation, factory Factory) ([]byte, error) {
	backoff := c.config.InitialBackoff

	for {
		if err := op.ctx.Err(); err != nil {
			return nil, &apierr.Error{Kind: apierr.KindCancelled, Key: op.key, Attempts: op.attempts, Err: err}
		}

		if !c.reachability.IsOnline() {
			AttemptsTotal.WithLabelValues("offline").Inc()
			return nil, &apierr.Error{Kind: apierr.KindConnectivity, Key: op.key, Attempts: op.attempts}
		}

		op.attempts++
		payload, err := c.attempt(op.ctx, factory)
		if err == nil {
			AttemptsTotal.WithLabelValues("success").Inc()
			if op.attempts > 1 {
				c.logger.Info().
					Str("key", op.key).
					Int("attempt", op.attempts).
					Msg("Request succeeded after retry")
			}
			return payload, nil
		}

		if ctxErr := op.ctx.Err(); ctxErr != nil {
			return nil, &apierr.Error{Kind: apierr.KindCancelled, Key: op.key, Attempts: op.attempts, Err: ctxErr}
		}

		if !apierr.IsTransient(err) {
			AttemptsTotal.WithLabelValues("terminal").Inc()
			return nil, apierr.WithKey(err, op.key)
		}
		AttemptsTotal.WithLabelValues("transient").Inc()

		if op.retriesRemaining == 0 {
			RetryExhaustedTotal.Inc()
			c.logger.Error().
				Err(err).
				Str("key", op.key).
				Int("attempts", op.attempts).
				Msg("Retry attempts exhausted")
			return nil, &apierr.Error{Kind: apierr.KindRetryExhausted, Key: op.key, Attempts: op.attempts, Err: err}
		}
		op.retriesRemaining--
		RetriesTotal.Inc()

		c.logger.Warn().
			Err(err).
			Str("key", op.key).
			Int("attempt", op.attempts).
			Int("retries_remaining", op.retriesRemaining).
			Msg("Transient failure, retrying")

		if backoff > 0 {
			// ±20% jitter
			wait := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
			RetryBackoffSeconds.Observe(wait.Seconds())

			timer := time.NewTimer(wait)
			select {
			case <-op.ctx.Done():
				timer.Stop()
				return nil, &apierr.Error{Kind: apierr.KindCancelled, Key: op.key, Attempts: op.attempts, Err: op.ctx.Err()}
			case <-timer.C:
			}

			backoff = time.Duration(float64(backoff) * c.config.BackoffMultiplier)
			if c.config.MaxBackoff > 0 && backoff > c.config.MaxBackoff {
				backoff = c.config.MaxBackoff
			}
		}
	}
}

// attempt runs one factory call with the attempt timeout applied and turns a
// panic into an apierr.KindUnknown error.
func (c *Coordinator) attempt(ctx context.Context, factory Factory) (payload []byte, err error) {
	if c.config.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.AttemptTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			payload = nil
			err = apierr.New(apierr.KindUnknown, fmt.Errorf("factory panicked: %v", r))
		}
	}()

	return factory(ctx)
}

// finish removes op and notifies its waiters. An operation that was already
// removed by Cancel or CancelAll has no one left to notify.
func (c *Coordinator) finish(op *operation, payload []byte, err error) {
	c.mu.Lock()
	if c.pending[op.key] != op {
		c.mu.Unlock()
		return
	}

	if err == nil && c.onSuccess != nil {
		c.onSuccess(op.key, payload)
	}

	delete(c.pending, op.key)
	InflightOperations.Set(float64(len(c.pending)))
	callbacks := make([]Callback, 0, len(op.waiters))
	for _, cb := range op.waiters {
		callbacks = append(callbacks, cb)
	}
	c.mu.Unlock()

	op.cancel()

	if err != nil {
		c.logger.Debug().
			Str("key", op.key).
			Str("error_kind", string(apierr.KindOf(err))).
			Int("waiters", len(callbacks)).
			Msg("Operation failed")
	} else {
		c.logger.Debug().
			Str("key", op.key).
			Int("waiters", len(callbacks)).
			Int("attempt", op.attempts).
			Msg("Operation completed")
	}

	for _, cb := range callbacks {
		cb(Result{Payload: bytes.Clone(payload), Err: err})
	}
}
