package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Default header names.
const (
	DefaultRemainingHeader = "X-RateLimit-Remaining"
	DefaultResetHeader     = "X-RateLimit-Reset"
)

// ErrRateLimited is returned by Allow when the budget is critically low.
var ErrRateLimited = errors.New("upstream error limit critical, request blocked")

// Config holds the tracker configuration.
type Config struct {
	// RemainingHeader carries the number of errors left in the window.
	RemainingHeader string

	// ResetHeader carries the seconds until the window resets.
	ResetHeader string

	Thresholds Thresholds

	// ThrottleDelay is waited before a request in the warning band.
	ThrottleDelay time.Duration
}

// DefaultConfig returns the default tracker configuration.
func DefaultConfig() Config {
	return Config{
		RemainingHeader: DefaultRemainingHeader,
		ResetHeader:     DefaultResetHeader,
		Thresholds:      DefaultThresholds(),
		ThrottleDelay:   1 * time.Second,
	}
}

// Tracker monitors an upstream error budget and gates requests.
type Tracker struct {
	store  StateStore
	config Config
	logger zerolog.Logger
	now    func() time.Time
}

// NewTracker creates a new rate limit tracker.
// Panics if store is nil.
func NewTracker(store StateStore, cfg Config, logger zerolog.Logger) *Tracker {
	if store == nil {
		panic("ratelimit: state store must not be nil")
	}
	if cfg.RemainingHeader == "" {
		cfg.RemainingHeader = DefaultRemainingHeader
	}
	if cfg.ResetHeader == "" {
		cfg.ResetHeader = DefaultResetHeader
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}

	return &Tracker{
		store:  store,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

// GetState returns the current state, or a healthy default if no response
// has reported one yet.
func (t *Tracker) GetState(ctx context.Context) (State, error) {
	state, ok, err := t.store.Load(ctx)
	if err != nil {
		return State{}, err
	}
	if !ok {
		t.logger.Debug().Msg("No rate limit state stored, assuming healthy")
		return defaultState(t.now()), nil
	}
	return state, nil
}

// UpdateFromHeaders records the budget reported by a response. Responses
// without the remaining header are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(t.config.RemainingHeader)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", t.config.RemainingHeader, err)
	}

	resetStr := headers.Get(t.config.ResetHeader)
	if resetStr == "" {
		return fmt.Errorf("%s header missing", t.config.ResetHeader)
	}

	resetSeconds, err := strconv.Atoi(resetStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", t.config.ResetHeader, err)
	}

	now := t.now()
	state := State{
		Remaining:  remain,
		ResetAt:    now.Add(time.Duration(resetSeconds) * time.Second),
		LastUpdate: now,
	}

	if err := t.store.Save(ctx, state); err != nil {
		return err
	}

	RateLimitRemaining.Set(float64(remain))

	th := t.config.Thresholds
	switch {
	case state.NeedsCriticalBlock(th):
		t.logger.Error().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Upstream error limit critical, requests will be blocked")
	case state.NeedsThrottling(th):
		t.logger.Warn().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Upstream error limit warning, requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Bool("is_healthy", state.IsHealthy(th)).
			Msg("Rate limit state updated")
	}

	return nil
}

// Allow gates one request. It returns ErrRateLimited when the budget is
// critical and waits ThrottleDelay (or until ctx ends) in the warning band.
func (t *Tracker) Allow(ctx context.Context) error {
	state, err := t.GetState(ctx)
	if err != nil {
		return fmt.Errorf("get rate limit state: %w", err)
	}

	now := t.now()
	th := t.config.Thresholds

	// A window that already reset no longer restricts anything.
	if !state.ResetAt.IsZero() && !state.ResetAt.After(now) {
		return nil
	}

	if state.NeedsCriticalBlock(th) {
		RateLimitBlocksTotal.Inc()
		t.logger.Error().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset(now)).
			Msg("Upstream error limit critical, blocking request")
		return ErrRateLimited
	}

	if state.NeedsThrottling(th) && t.config.ThrottleDelay > 0 {
		RateLimitThrottlesTotal.Inc()
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Dur("delay", t.config.ThrottleDelay).
			Msg("Upstream error limit warning, throttling request")

		timer := time.NewTimer(t.config.ThrottleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return nil
}
