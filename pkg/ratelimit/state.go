package ratelimit

import (
	"time"
)

// Thresholds for rate limit decisions.
type Thresholds struct {
	// Critical blocks all requests when remaining falls below this value.
	Critical int

	// Warning throttles requests when remaining falls below this value.
	Warning int

	// Healthy marks the state healthy at or above this value.
	Healthy int
}

// DefaultThresholds returns the thresholds 5 / 20 / 50.
func DefaultThresholds() Thresholds {
	return Thresholds{Critical: 5, Warning: 20, Healthy: 50}
}

// State is the current error budget of an upstream.
type State struct {
	// Remaining is the number of errors allowed before the upstream blocks.
	Remaining int `json:"remaining"`

	// ResetAt is when the error window resets.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when the state was last read from response headers.
	LastUpdate time.Time `json:"last_update"`
}

// defaultState is assumed until the first response carried headers.
func defaultState(now time.Time) State {
	return State{
		Remaining:  100,
		ResetAt:    now.Add(60 * time.Second),
		LastUpdate: now,
	}
}

// IsStale reports whether the state is older than maxAge at now.
func (s State) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.LastUpdate) > maxAge
}

// IsHealthy reports whether no restriction applies.
func (s State) IsHealthy(th Thresholds) bool {
	return s.Remaining >= th.Healthy
}

// NeedsCriticalBlock reports whether requests must be blocked.
func (s State) NeedsCriticalBlock(th Thresholds) bool {
	return s.Remaining < th.Critical
}

// NeedsThrottling reports whether requests must be slowed down.
func (s State) NeedsThrottling(th Thresholds) bool {
	return s.Remaining < th.Warning && !s.NeedsCriticalBlock(th)
}

// TimeUntilReset returns the time left until the window resets, never negative.
func (s State) TimeUntilReset(now time.Time) time.Duration {
	d := s.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
