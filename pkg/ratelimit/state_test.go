package ratelimit

import (
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func TestState_IsStale(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		maxAge   time.Duration
		expected bool
	}{
		{
			name:     "fresh state",
			state:    State{LastUpdate: testNow},
			maxAge:   5 * time.Minute,
			expected: false,
		},
		{
			name:     "stale state",
			state:    State{LastUpdate: testNow.Add(-10 * time.Minute)},
			maxAge:   5 * time.Minute,
			expected: true,
		},
		{
			name:     "just under max age",
			state:    State{LastUpdate: testNow.Add(-4 * time.Minute)},
			maxAge:   5 * time.Minute,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsStale(testNow, tt.maxAge); got != tt.expected {
				t.Errorf("IsStale() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_Bands(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name      string
		remaining int
		critical  bool
		throttle  bool
		healthy   bool
	}{
		{"plenty", 100, false, false, true},
		{"at healthy threshold", th.Healthy, false, false, true},
		{"below healthy", th.Healthy - 1, false, false, false},
		{"at warning threshold", th.Warning, false, false, false},
		{"just below warning", th.Warning - 1, false, true, false},
		{"just above critical", th.Critical + 1, false, true, false},
		{"at critical threshold", th.Critical, false, true, false},
		{"just below critical", th.Critical - 1, true, false, false},
		{"zero", 0, true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := State{Remaining: tt.remaining}
			if got := s.NeedsCriticalBlock(th); got != tt.critical {
				t.Errorf("NeedsCriticalBlock() = %v, want %v", got, tt.critical)
			}
			if got := s.NeedsThrottling(th); got != tt.throttle {
				t.Errorf("NeedsThrottling() = %v, want %v", got, tt.throttle)
			}
			if got := s.IsHealthy(th); got != tt.healthy {
				t.Errorf("IsHealthy() = %v, want %v", got, tt.healthy)
			}
		})
	}
}

func TestState_TimeUntilReset(t *testing.T) {
	tests := []struct {
		name     string
		resetAt  time.Time
		expected time.Duration
	}{
		{"future", testNow.Add(30 * time.Second), 30 * time.Second},
		{"now", testNow, 0},
		{"past", testNow.Add(-time.Minute), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := State{ResetAt: tt.resetAt}
			if got := s.TimeUntilReset(testNow); got != tt.expected {
				t.Errorf("TimeUntilReset() = %v, want %v", got, tt.expected)
			}
		})
	}
}
