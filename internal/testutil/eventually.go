package testutil

import (
	"testing"
	"time"
)

// Eventually polls fn every interval until it returns nil or timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, interval time.Duration, fn func() error) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var lastErr error

	for time.Now().Before(deadline) {
		err := fn()
		if err == nil {
			return
		}
		lastErr = err
		time.Sleep(interval)
	}

	if lastErr != nil {
		t.Fatalf("condition not met: %v", lastErr)
	}
	t.Fatalf("condition not met before timeout")
}
