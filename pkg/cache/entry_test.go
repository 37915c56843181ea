package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"
)

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:bodyDigestLen])
}

func TestEntry_Touch(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e := newEntry("k", []byte("v"), base)

	if e.AccessCount != 0 {
		t.Fatalf("new entry AccessCount = %d, want 0", e.AccessCount)
	}
	if !e.CreatedAt.Equal(base) || !e.LastAccessAt.Equal(base) {
		t.Fatalf("new entry timestamps = %v/%v, want %v", e.CreatedAt, e.LastAccessAt, base)
	}

	e.touch(base.Add(time.Second))
	if e.AccessCount != 1 {
		t.Errorf("AccessCount = %d, want 1", e.AccessCount)
	}
	if !e.LastAccessAt.Equal(base.Add(time.Second)) {
		t.Errorf("LastAccessAt = %v, want %v", e.LastAccessAt, base.Add(time.Second))
	}

	// A clock that steps backwards must not move LastAccessAt backwards.
	e.touch(base)
	if e.AccessCount != 2 {
		t.Errorf("AccessCount = %d, want 2", e.AccessCount)
	}
	if !e.LastAccessAt.Equal(base.Add(time.Second)) {
		t.Errorf("LastAccessAt moved backwards to %v", e.LastAccessAt)
	}
}

func TestEntry_AgeAndIdle(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e := newEntry("k", nil, base)
	e.touch(base.Add(2 * time.Minute))

	now := base.Add(5 * time.Minute)
	if got := e.Age(now); got != 5*time.Minute {
		t.Errorf("Age() = %v, want 5m", got)
	}
	if got := e.IdleFor(now); got != 3*time.Minute {
		t.Errorf("IdleFor() = %v, want 3m", got)
	}
}
