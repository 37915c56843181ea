package cache

import (
	"time"
)

// Entry is a cached payload together with its access bookkeeping.
type Entry struct {
	// Key is the request fingerprint the payload was stored under.
	Key string

	// Payload is the raw response body.
	Payload []byte

	// CreatedAt is when the entry was stored or last overwritten.
	CreatedAt time.Time

	// LastAccessAt is when the entry was last returned by Get.
	LastAccessAt time.Time

	// AccessCount is the number of successful Get calls since CreatedAt.
	AccessCount int
}

func newEntry(key string, payload []byte, now time.Time) *Entry {
	return &Entry{
		Key:          key,
		Payload:      payload,
		CreatedAt:    now,
		LastAccessAt: now,
	}
}

// touch records a read. LastAccessAt never moves backwards.
func (e *Entry) touch(now time.Time) {
	e.AccessCount++
	if now.After(e.LastAccessAt) {
		e.LastAccessAt = now
	}
}

// Age returns the time since the entry was stored.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

// IdleFor returns the time since the entry was last read.
func (e *Entry) IdleFor(now time.Time) time.Duration {
	return now.Sub(e.LastAccessAt)
}
