package cache

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PolicyType identifies a cleanup strategy.
type PolicyType string

const (
	// PolicyClearAll removes every entry.
	PolicyClearAll PolicyType = "all"

	// PolicyOlderThan removes every entry whose last access is older than MaxAge.
	PolicyOlderThan PolicyType = "older-than"

	// PolicyBelowAccessCount removes every entry read fewer than Threshold times.
	PolicyBelowAccessCount PolicyType = "below-count"

	// PolicyLeastFrequentlyUsed removes the single entry with the lowest access count.
	PolicyLeastFrequentlyUsed PolicyType = "lfu"

	// PolicyLeastRecentlyUsed removes the single entry with the oldest last access.
	PolicyLeastRecentlyUsed PolicyType = "lru"
)

// DefaultAccessThreshold is the threshold used by ParsePolicy for a bare
// "below-count".
const DefaultAccessThreshold = 3

// ErrInvalidPolicy indicates a policy that cannot be applied.
var ErrInvalidPolicy = errors.New("invalid cleanup policy")

// Policy is a cleanup strategy. Build one with the constructors below.
type Policy struct {
	Type PolicyType

	// Threshold is the access count bound for PolicyBelowAccessCount.
	Threshold int

	// MaxAge is the idle bound for PolicyOlderThan.
	MaxAge time.Duration
}

// ClearAll returns a policy that empties the store.
func ClearAll() Policy { return Policy{Type: PolicyClearAll} }

// EvictOlderThan returns a policy that removes entries not read within d.
func EvictOlderThan(d time.Duration) Policy { return Policy{Type: PolicyOlderThan, MaxAge: d} }

// EvictBelowAccessCount returns a policy that removes entries read fewer than n times.
func EvictBelowAccessCount(n int) Policy {
	return Policy{Type: PolicyBelowAccessCount, Threshold: n}
}

// EvictLeastFrequentlyUsed returns a policy that removes one least read entry.
// Ties are broken by map iteration order and are not stable.
func EvictLeastFrequentlyUsed() Policy { return Policy{Type: PolicyLeastFrequentlyUsed} }

// EvictLeastRecentlyUsed returns a policy that removes one least recently read entry.
func EvictLeastRecentlyUsed() Policy { return Policy{Type: PolicyLeastRecentlyUsed} }

// Validate checks that the policy is applicable.
func (p Policy) Validate() error {
	switch p.Type {
	case PolicyClearAll, PolicyLeastFrequentlyUsed, PolicyLeastRecentlyUsed:
		return nil
	case PolicyOlderThan:
		if p.MaxAge < 0 {
			return fmt.Errorf("%w: negative max age %v", ErrInvalidPolicy, p.MaxAge)
		}
		return nil
	case PolicyBelowAccessCount:
		if p.Threshold < 0 {
			return fmt.Errorf("%w: negative threshold %d", ErrInvalidPolicy, p.Threshold)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidPolicy, p.Type)
	}
}

// String renders the policy in the form accepted by ParsePolicy.
func (p Policy) String() string {
	switch p.Type {
	case PolicyOlderThan:
		return fmt.Sprintf("%s:%s", p.Type, p.MaxAge)
	case PolicyBelowAccessCount:
		return fmt.Sprintf("%s:%d", p.Type, p.Threshold)
	default:
		return string(p.Type)
	}
}

// ParsePolicy parses "all", "lru", "lfu", "below-count[:N]" or
// "older-than:DURATION".
func ParsePolicy(s string) (Policy, error) {
	name, arg, hasArg := strings.Cut(strings.ToLower(strings.TrimSpace(s)), ":")

	var p Policy
	switch PolicyType(name) {
	case PolicyClearAll:
		p = ClearAll()
	case PolicyLeastRecentlyUsed:
		p = EvictLeastRecentlyUsed()
	case PolicyLeastFrequentlyUsed:
		p = EvictLeastFrequentlyUsed()
	case PolicyBelowAccessCount:
		n := DefaultAccessThreshold
		if hasArg {
			v, err := strconv.Atoi(arg)
			if err != nil {
				return Policy{}, fmt.Errorf("%w: parse threshold %q: %v", ErrInvalidPolicy, arg, err)
			}
			n = v
		}
		p = EvictBelowAccessCount(n)
	case PolicyOlderThan:
		if !hasArg {
			return Policy{}, fmt.Errorf("%w: %s requires a duration", ErrInvalidPolicy, name)
		}
		d, err := time.ParseDuration(arg)
		if err != nil {
			return Policy{}, fmt.Errorf("%w: parse duration %q: %v", ErrInvalidPolicy, arg, err)
		}
		p = EvictOlderThan(d)
	default:
		return Policy{}, fmt.Errorf("%w: unknown type %q", ErrInvalidPolicy, name)
	}

	return p, p.Validate()
}

// victims returns the keys the policy removes from entries at time now.
func (p Policy) victims(entries map[string]*Entry, now time.Time) []string {
	var keys []string

	switch p.Type {
	case PolicyClearAll:
		keys = make([]string, 0, len(entries))
		for key := range entries {
			keys = append(keys, key)
		}

	case PolicyOlderThan:
		cutoff := now.Add(-p.MaxAge)
		for key, e := range entries {
			if e.LastAccessAt.Before(cutoff) {
				keys = append(keys, key)
			}
		}

	case PolicyBelowAccessCount:
		for key, e := range entries {
			if e.AccessCount < p.Threshold {
				keys = append(keys, key)
			}
		}

	case PolicyLeastFrequentlyUsed:
		if key, ok := leastFrequent(entries); ok {
			keys = append(keys, key)
		}

	case PolicyLeastRecentlyUsed:
		if key, ok := leastRecent(entries); ok {
			keys = append(keys, key)
		}
	}

	return keys
}

func leastFrequent(entries map[string]*Entry) (string, bool) {
	var (
		victim string
		lowest int
		found  bool
	)
	for key, e := range entries {
		if !found || e.AccessCount < lowest {
			victim, lowest, found = key, e.AccessCount, true
		}
	}
	return victim, found
}

// leastRecent treats the first scanned entry as a candidate, so a non-empty
// map always yields a victim.
func leastRecent(entries map[string]*Entry) (string, bool) {
	var (
		victim string
		oldest time.Time
		found  bool
	)
	for key, e := range entries {
		if !found || e.LastAccessAt.Before(oldest) {
			victim, oldest, found = key, e.LastAccessAt, true
		}
	}
	return victim, found
}
