// Package ratelimit tracks an upstream's error budget and gates requests
// before the budget runs out.
//
// Many APIs report how many more errors a client may produce in the current
// window through a pair of response headers (by default X-RateLimit-Remaining
// and X-RateLimit-Reset, the latter in seconds until the window resets). The
// Tracker reads them after every response and consults the recorded state
// before every request:
//
//	remaining >= Healthy   healthy, no restriction
//	remaining <  Warning   throttle: wait ThrottleDelay before the request
//	remaining <  Critical  block: the request fails with ErrRateLimited
//
// State lives in a StateStore. MemoryStore keeps it in process; RedisStore
// shares it between every instance talking to the same upstream.
package ratelimit
