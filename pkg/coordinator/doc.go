// Package coordinator deduplicates concurrent requests for the same key and
// drives their retry loop.
//
// The first Submit for a key creates a pending operation and starts one
// goroutine that calls the factory until it succeeds, fails terminally or
// exhausts its retry budget. Every later Submit for the same key attaches a
// waiter to that operation instead of calling the factory again; its
// maxRetries argument is ignored. When the operation finishes, all waiters
// receive the same Result.
//
// Cancel detaches a single waiter. Its callback is never invoked. When the last
// waiter leaves, the operation's context is cancelled and the operation is
// removed, so a later Submit for the key starts fresh.
//
// Retry classification is delegated to apierr.IsTransient:
//
//	transient, budget left   -> retry (after optional backoff)
//	transient, budget empty  -> apierr.KindRetryExhausted
//	anything else            -> delivered as is
//	network unreachable      -> apierr.KindConnectivity, no attempt made
//
// Two hooks let a cache sit in front of the coordinator without races:
// OnSuccess runs under the registry lock before the operation is removed,
// and Recheck runs under the same lock before a new operation is created.
// A cache written in OnSuccess is therefore always visible to the Recheck of
// any Submit that would otherwise start a duplicate fetch.
package coordinator
