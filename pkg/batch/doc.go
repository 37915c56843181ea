// Package batch fetches many requests in parallel through a client.
//
// Every request still goes through the client's cache and coordinator, so
// duplicates inside a batch, or between a batch and other callers, cost a
// single upstream call. The batch fetcher only bounds how many requests are
// outstanding at once.
//
// Example usage:
//
//	f := batch.New(c, batch.DefaultConfig())
//	pages, err := f.FetchAll(ctx, batch.Pages(client.Get(url), "page", 1, 20))
//
// FetchAll returns the payloads of all successful requests keyed by their
// index in the input, together with the first error encountered. A failed
// request does not stop the others.
package batch
