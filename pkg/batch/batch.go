package batch

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/fetchcache/pkg/client"
	"github.com/Sternrassler/fetchcache/pkg/logging"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Config holds batch fetcher configuration.
type Config struct {
	// MaxConcurrency is the maximum number of requests in flight.
	MaxConcurrency int

	// Timeout bounds each request, retries included.
	Timeout time.Duration
}

// DefaultConfig returns 10 parallel requests with a 15 second timeout each.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 10,
		Timeout:        15 * time.Second,
	}
}

// Fetcher is what the batch fetcher needs from a client.
type Fetcher interface {
	Fetch(ctx context.Context, req *client.Request) ([]byte, error)
}

// BatchFetcher fetches request lists in parallel.
type BatchFetcher struct {
	fetcher Fetcher
	config  Config
	logger  zerolog.Logger
}

// New creates a batch fetcher. Non-positive settings fall back to the defaults.
func New(fetcher Fetcher, config Config) *BatchFetcher {
	def := DefaultConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = def.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
		logger:  logging.NewLogger("batch"),
	}
}

// FetchAll fetches every request and returns index -> payload for those that
// succeeded. The returned error reports the first failure; the map then holds
// partial results.
func (bf *BatchFetcher) FetchAll(ctx context.Context, reqs []*client.Request) (map[int][]byte, error) {
	start := time.Now()

	var (
		mu       sync.Mutex
		results  = make(map[int][]byte, len(reqs))
		firstErr error
		failed   int
	)

	// Failures are collected rather than returned so one bad request does
	// not cancel the rest of the batch.
	var g errgroup.Group
	g.SetLimit(bf.config.MaxConcurrency)

	for i, req := range reqs {
		i, req := i, req // per-iteration copies (go directive < 1.22)
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			reqCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
			defer cancel()

			data, err := bf.fetcher.Fetch(reqCtx, req)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				failed++
				if firstErr == nil {
					firstErr = fmt.Errorf("request %d: %w", i, err)
				}
				bf.logger.Warn().Err(err).Int("index", i).Msg("Batch request failed")
				return nil
			}
			results[i] = data
			return nil
		})
	}
	g.Wait()

	if firstErr == nil && ctx.Err() != nil && len(results) < len(reqs) {
		firstErr = ctx.Err()
	}

	if firstErr != nil {
		bf.logger.Warn().
			Err(firstErr).
			Int("fetched", len(results)).
			Int("failed", failed).
			Int("total", len(reqs)).
			Msg("Batch incomplete, returning partial results")
		return results, fmt.Errorf("batch incomplete (%d/%d fetched): %w", len(results), len(reqs), firstErr)
	}

	bf.logger.Info().
		Int("requests", len(reqs)).
		Dur("duration", time.Since(start)).
		Msg("Batch complete")

	return results, nil
}

// Pages returns one request per page in [first, last], each a copy of base
// with the query parameter param set to the page number.
func Pages(base *client.Request, param string, first, last int) []*client.Request {
	if last < first {
		return nil
	}

	reqs := make([]*client.Request, 0, last-first+1)
	for page := first; page <= last; page++ {
		req := *base
		req.URL = withQuery(base.URL, param, strconv.Itoa(page))
		reqs = append(reqs, &req)
	}
	return reqs
}

func withQuery(rawURL, param, value string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		// Left unchanged so the client reports the construction error.
		return rawURL
	}
	q := u.Query()
	q.Set(param, value)
	u.RawQuery = q.Encode()
	return u.String()
}
