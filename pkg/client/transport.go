package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/fetchcache/pkg/apierr"
	"github.com/Sternrassler/fetchcache/pkg/logging"
	"github.com/Sternrassler/fetchcache/pkg/ratelimit"
	"github.com/rs/zerolog"
)

// Transport performs one attempt of a request. Errors should be *apierr.Error;
// apierr.IsTransient decides whether the coordinator retries them.
type Transport interface {
	Invoke(ctx context.Context, req *Request) ([]byte, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *Request) ([]byte, error)

// Invoke implements Transport.
func (f TransportFunc) Invoke(ctx context.Context, req *Request) ([]byte, error) {
	return f(ctx, req)
}

// HTTPTransport is the net/http Transport.
type HTTPTransport struct {
	httpClient *http.Client
	userAgent  string
	limiter    *ratelimit.Tracker
	logger     zerolog.Logger
}

// TransportOption customizes an HTTPTransport.
type TransportOption func(*HTTPTransport)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(c *http.Client) TransportOption {
	return func(t *HTTPTransport) { t.httpClient = c }
}

// WithRateLimiter gates every attempt through the tracker and feeds it the
// response headers.
func WithRateLimiter(tracker *ratelimit.Tracker) TransportOption {
	return func(t *HTTPTransport) { t.limiter = tracker }
}

// WithTransportLogger sets the transport logger.
func WithTransportLogger(logger zerolog.Logger) TransportOption {
	return func(t *HTTPTransport) { t.logger = logger }
}

// NewHTTPTransport creates an HTTPTransport sending userAgent on every request.
func NewHTTPTransport(userAgent string, opts ...TransportOption) *HTTPTransport {
	t := &HTTPTransport{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		userAgent:  userAgent,
		logger:     logging.NewLogger("transport"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Invoke implements Transport. A 2xx response yields its body; any other
// status, a network failure, an expired deadline or a blocked rate limit gate
// is a transient apierr.KindTransport error. A cancelled ctx yields
// apierr.KindCancelled.
func (t *HTTPTransport) Invoke(ctx context.Context, req *Request) ([]byte, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method(), req.URL, body)
	if err != nil {
		return nil, apierr.New(apierr.KindRequestConstruction, fmt.Errorf("create request: %w", err))
	}
	for name, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}
	if httpReq.Header.Get("User-Agent") == "" && t.userAgent != "" {
		httpReq.Header.Set("User-Agent", t.userAgent)
	}

	if t.limiter != nil {
		if err := t.limiter.Allow(ctx); err != nil {
			if errors.Is(err, ratelimit.ErrRateLimited) {
				TransportErrorsTotal.WithLabelValues(string(classifyError(err))).Inc()
				return nil, apierr.New(apierr.KindTransport, err)
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, contextError(ctxErr)
			}
			// Unknown state must not stop traffic.
			t.logger.Warn().Err(err).Msg("Rate limit check failed")
		}
	}

	t.logger.Debug().
		Str("method", httpReq.Method).
		Str("url", req.URL).
		Str("name", req.Name).
		Msg("Executing request")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, contextError(ctxErr)
		}
		TransportErrorsTotal.WithLabelValues(string(classifyError(err))).Inc()
		TransportRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, apierr.New(apierr.KindTransport, err)
	}
	defer resp.Body.Close()

	if t.limiter != nil {
		if err := t.limiter.UpdateFromHeaders(ctx, resp.Header); err != nil {
			t.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
		}
	}

	TransportRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		class := classifyStatus(resp.StatusCode)
		TransportErrorsTotal.WithLabelValues(string(class)).Inc()

		t.logger.Warn().
			Str("url", req.URL).
			Int("status_code", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Upstream request error")

		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &apierr.Error{
			Kind:       apierr.KindTransport,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s %s: %s", httpReq.Method, req.URL, resp.Status),
		}
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, contextError(ctxErr)
		}
		TransportErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, apierr.New(apierr.KindTransport, fmt.Errorf("read body: %w", err))
	}

	return payload, nil
}

// contextError classifies an ended attempt context: a deadline is a transient
// transport failure, a cancellation is final.
func contextError(err error) *apierr.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apierr.New(apierr.KindTransport, err)
	}
	return apierr.New(apierr.KindCancelled, err)
}
