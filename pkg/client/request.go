package client

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/fetchcache/pkg/apierr"
	"github.com/Sternrassler/fetchcache/pkg/cache"
)

// DefaultRetries makes a request use the client's configured retry budget.
const DefaultRetries = -1

// Request describes one keyed fetch.
type Request struct {
	// Name labels the request in logs.
	Name string

	// Method defaults to GET.
	Method string

	URL    string
	Header http.Header
	Body   []byte

	// Timeout bounds each attempt; 0 uses the HTTP client's timeout.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	// DefaultRetries (any negative value) uses Config.MaxRetries.
	MaxRetries int
}

// Get returns a GET request for rawURL using the default retry budget.
func Get(rawURL string) *Request {
	return &Request{Method: http.MethodGet, URL: rawURL, MaxRetries: DefaultRetries}
}

// Key returns the cache and coalescing key of the request.
func (r *Request) Key() string {
	return cache.Key{Method: r.method(), URL: r.URL, Body: r.Body}.String()
}

func (r *Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}

// clone returns a copy that later caller mutations cannot reach.
func (r *Request) clone() *Request {
	cp := *r
	cp.Header = r.Header.Clone()
	if r.Body != nil {
		cp.Body = append([]byte(nil), r.Body...)
	}
	return &cp
}

// validate reports a KindRequestConstruction error for descriptors that can
// never become an HTTP request.
func (r *Request) validate() error {
	if r == nil {
		return apierr.New(apierr.KindRequestConstruction, fmt.Errorf("nil request"))
	}

	u, err := url.Parse(r.URL)
	if err != nil {
		return apierr.New(apierr.KindRequestConstruction, fmt.Errorf("parse url: %w", err))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return apierr.New(apierr.KindRequestConstruction, fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
	if u.Host == "" {
		return apierr.New(apierr.KindRequestConstruction, fmt.Errorf("missing host in %q", r.URL))
	}
	if strings.ContainsAny(r.method(), " \t\r\n") {
		return apierr.New(apierr.KindRequestConstruction, fmt.Errorf("invalid method %q", r.Method))
	}
	return nil
}
