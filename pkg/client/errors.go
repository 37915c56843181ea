package client

import (
	"errors"
	"net/http"

	"github.com/Sternrassler/fetchcache/pkg/ratelimit"
)

// ErrorClass is the observability classification of a transport failure.
// Every class is retried; the class only labels metrics and logs.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses and requests blocked by
	// the rate limit tracker.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassOther represents any other non-2xx status.
	ErrorClassOther ErrorClass = "other"
)

// classifyStatus categorizes a non-2xx status code.
func classifyStatus(code int) ErrorClass {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case code >= 400 && code < 500:
		return ErrorClassClient
	case code >= 500:
		return ErrorClassServer
	default:
		return ErrorClassOther
	}
}

// classifyError categorizes a failure that produced no response.
func classifyError(err error) ErrorClass {
	if errors.Is(err, ratelimit.ErrRateLimited) {
		return ErrorClassRateLimit
	}
	return ErrorClassNetwork
}
