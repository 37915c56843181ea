// Package apierr defines the error taxonomy shared by the cache, the request
// coordinator and the client. Every failure that crosses a package boundary is
// an *Error carrying a Kind; callers match kinds with errors.Is against the
// sentinel values below.
package apierr

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a failure.
type Kind string

const (
	// KindConnectivity means the network was unreachable when an attempt was due.
	KindConnectivity Kind = "connectivity"

	// KindRequestConstruction means the request descriptor could not be turned
	// into a transport request. Never retried.
	KindRequestConstruction Kind = "request_construction"

	// KindTransport is a transient transport failure (network error, timeout,
	// non-2xx status). Retried within the budget.
	KindTransport Kind = "transport"

	// KindRetryExhausted is returned once transient failures used up the budget.
	KindRetryExhausted Kind = "retry_exhausted"

	// KindDecoding means the payload was fetched but could not be decoded into
	// the caller's type.
	KindDecoding Kind = "decoding"

	// KindCancelled is delivered to waiters of operations torn down by
	// CancelAll or Close, and returned by attempts whose context was cancelled.
	KindCancelled Kind = "cancelled"

	// KindUnknown covers everything else.
	KindUnknown Kind = "unknown"
)

// Sentinels for errors.Is.
var (
	ErrConnectivity        = errors.New("network connection appears to be offline")
	ErrRequestConstruction = errors.New("request could not be constructed")
	ErrTransport           = errors.New("transport failure")
	ErrRetryExhausted      = errors.New("retry attempts exhausted")
	ErrDecoding            = errors.New("decoding failed")
	ErrCancelled           = errors.New("operation cancelled")
	ErrUnknown             = errors.New("unknown error")
)

var sentinels = map[Kind]error{
	KindConnectivity:        ErrConnectivity,
	KindRequestConstruction: ErrRequestConstruction,
	KindTransport:           ErrTransport,
	KindRetryExhausted:      ErrRetryExhausted,
	KindDecoding:            ErrDecoding,
	KindCancelled:           ErrCancelled,
	KindUnknown:             ErrUnknown,
}

// Error is a classified failure.
type Error struct {
	Kind Kind

	// Key is the fingerprint of the request the error belongs to, if known.
	Key string

	// StatusCode is the upstream HTTP status for KindTransport errors (0 otherwise).
	StatusCode int

	// Attempts is the number of transport attempts made before the error was final.
	Attempts int

	// Err is the underlying cause.
	Err error
}

// New creates an *Error of the given kind wrapping cause.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Kind)
	if s, ok := sentinels[e.Kind]; ok {
		msg = s.Error()
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Attempts > 0 {
		msg = fmt.Sprintf("%s after %d attempts", msg, e.Attempts)
	}
	if e.Key != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Key)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of e's kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// KindOf returns the Kind of err. Plain context errors map to KindCancelled,
// anything else unclassified maps to KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindUnknown
}

// IsTransient reports whether err should be retried: transport failures and
// timeouts are, everything else is terminal.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == KindTransport {
			return true
		}
		if e.Kind != KindUnknown {
			return false
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// WithKey returns err with its Key set, allocating a KindUnknown wrapper when
// err is not already an *Error.
func WithKey(err error, key string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		cp := *e
		cp.Key = key
		return &cp
	}
	return &Error{Kind: KindUnknown, Key: key, Err: err}
}
