// Package reachability answers the single question the request coordinator
// asks before every transport attempt: is the network reachable right now?
package reachability

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/fetchcache/pkg/logging"
	"github.com/rs/zerolog"
)

// Checker reports whether the network is currently reachable.
type Checker interface {
	IsOnline() bool
}

// Static is a Checker with a fixed answer.
type Static bool

// IsOnline implements Checker.
func (s Static) IsOnline() bool { return bool(s) }

// Switch is a Checker whose answer can be flipped at runtime.
type Switch struct {
	online atomic.Bool
}

// NewSwitch returns a Switch starting in the given state.
func NewSwitch(online bool) *Switch {
	s := &Switch{}
	s.online.Store(online)
	return s
}

// IsOnline implements Checker.
func (s *Switch) IsOnline() bool { return s.online.Load() }

// Set changes the reported state.
func (s *Switch) Set(online bool) { s.online.Store(online) }

// Probe default settings.
const (
	DefaultProbeTimeout = 2 * time.Second
	DefaultProbeTTL     = 5 * time.Second
)

// DialFunc opens a connection; net.Dialer.DialContext satisfies it.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// ProbeOption customizes a Probe.
type ProbeOption func(*Probe)

// WithTimeout sets the dial timeout.
func WithTimeout(d time.Duration) ProbeOption {
	return func(p *Probe) { p.timeout = d }
}

// WithTTL sets how long a probe result is reused.
func WithTTL(d time.Duration) ProbeOption {
	return func(p *Probe) { p.ttl = d }
}

// WithDialer replaces the TCP dialer.
func WithDialer(dial DialFunc) ProbeOption {
	return func(p *Probe) { p.dial = dial }
}

// WithLogger sets the probe logger.
func WithLogger(logger zerolog.Logger) ProbeOption {
	return func(p *Probe) { p.logger = logger }
}

// Probe decides reachability by opening a TCP connection to a well-known
// address. Results are cached for the TTL so that a burst of attempts costs
// a single dial.
type Probe struct {
	addr    string
	timeout time.Duration
	ttl     time.Duration
	dial    DialFunc
	now     func() time.Time
	logger  zerolog.Logger

	mu      sync.Mutex
	checked time.Time
	online  bool
}

// NewProbe creates a Probe for addr ("host:port").
func NewProbe(addr string, opts ...ProbeOption) *Probe {
	p := &Probe{
		addr:    addr,
		timeout: DefaultProbeTimeout,
		ttl:     DefaultProbeTTL,
		dial:    (&net.Dialer{}).DialContext,
		now:     time.Now,
		logger:  logging.NewLogger("reachability"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IsOnline implements Checker.
func (p *Probe) IsOnline() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if !p.checked.IsZero() && now.Sub(p.checked) < p.ttl {
		return p.online
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	online := true
	conn, err := p.dial(ctx, "tcp", p.addr)
	if err != nil {
		online = false
	} else {
		conn.Close()
	}

	if online != p.online || p.checked.IsZero() {
		ev := p.logger.Info()
		if !online {
			ev = p.logger.Warn().Err(err)
		}
		ev.Str("addr", p.addr).Bool("online", online).Msg("Reachability changed")
	}

	p.online = online
	p.checked = now
	return online
}
