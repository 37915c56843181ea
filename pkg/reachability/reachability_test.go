package reachability

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	assert.True(t, Static(true).IsOnline())
	assert.False(t, Static(false).IsOnline())
}

func TestSwitch(t *testing.T) {
	s := NewSwitch(true)
	assert.True(t, s.IsOnline())

	s.Set(false)
	assert.False(t, s.IsOnline())
}

func TestProbe_RealListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	p := NewProbe(ln.Addr().String(), WithLogger(zerolog.Nop()))
	assert.True(t, p.IsOnline())
}

func TestProbe_CachesResultForTTL(t *testing.T) {
	dials := 0
	fail := false
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		dials++
		if fail {
			return nil, errors.New("connection refused")
		}
		client, server := net.Pipe()
		server.Close()
		return client, nil
	}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewProbe("upstream:443", WithDialer(dial), WithTTL(time.Minute), WithLogger(zerolog.Nop()))
	p.now = func() time.Time { return now }

	require.True(t, p.IsOnline())
	require.True(t, p.IsOnline())
	assert.Equal(t, 1, dials, "second call within TTL must reuse the result")

	fail = true
	now = now.Add(2 * time.Minute)
	assert.False(t, p.IsOnline())
	assert.Equal(t, 2, dials)
}
