package transport

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	replerr "formrepl/internal/errors"
	"formrepl/internal/metrics"
	"formrepl/internal/retry"
	"formrepl/util"
)

func TestTCPListener_Listen(t *testing.T) {
	port, err := util.FindFreePort()
	require.NoError(t, err)
	l := &TCPListener{Host: "127.0.0.1", Port: port}
	ln, err := l.Listen(context.Background())
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		c.Write([]byte("user=> ")) //nolint:errcheck
		c.Close()
	}()

	conn, err := net.Dial("tcp", l.Addr())
	require.NoError(t, err)
	defer conn.Close()
	buf := make([]byte, 16)
	n, _ := conn.Read(buf)
	assert.Equal(t, "user=> ", string(buf[:n]))
}

func TestTCPListener_AddressInUse(t *testing.T) {
	first, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer first.Close()

	l := &TCPListener{Host: "127.0.0.1", Port: first.Addr().(*net.TCPAddr).Port}
	_, err = l.Listen(context.Background())
	var ne *replerr.NetworkError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "listen", ne.Op)
	assert.NoError(t, l.Close())
}

// fakeTunnel fails Connect a fixed number of times, then hands out
// local TCP listeners.
type fakeTunnel struct {
	failures   int
	connectErr error
	listenErr  error
	connects   int
	closed     bool
	bind       string
	port       int
}

func (f *fakeTunnel) Connect(context.Context) error {
	f.connects++
	if f.connects <= f.failures {
		return f.connectErr
	}
	return nil
}

func (f *fakeTunnel) Listen(bindAddr string, port int) (net.Listener, error) {
	f.bind, f.port = bindAddr, port
	if f.listenErr != nil {
		return nil, f.listenErr
	}
	return net.Listen("tcp", "127.0.0.1:0")
}

func (f *fakeTunnel) Close() error { f.closed = true; return nil }
func (f *fakeTunnel) IsAlive() bool { return !f.closed }

func newSSHListener(tun *fakeTunnel, logs *bytes.Buffer, m *metrics.Collector) *SSHListener {
	logger := util.NewLogger(2)
	logger.SetOutput(logs)
	return &SSHListener{
		Tunnel:      tun,
		Gateway:     "repl@gw:22",
		BindAddress: "0.0.0.0",
		Port:        8889,
		Backoff:     &retry.Backoff{InitialDelay: time.Millisecond, MaxAttempts: 4},
		Logger:      logger,
		Metrics:     m,
	}
}

func TestSSHListener_RetriesTransientFailures(t *testing.T) {
	tun := &fakeTunnel{failures: 2, connectErr: replerr.Wrap("dial", "gw:22", fmt.Errorf("connection refused"))}
	var logs bytes.Buffer
	m := metrics.New()
	l := newSSHListener(tun, &logs, m)

	ln, err := l.Listen(context.Background())
	require.NoError(t, err)
	defer ln.Close()

	assert.Equal(t, 3, tun.connects)
	assert.Equal(t, "0.0.0.0", tun.bind)
	assert.Equal(t, 8889, tun.port)
	assert.Equal(t, int64(2), m.ErrorCount())
	assert.Contains(t, logs.String(), "[WRN] gateway repl@gw:22 attempt 1 failed")
}

func TestSSHListener_AuthFailureIsPermanent(t *testing.T) {
	authErr := replerr.WrapSSH("handshake", "gw", 22, fmt.Errorf("%w: no supported methods", replerr.ErrAuthFailed))
	tun := &fakeTunnel{failures: 10, connectErr: authErr}
	var logs bytes.Buffer
	l := newSSHListener(tun, &logs, nil)

	_, err := l.Listen(context.Background())
	assert.ErrorIs(t, err, replerr.ErrAuthFailed)
	assert.Equal(t, 1, tun.connects)
}

func TestSSHListener_GivesUp(t *testing.T) {
	tun := &fakeTunnel{failures: 10, connectErr: fmt.Errorf("no route to host")}
	var logs bytes.Buffer
	l := newSSHListener(tun, &logs, nil)

	_, err := l.Listen(context.Background())
	assert.Error(t, err, "expected error after exhausting attempts")
	assert.Equal(t, 4, tun.connects)
}

func TestSSHListener_ForwardDeniedClosesTunnel(t *testing.T) {
	tun := &fakeTunnel{listenErr: replerr.WrapSSH("forward", "gw", 22, fmt.Errorf("denied"))}
	var logs bytes.Buffer
	l := newSSHListener(tun, &logs, nil)

	_, err := l.Listen(context.Background())
	assert.Error(t, err)
	assert.True(t, tun.closed, "tunnel should be closed after a denied forward")
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"dial", replerr.Wrap("dial", "gw:22", fmt.Errorf("refused")), true},
		{"handshake", replerr.WrapSSH("handshake", "gw", 22, fmt.Errorf("EOF")), true},
		{"auth config", replerr.WrapSSH("auth", "gw", 22, fmt.Errorf("no methods")), false},
		{"hostkey", replerr.WrapSSH("hostkey", "gw", 22, fmt.Errorf("mismatch")), false},
		{"auth failed", replerr.WrapSSH("handshake", "gw", 22, replerr.ErrAuthFailed), false},
		{"closed", replerr.ErrTunnelClosed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldRetry(tt.err))
		})
	}
}
