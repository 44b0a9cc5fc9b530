package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	replerr "formrepl/internal/errors"
	"formrepl/internal/metrics"
	"formrepl/internal/retry"
	"formrepl/tunnel"
	"formrepl/util"
)

// SSHListener accepts socket REPL connections on a remote SSH gateway.
// The gateway connection is retried with backoff; authentication and
// host-key failures are not retried.
type SSHListener struct {
	Tunnel      tunnel.Tunnel
	Gateway     string // user@host:port, for log lines
	BindAddress string
	Port        int
	Backoff     *retry.Backoff
	Logger      *util.Logger
	Metrics     *metrics.Collector
}

// NewSSHListener builds a listener around a fresh SSH tunnel.
func NewSSHListener(cfg *tunnel.SSHConfig, bindAddr string, port int, logger *util.Logger, m *metrics.Collector) *SSHListener {
	return &SSHListener{
		Tunnel:      tunnel.NewSSHTunnel(cfg, logger.Named("ssh"), m),
		Gateway:     fmt.Sprintf("%s@%s:%d", cfg.User, cfg.Host, cfg.Port),
		BindAddress: bindAddr,
		Port:        port,
		Backoff:     retry.DefaultBackoff(),
		Logger:      logger,
		Metrics:     m,
	}
}

// Listen connects to the gateway and requests the remote forward.
func (l *SSHListener) Listen(ctx context.Context) (net.Listener, error) {
	b := l.Backoff
	if b == nil {
		b = retry.DefaultBackoff()
	}
	policy := *b
	policy.Retryable = shouldRetry
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		l.Metrics.RecordError(fmt.Sprintf("ssh connect: %v", err))
		l.Logger.Warn("gateway %s attempt %d failed: %v (retrying in %s)",
			l.Gateway, attempt, err, wait.Truncate(time.Millisecond))
	}

	l.Logger.Verbose("connecting to SSH gateway %s", l.Gateway)
	err := policy.Do(ctx, func(int) error { return l.Tunnel.Connect(ctx) })
	if err != nil {
		return nil, err
	}

	ln, err := l.Tunnel.Listen(l.BindAddress, l.Port)
	if err != nil {
		l.Tunnel.Close()
		return nil, err
	}
	return ln, nil
}

// Close tears down the SSH connection.
func (l *SSHListener) Close() error {
	return l.Tunnel.Close()
}

// shouldRetry reports whether a gateway connection failure may go away
// on its own.  Credentials and host keys will not.
func shouldRetry(err error) bool {
	if errors.Is(err, replerr.ErrTunnelClosed) || errors.Is(err, replerr.ErrAuthFailed) {
		return false
	}
	var sshErr *replerr.SSHError
	if errors.As(err, &sshErr) {
		return sshErr.Op == "handshake"
	}
	return true
}
