package tunnel

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	replerr "formrepl/internal/errors"
	"formrepl/internal/metrics"
	"formrepl/util"
)

// SSHTunnel implements [Tunnel] over a single SSH client connection.
type SSHTunnel struct {
	config  *SSHConfig
	logger  *util.Logger
	metrics *metrics.Collector

	mu        sync.RWMutex
	client    *ssh.Client
	alive     bool
	closed    bool
	listeners []net.Listener
	stop      chan struct{}
}

// NewSSHTunnel creates a tunnel that is ready to [SSHTunnel.Connect].
func NewSSHTunnel(cfg *SSHConfig, logger *util.Logger, m *metrics.Collector) *SSHTunnel {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = 30 * time.Second
	}
	return &SSHTunnel{config: cfg, logger: logger, metrics: m}
}

// Connect dials the SSH gateway and completes the handshake.  A
// connected tunnel starts its keepalive loop when configured.
func (t *SSHTunnel) Connect(ctx context.Context) error {
	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return replerr.ErrTunnelClosed
	}

	authMethods, err := BuildAuthMethods(t.config)
	if err != nil {
		return replerr.WrapSSH("auth", t.config.Host, t.config.Port, err)
	}

	hkCallback, err := hostKeyCallback(t.config)
	if err != nil {
		return replerr.WrapSSH("hostkey", t.config.Host, t.config.Port, err)
	}

	sshCfg := &ssh.ClientConfig{
		User:            t.config.User,
		Auth:            authMethods,
		HostKeyCallback: hkCallback,
		Timeout:         t.config.ConnTimeout,
		BannerCallback: func(msg string) error {
			if msg = strings.TrimSpace(msg); msg != "" {
				t.logger.Info("gateway: %s", msg)
			}
			return nil
		},
	}

	addr := net.JoinHostPort(t.config.Host, fmt.Sprint(t.config.Port))
	t.logger.Debug("SSH: dialing %s as %s", addr, t.config.User)

	dialer := net.Dialer{Timeout: t.config.ConnTimeout}
	tcpConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return replerr.Wrap("dial", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(tcpConn, addr, sshCfg)
	if err != nil {
		tcpConn.Close()
		if strings.Contains(err.Error(), "unable to authenticate") {
			err = fmt.Errorf("%w: %v", replerr.ErrAuthFailed, err)
		}
		return replerr.WrapSSH("handshake", t.config.Host, t.config.Port, err)
	}

	client := ssh.NewClient(sshConn, chans, reqs)
	stop := make(chan struct{})

	t.mu.Lock()
	t.client = client
	t.alive = true
	t.stop = stop
	t.mu.Unlock()

	t.logger.Verbose("SSH: connected to %s", addr)

	go t.monitor(client, stop)
	if t.config.KeepAlive > 0 {
		go t.keepalive(client, stop)
	}
	return nil
}

// Listen sends a tcpip-forward request for bindAddr:port and returns a
// listener yielding the gateway's forwarded connections.
func (t *SSHTunnel) Listen(bindAddr string, port int) (net.Listener, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, replerr.ErrTunnelClosed
	}
	if !t.alive || t.client == nil {
		return nil, replerr.ErrNotConnected
	}

	ln, err := listenRemoteForward(t.client, bindAddr, port)
	if err != nil {
		return nil, replerr.WrapSSH("forward", t.config.Host, t.config.Port, err)
	}
	t.listeners = append(t.listeners, ln)
	t.logger.Verbose("SSH: gateway %s accepting on %s", t.config.Host, ln.Addr())
	return ln, nil
}

// Close shuts down every listener and the SSH connection.
func (t *SSHTunnel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	t.alive = false

	for _, ln := range t.listeners {
		ln.Close()
	}
	t.listeners = nil

	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	if t.client != nil {
		err := t.client.Close()
		t.client = nil
		return err
	}
	return nil
}

// IsAlive reports whether the tunnel is still connected.
func (t *SSHTunnel) IsAlive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.alive
}

// monitor blocks until the SSH connection closes and flips the alive flag.
func (t *SSHTunnel) monitor(client *ssh.Client, stop <-chan struct{}) {
	err := client.Wait()

	t.mu.Lock()
	if t.client == client {
		t.alive = false
	}
	t.mu.Unlock()

	select {
	case <-stop:
		t.logger.Debug("SSH tunnel closed")
		return
	default:
	}
	if err != nil {
		t.logger.Warn("SSH gateway connection lost: %v", err)
	} else {
		t.logger.Warn("SSH gateway connection lost")
	}
	t.metrics.RecordError("ssh: gateway connection lost")
}

// keepalive probes the gateway until the tunnel stops.  A failed probe
// closes the client, which ends every forwarded listener's Accept.
func (t *SSHTunnel) keepalive(client *ssh.Client, stop <-chan struct{}) {
	ticker := time.NewTicker(t.config.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, _, err := client.SendRequest("keepalive@openssh.com", true, nil); err != nil {
				t.logger.Error("SSH keepalive failed: %v", err)
				client.Close()
				return
			}
			t.logger.Debug("SSH keepalive ok")
		}
	}
}
