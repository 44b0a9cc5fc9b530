// Package tunnel exposes the socket REPL on a remote SSH gateway.
//
// The gateway is asked to listen on a port of its own (RFC 4254 remote
// forwarding).  Connections arriving there are delivered as
// forwarded-tcpip channels and surfaced through a [net.Listener], so
// the socket server serves them exactly like local TCP connections.
package tunnel

import (
	"context"
	"net"
	"time"
)

// Tunnel abstracts an encrypted connection to a gateway that can accept
// inbound connections on the caller's behalf.
type Tunnel interface {
	// Connect establishes the tunnel to the gateway.
	Connect(ctx context.Context) error

	// Listen asks the gateway to accept connections on bindAddr:port.
	Listen(bindAddr string, port int) (net.Listener, error)

	// Close tears down the tunnel and every listener opened through it.
	Close() error

	// IsAlive reports whether the underlying connection is still up.
	IsAlive() bool
}

// SSHConfig holds everything needed to dial an SSH gateway.
type SSHConfig struct {
	User          string
	Host          string
	Port          int
	KeyPath       string
	PromptPass    bool
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string
	ConnTimeout   time.Duration

	// KeepAlive is the interval between keepalive probes.  Zero
	// disables probing; the tunnel then only notices a dead gateway
	// when the transport reports it.
	KeepAlive time.Duration

	// ReadPassword reads a secret from the user.  Nil means the
	// controlling terminal.
	ReadPassword func(prompt string) ([]byte, error)
}
