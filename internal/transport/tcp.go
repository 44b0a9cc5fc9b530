package transport

import (
	"context"
	"net"
	"strconv"

	replerr "formrepl/internal/errors"
)

// TCPListener listens on a local TCP address.
type TCPListener struct {
	Host string
	Port int // 0 picks an ephemeral port
}

// Addr returns the host:port the listener binds.
func (l *TCPListener) Addr() string {
	return net.JoinHostPort(l.Host, strconv.Itoa(l.Port))
}

// Listen binds the address.
func (l *TCPListener) Listen(ctx context.Context) (net.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", l.Addr())
	if err != nil {
		return nil, replerr.Wrap("listen", l.Addr(), err)
	}
	return ln, nil
}

// Close is a no-op for TCP.
func (l *TCPListener) Close() error { return nil }
