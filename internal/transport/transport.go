// Package transport decides where the socket REPL accepts connections:
// on a local TCP port, or on a remote SSH gateway through a reverse
// port forward.  Either way the server sees a plain [net.Listener].
package transport

import (
	"context"
	"net"
)

// Listener opens the listening endpoint for the socket REPL.
type Listener interface {
	// Listen opens the endpoint.  It may block while a remote gateway
	// is (re)tried; ctx cancels the attempt.
	Listen(ctx context.Context) (net.Listener, error)

	// Close releases any long-lived resources held by the transport
	// (e.g. an SSH connection).  Stateless transports return nil.
	Close() error
}
