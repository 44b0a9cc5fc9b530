package util

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ParseListenSpec accepts "port", ":port" or "host:port" and returns the
// host (possibly empty) and port.  Port 0 is rejected.
func ParseListenSpec(spec string) (host string, port int, err error) {
	portStr := spec
	if strings.Contains(spec, ":") {
		host, portStr, err = net.SplitHostPort(spec)
		if err != nil {
			return "", 0, fmt.Errorf("invalid listen address %q: %w", spec, err)
		}
	}
	port, err = strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	if port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return host, port, nil
}

// FormatAddr returns "host:port".
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// FindFreePort returns an available TCP port on 127.0.0.1.
func FindFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("finding free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
