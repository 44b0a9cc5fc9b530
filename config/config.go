// Package config defines the runtime configuration for formrepl and
// provides helpers for parsing listen addresses and SSH gateway specs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	replerr "formrepl/internal/errors"
)

// Config holds every tuneable for one formrepl process.
type Config struct {
	// ── Terminal ─────────────────────────────────────────────────────
	DumbTerminal bool   // plain line reads, no history, no highlighting
	Theme        string // prompt theme: "dark", "light" or "none"
	HistoryPath  string // empty → DefaultHistoryPath()
	NoHistory    bool

	// ── REPL ─────────────────────────────────────────────────────────
	InitNamespace  string
	ExitTokens     []string
	HighlightDelay time.Duration

	// ── Socket REPL ──────────────────────────────────────────────────
	SocketSpec  string // raw [host:]port from --socket-repl
	SocketHost  string
	SocketPort  int // 0 → socket REPL disabled
	ReadBufSize int

	// ── SSH exposure of the socket REPL ──────────────────────────────
	ExposeSpec        string // raw user@host[:port] from --expose
	ExposeEnabled     bool
	ExposeUser        string
	ExposeHost        string
	ExposePort        int
	RemotePort        int
	RemoteBindAddress string
	SSHKeyPath        string
	SSHPassword       bool // true → prompt interactively
	UseSSHAgent       bool
	StrictHostKey     bool
	KnownHostsPath    string

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
	Stats   bool
}

// Default returns a Config populated with every default value.
func Default() *Config {
	return &Config{
		Theme:          DefaultTheme,
		InitNamespace:  DefaultNamespace,
		ExitTokens:     append([]string(nil), DefaultExitTokens...),
		HighlightDelay: DefaultHighlightDelay,
		SocketHost:     DefaultSocketHost,
		ReadBufSize:    DefaultReadBufSize,
		Verbose:        1,
	}
}

// SocketEnabled reports whether the socket REPL should be started,
// either on a local port or through an SSH gateway.
func (c *Config) SocketEnabled() bool {
	return c.SocketPort > 0 || c.ExposeEnabled
}

// HistoryEnabled reports whether the local session records history.
func (c *Config) HistoryEnabled() bool {
	return !c.DumbTerminal && !c.NoHistory
}

// ResolvedHistoryPath returns HistoryPath or the default under $HOME.
// An empty result means no home directory could be found.
func (c *Config) ResolvedHistoryPath() string {
	if c.HistoryPath != "" {
		return c.HistoryPath
	}
	return DefaultHistoryPath()
}

// DefaultHistoryPath returns ~/.formrepl_history, or "" without a home.
func DefaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, DefaultHistoryFile)
}

// ── Gateway-spec parser ──────────────────────────────────────────────

// gatewayRe matches [user@]host[:port].
var gatewayRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseGatewaySpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseGatewaySpec(spec string) (user, host string, port int, err error) {
	m := gatewayRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid gateway spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid gateway port %q", m[3])
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("gateway host is required")
	}
	return user, host, port, nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	switch c.Theme {
	case "dark", "light", "none":
	default:
		return &replerr.ConfigError{
			Field:   "theme",
			Value:   c.Theme,
			Message: "unknown theme",
			Hint:    "use one of dark, light, none",
		}
	}

	if c.SocketPort < 0 || c.SocketPort > 65535 {
		return &replerr.ConfigError{
			Field:   "socket-repl",
			Value:   c.SocketPort,
			Message: "out of range 1-65535",
			Hint:    "use a port between 1 and 65535",
		}
	}

	if c.ReadBufSize < 1 {
		return &replerr.ConfigError{Field: "read-buffer", Value: c.ReadBufSize, Message: "must be positive"}
	}

	if c.HighlightDelay <= 0 {
		return &replerr.ConfigError{Field: "highlight-delay", Value: c.HighlightDelay, Message: "must be positive"}
	}

	if len(c.ExitTokens) == 0 {
		return &replerr.ConfigError{
			Field:   "exit-tokens",
			Message: "at least one exit token is required",
			Hint:    "the default tokens are " + fmt.Sprint(DefaultExitTokens),
		}
	}

	if c.InitNamespace == "" {
		return &replerr.ConfigError{Field: "init-ns", Message: "namespace must not be empty"}
	}

	if c.ExposeEnabled {
		if c.ExposeHost == "" {
			return &replerr.ConfigError{Field: "expose", Message: "gateway host is required"}
		}
		if c.RemotePort < 1 || c.RemotePort > 65535 {
			return &replerr.ConfigError{
				Field:   "remote-port",
				Message: "required with --expose",
				Hint:    "pick the gateway port clients will connect to, e.g. --remote-port 8889",
			}
		}
	}

	return nil
}
