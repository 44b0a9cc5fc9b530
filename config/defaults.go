package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, the config file, and environment variable loading.

const (
	// DefaultTheme is the prompt colour theme used in rich mode.
	DefaultTheme = "dark"

	// DefaultNamespace is the namespace every session starts in.
	DefaultNamespace = "user"

	// DefaultHistoryFile is the history file name under $HOME.
	DefaultHistoryFile = ".formrepl_history"

	// DefaultConfigFile is the YAML config file name under $HOME.
	DefaultConfigFile = ".formrepl.yaml"

	// DefaultSocketHost is the bind address for the socket REPL.
	DefaultSocketHost = "127.0.0.1"

	// DefaultSocketPort is the conventional socket REPL port, used when
	// the socket REPL is enabled without an explicit port.
	DefaultSocketPort = 8889

	// DefaultReadBufSize bounds a single socket read; one read is one
	// physical input line.
	DefaultReadBufSize = 2000

	// DefaultHighlightDelay is how long a matched opening bracket stays
	// highlighted before the cursor is restored.
	DefaultHighlightDelay = 500 * time.Millisecond

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultConnTimeout is the SSH gateway connection timeout.
	DefaultConnTimeout = 30 * time.Second

	// DefaultKeepAlive is the interval between SSH keepalive probes.
	DefaultKeepAlive = 30 * time.Second

	// DefaultMaxConnectAttempts is how many times the SSH gateway
	// connection is attempted before the socket REPL gives up.
	DefaultMaxConnectAttempts = 5

	// DefaultGracePeriod is how long shutdown waits for session handlers.
	DefaultGracePeriod = 2 * time.Second
)

// DefaultExitTokens end a session when typed as the whole input.
var DefaultExitTokens = []string{":repl/quit", "quit", "exit"} //nolint:gochecknoglobals
