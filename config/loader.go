package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Config file  (file.go)
//   4. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the FORMREPL_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if envBool("FORMREPL_DUMB_TERMINAL") {
		cfg.DumbTerminal = true
	}
	if v := os.Getenv("FORMREPL_THEME"); v != "" {
		cfg.Theme = v
	}
	if v := os.Getenv("FORMREPL_HISTORY"); v != "" {
		cfg.HistoryPath = v
	}
	if envBool("FORMREPL_NO_HISTORY") {
		cfg.NoHistory = true
	}
	if v := os.Getenv("FORMREPL_INIT_NS"); v != "" {
		cfg.InitNamespace = v
	}
	if v := os.Getenv("FORMREPL_EXIT_TOKENS"); v != "" {
		cfg.ExitTokens = splitList(v)
	}
	if v := envInt("FORMREPL_HIGHLIGHT_DELAY_MS"); v > 0 {
		cfg.HighlightDelay = time.Duration(v) * time.Millisecond
	}

	// Socket REPL
	if v := os.Getenv("FORMREPL_SOCKET_HOST"); v != "" {
		cfg.SocketHost = v
	}
	if v := envInt("FORMREPL_SOCKET_PORT"); v > 0 {
		cfg.SocketPort = v
	}
	if v := envInt("FORMREPL_READ_BUFFER"); v > 0 {
		cfg.ReadBufSize = v
	}

	// SSH exposure
	if v := os.Getenv("FORMREPL_EXPOSE"); v != "" {
		cfg.ExposeSpec = v
	}
	if v := envInt("FORMREPL_REMOTE_PORT"); v > 0 {
		cfg.RemotePort = v
	}
	if v := os.Getenv("FORMREPL_REMOTE_BIND_ADDRESS"); v != "" {
		cfg.RemoteBindAddress = v
	}
	if v := os.Getenv("FORMREPL_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("FORMREPL_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("FORMREPL_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("FORMREPL_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v := envInt("FORMREPL_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
	if envBool("FORMREPL_STATS") {
		cfg.Stats = true
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
