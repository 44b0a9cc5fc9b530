package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Socket(t *testing.T) {
	t.Setenv("FORMREPL_SOCKET_HOST", "0.0.0.0")
	t.Setenv("FORMREPL_SOCKET_PORT", "8888")
	t.Setenv("FORMREPL_READ_BUFFER", "4096")
	cfg := Default()
	LoadFromEnv(cfg)
	assert.Equal(t, "0.0.0.0", cfg.SocketHost)
	assert.Equal(t, 8888, cfg.SocketPort)
	assert.Equal(t, 4096, cfg.ReadBufSize)
}

func TestLoadFromEnv_Booleans(t *testing.T) {
	for _, v := range []string{"1", "true", "yes", "TRUE", "Yes"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("FORMREPL_DUMB_TERMINAL", v)
			t.Setenv("FORMREPL_NO_HISTORY", v)
			cfg := &Config{}
			LoadFromEnv(cfg)
			assert.True(t, cfg.DumbTerminal)
			assert.True(t, cfg.NoHistory)
		})
	}
}

func TestLoadFromEnv_ExitTokens(t *testing.T) {
	t.Setenv("FORMREPL_EXIT_TOKENS", " bye , :q,,")
	cfg := Default()
	LoadFromEnv(cfg)
	assert.Equal(t, []string{"bye", ":q"}, cfg.ExitTokens)
}

func TestLoadFromEnv_HighlightDelay(t *testing.T) {
	t.Setenv("FORMREPL_HIGHLIGHT_DELAY_MS", "250")
	cfg := Default()
	LoadFromEnv(cfg)
	assert.Equal(t, 250*time.Millisecond, cfg.HighlightDelay)
}

func TestLoadFromEnv_InvalidIntIgnored(t *testing.T) {
	t.Setenv("FORMREPL_SOCKET_PORT", "not-a-number")
	cfg := Default()
	LoadFromEnv(cfg)
	assert.Zero(t, cfg.SocketPort)
}

func TestLoadFromEnv_EmptyNoOverride(t *testing.T) {
	cfg := Default()
	cfg.Theme = "light"
	LoadFromEnv(cfg)
	assert.Equal(t, "light", cfg.Theme, "missing env should not override")
}

// ── config file ──────────────────────────────────────────────────────

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "formrepl.yaml")
	data := `
theme: light
init_ns: scratch
exit_tokens: [bye]
highlight_delay_ms: 100
no_history: true
socket:
  host: 0.0.0.0
  port: 8888
expose:
  gateway: admin@bastion:2222
  remote_port: 9000
verbose: 2
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg := Default()
	require.NoError(t, LoadFile(cfg, path, false))

	assert.Equal(t, "light", cfg.Theme)
	assert.Equal(t, "scratch", cfg.InitNamespace)
	assert.Equal(t, []string{"bye"}, cfg.ExitTokens)
	assert.Equal(t, 100*time.Millisecond, cfg.HighlightDelay)
	assert.True(t, cfg.NoHistory)
	assert.Equal(t, "0.0.0.0", cfg.SocketHost)
	assert.Equal(t, 8888, cfg.SocketPort)
	assert.Equal(t, "admin@bastion:2222", cfg.ExposeSpec)
	assert.Equal(t, 9000, cfg.RemotePort)
	assert.Equal(t, 2, cfg.Verbose)
	// Untouched fields keep their defaults.
	assert.Equal(t, DefaultReadBufSize, cfg.ReadBufSize)
}

func TestLoadFile_Missing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	assert.NoError(t, LoadFile(Default(), missing, true), "optional missing file should be ignored")
	assert.Error(t, LoadFile(Default(), missing, false), "explicit missing file should be an error")
}

func TestLoadFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("socket: [not, a, map"), 0o600))
	assert.Error(t, LoadFile(Default(), path, false))
}
