package errors

import (
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNetworkError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  NetworkError
		want string
	}{
		{
			name: "retryable",
			err:  NetworkError{Op: "dial", Addr: "example.com:80", Err: io.EOF, Retryable: true},
			want: "dial example.com:80: EOF (retryable)",
		},
		{
			name: "non-retryable",
			err:  NetworkError{Op: "listen", Addr: ":8080", Err: fmt.Errorf("bind failed")},
			want: "listen :8080: bind failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestNetworkError_Unwrap(t *testing.T) {
	err := &NetworkError{Op: "dial", Addr: "x", Err: io.EOF}
	assert.ErrorIs(t, err, io.EOF)
}

func TestSSHError_Format(t *testing.T) {
	err := WrapSSH("handshake", "bastion.example.com", 22, fmt.Errorf("connection refused"))
	assert.EqualError(t, err, "ssh handshake bastion.example.com:22: connection refused")
}

func TestSSHError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("auth fail")
	assert.ErrorIs(t, WrapSSH("auth", "host", 22, inner), inner)
}

func TestConfigError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  ConfigError
		want string
	}{
		{
			name: "with value and hint",
			err: ConfigError{
				Field:   "socket-repl",
				Value:   99999,
				Message: "out of range 1-65535",
				Hint:    "use a port between 1 and 65535",
			},
			want: "config: --socket-repl=99999: out of range 1-65535\n  hint: use a port between 1 and 65535",
		},
		{
			name: "missing value no hint",
			err: ConfigError{
				Field:   "remote-port",
				Message: "required with --expose",
			},
			want: "config: --remote-port: required with --expose",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestWrap(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	err := Wrap("dial", "10.0.0.1:22", inner)

	assert.Equal(t, "dial", err.Op)
	assert.Equal(t, "10.0.0.1:22", err.Addr)
	assert.False(t, err.Retryable)
	assert.ErrorIs(t, err, inner)
}

func TestWrap_TemporaryIsRetryable(t *testing.T) {
	opErr := &net.OpError{
		Op:  "accept",
		Net: "tcp",
		Err: &net.DNSError{IsTemporary: true},
	}
	assert.True(t, Wrap("accept", "127.0.0.1:8889", opErr).Retryable)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"exit error", &ExitError{Code: 3}, 3},
		{"wrapped exit error", fmt.Errorf("repl: %w", &ExitError{Code: 7}), 7},
		{"other", fmt.Errorf("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestExitError_Format(t *testing.T) {
	assert.EqualError(t, &ExitError{Code: 2}, "exit status 2")
}

func TestSentinels(t *testing.T) {
	sentinels := []error{
		ErrSessionClosed, ErrEvalInterrupted, ErrNotConnected,
		ErrAuthFailed, ErrTunnelClosed,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j {
				assert.False(t, errors.Is(a, b), "sentinel %d matches %d", i, j)
			}
		}
	}
}
