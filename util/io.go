package util

import (
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"unicode"
)

// IsWhitespace reports whether s is empty or consists only of
// whitespace.
func IsWhitespace(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}

// TrimLineEnding strips one trailing "\n" or "\r\n" from s.
func TrimLineEnding(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}

// SyncWriter serialises writes to an underlying writer and counts the
// bytes that made it through.
type SyncWriter struct {
	mu sync.Mutex
	w  io.Writer
	n  int64

	// OnWrite, if set, is called with the size of every successful write.
	OnWrite func(n int)
}

// NewSyncWriter wraps w.
func NewSyncWriter(w io.Writer) *SyncWriter {
	return &SyncWriter{w: w}
}

// Write implements io.Writer.
func (s *SyncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.w.Write(p)
	s.n += int64(n)
	if n > 0 && s.OnWrite != nil {
		s.OnWrite(n)
	}
	return n, err
}

// Written returns the total number of bytes written.
func (s *SyncWriter) Written() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// Flush flushes the underlying writer when it supports it.
func (s *SyncWriter) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Flush(s.w)
}

// Flush flushes w if it has a Flush or Sync method.
func Flush(w io.Writer) error {
	switch f := w.(type) {
	case interface{ Flush() error }:
		return f.Flush()
	case interface{ Sync() error }:
		// Terminals and pipes reject fsync; that is not a write failure.
		f.Sync() //nolint:errcheck
	}
	return nil
}

// IsHarmless returns true for errors that are expected when a peer
// hangs up or the listener is shut down.
func IsHarmless(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	// net.OpError wrapping "use of closed network connection"
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}
