// Package session holds per-client REPL state and the manager that
// owns it.
//
// A Session is exclusively owned by the goroutine driving it (the local
// terminal loop or one socket handler).  Only the Manager's registry is
// shared, and it has its own lock.
package session

import (
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"formrepl/internal/metrics"
	"formrepl/util"
)

// LocalID identifies the session bound to the process's terminal.
const LocalID int64 = 0

// Recorder receives lines worth keeping in history.
type Recorder interface {
	Add(line string) error
}

// Session is one client's input state.
type Session struct {
	ID        int64
	Namespace string
	Prompt    string

	// Buffer is the text accumulated since the last complete form.
	Buffer string

	// Lines are the physical lines that contributed to Buffer, oldest
	// first.  They feed bracket matching across continuation lines.
	Lines []string

	IndentHint int

	// Sink receives everything evaluation prints for this session.
	Sink io.Writer

	// History is nil for sessions that keep no history.
	History Recorder

	// Closer, if set, is closed when the manager shuts the session down.
	Closer io.Closer

	Logger *util.Logger
}

// IsLocal reports whether s is bound to the process's terminal.
func (s *Session) IsLocal() bool { return s.ID == LocalID }

// Append adds one physical line to the buffer.
func (s *Session) Append(line string) {
	if s.Buffer == "" {
		s.Buffer = line
	} else {
		s.Buffer += "\n" + line
	}
	s.Lines = append(s.Lines, line)
}

// Reset discards any partial input.
func (s *Session) Reset() {
	s.Buffer = ""
	s.Lines = nil
	s.IndentHint = 0
}

// Pending reports whether a partial form is buffered.
func (s *Session) Pending() bool {
	return strings.TrimSpace(s.Buffer) != ""
}

// Manager creates and tracks sessions.
type Manager struct {
	Metrics *metrics.Collector
	Logger  *util.Logger

	nextID atomic.Int64

	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewManager returns an empty manager.
func NewManager(m *metrics.Collector, logger *util.Logger) *Manager {
	return &Manager{
		Metrics:  m,
		Logger:   logger,
		sessions: make(map[int64]*Session),
	}
}

// Local registers the terminal session.
func (m *Manager) Local(ns string, sink io.Writer, hist Recorder) *Session {
	s := m.register(LocalID, ns, sink)
	s.History = hist
	return s
}

// Open registers a network session with a fresh non-zero identity.
func (m *Manager) Open(ns string, sink io.Writer, closer io.Closer) *Session {
	s := m.register(m.nextID.Add(1), ns, sink)
	s.Closer = closer
	return s
}

func (m *Manager) register(id int64, ns string, sink io.Writer) *Session {
	s := &Session{ID: id, Namespace: ns, Sink: sink}
	if m.Logger != nil {
		if id == LocalID {
			s.Logger = m.Logger.Named("local")
		} else {
			s.Logger = m.Logger.Named("session " + strconv.FormatInt(id, 10))
		}
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.Metrics.SessionOpened()
	if s.Logger != nil {
		s.Logger.Verbose("opened")
	}
	return s
}

// Close removes s from the registry.  It does not close s.Closer; the
// session's owner does that.
func (m *Manager) Close(s *Session) {
	m.mu.Lock()
	cur, ok := m.sessions[s.ID]
	ok = ok && cur == s
	if ok {
		delete(m.sessions, s.ID)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	m.Metrics.SessionClosed()
	if s.Logger != nil {
		s.Logger.Verbose("closed")
	}
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll closes every network session's connection.  Their handlers
// observe the failed read and call Close themselves.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	closers := make([]io.Closer, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s.Closer != nil {
			closers = append(closers, s.Closer)
		}
	}
	m.mu.Unlock()

	for _, c := range closers {
		c.Close() //nolint:errcheck
	}
}
