// Package metrics provides lightweight, lock-free counters for the
// REPL front end: sessions, evaluations, and socket traffic.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for one formrepl process.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	sessionsActive atomic.Int64
	sessionsTotal  atomic.Int64
	evaluations    atomic.Int64
	interrupts     atomic.Int64
	gateWaitNanos  atomic.Int64
	bytesIn        atomic.Int64
	bytesOut       atomic.Int64
	highlights     atomic.Int64
	errorsTotal    atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Sessions ─────────────────────────────────────────────────────────

// SessionOpened increments both the active and total counters.
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(1)
	c.sessionsTotal.Add(1)
}

// SessionClosed decrements the active session counter.
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(-1)
}

// ActiveSessions returns the current number of live sessions.
func (c *Collector) ActiveSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsActive.Load()
}

// TotalSessions returns the lifetime session count.
func (c *Collector) TotalSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsTotal.Load()
}

// ── Evaluations ──────────────────────────────────────────────────────

// EvaluationDone records one evaluation and how long its caller waited
// to acquire the evaluation gate.
func (c *Collector) EvaluationDone(waited time.Duration) {
	if c == nil {
		return
	}
	c.evaluations.Add(1)
	c.gateWaitNanos.Add(int64(waited))
}

// Evaluations returns the number of completed evaluations.
func (c *Collector) Evaluations() int64 {
	if c == nil {
		return 0
	}
	return c.evaluations.Load()
}

// Interrupted records an evaluation aborted by an interrupt.
func (c *Collector) Interrupted() {
	if c == nil {
		return
	}
	c.interrupts.Add(1)
}

// Interrupts returns the number of interrupted evaluations.
func (c *Collector) Interrupts() int64 {
	if c == nil {
		return 0
	}
	return c.interrupts.Load()
}

// ── I/O ──────────────────────────────────────────────────────────────

// BytesReceived records n bytes read from a socket session.
func (c *Collector) BytesReceived(n int64) {
	if c == nil {
		return
	}
	c.bytesIn.Add(n)
}

// BytesSent records n bytes written to a socket session.
func (c *Collector) BytesSent(n int64) {
	if c == nil {
		return
	}
	c.bytesOut.Add(n)
}

// TotalBytesIn returns total bytes received.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

// TotalBytesOut returns total bytes sent.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── Highlight ────────────────────────────────────────────────────────

// Highlighted records a bracket-match highlight.
func (c *Collector) Highlighted() {
	if c == nil {
		return
	}
	c.highlights.Add(1)
}

// Highlights returns the number of highlights issued.
func (c *Collector) Highlights() int64 {
	if c == nil {
		return 0
	}
	return c.highlights.Load()
}

// ── Errors ───────────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string `json:"uptime"`
	SessionsActive   int64  `json:"sessions_active"`
	SessionsTotal    int64  `json:"sessions_total"`
	Evaluations      int64  `json:"evaluations"`
	Interrupts       int64  `json:"interrupts"`
	GateWait         string `json:"gate_wait"`
	BytesIn          int64  `json:"bytes_in"`
	BytesOut         int64  `json:"bytes_out"`
	Highlights       int64  `json:"highlights"`
	ErrorsTotal      int64  `json:"errors_total"`
	LastError        string `json:"last_error,omitempty"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:         time.Since(c.startTime).Truncate(time.Second).String(),
		SessionsActive: c.sessionsActive.Load(),
		SessionsTotal:  c.sessionsTotal.Load(),
		Evaluations:    c.evaluations.Load(),
		Interrupts:     c.interrupts.Load(),
		GateWait:       time.Duration(c.gateWaitNanos.Load()).String(),
		BytesIn:        c.bytesIn.Load(),
		BytesOut:       c.bytesOut.Load(),
		Highlights:     c.highlights.Load(),
		ErrorsTotal:    c.errorsTotal.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
