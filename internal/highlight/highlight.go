// Package highlight briefly moves the terminal cursor onto the opening
// delimiter that matches a just-typed closing one, then moves it back.
//
// Every highlight is tagged with a token from one counter.  A restore
// runs only if its token is still the latest issued, and running it
// advances the counter, so each cursor move is undone at most once and
// a superseded timer is a no-op.
package highlight

import (
	"fmt"
	"io"
	"sync"
	"time"

	"formrepl/internal/metrics"
	"formrepl/util"
)

// DefaultDelay is how long the cursor rests on the match.
const DefaultDelay = 500 * time.Millisecond

// Locator finds the opener matching the closer at rune index pos in
// line.  It returns how many rows up the match is and its rune column.
type Locator func(pos int, line string) (linesUp, column int, ok bool)

// Coordinator issues highlights and their deferred restores.
type Coordinator struct {
	Out     io.Writer
	Delay   time.Duration
	Metrics *metrics.Collector

	// AfterFunc schedules f after d.  nil uses time.AfterFunc.
	AfterFunc func(d time.Duration, f func())

	mu      sync.Mutex
	seq     uint64
	pending *restore
}

type restore struct {
	token uint64
	up    int
	horiz int // columns moved right to reach the match; negative is left
}

// Highlight moves the cursor to the match for the closer at rune index
// pos, if that rune is a closing delimiter and locate finds its opener.
// The cursor is assumed to sit just after pos.
func (c *Coordinator) Highlight(line string, pos int, locate Locator) bool {
	runes := []rune(line)
	if pos < 0 || pos >= len(runes) || !isCloser(runes[pos]) {
		return false
	}
	up, col, ok := locate(pos, line)
	if !ok {
		return false
	}
	r := &restore{up: up, horiz: col - (pos + 1)}

	c.mu.Lock()
	c.seq++
	r.token = c.seq
	c.pending = r
	c.write(cursorUp(up) + horizontal(r.horiz))
	c.mu.Unlock()

	c.Metrics.Highlighted()
	c.schedule(func() { c.restore(r.token) })
	return true
}

// Cancel restores the most recent pending highlight now.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	r := c.pending
	c.mu.Unlock()
	if r != nil {
		c.restore(r.token)
	}
}

// Pending reports whether a highlight is awaiting restore.
func (c *Coordinator) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

func (c *Coordinator) restore(token uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.seq || c.pending == nil || c.pending.token != token {
		return
	}
	r := c.pending
	c.seq++
	c.pending = nil
	c.write(cursorDown(r.up) + horizontal(-r.horiz))
}

// write must be called with mu held.
func (c *Coordinator) write(seq string) {
	if seq == "" || c.Out == nil {
		return
	}
	io.WriteString(c.Out, seq) //nolint:errcheck
	util.Flush(c.Out)          //nolint:errcheck
}

func (c *Coordinator) schedule(f func()) {
	d := c.Delay
	if d <= 0 {
		d = DefaultDelay
	}
	if c.AfterFunc != nil {
		c.AfterFunc(d, f)
		return
	}
	time.AfterFunc(d, f)
}

func isCloser(r rune) bool { return r == ')' || r == ']' || r == '}' }

func cursorUp(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf("\x1b[%dA", n)
}

func cursorDown(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf("\x1b[%dB", n)
}

func horizontal(n int) string {
	switch {
	case n > 0:
		return fmt.Sprintf("\x1b[%dC", n)
	case n < 0:
		return fmt.Sprintf("\x1b[%dD", -n)
	}
	return ""
}
