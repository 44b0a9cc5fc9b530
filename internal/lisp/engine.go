// Package lisp is the built-in s-expression evaluator used when no
// external runtime is attached. It implements evaluator.Evaluator.
package lisp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"formrepl/internal/evaluator"
)

// Engine holds namespaces and the current namespace.
type Engine struct {
	mu   sync.RWMutex
	ns   string
	vars map[string]map[Symbol]Value

	sinkMu sync.Mutex
	sink   io.Writer
}

var _ evaluator.Evaluator = (*Engine)(nil)

// New returns an engine whose current namespace is initNS.
func New(initNS string) *Engine {
	e := &Engine{ns: initNS, vars: make(map[string]map[Symbol]Value)}
	e.ensureNS(initNS)
	return e
}

func (e *Engine) ensureNS(ns string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.vars[ns]; !ok {
		e.vars[ns] = make(map[Symbol]Value)
	}
}

func (e *Engine) lookupVar(ns string, name Symbol) (Value, bool) {
	if i := strings.IndexByte(string(name), '/'); i > 0 && i < len(name)-1 {
		ns, name = string(name[:i]), name[i+1:]
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.vars[ns][name]
	return v, ok
}

func (e *Engine) defineVar(ns string, name Symbol, v Value) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.vars[ns]
	if !ok {
		m = make(map[Symbol]Value)
		e.vars[ns] = m
	}
	m[name] = v
}

// Readable reports whether buf starts with a complete form. A stray
// closing delimiter counts as complete; the whole buffer is consumed so
// the reader reports the error.
func (e *Engine) Readable(buf string) (string, bool) {
	end, st := firstForm(buf)
	switch st {
	case formIncomplete:
		return "", false
	case formComplete:
		return buf[end:], true
	default:
		return "", true
	}
}

// Evaluate reads and evaluates every form in req.Source, printing each
// result on its own line.
func (e *Engine) Evaluate(ctx context.Context, req evaluator.Request) evaluator.Result {
	out := req.Out
	if out == nil {
		out = e.outputSink()
	}

	e.mu.RLock()
	ns := e.ns
	e.mu.RUnlock()
	if req.Namespace != "" {
		ns = req.Namespace
		e.ensureNS(ns)
	}

	res := evaluator.Result{Namespace: ns}
	forms, err := readAll(req.Source)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return res
	}

	c := &call{ctx: ctx, engine: e, ns: ns, out: out, termWidth: req.TermWidth}
	for _, form := range forms {
		v, err := c.eval(form, nil)
		if err != nil {
			var exit *exitRequest
			switch {
			case errors.As(err, &exit):
				res.Exit = true
				res.ExitCode = exit.code
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				fmt.Fprintln(out, "Interrupted")
			default:
				fmt.Fprintf(out, "Error: %v\n", err)
			}
			break
		}
		fmt.Fprintln(out, printString(v, true))
	}

	e.mu.Lock()
	e.ns = c.ns
	e.mu.Unlock()
	res.Namespace = c.ns
	return res
}

// IndentHint is the column continuation lines should start at.
func (e *Engine) IndentHint(buf string) int {
	open, inString := openers(buf)
	if inString || len(open) == 0 {
		return 0
	}
	off := open[len(open)-1]
	col := column(buf, off)
	if buf[off] == '(' {
		return col + 2
	}
	return col + 1
}

// CurrentNamespace returns the namespace forms are evaluated in.
func (e *Engine) CurrentNamespace() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ns
}

// MatchingDelimiter locates the opener matched by the closer at rune
// index pos in line. previous holds the earlier lines of the same
// buffer, oldest first.
func (e *Engine) MatchingDelimiter(pos int, line string, previous []string) (int, int, bool) {
	var b strings.Builder
	for _, p := range previous {
		b.WriteString(p)
		b.WriteByte('\n')
	}
	runes := []rune(line)
	if pos < 0 || pos >= len(runes) {
		return 0, 0, false
	}
	at := b.Len() + len(string(runes[:pos]))
	b.WriteString(line)
	src := b.String()

	open := matchOpener(src, at)
	if open < 0 {
		return 0, 0, false
	}
	up := strings.Count(src[open:at], "\n")
	return up, column(src, open), true
}

// Completions returns partial with its last token extended to each
// name known in ns.
func (e *Engine) Completions(ns, partial string) []string {
	start := len(partial)
	for start > 0 {
		c := partial[start-1]
		if isSpace(c) || isOpen(c) || isClose(c) || c == '\'' || c == '"' {
			break
		}
		start--
	}
	prefix := partial[start:]
	if prefix == "" {
		return nil
	}

	seen := make(map[string]struct{})
	add := func(name string) {
		if strings.HasPrefix(name, prefix) {
			seen[name] = struct{}{}
		}
	}
	for name := range specialForms {
		add(string(name))
	}
	for name := range builtins {
		add(string(name))
	}
	e.mu.RLock()
	if ns == "" {
		ns = e.ns
	}
	for name := range e.vars[ns] {
		add(string(name))
	}
	e.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	for i := range out {
		out[i] = partial[:start] + out[i]
	}
	return out
}

// SetOutputSink sets the writer used when a request carries none.
// Passing nil restores the discard sink.
func (e *Engine) SetOutputSink(w io.Writer) {
	e.sinkMu.Lock()
	defer e.sinkMu.Unlock()
	e.sink = w
}

func (e *Engine) outputSink() io.Writer {
	e.sinkMu.Lock()
	defer e.sinkMu.Unlock()
	if e.sink == nil {
		return io.Discard
	}
	return e.sink
}

// PrintsTrailingNewline is true: every result is followed by a newline.
func (e *Engine) PrintsTrailingNewline() bool { return true }
