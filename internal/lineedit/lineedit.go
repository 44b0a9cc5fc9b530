// Package lineedit adapts github.com/chzyer/readline to the REPL's
// LineReader.  It wires evaluator completions into tab completion and
// bracket matching into the keystroke listener.
package lineedit

import (
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"formrepl/internal/evaluator"
	"formrepl/internal/highlight"
	"formrepl/internal/history"
	"formrepl/internal/metrics"
	"formrepl/internal/repl"
)

// Config configures an Editor.
type Config struct {
	Eval evaluator.Evaluator

	// History, if set, seeds navigation history and receives every
	// recorded line.
	History *history.Store

	HighlightDelay time.Duration
	Metrics        *metrics.Collector

	// Stdin and Stdout default to the process's terminal.
	Stdin  io.ReadCloser
	Stdout io.Writer
	Stderr io.Writer
}

// Editor is a rich line reader for the local terminal.
type Editor struct {
	rl    *readline.Instance
	eval  evaluator.Evaluator
	store *history.Store
	coord *highlight.Coordinator

	mu       sync.Mutex
	previous []string
	ns       string
}

var _ repl.LineReader = (*Editor)(nil)

// New creates an Editor.
func New(cfg Config) (*Editor, error) {
	e := &Editor{eval: cfg.Eval, store: cfg.History}

	rl, err := readline.NewEx(&readline.Config{
		AutoComplete:           completer{eval: cfg.Eval, ns: e.namespace},
		Listener:               readline.FuncListener(e.onChange),
		FuncFilterInputRune:    e.filterInput,
		DisableAutoSaveHistory: true,
		HistoryLimit:           1000,
		InterruptPrompt:        "^C",
		Stdin:                  cfg.Stdin,
		Stdout:                 cfg.Stdout,
		Stderr:                 cfg.Stderr,
	})
	if err != nil {
		return nil, err
	}
	e.rl = rl

	// Cursor moves bypass readline's redrawing writer.
	e.coord = &highlight.Coordinator{
		Out:     rl.Config.Stdout,
		Delay:   cfg.HighlightDelay,
		Metrics: cfg.Metrics,
	}

	if e.store != nil {
		for _, line := range e.store.Entries() {
			rl.SaveHistory(line) //nolint:errcheck
		}
	}
	return e, nil
}

// ReadLine implements repl.LineReader.
func (e *Editor) ReadLine(req repl.LineRequest) (string, error) {
	e.mu.Lock()
	e.previous = append(e.previous[:0], req.Previous...)
	e.ns = req.Namespace
	e.mu.Unlock()

	e.rl.SetPrompt(req.Prompt)
	var (
		line string
		err  error
	)
	if req.Indent > 0 {
		line, err = e.rl.ReadlineWithDefault(strings.Repeat(" ", req.Indent))
	} else {
		line, err = e.rl.Readline()
	}
	e.coord.Cancel()

	switch {
	case errors.Is(err, readline.ErrInterrupt):
		return "", repl.ErrInterrupt
	case err != nil:
		return "", err
	}
	return line, nil
}

// Stdout implements repl.LineReader.
func (e *Editor) Stdout() io.Writer { return e.rl.Stdout() }

// Add records line in navigation history and the history file.
func (e *Editor) Add(line string) error {
	e.rl.SaveHistory(line) //nolint:errcheck
	if e.store == nil {
		return nil
	}
	return e.store.Add(line)
}

// Close restores the terminal.
func (e *Editor) Close() error {
	e.coord.Cancel()
	return e.rl.Close()
}

// filterInput runs before readline handles each key: any new input
// first undoes a pending highlight.
func (e *Editor) filterInput(r rune) (rune, bool) {
	e.coord.Cancel()
	return r, true
}

func (e *Editor) onChange(line []rune, pos int, key rune) ([]rune, int, bool) {
	if !isCloser(key) || pos < 1 || pos > len(line) {
		return nil, 0, false
	}
	// Columns are runes: the terminal counts characters, not bytes.
	e.coord.Highlight(string(line), pos-1, e.locate)
	return nil, 0, false
}

func (e *Editor) locate(pos int, line string) (int, int, bool) {
	e.mu.Lock()
	previous := append([]string(nil), e.previous...)
	e.mu.Unlock()
	return e.eval.MatchingDelimiter(pos, line, previous)
}

// namespace is the namespace of the session being read for.
func (e *Editor) namespace() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ns
}

func isCloser(r rune) bool { return r == ')' || r == ']' || r == '}' }

// completer answers readline's tab completion from the evaluator.
type completer struct {
	eval evaluator.Evaluator

	// ns reports the namespace to complete in.  nil completes in the
	// evaluator's current namespace.
	ns func() string
}

// Do implements readline.AutoCompleter: it returns the text to append
// for each candidate and the length of the word being completed.
func (c completer) Do(line []rune, pos int) ([][]rune, int) {
	if pos > len(line) {
		pos = len(line)
	}
	prefix := string(line[:pos])

	ns := ""
	if c.ns != nil {
		ns = c.ns()
	}
	var out [][]rune
	for _, cand := range c.eval.Completions(ns, prefix) {
		if strings.HasPrefix(cand, prefix) && len(cand) > len(prefix) {
			out = append(out, []rune(cand[len(prefix):]))
		}
	}
	return out, wordLen(line[:pos])
}

func wordLen(line []rune) int {
	n := 0
	for i := len(line) - 1; i >= 0; i-- {
		switch line[i] {
		case ' ', '\t', '(', ')', '[', ']', '{', '}', '"', '\'', ',':
			return n
		}
		n++
	}
	return n
}
