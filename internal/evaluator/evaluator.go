// Package evaluator defines the capability interface the REPL front end
// consumes from a language reader/evaluator.  The front end never parses
// or executes code itself; it only asks whether text is complete enough
// to evaluate and hands complete forms over one at a time.
package evaluator

import (
	"context"
	"io"
)

// Request is one evaluation call.  Out is the sink all output produced
// by the evaluation must be written to; it is bound for the duration of
// the call only.
type Request struct {
	Source    string
	Namespace string
	Out       io.Writer

	// TermWidth is the width of the requesting terminal in columns, or 0
	// when size reporting is disabled for this evaluation.
	TermWidth int
}

// Result is what the front end learns from an evaluation.
type Result struct {
	// Namespace is the evaluation context after the call.  Empty means
	// unchanged.
	Namespace string

	// Exit is set when the evaluated source asked the process to stop.
	Exit     bool
	ExitCode int
}

// Evaluator is the shared, non-reentrant language engine.
//
// Evaluate and CurrentNamespace touch shared engine state and are only
// ever called while holding the evaluation gate.  Every other method
// must be safe for concurrent use: the terminal rebinds the output sink
// and asks reader questions while another session may be evaluating.
type Evaluator interface {
	// Readable reports whether a prefix of buf forms a complete unit.
	// When ok, remainder is the unconsumed tail of buf.
	Readable(buf string) (remainder string, ok bool)

	// Evaluate runs one complete form.  Cancelling ctx must abort only
	// this evaluation.
	Evaluate(ctx context.Context, req Request) Result

	// IndentHint suggests how many spaces to indent the next
	// continuation line of an incomplete buf.
	IndentHint(buf string) int

	// CurrentNamespace returns the engine's default namespace.
	CurrentNamespace() string

	// MatchingDelimiter locates the opening delimiter matching the
	// closing one at rune index pos in line, given the earlier lines of
	// the same form.  It returns how many screen lines up the match is
	// and its rune column, or ok=false when nothing matches.
	MatchingDelimiter(pos int, line string, previous []string) (linesUp, column int, ok bool)

	// Completions returns full-buffer candidates extending partial,
	// drawing names from namespace ns.  An empty ns means the engine's
	// current namespace.
	Completions(ns, partial string) []string

	// SetOutputSink binds the sink used for output produced outside any
	// evaluation (timers, background work).  nil unbinds it.
	SetOutputSink(w io.Writer)

	// PrintsTrailingNewline reports whether printed output ends with a
	// newline, so a rich terminal knows whether to emit one before the
	// next prompt.
	PrintsTrailingNewline() bool
}
