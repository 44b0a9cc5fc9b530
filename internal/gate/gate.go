// Package gate serializes evaluations across sessions.
//
// The evaluator is not reentrant, so every session funnels its
// evaluation calls through one Gate.  The gate also owns the interrupt
// target: only an evaluation started with Scope.Interruptible can be
// cancelled by Interrupt, and an interrupt that arrives while no such
// evaluation is in flight is dropped.
package gate

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"time"

	"golang.org/x/term"

	replerr "formrepl/internal/errors"
	"formrepl/internal/metrics"
	"formrepl/util"
)

// Scope describes what the holder of the gate is allowed to do.
type Scope struct {
	// Interruptible lets Interrupt cancel this evaluation.  Set for the
	// local terminal session only.
	Interruptible bool

	// ReportTermSize passes the terminal width to the evaluation.
	ReportTermSize bool
}

// Gate is the single evaluation lock.  The zero value is ready to use.
type Gate struct {
	// TermWidth reports the terminal width when Scope.ReportTermSize is
	// set.  nil reads the width of stdout.
	TermWidth func() int

	Metrics *metrics.Collector
	Logger  *util.Logger

	mu sync.Mutex

	stateMu sync.Mutex
	cancel  context.CancelFunc
	holding bool
}

// Run blocks until the gate is free, then calls fn with a context that
// is cancelled when the evaluation is interrupted or ctx ends.  The gate
// is released when fn returns, including when fn panics.
//
// Run returns ctx's error if ctx ended before or during fn, and
// replerr.ErrEvalInterrupted if Interrupt cancelled fn.
func (g *Gate) Run(ctx context.Context, scope Scope, fn func(ctx context.Context, termWidth int)) error {
	start := time.Now()
	g.mu.Lock()
	defer g.mu.Unlock()
	waited := time.Since(start)

	if err := ctx.Err(); err != nil {
		return err
	}

	evalCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g.stateMu.Lock()
	g.holding = true
	if scope.Interruptible {
		g.cancel = cancel
	}
	g.stateMu.Unlock()

	defer func() {
		g.stateMu.Lock()
		g.holding = false
		g.cancel = nil
		g.stateMu.Unlock()
	}()

	width := 0
	if scope.ReportTermSize {
		width = g.termWidth()
	}

	fn(evalCtx, width)
	g.Metrics.EvaluationDone(waited)

	if evalCtx.Err() != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		return replerr.ErrEvalInterrupted
	}
	return nil
}

// Interrupt cancels the in-flight evaluation if it is interruptible.
// It reports whether anything was cancelled.
func (g *Gate) Interrupt() bool {
	g.stateMu.Lock()
	cancel := g.cancel
	g.cancel = nil
	g.stateMu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	g.Metrics.Interrupted()
	if g.Logger != nil {
		g.Logger.Debug("evaluation interrupted")
	}
	return true
}

// Busy reports whether an evaluation is in flight.
func (g *Gate) Busy() bool {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()
	return g.holding
}

// WatchSignals routes SIGINT to Interrupt until ctx is done.  While it
// runs, SIGINT never terminates the process.
func (g *Gate) WatchSignals(ctx context.Context) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			g.Interrupt()
		}
	}
}

func (g *Gate) termWidth() int {
	if g.TermWidth != nil {
		return g.TermWidth()
	}
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return w
}
