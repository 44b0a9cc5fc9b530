// Package core is the orchestration layer.  It composes the evaluator,
// the evaluation gate, sessions, the local terminal loop and the socket
// server into one runnable process.
//
// Architecture layers (bottom → top):
//
//	lisp/evaluator  →  gate  →  repl  →  server/lineedit  →  core  →  cmd (CLI)
package core

import (
	"context"
	"fmt"
	"io"

	"formrepl/config"
	replerr "formrepl/internal/errors"
	"formrepl/internal/gate"
	"formrepl/internal/history"
	"formrepl/internal/lineedit"
	"formrepl/internal/lisp"
	"formrepl/internal/metrics"
	"formrepl/internal/repl"
	"formrepl/internal/server"
	"formrepl/internal/session"
	"formrepl/internal/transport"
	"formrepl/util"
)

// App is one wired formrepl process.  Build fills every field; callers
// may replace Stdin/Stdout/Stderr before Run.
type App struct {
	Config   *config.Config
	Logger   *util.Logger
	Metrics  *metrics.Collector
	Eval     *lisp.Engine
	Gate     *gate.Gate
	Sessions *session.Manager
	Engine   *repl.Engine

	// History is nil when history is disabled or unreadable.
	History *history.Store

	// Transport and Server are nil when the socket REPL is off.
	Transport transport.Listener
	Server    *server.Server

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// NewLineReader opens the rich-mode editor.  Nil means readline.
	NewLineReader func(app *App) (LineReader, error)
}

// LineReader is the rich-mode editor as the App needs it.
type LineReader interface {
	repl.LineReader
	session.Recorder
	Close() error
}

// Run starts the socket server if configured, then drives the local
// session until it ends.  A nonzero exit code requested by the local
// session is returned as a *replerr.ExitError.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.Logger.Debug("starting: %s", describe(a))
	go a.Gate.WatchSignals(ctx)

	var serverDone chan struct{}
	if a.Transport != nil {
		ln, err := a.Transport.Listen(ctx)
		if err != nil {
			a.Logger.Error("socket REPL: %v", err)
			return err
		}
		defer a.Transport.Close()

		serverDone = make(chan struct{})
		go func() {
			defer close(serverDone)
			// Serve logs its own failure; the local session keeps going.
			a.Server.Serve(ctx, ln) //nolint:errcheck
		}()
	}

	type result struct {
		code int
		err  error
	}
	done := make(chan result, 1)
	go func() {
		code, err := a.runLocal(ctx)
		done <- result{code, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		a.Logger.Verbose("shutting down")
	}

	if serverDone != nil && a.Gate.Busy() {
		a.Logger.Verbose("cancelling the running evaluation")
	}
	cancel()
	if serverDone != nil {
		<-serverDone
	}
	if a.Config.Stats {
		fmt.Fprintln(a.Stderr, a.Metrics.JSON())
	}

	if res.err != nil {
		return res.err
	}
	if res.code != 0 {
		return &replerr.ExitError{Code: res.code}
	}
	return nil
}

func (a *App) runLocal(ctx context.Context) (int, error) {
	ns := a.Config.InitNamespace

	if !a.Engine.Rich {
		s := a.Sessions.Local(ns, a.Stdout, nil)
		defer a.Sessions.Close(s)
		a.Engine.Start(s)
		return a.Engine.RunPlain(ctx, s, a.Stdin)
	}

	open := a.NewLineReader
	if open == nil {
		open = openEditor
	}
	lr, err := open(a)
	if err != nil {
		return 1, fmt.Errorf("line editor: %w", err)
	}
	defer lr.Close()

	var rec session.Recorder
	if a.History != nil {
		rec = lr
	}
	s := a.Sessions.Local(ns, lr.Stdout(), rec)
	defer a.Sessions.Close(s)
	a.Engine.Start(s)
	return a.Engine.RunRich(ctx, s, lr)
}

func openEditor(a *App) (LineReader, error) {
	return lineedit.New(lineedit.Config{
		Eval:           a.Eval,
		History:        a.History,
		HighlightDelay: a.Config.HighlightDelay,
		Metrics:        a.Metrics,
		Stdin:          stdinCloser(a.Stdin),
		Stdout:         a.Stdout,
		Stderr:         a.Stderr,
	})
}
