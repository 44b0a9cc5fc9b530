// Package repl implements input accumulation and the readiness loop.
//
// Each physical line is appended to its session's buffer.  The buffer
// is then handed to the evaluator's reader repeatedly: every complete
// form at the front is evaluated through the gate, and whatever is left
// over stays buffered until the next line.
package repl

import (
	"context"
	"errors"
	"io"

	replerr "formrepl/internal/errors"
	"formrepl/internal/evaluator"
	"formrepl/internal/gate"
	"formrepl/internal/metrics"
	"formrepl/internal/prompt"
	"formrepl/internal/session"
	"formrepl/util"
)

// Action tells the caller what to do after a line has been processed.
type Action int

const (
	Continue    Action = iota // read the next line
	EndSession                // close this session only
	ExitProcess               // stop the whole process with Outcome.Code
)

func (a Action) String() string {
	switch a {
	case Continue:
		return "continue"
	case EndSession:
		return "end-session"
	case ExitProcess:
		return "exit"
	default:
		return "unknown"
	}
}

// Outcome is the result of processing one line.
type Outcome struct {
	Action Action
	Code   int
}

// Engine drives sessions against one shared evaluator.
type Engine struct {
	Eval evaluator.Evaluator
	Gate *gate.Gate

	// Rich selects rich-terminal prompts (padded primary, visible
	// continuation prompt) and terminal-size reporting.
	Rich bool

	// ExitTokens end the session when they make up the whole buffer.
	ExitTokens []string

	// Theme colours prompts on the local rich terminal.
	Theme prompt.Theme

	Metrics *metrics.Collector
}

// PrimaryPrompt returns the prompt for a session with an empty buffer.
func (e *Engine) PrimaryPrompt(ns string) string {
	return prompt.Format(ns, false, e.Rich)
}

// Start puts s into its initial state.
func (e *Engine) Start(s *session.Session) {
	s.Reset()
	s.Prompt = e.PrimaryPrompt(s.Namespace)
}

// ProcessLine feeds one physical line to s.
func (e *Engine) ProcessLine(ctx context.Context, s *session.Session, line string) Outcome {
	s.Append(line)

	if e.isExitToken(s.Buffer) {
		s.Reset()
		return e.exit(s, 0)
	}

	if s.History != nil && !util.IsWhitespace(s.Buffer) {
		if err := s.History.Add(line); err != nil {
			e.Metrics.RecordError(err.Error())
			if s.Logger != nil {
				s.Logger.Warn("history: %v", err)
			}
		}
	}

	for {
		rest, ready := e.Eval.Readable(s.Buffer)
		if !ready {
			if s.History != nil {
				s.IndentHint = e.Eval.IndentHint(s.Buffer)
			}
			s.Prompt = prompt.Format(s.Namespace, true, e.Rich)
			return Outcome{}
		}

		form := s.Buffer[:len(s.Buffer)-len(rest)]
		if util.IsWhitespace(form) {
			io.WriteString(s.Sink, "\n") //nolint:errcheck
		} else {
			res, err := e.evaluate(ctx, s, form)
			if err != nil {
				s.Reset()
				return Outcome{Action: EndSession}
			}
			if res.Exit {
				s.Reset()
				return e.exit(s, res.ExitCode)
			}
			if res.Namespace != "" {
				s.Namespace = res.Namespace
			}
		}

		s.Lines = nil
		s.Buffer = rest
		s.Prompt = prompt.Format(s.Namespace, false, e.Rich)

		if util.IsWhitespace(rest) {
			s.Buffer = ""
			return Outcome{}
		}
	}
}

func (e *Engine) evaluate(ctx context.Context, s *session.Session, form string) (evaluator.Result, error) {
	scope := gate.Scope{
		Interruptible:  s.IsLocal(),
		ReportTermSize: s.IsLocal() && e.Rich,
	}

	var res evaluator.Result
	err := e.Gate.Run(ctx, scope, func(ctx context.Context, width int) {
		res = e.Eval.Evaluate(ctx, evaluator.Request{
			Source:    form,
			Namespace: s.Namespace,
			Out:       s.Sink,
			TermWidth: width,
		})
	})
	util.Flush(s.Sink) //nolint:errcheck
	if errors.Is(err, replerr.ErrEvalInterrupted) {
		// The evaluator has reported the interruption on the sink; the
		// session carries on.
		if s.Logger != nil {
			s.Logger.Debug("evaluation interrupted")
		}
		return res, nil
	}
	return res, err
}

// exit maps an exit request to an outcome: only the local session may
// stop the process.
func (e *Engine) exit(s *session.Session, code int) Outcome {
	if s.IsLocal() {
		return Outcome{Action: ExitProcess, Code: code}
	}
	return Outcome{Action: EndSession}
}

func (e *Engine) isExitToken(buf string) bool {
	for _, tok := range e.ExitTokens {
		if buf == tok {
			return true
		}
	}
	return false
}
