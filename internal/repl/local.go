package repl

import (
	"bufio"
	"context"
	"errors"
	"io"

	"formrepl/internal/session"
	"formrepl/util"
)

// ErrInterrupt is returned by a LineReader when the user pressed the
// interrupt key at the prompt.
var ErrInterrupt = errors.New("interrupted")

// LineRequest describes one interactive read.
type LineRequest struct {
	Prompt string

	// Indent is how many spaces to pre-fill.
	Indent int

	// Previous holds the lines already buffered for the current form.
	Previous []string

	// Namespace is the reading session's namespace.  Completion draws
	// names from it.
	Namespace string
}

// LineReader is an interactive line editor.
type LineReader interface {
	// ReadLine shows the prompt and returns the completed line without
	// its terminator.  It returns ErrInterrupt on the interrupt key and
	// io.EOF at end of input.
	ReadLine(req LineRequest) (string, error)

	// Stdout writes to the terminal without corrupting the edit line.
	Stdout() io.Writer
}

// RunPlain drives the local session from in, one line per read.  It
// returns the process exit code.
func (e *Engine) RunPlain(ctx context.Context, s *session.Session, in io.Reader) (int, error) {
	r := bufio.NewReader(in)
	for {
		if s.Prompt != "" {
			io.WriteString(s.Sink, s.Prompt) //nolint:errcheck
			util.Flush(s.Sink)              //nolint:errcheck
		}

		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			if errors.Is(err, io.EOF) {
				io.WriteString(s.Sink, "\n") //nolint:errcheck
				return 0, nil
			}
			return 1, err
		}

		out := e.ProcessLine(ctx, s, util.TrimLineEnding(line))
		if out.Action != Continue {
			return out.Code, nil
		}
		if err != nil {
			// Final line had no terminator.
			io.WriteString(s.Sink, "\n") //nolint:errcheck
			return 0, nil
		}
	}
}

// RunRich drives the local session through an interactive editor.
func (e *Engine) RunRich(ctx context.Context, s *session.Session, lr LineReader) (int, error) {
	for {
		term := lr.Stdout()

		// Output produced while the editor is active goes through the
		// editor so it does not clobber the line being typed.
		e.Eval.SetOutputSink(term)
		if !e.Eval.PrintsTrailingNewline() {
			io.WriteString(term, "\n") //nolint:errcheck
		}

		p := e.Theme.Render(s.Prompt, s.Buffer != "")
		line, err := lr.ReadLine(LineRequest{
			Prompt:    p,
			Indent:    s.IndentHint,
			Previous:  s.Lines,
			Namespace: s.Namespace,
		})
		e.Eval.SetOutputSink(nil)
		s.IndentHint = 0

		switch {
		case errors.Is(err, ErrInterrupt):
			s.Reset()
			s.Prompt = e.PrimaryPrompt(s.Namespace)
			io.WriteString(s.Sink, "\n") //nolint:errcheck
			continue
		case errors.Is(err, io.EOF):
			return 0, nil
		case err != nil:
			return 1, err
		}

		out := e.ProcessLine(ctx, s, line)
		if out.Action != Continue {
			return out.Code, nil
		}
	}
}
