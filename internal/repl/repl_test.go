package repl

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formrepl/internal/evaluator"
	"formrepl/internal/gate"
	"formrepl/internal/lisp"
	"formrepl/internal/session"
)

// recordingEval wraps the built-in engine and records what reaches it.
type recordingEval struct {
	*lisp.Engine

	mu      sync.Mutex
	sources []string
	sinks   []io.Writer
}

func (r *recordingEval) Evaluate(ctx context.Context, req evaluator.Request) evaluator.Result {
	r.mu.Lock()
	r.sources = append(r.sources, req.Source)
	r.mu.Unlock()
	return r.Engine.Evaluate(ctx, req)
}

func (r *recordingEval) SetOutputSink(w io.Writer) {
	r.mu.Lock()
	r.sinks = append(r.sinks, w)
	r.mu.Unlock()
	r.Engine.SetOutputSink(w)
}

type recorder struct{ lines []string }

func (r *recorder) Add(line string) error {
	r.lines = append(r.lines, line)
	return nil
}

func newEngine(rich bool) (*Engine, *recordingEval) {
	ev := &recordingEval{Engine: lisp.New("user")}
	return &Engine{
		Eval:       ev,
		Gate:       &gate.Gate{TermWidth: func() int { return 80 }},
		Rich:       rich,
		ExitTokens: []string{":repl/quit", "quit", "exit"},
	}, ev
}

func newSession(e *Engine, id int64) (*session.Session, *bytes.Buffer) {
	var out bytes.Buffer
	s := &session.Session{ID: id, Namespace: "user", Sink: &out}
	e.Start(s)
	return s, &out
}

func TestProcessLine_Continuation(t *testing.T) {
	e, _ := newEngine(true)
	s, out := newSession(e, session.LocalID)
	s.History = &recorder{}

	got := e.ProcessLine(context.Background(), s, "(+ 1")
	assert.Equal(t, Outcome{}, got)
	assert.Equal(t, "  #_=> ", s.Prompt)
	assert.Equal(t, 2, s.IndentHint)
	assert.Equal(t, []string{"(+ 1"}, s.Lines)
	assert.Empty(t, out.String())

	got = e.ProcessLine(context.Background(), s, "2)")
	assert.Equal(t, Outcome{}, got)
	assert.Equal(t, "3\n", out.String())
	assert.Equal(t, "user=> ", s.Prompt)
	assert.Empty(t, s.Buffer)
	assert.Empty(t, s.Lines)
}

func TestProcessLine_IndentOnlyWithHistory(t *testing.T) {
	e, _ := newEngine(true)
	s, _ := newSession(e, session.LocalID)

	e.ProcessLine(context.Background(), s, "(+ 1")
	assert.Zero(t, s.IndentHint)
}

func TestProcessLine_PlainSecondaryPromptHidden(t *testing.T) {
	e, _ := newEngine(false)
	s, _ := newSession(e, session.LocalID)

	e.ProcessLine(context.Background(), s, "(+ 1")
	assert.Empty(t, s.Prompt)
}

func TestProcessLine_SeveralFormsOnOneLine(t *testing.T) {
	e, ev := newEngine(true)
	s, out := newSession(e, session.LocalID)

	e.ProcessLine(context.Background(), s, "(+ 1 2) (+ 3 4)")
	assert.Equal(t, "3\n7\n", out.String())
	assert.Equal(t, []string{"(+ 1 2)", " (+ 3 4)"}, ev.sources)
	assert.Empty(t, s.Buffer)
}

func TestProcessLine_FormThenPartial(t *testing.T) {
	e, _ := newEngine(true)
	s, out := newSession(e, session.LocalID)

	e.ProcessLine(context.Background(), s, "(+ 1 2) (inc")
	assert.Equal(t, "3\n", out.String())
	assert.Equal(t, " (inc", s.Buffer)
	assert.Equal(t, "  #_=> ", s.Prompt)

	e.ProcessLine(context.Background(), s, "1)")
	assert.Equal(t, "3\n2\n", out.String())
	assert.Empty(t, s.Buffer)
}

func TestProcessLine_WhitespaceNeverEvaluated(t *testing.T) {
	e, ev := newEngine(true)
	s, out := newSession(e, session.LocalID)
	hist := &recorder{}
	s.History = hist

	e.ProcessLine(context.Background(), s, "   ")
	assert.Equal(t, "\n", out.String())
	assert.Empty(t, ev.sources)
	assert.Empty(t, hist.lines)
	assert.Empty(t, s.Buffer)
}

func TestProcessLine_ChunkingIndependent(t *testing.T) {
	input := []string{"(def a 1) (+ a", "1)", "(str", "\"x\"", ")"}

	e1, _ := newEngine(true)
	s1, lineByLine := newSession(e1, session.LocalID)
	for _, l := range input {
		e1.ProcessLine(context.Background(), s1, l)
	}

	e2, _ := newEngine(true)
	s2, whole := newSession(e2, session.LocalID)
	e2.ProcessLine(context.Background(), s2, strings.Join(input, "\n"))

	assert.Equal(t, "#'user/a\n2\n\"x\"\n", whole.String())
	assert.Equal(t, whole.String(), lineByLine.String())
}

func TestProcessLine_ExitTokens(t *testing.T) {
	for _, tok := range []string{":repl/quit", "quit", "exit"} {
		e, ev := newEngine(true)
		local, _ := newSession(e, session.LocalID)
		assert.Equal(t, Outcome{Action: ExitProcess}, e.ProcessLine(context.Background(), local, tok), tok)

		remote, _ := newSession(e, 1)
		assert.Equal(t, Outcome{Action: EndSession}, e.ProcessLine(context.Background(), remote, tok), tok)
		assert.Empty(t, ev.sources)
	}
}

func TestProcessLine_ExitTokenInsideForm(t *testing.T) {
	e, _ := newEngine(true)
	s, _ := newSession(e, session.LocalID)

	e.ProcessLine(context.Background(), s, "(str")
	got := e.ProcessLine(context.Background(), s, "quit")
	assert.Equal(t, Continue, got.Action)
}

func TestProcessLine_EvaluatorExit(t *testing.T) {
	e, _ := newEngine(true)
	local, _ := newSession(e, session.LocalID)
	assert.Equal(t, Outcome{Action: ExitProcess, Code: 4}, e.ProcessLine(context.Background(), local, "(exit 4)"))
	assert.False(t, e.Gate.Busy(), "gate is released before exit is observed")

	remote, _ := newSession(e, 7)
	assert.Equal(t, Outcome{Action: EndSession}, e.ProcessLine(context.Background(), remote, "(exit 4)"))
}

func TestProcessLine_InterruptKeepsSession(t *testing.T) {
	e, _ := newEngine(true)
	s, out := newSession(e, session.LocalID)

	done := make(chan Outcome, 1)
	go func() { done <- e.ProcessLine(context.Background(), s, "(sleep 10000) (+ 1 2)") }()

	require.Eventually(t, e.Gate.Interrupt, 2*time.Second, time.Millisecond)
	select {
	case got := <-done:
		assert.Equal(t, Outcome{}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("interrupted evaluation did not return")
	}
	assert.Equal(t, "Interrupted\n3\n", out.String())
	assert.Equal(t, "user=> ", s.Prompt)
}

func TestProcessLine_History(t *testing.T) {
	e, _ := newEngine(true)
	s, _ := newSession(e, session.LocalID)
	hist := &recorder{}
	s.History = hist

	for _, l := range []string{"(+ 1", "2)", "", "quit"} {
		e.ProcessLine(context.Background(), s, l)
	}
	assert.Equal(t, []string{"(+ 1", "2)"}, hist.lines)
}

func TestProcessLine_Namespace(t *testing.T) {
	e, _ := newEngine(true)
	s, _ := newSession(e, session.LocalID)

	e.ProcessLine(context.Background(), s, "(ns a)")
	assert.Equal(t, "a", s.Namespace)
	assert.Equal(t, " a=> ", s.Prompt)
}

func TestProcessLine_TermWidthLocalRichOnly(t *testing.T) {
	e, _ := newEngine(true)
	local, out := newSession(e, session.LocalID)
	e.ProcessLine(context.Background(), local, "(term-width)")
	assert.Equal(t, "80\n", out.String())

	remote, rout := newSession(e, 3)
	e.ProcessLine(context.Background(), remote, "(term-width)")
	assert.Equal(t, "nil\n", rout.String())
}

func TestProcessLine_CancelledContextEndsSession(t *testing.T) {
	e, _ := newEngine(true)
	s, _ := newSession(e, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, Outcome{Action: EndSession}, e.ProcessLine(ctx, s, "(+ 1 2)"))
}

func TestProcessLine_OutputStaysInSession(t *testing.T) {
	e, _ := newEngine(false)

	var wg sync.WaitGroup
	outs := make([]*bytes.Buffer, 8)
	for i := range outs {
		s, out := newSession(e, int64(i+1))
		outs[i] = out
		wg.Add(1)
		go func(i int, s *session.Session) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				e.ProcessLine(context.Background(), s, `(println "`+strings.Repeat("x", i+1)+`")`)
			}
		}(i, s)
	}
	wg.Wait()

	for i, out := range outs {
		want := strings.Repeat(strings.Repeat("x", i+1)+"\nnil\n", 20)
		assert.Equal(t, want, out.String(), "session %d", i+1)
	}
}

func TestRunPlain(t *testing.T) {
	e, _ := newEngine(false)
	s, out := newSession(e, session.LocalID)

	code, err := e.RunPlain(context.Background(), s, strings.NewReader("(+ 1 2)\n(+ 1\n2)\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "user=> 3\nuser=> 3\nuser=> \n", out.String())
}

func TestRunPlain_UnterminatedLastLine(t *testing.T) {
	e, _ := newEngine(false)
	s, out := newSession(e, session.LocalID)

	code, err := e.RunPlain(context.Background(), s, strings.NewReader("(+ 1 2)"))
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "user=> 3\n\n", out.String())
}

func TestRunPlain_Exit(t *testing.T) {
	e, _ := newEngine(false)
	s, out := newSession(e, session.LocalID)

	code, err := e.RunPlain(context.Background(), s, strings.NewReader("quit\n(+ 1 2)\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "user=> ", out.String())

	s, _ = newSession(e, session.LocalID)
	code, err = e.RunPlain(context.Background(), s, strings.NewReader("(exit 2)\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, code)
}

type readResult struct {
	line string
	err  error
}

type scriptedReader struct {
	out     bytes.Buffer
	script  []readResult
	prompts []string
	indents []int
	prev    [][]string
	nss     []string
}

func (r *scriptedReader) ReadLine(req LineRequest) (string, error) {
	r.prompts = append(r.prompts, req.Prompt)
	r.indents = append(r.indents, req.Indent)
	r.prev = append(r.prev, append([]string(nil), req.Previous...))
	r.nss = append(r.nss, req.Namespace)
	if len(r.script) == 0 {
		return "", io.EOF
	}
	next := r.script[0]
	r.script = r.script[1:]
	return next.line, next.err
}

func (r *scriptedReader) Stdout() io.Writer { return &r.out }

func TestRunRich(t *testing.T) {
	e, ev := newEngine(true)
	lr := &scriptedReader{script: []readResult{
		{line: "(+ 1"},
		{err: ErrInterrupt},
		{line: "(+ 2"},
		{line: "  3)"},
	}}
	s := &session.Session{ID: session.LocalID, Namespace: "user", Sink: &lr.out, History: &recorder{}}
	e.Start(s)

	code, err := e.RunRich(context.Background(), s, lr)
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	assert.Equal(t, []string{"user=> ", "  #_=> ", "user=> ", "  #_=> ", "user=> "}, lr.prompts)
	assert.Equal(t, []int{0, 2, 0, 2, 0}, lr.indents)
	assert.Equal(t, []string{"(+ 2"}, lr.prev[3])
	assert.Empty(t, lr.prev[2], "interrupt discards buffered lines")
	assert.Equal(t, "\n5\n", lr.out.String())

	require.Len(t, ev.sinks, 10)
	for i, w := range ev.sinks {
		if i%2 == 0 {
			assert.Same(t, &lr.out, w)
		} else {
			assert.Nil(t, w)
		}
	}
}

func TestRunRich_ReportsNamespace(t *testing.T) {
	e, _ := newEngine(true)
	lr := &scriptedReader{script: []readResult{{line: "(ns a)"}, {line: "(+ 1 2)"}}}
	s := &session.Session{ID: session.LocalID, Namespace: "user", Sink: &lr.out}
	e.Start(s)

	_, err := e.RunRich(context.Background(), s, lr)
	require.NoError(t, err)
	assert.Equal(t, []string{"user", "a", "a"}, lr.nss)
}

func TestRunRich_ReadError(t *testing.T) {
	e, _ := newEngine(true)
	boom := errors.New("tty gone")
	lr := &scriptedReader{script: []readResult{{err: boom}}}
	s, _ := newSession(e, session.LocalID)

	code, err := e.RunRich(context.Background(), s, lr)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, code)
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "continue", Continue.String())
	assert.Equal(t, "end-session", EndSession.String())
	assert.Equal(t, "exit", ExitProcess.String())
}
