// Package server is the socket REPL: every accepted connection gets its
// own session driven through the shared repl.Engine.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	replerr "formrepl/internal/errors"
	"formrepl/internal/metrics"
	"formrepl/internal/repl"
	"formrepl/internal/session"
	"formrepl/util"
)

// Server accepts socket REPL connections.
type Server struct {
	Engine   *repl.Engine
	Sessions *session.Manager

	// Namespace is the namespace new sessions start in.
	Namespace string

	// ReadBufSize bounds one socket read; each read is one line.
	ReadBufSize int

	Metrics *metrics.Collector
	Logger  *util.Logger

	wg sync.WaitGroup
}

// Serve accepts connections on ln until ctx is done or Accept fails.
// An accept failure stops only the server; it is logged and returned.
// Serve closes ln and waits for every handler before returning.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.wg.Wait()
	defer s.Sessions.CloseAll()
	defer ln.Close()

	s.Logger.Info("formrepl socket REPL listening at %s", ln.Addr())

	// Shut the listener down when the context expires.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-stop:
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			s.Metrics.RecordError(err.Error())
			s.Logger.Error("socket REPL accept: %v", err)
			return replerr.Wrap("accept", ln.Addr().String(), err)
		}

		s.Logger.Verbose("connection from %s", conn.RemoteAddr())
		s.wg.Add(1)
		go s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	sink := util.NewSyncWriter(conn)
	sink.OnWrite = func(n int) { s.Metrics.BytesSent(int64(n)) }

	sess := s.Sessions.Open(s.Namespace, sink, conn)
	defer s.Sessions.Close(sess)

	err := s.drive(ctx, sess, conn)
	switch {
	case err == nil:
		s.logf(sess, "ended by client after %d bytes", sink.Written())
	case errors.Is(err, replerr.ErrSessionClosed):
		s.logf(sess, "disconnected after %d bytes", sink.Written())
	default:
		s.Metrics.RecordError(err.Error())
		s.logf(sess, "%v", err)
	}
}

// drive runs sess from conn until the session ends.  It returns nil
// when the client ended the session, replerr.ErrSessionClosed when the
// connection went away, and the read or write failure otherwise.
func (s *Server) drive(ctx context.Context, sess *session.Session, conn net.Conn) error {
	s.Engine.Start(sess)
	if err := s.sendPrompt(sess); err != nil {
		return err
	}

	size := s.ReadBufSize
	if size <= 0 {
		size = util.ReadBufSize
	}
	bufp := util.GetBuf(size)
	defer util.PutBuf(bufp)
	buf := (*bufp)[:size]

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			s.Metrics.BytesReceived(int64(n))
			out := s.Engine.ProcessLine(ctx, sess, util.TrimLineEnding(string(buf[:n])))
			if out.Action != repl.Continue {
				return nil
			}
			if err := s.sendPrompt(sess); err != nil {
				return err
			}
		}
		if err != nil {
			if util.IsHarmless(err) {
				return replerr.ErrSessionClosed
			}
			return replerr.Wrap("read", conn.RemoteAddr().String(), err)
		}
	}
}

// sendPrompt writes the session's prompt.  A failed write means the
// client is gone.
func (s *Server) sendPrompt(sess *session.Session) error {
	if sess.Prompt == "" {
		return nil
	}
	if _, err := sess.Sink.Write([]byte(sess.Prompt)); err != nil {
		if util.IsHarmless(err) {
			return replerr.ErrSessionClosed
		}
		return fmt.Errorf("write prompt: %w", err)
	}
	return nil
}

func (s *Server) logf(sess *session.Session, format string, args ...interface{}) {
	if sess.Logger != nil {
		sess.Logger.Verbose(format, args...)
	}
}
