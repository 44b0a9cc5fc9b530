package core

import (
	"fmt"
	"io"
	"os"

	"formrepl/config"
	"formrepl/internal/gate"
	"formrepl/internal/history"
	"formrepl/internal/lisp"
	"formrepl/internal/metrics"
	"formrepl/internal/prompt"
	"formrepl/internal/repl"
	"formrepl/internal/server"
	"formrepl/internal/session"
	"formrepl/internal/transport"
	"formrepl/tunnel"
	"formrepl/util"
)

// Build wires every component for cfg.  It is the single place that
// decides which pieces a process needs: the socket server only when
// the socket REPL is enabled, history only for a rich terminal.
func Build(cfg *config.Config, logger *util.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := metrics.New()
	eval := lisp.New(cfg.InitNamespace)
	rich := !cfg.DumbTerminal

	theme := prompt.ThemeFor("none")
	if rich {
		theme = prompt.ThemeFor(cfg.Theme)
	}

	g := &gate.Gate{Metrics: m, Logger: logger.Named("gate")}
	engine := &repl.Engine{
		Eval:       eval,
		Gate:       g,
		Rich:       rich,
		ExitTokens: cfg.ExitTokens,
		Theme:      theme,
		Metrics:    m,
	}

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Metrics:  m,
		Eval:     eval,
		Gate:     g,
		Sessions: session.NewManager(m, logger),
		Engine:   engine,
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}

	if cfg.HistoryEnabled() {
		app.History = buildHistory(cfg, logger)
	}

	if cfg.SocketEnabled() {
		app.Transport = buildTransport(cfg, logger, m)
		app.Server = &server.Server{
			Engine:      engine,
			Sessions:    app.Sessions,
			Namespace:   cfg.InitNamespace,
			ReadBufSize: cfg.ReadBufSize,
			Metrics:     m,
			Logger:      logger.Named("socket"),
		}
	}

	return app, nil
}

// buildHistory opens the history file.  A history that cannot be read
// is a warning, not a startup failure: the session runs without one.
func buildHistory(cfg *config.Config, logger *util.Logger) *history.Store {
	path := cfg.ResolvedHistoryPath()
	if path == "" {
		logger.Verbose("no home directory; history disabled")
		return nil
	}
	store, err := history.Open(path)
	if err != nil {
		logger.Warn("history disabled: %v", err)
		return nil
	}
	logger.Debug("history: %d entries from %s", len(store.Entries()), path)
	return store
}

// buildTransport picks where the socket REPL listens.
func buildTransport(cfg *config.Config, logger *util.Logger, m *metrics.Collector) transport.Listener {
	if cfg.ExposeEnabled {
		sshCfg := &tunnel.SSHConfig{
			User:          cfg.ExposeUser,
			Host:          cfg.ExposeHost,
			Port:          cfg.ExposePort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   config.DefaultConnTimeout,
			KeepAlive:     config.DefaultKeepAlive,
		}
		l := transport.NewSSHListener(sshCfg, cfg.RemoteBindAddress, cfg.RemotePort, logger, m)
		l.Backoff.MaxAttempts = config.DefaultMaxConnectAttempts
		return l
	}
	return &transport.TCPListener{Host: cfg.SocketHost, Port: cfg.SocketPort}
}

// stdinCloser adapts the configured stdin for the line editor, which
// takes ownership of a ReadCloser.
func stdinCloser(r io.Reader) io.ReadCloser {
	if rc, ok := r.(io.ReadCloser); ok {
		return rc
	}
	return io.NopCloser(r)
}

func describe(app *App) string {
	mode := "dumb terminal"
	if app.Engine.Rich {
		mode = fmt.Sprintf("rich terminal, theme %s", app.Engine.Theme.Name)
	}
	if app.Transport != nil {
		mode += ", socket REPL on"
	}
	return mode
}
