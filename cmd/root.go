// Package cmd wires up the CLI flags and dispatches to the core App.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"formrepl/config"
	"formrepl/internal/core"
	replerr "formrepl/internal/errors"
	"formrepl/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X formrepl/cmd.version=1.1.0"
var version = "1.0.0" //nolint:gochecknoglobals

// isTerminal reports whether r is an interactive terminal.  Tests
// replace it.
var isTerminal = func(r io.Reader) bool { //nolint:gochecknoglobals
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// flags holds raw flag values.  They are applied on top of the config
// file and environment only when set on the command line.
type flags struct {
	dumb        bool
	socketRepl  string
	theme       string
	history     string
	noHistory   bool
	initNS      string
	expose      string
	remotePort  int
	remoteBind  string
	sshKey      string
	sshPassword bool
	sshAgent    bool
	strictHost  bool
	knownHosts  string
	configPath  string
	verbose     int
	stats       bool
	dryRun      bool
	showVersion bool
	showHelp    bool
}

// Execute parses args, builds the process and runs it.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var f flags
	fs := flag.NewFlagSet("formrepl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	// ── terminal ─────────────────────────────────────────────────
	fs.BoolVarP(&f.dumb, "dumb-terminal", "d", false, "Plain line input: no editing, history or highlighting")
	fs.StringVarP(&f.theme, "theme", "t", config.DefaultTheme, "Prompt theme: dark, light or none")
	fs.StringVar(&f.history, "history", "", "History file (default ~/"+config.DefaultHistoryFile+")")
	fs.BoolVar(&f.noHistory, "no-history", false, "Do not read or write history")
	fs.StringVar(&f.initNS, "init-ns", config.DefaultNamespace, "Namespace sessions start in")

	// ── socket REPL ──────────────────────────────────────────────
	fs.StringVarP(&f.socketRepl, "socket-repl", "n", "", "Serve a socket REPL on [host:]port")

	// ── SSH exposure ─────────────────────────────────────────────
	fs.StringVarP(&f.expose, "expose", "R", "", "Expose the socket REPL on an SSH gateway [user@]host[:port]")
	fs.IntVar(&f.remotePort, "remote-port", 0, "Port the gateway listens on (with -R)")
	fs.StringVar(&f.remoteBind, "remote-bind", "", "Bind address on the gateway (with -R)")
	fs.StringVar(&f.sshKey, "ssh-key", "", "SSH private key file")
	fs.BoolVar(&f.sshPassword, "ssh-password", false, "Prompt for SSH password")
	fs.BoolVar(&f.sshAgent, "ssh-agent", false, "Use SSH agent")
	fs.BoolVar(&f.strictHost, "strict-hostkey", false, "Verify SSH host keys")
	fs.StringVar(&f.knownHosts, "known-hosts", "", "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	fs.StringVarP(&f.configPath, "config", "c", "", "Config file (default ~/"+config.DefaultConfigFile+")")
	fs.CountVarP(&f.verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVar(&f.stats, "stats", false, "Print a metrics snapshot to stderr on exit")
	fs.BoolVar(&f.dryRun, "dry-run", false, "Validate the configuration and exit")
	fs.BoolVar(&f.showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&f.showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(stderr, fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}
	if f.showHelp {
		printUsage(stderr, fs)
		return nil
	}
	if f.showVersion {
		fmt.Fprintf(stdout, "formrepl %s\n", version)
		return nil
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument %q (use --help for usage)", fs.Arg(0))
	}

	// ── layer: defaults < file < env < flags ─────────────────────
	cfg := config.Default()
	path, optional := f.configPath, false
	if path == "" {
		path, optional = config.DefaultConfigPath(), true
	}
	if err := config.LoadFile(cfg, path, optional); err != nil {
		return err
	}
	config.LoadFromEnv(cfg)
	fs.Visit(func(fl *flag.Flag) { f.apply(cfg, fl.Name) })

	if err := resolveSpecs(cfg); err != nil {
		return err
	}
	if !isTerminal(stdin) {
		cfg.DumbTerminal = true
	}

	logger := util.NewLogger(cfg.Verbose)
	logger.SetOutput(stderr)

	if f.dryRun {
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger.Info("configuration is valid")
		return nil
	}

	app, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}
	app.Stdin = stdin
	app.Stdout = stdout
	app.Stderr = stderr
	return app.Run(ctx)
}

// apply copies one command-line flag onto cfg.
func (f *flags) apply(cfg *config.Config, name string) {
	switch name {
	case "dumb-terminal":
		cfg.DumbTerminal = f.dumb
	case "theme":
		cfg.Theme = f.theme
	case "history":
		cfg.HistoryPath = f.history
	case "no-history":
		cfg.NoHistory = f.noHistory
	case "init-ns":
		cfg.InitNamespace = f.initNS
	case "socket-repl":
		cfg.SocketSpec = f.socketRepl
	case "expose":
		cfg.ExposeSpec = f.expose
	case "remote-port":
		cfg.RemotePort = f.remotePort
	case "remote-bind":
		cfg.RemoteBindAddress = f.remoteBind
	case "ssh-key":
		cfg.SSHKeyPath = f.sshKey
	case "ssh-password":
		cfg.SSHPassword = f.sshPassword
	case "ssh-agent":
		cfg.UseSSHAgent = f.sshAgent
	case "strict-hostkey":
		cfg.StrictHostKey = f.strictHost
	case "known-hosts":
		cfg.KnownHostsPath = f.knownHosts
	case "verbose":
		cfg.Verbose = 1 + f.verbose
	case "stats":
		cfg.Stats = f.stats
	}
}

// resolveSpecs expands the --socket-repl and --expose strings.
func resolveSpecs(cfg *config.Config) error {
	if cfg.SocketSpec != "" {
		host, port, err := util.ParseListenSpec(cfg.SocketSpec)
		if err != nil {
			return &replerr.ConfigError{
				Field:   "socket-repl",
				Value:   cfg.SocketSpec,
				Message: err.Error(),
				Hint:    "use a port such as 8889 or host:port such as 0.0.0.0:8889",
			}
		}
		if host != "" {
			cfg.SocketHost = host
		}
		cfg.SocketPort = port
	}

	if cfg.ExposeSpec != "" {
		user, host, port, err := config.ParseGatewaySpec(cfg.ExposeSpec)
		if err != nil {
			return &replerr.ConfigError{Field: "expose", Value: cfg.ExposeSpec, Message: err.Error()}
		}
		if user == "" {
			user = os.Getenv("USER")
		}
		cfg.ExposeEnabled = true
		cfg.ExposeUser = user
		cfg.ExposeHost = host
		cfg.ExposePort = port
	}
	return nil
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, `formrepl – interactive REPL front end v%s

Reads forms from the terminal (or a socket) and evaluates each one as
soon as it is complete.

Usage:
  formrepl [options]

Options:
`, version)
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Examples:
  formrepl                                    Rich terminal REPL
  formrepl -d < script.clj                    Evaluate a script line by line
  formrepl -n 8889                            Also serve a socket REPL on 127.0.0.1:8889
  formrepl -n 0.0.0.0:8889 -t light           Socket REPL on all interfaces
  formrepl -R admin@bastion --remote-port 8889  Socket REPL exposed on a gateway
`)
}
