// formrepl is an interactive REPL front end with an optional socket REPL.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"formrepl/cmd"
	replerr "formrepl/internal/errors"
)

func main() {
	// SIGINT belongs to the evaluation gate; only SIGTERM stops the process.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM)

	err := cmd.Execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	cancel()

	var exit *replerr.ExitError
	if err != nil && !errors.As(err, &exit) {
		fmt.Fprintf(os.Stderr, "formrepl: %v\n", err)
	}
	os.Exit(replerr.ExitCode(err))
}
