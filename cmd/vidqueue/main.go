package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// exitInterrupted follows the shell convention for SIGINT (128 + 2).
const exitInterrupted = 130

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	interrupted := ctx.Err() != nil
	stop()
	os.Exit(exitCode(err, interrupted))
}

// exitCode maps a command result to a process status. A loop cut short by
// Ctrl-C exits quietly with 130; commands that shut down cleanly on a signal
// (serve, logs --follow) return nil and exit 0.
func exitCode(err error, interrupted bool) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled) && interrupted:
		return exitInterrupted
	case errors.Is(err, context.Canceled):
		return 1
	default:
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
}
