// Command multiview is the CLI for the multiview record store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/multiview/internal/cli"
)

func main() {
	if err := cli.LoadEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCommandError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(cli.GetExitCode(err))
	}
}
