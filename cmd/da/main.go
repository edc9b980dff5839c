// Command da runs batch jobs and manages the document cache.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/thecopy-and-thepaste/DA/internal/cli"
	"github.com/thecopy-and-thepaste/DA/internal/engine/cache"
	"github.com/thecopy-and-thepaste/DA/pkg/version"
)

// Exit codes.
const (
	exitError         = 1
	exitConfiguration = 2
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd(version.GetVersion())
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	return cli.Execute(ctx, root)
}

// exitCode maps err to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, cache.ErrConfiguration):
		return exitConfiguration
	default:
		return exitError
	}
}
