// logroute validates logging configurations and pipes text through them.
//
// Usage:
//
//	logroute check <file> [--resolve name]...
//	logroute pipe --config <file> [--logger name] [--level info] [--trace-id id]
//
// Exit codes:
//
//	0: success
//	1: invalid configuration or runtime failure
//	2: usage error
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

// Version is injected with -ldflags "-X main.Version=...".
var Version = "0.1.0-dev"

// usageError marks bad arguments; it maps to exit code 2.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr))
}

func createApp(stdin io.Reader, stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "logroute",
		Usage:     "validate logging configurations and route text through them",
		Version:   Version,
		Reader:    stdin,
		Writer:    stdout,
		ErrWriter: stderr,
		Commands: []*cli.Command{
			createCheckCommand(),
			createPipeCommand(),
		},
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			var coder cli.ExitCoder
			if errors.As(err, &coder) {
				fmt.Fprintln(stderr, err)
			}
		},
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	app := createApp(stdin, stdout, stderr)
	if err := app.Run(ctx, args); err != nil {
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(stderr, "usage error: %v\n", usageErr)
			return 2
		}
		var coder cli.ExitCoder
		if errors.As(err, &coder) {
			return coder.ExitCode()
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
