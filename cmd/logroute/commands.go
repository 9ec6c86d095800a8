package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/leeforge/logroute/config"
	"github.com/leeforge/logroute/logging"
	"github.com/leeforge/logroute/record"
	"github.com/leeforge/logroute/registry"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 10 * time.Second

func createCheckCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "validate a configuration file and print the resolved routes",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "resolve",
				Aliases: []string{"r"},
				Usage:   "also resolve the given logger name",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return &usageError{msg: "check takes exactly one configuration file"}
			}
			return cmdCheck(cmd, cmd.Args().First(), cmd.StringSlice("resolve"))
		},
	}
}

func cmdCheck(cmd *cli.Command, path string, extra []string) error {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	reg, err := cfg.Registry()
	if err != nil {
		return err
	}

	names := append([]string{registry.RootName}, reg.Loggers()...)
	names = append(names, extra...)

	w := tabwriter.NewWriter(cmd.Root().Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LOGGER\tLEVEL\tAPPENDERS")
	for _, name := range names {
		route := reg.Resolve(name)
		appenders := strings.Join(route.Appenders, ",")
		if appenders == "" {
			appenders = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", route.Logger, route.Level.LowerString(), appenders)
	}
	return w.Flush()
}

func createPipeCommand() *cli.Command {
	return &cli.Command{
		Name:  "pipe",
		Usage: "log each line read from stdin through a configuration",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "configuration file",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "logger",
				Aliases: []string{"n"},
				Usage:   "logger name the lines are logged under",
				Value:   registry.RootName,
			},
			&cli.StringFlag{
				Name:    "level",
				Aliases: []string{"l"},
				Usage:   "level of every line (trace, debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "trace-id",
				Usage: "trace id attached to every line as the trace_id field",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			level, err := record.ParseLevel(cmd.String("level"))
			if err != nil || level == record.OffLevel {
				return &usageError{msg: fmt.Sprintf("invalid level %q", cmd.String("level"))}
			}
			if id := cmd.String("trace-id"); id != "" {
				ctx = logging.SetTraceID(ctx, id)
			}
			return cmdPipe(ctx, cmd, cmd.String("config"), cmd.String("logger"), level)
		},
	}
}

func cmdPipe(ctx context.Context, cmd *cli.Command, path, name string, level record.Level) (err error) {
	root := cmd.Root()
	d, err := logging.InitFile(path, logging.WithOutput(root.Writer, root.ErrWriter))
	if err != nil {
		return err
	}
	defer func() {
		logging.SetGlobal(nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if serr := d.Shutdown(shutdownCtx); serr != nil && err == nil {
			err = serr
		}
	}()

	logger := logging.WithContext(d.Logger(name), ctx)
	scanner := bufio.NewScanner(root.Reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		logger.Log(level, scanner.Text())
	}
	return scanner.Err()
}
