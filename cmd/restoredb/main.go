package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var loggerDeferFunc func() error

func main() {
	app := &cli.Command{
		Name:      "restoredb",
		Usage:     "Restore a PostgreSQL dump of any supported format, however it is compressed",
		ArgsUsage: "[dump]",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:      "dump",
				UsageText: "The dump to restore: a file, an http(s) or s3 URL, or '-' for stdin",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dbname",
				Aliases: []string{"d"},
				Usage:   "Destination database; omit or use '-' to write the decoded SQL to stdout",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "Database server host or Unix-domain socket directory",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Database server port",
			},
			&cli.StringFlag{
				Name:    "username",
				Aliases: []string{"U"},
				Usage:   "Connect as this user instead of the default",
			},
			&cli.BoolFlag{
				Name:    "no-owner",
				Aliases: []string{"O"},
				Usage:   "Do not output commands to set ownership of objects to match the original database",
			},
			&cli.BoolFlag{
				Name:    "no-privileges",
				Aliases: []string{"no-acl", "x"},
				Usage:   "Prevent restoration of access privileges (grant/revoke commands)",
			},
			&cli.BoolFlag{
				Name:    "clean",
				Aliases: []string{"c"},
				Usage:   "Clean (drop) database objects before recreating them",
			},
			&cli.BoolFlag{
				Name:    "create",
				Aliases: []string{"C"},
				Usage:   "Create the database before restoring into it",
			},
			&cli.BoolFlag{
				Name:  "no-header",
				Usage: "Do not print the informational header (when available)",
			},
			&cli.StringFlag{
				Name:  "tools",
				Usage: "YAML file overriding the external helper commands (xz, funzip, 7z)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "warn",
				Usage:   "Log Level (debug, info, warn, error, fatal)",
				Action: func(ctx context.Context, command *cli.Command, s string) error {
					_, err := zapcore.ParseLevel(s)
					if err != nil {
						return fmt.Errorf("invalid log level %s: %w", s, err)
					}
					return nil
				},
			},
		},
		Commands: []*cli.Command{
			versionCommand,
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			logger, _, err := createLogger(command.Bool("debug"), command.String("log-level"))
			if err != nil {
				return nil, err
			}

			loggerDeferFunc = func() error {
				return logger.Sync()
			}

			return withLogger(ctx, logger), nil
		},
		Action: restoreAction,
		ExitErrHandler: func(ctx context.Context, command *cli.Command, err error) {
			if err == nil {
				return
			}

			fmt.Fprintf(os.Stderr, "restoredb: %v\n", err)
			if logger := tryLogger(ctx); logger != nil {
				logger.Debug("exiting on error", zap.Error(err))
			}
			if loggerDeferFunc != nil {
				_ = loggerDeferFunc()
			}

			code := 1
			var coder cli.ExitCoder
			if errors.As(err, &coder) {
				code = coder.ExitCode()
			}
			os.Exit(code)
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	// A broken stdout pipe must surface as an EPIPE write error handled by
	// the feed loop, not kill the process.
	signal.Ignore(syscall.SIGPIPE)

	defer func() {
		if loggerDeferFunc != nil {
			loggerDeferFunc()
		}
	}()

	app.Run(ctx, os.Args)
}
