package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/restoredb/restoredb/internal/restore"
	"github.com/restoredb/restoredb/internal/sniff/formats"
	"github.com/restoredb/restoredb/internal/source"
)

func restoreAction(ctx context.Context, command *cli.Command) error {
	logger := getLogger(ctx)
	fs := afero.NewOsFs()

	cfg := restore.Config{
		Dbname:       command.String("dbname"),
		Host:         command.String("host"),
		Port:         int(command.Int("port")),
		Username:     command.String("username"),
		NoOwner:      command.Bool("no-owner"),
		NoPrivileges: command.Bool("no-privileges"),
		Clean:        command.Bool("clean"),
		Create:       command.Bool("create"),
		NoHeader:     command.Bool("no-header"),
	}

	tools := formats.DefaultTools()
	if toolsFile := command.String("tools"); toolsFile != "" {
		data, err := afero.ReadFile(fs, toolsFile)
		if err != nil {
			return fmt.Errorf("failed to read tools file: %w", err)
		}
		tools, err = formats.LoadTools(data)
		if err != nil {
			return err
		}
		cfg.PsqlCommand = tools.Psql
		cfg.RestoreCommand = tools.PgRestore
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	src, name, err := source.Open(ctx, fs, os.Stdin, command.StringArg("dump"))
	if err != nil {
		return err
	}
	defer src.Close()

	logger.Debug("opening dump",
		zap.String("name", name),
		zap.Strings("pg_restore", cfg.RestoreArgs()))

	stage, err := restore.Open(ctx, logger.Named("sniff"), cfg, tools, name, src)
	if err != nil {
		return err
	}

	return restore.Run(ctx, logger.Named("restore"), cfg, stage, os.Stdout)
}
