package restore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/restoredb/restoredb/internal/pgdump"
	"github.com/restoredb/restoredb/internal/sniff"
)

// ExitError carries the restoring process's own exit code as the overall
// result.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("psql exited with code %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode makes the error usable as a process exit status at the CLI
// boundary.
func (e *ExitError) ExitCode() int { return e.Code }

// Run drains the terminal stage line by line into stdout or a psql
// subprocess, and tears the whole chain down on every path.
func Run(ctx context.Context, logger *zap.Logger, cfg Config, stage *sniff.Stage, stdout io.Writer) error {
	defer stage.Close()

	if hdr, ok := stage.Meta().(*pgdump.Header); ok && !cfg.NoHeader {
		hdr.Display(os.Stderr)
	}

	if cfg.Dbname == "" || cfg.Dbname == "-" {
		return runStdout(logger, stage, stdout)
	}
	return runPsql(ctx, logger, cfg, stage)
}

func runStdout(logger *zap.Logger, stage *sniff.Stage, stdout io.Writer) error {
	if f, ok := stdout.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return errors.New("refusing to write the dump to a terminal, use --dbname or redirect stdout")
	}
	logger.Debug("writing decoded dump to stdout", zap.String("name", stage.Name()))
	if err := feed(stdout, stage); err != nil {
		stage.Close()
		return fmt.Errorf("failed to write dump: %w", err)
	}
	// A drained chain may still surface an upstream tool's non-zero exit.
	return stage.Close()
}

func runPsql(ctx context.Context, logger *zap.Logger, cfg Config, stage *sniff.Stage) error {
	argv := cfg.PsqlArgs()
	logger.Debug("starting restore process", zap.Strings("argv", argv))

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = io.Discard
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("cannot spawn %q: %w", argv[0], err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("cannot spawn %q: %w", argv[0], err)
	}

	ferr := feed(stdin, stage)
	if ferr != nil {
		// The consumer went away or a decode layer failed mid-stream: stop
		// feeding and tear the chain down before collecting psql's status.
		logger.Debug("feed interrupted", zap.Error(ferr))
		stage.Close()
	}
	_ = stdin.Close()

	werr := cmd.Wait()
	code := 0
	var exitErr *exec.ExitError
	if errors.As(werr, &exitErr) {
		code = exitErr.ExitCode()
	} else if werr != nil {
		return fmt.Errorf("waiting for psql: %w", werr)
	}
	logger.Debug("restore process finished", zap.Int("exit_code", code))

	if ferr != nil && !errors.Is(ferr, syscall.EPIPE) && !errors.Is(ferr, os.ErrClosed) {
		return fmt.Errorf("failed to feed psql: %w", ferr)
	}
	if code != 0 {
		return &ExitError{Code: code, Err: werr}
	}
	if ferr != nil {
		// psql stopped reading early but exited clean; its result stands.
		return nil
	}
	return stage.Close()
}

// feed copies the payload one line at a time, interleaving pulls and
// pushes: intermediate external processes rely on steady pipe-sized flow,
// so nothing is buffered whole or written out of order.
func feed(dst io.Writer, src io.Reader) error {
	br := bufio.NewReader(src)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			if _, werr := dst.Write(line); werr != nil {
				return werr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
