package sniff

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// SpawnError reports an external-process stage whose command could not
// start. It is fatal to the whole open.
type SpawnError struct {
	Argv []string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("cannot spawn %q: %v", e.Argv[0], e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// CommandConfig describes an external-process stage.
type CommandConfig struct {
	// Argv is the full command line; Argv[0] is resolved through PATH.
	Argv []string
	// Label and Meta are recorded on the produced stage, see WrapConfig.
	Label string
	Meta  any
}

// StartCommand spawns the command with the parent stage piped to its stdin
// and returns a stage reading the process output. The command's stderr is
// passed through. The stage's Close terminates and reaps the process.
func StartCommand(ctx context.Context, parent *Stage, cfg CommandConfig) (*Stage, error) {
	if len(cfg.Argv) == 0 {
		return nil, errors.New("empty command")
	}
	cmd := exec.CommandContext(ctx, cfg.Argv[0], cfg.Argv[1:]...)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &SpawnError{Argv: cfg.Argv, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Argv: cfg.Argv, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Argv: cfg.Argv, Err: err}
	}

	// The stdin copy runs detached from cmd.Wait: when the process is
	// killed mid-stream the copy may still be blocked reading the parent,
	// and unblocks only once the parent chain is closed underneath it.
	go func() {
		_, _ = io.Copy(stdin, parent)
		_ = stdin.Close()
	}()

	st := Wrap(parent, WrapConfig{Label: cfg.Label, Reader: stdout, Meta: cfg.Meta})
	st.closer = func() error { return reap(cmd, st) }
	return st, nil
}

// reap tears the process down. A non-zero exit is surfaced only when the
// stage was drained to EOF: a tool starved by an early consumer close must
// not mask overall success.
func reap(cmd *exec.Cmd, st *Stage) error {
	if !st.drained {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil
	}
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%s: %w", cmd.Path, err)
	}
	return nil
}
