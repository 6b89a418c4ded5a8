package restore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/restoredb/restoredb/internal/pgdump"
	"github.com/restoredb/restoredb/internal/sniff"
	"github.com/restoredb/restoredb/internal/sniff/formats"
)

// NotRestorableError reports input whose innermost recognized layer is not
// restorable SQL. The full detected stack names what was found instead.
type NotRestorableError struct {
	Stack []string
}

func (e *NotRestorableError) Error() string {
	return fmt.Sprintf("not a PostgreSQL dump (%s)", strings.Join(e.Stack, ", "))
}

// NewRegistry assembles the generic descriptors plus the PostgreSQL ones.
func NewRegistry(logger *zap.Logger, cfg Config, tools formats.Tools) *sniff.Registry {
	reg := sniff.NewRegistry(logger)
	reg.MustRegister(formats.Builtin(tools)...)
	reg.MustRegister(
		pgdump.TarDump(cfg.RestoreArgs()),
		pgdump.CustomDump(cfg.RestoreArgs()),
		pgdump.PlainSQL(),
	)
	return reg
}

// Open builds the decode chain for the source and verifies the terminal
// payload is restorable SQL. On rejection the chain is closed and no
// restoring process is ever spawned.
func Open(ctx context.Context, logger *zap.Logger, cfg Config, tools formats.Tools, name string, src io.Reader) (*sniff.Stage, error) {
	reg := NewRegistry(logger, cfg, tools)
	logger.Debug("registry assembled", zap.Strings("formats", reg.Names()))
	stage, err := reg.Open(ctx, name, src)
	if err != nil {
		return nil, err
	}
	stack := stage.Stack()
	if len(stack) == 0 || stack[len(stack)-1] != pgdump.LabelSQL {
		stage.Close()
		return nil, &NotRestorableError{Stack: stack}
	}
	logger.Debug("dump recognized", zap.Strings("stack", stack), zap.String("name", stage.Name()))
	return stage, nil
}
