// Package restore drives the detection pipeline and feeds the decoded SQL
// into its destination.
package restore

import (
	"strconv"

	"github.com/go-playground/validator/v10"
)

// Config is the immutable restore configuration, built once from parsed
// flags and passed by value into the process-spawning constructors.
type Config struct {
	// Dbname is the destination database; empty or "-" writes the decoded
	// SQL to stdout instead.
	Dbname   string
	Host     string
	Port     int `validate:"omitempty,min=1,max=65535"`
	Username string

	// Forwarded verbatim to pg_restore.
	NoOwner      bool
	NoPrivileges bool
	Clean        bool
	Create       bool

	// NoHeader suppresses the informational header block.
	NoHeader bool

	// PsqlCommand and RestoreCommand override the stock executables, e.g.
	// from a tools file. Empty means psql and pg_restore from PATH.
	PsqlCommand    []string `validate:"omitempty,dive,required"`
	RestoreCommand []string `validate:"omitempty,dive,required"`
}

var defaultValidator = validator.New(validator.WithRequiredStructEnabled())

func (c Config) Validate() error {
	return defaultValidator.Struct(c)
}

// RestoreArgs is the pg_restore invocation the custom-dump stages pipe
// through.
func (c Config) RestoreArgs() []string {
	argv := []string{"pg_restore"}
	if len(c.RestoreCommand) > 0 {
		argv = append([]string(nil), c.RestoreCommand...)
	}
	if c.NoOwner {
		argv = append(argv, "--no-owner")
	}
	if c.NoPrivileges {
		argv = append(argv, "--no-privileges")
	}
	if c.Clean {
		argv = append(argv, "--clean")
	}
	if c.Create {
		argv = append(argv, "--create")
	}
	return argv
}

// PsqlArgs is the restoring-process invocation fed by the terminal stage.
func (c Config) PsqlArgs() []string {
	argv := []string{"psql"}
	if len(c.PsqlCommand) > 0 {
		argv = append([]string(nil), c.PsqlCommand...)
	}
	argv = append(argv, "--dbname", c.Dbname)
	if c.Host != "" {
		argv = append(argv, "--host", c.Host)
	}
	if c.Port != 0 {
		argv = append(argv, "--port", strconv.Itoa(c.Port))
	}
	if c.Username != "" {
		argv = append(argv, "--username", c.Username)
	}
	return argv
}
