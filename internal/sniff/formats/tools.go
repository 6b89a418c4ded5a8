package formats

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
)

// Tools holds the argv of the external helpers the generic descriptors
// shell out to.
type Tools struct {
	XZ       []string `yaml:"xz" validate:"omitempty,dive,required"`
	Funzip   []string `yaml:"funzip" validate:"omitempty,dive,required"`
	SevenZip []string `yaml:"7z" validate:"omitempty,dive,required"`

	// Psql and PgRestore override the PostgreSQL executables themselves;
	// empty keeps the PATH defaults.
	Psql      []string `yaml:"psql" validate:"omitempty,dive,required"`
	PgRestore []string `yaml:"pg_restore" validate:"omitempty,dive,required"`
}

var defaultValidator = validator.New(validator.WithRequiredStructEnabled())

// DefaultTools returns the stock helper commands.
func DefaultTools() Tools {
	return Tools{
		XZ:       []string{"xz", "--decompress", "--stdout"},
		Funzip:   []string{"funzip"},
		SevenZip: []string{"7z", "e", "-si", "-so"},
	}
}

// LoadTools parses a YAML override file. Helpers left out keep their stock
// argv.
func LoadTools(data []byte) (Tools, error) {
	var overrides Tools
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return Tools{}, fmt.Errorf("failed to unmarshal tools file: %w", err)
	}
	if err := defaultValidator.Struct(overrides); err != nil {
		return Tools{}, fmt.Errorf("failed to validate tools file: %w", err)
	}
	tools := DefaultTools()
	if len(overrides.XZ) > 0 {
		tools.XZ = overrides.XZ
	}
	if len(overrides.Funzip) > 0 {
		tools.Funzip = overrides.Funzip
	}
	if len(overrides.SevenZip) > 0 {
		tools.SevenZip = overrides.SevenZip
	}
	tools.Psql = overrides.Psql
	tools.PgRestore = overrides.PgRestore
	return tools, nil
}
