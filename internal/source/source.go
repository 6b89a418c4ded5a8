// Package source resolves the dump argument to a readable byte stream:
// local files, stdin, http(s) URLs and s3:// objects.
package source

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Open resolves name to a dump source. Empty or "-" means stdin. The
// returned name is a base name usable as an extension hint for format
// detection; it is empty for stdin.
func Open(ctx context.Context, fs afero.Fs, stdin io.Reader, name string) (io.ReadCloser, string, error) {
	switch {
	case name == "" || name == "-":
		return io.NopCloser(stdin), "", nil
	case strings.HasPrefix(name, "http://"), strings.HasPrefix(name, "https://"):
		return openHTTP(ctx, name)
	case strings.HasPrefix(name, "s3://"):
		return openS3(ctx, name)
	default:
		f, err := fs.Open(name)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open dump: %w", err)
		}
		return f, filepath.Base(name), nil
	}
}
