// Package formats provides the built-in generic compression and container
// descriptors probed before (or alongside) the application-level ones.
package formats

import (
	"archive/tar"
	"bytes"
	"compress/bzip2"
	"context"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/restoredb/restoredb/internal/sniff"
)

// Builtin returns the generic descriptors in canonical registration order.
// External helpers take their argv from tools, see LoadTools.
func Builtin(tools Tools) []*sniff.Desc {
	return []*sniff.Desc{
		gzipDesc(),
		zstdDesc(),
		lz4Desc(),
		bzip2Desc(),
		xzDesc(tools.XZ),
		tarDesc(),
		zipDesc(tools.Funzip),
		sevenZipDesc(tools.SevenZip),
	}
}

func gzipDesc() *sniff.Desc {
	d := &sniff.Desc{
		Name:       "gzip",
		Label:      "gzip",
		Mimes:      []string{"application/gzip", "application/x-gzip"},
		Extensions: []string{"gz", "tgz"},
	}
	d.Open = func(ctx context.Context, parent *sniff.Stage) (*sniff.Stage, error) {
		zr, err := gzip.NewReader(parent)
		if err != nil {
			return nil, err
		}
		name := parent.Name()
		if strings.HasSuffix(name, ".tgz") {
			name = strings.TrimSuffix(name, ".tgz") + ".tar"
		} else {
			name = sniff.TrimExt(name, d.Extensions...)
		}
		return sniff.Wrap(parent, sniff.WrapConfig{
			Label:  d.Label,
			Name:   name,
			Reader: zr,
			Closer: zr.Close,
		}), nil
	}
	return d
}

func zstdDesc() *sniff.Desc {
	d := &sniff.Desc{
		Name:       "zstd",
		Label:      "zstd",
		Mimes:      []string{"application/zstd", "application/x-zstd"},
		Extensions: []string{"zst", "zstd"},
	}
	d.Open = func(ctx context.Context, parent *sniff.Stage) (*sniff.Stage, error) {
		zr, err := zstd.NewReader(parent)
		if err != nil {
			return nil, err
		}
		return sniff.Wrap(parent, sniff.WrapConfig{
			Label:  d.Label,
			Name:   sniff.TrimExt(parent.Name(), d.Extensions...),
			Reader: zr.IOReadCloser(),
			Closer: func() error { zr.Close(); return nil },
		}), nil
	}
	return d
}

// lz4 frame magic, little-endian 0x184D2204.
var lz4Magic = []byte{0x04, 0x22, 0x4d, 0x18}

func lz4Desc() *sniff.Desc {
	d := &sniff.Desc{
		Name:       "lz4",
		Label:      "lz4",
		Extensions: []string{"lz4"},
		Sniff: func(peek []byte, _ *mimetype.MIME) bool {
			return bytes.HasPrefix(peek, lz4Magic)
		},
	}
	d.Open = func(ctx context.Context, parent *sniff.Stage) (*sniff.Stage, error) {
		return sniff.Wrap(parent, sniff.WrapConfig{
			Label:  d.Label,
			Name:   sniff.TrimExt(parent.Name(), d.Extensions...),
			Reader: lz4.NewReader(parent),
		}), nil
	}
	return d
}

func bzip2Desc() *sniff.Desc {
	d := &sniff.Desc{
		Name:       "bz2",
		Label:      "bz2",
		Mimes:      []string{"application/x-bzip2"},
		Extensions: []string{"bz2"},
	}
	d.Open = func(ctx context.Context, parent *sniff.Stage) (*sniff.Stage, error) {
		return sniff.Wrap(parent, sniff.WrapConfig{
			Label:  d.Label,
			Name:   sniff.TrimExt(parent.Name(), d.Extensions...),
			Reader: bzip2.NewReader(parent),
		}), nil
	}
	return d
}

func xzDesc(argv []string) *sniff.Desc {
	d := &sniff.Desc{
		Name:       "xz",
		Label:      "xz",
		Mimes:      []string{"application/x-xz"},
		Extensions: []string{"xz"},
	}
	d.Open = func(ctx context.Context, parent *sniff.Stage) (*sniff.Stage, error) {
		return sniff.StartCommand(ctx, parent, sniff.CommandConfig{
			Argv:  argv,
			Label: d.Label,
		})
	}
	return d
}

// tarDesc is the generic single-member container extractor: it exposes the
// first member's content and takes the member name as the stage name. The
// layer is transparent, it contributes no stack entry.
func tarDesc() *sniff.Desc {
	return &sniff.Desc{
		Name:       "tar",
		Mimes:      []string{"application/x-tar"},
		Extensions: []string{"tar"},
		Open: func(ctx context.Context, parent *sniff.Stage) (*sniff.Stage, error) {
			tr := tar.NewReader(parent)
			hdr, err := tr.Next()
			if err != nil {
				return nil, err
			}
			return sniff.Wrap(parent, sniff.WrapConfig{
				Name:   hdr.Name,
				Reader: tr,
			}), nil
		},
	}
}

func zipDesc(argv []string) *sniff.Desc {
	return &sniff.Desc{
		Name:       "zip",
		Mimes:      []string{"application/zip"},
		Extensions: []string{"zip"},
		Open: func(ctx context.Context, parent *sniff.Stage) (*sniff.Stage, error) {
			return sniff.StartCommand(ctx, parent, sniff.CommandConfig{Argv: argv})
		},
	}
}

func sevenZipDesc(argv []string) *sniff.Desc {
	return &sniff.Desc{
		Name:       "7z",
		Mimes:      []string{"application/x-7z-compressed"},
		Extensions: []string{"7z"},
		Open: func(ctx context.Context, parent *sniff.Stage) (*sniff.Stage, error) {
			return sniff.StartCommand(ctx, parent, sniff.CommandConfig{Argv: argv})
		},
	}
}
