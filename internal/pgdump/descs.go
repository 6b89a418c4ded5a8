package pgdump

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/gabriel-vasile/mimetype"

	"github.com/restoredb/restoredb/internal/sniff"
)

// Canonical format labels.
const (
	LabelCustom = "pgdmp_custom"
	LabelTar    = "pgdmp_tar"
	LabelSQL    = "sql"
)

// tarBlockSize is the offset of the first member's data in a tar stream,
// where the tar variant keeps its table of contents.
const tarBlockSize = 512

// tocName is the first member of every tar-format archive.
const tocName = "toc.dat"

// headerPeek bounds the region the display header is parsed from.
const headerPeek = 16 << 10

// CustomDump recognizes a bare custom-format archive by its signature and
// streams it through pg_restore to obtain SQL.
func CustomDump(restoreArgv []string) *sniff.Desc {
	return &sniff.Desc{
		Name:       LabelCustom,
		Label:      LabelCustom,
		Mimes:      []string{"application/octet-stream"},
		Extensions: []string{"pgdump", "dump"},
		Sniff: func(peek []byte, _ *mimetype.MIME) bool {
			return hasMagic(peek, 0)
		},
		Open: func(ctx context.Context, parent *sniff.Stage) (*sniff.Stage, error) {
			return openDump(ctx, parent, LabelCustom, 0, restoreArgv)
		},
	}
}

// TarDump recognizes the tar-format archive by its toc.dat first member and
// the signature at the member-data offset. It registers at a negative
// priority so it wins before the generic tar extractor would unpack the
// table of contents and re-probe it, losing the cheap shortcut signal.
func TarDump(restoreArgv []string) *sniff.Desc {
	return &sniff.Desc{
		Name:       LabelTar,
		Label:      LabelTar,
		Priority:   -10,
		Mimes:      []string{"application/x-tar"},
		Extensions: []string{"tar"},
		Sniff: func(peek []byte, _ *mimetype.MIME) bool {
			return firstMemberName(peek) == tocName && hasMagic(peek, tarBlockSize)
		},
		Open: func(ctx context.Context, parent *sniff.Stage) (*sniff.Stage, error) {
			return openDump(ctx, parent, LabelTar, tarBlockSize, restoreArgv)
		},
	}
}

// PlainSQL is the terminal descriptor: plain text is restorable as-is. It
// carries a parent dump stage's parsed header forward for display and never
// re-accepts its own output.
func PlainSQL() *sniff.Desc {
	return &sniff.Desc{
		Name:          LabelSQL,
		Label:         LabelSQL,
		Extensions:    []string{"sql"},
		NonRepeatable: true,
		Sniff: func(_ []byte, mime *mimetype.MIME) bool {
			return isText(mime)
		},
		Open: func(ctx context.Context, parent *sniff.Stage) (*sniff.Stage, error) {
			var meta any
			if stack := parent.Stack(); len(stack) > 0 {
				switch stack[len(stack)-1] {
				case LabelCustom, LabelTar:
					meta = parent.Meta()
				}
			}
			return sniff.Wrap(parent, sniff.WrapConfig{
				Label:  LabelSQL,
				Reader: parent,
				Meta:   meta,
			}), nil
		},
	}
}

func hasMagic(peek []byte, off int) bool {
	return len(peek) >= off+len(Magic) && bytes.Equal(peek[off:off+len(Magic)], Magic)
}

func firstMemberName(peek []byte) string {
	if len(peek) < tarBlockSize {
		return ""
	}
	hdr, err := tar.NewReader(bytes.NewReader(peek)).Next()
	if err != nil {
		return ""
	}
	return hdr.Name
}

// isText walks the mime hierarchy: every textual subtype descends from
// text/plain.
func isText(mime *mimetype.MIME) bool {
	for m := mime; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// openDump parses the display header at the archive offset and pipes the
// whole stream through pg_restore. A malformed header is skipped, detection
// and restore proceed without it.
func openDump(ctx context.Context, parent *sniff.Stage, label string, tocPos int, argv []string) (*sniff.Stage, error) {
	peek, err := parent.Peek(tocPos + headerPeek)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	var meta any
	if tocPos < len(peek) {
		if hdr, herr := ParseHeader(peek[tocPos:]); herr == nil {
			meta = hdr
		}
	}
	return sniff.StartCommand(ctx, parent, sniff.CommandConfig{
		Argv:  argv,
		Label: label,
		Meta:  meta,
	})
}
