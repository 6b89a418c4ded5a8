// Package pgdump recognizes PostgreSQL dump formats: the custom binary
// archive, its tar-wrapped multi-file variant, and the plain SQL payload
// they all decode to.
package pgdump

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"
)

// Magic identifies a custom-format archive.
var Magic = []byte("PGDMP")

// Archive format codes stored in the header.
const (
	FormatUnknown   = 0
	FormatCustom    = 1
	FormatFiles     = 2
	FormatTar       = 3
	FormatNull      = 4
	FormatDirectory = 5
)

var formatNames = map[int]string{
	FormatUnknown:   "UNKNOWN",
	FormatCustom:    "CUSTOM",
	FormatFiles:     "FILES",
	FormatTar:       "TAR",
	FormatNull:      "NULL",
	FormatDirectory: "DIRECTORY",
}

// Header version gates, packed as ((major*256)+minor)*256+rev.
func makeVersion(major, minor, rev int) int {
	return ((major*256)+minor)*256 + rev
}

var (
	versCompression = makeVersion(1, 2, 0)
	versCreateDate  = makeVersion(1, 4, 0)
	versOffSize     = makeVersion(1, 7, 0)
	versVersions    = makeVersion(1, 10, 0)
)

// Header is the structured head of a custom-format archive, parsed purely
// for display. Fields absent from older archive versions stay zero.
type Header struct {
	VersionMajor int
	VersionMinor int
	VersionRev   int
	IntSize      int
	OffSize      int
	Format       int
	Compression  int
	CreateDate   time.Time
	Dbname       string
	// RemoteVersion is the server the archive was dumped from, DumpVersion
	// the pg_dump that produced it.
	RemoteVersion string
	DumpVersion   string
}

// FormatName returns the display name of the archive format code.
func (h *Header) FormatName() string {
	if name, ok := formatNames[h.Format]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", h.Format)
}

// CompressionName labels the archive-internal compression setting.
func (h *Header) CompressionName() string {
	switch {
	case h.Compression == 0:
		return "none"
	case h.Compression < 0:
		return "gzip"
	default:
		return fmt.Sprintf("gzip (level %d)", h.Compression)
	}
}

func (h *Header) version() int {
	return makeVersion(h.VersionMajor, h.VersionMinor, h.VersionRev)
}

// headerReader decodes the integer and string encodings of the archive
// head: integers are a sign byte followed by IntSize little-endian bytes,
// strings are a length integer followed by the bytes (negative length means
// absent).
type headerReader struct {
	buf     []byte
	pos     int
	intSize int
}

var errShortHeader = errors.New("truncated archive header")

func (r *headerReader) readByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, errShortHeader
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *headerReader) readInt() (int, error) {
	sign, err := r.readByte()
	if err != nil {
		return 0, err
	}
	val := 0
	for i := 0; i < r.intSize; i++ {
		b, err := r.readByte()
		if err != nil {
			return 0, err
		}
		val |= int(b) << (8 * i)
	}
	if sign != 0 {
		val = -val
	}
	return val, nil
}

func (r *headerReader) readStr() (string, error) {
	n, err := r.readInt()
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", nil
	}
	if r.pos+n > len(r.buf) {
		return "", errShortHeader
	}
	s := string(r.buf[r.pos : r.pos+n])
	r.pos += n
	return s, nil
}

// ParseHeader decodes the archive head from the peeked region. It never
// reads past the supplied window; a malformed head is an error the caller
// treats as "no header to display", detection is unaffected.
func ParseHeader(peek []byte) (*Header, error) {
	if !bytes.HasPrefix(peek, Magic) {
		return nil, errors.New("missing PGDMP signature")
	}
	r := &headerReader{buf: peek, pos: len(Magic)}

	h := &Header{}
	for _, dst := range []*int{&h.VersionMajor, &h.VersionMinor, &h.VersionRev} {
		b, err := r.readByte()
		if err != nil {
			return nil, err
		}
		*dst = int(b)
	}

	b, err := r.readByte()
	if err != nil {
		return nil, err
	}
	h.IntSize = int(b)
	if h.IntSize == 0 || h.IntSize > 8 {
		return nil, fmt.Errorf("implausible integer size %d", h.IntSize)
	}
	r.intSize = h.IntSize

	h.OffSize = h.IntSize
	if h.version() >= versOffSize {
		b, err := r.readByte()
		if err != nil {
			return nil, err
		}
		h.OffSize = int(b)
	}

	b, err = r.readByte()
	if err != nil {
		return nil, err
	}
	h.Format = int(b)

	if h.version() >= versCompression {
		if h.version() < versCreateDate {
			b, err := r.readByte()
			if err != nil {
				return nil, err
			}
			h.Compression = int(int8(b))
		} else {
			h.Compression, err = r.readInt()
			if err != nil {
				return nil, err
			}
		}
	}

	if h.version() >= versCreateDate {
		// tm-style fields: seconds up to years-since-1900 plus isdst.
		var tm [7]int
		for i := range tm {
			tm[i], err = r.readInt()
			if err != nil {
				return nil, err
			}
		}
		h.CreateDate = time.Date(tm[5]+1900, time.Month(tm[4]+1), tm[3],
			tm[2], tm[1], tm[0], 0, time.Local)
		h.Dbname, err = r.readStr()
		if err != nil {
			return nil, err
		}
	}

	if h.version() >= versVersions {
		h.RemoteVersion, err = r.readStr()
		if err != nil {
			return nil, err
		}
		h.DumpVersion, err = r.readStr()
		if err != nil {
			return nil, err
		}
	}

	return h, nil
}

// Display writes the informational header block. It is advisory only and
// goes to the diagnostic stream, never to a downstream tool.
func (h *Header) Display(w io.Writer) {
	fmt.Fprintf(w, ";\n")
	fmt.Fprintf(w, "; Archive created at %s\n", h.CreateDate.Format(time.ANSIC))
	fmt.Fprintf(w, ";     dbname: %s\n", h.Dbname)
	fmt.Fprintf(w, ";     Compression: %s\n", h.CompressionName())
	fmt.Fprintf(w, ";     Dump Version: %d.%d-%d\n", h.VersionMajor, h.VersionMinor, h.VersionRev)
	fmt.Fprintf(w, ";     Format: %s\n", h.FormatName())
	fmt.Fprintf(w, ";     Integer: %d bytes\n", h.IntSize)
	fmt.Fprintf(w, ";     Offset: %d bytes\n", h.OffSize)
	if h.RemoteVersion != "" {
		fmt.Fprintf(w, ";     Dumped from database version: %s\n", h.RemoteVersion)
	}
	if h.DumpVersion != "" {
		fmt.Fprintf(w, ";     Dumped by pg_dump version: %s\n", h.DumpVersion)
	}
	fmt.Fprintf(w, ";\n")
}
