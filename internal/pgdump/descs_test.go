package pgdump

import (
	"archive/tar"
	"bytes"
	"io"
	"testing"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/restoredb/restoredb/internal/sniff"
	"github.com/restoredb/restoredb/internal/sniff/formats"
)

// fakeRestore drains the archive and emits SQL, standing in for pg_restore.
var fakeRestore = []string{"sh", "-c", "cat >/dev/null; echo 'SELECT 1;'"}

// customDumpBytes is a synthetic custom-format archive: a valid head
// followed by opaque data.
func customDumpBytes() []byte {
	return append(sampleHeader(), bytes.Repeat([]byte{0x01, 0x00, 0xfe}, 2048)...)
}

// tocTarBytes wraps the archive head in the tar variant layout: toc.dat as
// the first member.
func tocTarBytes(t *testing.T) []byte {
	t.Helper()
	toc := customDumpBytes()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name: tocName,
		Mode: 0o600,
		Size: int64(len(toc)),
	}))
	_, err := tw.Write(toc)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func fullRegistry(t *testing.T) *sniff.Registry {
	t.Helper()
	reg := sniff.NewRegistry(zap.NewNop())
	reg.MustRegister(formats.Builtin(formats.DefaultTools())...)
	reg.MustRegister(TarDump(fakeRestore), CustomDump(fakeRestore), PlainSQL())
	return reg
}

func TestCustomDumpSniff(t *testing.T) {
	d := CustomDump(fakeRestore)

	dump := customDumpBytes()
	assert.True(t, d.Sniff(dump, mimetype.Detect(dump)))

	text := []byte("SELECT 1;\n")
	assert.False(t, d.Sniff(text, mimetype.Detect(text)))
}

func TestTarDumpSniff(t *testing.T) {
	d := TarDump(fakeRestore)

	toc := tocTarBytes(t)
	assert.True(t, d.Sniff(toc, mimetype.Detect(toc)))

	// a generic tar whose first member is not toc.dat must be left to the
	// plain extractor
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "other.dat", Mode: 0o600, Size: 5}))
	_, err := tw.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	assert.False(t, d.Sniff(buf.Bytes(), mimetype.Detect(buf.Bytes())))
}

func TestCustomDumpChain(t *testing.T) {
	reg := fullRegistry(t)
	st, err := reg.Open(t.Context(), "db.pgdump", bytes.NewReader(customDumpBytes()))
	require.NoError(t, err)
	defer st.Close()

	assert.Equal(t, []string{LabelCustom, LabelSQL}, st.Stack())

	hdr, ok := st.Meta().(*Header)
	require.True(t, ok, "parsed head must ride along to the terminal stage")
	assert.Equal(t, "testdb", hdr.Dbname)

	got, err := io.ReadAll(st)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1;\n", string(got))
}

func TestTarDumpBeatsGenericTar(t *testing.T) {
	reg := fullRegistry(t)
	st, err := reg.Open(t.Context(), "db.tar", bytes.NewReader(tocTarBytes(t)))
	require.NoError(t, err)
	defer st.Close()

	assert.Equal(t, []string{LabelTar, LabelSQL}, st.Stack())

	hdr, ok := st.Meta().(*Header)
	require.True(t, ok)
	assert.Equal(t, "testdb", hdr.Dbname)
}

func TestGenericTarPathAgreesOnTerminal(t *testing.T) {
	// without the shortcut the generic extractor unpacks toc.dat and the
	// custom recognizer takes over; the terminal payload is the same SQL
	reg := sniff.NewRegistry(zap.NewNop())
	reg.MustRegister(formats.Builtin(formats.DefaultTools())...)
	reg.MustRegister(CustomDump(fakeRestore), PlainSQL())

	st, err := reg.Open(t.Context(), "db.tar", bytes.NewReader(tocTarBytes(t)))
	require.NoError(t, err)
	defer st.Close()

	assert.Equal(t, []string{LabelCustom, LabelSQL}, st.Stack())
	assert.Equal(t, tocName, st.Name())
}

func TestCompressedCustomDump(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(customDumpBytes())
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	reg := fullRegistry(t)
	st, err := reg.Open(t.Context(), "db.pgdump.gz", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer st.Close()

	assert.Equal(t, []string{"gzip", LabelCustom, LabelSQL}, st.Stack())
}

func TestPlainSQLIsTerminal(t *testing.T) {
	reg := fullRegistry(t)
	st, err := reg.Open(t.Context(), "dump.sql", bytes.NewReader([]byte("SELECT 1;\n")))
	require.NoError(t, err)
	defer st.Close()

	// applied exactly once, never to its own output
	assert.Equal(t, []string{LabelSQL}, st.Stack())
	assert.Nil(t, st.Meta(), "no dump head to carry for plain input")
}
