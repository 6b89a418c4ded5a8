package source

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStdin(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, arg := range []string{"", "-"} {
		rc, name, err := Open(t.Context(), fs, strings.NewReader("SELECT 1;\n"), arg)
		require.NoError(t, err)
		assert.Empty(t, name, "stdin carries no name hint")

		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "SELECT 1;\n", string(got))
		require.NoError(t, rc.Close())
	}
}

func TestOpenFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/backups/dump.sql.gz", []byte("data"), 0o644))

	rc, name, err := Open(t.Context(), fs, nil, "/backups/dump.sql.gz")
	require.NoError(t, err)
	defer rc.Close()

	assert.Equal(t, "dump.sql.gz", name)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))
}

func TestOpenFileMissing(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, _, err := Open(t.Context(), fs, nil, "/nope/dump.sql")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open dump")
}

func TestOpenHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("SELECT 1;\n"))
	}))
	defer srv.Close()

	rc, name, err := Open(t.Context(), afero.NewMemMapFs(), nil, srv.URL+"/backups/dump.sql")
	require.NoError(t, err)
	defer rc.Close()

	assert.Equal(t, "dump.sql", name)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1;\n", string(got))
}

func TestOpenHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, _, err := Open(t.Context(), afero.NewMemMapFs(), nil, srv.URL+"/missing.sql")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestOpenS3InvalidURL(t *testing.T) {
	for _, uri := range []string{"s3://", "s3://bucket", "s3://bucket/"} {
		_, _, err := Open(t.Context(), afero.NewMemMapFs(), nil, uri)
		require.Error(t, err, uri)
		assert.Contains(t, err.Error(), "invalid s3 url")
	}
}
