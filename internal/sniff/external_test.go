package sniff

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartCommandPassthrough(t *testing.T) {
	payload := strings.Repeat("SELECT 1;\n", 100)
	parent := NewSource("in", strings.NewReader(payload))

	st, err := StartCommand(t.Context(), parent, CommandConfig{
		Argv:  []string{"cat"},
		Label: "cat",
	})
	require.NoError(t, err)

	got, err := io.ReadAll(st)
	require.NoError(t, err)
	assert.Equal(t, payload, string(got))
	assert.Equal(t, []string{"cat"}, st.Stack())
	require.NoError(t, st.Close())
}

func TestStartCommandMissing(t *testing.T) {
	parent := NewSource("in", strings.NewReader("data"))

	_, err := StartCommand(t.Context(), parent, CommandConfig{
		Argv: []string{"definitely-not-a-real-command-4719"},
	})
	require.Error(t, err)

	var spawn *SpawnError
	require.ErrorAs(t, err, &spawn)
	assert.Equal(t, "definitely-not-a-real-command-4719", spawn.Argv[0])
}

func TestStartCommandExitSurfacedWhenDrained(t *testing.T) {
	parent := NewSource("in", strings.NewReader("data\n"))

	st, err := StartCommand(t.Context(), parent, CommandConfig{
		Argv:  []string{"sh", "-c", "cat >/dev/null; exit 3"},
		Label: "failing",
	})
	require.NoError(t, err)

	_, err = io.ReadAll(st)
	require.NoError(t, err)
	require.True(t, st.Drained())

	err = st.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 3")
}

func TestStartCommandExitIgnoredWhenAbandoned(t *testing.T) {
	// a consumer stopping early must not surface the starved tool's exit
	payload := bytes.Repeat([]byte("x"), 1<<20)
	parent := NewSource("in", bytes.NewReader(payload))

	st, err := StartCommand(t.Context(), parent, CommandConfig{
		Argv:  []string{"sh", "-c", "head -c 5; exit 3"},
		Label: "head",
	})
	require.NoError(t, err)

	buf := make([]byte, 5)
	_, err = io.ReadFull(st, buf)
	require.NoError(t, err)
	assert.False(t, st.Drained())

	require.NoError(t, st.Close())
}
