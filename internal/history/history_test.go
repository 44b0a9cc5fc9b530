package history

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hist")
	s, err := Open(path)
	require.NoError(t, err)
	assert.Empty(t, s.Entries())

	lines := []string{"(+ 1 2)", "(def x 1)", "  (inc x)"}
	for _, l := range lines {
		require.NoError(t, s.Add(l))
	}

	reloaded, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, lines, reloaded.Entries())
}

func TestStore_AddRewritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hist")
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.Add("one"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one\n", string(data))

	require.NoError(t, s.Add("two\n"))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))
}

func TestStore_SkipsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hist")
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.Add(""))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestStore_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "hist")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Add("x"))
	assert.FileExists(t, path)
	assert.Equal(t, path, s.Path())
}

func TestStore_EntriesIsCopy(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "hist"))
	require.NoError(t, err)
	require.NoError(t, s.Add("a"))

	e := s.Entries()
	e[0] = "mutated"
	assert.Equal(t, []string{"a"}, s.Entries())
}
