package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSample(t *testing.T) {
	doc, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 3, doc.Len())

	u, ok := doc.Unit(1)
	require.True(t, ok)
	assert.Equal(t, "Introduction", u.Title)
	assert.NotContains(t, u.Body, "# Introduction")

	_, ok = doc.Unit(0)
	assert.False(t, ok)
	_, ok = doc.Unit(4)
	assert.False(t, ok)
}

func TestLoadDirectorySortsByName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("second"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("# First\nbody"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.json"), []byte("{}"), 0o644))

	doc, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, 2, doc.Len())
	assert.Equal(t, "First", doc.Units[0].Title)
	assert.Equal(t, "b", doc.Units[1].Title)
	assert.Equal(t, "second", doc.Units[1].Body)
}

func TestLoadFileSplitsOnSeparator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reading.md")
	text := "# One\nalpha\n---\nbeta\n  ---  \n\n---\n# Three\ngamma\n"
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))

	doc, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 3, doc.Len())
	assert.Equal(t, "One", doc.Units[0].Title)
	assert.Equal(t, "Page 2", doc.Units[1].Title)
	assert.Equal(t, "beta", doc.Units[1].Body)
	assert.Equal(t, "Three", doc.Units[2].Title)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	empty := t.TempDir()
	_, err = Load(empty)
	assert.ErrorIs(t, err, ErrEmpty)

	path := filepath.Join(t.TempDir(), "blank.md")
	require.NoError(t, os.WriteFile(path, []byte("\n---\n\n"), 0o644))
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrEmpty)
}
