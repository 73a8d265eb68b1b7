package runner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFilesSorted(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"20240310_000000.sql", "20240309_140507.sql", "schema.json", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "old.sql"), 0755))

	files, err := MigrationFiles(dir)
	require.NoError(t, err)

	require.Len(t, files, 2)
	assert.Equal(t, "20240309_140507", files[0].Version)
	assert.Equal(t, filepath.Join(dir, "20240309_140507.sql"), files[0].File)
	assert.Equal(t, "20240310_000000", files[1].Version)
}

func TestMigrationFilesMissingDir(t *testing.T) {
	files, err := MigrationFiles(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestPending(t *testing.T) {
	all := []Migration{{Version: "a"}, {Version: "b"}, {Version: "c"}}

	assert.Equal(t, []Migration{{Version: "b"}}, Pending(all, map[string]bool{"a": true, "c": true}))
	assert.Equal(t, all, Pending(all, map[string]bool{}))
	assert.Empty(t, Pending(all, map[string]bool{"a": true, "b": true, "c": true}))
}
