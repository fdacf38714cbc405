package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/creatorstation/radarlcd/internal/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDir(t *testing.T) *Dir {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "tmp"), time.UTC)
	require.NoError(t, err)
	return d
}

func at(h, m int) frame.Identity {
	return frame.At(time.Date(2024, 7, 1, h, m, 0, 0, time.UTC), 5*time.Minute)
}

func TestWriteReadExists(t *testing.T) {
	d := testDir(t)
	id := at(12, 0)

	assert.False(t, d.Exists(id))
	require.NoError(t, d.Write(id, []byte("png")))

	assert.True(t, d.Exists(id))
	assert.Equal(t, filepath.Join(d.Root(), "20240701_120000.png"), d.Path(id))
	data, err := d.Read(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)
}

func TestReadMissing(t *testing.T) {
	d := testDir(t)

	_, err := d.Read(at(12, 0))

	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	d := testDir(t)
	require.NoError(t, d.Write(at(12, 0), []byte("a")))
	require.NoError(t, d.Write(at(12, 0), []byte("b")))

	entries, err := os.ReadDir(d.Root())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "20240701_120000.png", entries[0].Name())
}

func TestListIgnoresForeignFiles(t *testing.T) {
	d := testDir(t)
	require.NoError(t, d.Write(at(12, 5), []byte("x")))
	require.NoError(t, d.Write(at(11, 55), []byte("x")))
	require.NoError(t, os.WriteFile(filepath.Join(d.Root(), "notes.txt"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(d.Root(), "error.png"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(d.Root(), tempPrefix+"123"), nil, 0644))
	require.NoError(t, os.Mkdir(filepath.Join(d.Root(), "20240701_120000.png"), 0755))

	ids, err := d.List()
	require.NoError(t, err)

	require.Len(t, ids, 2)
	assert.Equal(t, "20240701_115500", ids[0].Key())
	assert.Equal(t, "20240701_120500", ids[1].Key())
}

func TestRemove(t *testing.T) {
	d := testDir(t)
	id := at(12, 0)
	require.NoError(t, d.Write(id, []byte("x")))

	require.NoError(t, d.Remove(id))
	assert.False(t, d.Exists(id))
	assert.NoError(t, d.Remove(id), "removing a missing artifact is a no-op")
}
