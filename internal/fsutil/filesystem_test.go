package fsutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSFileSystem(t *testing.T) {
	t.Parallel()
	var fsys FileSystem = OSFileSystem{}
	dir := t.TempDir()

	for _, name := range []string{"b.music", "a.music", "notes.txt"} {
		require.NoError(t, fsys.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}
	got, err := fsys.Glob(filepath.Join(dir, "*.music"))
	require.NoError(t, err)
	want := []string{filepath.Join(dir, "a.music"), filepath.Join(dir, "b.music")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Glob mismatch (-want +got):\n%s", diff)
	}

	out := filepath.Join(dir, "out")
	require.NoError(t, fsys.MkdirAll(out, 0o755))
	require.NoError(t, fsys.Rename(want[0], filepath.Join(out, "00000001.music")))
	assert.False(t, fsys.Exists(want[0]))
	data, err := fsys.ReadFile(filepath.Join(out, "00000001.music"))
	require.NoError(t, err)
	assert.Equal(t, "a.music", string(data))

	_, err = fsys.Glob("[")
	require.Error(t, err)
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	t.Parallel()
	mfs := NewMemoryFileSystem()

	data := []byte("hello, world")
	require.NoError(t, mfs.WriteFile("/run/params.nml", data, 0o644))
	data[0] = 'J'

	got, err := mfs.ReadFile("/run/params.nml")
	require.NoError(t, err)
	assert.Equal(t, "hello, world", string(got))
	assert.True(t, mfs.Exists("/run"), "parent directory is implicit")

	_, err = mfs.ReadFile("/run/missing")
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestMemoryFileSystem_Rename(t *testing.T) {
	t.Parallel()
	mfs := NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile("/run/a.music", []byte("a"), 0o644))

	err := mfs.Rename("/run/a.music", "/new/00000001.music")
	require.ErrorIs(t, err, fs.ErrNotExist, "target directory must exist")

	require.NoError(t, mfs.MkdirAll("/new", 0o755))
	require.NoError(t, mfs.Rename("/run/a.music", "/new/00000001.music"))
	assert.False(t, mfs.Exists("/run/a.music"))
	assert.Equal(t, []string{"/new/00000001.music"}, mfs.Files("/new"))

	err = mfs.Rename("/run/a.music", "/new/x")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestMemoryFileSystem_Glob(t *testing.T) {
	t.Parallel()
	mfs := NewMemoryFileSystem()
	for _, name := range []string{"/run/batch2", "/run/batch1", "/run/restart.batch", "/run/sub/batch3"} {
		require.NoError(t, mfs.WriteFile(name, nil, 0o644))
	}
	got, err := mfs.Glob("/run/batch*")
	require.NoError(t, err)
	assert.Equal(t, []string{"/run/batch1", "/run/batch2"}, got)

	_, err = mfs.Glob("[")
	require.ErrorIs(t, err, filepath.ErrBadPattern)
}

func TestMemoryFileSystem_MkdirAll(t *testing.T) {
	t.Parallel()
	mfs := NewMemoryFileSystem()
	require.NoError(t, mfs.MkdirAll("/a/b/c", 0o755))
	for _, d := range []string{"/a", "/a/b", "/a/b/c"} {
		assert.True(t, mfs.Exists(d), d)
	}
	assert.False(t, mfs.Exists("/a/b/c/d"))
}
