package fsutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithinDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "out"), 0o755))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"relative file", "params.nml", false},
		{"nested new file", "out/run_04_/x.music", false},
		{"absolute inside", filepath.Join(dir, "batch1"), false},
		{"dir itself", ".", false},
		{"parent", "..", true},
		{"traversal", "out/../../etc/passwd", true},
		{"absolute outside", "/etc/passwd", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WithinDir(tt.path, dir)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrOutsideDir)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWithinDirSymlink(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(dir, "link")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	assert.ErrorIs(t, WithinDir("link/params.nml", dir), ErrOutsideDir)
	assert.ErrorIs(t, WithinDir("link/new/params.nml", dir), ErrOutsideDir)
}

func TestWithinDirMissingDir(t *testing.T) {
	t.Parallel()
	assert.NoError(t, WithinDir("params.nml", "/run"))
	assert.ErrorIs(t, WithinDir("/elsewhere/params.nml", "/run"), ErrOutsideDir)
}

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"rho_00000001.png": "rho_00000001.png",
		"vel/1 (abs).pdf":  "vel_1_abs_.pdf",
		"../../etc":        "etc",
		"":                 "unknown",
		"__":               "unknown",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), in)
	}
	assert.Len(t, SanitizeFilename(strings.Repeat("a", 300)), 128)
}
