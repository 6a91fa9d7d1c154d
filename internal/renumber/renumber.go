// Package renumber moves the dumps of a folder into a new folder, numbered
// contiguously from 1.
package renumber

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/mutools/internal/fsutil"
	"github.com/banshee-data/mutools/internal/monitoring"
)

// ErrExists is returned when the output folder already exists.
var ErrExists = errors.New("renumber: output folder already exists")

// Pattern names renumbered dumps.
const Pattern = "%08d.music"

// Move renames every *.music file of in, in name order, to out/00000001.music,
// out/00000002.music and so on. out must not exist. It returns the new paths.
func Move(fsys fsutil.FileSystem, in, out string) ([]string, error) {
	if fsys.Exists(out) {
		return nil, fmt.Errorf("%w: %s", ErrExists, out)
	}
	files, err := fsys.Glob(filepath.Join(in, "*.music"))
	if err != nil {
		return nil, fmt.Errorf("renumber: %w", err)
	}
	if err := fsys.MkdirAll(out, 0o755); err != nil {
		return nil, fmt.Errorf("renumber: %w", err)
	}
	moved := make([]string, 0, len(files))
	for i, f := range files {
		dst := filepath.Join(out, fmt.Sprintf(Pattern, i+1))
		if err := fsys.Rename(f, dst); err != nil {
			return moved, fmt.Errorf("renumber: %w", err)
		}
		monitoring.Debugf("renumber: %s -> %s", f, dst)
		moved = append(moved, dst)
	}
	monitoring.Logf("renumber: moved %d dumps from %s to %s", len(moved), in, out)
	return moved, nil
}
