// Package release bumps the version of the repository, commits it and
// creates a signed annotated tag.
package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/banshee-data/mutools/internal/fsutil"
	"github.com/banshee-data/mutools/internal/runner"
)

var (
	// ErrDirtyTree is returned when git reports uncommitted changes.
	ErrDirtyTree = errors.New("release: working tree is dirty")
	// ErrBadVersion is returned for a version that is not MAJOR.MINOR.PATCH
	// with an optional -suffix.
	ErrBadVersion = errors.New("release: invalid version")
	// ErrNoVersion is returned when the descriptor has no Version assignment.
	ErrNoVersion = errors.New("release: no Version assignment found")
)

// DefaultDescriptor is the file holding the release-managed version.
const DefaultDescriptor = "internal/version/version.go"

var (
	versionRe = regexp.MustCompile(`^\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?$`)
	assignRe  = regexp.MustCompile(`(?m)^(\s*Version\s*=\s*)"[^"\n]*"`)
)

// NormalizeVersion strips a leading "v" and validates the rest.
func NormalizeVersion(v string) (string, error) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if !versionRe.MatchString(v) {
		return "", fmt.Errorf("%w: %q", ErrBadVersion, v)
	}
	return v, nil
}

// SetVersion rewrites the first Version = "..." assignment of src.
func SetVersion(src []byte, version string) ([]byte, error) {
	loc := assignRe.FindSubmatchIndex(src)
	if loc == nil {
		return nil, ErrNoVersion
	}
	var out []byte
	out = append(out, src[:loc[3]]...)
	out = append(out, '"')
	out = append(out, version...)
	out = append(out, '"')
	out = append(out, src[loc[1]:]...)
	return out, nil
}

// Releaser runs the release recipe in the git repository at Dir.
type Releaser struct {
	Dir        string
	Descriptor string
	FS         fsutil.FileSystem
	Runner     runner.Runner
	Out        io.Writer
	// DryRun prints the rewrite and the git commands without running them.
	// The dirty-tree check still runs.
	DryRun bool
}

func (r *Releaser) descriptor() string {
	if r.Descriptor == "" {
		return DefaultDescriptor
	}
	return r.Descriptor
}

func (r *Releaser) git(ctx context.Context, args ...string) (string, error) {
	if r.DryRun {
		fmt.Fprintf(r.Out, "[DRY-RUN] Would execute: %s\n", runner.CommandLine("git", args...))
		return "", nil
	}
	return r.Runner.Run(ctx, r.Dir, "git", args...)
}

// Release bumps the descriptor to version, commits and tags it.
func (r *Releaser) Release(ctx context.Context, version string) error {
	v, err := NormalizeVersion(version)
	if err != nil {
		return err
	}

	status, err := r.Runner.Run(ctx, r.Dir, "git", "status", "--porcelain")
	if err != nil {
		return fmt.Errorf("release: %w", err)
	}
	if dirty := strings.TrimSpace(status); dirty != "" {
		return fmt.Errorf("%w:\n%s", ErrDirtyTree, dirty)
	}

	path := filepath.Join(r.Dir, r.descriptor())
	src, err := r.FS.ReadFile(path)
	if err != nil {
		return fmt.Errorf("release: %w", err)
	}
	bumped, err := SetVersion(src, v)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if r.DryRun {
		fmt.Fprintf(r.Out, "[DRY-RUN] Would set Version = %q in %s\n", v, path)
	} else if err := r.FS.WriteFile(path, bumped, 0o644); err != nil {
		return fmt.Errorf("release: %w", err)
	}

	msg := "release " + v
	tag := "v" + v
	for _, args := range [][]string{
		{"add", r.descriptor()},
		{"commit", "-m", msg},
		{"tag", "-a", "-s", tag, "-m", msg},
	} {
		if _, err := r.git(ctx, args...); err != nil {
			return fmt.Errorf("release: %w", err)
		}
	}

	if r.DryRun {
		fmt.Fprintf(r.Out, "[DRY-RUN] Would tag %s. Nothing was committed or tagged.\n", tag)
		return nil
	}
	fmt.Fprintf(r.Out, "Tagged %s. Review it with `git show %s`, then push with `git push --follow-tags`.\n", tag, tag)
	return nil
}
