package release

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mutools/internal/fsutil"
	"github.com/banshee-data/mutools/internal/runner"
)

const versionGo = `package version

var (
	// Version is the current application version.
	Version = "0.1.0"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
)
`

func setup(t *testing.T, status string, dryRun bool) (*Releaser, *fsutil.MemoryFileSystem, *runner.MockBuilder, *bytes.Buffer) {
	t.Helper()
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile("/repo/"+DefaultDescriptor, []byte(versionGo), 0o644))
	b := runner.NewMockBuilder()
	b.Respond = func(name string, args []string) ([]byte, error) {
		if len(args) > 0 && args[0] == "status" {
			return []byte(status), nil
		}
		return nil, nil
	}
	exec := runner.NewExecutor(false)
	exec.Builder = b
	var out bytes.Buffer
	return &Releaser{Dir: "/repo", FS: mfs, Runner: exec, Out: &out, DryRun: dryRun}, mfs, b, &out
}

func TestRelease(t *testing.T) {
	t.Parallel()
	r, mfs, b, out := setup(t, "", false)
	require.NoError(t, r.Release(context.Background(), "v1.2.0"))

	src, err := mfs.ReadFile("/repo/" + DefaultDescriptor)
	require.NoError(t, err)
	assert.Contains(t, string(src), `Version = "1.2.0"`)
	assert.Contains(t, string(src), `GitSHA = "unknown"`)

	assert.Equal(t, []string{
		"git status --porcelain",
		"git add internal/version/version.go",
		"git commit -m 'release 1.2.0'",
		"git tag -a -s v1.2.0 -m 'release 1.2.0'",
	}, b.Lines())
	assert.Contains(t, out.String(), "Tagged v1.2.0.")
	assert.Contains(t, out.String(), "git push --follow-tags")
	for _, c := range b.Commands {
		assert.Equal(t, "/repo", c.Dir)
	}
}

func TestReleaseDirtyTree(t *testing.T) {
	t.Parallel()
	r, mfs, b, _ := setup(t, " M internal/cli/root.go\n", false)
	err := r.Release(context.Background(), "1.2.0")
	require.ErrorIs(t, err, ErrDirtyTree)
	assert.Contains(t, err.Error(), "internal/cli/root.go")

	src, err := mfs.ReadFile("/repo/" + DefaultDescriptor)
	require.NoError(t, err)
	assert.Equal(t, versionGo, string(src))
	assert.Equal(t, []string{"git status --porcelain"}, b.Lines())
}

func TestReleaseCleanTreeWhitespace(t *testing.T) {
	t.Parallel()
	r, _, _, _ := setup(t, "\n", false)
	require.NoError(t, r.Release(context.Background(), "1.2.1"))
}

func TestReleaseDryRun(t *testing.T) {
	t.Parallel()
	r, mfs, b, out := setup(t, "", true)
	require.NoError(t, r.Release(context.Background(), "2.0.0-rc.1"))

	src, err := mfs.ReadFile("/repo/" + DefaultDescriptor)
	require.NoError(t, err)
	assert.Equal(t, versionGo, string(src), "dry run writes nothing")
	assert.Equal(t, []string{"git status --porcelain"}, b.Lines())
	assert.Contains(t, out.String(), "[DRY-RUN] Would execute: git tag -a -s v2.0.0-rc.1 -m 'release 2.0.0-rc.1'")
	assert.Contains(t, out.String(), `Would set Version = "2.0.0-rc.1"`)
	assert.Contains(t, out.String(), "[DRY-RUN] Would tag v2.0.0-rc.1.")
	assert.NotContains(t, out.String(), "Tagged v2.0.0-rc.1")
}

func TestReleaseBadVersion(t *testing.T) {
	t.Parallel()
	r, _, b, _ := setup(t, "", false)
	require.ErrorIs(t, r.Release(context.Background(), "1.2"), ErrBadVersion)
	assert.Empty(t, b.Commands)
}

func TestNormalizeVersion(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1.2.3", "1.2.3", false},
		{"v1.2.3", "1.2.3", false},
		{" 0.10.0 ", "0.10.0", false},
		{"1.0.0-beta.2", "1.0.0-beta.2", false},
		{"1.0", "", true},
		{"one.two.three", "", true},
		{"1.0.0 && rm", "", true},
	}
	for _, tc := range tests {
		got, err := NormalizeVersion(tc.in)
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrBadVersion, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestSetVersion(t *testing.T) {
	t.Parallel()
	got, err := SetVersion([]byte(versionGo), "3.1.4")
	require.NoError(t, err)
	assert.Equal(t, bytes.Replace([]byte(versionGo), []byte(`"0.1.0"`), []byte(`"3.1.4"`), 1), got)

	_, err = SetVersion([]byte("package version\n"), "3.1.4")
	require.ErrorIs(t, err, ErrNoVersion)
}
