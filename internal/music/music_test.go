package music

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mutools/internal/cache"
	"github.com/banshee-data/mutools/internal/dump"
	"github.com/banshee-data/mutools/internal/fields"
	"github.com/banshee-data/mutools/internal/grid"
	"github.com/banshee-data/mutools/internal/testutil"
)

func openRun(t *testing.T, r testutil.Run, opts ...Option) *Run {
	t.Helper()
	parfile := r.Write(t, t.TempDir())
	run, err := Open(parfile, opts...)
	require.NoError(t, err)
	return run
}

func TestOpen(t *testing.T) {
	run := openRun(t, testutil.DefaultRun())
	assert.Equal(t, "run_", run.Prefix)
	assert.Equal(t, grid.Spherical, run.Geometry)
	assert.Equal(t, [2]dump.BC{dump.Periodic, dump.Periodic}, run.BCs)
	assert.Equal(t, 0, run.Info.NumScalars)
	assert.Equal(t, filepath.Join(run.Dir(), "run_00000012.music"), run.DumpPath(12))

	cart := testutil.DefaultRun()
	cart.Cartesian = true
	cart.Scalars = 2
	run = openRun(t, cart)
	assert.Equal(t, grid.Cartesian, run.Geometry)
	assert.Equal(t, 2, run.Info.NumScalars)

	_, err := Open(filepath.Join(t.TempDir(), "missing.nml"))
	assert.Error(t, err)
}

func TestOpenWithoutDataOutput(t *testing.T) {
	parfile := filepath.Join(t.TempDir(), "params.nml")
	require.NoError(t, os.WriteFile(parfile, []byte("&io\n/\n"), 0o644))
	_, err := Open(parfile)
	assert.Error(t, err)
}

func TestLenAndSnap(t *testing.T) {
	r := testutil.DefaultRun()
	r.Dumps = []int{0, 1, 3}
	run := openRun(t, r)

	n, err := run.Len()
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	s, err := run.Snap(-1)
	require.NoError(t, err)
	assert.Equal(t, 3, s.IDump)
	assert.Equal(t, 30.0, s.Time())

	_, err = run.Snap(2)
	assert.ErrorIs(t, err, ErrNoDump)
	_, err = run.Snap(4)
	assert.ErrorIs(t, err, ErrNoDump)
	_, err = run.Snap(-5)
	assert.ErrorIs(t, err, ErrNoDump)

	ampl, err := fields.Get(s, "vel_ampl")
	require.NoError(t, err)
	assert.InDelta(t, 8.0, ampl.At(0, 0), 1e-12)
}

func TestLenEmptyRun(t *testing.T) {
	r := testutil.DefaultRun()
	r.Dumps = nil
	run := openRun(t, r)
	n, err := run.Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	_, err = run.Snap(0)
	assert.ErrorIs(t, err, ErrNoDump)
}

func TestSelect(t *testing.T) {
	r := testutil.DefaultRun()
	r.Dumps = []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	run := openRun(t, r)

	tests := []struct {
		sel  string
		want []int
	}{
		{"", []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}},
		{"0:10:3,-1", []int{0, 3, 6, 9, 9}},
		{"5", []int{5}},
		{"-2:", []int{8, 9}},
		{"::-4", []int{9, 5, 1}},
		{"8:2:-3", []int{8, 5}},
		{":3, 7", []int{0, 1, 2, 7}},
		{"20,-20", nil},
		{"3:100", []int{3, 4, 5, 6, 7, 8, 9}},
	}
	for _, tc := range tests {
		t.Run(tc.sel, func(t *testing.T) {
			got, err := run.Select(tc.sel)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	require.NoError(t, os.Remove(run.DumpPath(4)))
	got, err := run.Select("3:6")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 5}, got)

	for _, bad := range []string{"a", "1:2:3:4", "::0", "1,,2", "1:x"} {
		_, err := run.Select(bad)
		assert.ErrorIs(t, err, ErrBadSelection, bad)
	}
}

func TestTseriesAndProfiles(t *testing.T) {
	run := openRun(t, testutil.DefaultRun(), WithWorkers(2))
	ctx := context.Background()

	ts, err := run.Tseries(ctx, "density", []int{0, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 3}, ts.Dumps)
	assert.Equal(t, []float64{0, 20, 30}, ts.Time)
	require.Len(t, ts.Values, 3)
	assert.InDelta(t, 1.0, ts.Values[0], 1e-12)
	assert.InDelta(t, 3.0, ts.Values[1], 1e-12)
	assert.InDelta(t, 4.0, ts.Values[2], 1e-12)

	radius, prof, err := run.RprofAvg(ctx, "vrms", []int{0, 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{1.25, 1.75, 2.25, 2.75}, radius)
	for _, v := range prof {
		assert.InDelta(t, 3.0, v, 1e-12)
	}

	_, err = run.Tseries(ctx, "density", nil)
	assert.ErrorIs(t, err, ErrNoDump)

	_, err = run.Tseries(ctx, "nope", []int{0})
	assert.ErrorIs(t, err, fields.ErrUnknownField)

	_, err = run.Profiles(ctx, "density", []int{0, 7})
	assert.ErrorIs(t, err, ErrNoDump)
}

func TestTauConv(t *testing.T) {
	run := openRun(t, testutil.DefaultRun())
	// Cells below rcore=2 are centred at 1.25 and 1.75, each 0.5 wide.
	// vrms is 2 then 4, so the time average of 1/vrms is 0.375.
	tau, err := run.TauConv(context.Background(), []int{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.375, tau, 1e-12)
}

func TestReductionsUseCache(t *testing.T) {
	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer c.Close()

	run := openRun(t, testutil.DefaultRun(), WithCache(c))
	ctx := context.Background()

	first, err := run.Profiles(ctx, "density", []int{0, 1})
	require.NoError(t, err)

	st, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, st.Reductions)

	// Corrupting the dump without touching its mtime proves the cached
	// value is served.
	path := run.DumpPath(1)
	info, err := os.Stat(path)
	require.NoError(t, err)
	d, err := testutil.DefaultRun().Dump(1)
	require.NoError(t, err)
	rho, err := d.Field("density")
	require.NoError(t, err)
	rho.Scale(100)
	require.NoError(t, dump.WriteFile(path, d))
	require.NoError(t, os.Chtimes(path, info.ModTime(), info.ModTime()))

	second, err := run.Profiles(ctx, "density", []int{0, 1})
	require.NoError(t, err)
	assert.Equal(t, first.Values, second.Values)
	assert.Equal(t, first.Time, second.Time)
	n1, _ := second.Grid.Shape()
	assert.Equal(t, 4, n1)

	// A new mtime invalidates the entry.
	later := info.ModTime().Add(1e9)
	require.NoError(t, os.Chtimes(path, later, later))
	third, err := run.Profiles(ctx, "density", []int{1})
	require.NoError(t, err)
	assert.InDelta(t, 200.0, third.Values[0][0], 1e-9)
}

func TestCacheFollowsBoundaryConditions(t *testing.T) {
	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer c.Close()

	dir := t.TempDir()
	parfile := testutil.DefaultRun().Write(t, dir)
	run, err := Open(parfile, WithCache(c))
	require.NoError(t, err)
	ctx := context.Background()

	periodic, err := run.Profiles(ctx, "vel_1", []int{0})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, periodic.Values[0][3], 1e-12)

	// A reflective outer boundary zeroes the ghost face, so the last cell
	// averages 2 and 0.
	params, err := os.ReadFile(parfile)
	require.NoError(t, err)
	edited := strings.Replace(string(params), "bc1(1) = 'periodic'", "bc1(1) = 'reflective'", 1)
	require.NotEqual(t, string(params), edited)
	require.NoError(t, os.WriteFile(parfile, []byte(edited), 0o644))

	run, err = Open(parfile, WithCache(c))
	require.NoError(t, err)
	assert.Equal(t, dump.Reflective, run.BCs[0])
	reflective, err := run.Profiles(ctx, "vel_1", []int{0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, reflective.Values[0][3], 1e-12)
	assert.InDelta(t, 2.0, reflective.Values[0][0], 1e-12)

	st, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, st.Reductions)
}

func TestForEach(t *testing.T) {
	run := openRun(t, testutil.DefaultRun(), WithWorkers(3))
	seen := make([]bool, 4)
	err := run.ForEach(context.Background(), []int{0, 1, 2, 3}, func(_ context.Context, s *Snap) error {
		seen[s.IDump] = true
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, true, true}, seen)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = run.ForEach(ctx, []int{0}, func(context.Context, *Snap) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestItemBounds(t *testing.T) {
	items, err := ParseSelection("::2")
	require.NoError(t, err)
	start, stop, step := items[0].Bounds(10)
	assert.Equal(t, [3]int{0, 10, 2}, [3]int{start, stop, step})

	items, err = ParseSelection("-3::-1")
	require.NoError(t, err)
	start, stop, step = items[0].Bounds(10)
	assert.Equal(t, [3]int{7, -1, -1}, [3]int{start, stop, step})
}
