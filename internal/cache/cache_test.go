package cache

import (
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mutools/internal/timeutil"
)

func openTestCache(t *testing.T) (*Cache, *timeutil.ManualClock) {
	t.Helper()
	clock := timeutil.NewManualClock(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"), WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, clock
}

func TestRunID(t *testing.T) {
	c, _ := openTestCache(t)
	dir := t.TempDir()

	id1, err := c.RunID(filepath.Join(dir, "params.nml"))
	require.NoError(t, err)
	assert.Len(t, id1, 36)

	again, err := c.RunID(filepath.Join(dir, ".", "params.nml"))
	require.NoError(t, err)
	assert.Equal(t, id1, again)

	other, err := c.RunID(filepath.Join(dir, "other.nml"))
	require.NoError(t, err)
	assert.NotEqual(t, id1, other)
}

func TestGetPut(t *testing.T) {
	c, _ := openTestCache(t)
	id, err := c.RunID("params.nml")
	require.NoError(t, err)

	k := Key{RunID: id, IDump: 3, Field: "vel_ampl", Kind: KindProfile}
	st := Stamp{MTime: time.Unix(1700000000, 123), Layout: "spherical reflective/periodic 0"}

	_, ok, err := c.Get(k, st)
	require.NoError(t, err)
	assert.False(t, ok)

	want := []float64{1.5, -2, math.Inf(1), 0}
	require.NoError(t, c.Put(k, st, want))

	got, ok, err := c.Get(k, st)
	require.NoError(t, err)
	require.True(t, ok)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}

	// A rewritten dump invalidates the entry.
	rewritten := Stamp{MTime: st.MTime.Add(time.Second), Layout: st.Layout}
	_, ok, err = c.Get(k, rewritten)
	require.NoError(t, err)
	assert.False(t, ok)

	// So does a dump read with other boundary conditions.
	_, ok, err = c.Get(k, Stamp{MTime: st.MTime, Layout: "spherical periodic/periodic 0"})
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(k, rewritten, []float64{7}))
	got, ok, err = c.Get(k, rewritten)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float64{7}, got)

	_, ok, err = c.Get(Key{RunID: id, IDump: 3, Field: "vel_ampl", Kind: KindSeries}, st)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConcurrentPut(t *testing.T) {
	c, _ := openTestCache(t)
	id, err := c.RunID("params.nml")
	require.NoError(t, err)
	st := Stamp{MTime: time.Unix(1, 0)}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, c.Put(Key{RunID: id, IDump: i, Field: "ekin", Kind: KindSeries}, st, []float64{float64(i)}))
		}(i)
	}
	wg.Wait()

	stats, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 16, stats.Reductions)
}

func TestStatsAndPurge(t *testing.T) {
	c, clock := openTestCache(t)
	a, err := c.RunID("a/params.nml")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	b, err := c.RunID("b/params.nml")
	require.NoError(t, err)

	stamp := Stamp{MTime: time.Unix(10, 0)}
	require.NoError(t, c.Put(Key{a, 0, "density", KindProfile}, stamp, []float64{1, 2}))
	require.NoError(t, c.Put(Key{a, 1, "density", KindProfile}, stamp, []float64{1, 2}))
	require.NoError(t, c.Put(Key{b, 0, "ekin", KindSeries}, stamp, []float64{3}))

	st, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, uint(3), st.Version)
	assert.Equal(t, 3, st.Reductions)
	require.Len(t, st.Runs, 2)
	assert.Equal(t, a, st.Runs[0].RunID)
	assert.Equal(t, 2, st.Runs[0].Reductions)
	assert.Equal(t, int64(32), st.Runs[0].Bytes)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), st.Runs[0].Created)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 1, 0, 0, time.UTC), st.Runs[1].Created)

	n, err := c.Purge(a)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	st, err = c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, st.Reductions)
	require.Len(t, st.Runs, 1)

	n, err = c.Purge("")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	st, err = c.Stats()
	require.NoError(t, err)
	assert.Empty(t, st.Runs)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := Open(path)
	require.NoError(t, err)
	id, err := c.RunID("params.nml")
	require.NoError(t, err)
	require.NoError(t, c.Put(Key{id, 0, "ekin", KindSeries}, Stamp{MTime: time.Unix(5, 0)}, []float64{42}))
	require.NoError(t, c.Close())

	c, err = Open(path)
	require.NoError(t, err)
	defer c.Close()
	got, ok, err := c.Get(Key{id, 0, "ekin", KindSeries}, Stamp{MTime: time.Unix(5, 0)})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float64{42}, got)
}

func TestDecodeCorrupt(t *testing.T) {
	_, err := decode([]byte{1, 2, 3})
	assert.Error(t, err)

	vals, err := decode(encode([]float64{0.25}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25}, vals)
}
