package postfile

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mutools/internal/fields"
	"github.com/banshee-data/mutools/internal/h5"
)

// newPostFile builds checkpoints 1..3 on a 3 radius x 2 theta grid.
func newPostFile(t *testing.T) *File {
	t.Helper()
	m := h5.NewMem()
	for idump := 1; idump <= 3; idump++ {
		base := fmt.Sprintf("checkpoints/%05d/", idump)
		w := func(name string, dims []int, data []float64) {
			require.NoError(t, m.WriteDataset(base+name, dims, data))
		}
		w("pp_parameters/eval_grid/rad", []int{3, 1}, []float64{1, 2, 3})
		w("pp_parameters/eval_grid/theta", []int{2}, []float64{0.5, 1.5})
		w("pp_parameters/r_schwarz_preset", []int{1}, []float64{1.5})
		w("parameters/time", []int{1}, []float64{float64(idump) * 100})
		// Stored [theta][rad].
		w("Field/temp", []int{1, 2, 3}, []float64{1, 2, 3, 4, 5, 6})
		w("Contour_field/pen_depth_conv", []int{2}, []float64{1.6, 1.5 + 0.1*float64(idump)})
		w("Contour_field/pen_depth_ke", []int{2}, []float64{2, 2})
		d := float64(idump)
		w("Moment_rad/ekin", []int{2, 3}, []float64{d, d, d, 10 * d, 20 * d, math.NaN()})
		m.SetAttr(base+"Moment_rad/ekin", "degree", []float64{1, 2})
	}
	return New(m)
}

func TestCheckpointAccessors(t *testing.T) {
	f := newPostFile(t)
	chk := f.Checkpoint(2)

	tm, err := chk.Time()
	require.NoError(t, err)
	assert.Equal(t, 200.0, tm)

	rs, err := chk.PPParam("r_schwarz_preset")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5}, rs)

	_, err = chk.Param("nope")
	assert.ErrorIs(t, err, h5.ErrNotFound)

	rad, err := chk.PPGrid("rad")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, rad)

	c, err := chk.ContourField("pen_depth_conv")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.6, 1.7}, roundAll(c.Radius))
	assert.Equal(t, []float64{0.5, 1.5}, c.Theta)

	fld, err := chk.Field("temp")
	require.NoError(t, err)
	assert.Equal(t, 3, fld.Values.N1)
	assert.Equal(t, 2, fld.Values.N2)
	assert.Equal(t, 4.0, fld.Values.At(0, 1))
	assert.Equal(t, 3.0, fld.Values.At(2, 0))
	assert.Equal(t, []float64{0.5, 1.5, 2.5, 3.5}, fld.RWalls())
	assert.Equal(t, []float64{0, 1, 2}, fld.TWalls())

	rp, err := chk.Rprof("ekin", 2)
	require.NoError(t, err)
	assert.Equal(t, 20.0, rp.Values[0])
	assert.Equal(t, 2, rp.Degree)

	_, err = chk.Rprof("ekin", 3)
	assert.ErrorIs(t, err, ErrNoDegree)

	_, err = f.Checkpoint(9).Time()
	assert.ErrorIs(t, err, h5.ErrNotFound)
}

func TestFieldShapeMismatch(t *testing.T) {
	m := h5.NewMem()
	require.NoError(t, m.WriteDataset("checkpoints/00001/pp_parameters/eval_grid/rad", []int{2}, []float64{1, 2}))
	require.NoError(t, m.WriteDataset("checkpoints/00001/pp_parameters/eval_grid/theta", []int{2}, []float64{1, 2}))
	require.NoError(t, m.WriteDataset("checkpoints/00001/Field/x", []int{3, 2}, make([]float64, 6)))
	_, err := New(m).Checkpoint(1).Field("x")
	assert.ErrorIs(t, err, fields.ErrShape)
}

func TestConstRadContour(t *testing.T) {
	c := ConstRadContour(2, 0, 1, "r=2", 5)
	assert.Equal(t, "r=2", c.Name)
	assert.Equal(t, []float64{2, 2, 2, 2, 2}, c.Radius)
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75, 1}, c.Theta)
	assert.Empty(t, ConstRadContour(1, 0, 1, "", 0).Theta)
}

func TestTseriesEnvelopes(t *testing.T) {
	f := newPostFile(t)
	ts := f.Range(1, 3, 1)
	require.Len(t, ts.Checkpoints, 3)

	mean, err := ts.Rprof("ekin", 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{20, 40}, mean.Values[:2])
	assert.True(t, math.IsNaN(mean.Values[2]))

	std, err := ts.RprofStd("ekin", 2)
	require.NoError(t, err)
	rng, err := ts.RprofRange("ekin", 2)
	require.NoError(t, err)
	assert.Equal(t, "std(ekin)", std.Name)
	assert.Equal(t, "range(ekin)", rng.Name)
	assert.Equal(t, []float64{10, 20}, rng.Bottom[:2])
	assert.Equal(t, []float64{30, 60}, rng.Top[:2])
	for i := 0; i < 2; i++ {
		assert.LessOrEqual(t, std.Bottom[i], mean.Values[i])
		assert.LessOrEqual(t, mean.Values[i], std.Top[i])
		assert.LessOrEqual(t, rng.Bottom[i], mean.Values[i])
		assert.LessOrEqual(t, mean.Values[i], rng.Top[i])
	}
	// Population std of 10, 20, 30.
	assert.InDelta(t, 20-math.Sqrt(200.0/3), std.Bottom[0], 1e-9)

	assert.Len(t, f.Range(1, 3, 2).Checkpoints, 2)
	assert.Empty(t, f.Range(1, 3, 0).Checkpoints)

	_, err = Tseries{}.Rprof("ekin", 2)
	assert.Error(t, err)
	_, err = f.Range(1, 4, 1).Rprof("ekin", 2)
	assert.Error(t, err)
}

func TestLMax(t *testing.T) {
	f := newPostFile(t)
	chks, err := f.Checkpoints()
	require.NoError(t, err)
	require.Len(t, chks, 3)
	assert.Equal(t, 3, chks[2].IDump)

	ts, err := f.LMax("conv")
	require.NoError(t, err)
	assert.Equal(t, "lmax_conv", ts.Name)
	assert.Equal(t, []float64{100, 200, 300}, ts.Time)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, roundAll(ts.Values))

	ke, err := f.LMax("ke")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, ke.Values)

	_, err = f.LMax("nope")
	assert.ErrorIs(t, err, h5.ErrNotFound)
}

func roundAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = math.Round(x*1e9) / 1e9
	}
	return out
}
