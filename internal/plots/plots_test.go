package plots

import (
	"bytes"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/recorder"

	"github.com/banshee-data/mutools/internal/fields"
	"github.com/banshee-data/mutools/internal/grid"
)

func sphericalField(t *testing.T) (grid.Grid2D, fields.Array2D) {
	t.Helper()
	g := grid.Grid2D{X1: grid.Uniform(1, 2, 8), X2: grid.Uniform(0, math.Pi, 12), Geometry: grid.Spherical}
	a := fields.NewArray2D(8, 12)
	for i := 0; i < 8; i++ {
		for j := 0; j < 12; j++ {
			a.Set(i, j, float64(i)-float64(j)/2)
		}
	}
	return g, a
}

func TestSaveFormats(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	g, a := sphericalField(t)

	fig := SinglePlot(Scalar(g, "density", a))
	for _, ext := range []string{"png", "pdf", "svg", "eps"} {
		path := filepath.Join(dir, "field."+ext)
		require.NoError(t, fig.Save(path), ext)
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size(), ext)
	}
}

func TestColorBarDrawsNoImage(t *testing.T) {
	t.Parallel()
	g, a := sphericalField(t)

	rec := &recorder.Canvas{}
	fig := SinglePlot(Scalar(g, "density", a))
	require.NoError(t, fig.render(draw.NewCanvas(rec, fig.Width, fig.Height)))

	fills := 0
	for _, act := range rec.Actions {
		_, isImage := act.(*recorder.DrawImage)
		assert.False(t, isImage, "colour bar must be vector only")
		if _, ok := act.(*recorder.Fill); ok {
			fills++
		}
	}
	assert.GreaterOrEqual(t, fills, colorBarStrips)
}

func TestSaveRejectsUnknownFormat(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "field.bmp")
	err := SinglePlot(Series{Label: "ekin", Time: []float64{0, 1}, Values: []float64{1, 2}}).Save(path)
	require.ErrorIs(t, err, ErrFormat)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "failed output must not be left behind")
}

func TestShapeMismatch(t *testing.T) {
	t.Parallel()
	g, _ := sphericalField(t)
	err := SinglePlot(Scalar(g, "density", fields.NewArray2D(3, 3))).WriteTo(&bytes.Buffer{}, "png")
	require.ErrorIs(t, err, fields.ErrShape)
}

func TestVectorArrowsAndMarks(t *testing.T) {
	t.Parallel()
	g, a := sphericalField(t)
	vr := fields.NewArray2D(8, 12)
	vt := fields.NewArray2D(8, 12)
	for i := range vr.Data {
		vr.Data[i] = 1
		vt.Data[i] = -0.5
	}
	scalar := SphericalScalar{
		Label: "vel_ampl", RWalls: g.X1.FacePoints(), TWalls: g.X2.FacePoints(),
		Values: a, Symmetric: true, RMarks: []float64{1.5},
	}
	arrows := VectorArrows{RCenters: g.X1.CellCenters(), TCenters: g.X2.CellCenters(), VR: vr, VT: vt, Stride: 4}
	var buf bytes.Buffer
	require.NoError(t, SameAxes(false, scalar, arrows).WithTitle("t=10").WriteTo(&buf, "svg"))
	assert.Contains(t, buf.String(), "<svg")
}

func TestQuiverScale(t *testing.T) {
	t.Parallel()
	q := &quiver{arrows: []arrow{{u: 3, w: 4}, {u: 1}}, length: 2}
	assert.InDelta(t, 0.4, q.scale(), 1e-12)
	assert.Zero(t, (&quiver{arrows: []arrow{{}}, length: 2}).scale())
}

func TestMatrix(t *testing.T) {
	t.Parallel()
	_, err := Matrix(2, 2, Hist{Values: []float64{1}})
	require.Error(t, err)

	h := Hist{Label: "lmax", Values: []float64{1, 2, 2, 3, 3, 3}, Bins: 3}
	s := Series{Label: "lmax", Time: []float64{0, 1, 2}, Values: []float64{1, 2, 3}}
	fig, err := Matrix(2, 2, h, s, h, s)
	require.NoError(t, err)
	assert.Equal(t, 2*panelWidth, fig.Width)
	require.NoError(t, fig.WithTitle("lmax").Save(filepath.Join(t.TempDir(), "lmax_hist.pdf")))
}

func TestAreaAndRprof(t *testing.T) {
	t.Parallel()
	r := []float64{1, 2, 3, 4}
	mean := Rprof{Label: "vel", Radius: r, Values: []float64{1, 2, 3, 4}, Marks: []float64{2.5}, Log: true}
	area := Area{Label: "std(vel)", Radius: r, Bottom: []float64{0.5, 1, 2, 3}, Top: []float64{2, 3, 4, 5}}
	require.NoError(t, SameAxes(true, mean, area).Save(filepath.Join(t.TempDir(), "rprof.png")))
}

func TestEmptyPlotter(t *testing.T) {
	t.Parallel()
	err := SinglePlot(Rprof{Label: "neg", Radius: []float64{1, 2}, Values: []float64{-1, 0}, Log: true}).
		WriteTo(&bytes.Buffer{}, "png")
	require.ErrorIs(t, err, ErrEmpty)
}

func TestHTML(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	fig := SameAxes(true,
		Series{Label: "ekin", Time: []float64{0, 1, 2}, Values: []float64{1, math.NaN(), 3}},
		Series{Label: "vrms", Time: []float64{0, 1, 2}, Values: []float64{2, 2, 2}},
	).WithTitle("tseries")
	require.NoError(t, fig.WriteTo(&buf, "html"))
	out := buf.String()
	assert.Contains(t, out, "ekin")
	assert.Contains(t, out, "vrms")

	g, a := sphericalField(t)
	err := SinglePlot(Scalar(g, "density", a)).WriteTo(&buf, "html")
	require.ErrorIs(t, err, ErrFormat)
}

func TestEqualAspect(t *testing.T) {
	t.Parallel()
	p := plot.New()
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = -1, 1
	c := draw.Canvas{Rectangle: vg.Rectangle{Max: vg.Point{X: 4, Y: 4}}}
	got := equalAspect(c, p)
	assert.InDelta(t, 2.0, float64(got.Max.X-got.Min.X), 1e-9)
	assert.InDelta(t, 4.0, float64(got.Max.Y-got.Min.Y), 1e-9)
}

func TestLineColors(t *testing.T) {
	t.Parallel()
	assert.Nil(t, lineColors(0))
	cs := lineColors(3)
	require.Len(t, cs, 3)
	assert.Equal(t, color.Black, cs[0])
	assert.NotEqual(t, cs[1], cs[2])

	r, g, b := hslToRGB(0, 0, 0.5)
	assert.Equal(t, [3]uint8{127, 127, 127}, [3]uint8{r, g, b})
}

func TestColorMap(t *testing.T) {
	t.Parallel()
	cm, err := ColorMap("diverging")
	require.NoError(t, err)
	scaleColorMap(cm, []float64{-1, 3, math.NaN()}, math.NaN(), math.NaN(), true)
	assert.Equal(t, -3.0, cm.Min())
	assert.Equal(t, 3.0, cm.Max())
	assert.Equal(t, color.Transparent, colorAt(cm, math.NaN()))
	assert.NotNil(t, colorAt(cm, 10))

	_, err = ColorMap("jet")
	require.Error(t, err)
}
