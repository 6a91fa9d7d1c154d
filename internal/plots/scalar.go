package plots

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/mutools/internal/fields"
	"github.com/banshee-data/mutools/internal/grid"
)

// arcSegments is the number of chords used for each curved cell edge.
const arcSegments = 4

// DefaultArrowStride keeps one arrow every 16 cells in each direction.
const DefaultArrowStride = 16

// Bounds pins the colour range. NaN leaves an end automatic.
type Bounds struct {
	Min, Max float64
}

// AutoBounds lets both ends follow the data.
var AutoBounds = Bounds{Min: math.NaN(), Max: math.NaN()}

// SphericalScalar is a pcolormesh of a field on (r, theta) cells projected
// on the meridional plane, or on (cos theta, r) when CosTheta is set.
type SphericalScalar struct {
	Label     string
	RWalls    []float64
	TWalls    []float64
	Values    fields.Array2D
	ColorMap  palette.ColorMap
	Bounds    *Bounds
	Symmetric bool
	CosTheta  bool
	// RMarks are radii drawn as dashed arcs.
	RMarks []float64
}

func (s SphericalScalar) colorMap() palette.ColorMap {
	cm := s.ColorMap
	if cm == nil {
		cm, _ = ColorMap("")
	}
	b := AutoBounds
	if s.Bounds != nil {
		b = *s.Bounds
	}
	scaleColorMap(cm, s.Values.Data, b.Min, b.Max, s.Symmetric)
	return cm
}

func (s SphericalScalar) Draw(p *plot.Plot, _ Style) error {
	if s.Values.N1 != len(s.RWalls)-1 || s.Values.N2 != len(s.TWalls)-1 {
		return fmt.Errorf("%s: %w", s.Label, fields.ErrShape)
	}
	if s.Values.N1 == 0 || s.Values.N2 == 0 {
		return fmt.Errorf("%s: %w", s.Label, ErrEmpty)
	}
	m := &mesh{x1: s.RWalls, x2: s.TWalls, values: s.Values, cm: s.colorMap(), arcs: arcSegments, project: project}
	if s.CosTheta {
		m.arcs = 1
		m.project = func(r, theta float64) (float64, float64) { return math.Cos(theta), r }
	}
	p.Add(m)
	if s.CosTheta {
		p.X.Label.Text = "cos(theta)"
		p.Y.Label.Text = "radius"
	} else {
		p.HideAxes()
	}
	tmin, tmax := s.TWalls[0], s.TWalls[len(s.TWalls)-1]
	for _, r := range s.RMarks {
		var pts plotter.XYs
		if s.CosTheta {
			pts = plotter.XYs{{X: math.Cos(tmin), Y: r}, {X: math.Cos(tmax), Y: r}}
		} else {
			pts = make(plotter.XYs, 65)
			for k := range pts {
				x, z := project(r, tmin+(tmax-tmin)*float64(k)/64)
				pts[k] = plotter.XY{X: x, Y: z}
			}
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		l.Color = color.Black
		l.Width = vg.Points(0.8)
		l.Dashes = []vg.Length{vg.Points(3), vg.Points(2)}
		p.Add(l)
	}
	return nil
}

func (s SphericalScalar) colorBar() (palette.ColorMap, string) { return s.colorMap(), s.Label }

func (s SphericalScalar) equalAspect() bool { return !s.CosTheta }

// CartesianScalar is a pcolormesh of a field on (x, y) cells.
type CartesianScalar struct {
	Label     string
	XWalls    []float64
	YWalls    []float64
	Values    fields.Array2D
	ColorMap  palette.ColorMap
	Bounds    *Bounds
	Symmetric bool
}

func (s CartesianScalar) colorMap() palette.ColorMap {
	return SphericalScalar{Values: s.Values, ColorMap: s.ColorMap, Bounds: s.Bounds, Symmetric: s.Symmetric}.colorMap()
}

func (s CartesianScalar) Draw(p *plot.Plot, _ Style) error {
	if s.Values.N1 != len(s.XWalls)-1 || s.Values.N2 != len(s.YWalls)-1 {
		return fmt.Errorf("%s: %w", s.Label, fields.ErrShape)
	}
	if s.Values.N1 == 0 || s.Values.N2 == 0 {
		return fmt.Errorf("%s: %w", s.Label, ErrEmpty)
	}
	p.Add(&mesh{
		x1: s.XWalls, x2: s.YWalls, values: s.Values, cm: s.colorMap(), arcs: 1,
		project: func(x, y float64) (float64, float64) { return x, y },
	})
	p.HideAxes()
	return nil
}

func (s CartesianScalar) colorBar() (palette.ColorMap, string) { return s.colorMap(), s.Label }

func (CartesianScalar) equalAspect() bool { return true }

// Scalar picks the spherical or Cartesian plotter for a field on g.
func Scalar(g grid.Grid2D, label string, values fields.Array2D) Plotter {
	if g.Geometry == grid.Cartesian {
		return CartesianScalar{Label: label, XWalls: g.X1.FacePoints(), YWalls: g.X2.FacePoints(), Values: values}
	}
	return SphericalScalar{Label: label, RWalls: g.X1.FacePoints(), TWalls: g.X2.FacePoints(), Values: values}
}

// mesh fills one polygon per cell of a tensor grid mapped through project.
type mesh struct {
	x1, x2  []float64
	values  fields.Array2D
	cm      palette.ColorMap
	arcs    int
	project func(a, b float64) (x, y float64)
}

func (m *mesh) outline(i, j int) [][2]float64 {
	pts := make([][2]float64, 0, 2*(m.arcs+1))
	for k := 0; k <= m.arcs; k++ {
		b := m.x2[j] + (m.x2[j+1]-m.x2[j])*float64(k)/float64(m.arcs)
		x, y := m.project(m.x1[i], b)
		pts = append(pts, [2]float64{x, y})
	}
	for k := m.arcs; k >= 0; k-- {
		b := m.x2[j] + (m.x2[j+1]-m.x2[j])*float64(k)/float64(m.arcs)
		x, y := m.project(m.x1[i+1], b)
		pts = append(pts, [2]float64{x, y})
	}
	return pts
}

// Plot implements plot.Plotter.
func (m *mesh) Plot(c draw.Canvas, p *plot.Plot) {
	trX, trY := p.Transforms(&c)
	for i := 0; i < m.values.N1; i++ {
		for j := 0; j < m.values.N2; j++ {
			clr := colorAt(m.cm, m.values.At(i, j))
			outline := m.outline(i, j)
			poly := make([]vg.Point, len(outline))
			for k, pt := range outline {
				poly[k] = vg.Point{X: trX(pt[0]), Y: trY(pt[1])}
			}
			c.FillPolygon(clr, poly)
		}
	}
}

// DataRange implements plot.DataRanger.
func (m *mesh) DataRange() (xmin, xmax, ymin, ymax float64) {
	xmin, ymin = math.Inf(1), math.Inf(1)
	xmax, ymax = math.Inf(-1), math.Inf(-1)
	for _, i := range []int{0, len(m.x1) - 2} {
		for j := 0; j < len(m.x2)-1; j++ {
			for _, pt := range m.outline(i, j) {
				xmin, xmax = math.Min(xmin, pt[0]), math.Max(xmax, pt[0])
				ymin, ymax = math.Min(ymin, pt[1]), math.Max(ymax, pt[1])
			}
		}
	}
	for _, j := range []int{0, len(m.x2) - 2} {
		for i := 0; i < len(m.x1)-1; i++ {
			for _, pt := range m.outline(i, j) {
				xmin, xmax = math.Min(xmin, pt[0]), math.Max(xmax, pt[0])
				ymin, ymax = math.Min(ymin, pt[1]), math.Max(ymax, pt[1])
			}
		}
	}
	return xmin, xmax, ymin, ymax
}

// VectorArrows draws a velocity field on a spherical grid as arrows on the
// meridional plane, keeping one cell every Stride along each direction.
type VectorArrows struct {
	RCenters []float64
	TCenters []float64
	VR, VT   fields.Array2D
	Stride   int
}

func (v VectorArrows) Draw(p *plot.Plot, _ Style) error {
	if v.VR.N1 != len(v.RCenters) || v.VR.N2 != len(v.TCenters) ||
		v.VT.N1 != v.VR.N1 || v.VT.N2 != v.VR.N2 {
		return fmt.Errorf("vector arrows: %w", fields.ErrShape)
	}
	stride := v.Stride
	if stride <= 0 {
		stride = DefaultArrowStride
	}
	q := &quiver{}
	for i := 0; i < v.VR.N1; i += stride {
		for j := 0; j < v.VR.N2; j += stride {
			th := v.TCenters[j]
			vr, vt := v.VR.At(i, j), v.VT.At(i, j)
			x, z := project(v.RCenters[i], th)
			q.arrows = append(q.arrows, arrow{
				x: x, y: z,
				u: vr*math.Sin(th) + vt*math.Cos(th),
				w: vr*math.Cos(th) - vt*math.Sin(th),
			})
		}
	}
	if len(q.arrows) == 0 {
		return fmt.Errorf("vector arrows: %w", ErrEmpty)
	}
	if len(v.RCenters) > 1 {
		q.length = float64(stride) * math.Abs(v.RCenters[len(v.RCenters)-1]-v.RCenters[0]) / float64(len(v.RCenters)-1)
	}
	p.Add(q)
	p.HideAxes()
	return nil
}

func (VectorArrows) equalAspect() bool { return true }

type arrow struct{ x, y, u, w float64 }

// quiver draws arrows whose largest one spans length in data units.
type quiver struct {
	arrows []arrow
	length float64
}

func (q *quiver) scale() float64 {
	vmax := 0.0
	for _, a := range q.arrows {
		vmax = math.Max(vmax, math.Hypot(a.u, a.w))
	}
	if vmax == 0 || q.length == 0 {
		return 0
	}
	return q.length / vmax
}

// Plot implements plot.Plotter.
func (q *quiver) Plot(c draw.Canvas, p *plot.Plot) {
	trX, trY := p.Transforms(&c)
	sty := draw.LineStyle{Color: color.Black, Width: vg.Points(0.6)}
	s := q.scale()
	for _, a := range q.arrows {
		x0, y0 := trX(a.x), trY(a.y)
		x1, y1 := trX(a.x+s*a.u), trY(a.y+s*a.w)
		c.StrokeLine2(sty, x0, y0, x1, y1)
		dx, dy := float64(x1-x0), float64(y1-y0)
		l := math.Hypot(dx, dy)
		if l == 0 {
			continue
		}
		head := 0.3 * l
		ang := math.Atan2(dy, dx)
		for _, da := range []float64{math.Pi - 0.4, math.Pi + 0.4} {
			hx := x1 + vg.Length(head*math.Cos(ang+da))
			hy := y1 + vg.Length(head*math.Sin(ang+da))
			c.StrokeLine2(sty, x1, y1, hx, hy)
		}
	}
}

// DataRange implements plot.DataRanger.
func (q *quiver) DataRange() (xmin, xmax, ymin, ymax float64) {
	xmin, ymin = math.Inf(1), math.Inf(1)
	xmax, ymax = math.Inf(-1), math.Inf(-1)
	for _, a := range q.arrows {
		xmin, xmax = math.Min(xmin, a.x), math.Max(xmax, a.x)
		ymin, ymax = math.Min(ymin, a.y), math.Max(ymax, a.y)
	}
	return xmin, xmax, ymin, ymax
}
