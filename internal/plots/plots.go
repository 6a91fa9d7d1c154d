// Package plots draws MUSIC data with gonum/plot and renders figures to
// PDF, PNG, SVG, EPS or, for line-like plots, HTML through go-echarts.
package plots

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrEmpty is returned when a plotter has no finite point to draw.
var ErrEmpty = errors.New("plots: nothing to draw")

// Style carries what the figure decides for a plotter sharing axes with
// others.
type Style struct {
	Color  color.Color
	Legend bool
}

// Plotter draws itself on a gonum plot.
type Plotter interface {
	Draw(p *plot.Plot, st Style) error
}

// xyLine is a named curve, the common currency of the HTML renderer.
type xyLine struct {
	name   string
	xs, ys []float64
}

// liner is implemented by plotters that reduce to curves.
type liner interface {
	lines() (xlabel, ylabel string, logY bool, ls []xyLine)
}

func finiteXYs(xs, ys []float64, positive bool) plotter.XYs {
	n := len(xs)
	if len(ys) < n {
		n = len(ys)
	}
	pts := make(plotter.XYs, 0, n)
	for i := 0; i < n; i++ {
		x, y := xs[i], ys[i]
		if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
			continue
		}
		if positive && y <= 0 {
			continue
		}
		pts = append(pts, plotter.XY{X: x, Y: y})
	}
	return pts
}

func addLine(p *plot.Plot, st Style, label string, pts plotter.XYs) (*plotter.Line, error) {
	if len(pts) == 0 {
		return nil, fmt.Errorf("%s: %w", label, ErrEmpty)
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("line %s: %w", label, err)
	}
	line.Color = st.Color
	if line.Color == nil {
		line.Color = color.Black
	}
	line.Width = vg.Points(1)
	p.Add(line)
	if st.Legend && label != "" {
		p.Legend.Add(label, line)
	}
	return line, nil
}

// addMarks draws vertical lines at each x in marks spanning the y range of
// pts.
func addMarks(p *plot.Plot, marks []float64, pts plotter.XYs, dashed bool) error {
	if len(marks) == 0 || len(pts) == 0 {
		return nil
	}
	_, _, ymin, ymax := plotter.XYRange(pts)
	for _, m := range marks {
		l, err := plotter.NewLine(plotter.XYs{{X: m, Y: ymin}, {X: m, Y: ymax}})
		if err != nil {
			return err
		}
		l.Color = color.Black
		l.Width = vg.Points(1)
		if dashed {
			l.Dashes = []vg.Length{vg.Points(1), vg.Points(2)}
		}
		p.Add(l)
	}
	return nil
}

func setLogY(p *plot.Plot, log bool) {
	if !log {
		return
	}
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
}

// Rprof is a radial profile with optional vertical marks.
type Rprof struct {
	Label  string
	Radius []float64
	Values []float64
	Marks  []float64
	Log    bool
}

func (r Rprof) Draw(p *plot.Plot, st Style) error {
	pts := finiteXYs(r.Radius, r.Values, r.Log)
	if _, err := addLine(p, st, r.Label, pts); err != nil {
		return err
	}
	p.X.Label.Text = "radius"
	setLogY(p, r.Log)
	return addMarks(p, r.Marks, pts, false)
}

func (r Rprof) lines() (string, string, bool, []xyLine) {
	return "radius", "", r.Log, []xyLine{{name: r.Label, xs: r.Radius, ys: r.Values}}
}

// Prof is a time-averaged radial profile. Radii and markers are divided by
// LengthScale when it is non-zero.
type Prof struct {
	Label       string
	Radius      []float64
	Values      []float64
	Markers     []float64
	LengthScale float64
}

func (pr Prof) scaled() (radius, markers []float64) {
	s := pr.LengthScale
	if s == 0 {
		s = 1
	}
	radius = make([]float64, len(pr.Radius))
	for i, r := range pr.Radius {
		radius[i] = r / s
	}
	markers = make([]float64, len(pr.Markers))
	for i, m := range pr.Markers {
		markers[i] = m / s
	}
	return radius, markers
}

func (pr Prof) Draw(p *plot.Plot, st Style) error {
	radius, markers := pr.scaled()
	pts := finiteXYs(radius, pr.Values, false)
	if _, err := addLine(p, st, pr.Label, pts); err != nil {
		return err
	}
	p.X.Label.Text = "radius"
	p.Y.Label.Text = pr.Label
	return addMarks(p, markers, pts, true)
}

func (pr Prof) lines() (string, string, bool, []xyLine) {
	radius, _ := pr.scaled()
	return "radius", pr.Label, false, []xyLine{{name: pr.Label, xs: radius, ys: pr.Values}}
}

// Area fills between two radial profiles.
type Area struct {
	Label  string
	Radius []float64
	Bottom []float64
	Top    []float64
	Marks  []float64
	Log    bool
	// Alpha is the fill opacity in [0, 1]; zero means 0.5.
	Alpha float64
}

func (a Area) Draw(p *plot.Plot, st Style) error {
	bot := finiteXYs(a.Radius, a.Bottom, a.Log)
	top := finiteXYs(a.Radius, a.Top, a.Log)
	if len(bot) == 0 || len(top) == 0 {
		return fmt.Errorf("%s: %w", a.Label, ErrEmpty)
	}
	ring := make(plotter.XYs, 0, len(bot)+len(top))
	ring = append(ring, bot...)
	for i := len(top) - 1; i >= 0; i-- {
		ring = append(ring, top[i])
	}
	poly, err := plotter.NewPolygon(ring)
	if err != nil {
		return fmt.Errorf("area %s: %w", a.Label, err)
	}
	alpha := a.Alpha
	if alpha <= 0 || alpha > 1 {
		alpha = 0.5
	}
	c := st.Color
	if c == nil {
		c = color.Black
	}
	r, g, b, _ := c.RGBA()
	poly.Color = color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(alpha * 255)}
	poly.LineStyle.Width = 0
	p.Add(poly)
	if st.Legend && a.Label != "" {
		p.Legend.Add(a.Label, poly)
	}
	p.X.Label.Text = "radius"
	setLogY(p, a.Log)
	return addMarks(p, a.Marks, append(bot, top...), false)
}

func (a Area) lines() (string, string, bool, []xyLine) {
	return "radius", "", a.Log, []xyLine{
		{name: a.Label + " (bottom)", xs: a.Radius, ys: a.Bottom},
		{name: a.Label + " (top)", xs: a.Radius, ys: a.Top},
	}
}

// Series is a quantity against time.
type Series struct {
	Label  string
	Time   []float64
	Values []float64
}

func (s Series) Draw(p *plot.Plot, st Style) error {
	if _, err := addLine(p, st, s.Label, finiteXYs(s.Time, s.Values, false)); err != nil {
		return err
	}
	p.X.Label.Text = "time"
	return nil
}

func (s Series) lines() (string, string, bool, []xyLine) {
	return "time", "", false, []xyLine{{name: s.Label, xs: s.Time, ys: s.Values}}
}

// Hist is a histogram with Bins bins, 20 when zero.
type Hist struct {
	Label  string
	Values []float64
	Bins   int
}

func (h Hist) Draw(p *plot.Plot, st Style) error {
	vals := make(plotter.Values, 0, len(h.Values))
	for _, v := range h.Values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return fmt.Errorf("%s: %w", h.Label, ErrEmpty)
	}
	bins := h.Bins
	if bins <= 0 {
		bins = 20
	}
	hist, err := plotter.NewHist(vals, bins)
	if err != nil {
		return fmt.Errorf("histogram %s: %w", h.Label, err)
	}
	if st.Color != nil {
		hist.FillColor = st.Color
	}
	hist.LineStyle.Width = vg.Points(0.5)
	p.Add(hist)
	if st.Legend && h.Label != "" {
		p.Legend.Add(h.Label, hist)
	}
	p.X.Label.Text = h.Label
	return nil
}

// Contour is a post-processing contour drawn as radius against theta.
type Contour struct {
	Label  string
	Radius []float64
	Theta  []float64
}

func (c Contour) Draw(p *plot.Plot, st Style) error {
	if _, err := addLine(p, st, c.Label, finiteXYs(c.Theta, c.Radius, false)); err != nil {
		return err
	}
	p.X.Label.Text = "theta"
	p.Y.Label.Text = "radius"
	return nil
}

func (c Contour) lines() (string, string, bool, []xyLine) {
	return "theta", "radius", false, []xyLine{{name: c.Label, xs: c.Theta, ys: c.Radius}}
}

// SphericalContour is a contour projected on the meridional plane.
type SphericalContour struct {
	Label  string
	Radius []float64
	Theta  []float64
}

func (c SphericalContour) Draw(p *plot.Plot, st Style) error {
	n := len(c.Radius)
	if len(c.Theta) < n {
		n = len(c.Theta)
	}
	xs, zs := make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		xs[i], zs[i] = project(c.Radius[i], c.Theta[i])
	}
	_, err := addLine(p, st, c.Label, finiteXYs(xs, zs, false))
	return err
}

func (SphericalContour) equalAspect() bool { return true }

// project maps (r, theta) on the meridional plane: x = r sin(theta),
// z = r cos(theta).
func project(r, theta float64) (x, z float64) {
	return r * math.Sin(theta), r * math.Cos(theta)
}
