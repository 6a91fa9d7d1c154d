package plots

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// ErrFormat is returned for an output extension that cannot be rendered.
var ErrFormat = errors.New("plots: unsupported output format")

const (
	panelWidth  = 6.4 * vg.Inch
	panelHeight = 4.8 * vg.Inch
	titleHeight = 0.4 * vg.Inch
	// colorBarFrac is the share of a panel's width given to its colour bar.
	colorBarFrac = 0.15
	// colorBarStrips is the number of bands a colour bar is drawn with.
	colorBarStrips = 128
)

// Axes is one panel of a figure.
type Axes struct {
	Plotters []Plotter
	Legend   bool
}

// Figure is a grid of panels saved to a single file.
type Figure struct {
	Title         string
	Rows, Cols    int
	Width, Height vg.Length
	Axes          []Axes
}

// SinglePlot is a 6.4x4.8 in figure with one plotter.
func SinglePlot(p Plotter) *Figure {
	return &Figure{Rows: 1, Cols: 1, Width: panelWidth, Height: panelHeight, Axes: []Axes{{Plotters: []Plotter{p}}}}
}

// SameAxes draws all plotters on a single panel.
func SameAxes(legend bool, ps ...Plotter) *Figure {
	return &Figure{Rows: 1, Cols: 1, Width: panelWidth, Height: panelHeight, Axes: []Axes{{Plotters: ps, Legend: legend}}}
}

// Matrix lays plotters out row by row on an nrows x ncols grid.
func Matrix(nrows, ncols int, ps ...Plotter) (*Figure, error) {
	if nrows <= 0 || ncols <= 0 || len(ps) != nrows*ncols {
		return nil, fmt.Errorf("plots: %d plotters for a %dx%d matrix", len(ps), nrows, ncols)
	}
	f := &Figure{
		Rows: nrows, Cols: ncols,
		Width:  vg.Length(ncols) * panelWidth,
		Height: vg.Length(nrows) * panelHeight,
	}
	for _, p := range ps {
		f.Axes = append(f.Axes, Axes{Plotters: []Plotter{p}})
	}
	return f, nil
}

// WithTitle sets the figure title.
func (f *Figure) WithTitle(title string) *Figure {
	f.Title = title
	return f
}

type colorBarer interface {
	colorBar() (palette.ColorMap, string)
}

type aspecter interface {
	equalAspect() bool
}

type panel struct {
	plot  *plot.Plot
	bar   *plot.Plot
	equal bool
}

func (f *Figure) panels() ([]panel, error) {
	out := make([]panel, 0, len(f.Axes))
	for _, ax := range f.Axes {
		pn := panel{plot: plot.New()}
		colors := lineColors(len(ax.Plotters))
		for i, pl := range ax.Plotters {
			if err := pl.Draw(pn.plot, Style{Color: colors[i], Legend: ax.Legend}); err != nil {
				return nil, err
			}
			if cb, ok := pl.(colorBarer); ok && pn.bar == nil {
				cm, label := cb.colorBar()
				pn.bar = plot.New()
				pn.bar.HideX()
				pn.bar.Y.Label.Text = label
				pn.bar.Add(&colorStrips{cm: cm, n: colorBarStrips})
			}
			if a, ok := pl.(aspecter); ok && a.equalAspect() {
				pn.equal = true
			}
		}
		out = append(out, pn)
	}
	return out, nil
}

// colorStrips is a vertical colour bar made of filled bands. Unlike
// plotter.ColorBar it draws no image, so vector backends such as eps can
// render it.
type colorStrips struct {
	cm palette.ColorMap
	n  int
}

// Plot implements plot.Plotter.
func (s *colorStrips) Plot(c draw.Canvas, p *plot.Plot) {
	trX, trY := p.Transforms(&c)
	lo, hi := s.cm.Min(), s.cm.Max()
	x0, x1 := trX(0), trX(1)
	for k := 0; k < s.n; k++ {
		a := lo + (hi-lo)*float64(k)/float64(s.n)
		b := lo + (hi-lo)*float64(k+1)/float64(s.n)
		c.FillPolygon(colorAt(s.cm, (a+b)/2), []vg.Point{
			{X: x0, Y: trY(a)}, {X: x1, Y: trY(a)},
			{X: x1, Y: trY(b)}, {X: x0, Y: trY(b)},
		})
	}
}

// DataRange implements plot.DataRanger.
func (s *colorStrips) DataRange() (xmin, xmax, ymin, ymax float64) {
	return 0, 1, s.cm.Min(), s.cm.Max()
}

func (pn panel) draw(c draw.Canvas) {
	if pn.bar != nil {
		w := c.Max.X - c.Min.X
		bw := vg.Length(colorBarFrac) * w
		pn.bar.Draw(draw.Crop(c, w-bw, 0, 0, 0))
		c = draw.Crop(c, 0, -bw, 0, 0)
	}
	if pn.equal {
		c = equalAspect(c, pn.plot)
	}
	pn.plot.Draw(c)
}

// equalAspect shrinks c so one data unit spans the same length on both axes.
func equalAspect(c draw.Canvas, p *plot.Plot) draw.Canvas {
	dx, dy := p.X.Max-p.X.Min, p.Y.Max-p.Y.Min
	w, h := c.Max.X-c.Min.X, c.Max.Y-c.Min.Y
	if dx <= 0 || dy <= 0 || w <= 0 || h <= 0 {
		return c
	}
	if float64(w)/float64(h) > dx/dy {
		pad := (w - h*vg.Length(dx/dy)) / 2
		return draw.Crop(c, pad, -pad, 0, 0)
	}
	pad := (h - w*vg.Length(dy/dx)) / 2
	return draw.Crop(c, 0, 0, pad, -pad)
}

func (f *Figure) render(dc draw.Canvas) error {
	panels, err := f.panels()
	if err != nil {
		return err
	}
	if f.Title != "" {
		tp := plot.New()
		tp.HideAxes()
		tp.Title.Text = f.Title
		h := dc.Max.Y - dc.Min.Y
		tp.Draw(draw.Crop(dc, 0, 0, h-titleHeight, 0))
		dc = draw.Crop(dc, 0, 0, 0, -titleHeight)
	}
	tiles := draw.Tiles{
		Rows: f.Rows, Cols: f.Cols,
		PadX: vg.Millimeter * 4, PadY: vg.Millimeter * 4,
		PadTop: vg.Millimeter * 2, PadBottom: vg.Millimeter * 2,
		PadLeft: vg.Millimeter * 2, PadRight: vg.Millimeter * 2,
	}
	for i, pn := range panels {
		pn.draw(tiles.At(dc, i%f.Cols, i/f.Cols))
	}
	return nil
}

// WriteTo renders the figure in format (pdf, png, svg, eps or html) to w.
func (f *Figure) WriteTo(w io.Writer, format string) error {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	switch format {
	case "html":
		return f.renderHTML(w)
	case "pdf", "png", "svg", "eps":
	default:
		return fmt.Errorf("%w: %q", ErrFormat, format)
	}
	c, err := draw.NewFormattedCanvas(f.Width, f.Height, format)
	if err != nil {
		return fmt.Errorf("plots: canvas: %w", err)
	}
	if err := f.render(draw.New(c)); err != nil {
		return err
	}
	if _, err := c.WriteTo(w); err != nil {
		return fmt.Errorf("plots: write %s: %w", format, err)
	}
	return nil
}

// Save renders the figure to path, picking the format from its extension.
func (f *Figure) Save(path string) (err error) {
	format := strings.TrimPrefix(filepath.Ext(path), ".")
	if format == "" {
		return fmt.Errorf("%w: %s has no extension", ErrFormat, path)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("plots: create %s: %w", dir, err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("plots: create %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
		}
	}()
	return f.WriteTo(file, format)
}
