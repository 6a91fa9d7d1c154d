// Package postfile reads the HDF5 files written by the post_par
// post-processing tool. Each checkpoint lives under checkpoints/NNNNN.
package postfile

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/mutools/internal/fields"
	"github.com/banshee-data/mutools/internal/grid"
	"github.com/banshee-data/mutools/internal/h5"
)

// ErrNoDegree is returned when a radial moment lacks the requested degree.
var ErrNoDegree = errors.New("postfile: degree not available")

// PenDepthVars are the penetration-depth contours written by post_par.
var PenDepthVars = []string{
	"pen_depth_conv",
	"pen_depth_conv_max",
	"pen_depth_ke",
	"pen_depth_ke_max",
	"pen_depth_vr_r0neg",
	"pen_depth_vr_r0pos",
}

// Checkpoint is one checkpoint group of a post file.
type Checkpoint struct {
	r     h5.Reader
	IDump int
}

// File is an opened post file.
type File struct {
	r h5.Reader
}

// New wraps an HDF5 reader.
func New(r h5.Reader) *File { return &File{r: r} }

// Open opens the post file at path.
func Open(path string) (*File, error) {
	r, err := h5.Open(path)
	if err != nil {
		return nil, err
	}
	return &File{r: r}, nil
}

// Close closes the underlying file.
func (f *File) Close() error { return f.r.Close() }

// Checkpoint returns checkpoint idump. Its presence is checked on access.
func (f *File) Checkpoint(idump int) Checkpoint {
	return Checkpoint{r: f.r, IDump: idump}
}

// Range returns the checkpoints idump, idump+step, ... up to and
// including edump.
func (f *File) Range(idump, edump, step int) Tseries {
	var ts Tseries
	if step <= 0 {
		return ts
	}
	for i := idump; i <= edump; i += step {
		ts.Checkpoints = append(ts.Checkpoints, f.Checkpoint(i))
	}
	return ts
}

func (c Checkpoint) path(parts ...string) string {
	p := fmt.Sprintf("checkpoints/%05d", c.IDump)
	for _, s := range parts {
		p += "/" + s
	}
	return p
}

func (c Checkpoint) vector(parts ...string) ([]float64, error) {
	ds, err := c.r.Dataset(c.path(parts...))
	if err != nil {
		return nil, err
	}
	return ds.Data, nil
}

func (c Checkpoint) scalar(parts ...string) (float64, error) {
	v, err := c.vector(parts...)
	if err != nil {
		return 0, err
	}
	if len(v) != 1 {
		return 0, fmt.Errorf("postfile: %s holds %d values, want 1", c.path(parts...), len(v))
	}
	return v[0], nil
}

// PPParam returns a post-processing parameter.
func (c Checkpoint) PPParam(name string) ([]float64, error) {
	return c.vector("pp_parameters", name)
}

// Param returns a MUSIC run parameter.
func (c Checkpoint) Param(name string) ([]float64, error) {
	return c.vector("parameters", name)
}

// Time returns the simulation time of the checkpoint.
func (c Checkpoint) Time() (float64, error) {
	return c.scalar("parameters", "time")
}

// PPGrid returns the evaluation grid along direction ("rad" or "theta").
func (c Checkpoint) PPGrid(direction string) ([]float64, error) {
	return c.vector("pp_parameters", "eval_grid", direction)
}

// Contour is a curve r(theta).
type Contour struct {
	Name   string
	Radius []float64
	Theta  []float64
}

// ContourField reads a contour such as a penetration depth.
func (c Checkpoint) ContourField(name string) (Contour, error) {
	rad, err := c.vector("Contour_field", name)
	if err != nil {
		return Contour{}, err
	}
	theta, err := c.PPGrid("theta")
	if err != nil {
		return Contour{}, err
	}
	if len(rad) != len(theta) {
		return Contour{}, fmt.Errorf("%w: contour %s has %d points, theta grid %d", fields.ErrShape, name, len(rad), len(theta))
	}
	return Contour{Name: name, Radius: rad, Theta: theta}, nil
}

// ConstRadContour is a circle arc of radius r between tmin and tmax.
func ConstRadContour(r, tmin, tmax float64, label string, n int) Contour {
	c := Contour{Name: label, Radius: make([]float64, n), Theta: make([]float64, n)}
	for i := range c.Radius {
		c.Radius[i] = r
	}
	if n == 1 {
		c.Theta[0] = tmin
	} else if n > 1 {
		floats.Span(c.Theta, tmin, tmax)
	}
	return c
}

// Field is a 2D field on the evaluation grid, indexed [rad][theta].
type Field struct {
	Name   string
	Values fields.Array2D
	Radius []float64
	Theta  []float64
}

// RWalls returns radial cell walls assuming equally spaced centres.
func (f Field) RWalls() []float64 { return grid.WallsFromCenters(f.Radius) }

// TWalls returns colatitude cell walls assuming equally spaced centres.
func (f Field) TWalls() []float64 { return grid.WallsFromCenters(f.Theta) }

// Field reads a 2D field. Files store it [theta][rad].
func (c Checkpoint) Field(name string) (Field, error) {
	ds, err := c.r.Dataset(c.path("Field", name))
	if err != nil {
		return Field{}, err
	}
	ds = ds.Squeeze()
	if len(ds.Dims) != 2 {
		return Field{}, fmt.Errorf("%w: field %s has dims %v", fields.ErrShape, name, ds.Dims)
	}
	rad, err := c.PPGrid("rad")
	if err != nil {
		return Field{}, err
	}
	theta, err := c.PPGrid("theta")
	if err != nil {
		return Field{}, err
	}
	stored := fields.Array2D{N1: ds.Dims[0], N2: ds.Dims[1], Data: ds.Data}
	values := stored.Transpose()
	if values.N1 != len(rad) || values.N2 != len(theta) {
		return Field{}, fmt.Errorf("%w: field %s is %dx%d, grid %dx%d", fields.ErrShape, name, values.N1, values.N2, len(rad), len(theta))
	}
	return Field{Name: name, Values: values, Radius: rad, Theta: theta}, nil
}

// Rprof is a radial profile of a given moment degree.
type Rprof struct {
	Name   string
	Degree int
	Values []float64
	Radius []float64
}

// Rprof reads the radial moment name at degree. The degrees present are
// listed in the dataset's "degree" attribute, one per row.
func (c Checkpoint) Rprof(name string, degree int) (Rprof, error) {
	p := c.path("Moment_rad", name)
	degrees, err := c.r.Attr(p, "degree")
	if err != nil {
		return Rprof{}, err
	}
	row := -1
	for i, d := range degrees {
		if int(d) == degree {
			row = i
			break
		}
	}
	if row < 0 {
		return Rprof{}, fmt.Errorf("%w: %s has degrees %v, not %d", ErrNoDegree, name, degrees, degree)
	}
	ds, err := c.r.Dataset(p)
	if err != nil {
		return Rprof{}, err
	}
	values, err := ds.Row(row)
	if err != nil {
		return Rprof{}, err
	}
	rad, err := c.PPGrid("rad")
	if err != nil {
		return Rprof{}, err
	}
	if len(values) != len(rad) {
		return Rprof{}, fmt.Errorf("%w: rprof %s has %d points, radial grid %d", fields.ErrShape, name, len(values), len(rad))
	}
	return Rprof{Name: name, Degree: degree, Values: append([]float64(nil), values...), Radius: rad}, nil
}

// Checkpoints lists the checkpoints present in the file, in order.
func (f *File) Checkpoints() ([]Checkpoint, error) {
	names, err := f.r.Children("checkpoints")
	if err != nil {
		return nil, err
	}
	out := make([]Checkpoint, 0, len(names))
	for _, n := range names {
		var idump int
		if _, err := fmt.Sscanf(n, "%d", &idump); err != nil {
			return nil, fmt.Errorf("postfile: bad checkpoint name %q", n)
		}
		out = append(out, f.Checkpoint(idump))
	}
	return out, nil
}

func nanFilter(xs []float64) []float64 {
	out := xs[:0:0]
	for _, x := range xs {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}
