// Package grid describes the 1D and 2D meshes MUSIC data lives on and the
// quadratures used to reduce fields over them.
package grid

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrBadGrid is returned for face arrays that do not describe a mesh.
var ErrBadGrid = errors.New("grid: faces must hold at least 2 strictly increasing values")

// Grid1D is a 1D mesh described by its n+1 face coordinates.
type Grid1D struct {
	faces []float64
}

// NewGrid1D builds a grid from face coordinates. The slice is copied.
func NewGrid1D(faces []float64) (Grid1D, error) {
	if len(faces) < 2 {
		return Grid1D{}, ErrBadGrid
	}
	for i := 1; i < len(faces); i++ {
		if !(faces[i] > faces[i-1]) {
			return Grid1D{}, fmt.Errorf("%w: face %d (%g) <= face %d (%g)", ErrBadGrid, i, faces[i], i-1, faces[i-1])
		}
	}
	f := make([]float64, len(faces))
	copy(f, faces)
	return Grid1D{faces: f}, nil
}

// Uniform returns a grid of n equal cells spanning [lo, hi].
func Uniform(lo, hi float64, n int) Grid1D {
	faces := make([]float64, n+1)
	floats.Span(faces, lo, hi)
	return Grid1D{faces: faces}
}

// Len returns the number of cells.
func (g Grid1D) Len() int {
	if len(g.faces) == 0 {
		return 0
	}
	return len(g.faces) - 1
}

// FacePoints returns a copy of the face coordinates.
func (g Grid1D) FacePoints() []float64 {
	out := make([]float64, len(g.faces))
	copy(out, g.faces)
	return out
}

// CellCenters returns the midpoint of each cell.
func (g Grid1D) CellCenters() []float64 {
	out := make([]float64, g.Len())
	for i := range out {
		out[i] = 0.5 * (g.faces[i] + g.faces[i+1])
	}
	return out
}

// CellWidths returns the width of each cell.
func (g Grid1D) CellWidths() []float64 {
	out := make([]float64, g.Len())
	for i := range out {
		out[i] = g.faces[i+1] - g.faces[i]
	}
	return out
}

// Bounds returns the first and last face.
func (g Grid1D) Bounds() (lo, hi float64) {
	if len(g.faces) == 0 {
		return 0, 0
	}
	return g.faces[0], g.faces[len(g.faces)-1]
}

// Geometry selects how the two directions of a Grid2D are interpreted.
type Geometry int

const (
	// Spherical grids have x1 = radius and x2 = colatitude theta.
	Spherical Geometry = iota
	// Cartesian grids have x1 = x and x2 = y.
	Cartesian
)

func (g Geometry) String() string {
	if g == Cartesian {
		return "cartesian"
	}
	return "spherical"
}

// Grid2D is the tensor product of two 1D grids.
type Grid2D struct {
	X1       Grid1D
	X2       Grid1D
	Geometry Geometry
}

// Shape returns the number of cells along x1 and x2.
func (g Grid2D) Shape() (n1, n2 int) {
	return g.X1.Len(), g.X2.Len()
}

// R returns the radial grid of a spherical mesh.
func (g Grid2D) R() Grid1D { return g.X1 }

// Theta returns the colatitude grid of a spherical mesh.
func (g Grid2D) Theta() Grid1D { return g.X2 }

// SphericalQuad is the midpoint quadrature on the sphere along theta. Cell j
// is weighted by the solid angle cos(theta_j) - cos(theta_j+1).
type SphericalQuad struct {
	weights []float64
	total   float64
}

// NewSphericalQuad builds the quadrature for a theta grid.
func NewSphericalQuad(theta Grid1D) SphericalQuad {
	w := make([]float64, theta.Len())
	for j := range w {
		w[j] = math.Cos(theta.faces[j]) - math.Cos(theta.faces[j+1])
	}
	return SphericalQuad{weights: w, total: floats.Sum(w)}
}

// Weights returns a copy of the quadrature weights.
func (q SphericalQuad) Weights() []float64 {
	out := make([]float64, len(q.weights))
	copy(out, q.weights)
	return out
}

// Average returns the solid-angle weighted average of values.
func (q SphericalQuad) Average(values []float64) float64 {
	return floats.Dot(q.weights, values) / q.total
}

// ShellWeights returns dr * r^2 for each radial cell, the volume weights of
// spherical shells up to a constant factor.
func ShellWeights(r Grid1D) []float64 {
	rc := r.CellCenters()
	w := r.CellWidths()
	for i := range w {
		w[i] *= rc[i] * rc[i]
	}
	return w
}

// WallsFromCenters rebuilds the walls of a uniform grid from its cell
// centres. It assumes a constant spacing with centres midway between walls.
func WallsFromCenters(centers []float64) []float64 {
	if len(centers) == 0 {
		return nil
	}
	walls := make([]float64, len(centers)+1)
	halfDx := 0.5
	if len(centers) > 1 {
		halfDx = (centers[1] - centers[0]) / 2
	}
	walls[0] = centers[0] - halfDx
	for i, c := range centers {
		walls[i+1] = c + halfDx
	}
	return walls
}
