package spectrum

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/mutools/internal/fields"
	"github.com/banshee-data/mutools/internal/grid"
)

// ErrResolution is returned when the colatitude grid cannot resolve the
// requested degrees.
var ErrResolution = errors.New("spectrum: theta grid too coarse for requested degrees")

// SHT is an axisymmetric spherical harmonics transform over colatitude,
// using orthonormal Y_l0 evaluated at cell centres and midpoint solid-angle
// weights.
type SHT struct {
	ells []int
	// ylm[k][j] is Y_{ells[k],0} at theta_j times 2 pi w_j.
	ylm [][]float64
}

// legendre returns P_0..P_lmax at x.
func legendre(lmax int, x float64) []float64 {
	p := make([]float64, lmax+1)
	p[0] = 1
	if lmax > 0 {
		p[1] = x
	}
	for l := 1; l < lmax; l++ {
		p[l+1] = (float64(2*l+1)*x*p[l] - float64(l)*p[l-1]) / float64(l+1)
	}
	return p
}

// NewSHT prepares a transform for degrees ells. Every degree up to the
// largest requested must be orthonormal on the grid to within tol.
func NewSHT(theta grid.Grid1D, ells []int, tol float64) (*SHT, error) {
	if len(ells) == 0 {
		return nil, errors.New("spectrum: no degree requested")
	}
	lmax := 0
	for _, l := range ells {
		if l < 0 {
			return nil, fmt.Errorf("spectrum: negative degree %d", l)
		}
		if l > lmax {
			lmax = l
		}
	}
	centers := theta.CellCenters()
	weights := grid.NewSphericalQuad(theta).Weights()
	all := make([][]float64, lmax+1)
	for l := range all {
		all[l] = make([]float64, len(centers))
	}
	for j, th := range centers {
		p := legendre(lmax, math.Cos(th))
		for l := 0; l <= lmax; l++ {
			all[l][j] = math.Sqrt(float64(2*l+1)/(4*math.Pi)) * p[l]
		}
	}
	for l := 0; l <= lmax; l++ {
		var norm float64
		for j, y := range all[l] {
			norm += 2 * math.Pi * weights[j] * y * y
		}
		if math.Abs(norm-1) > tol {
			return nil, fmt.Errorf("%w: degree %d has norm %.3f", ErrResolution, l, norm)
		}
	}
	s := &SHT{ells: append([]int(nil), ells...)}
	for _, l := range ells {
		row := make([]float64, len(centers))
		for j, y := range all[l] {
			row[j] = 2 * math.Pi * weights[j] * y
		}
		s.ylm = append(s.ylm, row)
	}
	return s, nil
}

// Ells returns the degrees of the transform.
func (s *SHT) Ells() []int { return append([]int(nil), s.ells...) }

// Transform projects f, indexed [r][theta], on the degrees. The result is
// indexed [r][ell].
func (s *SHT) Transform(f fields.Array2D) ([][]float64, error) {
	if len(s.ylm) > 0 && f.N2 != len(s.ylm[0]) {
		return nil, fmt.Errorf("%w: field has %d theta cells, transform %d", fields.ErrShape, f.N2, len(s.ylm[0]))
	}
	out := make([][]float64, f.N1)
	for i := range out {
		row := f.Row(i)
		out[i] = make([]float64, len(s.ells))
		for k, y := range s.ylm {
			var a float64
			for j, v := range row {
				a += v * y[j]
			}
			out[i][k] = a
		}
	}
	return out, nil
}
