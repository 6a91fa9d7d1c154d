package fields

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrShape is returned when arrays that must share a shape do not.
var ErrShape = errors.New("fields: shape mismatch")

// Array2D is a dense field over a 2D mesh, stored row-major with index
// i1*N2 + i2.
type Array2D struct {
	N1, N2 int
	Data   []float64
}

// NewArray2D allocates a zeroed n1 x n2 array.
func NewArray2D(n1, n2 int) Array2D {
	return Array2D{N1: n1, N2: n2, Data: make([]float64, n1*n2)}
}

// At returns the value of cell (i1, i2).
func (a Array2D) At(i1, i2 int) float64 { return a.Data[i1*a.N2+i2] }

// Set stores v in cell (i1, i2).
func (a Array2D) Set(i1, i2 int, v float64) { a.Data[i1*a.N2+i2] = v }

// Row returns the values along x2 at fixed i1. The slice aliases a.
func (a Array2D) Row(i1 int) []float64 { return a.Data[i1*a.N2 : (i1+1)*a.N2] }

// Clone returns a deep copy.
func (a Array2D) Clone() Array2D {
	out := Array2D{N1: a.N1, N2: a.N2, Data: make([]float64, len(a.Data))}
	copy(out.Data, a.Data)
	return out
}

// Map applies f to every cell and returns the result as a new array.
func (a Array2D) Map(f func(float64) float64) Array2D {
	out := a.Clone()
	for i, v := range out.Data {
		out.Data[i] = f(v)
	}
	return out
}

// Transpose swaps the two axes.
func (a Array2D) Transpose() Array2D {
	out := NewArray2D(a.N2, a.N1)
	for i := 0; i < a.N1; i++ {
		for j := 0; j < a.N2; j++ {
			out.Set(j, i, a.At(i, j))
		}
	}
	return out
}

// SubArray returns the leading n1 x n2 block of a.
func (a Array2D) SubArray(n1, n2 int) Array2D {
	out := NewArray2D(n1, n2)
	for i := 0; i < n1; i++ {
		copy(out.Row(i), a.Row(i)[:n2])
	}
	return out
}

// Range returns the minimum and maximum finite values. Both are NaN when no
// cell is finite.
func (a Array2D) Range() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range a.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo > hi {
		return math.NaN(), math.NaN()
	}
	return lo, hi
}

// Combine evaluates fn cell by cell over arrays of identical shape.
func Combine(fn func(v ...float64) float64, arrays ...Array2D) (Array2D, error) {
	if len(arrays) == 0 {
		return Array2D{}, fmt.Errorf("%w: no input arrays", ErrShape)
	}
	n1, n2 := arrays[0].N1, arrays[0].N2
	for i, a := range arrays[1:] {
		if a.N1 != n1 || a.N2 != n2 {
			return Array2D{}, fmt.Errorf("%w: array %d is %dx%d, want %dx%d", ErrShape, i+1, a.N1, a.N2, n1, n2)
		}
	}
	out := NewArray2D(n1, n2)
	args := make([]float64, len(arrays))
	for k := range out.Data {
		for i, a := range arrays {
			args[i] = a.Data[k]
		}
		out.Data[k] = fn(args...)
	}
	return out, nil
}

// Scale multiplies every cell by s in place.
func (a Array2D) Scale(s float64) { floats.Scale(s, a.Data) }
