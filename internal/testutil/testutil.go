// Package testutil builds synthetic MUSIC runs for tests.
package testutil

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/mutools/internal/dump"
	"github.com/banshee-data/mutools/internal/fields"
	"github.com/banshee-data/mutools/internal/grid"
)

// Run describes a synthetic run. Dump k holds a uniform density of
// Density+k, a uniform radial velocity of VelR*(k+1), no tangential
// velocity and time 10*k. Both directions are periodic so the recentred
// velocities keep their stored values.
type Run struct {
	Prefix    string
	Dumps     []int
	N1, N2    int
	RMin      float64
	RMax      float64
	Cartesian bool
	Density   float64
	VelR      float64
	Scalars   int
	// RCore is written to profile1d.dat when positive.
	RCore float64
}

// DefaultRun is a small spherical run with dumps 0 to 3.
func DefaultRun() Run {
	return Run{
		Prefix:  "run_",
		Dumps:   []int{0, 1, 2, 3},
		N1:      4,
		N2:      3,
		RMin:    1,
		RMax:    3,
		Density: 1,
		VelR:    2,
		RCore:   2,
	}
}

// Params renders the run parameter file.
func (r Run) Params() string {
	return fmt.Sprintf(`&io
  dataoutput = '%s'
  input = '%sinit.music'
/
&geometry
  cartesian = %s
/
&scalars
  nscalars = %d
/
&boundaryconditions
  bc1(1) = 'periodic'
  bc3(1) = 'periodic'
/
`, r.Prefix, r.Prefix, fortranBool(r.Cartesian), r.Scalars)
}

func fortranBool(b bool) string {
	if b {
		return ".true."
	}
	return ".false."
}

// Grid returns the run grid.
func (r Run) Grid() grid.Grid2D {
	g := grid.Grid2D{X1: grid.Uniform(r.RMin, r.RMax, r.N1)}
	if r.Cartesian {
		g.X2 = grid.Uniform(0, 1, r.N2)
		g.Geometry = grid.Cartesian
	} else {
		g.X2 = grid.Uniform(0, math.Pi, r.N2)
	}
	return g
}

// Dump builds dump k.
func (r Run) Dump(k int) (*dump.Dump, error) {
	info := dump.Info{NumScalars: r.Scalars}
	vars := map[string]fields.Array2D{}
	for _, name := range info.VarNames() {
		vars[name] = fields.NewArray2D(r.N1, r.N2)
	}
	fill := func(name string, v float64) {
		a := vars[name]
		for i := range a.Data {
			a.Data[i] = v
		}
	}
	fill("density", r.Density+float64(k))
	fill("e_spec_int", 1)
	fill("vel_1", r.VelR*float64(k+1))
	return dump.New(dump.Header{Model: int32(k), Time: 10 * float64(k), DTN: 0.1}, r.Grid(), info, vars)
}

// Write creates the run in dir and returns the parameter file path.
func (r Run) Write(t testing.TB, dir string) string {
	t.Helper()
	parfile := filepath.Join(dir, "params.nml")
	if err := os.WriteFile(parfile, []byte(r.Params()), 0o644); err != nil {
		t.Fatalf("write params: %v", err)
	}
	for _, k := range r.Dumps {
		d, err := r.Dump(k)
		if err != nil {
			t.Fatalf("build dump %d: %v", k, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("%s%08d.music", r.Prefix, k))
		if err := dump.WriteFile(path, d); err != nil {
			t.Fatalf("write dump %d: %v", k, err)
		}
	}
	if r.RCore > 0 {
		p1d := fmt.Sprintf("rcore rad_surf\n%g %g\nr_grid rho\n%g 1.0\n", r.RCore, r.RMax, r.RMin)
		if err := os.WriteFile(filepath.Join(dir, "profile1d.dat"), []byte(p1d), 0o644); err != nil {
			t.Fatalf("write profile1d: %v", err)
		}
	}
	return parfile
}
