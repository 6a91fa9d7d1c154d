// Package fields treats raw MUSIC output variables and derived quantities
// the same way.
//
// A Source exposes the raw variables of a snapshot ("density",
// "e_spec_int", "vel_1", "vel_2", "scalar_N"). Get resolves a name against
// the derived-field registry first and falls back to the raw variables, so
// callers can ask for "vel_ampl" or "density" alike. Profile and
// SeriesValue reduce a field along theta and then along radius.
package fields

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/mutools/internal/grid"
)

// ErrUnknownField is returned for names that are neither registered nor
// present in the source.
var ErrUnknownField = errors.New("fields: unknown field")

// Source is a snapshot of MUSIC data on its grid.
type Source interface {
	Grid() grid.Grid2D
	Field(name string) (Array2D, error)
}

// Getter computes a derived field from a source.
type Getter func(src Source) (Array2D, error)

// ProfileGetter computes a derived radial profile from a source.
type ProfileGetter func(src Source) ([]float64, error)

// Entry describes a registered quantity.
type Entry struct {
	Name    string
	Doc     string
	Profile bool
}

type fieldEntry struct {
	doc string
	fn  Getter
}

type profileEntry struct {
	doc string
	fn  ProfileGetter
}

var (
	mu       sync.RWMutex
	derived  = map[string]fieldEntry{}
	profiles = map[string]profileEntry{}
)

// aliases maps short names used in scripts to the variable names stored in
// dumps.
var aliases = map[string]string{
	"rho":   "density",
	"e_int": "e_spec_int",
}

// Register adds a derived field. Registering an existing name replaces it.
func Register(name, doc string, fn Getter) {
	mu.Lock()
	defer mu.Unlock()
	derived[name] = fieldEntry{doc: doc, fn: fn}
}

// RegisterProfile adds a derived radial profile.
func RegisterProfile(name, doc string, fn ProfileGetter) {
	mu.Lock()
	defer mu.Unlock()
	profiles[name] = profileEntry{doc: doc, fn: fn}
}

// Known lists the registered derived quantities sorted by name.
func Known() []Entry {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Entry, 0, len(derived)+len(profiles))
	for name, e := range derived {
		out = append(out, Entry{Name: name, Doc: e.doc})
	}
	for name, e := range profiles {
		out = append(out, Entry{Name: name, Doc: e.doc, Profile: true})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Raw fetches a variable stored in the source, resolving aliases.
func Raw(src Source, name string) (Array2D, error) {
	if alias, ok := aliases[name]; ok {
		name = alias
	}
	return src.Field(name)
}

// Get returns the named field, derived or raw.
func Get(src Source, name string) (Array2D, error) {
	mu.RLock()
	e, ok := derived[name]
	mu.RUnlock()
	if ok {
		arr, err := e.fn(src)
		if err != nil {
			return Array2D{}, fmt.Errorf("derive %s: %w", name, err)
		}
		return arr, nil
	}
	return Raw(src, name)
}

// Profile returns the horizontal average of the named quantity at each
// x1 cell. Spherical grids are averaged with the solid-angle quadrature,
// Cartesian grids with a plain mean.
func Profile(src Source, name string) ([]float64, error) {
	mu.RLock()
	e, ok := profiles[name]
	mu.RUnlock()
	if ok {
		return e.fn(src)
	}
	field, err := Get(src, name)
	if err != nil {
		return nil, err
	}
	return HorizontalAverage(src.Grid(), field), nil
}

// HorizontalAverage reduces field along x2.
func HorizontalAverage(g grid.Grid2D, field Array2D) []float64 {
	out := make([]float64, field.N1)
	if g.Geometry == grid.Spherical {
		quad := grid.NewSphericalQuad(g.Theta())
		for i := range out {
			out[i] = quad.Average(field.Row(i))
		}
		return out
	}
	widths := g.X2.CellWidths()
	for i := range out {
		out[i] = stat.Mean(field.Row(i), widths)
	}
	return out
}

// SeriesValue returns the volume-weighted average of the named quantity
// over the whole domain, the value a time series holds for one snapshot.
func SeriesValue(src Source, name string) (float64, error) {
	prof, err := Profile(src, name)
	if err != nil {
		return 0, err
	}
	return RadialAverage(src.Grid(), prof), nil
}

// RadialAverage reduces a profile along x1 with shell volume weights on
// spherical grids and cell widths on Cartesian ones.
func RadialAverage(g grid.Grid2D, prof []float64) float64 {
	var w []float64
	if g.Geometry == grid.Spherical {
		w = grid.ShellWeights(g.R())
	} else {
		w = g.X1.CellWidths()
	}
	return stat.Mean(prof, w)
}

// MeanProfile averages profiles of equal length element-wise.
func MeanProfile(profs [][]float64) ([]float64, error) {
	if len(profs) == 0 {
		return nil, errors.New("fields: no profile to average")
	}
	out := make([]float64, len(profs[0]))
	for i, p := range profs {
		if len(p) != len(out) {
			return nil, fmt.Errorf("%w: profile %d has %d points, want %d", ErrShape, i, len(p), len(out))
		}
		floats.Add(out, p)
	}
	floats.Scale(1/float64(len(profs)), out)
	return out, nil
}

func init() {
	Register("vel_ampl", "Norm of velocity vector.", combineRaw(func(v ...float64) float64 {
		return math.Hypot(v[0], v[1])
	}, "vel_1", "vel_2"))
	Register("vel_square", "Square of velocity amplitude.", combineRaw(func(v ...float64) float64 {
		return v[0]*v[0] + v[1]*v[1]
	}, "vel_1", "vel_2"))
	Register("ekin", "Kinetic energy.", combineRaw(func(v ...float64) float64 {
		return 0.5 * v[0] * (v[1]*v[1] + v[2]*v[2])
	}, "density", "vel_1", "vel_2"))
	Register("vr_abs", "Absolute vr.", combineRaw(func(v ...float64) float64 {
		return math.Abs(v[0])
	}, "vel_1"))
	Register("vt_abs", "Absolute vt.", combineRaw(func(v ...float64) float64 {
		return math.Abs(v[0])
	}, "vel_2"))
	Register("vr_normalized", "Radial velocity normalized by velocity amplitude.", combineRaw(func(v ...float64) float64 {
		return math.Sqrt(v[0] * v[0] / (v[0]*v[0] + v[1]*v[1]))
	}, "vel_1", "vel_2"))
	Register("vt_normalized", "Horizontal velocity normalized by velocity amplitude.", combineRaw(func(v ...float64) float64 {
		return math.Sqrt(v[1] * v[1] / (v[0]*v[0] + v[1]*v[1]))
	}, "vel_1", "vel_2"))

	RegisterProfile("vrms", "Vrms defined as vrms(r, t) = sqrt(mean_theta(v2)).", func(src Source) ([]float64, error) {
		prof, err := Profile(src, "vel_square")
		if err != nil {
			return nil, err
		}
		for i, v := range prof {
			prof[i] = math.Sqrt(v)
		}
		return prof, nil
	})
}

func combineRaw(fn func(v ...float64) float64, names ...string) Getter {
	return func(src Source) (Array2D, error) {
		arrays := make([]Array2D, len(names))
		for i, name := range names {
			arr, err := Raw(src, name)
			if err != nil {
				return Array2D{}, err
			}
			arrays[i] = arr
		}
		return Combine(fn, arrays...)
	}
}
