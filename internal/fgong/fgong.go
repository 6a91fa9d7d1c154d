// Package fgong reads stellar models in the FGONG text format.
//
// A file has four comment lines, a line "nn iconst ivar ivers", then
// iconst global values followed by nn*ivar variables, five 16-character
// floats per line. Points are stored from the surface inwards; accessors
// return them by increasing radius.
package fgong

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Physical constants in cgs units.
const (
	GravConst       = 6.67430e-8
	StefanBoltzmann = 5.670374419e-5
)

// Variable columns used by the accessors.
const (
	colR     = 0
	colLnQ   = 1
	colT     = 2
	colRho   = 4
	colKappa = 7
	colCp    = 12
	colA     = 14
)

const fieldWidth = 16

// ErrFormat is returned for malformed files.
var ErrFormat = errors.New("fgong: bad format")

// Model is a parsed FGONG model.
type Model struct {
	Comments []string
	Version  int
	Glob     []float64
	// Var holds nn rows of ivar values, centre first.
	Var [][]float64
}

// ReadFile parses the model at path.
func ReadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Read parses a model.
func Read(r io.Reader) (*Model, error) {
	sc := bufio.NewScanner(r)
	m := &Model{}
	for i := 0; i < 4; i++ {
		if !sc.Scan() {
			return nil, fmt.Errorf("%w: missing comment line %d", ErrFormat, i+1)
		}
		m.Comments = append(m.Comments, strings.TrimRight(sc.Text(), " "))
	}
	if !sc.Scan() {
		return nil, fmt.Errorf("%w: missing size line", ErrFormat)
	}
	sizes := strings.Fields(sc.Text())
	if len(sizes) != 4 {
		return nil, fmt.Errorf("%w: size line %q", ErrFormat, sc.Text())
	}
	var dims [4]int
	for i, s := range sizes {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("%w: size line %q", ErrFormat, sc.Text())
		}
		dims[i] = v
	}
	nn, iconst, ivar := dims[0], dims[1], dims[2]
	m.Version = dims[3]
	if nn == 0 || ivar <= colA {
		return nil, fmt.Errorf("%w: nn=%d ivar=%d", ErrFormat, nn, ivar)
	}

	want := iconst + nn*ivar
	vals := make([]float64, 0, want)
	for len(vals) < want && sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \r")
		for start := 0; start < len(line); start += fieldWidth {
			end := start + fieldWidth
			if end > len(line) {
				end = len(line)
			}
			s := strings.TrimSpace(line[start:end])
			if s == "" {
				continue
			}
			v, err := parseFloat(s)
			if err != nil {
				return nil, fmt.Errorf("%w: value %q: %v", ErrFormat, s, err)
			}
			vals = append(vals, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(vals) < want {
		return nil, fmt.Errorf("%w: %d values, want %d", ErrFormat, len(vals), want)
	}

	m.Glob = vals[:iconst]
	m.Var = make([][]float64, nn)
	// Flip so that the centre comes first.
	for i := 0; i < nn; i++ {
		off := iconst + (nn-1-i)*ivar
		m.Var[i] = vals[off : off+ivar]
	}
	return m, nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.NewReplacer("D", "E", "d", "e").Replace(s), 64)
}

func (m *Model) column(k int) []float64 {
	out := make([]float64, len(m.Var))
	for i, row := range m.Var {
		out[i] = row[k]
	}
	return out
}

// Mass returns the total mass.
func (m *Model) Mass() float64 { return m.Glob[0] }

// RStar returns the photospheric radius.
func (m *Model) RStar() float64 { return m.Glob[1] }

// Radius returns the radius of each point.
func (m *Model) Radius() []float64 { return m.column(colR) }

// Density returns rho.
func (m *Model) Density() []float64 { return m.column(colRho) }

// Temperature returns T.
func (m *Model) Temperature() []float64 { return m.column(colT) }

// Opacity returns kappa.
func (m *Model) Opacity() []float64 { return m.column(colKappa) }

// Cp returns the specific heat at constant pressure.
func (m *Model) Cp() []float64 { return m.column(colCp) }

// N2 returns the squared Brunt-Vaisala frequency A g / r with
// g = G m / r^2. It is zero at the centre.
func (m *Model) N2() []float64 {
	out := make([]float64, len(m.Var))
	for i, row := range m.Var {
		r := row[colR]
		if r <= 0 {
			continue
		}
		mass := m.Mass() * math.Exp(row[colLnQ])
		g := GravConst * mass / (r * r)
		out[i] = row[colA] * g / r
	}
	return out
}

// BVFreq returns the Brunt-Vaisala frequency in Hz, zero where N2 < 0.
func (m *Model) BVFreq() []float64 {
	out := m.N2()
	for i, n2 := range out {
		out[i] = math.Sqrt(math.Max(n2, 0)) / (2 * math.Pi)
	}
	return out
}

// Conductivity returns the radiative conductivity 16 sigma T^3 / (3 kappa rho).
func (m *Model) Conductivity() []float64 {
	t, kappa, rho := m.Temperature(), m.Opacity(), m.Density()
	out := make([]float64, len(t))
	for i := range out {
		out[i] = 16 * StefanBoltzmann * math.Pow(t[i], 3) / (3 * kappa[i] * rho[i])
	}
	return out
}

// Diffusivity returns the thermal diffusivity K / (rho cp).
func (m *Model) Diffusivity() []float64 {
	k, rho, cp := m.Conductivity(), m.Density(), m.Cp()
	for i := range k {
		k[i] /= rho[i] * cp[i]
	}
	return k
}

// Quantities maps profile names accepted by the fgong command to their
// accessors.
func (m *Model) Quantities() map[string]func() []float64 {
	return map[string]func() []float64{
		"radius":       m.Radius,
		"density":      m.Density,
		"temperature":  m.Temperature,
		"opacity":      m.Opacity,
		"cp":           m.Cp,
		"bv_freq":      m.BVFreq,
		"conductivity": m.Conductivity,
		"diffusivity":  m.Diffusivity,
	}
}
