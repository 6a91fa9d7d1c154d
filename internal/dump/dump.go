// Package dump reads and writes MUSIC dump files.
//
// A dump is little-endian: a fixed header (xmcore f64, model i32, dtn f64,
// time f64, nfaces1 i32, nfaces2 i32), the x1 then x2 face coordinates, and
// one n1*n2 float64 block per variable in Fortran order (x1 fastest).
// Variables are density, e_spec_int, vel_1, vel_2 and then scalar_1..N.
// Velocities are stored on the lower face of their own direction and are
// recentred on read using the run's boundary conditions.
package dump

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/banshee-data/mutools/internal/fields"
	"github.com/banshee-data/mutools/internal/grid"
)

var (
	// ErrBadHeader is returned for headers with impossible sizes.
	ErrBadHeader = errors.New("dump: bad header")
	// ErrTruncated is returned when the file ends before all data is read.
	ErrTruncated = errors.New("dump: truncated file")
)

// maxCells bounds n1*n2 so a corrupt header cannot trigger huge allocations.
const maxCells = 1 << 24

// BC is a boundary condition along one direction.
type BC int

const (
	Reflective BC = iota
	Periodic
)

// ParseBC maps a MUSIC boundary condition name to a BC. Anything but
// "periodic" is treated as reflective.
func ParseBC(s string) BC {
	if strings.EqualFold(strings.TrimSpace(s), "periodic") {
		return Periodic
	}
	return Reflective
}

func (b BC) String() string {
	if b == Periodic {
		return "periodic"
	}
	return "reflective"
}

// Info describes the variables stored in a dump.
type Info struct {
	NumScalars int
}

// VarNames returns the stored variable names in file order.
func (i Info) VarNames() []string {
	names := []string{"density", "e_spec_int", "vel_1", "vel_2"}
	for k := 1; k <= i.NumScalars; k++ {
		names = append(names, fmt.Sprintf("scalar_%d", k))
	}
	return names
}

// Header is the fixed-size leading record of a dump.
type Header struct {
	XMCore  float64
	Model   int32
	DTN     float64
	Time    float64
	NFaces1 int32
	NFaces2 int32
}

// Dump is one MUSIC snapshot.
type Dump struct {
	Header Header
	grid   grid.Grid2D
	names  []string
	vars   map[string]fields.Array2D
}

// New assembles a dump from a header, a grid and variables. It is the
// constructor used when writing fixture or converted files.
func New(h Header, g grid.Grid2D, info Info, vars map[string]fields.Array2D) (*Dump, error) {
	n1, n2 := g.Shape()
	h.NFaces1, h.NFaces2 = int32(n1+1), int32(n2+1)
	d := &Dump{Header: h, grid: g, names: info.VarNames(), vars: make(map[string]fields.Array2D)}
	for _, name := range d.names {
		arr, ok := vars[name]
		if !ok {
			return nil, fmt.Errorf("dump: missing variable %s", name)
		}
		if arr.N1 != n1 || arr.N2 != n2 {
			return nil, fmt.Errorf("%w: %s is %dx%d, grid is %dx%d", fields.ErrShape, name, arr.N1, arr.N2, n1, n2)
		}
		d.vars[name] = arr
	}
	return d, nil
}

// Time returns the simulation time of the dump.
func (d *Dump) Time() float64 { return d.Header.Time }

// Names returns the stored variable names in file order.
func (d *Dump) Names() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// Grid returns the dump's grid.
func (d *Dump) Grid() grid.Grid2D { return d.grid }

// Field returns a stored variable. Together with Grid it makes a Dump a
// fields.Source.
func (d *Dump) Field(name string) (fields.Array2D, error) {
	arr, ok := d.vars[name]
	if !ok {
		return fields.Array2D{}, fmt.Errorf("%w: %s not in dump", fields.ErrUnknownField, name)
	}
	return arr, nil
}

// ReadFile reads the dump at path.
func ReadFile(path string, info Info, geom grid.Geometry, bcs [2]BC) (*Dump, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	d, err := Read(bufio.NewReader(f), info, geom, bcs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Read decodes a dump and recentres its velocities.
func Read(r io.Reader, info Info, geom grid.Geometry, bcs [2]BC) (*Dump, error) {
	var h Header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, wrapEOF(err, "header")
	}
	if h.NFaces1 < 2 || h.NFaces2 < 2 {
		return nil, fmt.Errorf("%w: nfaces %d x %d", ErrBadHeader, h.NFaces1, h.NFaces2)
	}
	n1, n2 := int(h.NFaces1)-1, int(h.NFaces2)-1
	if n1*n2 > maxCells {
		return nil, fmt.Errorf("%w: %d cells exceeds limit %d", ErrBadHeader, n1*n2, maxCells)
	}

	faces1 := make([]float64, n1+1)
	if err := binary.Read(r, binary.LittleEndian, faces1); err != nil {
		return nil, wrapEOF(err, "x1 faces")
	}
	faces2 := make([]float64, n2+1)
	if err := binary.Read(r, binary.LittleEndian, faces2); err != nil {
		return nil, wrapEOF(err, "x2 faces")
	}
	g1, err := grid.NewGrid1D(faces1)
	if err != nil {
		return nil, fmt.Errorf("x1: %w", err)
	}
	g2, err := grid.NewGrid1D(faces2)
	if err != nil {
		return nil, fmt.Errorf("x2: %w", err)
	}

	d := &Dump{
		Header: h,
		grid:   grid.Grid2D{X1: g1, X2: g2, Geometry: geom},
		names:  info.VarNames(),
		vars:   make(map[string]fields.Array2D),
	}
	block := make([]float64, n1*n2)
	for _, name := range d.names {
		if err := binary.Read(r, binary.LittleEndian, block); err != nil {
			return nil, wrapEOF(err, name)
		}
		arr := fields.NewArray2D(n1, n2)
		for j := 0; j < n2; j++ {
			for i := 0; i < n1; i++ {
				arr.Set(i, j, block[j*n1+i])
			}
		}
		d.vars[name] = arr
	}

	d.vars["vel_1"] = recenter(d.vars["vel_1"], 1, bcs[0])
	d.vars["vel_2"] = recenter(d.vars["vel_2"], 2, bcs[1])
	return d, nil
}

// recenter moves face values along axis to cell centres. The missing upper
// face of the last cell comes from the boundary condition: the first face
// for periodic domains, a wall (zero normal velocity) otherwise.
func recenter(faces fields.Array2D, axis int, bc BC) fields.Array2D {
	out := fields.NewArray2D(faces.N1, faces.N2)
	for i := 0; i < faces.N1; i++ {
		for j := 0; j < faces.N2; j++ {
			lower := faces.At(i, j)
			var upper float64
			switch {
			case axis == 1 && i+1 < faces.N1:
				upper = faces.At(i+1, j)
			case axis == 2 && j+1 < faces.N2:
				upper = faces.At(i, j+1)
			case bc == Periodic && axis == 1:
				upper = faces.At(0, j)
			case bc == Periodic && axis == 2:
				upper = faces.At(i, 0)
			}
			out.Set(i, j, 0.5*(lower+upper))
		}
	}
	return out
}

// Write encodes d. Arrays are written verbatim, so velocities must hold
// lower-face values; Read(Write(d)) recentres them.
func Write(w io.Writer, d *Dump) error {
	bw := bufio.NewWriter(w)
	h := d.Header
	n1, n2 := d.grid.Shape()
	h.NFaces1, h.NFaces2 = int32(n1+1), int32(n2+1)
	if err := binary.Write(bw, binary.LittleEndian, h); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, d.grid.X1.FacePoints()); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, d.grid.X2.FacePoints()); err != nil {
		return err
	}
	block := make([]float64, n1*n2)
	for _, name := range d.names {
		arr := d.vars[name]
		for j := 0; j < n2; j++ {
			for i := 0; i < n1; i++ {
				block[j*n1+i] = arr.At(i, j)
			}
		}
		if err := binary.Write(bw, binary.LittleEndian, block); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes d to path.
func WriteFile(path string, d *Dump) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, d); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func wrapEOF(err error, what string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: reading %s", ErrTruncated, what)
	}
	return fmt.Errorf("reading %s: %w", what, err)
}
