// Package mesa1d reads lyon1d binary stellar profiles produced from MESA
// models.
package mesa1d

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

var (
	// ErrBadHeader is returned for headers with impossible sizes.
	ErrBadHeader = errors.New("mesa1d: bad header")
	// ErrUnknownColumn is returned by Rprof for unknown names.
	ErrUnknownColumn = errors.New("mesa1d: unknown column")
)

const (
	maxMesh    = 1 << 22
	maxSpecies = 1 << 10
)

// Header is the leading record of a lyon1d file.
type Header struct {
	FSize    int32
	GMS      float64
	Model    int32
	DTN      float64
	Time     float64
	NMesh    int32
	N1       int32
	NSpecies int32
}

// columns lists the per-row float64 columns in file order. chem sits
// between entropy and nabla_adiab and is handled separately.
var (
	columnsBeforeChem = []string{
		"u", "radius", "rho", "temperature", "luminosity",
		"v_u", "v_r", "v_rho", "v_t", "v_sl", "pressure", "mass",
		"xmr", "d_m", "eint", "v_enuc", "v_eg", "entropy",
	}
	columnsAfterChem = []string{"nabla_adiab", "nabla", "c_sound", "brunt_vaisala"}
)

// Data is a decoded lyon1d file.
type Data struct {
	Header Header
	YZI    []uint8
	cols   map[string][]float64
	// Chem holds NSpecies abundances per mesh point.
	Chem [][]float64
}

// ReadFile reads the lyon1d file at path.
func ReadFile(path string) (*Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	d, err := Read(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Read decodes a lyon1d stream.
func Read(r io.Reader) (*Data, error) {
	var h Header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	n, ns := int(h.NMesh), int(h.NSpecies)
	if n < 1 || n > maxMesh || ns < 0 || ns > maxSpecies {
		return nil, fmt.Errorf("%w: n_mesh=%d n_species=%d", ErrBadHeader, n, ns)
	}
	d := &Data{Header: h, YZI: make([]uint8, n), cols: make(map[string][]float64), Chem: make([][]float64, n)}
	for _, c := range columnsBeforeChem {
		d.cols[c] = make([]float64, n)
	}
	for _, c := range columnsAfterChem {
		d.cols[c] = make([]float64, n)
	}
	before := make([]float64, len(columnsBeforeChem))
	after := make([]float64, len(columnsAfterChem))
	for i := 0; i < n; i++ {
		if err := binary.Read(r, binary.LittleEndian, &d.YZI[i]); err != nil {
			return nil, fmt.Errorf("read row %d: %w", i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, before); err != nil {
			return nil, fmt.Errorf("read row %d: %w", i, err)
		}
		d.Chem[i] = make([]float64, ns)
		if err := binary.Read(r, binary.LittleEndian, d.Chem[i]); err != nil {
			return nil, fmt.Errorf("read row %d chem: %w", i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, after); err != nil {
			return nil, fmt.Errorf("read row %d: %w", i, err)
		}
		for k, c := range columnsBeforeChem {
			d.cols[c][i] = before[k]
		}
		for k, c := range columnsAfterChem {
			d.cols[c][i] = after[k]
		}
	}
	return d, nil
}

// Species returns the abundance of species k at every mesh point.
func (d *Data) Species(k int) ([]float64, error) {
	if k < 0 || k >= int(d.Header.NSpecies) {
		return nil, fmt.Errorf("%w: species %d of %d", ErrUnknownColumn, k, d.Header.NSpecies)
	}
	out := make([]float64, len(d.Chem))
	for i, row := range d.Chem {
		out[i] = row[k]
	}
	return out, nil
}

// Columns lists the names accepted by Rprof.
func (d *Data) Columns() []string {
	out := make([]string, 0, len(d.cols)+2)
	for c := range d.cols {
		out = append(out, c)
	}
	out = append(out, "he3", "he4")
	sort.Strings(out)
	return out
}

// Rprof returns a profile by name. "he3" and "he4" are chem columns 3
// and 4.
func (d *Data) Rprof(name string) ([]float64, error) {
	switch name {
	case "he3":
		return d.Species(3)
	case "he4":
		return d.Species(4)
	}
	c, ok := d.cols[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
	}
	return append([]float64(nil), c...), nil
}

// Radius returns the radius column.
func (d *Data) Radius() []float64 {
	return append([]float64(nil), d.cols["radius"]...)
}
