// Package lscale reads the raw binary temperature files written by the
// MUSIC length-scale diagnostics.
package lscale

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/banshee-data/mutools/internal/fields"
)

// ErrBadHeader is returned for headers with impossible sizes.
var ErrBadHeader = errors.New("lscale: bad header")

const maxPoints = 1 << 24

// Header is the leading record of an lscale file.
type Header struct {
	NRTot int32
	NTTot int32
	NPTot int32
	Time  float64
}

// BinData is the content of an lscale file. Fields are indexed [r][theta]
// on the nrtot x nttot node grid.
type BinData struct {
	Header      Header
	Rad         []float64
	Theta       []float64
	UR          fields.Array2D
	Rho         fields.Array2D
	Pressure    fields.Array2D
	Temperature fields.Array2D
	TempProf    fields.Array2D
	TempPert    fields.Array2D
}

// ReadFile reads the lscale file at path.
func ReadFile(path string) (*BinData, error) {
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

// Read decodes an lscale stream: the header, then 8 float64 per node
// (rad, theta, u_r, rho, pressure, temperature, temp_prof, temp_pert),
// nodes ordered with theta fastest.
func Read(r io.Reader) (*BinData, error) {
	var h Header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	nr, nt := int(h.NRTot), int(h.NTTot)
	if nr < 1 || nt < 1 || nr*nt > maxPoints {
		return nil, fmt.Errorf("%w: %d x %d nodes", ErrBadHeader, nr, nt)
	}
	d := &BinData{
		Header:      h,
		Rad:         make([]float64, nr),
		Theta:       make([]float64, nt),
		UR:          fields.NewArray2D(nr, nt),
		Rho:         fields.NewArray2D(nr, nt),
		Pressure:    fields.NewArray2D(nr, nt),
		Temperature: fields.NewArray2D(nr, nt),
		TempProf:    fields.NewArray2D(nr, nt),
		TempPert:    fields.NewArray2D(nr, nt),
	}
	var node [8]float64
	for i := 0; i < nr; i++ {
		for j := 0; j < nt; j++ {
			if err := binary.Read(r, binary.LittleEndian, &node); err != nil {
				return nil, fmt.Errorf("read node (%d, %d): %w", i, j, err)
			}
			if j == 0 {
				d.Rad[i] = node[0]
			}
			if i == 0 {
				d.Theta[j] = node[1]
			}
			d.UR.Set(i, j, node[2])
			d.Rho.Set(i, j, node[3])
			d.Pressure.Set(i, j, node[4])
			d.Temperature.Set(i, j, node[5])
			d.TempProf.Set(i, j, node[6])
			d.TempPert.Set(i, j, node[7])
		}
	}
	return d, nil
}

// TempPertRatio returns temp_pert/temp_prof on the cells bounded by the
// nodes, dropping the last node in each direction.
func (d *BinData) TempPertRatio() fields.Array2D {
	nr, nt := d.TempPert.N1-1, d.TempPert.N2-1
	out := fields.NewArray2D(nr, nt)
	for i := 0; i < nr; i++ {
		for j := 0; j < nt; j++ {
			out.Set(i, j, d.TempPert.At(i, j)/d.TempProf.At(i, j))
		}
	}
	return out
}
