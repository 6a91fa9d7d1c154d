// Package h5 is the small slice of HDF5 the post-processing tools need:
// reading float datasets and attributes from a hierarchy, and writing flat
// float datasets.
//
// The file-backed implementation needs cgo and libhdf5 and is only built
// with -tags=hdf5. Mem implements the same interfaces in memory.
package h5

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrNotFound is returned for missing objects or attributes.
	ErrNotFound = errors.New("h5: not found")
	// ErrUnsupported is returned when HDF5 support is not compiled in.
	ErrUnsupported = errors.New("h5: HDF5 support not enabled: rebuild with -tags=hdf5")
)

// Dataset is an n-dimensional float64 array in row-major order.
type Dataset struct {
	Dims []int
	Data []float64
}

// Len returns the number of elements implied by Dims.
func (d *Dataset) Len() int {
	n := 1
	for _, v := range d.Dims {
		n *= v
	}
	return n
}

// Squeeze drops dimensions of length one.
func (d *Dataset) Squeeze() *Dataset {
	out := &Dataset{Data: d.Data}
	for _, v := range d.Dims {
		if v != 1 {
			out.Dims = append(out.Dims, v)
		}
	}
	if len(out.Dims) == 0 && len(d.Data) > 0 {
		out.Dims = []int{1}
	}
	return out
}

// Row returns the i-th slice along the first dimension.
func (d *Dataset) Row(i int) ([]float64, error) {
	if len(d.Dims) == 0 || i < 0 || i >= d.Dims[0] {
		return nil, fmt.Errorf("h5: row %d out of range for dims %v", i, d.Dims)
	}
	stride := d.Len() / d.Dims[0]
	return d.Data[i*stride : (i+1)*stride], nil
}

// Reader reads a hierarchical file.
type Reader interface {
	Dataset(path string) (*Dataset, error)
	Attr(path, name string) ([]float64, error)
	Children(path string) ([]string, error)
	Close() error
}

// Writer writes datasets.
type Writer interface {
	WriteDataset(name string, dims []int, data []float64) error
	Close() error
}

// Mem is an in-memory hierarchy.
type Mem struct {
	mu       sync.RWMutex
	datasets map[string]*Dataset
	attrs    map[string]map[string][]float64
}

// NewMem returns an empty hierarchy.
func NewMem() *Mem {
	return &Mem{
		datasets: make(map[string]*Dataset),
		attrs:    make(map[string]map[string][]float64),
	}
}

func clean(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

// WriteDataset stores a copy of data under name, creating parent groups.
func (m *Mem) WriteDataset(name string, dims []int, data []float64) error {
	ds := &Dataset{Dims: append([]int(nil), dims...), Data: append([]float64(nil), data...)}
	if ds.Len() != len(data) {
		return fmt.Errorf("h5: %s: dims %v do not match %d values", name, dims, len(data))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasets[clean(name)] = ds
	return nil
}

// SetAttr attaches an attribute to an object.
func (m *Mem) SetAttr(objPath, name string, values []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := clean(objPath)
	if m.attrs[p] == nil {
		m.attrs[p] = make(map[string][]float64)
	}
	m.attrs[p][name] = append([]float64(nil), values...)
}

// Dataset returns the dataset at p.
func (m *Mem) Dataset(p string) (*Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ds, ok := m.datasets[clean(p)]
	if !ok {
		return nil, fmt.Errorf("%w: dataset %s", ErrNotFound, p)
	}
	return &Dataset{Dims: append([]int(nil), ds.Dims...), Data: append([]float64(nil), ds.Data...)}, nil
}

// Attr returns the attribute name of the object at p.
func (m *Mem) Attr(p, name string) ([]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.attrs[clean(p)][name]
	if !ok {
		return nil, fmt.Errorf("%w: attribute %s of %s", ErrNotFound, name, p)
	}
	return append([]float64(nil), v...), nil
}

// Children lists the sorted direct children of the group at p.
func (m *Mem) Children(p string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := clean(p)
	if prefix != "" {
		prefix += "/"
	}
	seen := map[string]bool{}
	for name := range m.datasets {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		child, _, _ := strings.Cut(strings.TrimPrefix(name, prefix), "/")
		seen[child] = true
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("%w: group %s", ErrNotFound, p)
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

// Close is a no-op.
func (m *Mem) Close() error { return nil }
