//go:build hdf5
// +build hdf5

package h5

import (
	"fmt"
	"path"
	"sort"

	"gonum.org/v1/hdf5"
)

// File is a libhdf5-backed Reader and Writer.
type File struct {
	f *hdf5.File
}

// Open opens an existing HDF5 file read-only.
// This function is only available when building with the 'hdf5' build tag.
func Open(name string) (Reader, error) {
	f, err := hdf5.OpenFile(name, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("failed to open HDF5 file %s: %w", name, err)
	}
	return &File{f: f}, nil
}

// Create creates or truncates an HDF5 file for writing.
func Create(name string) (Writer, error) {
	f, err := hdf5.CreateFile(name, hdf5.F_ACC_TRUNC)
	if err != nil {
		return nil, fmt.Errorf("failed to create HDF5 file %s: %w", name, err)
	}
	return &File{f: f}, nil
}

// Dataset reads the dataset at p as float64.
func (h *File) Dataset(p string) (*Dataset, error) {
	ds, err := h.f.OpenDataset(clean(p))
	if err != nil {
		return nil, fmt.Errorf("%w: dataset %s: %v", ErrNotFound, p, err)
	}
	defer ds.Close()
	space := ds.Space()
	defer space.Close()
	udims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil, err
	}
	out := &Dataset{Dims: make([]int, len(udims))}
	for i, d := range udims {
		out.Dims[i] = int(d)
	}
	out.Data = make([]float64, out.Len())
	if err := ds.Read(&out.Data); err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return out, nil
}

// Attr reads an attribute of the dataset at p.
func (h *File) Attr(p, name string) ([]float64, error) {
	ds, err := h.f.OpenDataset(clean(p))
	if err != nil {
		return nil, fmt.Errorf("%w: dataset %s: %v", ErrNotFound, p, err)
	}
	defer ds.Close()
	attr, err := ds.OpenAttribute(name)
	if err != nil {
		return nil, fmt.Errorf("%w: attribute %s of %s: %v", ErrNotFound, name, p, err)
	}
	defer attr.Close()
	space := attr.Space()
	defer space.Close()
	out := make([]float64, space.SimpleExtentNPoints())
	if err := attr.Read(&out, hdf5.T_NATIVE_DOUBLE); err != nil {
		return nil, fmt.Errorf("read attribute %s of %s: %w", name, p, err)
	}
	return out, nil
}

// Children lists the sorted members of the group at p.
func (h *File) Children(p string) ([]string, error) {
	name := clean(p)
	if name == "" {
		name = "/"
	}
	g, err := h.f.OpenGroup(name)
	if err != nil {
		return nil, fmt.Errorf("%w: group %s: %v", ErrNotFound, p, err)
	}
	defer g.Close()
	n, err := g.NumObjects()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := uint(0); i < n; i++ {
		child, err := g.ObjectNameByIndex(i)
		if err != nil {
			return nil, err
		}
		out = append(out, child)
	}
	sort.Strings(out)
	return out, nil
}

// WriteDataset writes a float64 dataset, creating parent groups.
func (h *File) WriteDataset(name string, dims []int, data []float64) error {
	name = clean(name)
	if dir := path.Dir(name); dir != "." {
		if err := h.ensureGroup(dir); err != nil {
			return err
		}
	}
	udims := make([]uint, len(dims))
	for i, d := range dims {
		udims[i] = uint(d)
	}
	space, err := hdf5.CreateSimpleDataspace(udims, nil)
	if err != nil {
		return err
	}
	defer space.Close()
	ds, err := h.f.CreateDataset(name, hdf5.T_NATIVE_DOUBLE, space)
	if err != nil {
		return fmt.Errorf("create dataset %s: %w", name, err)
	}
	defer ds.Close()
	return ds.Write(&data)
}

func (h *File) ensureGroup(p string) error {
	if parent := path.Dir(p); parent != "." {
		if err := h.ensureGroup(parent); err != nil {
			return err
		}
	}
	if g, err := h.f.OpenGroup(p); err == nil {
		return g.Close()
	}
	g, err := h.f.CreateGroup(p)
	if err != nil {
		return fmt.Errorf("create group %s: %w", p, err)
	}
	return g.Close()
}

// Close closes the file.
func (h *File) Close() error { return h.f.Close() }
