//go:build !hdf5
// +build !hdf5

package h5

// Open is a stub when HDF5 support is disabled.
// Build with -tags=hdf5 to read HDF5 files.
func Open(path string) (Reader, error) {
	return nil, ErrUnsupported
}

// Create is a stub when HDF5 support is disabled.
func Create(path string) (Writer, error) {
	return nil, ErrUnsupported
}
