// Package prof1d reads the profile1d.dat files written next to MUSIC runs.
//
// The first line holds parameter names and the second their values. The
// rest of the file is a whitespace-separated table with a header row.
package prof1d

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Candidate file names looked up when Find is given a directory.
var candidates = []string{"profile1d.dat", "profile1d_scalars.dat"}

var (
	// ErrNotFound is returned when no profile file exists in a directory.
	ErrNotFound = errors.New("prof1d: no profile1d file found")
	// ErrAmbiguous is returned when a directory holds several candidates.
	ErrAmbiguous = errors.New("prof1d: several profile1d files found")
	// ErrNoColumn is returned for unknown column names.
	ErrNoColumn = errors.New("prof1d: no such column")
	// ErrNoParam is returned for unknown parameter names.
	ErrNoParam = errors.New("prof1d: no such parameter")
)

// Prof1d is a parsed profile file.
type Prof1d struct {
	Path    string
	params  map[string]float64
	order   []string
	columns map[string][]float64
	header  []string
}

// Find resolves hint to a profile file. hint is either the file itself or
// a directory holding exactly one candidate.
func Find(hint string) (string, error) {
	st, err := os.Stat(hint)
	if err != nil {
		return "", err
	}
	if !st.IsDir() {
		return hint, nil
	}
	var found string
	for _, name := range candidates {
		p := filepath.Join(hint, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if found != "" {
			return "", fmt.Errorf("%w: %s and %s", ErrAmbiguous, found, p)
		}
		found = p
	}
	if found == "" {
		return "", fmt.Errorf("%w in %s", ErrNotFound, hint)
	}
	return found, nil
}

// Load finds and parses the profile designated by hint.
func Load(hint string) (*Prof1d, error) {
	path, err := Find(hint)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.Path = path
	return p, nil
}

// Parse reads a profile from r.
func Parse(r io.Reader) (*Prof1d, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	next := func() ([]string, bool) {
		for sc.Scan() {
			if f := strings.Fields(sc.Text()); len(f) > 0 {
				return f, true
			}
		}
		return nil, false
	}

	names, ok := next()
	if !ok {
		return nil, errors.New("missing parameter names")
	}
	values, ok := next()
	if !ok {
		return nil, errors.New("missing parameter values")
	}
	p := &Prof1d{params: make(map[string]float64), columns: make(map[string][]float64)}
	for i, name := range names {
		if i >= len(values) {
			break
		}
		v, err := strconv.ParseFloat(values[i], 64)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		p.params[name] = v
		p.order = append(p.order, name)
	}

	header, ok := next()
	if !ok {
		return p, nil
	}
	p.header = header
	line := 3
	for {
		row, ok := next()
		if !ok {
			break
		}
		line++
		if len(row) != len(header) {
			return nil, fmt.Errorf("row %d: %d values for %d columns", line, len(row), len(header))
		}
		for i, s := range row {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d, column %s: %w", line, header[i], err)
			}
			p.columns[header[i]] = append(p.columns[header[i]], v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return p, nil
}

// Param returns the named scalar parameter.
func (p *Prof1d) Param(name string) (float64, error) {
	v, ok := p.params[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoParam, name)
	}
	return v, nil
}

// Params returns parameter names in file order.
func (p *Prof1d) Params() []string {
	return append([]string(nil), p.order...)
}

// Columns returns column names in file order.
func (p *Prof1d) Columns() []string {
	return append([]string(nil), p.header...)
}

// Column returns a copy of the named column.
func (p *Prof1d) Column(name string) ([]float64, error) {
	c, ok := p.columns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoColumn, name)
	}
	return append([]float64(nil), c...), nil
}
