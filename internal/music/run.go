// Package music gives access to the dumps of a MUSIC run described by its
// parameter file.
package music

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/banshee-data/mutools/internal/cache"
	"github.com/banshee-data/mutools/internal/dump"
	"github.com/banshee-data/mutools/internal/grid"
	"github.com/banshee-data/mutools/internal/namelist"
	"github.com/banshee-data/mutools/internal/prof1d"
	"github.com/banshee-data/mutools/internal/timeutil"
)

// ErrNoDump is returned for dump indices that are out of range or whose
// file does not exist.
var ErrNoDump = errors.New("music: no such dump")

const dumpExt = ".music"

// Run is a MUSIC run.
type Run struct {
	Parfile  string
	Params   *namelist.Namelist
	Prefix   string
	Info     dump.Info
	Geometry grid.Geometry
	BCs      [2]dump.BC

	cache   *cache.Cache
	runID   string
	workers int
	clock   timeutil.Clock
}

// Option configures Open.
type Option func(*Run)

// WithCache memoises reductions in c.
func WithCache(c *cache.Cache) Option {
	return func(r *Run) { r.cache = c }
}

// WithWorkers bounds the number of dumps reduced concurrently.
func WithWorkers(n int) Option {
	return func(r *Run) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithClock sets the clock used to time reductions.
func WithClock(c timeutil.Clock) Option {
	return func(r *Run) { r.clock = c }
}

// Open reads the parameter file of a run.
func Open(parfile string, opts ...Option) (*Run, error) {
	abs, err := filepath.Abs(parfile)
	if err != nil {
		return nil, err
	}
	nml, err := namelist.ParseFile(abs)
	if err != nil {
		return nil, err
	}
	prefix, err := nml.String("io", "dataoutput")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", abs, err)
	}
	r := &Run{
		Parfile: abs,
		Params:  nml,
		Prefix:  prefix,
		Info:    dump.Info{NumScalars: nml.IntOr("scalars", "nscalars", 0)},
		BCs:     [2]dump.BC{firstBC(nml, "bc1"), firstBC(nml, "bc3")},
		workers: runtime.NumCPU(),
		clock:   timeutil.SystemClock{},
	}
	if nml.BoolOr("geometry", "cartesian", false) {
		r.Geometry = grid.Cartesian
	}
	for _, o := range opts {
		o(r)
	}
	if r.cache != nil {
		if r.runID, err = r.cache.RunID(abs); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func firstBC(nml *namelist.Namelist, key string) dump.BC {
	bcs, err := nml.Strings("boundaryconditions", key)
	if err != nil || len(bcs) == 0 {
		return dump.Reflective
	}
	return dump.ParseBC(bcs[0])
}

// Layout summarises the parameters that change how dumps are read:
// geometry, boundary conditions and number of scalars.
func (r *Run) Layout() string {
	return fmt.Sprintf("%s %s/%s %d", r.Geometry, r.BCs[0], r.BCs[1], r.Info.NumScalars)
}

// Dir is the directory holding the parameter file.
func (r *Run) Dir() string { return filepath.Dir(r.Parfile) }

// DumpPath returns the file name of dump idump.
func (r *Run) DumpPath(idump int) string {
	return filepath.Join(r.Dir(), fmt.Sprintf("%s%08d%s", r.Prefix, idump, dumpExt))
}

// DumpFiles lists the existing dump files of the run, sorted by name.
func (r *Run) DumpFiles() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(r.Dir(), globEscape(r.Prefix)+"*"+dumpExt))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// Len returns one past the index of the last dump, or zero when the run
// has none. Missing intermediate dumps are counted.
func (r *Run) Len() (int, error) {
	files, err := r.DumpFiles()
	if err != nil || len(files) == 0 {
		return 0, err
	}
	last := strings.TrimSuffix(filepath.Base(files[len(files)-1]), dumpExt)
	if len(last) < 8 {
		return 0, fmt.Errorf("music: cannot number dump %s", last)
	}
	n, err := strconv.Atoi(last[len(last)-8:])
	if err != nil {
		return 0, fmt.Errorf("music: cannot number dump %s: %w", last, err)
	}
	return n + 1, nil
}

// Snap is one dump of a run.
type Snap struct {
	*dump.Dump
	Run   *Run
	IDump int
}

// Snap reads dump idump. Negative indices count from the end.
func (r *Run) Snap(idump int) (*Snap, error) {
	n, err := r.Len()
	if err != nil {
		return nil, err
	}
	i := idump
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return nil, fmt.Errorf("%w: index %d out of %d", ErrNoDump, idump, n)
	}
	path := r.DumpPath(i)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoDump, path)
	}
	d, err := dump.ReadFile(path, r.Info, r.Geometry, r.BCs)
	if err != nil {
		return nil, err
	}
	return &Snap{Dump: d, Run: r, IDump: i}, nil
}

// Prof1d loads the profile1d file of the run directory.
func (r *Run) Prof1d() (*prof1d.Prof1d, error) {
	return prof1d.Load(r.Dir())
}

// exists reports whether dump i is in range and on disk.
func (r *Run) exists(i, n int) bool {
	if i < 0 || i >= n {
		return false
	}
	_, err := os.Stat(r.DumpPath(i))
	return err == nil
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`)
	return r.Replace(s)
}
