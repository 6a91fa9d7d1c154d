package music

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/mutools/internal/cache"
	"github.com/banshee-data/mutools/internal/fields"
	"github.com/banshee-data/mutools/internal/grid"
	"github.com/banshee-data/mutools/internal/monitoring"
)

// Series is a quantity sampled once per dump.
type Series struct {
	Dumps  []int
	Time   []float64
	Values []float64
}

// Profiles holds one radial profile per dump on a common grid.
type Profiles struct {
	Dumps  []int
	Time   []float64
	Grid   grid.Grid2D
	Values [][]float64
}

// Mean averages the profiles over time.
func (p Profiles) Mean() ([]float64, error) {
	return fields.MeanProfile(p.Values)
}

// reduction computes per-dump values of one kind.
type reduction struct {
	kind string
	fn   func(s *Snap) ([]float64, error)
}

type reduced struct {
	time   float64
	values []float64
	grid   grid.Grid2D
	read   bool
}

// ForEach reads the given dumps with at most Workers goroutines and calls
// fn on each snapshot. fn must be safe for concurrent use.
func (r *Run) ForEach(ctx context.Context, dumps []int, fn func(ctx context.Context, s *Snap) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, idump := range dumps {
		idump := idump
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s, err := r.Snap(idump)
			if err != nil {
				return err
			}
			return fn(ctx, s)
		})
	}
	return g.Wait()
}

// reduce applies red to each dump, going through the cache when one is
// attached. Cached series entries hold the dump time as their first value.
func (r *Run) reduce(ctx context.Context, name string, red reduction, dumps []int) ([]reduced, error) {
	if len(dumps) == 0 {
		return nil, fmt.Errorf("%w: empty selection", ErrNoDump)
	}
	start := r.clock.Now()
	out := make([]reduced, len(dumps))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for k, idump := range dumps {
		k, idump := k, idump
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := r.reduceOne(name, red, idump)
			if err != nil {
				return fmt.Errorf("dump %d: %w", idump, err)
			}
			out[k] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	hits := 0
	for _, o := range out {
		if !o.read {
			hits++
		}
	}
	monitoring.Debugf("%s %s over %d dumps (%d cached) in %s", red.kind, name, len(dumps), hits, r.clock.Since(start).Round(time.Millisecond))
	return out, nil
}

func (r *Run) reduceOne(name string, red reduction, idump int) (reduced, error) {
	var (
		key   cache.Key
		stamp cache.Stamp
	)
	if r.cache != nil {
		st, err := os.Stat(r.DumpPath(idump))
		if err != nil {
			return reduced{}, fmt.Errorf("%w: %v", ErrNoDump, err)
		}
		stamp = cache.Stamp{MTime: st.ModTime(), Layout: r.Layout()}
		key = cache.Key{RunID: r.runID, IDump: idump, Field: name, Kind: red.kind}
		vals, ok, err := r.cache.Get(key, stamp)
		if err != nil {
			monitoring.Logf("cache read failed, recomputing: %v", err)
		} else if ok && len(vals) > 0 {
			return reduced{time: vals[0], values: vals[1:]}, nil
		}
	}

	s, err := r.Snap(idump)
	if err != nil {
		return reduced{}, err
	}
	vals, err := red.fn(s)
	if err != nil {
		return reduced{}, err
	}
	res := reduced{time: s.Time(), values: vals, grid: s.Grid(), read: true}
	if r.cache != nil {
		stored := append([]float64{res.time}, vals...)
		if err := r.cache.Put(key, stamp, stored); err != nil {
			monitoring.Logf("cache write failed: %v", err)
		}
	}
	return res, nil
}

// Tseries returns the volume average of name for each dump.
func (r *Run) Tseries(ctx context.Context, name string, dumps []int) (Series, error) {
	red := reduction{kind: cache.KindSeries, fn: func(s *Snap) ([]float64, error) {
		v, err := fields.SeriesValue(s, name)
		return []float64{v}, err
	}}
	res, err := r.reduce(ctx, name, red, dumps)
	if err != nil {
		return Series{}, err
	}
	ts := Series{Dumps: append([]int(nil), dumps...)}
	for _, o := range res {
		if len(o.values) != 1 {
			return Series{}, errors.New("music: corrupt series value")
		}
		ts.Time = append(ts.Time, o.time)
		ts.Values = append(ts.Values, o.values[0])
	}
	return ts, nil
}

// Profiles returns the horizontally averaged profile of name for each
// dump.
func (r *Run) Profiles(ctx context.Context, name string, dumps []int) (Profiles, error) {
	red := reduction{kind: cache.KindProfile, fn: func(s *Snap) ([]float64, error) {
		return fields.Profile(s, name)
	}}
	res, err := r.reduce(ctx, name, red, dumps)
	if err != nil {
		return Profiles{}, err
	}
	g, err := r.grid(res, dumps)
	if err != nil {
		return Profiles{}, err
	}
	p := Profiles{Dumps: append([]int(nil), dumps...), Grid: g}
	n1, _ := g.Shape()
	for k, o := range res {
		if len(o.values) != n1 {
			return Profiles{}, fmt.Errorf("%w: dump %d profile has %d points, grid has %d", fields.ErrShape, dumps[k], len(o.values), n1)
		}
		p.Time = append(p.Time, o.time)
		p.Values = append(p.Values, o.values)
	}
	return p, nil
}

// grid returns the grid of the run, reading one dump when every reduction
// came from the cache.
func (r *Run) grid(res []reduced, dumps []int) (grid.Grid2D, error) {
	for _, o := range res {
		if o.read {
			return o.grid, nil
		}
	}
	s, err := r.Snap(dumps[0])
	if err != nil {
		return grid.Grid2D{}, err
	}
	return s.Grid(), nil
}

// RprofAvg returns the time-averaged profile of name and the radial cell
// centres it is defined on.
func (r *Run) RprofAvg(ctx context.Context, name string, dumps []int) (radius, prof []float64, err error) {
	p, err := r.Profiles(ctx, name, dumps)
	if err != nil {
		return nil, nil, err
	}
	prof, err = p.Mean()
	if err != nil {
		return nil, nil, err
	}
	return p.Grid.X1.CellCenters(), prof, nil
}

// TauConv returns the convective time scale: the time average of the sum
// of dr/vrms over cells below the core radius read from profile1d.
func (r *Run) TauConv(ctx context.Context, dumps []int) (float64, error) {
	p1d, err := r.Prof1d()
	if err != nil {
		return 0, err
	}
	rcore, err := p1d.Param("rcore")
	if err != nil {
		return 0, err
	}
	p, err := r.Profiles(ctx, "vrms", dumps)
	if err != nil {
		return 0, err
	}
	centers := p.Grid.X1.CellCenters()
	widths := p.Grid.X1.CellWidths()
	var total float64
	for _, vrms := range p.Values {
		var sum float64
		for i, rc := range centers {
			if rc < rcore {
				sum += widths[i] / vrms[i]
			}
		}
		total += sum
	}
	return total / float64(len(p.Values)), nil
}
