// Package spectrum computes internal gravity wave power spectra: a
// spherical harmonics transform over colatitude followed by a windowed
// Fourier transform in time.
package spectrum

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"strconv"
	"strings"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/mutools/internal/fields"
	"github.com/banshee-data/mutools/internal/grid"
	"github.com/banshee-data/mutools/internal/h5"
	"github.com/banshee-data/mutools/internal/music"
)

// ErrNonUniform is returned when snapshot times are not evenly spaced.
var ErrNonUniform = errors.New("spectrum: non-uniform time sampling")

// Default tolerances.
const (
	DefaultSpacingTol = 0.1
	DefaultSHTTol     = 0.15
)

// PowerSpectrum is indexed [radius][ell][frequency].
type PowerSpectrum struct {
	Radius    []float64
	Ells      []int
	Frequency []float64
	Power     [][][]float64
}

// SamplingPeriod returns the mean spacing of times and checks that every
// spacing is within tol (relative) of it.
func SamplingPeriod(times []float64, tol float64) (float64, error) {
	if len(times) < 2 {
		return 0, fmt.Errorf("%w: %d samples", ErrNonUniform, len(times))
	}
	diffs := make([]float64, len(times)-1)
	for i := range diffs {
		diffs[i] = times[i+1] - times[i]
	}
	dt := floats.Sum(diffs) / float64(len(diffs))
	if dt <= 0 {
		return 0, fmt.Errorf("%w: mean spacing %g", ErrNonUniform, dt)
	}
	for i, d := range diffs {
		if math.Abs(d-dt) > tol*dt {
			return 0, fmt.Errorf("%w: spacing %g at sample %d, mean %g", ErrNonUniform, d, i, dt)
		}
	}
	return dt, nil
}

// Power returns the one-sided power |c_k/n|^2 of the Blackman-windowed
// series and the matching frequencies for sampling period dt.
func Power(series []float64, dt float64) (power, freq []float64) {
	n := len(series)
	seq := window.Blackman(append([]float64(nil), series...))
	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, seq)
	power = make([]float64, len(coeffs))
	freq = make([]float64, len(coeffs))
	for k, c := range coeffs {
		a := cmplx.Abs(c) / float64(n)
		power[k] = a * a
		freq[k] = fft.Freq(k) / dt
	}
	return power, freq
}

// Compute builds the spectrum from transformed snapshots. coeffs is
// indexed [time][radius][ell].
func Compute(times []float64, coeffs [][][]float64, radius []float64, ells []int, spacingTol float64) (*PowerSpectrum, error) {
	if len(coeffs) != len(times) {
		return nil, fmt.Errorf("%w: %d snapshots for %d times", fields.ErrShape, len(coeffs), len(times))
	}
	dt, err := SamplingPeriod(times, spacingTol)
	if err != nil {
		return nil, err
	}
	nr, nl := len(radius), len(ells)
	ps := &PowerSpectrum{Radius: radius, Ells: ells, Power: make([][][]float64, nr)}
	series := make([]float64, len(times))
	for i := 0; i < nr; i++ {
		ps.Power[i] = make([][]float64, nl)
		for k := 0; k < nl; k++ {
			for t := range times {
				series[t] = coeffs[t][i][k]
			}
			p, f := Power(series, dt)
			ps.Power[i][k] = p
			if ps.Frequency == nil {
				ps.Frequency = f
			}
		}
	}
	return ps, nil
}

// Options tunes FromRun.
type Options struct {
	SpacingTol float64
	SHTTol     float64
}

func (o Options) withDefaults() Options {
	if o.SpacingTol <= 0 {
		o.SpacingTol = DefaultSpacingTol
	}
	if o.SHTTol <= 0 {
		o.SHTTol = DefaultSHTTol
	}
	return o
}

// FromRun computes the spectrum of field over dumps of a spherical run.
func FromRun(ctx context.Context, run *music.Run, field string, dumps []int, ells []int, opts Options) (*PowerSpectrum, error) {
	opts = opts.withDefaults()
	if run.Geometry != grid.Spherical {
		return nil, errors.New("spectrum: spherical harmonics need a spherical run")
	}
	if len(dumps) < 2 {
		return nil, fmt.Errorf("%w: %d dumps selected", ErrNonUniform, len(dumps))
	}
	first, err := run.Snap(dumps[0])
	if err != nil {
		return nil, err
	}
	sht, err := NewSHT(first.Grid().Theta(), ells, opts.SHTTol)
	if err != nil {
		return nil, err
	}

	pos := make(map[int][]int, len(dumps))
	for k, d := range dumps {
		pos[d] = append(pos[d], k)
	}
	times := make([]float64, len(dumps))
	coeffs := make([][][]float64, len(dumps))
	var mu sync.Mutex
	seen := make(map[int]bool, len(dumps))
	err = run.ForEach(ctx, dumps, func(_ context.Context, s *music.Snap) error {
		mu.Lock()
		done := seen[s.IDump]
		seen[s.IDump] = true
		mu.Unlock()
		if done {
			return nil
		}
		f, err := fields.Get(s, field)
		if err != nil {
			return fmt.Errorf("dump %d: %w", s.IDump, err)
		}
		c, err := sht.Transform(f)
		if err != nil {
			return fmt.Errorf("dump %d: %w", s.IDump, err)
		}
		for _, k := range pos[s.IDump] {
			times[k] = s.Time()
			coeffs[k] = c
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return Compute(times, coeffs, first.Grid().R().CellCenters(), sht.Ells(), opts.SpacingTol)
}

// Write stores the spectrum as the datasets spectrum, radius, ell and
// frequency.
func (ps *PowerSpectrum) Write(w h5.Writer) error {
	nr, nl, nf := len(ps.Radius), len(ps.Ells), len(ps.Frequency)
	flat := make([]float64, 0, nr*nl*nf)
	for _, byEll := range ps.Power {
		for _, p := range byEll {
			flat = append(flat, p...)
		}
	}
	ells := make([]float64, nl)
	for i, l := range ps.Ells {
		ells[i] = float64(l)
	}
	for _, ds := range []struct {
		name string
		dims []int
		data []float64
	}{
		{"spectrum", []int{nr, nl, nf}, flat},
		{"radius", []int{nr}, ps.Radius},
		{"ell", []int{nl}, ells},
		{"frequency", []int{nf}, ps.Frequency},
	} {
		if err := w.WriteDataset(ds.name, ds.dims, ds.data); err != nil {
			return fmt.Errorf("write %s: %w", ds.name, err)
		}
	}
	return nil
}

// OutputName is the conventional file name of a spectrum.
func OutputName(field string, ells []int, start, stop, step int) string {
	parts := make([]string, len(ells))
	for i, l := range ells {
		parts[i] = strconv.Itoa(l)
	}
	return fmt.Sprintf("igw_%s_ell_%s_dumps_%d:%d:%d.h5", field, strings.Join(parts, "_"), start, stop, step)
}
