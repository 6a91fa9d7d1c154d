package postfile

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// RprofArea is an envelope around a radial profile.
type RprofArea struct {
	Name   string
	Degree int
	Bottom []float64
	Top    []float64
	Radius []float64
}

// Tseries is a sequence of checkpoints of the same post file.
type Tseries struct {
	Checkpoints []Checkpoint
}

// stack reads the profile of every checkpoint, transposed to one column
// per radius.
func (t Tseries) stack(name string, degree int) (radius []float64, cols [][]float64, err error) {
	if len(t.Checkpoints) == 0 {
		return nil, nil, errors.New("postfile: no checkpoint")
	}
	for k, chk := range t.Checkpoints {
		rp, err := chk.Rprof(name, degree)
		if err != nil {
			return nil, nil, fmt.Errorf("checkpoint %d: %w", chk.IDump, err)
		}
		if k == 0 {
			radius = rp.Radius
			cols = make([][]float64, len(rp.Values))
		} else if len(rp.Values) != len(cols) {
			return nil, nil, fmt.Errorf("checkpoint %d: %d points, want %d", chk.IDump, len(rp.Values), len(cols))
		}
		for i, v := range rp.Values {
			cols[i] = append(cols[i], v)
		}
	}
	return radius, cols, nil
}

func reduceCols(cols [][]float64, fn func(xs []float64) float64) []float64 {
	out := make([]float64, len(cols))
	for i, c := range cols {
		xs := nanFilter(c)
		if len(xs) == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = fn(xs)
	}
	return out
}

// Rprof is the time average of the profile, ignoring NaNs.
func (t Tseries) Rprof(name string, degree int) (Rprof, error) {
	radius, cols, err := t.stack(name, degree)
	if err != nil {
		return Rprof{}, err
	}
	mean := reduceCols(cols, func(xs []float64) float64 { return stat.Mean(xs, nil) })
	return Rprof{Name: name, Degree: degree, Values: mean, Radius: radius}, nil
}

// RprofStd is the time average plus and minus the population standard
// deviation, ignoring NaNs.
func (t Tseries) RprofStd(name string, degree int) (RprofArea, error) {
	radius, cols, err := t.stack(name, degree)
	if err != nil {
		return RprofArea{}, err
	}
	area := RprofArea{Name: fmt.Sprintf("std(%s)", name), Degree: degree, Radius: radius,
		Bottom: make([]float64, len(cols)), Top: make([]float64, len(cols))}
	for i, c := range cols {
		xs := nanFilter(c)
		if len(xs) == 0 {
			area.Bottom[i], area.Top[i] = math.NaN(), math.NaN()
			continue
		}
		mean, std := stat.PopMeanStdDev(xs, nil)
		area.Bottom[i], area.Top[i] = mean-std, mean+std
	}
	return area, nil
}

// RprofRange is the envelope of the profile over time, ignoring NaNs.
func (t Tseries) RprofRange(name string, degree int) (RprofArea, error) {
	radius, cols, err := t.stack(name, degree)
	if err != nil {
		return RprofArea{}, err
	}
	return RprofArea{
		Name:   fmt.Sprintf("range(%s)", name),
		Degree: degree,
		Radius: radius,
		Bottom: reduceCols(cols, floats.Min),
		Top:    reduceCols(cols, floats.Max),
	}, nil
}

// TimeSeries is a named scalar sampled at checkpoint times.
type TimeSeries struct {
	Name   string
	Time   []float64
	Values []float64
}

// LMax is the series over all checkpoints of the maximal penetration
// depth for criteria ("conv" or "ke"), measured from the preset
// Schwarzschild boundary.
func (f *File) LMax(criteria string) (TimeSeries, error) {
	chks, err := f.Checkpoints()
	if err != nil {
		return TimeSeries{}, err
	}
	ts := TimeSeries{Name: "lmax_" + criteria}
	for _, chk := range chks {
		rs, err := chk.scalar("pp_parameters", "r_schwarz_preset")
		if err != nil {
			return TimeSeries{}, err
		}
		t, err := chk.Time()
		if err != nil {
			return TimeSeries{}, err
		}
		depth, err := chk.vector("Contour_field", "pen_depth_"+criteria)
		if err != nil {
			return TimeSeries{}, err
		}
		if len(depth) == 0 {
			return TimeSeries{}, fmt.Errorf("checkpoint %d: empty pen_depth_%s", chk.IDump, criteria)
		}
		ts.Time = append(ts.Time, t)
		ts.Values = append(ts.Values, floats.Max(depth)-rs)
	}
	return ts, nil
}
