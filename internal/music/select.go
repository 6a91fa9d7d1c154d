package music

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadSelection is returned for malformed dump selections.
var ErrBadSelection = errors.New("music: bad dump selection")

// Item is one element of a dump selection: a single index or a slice.
type Item struct {
	Index int
	Slice bool
	Start *int
	Stop  *int
	Step  *int
}

// ParseSelection parses a comma-separated list of indices and
// start:stop:step slices, e.g. "0:10:2,-1". Negative values count from the
// end and omitted slice bounds default as for Python slices. An empty
// string selects every dump.
func ParseSelection(sel string) ([]Item, error) {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		return []Item{{Slice: true}}, nil
	}
	var items []Item
	for _, raw := range strings.Split(sel, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil, fmt.Errorf("%w: empty item in %q", ErrBadSelection, sel)
		}
		if !strings.Contains(raw, ":") {
			i, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrBadSelection, raw)
			}
			items = append(items, Item{Index: i})
			continue
		}
		parts := strings.Split(raw, ":")
		if len(parts) > 3 {
			return nil, fmt.Errorf("%w: %q", ErrBadSelection, raw)
		}
		it := Item{Slice: true}
		bounds := []**int{&it.Start, &it.Stop, &it.Step}
		for k, p := range parts {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			v, err := strconv.Atoi(p)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrBadSelection, raw)
			}
			*bounds[k] = &v
		}
		if it.Step != nil && *it.Step == 0 {
			return nil, fmt.Errorf("%w: zero step in %q", ErrBadSelection, raw)
		}
		items = append(items, it)
	}
	return items, nil
}

// Bounds resolves a slice against a sequence of length n the way Python's
// slice.indices does.
func (it Item) Bounds(n int) (start, stop, step int) {
	step = 1
	if it.Step != nil {
		step = *it.Step
	}
	clamp := func(v *int, def, lo, hi int) int {
		if v == nil {
			return def
		}
		x := *v
		if x < 0 {
			x += n
		}
		if x < lo {
			return lo
		}
		if x > hi {
			return hi
		}
		return x
	}
	if step > 0 {
		return clamp(it.Start, 0, 0, n), clamp(it.Stop, n, 0, n), step
	}
	return clamp(it.Start, n-1, -1, n-1), clamp(it.Stop, -1, -1, n-1), step
}

func (it Item) indices(n int) []int {
	start, stop, step := it.Bounds(n)
	var out []int
	for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
		out = append(out, i)
	}
	return out
}

// Select resolves sel to existing dump indices. Items are resolved in
// order; indices whose dump is missing are skipped and duplicates are
// kept.
func (r *Run) Select(sel string) ([]int, error) {
	items, err := ParseSelection(sel)
	if err != nil {
		return nil, err
	}
	n, err := r.Len()
	if err != nil {
		return nil, err
	}
	var out []int
	for _, it := range items {
		if !it.Slice {
			i := it.Index
			if i < 0 {
				i += n
			}
			if r.exists(i, n) {
				out = append(out, i)
			}
			continue
		}
		for _, i := range it.indices(n) {
			if r.exists(i, n) {
				out = append(out, i)
			}
		}
	}
	return out, nil
}
