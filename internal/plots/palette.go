package plots

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
)

// lineColors returns n distinguishable colours spread around the hue wheel.
// The first colour is black so single-line figures stay monochrome.
func lineColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	colors[0] = color.Black
	for i := 1; i < n; i++ {
		hue := float64(i-1) / float64(n-1)
		r, g, b := hslToRGB(hue, 0.7, 0.45)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}

// ColorMap returns a named colour map. Sequential maps suit positive
// quantities; "diverging" is centred for signed ones.
func ColorMap(name string) (palette.ColorMap, error) {
	switch name {
	case "", "sequential", "kindlmann":
		return moreland.Kindlmann(), nil
	case "blackbody":
		return moreland.ExtendedBlackBody(), nil
	case "diverging", "bluered":
		return moreland.SmoothBlueRed(), nil
	}
	return nil, fmt.Errorf("plots: unknown colour map %q", name)
}

// scaleColorMap sets the range of cm from the finite values, or from
// vmin/vmax when they are not NaN. A symmetric map is centred on zero.
func scaleColorMap(cm palette.ColorMap, values []float64, vmin, vmax float64, symmetric bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if !math.IsNaN(vmin) {
		lo = vmin
	}
	if !math.IsNaN(vmax) {
		hi = vmax
	}
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		lo, hi = 0, 1
	}
	if symmetric {
		m := math.Max(math.Abs(lo), math.Abs(hi))
		lo, hi = -m, m
	}
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	cm.SetMax(hi)
	cm.SetMin(lo)
}

// colorAt maps v through cm, clamping out-of-range values.
func colorAt(cm palette.ColorMap, v float64) color.Color {
	if math.IsNaN(v) {
		return color.Transparent
	}
	v = math.Max(cm.Min(), math.Min(cm.Max(), v))
	c, err := cm.At(v)
	if err != nil {
		return color.Transparent
	}
	return c
}
