package matgraphaux

import (
	"image/color"

	math "github.com/chewxy/math32"
	"github.com/soypat/glgl/math/ms1"
)

// Gradient interpolation in HSV space follows Esme Lamb's (@dedelala)
// color manipulation work presented at Gophercon AU 2024.
// https://github.com/dedelala/disco/tree/main/color

var nanColor = color.RGBA{R: 255, B: 255, A: 255}

// ColorConversionLinearGradient creates a color conversion for scalar material outputs that
// interpolates from c0 at v=0 to c1 at v=1 in HSV space. Values outside [0, 1] are clamped
// and NaN values are magenta.
func ColorConversionLinearGradient(c0, c1 color.Color) func(v float32) color.Color {
	if c0 == color.Black && c1 == color.White {
		return grayscale
	}
	h0, s0, v0 := colorToHSV(c0)
	h1, s1, v1 := colorToHSV(c1)
	return func(v float32) color.Color {
		if math.IsNaN(v) {
			return nanColor
		} else if v <= 0 {
			return c0
		} else if v >= 1 {
			return c1
		}
		r, g, b := hsvToRGB(interpHSV(h0, s0, v0, h1, s1, v1, v))
		c := rgbToC(r, g, b)
		return color.RGBA{R: uint8(c >> 16), G: uint8(c >> 8), B: uint8(c), A: 255}
	}
}

// ColorConversionBands creates a color conversion highlighting n equally spaced iso-lines
// of a scalar output over a black to white gradient. Useful to inspect noise and ramps.
func ColorConversionBands(n int) func(v float32) color.Color {
	bands := float32(max(n, 1))
	return func(v float32) color.Color {
		if math.IsNaN(v) {
			return nanColor
		}
		v = ms1.Clamp(v, 0, 1)
		f := v*bands - math.Floor(v*bands)
		edge := 1 - ms1.SmoothStep(0, 0.08, math.Min(f, 1-f))
		gray := uint8(v * 255)
		return color.RGBA{
			R: uint8(ms1.Interp(float32(gray), 255, edge)),
			G: uint8(ms1.Interp(float32(gray), 64, edge)),
			B: uint8(ms1.Interp(float32(gray), 0, edge)),
			A: 255,
		}
	}
}

func grayscale(v float32) color.Color {
	if math.IsNaN(v) {
		return nanColor
	}
	return color.Gray{Y: uint8(ms1.Clamp(v, 0, 1)*255 + 0.5)}
}

func interpHSV(h0, s0, v0, h1, s1, v1, t float32) (h, s, v float32) {
	switch {
	case h1-h0 > 0.5:
		h0 += 1.0
	case h1-h0 < -0.5:
		h1 += 1.0
	}
	h = ms1.Interp(h0, h1, t)
	if h > 1 {
		h -= 1
	}
	s = ms1.Interp(s0, s1, t)
	v = ms1.Interp(v0, v1, t)
	return h, s, v
}

func colorToHSV(c color.Color) (h, s, v float32) {
	r0, g0, b0, _ := c.RGBA()
	return rgbToHSV(float32(r0>>8)/math.MaxUint8, float32(g0>>8)/math.MaxUint8, float32(b0>>8)/math.MaxUint8)
}

// rgbToC converts r, g and b values in [0, 1] to a 24 bit RGB value stored in the least
// significant bits of a uint32. The inputs are clamped to [0, 1].
func rgbToC(r, g, b float32) (c uint32) {
	return uint32(ms1.Clamp(r, 0, 1)*math.MaxUint8+0.5)<<16 |
		uint32(ms1.Clamp(g, 0, 1)*math.MaxUint8+0.5)<<8 |
		uint32(ms1.Clamp(b, 0, 1)*math.MaxUint8+0.5)
}

// hsvToRGB converts hue, saturation and value in [0, 1] to RGB in [0, 1].
func hsvToRGB(h, s, v float32) (r, g, b float32) {
	var (
		c = s * v
		x = c * (1 - math.Abs(math.Mod(h*6, 2)-1))
		m = v - c
	)
	switch {
	case h <= 1.0/6:
		r, g, b = c, x, 0
	case h <= 2.0/6:
		r, g, b = x, c, 0
	case h <= 3.0/6:
		r, g, b = 0, c, x
	case h <= 4.0/6:
		r, g, b = 0, x, c
	case h <= 5.0/6:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return r + m, g + m, b + m
}

// rgbToHSV converts RGB in [0, 1] to hue, saturation and value in [0, 1].
func rgbToHSV(r, g, b float32) (h, s, v float32) {
	var (
		xmax = max(r, g, b)
		xmin = min(r, g, b)
		c    = xmax - xmin
	)
	v = xmax
	switch {
	case c == 0:
		h = 0
	case v == r:
		h = (g - b) / (c * 6)
	case v == g:
		h = 1.0/3 + (b-r)/(c*6)
	case v == b:
		h = 2.0/3 + (r-g)/(c*6)
	}
	if h < 0 {
		h += 1
	}
	if xmax > 0 {
		s = c / xmax
	}
	return h, s, v
}
