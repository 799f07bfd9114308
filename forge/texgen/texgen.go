// Package texgen generates procedural images for use as material textures:
// checkerboards, gradients and text labels rasterized from TrueType fonts.
package texgen

import (
	"errors"
	"image"
	"image/color"

	"github.com/soypat/glgl/math/ms1"
	xdraw "golang.org/x/image/draw"
)

var errBadSize = errors.New("texture dimensions must be positive")

// Checker returns a w by h checkerboard with cells squares along the shortest side.
// The top left cell is c0.
func Checker(w, h, cells int, c0, c1 color.Color) (*image.NRGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, errBadSize
	} else if cells <= 0 {
		return nil, errors.New("checker requires at least one cell")
	}
	side := max(min(w, h)/cells, 1)
	n0 := color.NRGBAModel.Convert(c0).(color.NRGBA)
	n1 := color.NRGBAModel.Convert(c1).(color.NRGBA)
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := n0
			if (x/side+y/side)%2 == 1 {
				c = n1
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img, nil
}

// Gradient returns a w by h image interpolating linearly from c0 on the left edge
// to c1 on the right edge in non-premultiplied RGBA space.
func Gradient(w, h int, c0, c1 color.Color) (*image.NRGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, errBadSize
	}
	n0 := color.NRGBAModel.Convert(c0).(color.NRGBA)
	n1 := color.NRGBAModel.Convert(c1).(color.NRGBA)
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		t := (float32(x) + 0.5) / float32(w)
		c := color.NRGBA{
			R: lerp8(n0.R, n1.R, t),
			G: lerp8(n0.G, n1.G, t),
			B: lerp8(n0.B, n1.B, t),
			A: lerp8(n0.A, n1.A, t),
		}
		for y := 0; y < h; y++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img, nil
}

// Resize scales src to w by h with bilinear filtering.
func Resize(src image.Image, w, h int) (*image.NRGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, errBadSize
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst, nil
}

func lerp8(a, b uint8, t float32) uint8 {
	return uint8(ms1.Interp(float32(a), float32(b), t) + 0.5)
}
