package glrender

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/chewxy/math32"
	xdraw "golang.org/x/image/draw"
)

// ImageDevice is a [Device] allocating CPU images. RGBA targets are [*image.RGBA]
// and depth targets are [*image.Gray16]. The zero value is ready for use.
type ImageDevice struct {
	// MaxPixels limits the area of a single target. Zero means no limit.
	MaxPixels int
	allocated int
}

var errTooLarge = errors.New("render target too large")

// NewTarget implements [Device].
func (dev *ImageDevice) NewTarget(width, height int, format Format) (draw.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	} else if dev.MaxPixels > 0 && width*height > dev.MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", errTooLarge, width, height)
	}
	r := image.Rect(0, 0, width, height)
	var img draw.Image
	switch format {
	case FormatRGBA8:
		img = image.NewRGBA(r)
	case FormatDepth16:
		img = image.NewGray16(r)
	default:
		return nil, fmt.Errorf("unsupported target format %s", format)
	}
	dev.allocated++
	return img, nil
}

// Allocated returns the number of targets allocated by the device.
func (dev *ImageDevice) Allocated() int { return dev.allocated }

// ImageFilter writes the filtered src into dst. dst and src have equal bounds and never alias.
type ImageFilter func(dst draw.Image, src image.Image) error

// ImagePostProcess adapts an [ImageFilter] into a [PostProcess].
type ImagePostProcess struct {
	Name   string
	Order  int16
	Filter ImageFilter
	camera *Camera
}

// Priority implements [PostProcess].
func (ip *ImagePostProcess) Priority() int16 { return ip.Order }

// Process implements [PostProcess].
func (ip *ImagePostProcess) Process(cam *Camera) error {
	if ip.Filter == nil {
		return nil
	}
	err := ip.Filter(cam.PostTarget(), cam.PostSource())
	if err != nil {
		return fmt.Errorf("%s: %w", ip.Name, err)
	}
	cam.FlipPostBuffers()
	return nil
}

// OnAddToCamera implements [CameraAttacher].
func (ip *ImagePostProcess) OnAddToCamera(cam *Camera) { ip.camera = cam }

// OnRemoveFromCamera implements [CameraAttacher].
func (ip *ImagePostProcess) OnRemoveFromCamera(cam *Camera) { ip.camera = nil }

// Camera returns the camera the effect was added to, or nil.
func (ip *ImagePostProcess) Camera() *Camera { return ip.camera }

// BlurFilter returns a filter blurring the image by downsampling it by factor
// with interp and scaling the result back up with bilinear interpolation.
func BlurFilter(factor int, interp xdraw.Interpolator) ImageFilter {
	if interp == nil {
		interp = xdraw.ApproxBiLinear
	}
	return func(dst draw.Image, src image.Image) error {
		if factor < 1 {
			return fmt.Errorf("invalid blur factor %d", factor)
		}
		b := src.Bounds()
		small := image.NewRGBA(image.Rect(0, 0, max(b.Dx()/factor, 1), max(b.Dy()/factor, 1)))
		interp.Scale(small, small.Bounds(), src, b, xdraw.Src, nil)
		xdraw.BiLinear.Scale(dst, dst.Bounds(), small, small.Bounds(), xdraw.Src, nil)
		return nil
	}
}

// GammaFilter returns a filter raising each color channel to the power 1/gamma.
func GammaFilter(gamma float32) ImageFilter {
	if !(gamma > 0) {
		return func(dst draw.Image, src image.Image) error {
			return fmt.Errorf("invalid gamma %v", gamma)
		}
	}
	var lut [256]uint8
	for i := range lut {
		lut[i] = uint8(math32.Pow(float32(i)/255, 1/gamma)*255 + 0.5)
	}
	return func(dst draw.Image, src image.Image) error {
		b := src.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
				dst.Set(x, y, color.NRGBA{R: lut[c.R], G: lut[c.G], B: lut[c.B], A: c.A})
			}
		}
		return nil
	}
}
