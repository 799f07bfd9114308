package glrender

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glgl/math/ms1"
)

// DrawFunc draws the camera's scene into the render targets prepared by a render path.
// Forward paths expect the lit color in targets.Color. Deferred paths expect surface
// albedo in Color, normals encoded as n*0.5+0.5 in Normal and metallic/roughness in MatInfo.
type DrawFunc func(cam *Camera, targets RenderTargets) error

var (
	clearDepth  = image.NewUniform(color.Gray16{Y: 0xffff})
	transparent = image.NewUniform(color.Transparent)
)

// ForwardPath renders the scene in a single pass into its color target which is also the back buffer.
type ForwardPath struct {
	ClearColor color.Color
	cam        *Camera
	dev        Device
	drawScene  DrawFunc
	targets    RenderTargets
}

// NewForwardPath creates a forward render path for cam with targets allocated on dev.
// A nil drawScene leaves the cleared targets untouched.
func NewForwardPath(cam *Camera, dev Device, drawScene DrawFunc) (*ForwardPath, error) {
	if cam == nil {
		return nil, errNilCamera
	}
	fp := &ForwardPath{ClearColor: color.Black, cam: cam, dev: dev, drawScene: drawScene}
	w, h := cam.Size()
	err := fp.Resize(w, h)
	if err != nil {
		return nil, err
	}
	return fp, nil
}

func (fp *ForwardPath) Resize(width, height int) (err error) {
	var t RenderTargets
	t.Color, err = fp.dev.NewTarget(width, height, FormatRGBA8)
	if err != nil {
		return err
	}
	t.Depth, err = fp.dev.NewTarget(width, height, FormatDepth16)
	if err != nil {
		return err
	}
	t.DepthRead, err = fp.dev.NewTarget(width, height, FormatDepth16)
	if err != nil {
		return err
	}
	t.BackBuffer = t.Color
	fp.targets = t
	return nil
}

func (fp *ForwardPath) PreRender() error {
	clearTarget(fp.targets.Color, image.NewUniform(fp.ClearColor))
	clearTarget(fp.targets.Depth, clearDepth)
	return nil
}

func (fp *ForwardPath) Render() error {
	if fp.drawScene == nil {
		return nil
	}
	return fp.drawScene(fp.cam, fp.targets)
}

func (fp *ForwardPath) PostRender() error {
	copyImage(fp.targets.DepthRead, fp.targets.Depth)
	return nil
}

func (fp *ForwardPath) Targets() RenderTargets { return fp.targets }

// DeferredPath renders surface attributes into a geometry buffer and shades
// them with a single directional light into the back buffer.
type DeferredPath struct {
	ClearColor color.Color
	// LightDir points from the surface towards the light.
	LightDir ms3.Vec
	// Ambient is the fraction of albedo visible in unlit areas, in [0, 1].
	Ambient   float32
	cam       *Camera
	dev       Device
	drawScene DrawFunc
	targets   RenderTargets
}

// NewDeferredPath creates a deferred render path for cam with targets allocated on dev.
func NewDeferredPath(cam *Camera, dev Device, drawScene DrawFunc) (*DeferredPath, error) {
	if cam == nil {
		return nil, errNilCamera
	}
	dp := &DeferredPath{
		ClearColor: color.Black,
		LightDir:   ms3.Vec{X: 0.3, Y: 0.5, Z: 1},
		Ambient:    0.2,
		cam:        cam,
		dev:        dev,
		drawScene:  drawScene,
	}
	w, h := cam.Size()
	err := dp.Resize(w, h)
	if err != nil {
		return nil, err
	}
	return dp, nil
}

func (dp *DeferredPath) Resize(width, height int) (err error) {
	var t RenderTargets
	for _, target := range []struct {
		dst    *draw.Image
		format Format
	}{
		{&t.BackBuffer, FormatRGBA8},
		{&t.Color, FormatRGBA8},
		{&t.Normal, FormatRGBA8},
		{&t.MatInfo, FormatRGBA8},
		{&t.Depth, FormatDepth16},
		{&t.DepthRead, FormatDepth16},
	} {
		*target.dst, err = dp.dev.NewTarget(width, height, target.format)
		if err != nil {
			return err
		}
	}
	dp.targets = t
	return nil
}

func (dp *DeferredPath) PreRender() error {
	clearTarget(dp.targets.BackBuffer, image.NewUniform(dp.ClearColor))
	clearTarget(dp.targets.Color, transparent)
	clearTarget(dp.targets.Normal, transparent)
	clearTarget(dp.targets.MatInfo, transparent)
	clearTarget(dp.targets.Depth, clearDepth)
	return nil
}

func (dp *DeferredPath) Render() error {
	if dp.drawScene == nil {
		return nil
	}
	return dp.drawScene(dp.cam, dp.targets)
}

// PostRender shades the geometry buffer into the back buffer. Pixels no
// surface was drawn to, those with zero normal alpha, keep the clear color.
func (dp *DeferredPath) PostRender() error {
	t := dp.targets
	copyImage(t.DepthRead, t.Depth)
	light := ms3.Unit(dp.LightDir)
	ambient := ms1.Clamp(dp.Ambient, 0, 1)
	bounds := t.BackBuffer.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			nc := color.NRGBAModel.Convert(t.Normal.At(x, y)).(color.NRGBA)
			if nc.A == 0 {
				continue
			}
			n := ms3.Unit(ms3.Vec{X: decodeUnorm(nc.R), Y: decodeUnorm(nc.G), Z: decodeUnorm(nc.B)})
			lambert := math32.Max(ms3.Dot(n, light), 0)
			k := ambient + (1-ambient)*lambert
			albedo := color.NRGBAModel.Convert(t.Color.At(x, y)).(color.NRGBA)
			t.BackBuffer.Set(x, y, color.NRGBA{
				R: scaleChannel(albedo.R, k),
				G: scaleChannel(albedo.G, k),
				B: scaleChannel(albedo.B, k),
				A: albedo.A,
			})
		}
	}
	return nil
}

func (dp *DeferredPath) Targets() RenderTargets { return dp.targets }

func decodeUnorm(c uint8) float32 { return float32(c)/255*2 - 1 }

func scaleChannel(c uint8, k float32) uint8 {
	return uint8(ms1.Clamp(float32(c)*k+0.5, 0, 255))
}

func clearTarget(dst draw.Image, src image.Image) {
	if dst == nil {
		return
	}
	draw.Draw(dst, dst.Bounds(), src, image.Point{}, draw.Src)
}
