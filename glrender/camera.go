package glrender

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"slices"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/matgraph/glbuild"
)

// PostProcess is an effect applied to a single camera's rendered image.
// Process reads [Camera.PostSource], writes [Camera.PostTarget] and calls
// [Camera.FlipPostBuffers] so the next effect reads its result.
type PostProcess interface {
	Priority() int16
	Process(cam *Camera) error
}

// CameraAttacher is implemented by post processes that must be notified when
// added to or removed from a camera.
type CameraAttacher interface {
	OnAddToCamera(cam *Camera)
	OnRemoveFromCamera(cam *Camera)
}

// Camera renders a scene through its render path and applies its post-process chain.
// A Camera is not safe for concurrent use.
type Camera struct {
	Name string
	// RenderTexture names the texture the camera renders into. Empty for the screen.
	RenderTexture string
	Near, Far     float32
	View, Projection ms3.Mat4
	Position         ms3.Vec
	Path             RenderPath
	Logger           *slog.Logger

	priority int16
	width    int
	height   int
	dev      Device

	post        []PostProcess
	postBuffers [2]draw.Image
	postIdx     int

	beginEnabled  bool
	finishEnabled bool
}

// NewCamera returns a camera of the given size with identity view and projection
// matrices. Post buffers are allocated on dev.
func NewCamera(name string, dev Device, width, height int) (*Camera, error) {
	if dev == nil {
		return nil, errors.New("nil device")
	}
	cam := &Camera{
		Name:       name,
		Near:       0.1,
		Far:        100,
		View:       ms3.IdentityMat4(),
		Projection: ms3.IdentityMat4(),
		dev:        dev,
	}
	err := cam.initBuffers(width, height)
	if err != nil {
		return nil, err
	}
	return cam, nil
}

func (cam *Camera) initBuffers(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid camera size %dx%d", width, height)
	}
	for i := range cam.postBuffers {
		buf, err := cam.dev.NewTarget(width, height, FormatRGBA8)
		if err != nil {
			return fmt.Errorf("post buffer %d: %w", i, err)
		}
		cam.postBuffers[i] = buf
	}
	cam.width, cam.height = width, height
	cam.postIdx = 0
	return nil
}

// Size returns the camera's viewport size in pixels.
func (cam *Camera) Size() (width, height int) { return cam.width, cam.height }

// Resize reallocates the post buffers and resizes the render path.
func (cam *Camera) Resize(width, height int) error {
	err := cam.initBuffers(width, height)
	if err != nil {
		return err
	}
	if cam.Path != nil {
		return cam.Path.Resize(width, height)
	}
	return nil
}

// Priority returns the render priority. Cameras render in ascending priority, see [SortCameras].
func (cam *Camera) Priority() int16 { return cam.priority }

// SetPriority sets the render priority.
func (cam *Camera) SetPriority(priority int16) { cam.priority = priority }

// AddPostProcess inserts pp in the post-process chain after every effect of equal or lower priority.
func (cam *Camera) AddPostProcess(pp PostProcess) error {
	if pp == nil {
		return errors.New("nil post process")
	} else if slices.Contains(cam.post, pp) {
		return errors.New("post process already added to camera")
	}
	idx := slices.IndexFunc(cam.post, func(other PostProcess) bool {
		return other.Priority() > pp.Priority()
	})
	if idx < 0 {
		idx = len(cam.post)
	}
	cam.post = slices.Insert(cam.post, idx, pp)
	if attacher, ok := pp.(CameraAttacher); ok {
		attacher.OnAddToCamera(cam)
	}
	return nil
}

// RemovePostProcess removes pp from the post-process chain and reports whether it was present.
func (cam *Camera) RemovePostProcess(pp PostProcess) bool {
	idx := slices.Index(cam.post, pp)
	if idx < 0 {
		return false
	}
	cam.post = slices.Delete(cam.post, idx, idx+1)
	if attacher, ok := pp.(CameraAttacher); ok {
		attacher.OnRemoveFromCamera(cam)
	}
	return true
}

// PostProcesses returns the post-process chain in execution order.
func (cam *Camera) PostProcesses() []PostProcess { return slices.Clone(cam.post) }

// PostSource returns the buffer holding the current post-processed image.
func (cam *Camera) PostSource() draw.Image { return cam.postBuffers[cam.postIdx] }

// PostTarget returns the buffer the next effect writes into.
func (cam *Camera) PostTarget() draw.Image { return cam.postBuffers[1-cam.postIdx] }

// FlipPostBuffers swaps post source and target.
func (cam *Camera) FlipPostBuffers() { cam.postIdx = 1 - cam.postIdx }

// OverrideBegin makes the post-process pass start by copying the back buffer
// into the post source. It returns the post source.
func (cam *Camera) OverrideBegin() draw.Image {
	cam.beginEnabled = true
	return cam.PostSource()
}

// OverrideFinish makes the post-process pass end by copying the post source
// back into the back buffer. It returns the back buffer, nil if the path has none.
func (cam *Camera) OverrideFinish() draw.Image {
	cam.finishEnabled = true
	return cam.BackBuffer()
}

// FreeBegin undoes [Camera.OverrideBegin].
func (cam *Camera) FreeBegin() { cam.beginEnabled = false }

// FreeFinish undoes [Camera.OverrideFinish].
func (cam *Camera) FreeFinish() { cam.finishEnabled = false }

// Targets returns the render targets of the camera's render path.
func (cam *Camera) Targets() RenderTargets {
	if cam.Path == nil {
		return RenderTargets{}
	}
	return cam.Path.Targets()
}

// BackBuffer returns the render path back buffer.
func (cam *Camera) BackBuffer() draw.Image { return cam.Targets().BackBuffer }

// Render draws the scene through the render path and applies the post-process chain.
func (cam *Camera) Render() error {
	if cam.Path == nil {
		return fmt.Errorf("camera %q: %w", cam.Name, errNoRenderPath)
	}
	for _, step := range [...]struct {
		name string
		fn   func() error
	}{
		{"prerender", cam.Path.PreRender},
		{"render", cam.Path.Render},
		{"postrender", cam.Path.PostRender},
	} {
		err := step.fn()
		if err != nil {
			return fmt.Errorf("camera %q %s: %w", cam.Name, step.name, err)
		}
	}
	return cam.PostProcess()
}

// PostProcess applies the post-process chain. With begin overridden the back buffer
// is first copied into the post source. With finish overridden the final image is
// copied back into the back buffer.
func (cam *Camera) PostProcess() error {
	back := cam.BackBuffer()
	if cam.beginEnabled && back != nil {
		copyImage(cam.PostSource(), back)
	}
	for _, pp := range cam.post {
		err := pp.Process(cam)
		if err != nil {
			return fmt.Errorf("camera %q post process: %w", cam.Name, err)
		}
	}
	if cam.finishEnabled && back != nil {
		copyImage(back, cam.PostSource())
	}
	if cam.Logger != nil {
		cam.Logger.LogAttrs(context.Background(), slog.LevelDebug, "camera rendered",
			slog.String("camera", cam.Name),
			slog.Int("postprocesses", len(cam.post)),
			slog.Int("postbuffer", cam.postIdx),
		)
	}
	return nil
}

func copyImage(dst draw.Image, src image.Image) {
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
}

// Common uniform names set by [Camera.SetCommonUniforms].
const (
	UniformCamPos              = "u_camPos"
	UniformTime                = glbuild.UniformTime
	UniformSceneViewMat        = "u_sceneViewMat"
	UniformSceneInvViewMat     = "u_sceneInvViewMat"
	UniformSceneProjMat        = "u_sceneProjMat"
	UniformSceneInvProjMat     = "u_sceneInvProjMat"
	UniformSceneViewProjMat    = "u_sceneViewProjMat"
	UniformSceneInvViewProjMat = "u_sceneInvViewProjMat"
)

var errSingular = errors.New("singular matrix")

// SetCommonUniforms stores the camera position, time and scene matrices in table.
// Matrices are stored column-major. Non-invertible matrices leave their inverse
// uniform zeroed and return an error.
func (cam *Camera) SetCommonUniforms(table *glbuild.UniformTable, time float32) error {
	pos := table.Add(UniformCamPos, glbuild.UniformVec4, 1)
	pos.SetValue(cam.Position.X, cam.Position.Y, cam.Position.Z, 0)
	table.Add(UniformTime, glbuild.UniformVec4, 1).SetValue(time)

	viewProj := ms3.MulMat4(cam.Projection, cam.View)
	var errs []error
	for _, m := range []struct {
		name, invName string
		mat           ms3.Mat4
	}{
		{UniformSceneViewMat, UniformSceneInvViewMat, cam.View},
		{UniformSceneProjMat, UniformSceneInvProjMat, cam.Projection},
		{UniformSceneViewProjMat, UniformSceneInvViewProjMat, viewProj},
	} {
		v := columnMajor(m.mat)
		table.Add(m.name, glbuild.UniformMat4, 1).SetValue(v[:]...)
		inv := table.Add(m.invName, glbuild.UniformMat4, 1)
		if det := m.mat.Determinant(); det == 0 || math32.IsNaN(det) {
			errs = append(errs, fmt.Errorf("%s: %w", m.name, errSingular))
			continue
		}
		v = columnMajor(m.mat.Inverse())
		inv.SetValue(v[:]...)
	}
	return errors.Join(errs...)
}

// SortCameras sorts cameras by ascending render priority. Cameras of equal priority keep their order.
func SortCameras(cams []*Camera) {
	slices.SortStableFunc(cams, func(a, b *Camera) int {
		return int(a.priority) - int(b.priority)
	})
}
