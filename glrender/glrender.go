// Package glrender drives render cameras: the render path that draws a camera's
// scene into its targets and the post-process chain applied afterwards.
package glrender

import (
	"errors"
	"fmt"
	"image/draw"
	"slices"
)

// Format is the pixel format of a render target.
type Format uint8

const (
	FormatRGBA8 Format = iota + 1
	FormatDepth16
)

func (f Format) String() string {
	switch f {
	case FormatRGBA8:
		return "RGBA8"
	case FormatDepth16:
		return "Depth16"
	}
	return fmt.Sprintf("Format(%d)", uint8(f))
}

// Device allocates render targets.
type Device interface {
	NewTarget(width, height int, format Format) (draw.Image, error)
}

// RenderTargets are the targets a render path draws into. Targets a path
// does not provide are nil.
type RenderTargets struct {
	BackBuffer draw.Image
	Color      draw.Image
	Depth      draw.Image
	// DepthRead is a copy of Depth that can be sampled while Depth is bound.
	DepthRead draw.Image
	Normal    draw.Image
	MatInfo   draw.Image
}

// RenderPath implements a rendering method such as forward or deferred shading.
type RenderPath interface {
	PreRender() error
	Render() error
	PostRender() error
	Resize(width, height int) error
	Targets() RenderTargets
}

// PathFactory creates a render path for cam.
type PathFactory func(cam *Camera) (RenderPath, error)

var (
	errUnknownPath  = errors.New("unknown render path")
	errNoRenderPath = errors.New("camera has no render path")
	errNilCamera    = errors.New("nil camera")
)

// PathRegistry maps render path names to factories so cameras can select
// their render path by name. The zero value is ready for use.
type PathRegistry struct {
	factories map[string]PathFactory
}

// Register adds a factory under name. Names must be unique.
func (r *PathRegistry) Register(name string, factory PathFactory) error {
	if name == "" {
		return errors.New("empty render path name")
	} else if factory == nil {
		return fmt.Errorf("render path %q: nil factory", name)
	}
	if r.factories == nil {
		r.factories = make(map[string]PathFactory)
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("render path %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// New creates an instance of the render path registered with name for cam.
func (r *PathRegistry) New(name string, cam *Camera) (RenderPath, error) {
	if cam == nil {
		return nil, errNilCamera
	}
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", errUnknownPath, name)
	}
	return factory(cam)
}

// Names returns the registered render path names in lexical order.
func (r *PathRegistry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Builtin render path names registered by [RegisterBuiltinPaths].
const (
	PathForward  = "forward"
	PathDeferred = "deferred"
)

// RegisterBuiltinPaths registers the forward and deferred render paths
// allocating targets on dev and drawing the scene with drawScene.
func RegisterBuiltinPaths(r *PathRegistry, dev Device, drawScene DrawFunc) error {
	err := r.Register(PathForward, func(cam *Camera) (RenderPath, error) {
		return NewForwardPath(cam, dev, drawScene)
	})
	if err != nil {
		return err
	}
	return r.Register(PathDeferred, func(cam *Camera) (RenderPath, error) {
		return NewDeferredPath(cam, dev, drawScene)
	})
}
