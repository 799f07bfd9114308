package gleval

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/glgl/math/ms1"
	"github.com/soypat/matgraph/glbuild"
)

// Evaluator is implemented by material nodes that can be evaluated on the CPU.
// Results follow the conversion rules of the GLSL emitted by the same node.
type Evaluator interface {
	// Evaluate stores the node output converted to rt for every fragment in dst.
	// frags and dst must be of same length. Components beyond rt's arity are zero.
	Evaluate(ctx *Context, rt glbuild.ReturnType, frags []Fragment, dst [][4]float32) error
}

// Fragment holds the per-pixel builtin inputs of a CPU evaluation.
type Fragment struct {
	UV   ms2.Vec
	Time float32
}

var (
	errEmptyBuffers         = errors.New("empty buffers")
	errMismatchBufferLength = errors.New("fragment and value buffer length mismatch")
	errNoEvaluator          = errors.New("node not evaluable on CPU")
	errNilGraph             = errors.New("nil graph")
)

// Context holds the state of a CPU evaluation of a graph.
// A Context is not safe for concurrent use.
type Context struct {
	Graph *glbuild.Graph
	// Uniforms, if set, supplies uniform values by name, usually from a compiled
	// [glbuild.Template]. Nodes with a live uniform then read the table instead
	// of their own parameters, mirroring what the GPU sees.
	Uniforms *glbuild.UniformTable
	// Textures maps texture units to images sampled by texture nodes.
	Textures map[int]image.Image
	Flags    glbuild.Flags
	Pool     VecPool
	// active holds the nodes on the evaluation stack. Re-entering one is a cycle.
	active map[glbuild.NodeID]struct{}
}

// Evaluate evaluates node id as a vec4 for every fragment.
func (c *Context) Evaluate(id glbuild.NodeID, frags []Fragment, dst [][4]float32) error {
	if c.Graph == nil {
		return errNilGraph
	} else if len(frags) != len(dst) {
		return errMismatchBufferLength
	} else if len(frags) == 0 {
		return errEmptyBuffers
	}
	clear(c.active)
	return c.EvaluateInput(id, glbuild.ReturnVec4, frags, dst)
}

// EvaluateInput evaluates the node connected to an input slot as type rt.
// Disconnected and unresolved inputs evaluate to zero, same as their default literal.
func (c *Context) EvaluateInput(id glbuild.NodeID, rt glbuild.ReturnType, frags []Fragment, dst [][4]float32) error {
	n, ok := c.Graph.Node(id)
	if !ok {
		Fill(dst, [4]float32{})
		return nil
	}
	ev, ok := n.(Evaluator)
	if !ok {
		return fmt.Errorf("%s node %d: %w", n.NodeType(), id, errNoEvaluator)
	}
	if _, ok := c.active[id]; ok {
		return fmt.Errorf("node %d: %w", id, glbuild.ErrGraphCycle)
	}
	if c.active == nil {
		c.active = make(map[glbuild.NodeID]struct{})
	}
	c.active[id] = struct{}{}
	err := ev.Evaluate(c, rt, frags, dst)
	delete(c.active, id)
	return err
}

// UniformValue returns the value of the named uniform in the context's table,
// or fallback if there is no such uniform.
func (c *Context) UniformValue(name string, fallback [4]float32) [4]float32 {
	if c.Uniforms == nil || name == "" {
		return fallback
	}
	u := c.Uniforms.Find(name)
	if u == nil {
		return fallback
	}
	return u.Vec4()
}

// Sample samples the texture bound to unit at uv with nearest filtering and repeat wrapping.
// Unbound units sample as zero.
func (c *Context) Sample(unit int, uv ms2.Vec) [4]float32 {
	img := c.Textures[unit]
	if img == nil {
		return [4]float32{}
	}
	return SampleImage(img, uv)
}

// SampleImage samples img at uv. uv (0,0) is the bottom left corner of the image.
func SampleImage(img image.Image, uv ms2.Vec) [4]float32 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return [4]float32{}
	}
	u := uv.X - math32.Floor(uv.X)
	v := uv.Y - math32.Floor(uv.Y)
	x := bounds.Min.X + min(int(u*float32(w)), w-1)
	y := bounds.Min.Y + min(int((1-v)*float32(h)), h-1)
	r, g, b, a := img.At(x, y).RGBA()
	const inv = 1.0 / 0xffff
	return [4]float32{float32(r) * inv, float32(g) * inv, float32(b) * inv, float32(a) * inv}
}

// Convert converts v from type from to type to following the GLSL conversion rules
// of [glbuild.AppendConvert]. Components beyond to's arity are zeroed.
func Convert(v [4]float32, from, to glbuild.ReturnType) (r [4]float32) {
	nf, nt := from.Arity(), to.Arity()
	for i := 0; i < nt; i++ {
		switch {
		case nf == 1:
			r[i] = v[0]
		case i < nf:
			r[i] = v[i]
		case i == 3:
			r[i] = 1
		}
	}
	return r
}

// ConvertAll converts every value in buf in place. See [Convert].
func ConvertAll(buf [][4]float32, from, to glbuild.ReturnType) {
	if from == to {
		return
	}
	for i := range buf {
		buf[i] = Convert(buf[i], from, to)
	}
}

// Fill sets every element of dst to v.
func Fill(dst [][4]float32, v [4]float32) {
	for i := range dst {
		dst[i] = v
	}
}

// Rasterize evaluates node id over every pixel of dst at time t and stores the result as color.
// The bottom left pixel center maps to the smallest UV coordinate.
func Rasterize(ctx *Context, id glbuild.NodeID, dst draw.Image, t float32) error {
	bounds := dst.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return errEmptyBuffers
	}
	frags := make([]Fragment, w)
	values := make([][4]float32, w)
	for row := 0; row < h; row++ {
		v := 1 - (float32(row)+0.5)/float32(h)
		for col := range frags {
			frags[col] = Fragment{
				UV:   ms2.Vec{X: (float32(col) + 0.5) / float32(w), Y: v},
				Time: t,
			}
		}
		err := ctx.Evaluate(id, frags, values)
		if err != nil {
			return err
		}
		for col, c := range values {
			dst.Set(bounds.Min.X+col, bounds.Min.Y+row, ToNRGBA(c))
		}
	}
	return nil
}

// ToNRGBA converts a linear [0,1] color to 8 bit non-premultiplied RGBA, clamping out of range values.
func ToNRGBA(c [4]float32) color.NRGBA {
	const max8 = 255
	return color.NRGBA{
		R: uint8(ms1.Clamp(c[0], 0, 1)*max8 + 0.5),
		G: uint8(ms1.Clamp(c[1], 0, 1)*max8 + 0.5),
		B: uint8(ms1.Clamp(c[2], 0, 1)*max8 + 0.5),
		A: uint8(ms1.Clamp(c[3], 0, 1)*max8 + 0.5),
	}
}
