package matgraph

import (
	"strings"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/glgl/math/ms1"
	"github.com/soypat/matgraph/glbuild"
	"github.com/soypat/matgraph/gleval"
)

// Evaluate implements [gleval.Evaluator].
func (f *FloatNode) Evaluate(ctx *gleval.Context, rt glbuild.ReturnType, frags []gleval.Fragment, dst [][4]float32) error {
	return evaluateConstant(ctx, f.UniformName, [4]float32{f.Value}, glbuild.ReturnFloat, rt, dst)
}

// Evaluate implements [gleval.Evaluator].
func (v *VectorNode) Evaluate(ctx *gleval.Context, rt glbuild.ReturnType, frags []gleval.Fragment, dst [][4]float32) error {
	return evaluateConstant(ctx, v.UniformName, v.masked(), v.dim(), rt, dst)
}

func evaluateConstant(ctx *gleval.Context, uniformName string, v [4]float32, native, rt glbuild.ReturnType, dst [][4]float32) error {
	if liveUniform(uniformName, ctx.Flags) {
		v = ctx.UniformValue(uniformName, v)
	}
	sanitize(&v)
	gleval.Fill(dst, gleval.Convert(v, native, rt))
	return nil
}

// Evaluate implements [gleval.Evaluator].
func (tn *TimeNode) Evaluate(ctx *gleval.Context, rt glbuild.ReturnType, frags []gleval.Fragment, dst [][4]float32) error {
	if ctx.Flags.Has(glbuild.FlagBakeUniforms) {
		gleval.Fill(dst, [4]float32{})
		return nil
	}
	for i, frag := range frags {
		dst[i] = gleval.Convert([4]float32{frag.Time * tn.Speed}, glbuild.ReturnFloat, rt)
	}
	return nil
}

// Evaluate implements [gleval.Evaluator].
func (*UVNode) Evaluate(ctx *gleval.Context, rt glbuild.ReturnType, frags []gleval.Fragment, dst [][4]float32) error {
	for i, frag := range frags {
		dst[i] = gleval.Convert([4]float32{frag.UV.X, frag.UV.Y}, glbuild.ReturnVec2, rt)
	}
	return nil
}

// Evaluate implements [gleval.Evaluator].
func (tn *TextureNode) Evaluate(ctx *gleval.Context, rt glbuild.ReturnType, frags []gleval.Fragment, dst [][4]float32) error {
	if !tn.valid() {
		gleval.Fill(dst, [4]float32{})
		return nil
	}
	if tn.UV == glbuild.NoNode {
		for i, frag := range frags {
			dst[i] = gleval.Convert(ctx.Sample(tn.Unit, frag.UV), glbuild.ReturnVec4, rt)
		}
		return nil
	}
	uv := ctx.Pool.V4.Acquire(len(frags))
	defer ctx.Pool.V4.Release(uv)
	err := ctx.EvaluateInput(tn.UV, glbuild.ReturnVec2, frags, uv)
	if err != nil {
		return err
	}
	for i, c := range uv {
		dst[i] = gleval.Convert(ctx.Sample(tn.Unit, ms2.Vec{X: c[0], Y: c[1]}), glbuild.ReturnVec4, rt)
	}
	return nil
}

// Evaluate implements [gleval.Evaluator].
func (bn *BinaryNode) Evaluate(ctx *gleval.Context, rt glbuild.ReturnType, frags []gleval.Fragment, dst [][4]float32) error {
	err := ctx.EvaluateInput(bn.A, rt, frags, dst)
	if err != nil {
		return err
	}
	b := ctx.Pool.V4.Acquire(len(frags))
	defer ctx.Pool.V4.Release(b)
	err = ctx.EvaluateInput(bn.B, rt, frags, b)
	if err != nil {
		return err
	}
	n := rt.Arity()
	for i := range dst {
		for c := 0; c < n; c++ {
			switch bn.Op {
			case OpAdd:
				dst[i][c] += b[i][c]
			case OpSubtract:
				dst[i][c] -= b[i][c]
			case OpMultiply:
				dst[i][c] *= b[i][c]
			case OpDivide:
				dst[i][c] /= b[i][c]
			default:
				dst[i][c] = 0
			}
		}
	}
	return nil
}

// Evaluate implements [gleval.Evaluator].
func (ln *LerpNode) Evaluate(ctx *gleval.Context, rt glbuild.ReturnType, frags []gleval.Fragment, dst [][4]float32) error {
	err := ctx.EvaluateInput(ln.A, rt, frags, dst)
	if err != nil {
		return err
	}
	b := ctx.Pool.V4.Acquire(len(frags))
	defer ctx.Pool.V4.Release(b)
	t := ctx.Pool.V4.Acquire(len(frags))
	defer ctx.Pool.V4.Release(t)
	err = ctx.EvaluateInput(ln.B, rt, frags, b)
	if err != nil {
		return err
	}
	err = ctx.EvaluateInput(ln.T, glbuild.ReturnFloat, frags, t)
	if err != nil {
		return err
	}
	n := rt.Arity()
	for i := range dst {
		for c := 0; c < n; c++ {
			dst[i][c] = ms1.Interp(dst[i][c], b[i][c], t[i][0])
		}
	}
	return nil
}

// Evaluate implements [gleval.Evaluator].
func (un *UnaryNode) Evaluate(ctx *gleval.Context, rt glbuild.ReturnType, frags []gleval.Fragment, dst [][4]float32) error {
	err := ctx.EvaluateInput(un.X, rt, frags, dst)
	if err != nil {
		return err
	}
	n := rt.Arity()
	for i := range dst {
		for c := 0; c < n; c++ {
			x := dst[i][c]
			switch un.Fn {
			case FnSin:
				x = math32.Sin(x)
			case FnCos:
				x = math32.Cos(x)
			case FnAbs:
				x = math32.Abs(x)
			case FnFract:
				x -= math32.Floor(x)
			case FnSaturate:
				x = ms1.Clamp(x, 0, 1)
			case FnOneMinus:
				x = 1 - x
			default:
				x = 0
			}
			dst[i][c] = x
		}
	}
	return nil
}

// Evaluate implements [gleval.Evaluator].
func (sn *SwizzleNode) Evaluate(ctx *gleval.Context, rt glbuild.ReturnType, frags []gleval.Fragment, dst [][4]float32) error {
	mask, native, ok := glbuild.ParseSwizzle(sn.Mask)
	if !ok {
		gleval.Fill(dst, [4]float32{})
		return nil
	}
	err := ctx.EvaluateInput(sn.X, glbuild.ReturnVec4, frags, dst)
	if err != nil {
		return err
	}
	for i, v := range dst {
		var r [4]float32
		for c := 0; c < len(mask); c++ {
			r[c] = v[strings.IndexByte("xyzw", mask[c])]
		}
		dst[i] = gleval.Convert(r, native, rt)
	}
	return nil
}

// Evaluate implements [gleval.Evaluator].
func (cn *CombineNode) Evaluate(ctx *gleval.Context, rt glbuild.ReturnType, frags []gleval.Fragment, dst [][4]float32) error {
	comp := ctx.Pool.V4.Acquire(len(frags))
	defer ctx.Pool.V4.Release(comp)
	for c, id := range [4]glbuild.NodeID{cn.X, cn.Y, cn.Z, cn.W} {
		err := ctx.EvaluateInput(id, glbuild.ReturnFloat, frags, comp)
		if err != nil {
			return err
		}
		for i := range dst {
			dst[i][c] = comp[i][0]
		}
	}
	gleval.ConvertAll(dst, glbuild.ReturnVec4, rt)
	return nil
}

// Evaluate implements [gleval.Evaluator]. Surfaces evaluate to their emitted color.
func (sn *SurfaceNode) Evaluate(ctx *gleval.Context, rt glbuild.ReturnType, frags []gleval.Fragment, dst [][4]float32) error {
	aux := ctx.Pool.V4.Acquire(len(frags))
	defer ctx.Pool.V4.Release(aux)
	err := sn.evaluateSlot(ctx, "Color", sn.Color, frags, dst)
	if err != nil {
		return err
	}
	if sn.Emissive != glbuild.NoNode {
		err = sn.evaluateSlot(ctx, "Emissive", sn.Emissive, frags, aux)
		if err != nil {
			return err
		}
		for i := range dst {
			dst[i][0] += aux[i][0]
			dst[i][1] += aux[i][1]
			dst[i][2] += aux[i][2]
		}
	}
	err = sn.evaluateSlot(ctx, "Opacity", sn.Opacity, frags, aux)
	if err != nil {
		return err
	}
	for i := range dst {
		dst[i][3] = aux[i][0]
	}
	gleval.ConvertAll(dst, glbuild.ReturnVec4, rt)
	return nil
}

func (sn *SurfaceNode) evaluateSlot(ctx *gleval.Context, slot string, id glbuild.NodeID, frags []gleval.Fragment, dst [][4]float32) error {
	rt := sn.SlotType(slot, glbuild.ReturnVec4)
	if id == glbuild.NoNode {
		gleval.Fill(dst, gleval.Convert(surfaceDefault(slot), rt, rt))
		return nil
	}
	return ctx.EvaluateInput(id, rt, frags, dst)
}
