package gleval_test

import (
	"image"
	"image/color"
	"testing"

	"github.com/soypat/geometry/ms2"
	"github.com/soypat/matgraph"
	"github.com/soypat/matgraph/glbuild"
	"github.com/soypat/matgraph/gleval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert(t *testing.T) {
	const (
		F  = glbuild.ReturnFloat
		V2 = glbuild.ReturnVec2
		V3 = glbuild.ReturnVec3
		V4 = glbuild.ReturnVec4
	)
	v := [4]float32{1, 2, 3, 4}
	for _, test := range []struct {
		from, to glbuild.ReturnType
		want     [4]float32
	}{
		{F, F, [4]float32{1}},
		{F, V3, [4]float32{1, 1, 1}},
		{F, V4, [4]float32{1, 1, 1, 1}},
		{V4, F, [4]float32{1}},
		{V4, V2, [4]float32{1, 2}},
		{V2, V3, [4]float32{1, 2, 0}},
		{V2, V4, [4]float32{1, 2, 0, 1}},
		{V3, V4, [4]float32{1, 2, 3, 1}},
		{V4, V4, v},
	} {
		got := gleval.Convert(v, test.from, test.to)
		if got != test.want {
			t.Errorf("%s->%s: want %v, got %v", test.from, test.to, test.want, got)
		}
	}
}

func TestVecPool(t *testing.T) {
	var pool gleval.VecPool
	a := pool.V4.Acquire(8)
	require.Len(t, a, 8)
	a[0] = [4]float32{1, 2, 3, 4}
	assert.Error(t, pool.AssertAllReleased())
	pool.V4.Release(a)
	require.NoError(t, pool.AssertAllReleased())

	b := pool.V4.Acquire(4)
	assert.Equal(t, [4]float32{}, b[0], "reused buffers must be zeroed")
	f := pool.Float.Acquire(3)
	assert.Error(t, pool.AssertAllReleased())
	pool.Float.Release(f)
	pool.V4.Release(b)
	assert.NoError(t, pool.AssertAllReleased())
	assert.Panics(t, func() { pool.Float.Release(f) })
}

func TestSampleImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255}) // Top left.
	img.SetNRGBA(1, 0, color.NRGBA{G: 255, A: 255})
	img.SetNRGBA(0, 1, color.NRGBA{B: 255, A: 255}) // Bottom left.
	img.SetNRGBA(1, 1, color.NRGBA{A: 255})
	for _, test := range []struct {
		uv   ms2.Vec
		want [4]float32
	}{
		{ms2.Vec{X: 0.25, Y: 0.25}, [4]float32{0, 0, 1, 1}},
		{ms2.Vec{X: 0.25, Y: 0.75}, [4]float32{1, 0, 0, 1}},
		{ms2.Vec{X: 0.75, Y: 0.75}, [4]float32{0, 1, 0, 1}},
		{ms2.Vec{X: 1.25, Y: -0.25}, [4]float32{1, 0, 0, 1}}, // Repeat wrapping.
	} {
		got := gleval.SampleImage(img, test.uv)
		assert.InDeltaSlice(t, test.want[:], got[:], 1e-6, "uv=%v", test.uv)
	}
	assert.Equal(t, [4]float32{}, gleval.SampleImage(image.NewNRGBA(image.Rectangle{}), ms2.Vec{}))
}

func TestEvaluateErrors(t *testing.T) {
	var ctx gleval.Context
	frags := make([]gleval.Fragment, 2)
	dst := make([][4]float32, 2)
	assert.Error(t, ctx.Evaluate(1, frags, dst))
	ctx.Graph = new(glbuild.Graph)
	assert.Error(t, ctx.Evaluate(1, frags, dst[:1]))
	assert.Error(t, ctx.Evaluate(1, nil, nil))

	// Missing nodes evaluate to zero like their default literal.
	dst[0] = [4]float32{1, 1, 1, 1}
	require.NoError(t, ctx.Evaluate(42, frags, dst))
	assert.Equal(t, [4]float32{}, dst[0])

	g := ctx.Graph
	add := g.Add(&matgraph.BinaryNode{Op: matgraph.OpAdd})
	require.NoError(t, g.Connect(add, "A", add))
	err := ctx.Evaluate(add, frags, dst)
	assert.ErrorIs(t, err, glbuild.ErrGraphCycle)
	assert.NoError(t, ctx.Pool.AssertAllReleased())
}

func TestEvaluateDeepChain(t *testing.T) {
	var g glbuild.Graph
	one := g.Add(&matgraph.FloatNode{Value: 1})
	x := one
	const depth = 10000
	for i := 1; i < depth; i++ {
		x = g.Add(&matgraph.BinaryNode{Op: matgraph.OpAdd, A: x, B: one})
	}
	ctx := gleval.Context{Graph: &g}
	frags := make([]gleval.Fragment, 1)
	dst := make([][4]float32, 1)
	require.NoError(t, ctx.Evaluate(x, frags, dst))
	assert.Equal(t, float32(depth), dst[0][0])
	assert.NoError(t, ctx.Pool.AssertAllReleased())

	// A shared input evaluated twice by the same parent is not a cycle.
	twice := g.Add(&matgraph.BinaryNode{Op: matgraph.OpMultiply, A: one, B: one})
	require.NoError(t, ctx.Evaluate(twice, frags, dst))
	assert.Equal(t, float32(1), dst[0][0])
}

func TestEvaluateUniformOverride(t *testing.T) {
	var g glbuild.Graph
	tint := g.Add(&matgraph.FloatNode{Value: 0.25, UniformName: "Tint"})
	ctx := gleval.Context{Graph: &g}
	frags := make([]gleval.Fragment, 1)
	dst := make([][4]float32, 1)
	require.NoError(t, ctx.Evaluate(tint, frags, dst))
	assert.Equal(t, [4]float32{0.25, 0.25, 0.25, 0.25}, dst[0])

	var table glbuild.UniformTable
	table.Add("Tint", glbuild.UniformVec4, 1).SetValue(0.75)
	ctx.Uniforms = &table
	require.NoError(t, ctx.Evaluate(tint, frags, dst))
	assert.Equal(t, [4]float32{0.75, 0.75, 0.75, 0.75}, dst[0])

	// Baked uniforms ignore the table.
	ctx.Flags = glbuild.FlagBakeUniforms
	require.NoError(t, ctx.Evaluate(tint, frags, dst))
	assert.Equal(t, float32(0.25), dst[0][0])
}

func TestRasterize(t *testing.T) {
	var g glbuild.Graph
	uv := g.Add(&matgraph.UVNode{})
	ctx := gleval.Context{Graph: &g}
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	require.NoError(t, gleval.Rasterize(&ctx, uv, img, 0))
	// UV (0.25, 0.75) widened to vec4(u, v, 0, 1).
	assert.Equal(t, color.NRGBA{R: 64, G: 191, B: 0, A: 255}, img.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 191, G: 64, B: 0, A: 255}, img.NRGBAAt(1, 1))
	assert.Error(t, gleval.Rasterize(&ctx, uv, image.NewNRGBA(image.Rectangle{}), 0))
}

func TestToNRGBA(t *testing.T) {
	assert.Equal(t, color.NRGBA{R: 0, G: 128, B: 255, A: 255}, gleval.ToNRGBA([4]float32{-1, 0.5, 2, 1}))
}
