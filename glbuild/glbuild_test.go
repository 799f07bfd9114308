package glbuild_test

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/matgraph"
	"github.com/soypat/matgraph/glbuild"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTemplate() *glbuild.Template {
	return glbuild.NewTemplate("test", glbuild.DefaultTemplateConfig())
}

func reference(t *glbuild.Template, stage glbuild.Stage, id glbuild.NodeID, rt glbuild.ReturnType) string {
	s := glbuild.Settings{Template: t, Stage: stage, Flags: t.Flags}
	return string(s.AppendInput(nil, id, rt))
}

func diagCount(t *glbuild.Template, kind glbuild.DiagnosticKind) (n int) {
	for _, d := range t.Diagnostics() {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

func TestFloatLiteralReference(t *testing.T) {
	var bld matgraph.Builder
	id := bld.Float(0.5, "")
	tmpl := newTemplate()
	err := tmpl.Compile(bld.Graph(), glbuild.Output{Stage: glbuild.StagePixel, Node: id, Target: "value", Type: glbuild.ReturnFloat})
	require.NoError(t, err)
	got := reference(tmpl, glbuild.StagePixel, id, glbuild.ReturnFloat)
	if got != "0.500000" {
		t.Errorf("want literal 0.500000, got %q", got)
	}
	assert.Contains(t, string(tmpl.Body(glbuild.StagePixel)), "\tvalue = 0.500000;\n")
	assert.Nil(t, tmpl.Uniforms.Find("value"))
	assert.Empty(t, tmpl.Diagnostics())
}

func TestFloatUniformReference(t *testing.T) {
	var bld matgraph.Builder
	id := bld.Float(0.5, "Tint")
	tmpl := newTemplate()
	err := tmpl.Compile(bld.Graph(), glbuild.Output{Stage: glbuild.StagePixel, Node: id, Target: "value", Type: glbuild.ReturnFloat})
	require.NoError(t, err)

	header := string(tmpl.Header(glbuild.StagePixel))
	assert.Equal(t, 1, strings.Count(header, "vec4 Tint"), header)
	u := tmpl.Uniforms.Find("Tint")
	require.NotNil(t, u)
	assert.Equal(t, glbuild.UniformVec4, u.Type)
	assert.Equal(t, float32(0.5), u.Value[0])
	assert.Equal(t, id, u.Owner())
	assert.True(t, u.UsedIn(glbuild.StagePixel))
	assert.False(t, u.UsedIn(glbuild.StageVertex))
	assert.Equal(t, "Tint.x", reference(tmpl, glbuild.StagePixel, id, glbuild.ReturnFloat))
	assert.Empty(t, tmpl.Diagnostics())
}

func TestUniformCollisionLastWriteWins(t *testing.T) {
	var bld matgraph.Builder
	a := bld.Float(0.25, "Tint")
	b := bld.Float(0.75, "Tint")
	sum := bld.Add(a, b)
	tmpl := newTemplate()
	err := tmpl.Compile(bld.Graph(), glbuild.Output{Stage: glbuild.StagePixel, Node: sum, Target: "value", Type: glbuild.ReturnFloat})
	require.NoError(t, err)

	count := 0
	tmpl.Uniforms.ForEach(func(u *glbuild.UniformData) bool {
		if u.Name == "Tint" {
			count++
		}
		return true
	})
	assert.Equal(t, 1, count)
	u := tmpl.Uniforms.Find("Tint")
	require.NotNil(t, u)
	assert.Equal(t, float32(0.75), u.Value[0])
	assert.Equal(t, b, u.Owner())
	assert.Equal(t, 1, diagCount(tmpl, glbuild.DiagUniformCollision))
	header := string(tmpl.Header(glbuild.StagePixel))
	assert.Equal(t, 1, strings.Count(header, "uniform vec4 Tint;"), header)
}

func TestUniformCollisionReportedOnce(t *testing.T) {
	var bld matgraph.Builder
	a := bld.Float(0.25, "Tint")
	b := bld.Float(0.75, "Tint")
	out := bld.Surface(matgraph.SurfaceForward, matgraph.SurfaceInputs{Color: a, Opacity: b})
	tmpl := newTemplate()
	require.NoError(t, tmpl.Compile(bld.Graph(), glbuild.AllStages(out)...))

	var collisions []glbuild.Diagnostic
	for _, d := range tmpl.Diagnostics() {
		if d.Kind == glbuild.DiagUniformCollision {
			collisions = append(collisions, d)
		}
	}
	require.Len(t, collisions, 1, tmpl.Diagnostics())
	d := collisions[0]
	assert.Equal(t, b, d.Node)
	assert.Equal(t, glbuild.StageVertex, d.Stage)
	assert.Contains(t, d.Message, fmt.Sprintf("node %d", a))

	u := tmpl.Uniforms.Find("Tint")
	require.NotNil(t, u)
	assert.Equal(t, b, u.Owner())
	assert.Equal(t, float32(0.75), u.Value[0])
	assert.True(t, u.UsedIn(glbuild.StageVertex))
	assert.True(t, u.UsedIn(glbuild.StagePixel))

	// Recompiling starts a fresh collision record.
	require.NoError(t, tmpl.Compile(bld.Graph(), glbuild.AllStages(out)...))
	assert.Equal(t, 1, diagCount(tmpl, glbuild.DiagUniformCollision))
}

func TestDiagnosticsNotAliased(t *testing.T) {
	var bld matgraph.Builder
	a := bld.Float(0.25, "Tint")
	b := bld.Float(0.75, "Tint")
	sum := bld.Add(a, b)
	tmpl := newTemplate()
	require.NoError(t, tmpl.Compile(bld.Graph(), glbuild.Output{Stage: glbuild.StagePixel, Node: sum, Target: "value", Type: glbuild.ReturnFloat}))
	diags := tmpl.Diagnostics()
	require.Len(t, diags, 1)
	want := diags[0]

	g := new(glbuild.Graph)
	bad := g.Add(&matgraph.FloatNode{Value: float32(nan())})
	require.NoError(t, tmpl.Compile(g, glbuild.Output{Stage: glbuild.StagePixel, Node: bad, Target: "value", Type: glbuild.ReturnFloat}))
	require.NotEmpty(t, tmpl.Diagnostics())
	assert.Equal(t, want, diags[0], "diagnostics of a previous compilation must not change")

	got := tmpl.Diagnostics()
	got[0].Message = "modified"
	assert.NotEqual(t, "modified", tmpl.Diagnostics()[0].Message)
}

func chainBody(t *testing.T, n int) (string, []glbuild.NodeID) {
	t.Helper()
	var bld matgraph.Builder
	x := bld.Float(0.5, "")
	var chain []glbuild.NodeID
	for i := 0; i < n; i++ {
		x = bld.Add(x, x)
		chain = append(chain, x)
	}
	tmpl := newTemplate()
	require.NoError(t, tmpl.Compile(bld.Graph(), glbuild.Output{Stage: glbuild.StagePixel, Node: x, Target: "value", Type: glbuild.ReturnFloat}))
	assert.Empty(t, tmpl.Diagnostics())
	return string(tmpl.Body(glbuild.StagePixel)), chain
}

func TestSharedNodesStoredOnce(t *testing.T) {
	body, chain := chainBody(t, 3)
	want := fmt.Sprintf("\tfloat _t%[1]d = (0.500000 + 0.500000);\n"+
		"\tfloat _t%[2]d = (_t%[1]d + _t%[1]d);\n"+
		"\tvalue = (_t%[2]d + _t%[2]d);\n", chain[0], chain[1])
	assert.Equal(t, want, body)

	// Source length grows linearly with the depth of sharing.
	short, _ := chainBody(t, 16)
	long, _ := chainBody(t, 32)
	assert.Less(t, len(long), 3*len(short))
	assert.Equal(t, 32, strings.Count(long, "\n"))
}

func TestSelfCycle(t *testing.T) {
	var bld matgraph.Builder
	g := bld.Graph()
	tint := bld.Float(1, "Tint")
	add := bld.Add(tint, glbuild.NoNode)
	require.NoError(t, g.Connect(add, "B", add))

	tmpl := newTemplate()
	err := tmpl.Compile(g, glbuild.AllStages(add)...)
	if !errors.Is(err, glbuild.ErrGraphCycle) {
		t.Fatalf("want graph cycle error, got %v", err)
	}
	var cerr *glbuild.CycleError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []glbuild.NodeID{add, add}, cerr.Path)
	assert.Zero(t, tmpl.Uniforms.Len(), "no partial uniform registration expected")
	assert.Empty(t, tmpl.Body(glbuild.StagePixel))
}

func TestIndirectCycle(t *testing.T) {
	var bld matgraph.Builder
	g := bld.Graph()
	tint := bld.Float(1, "Tint")
	a := bld.Add(tint, glbuild.NoNode)
	b := bld.Sin(a)
	c := bld.Mul(b, tint)
	require.NoError(t, g.Connect(a, "B", c))
	out := bld.Surface(matgraph.SurfaceForward, matgraph.SurfaceInputs{Color: c})

	tmpl := newTemplate()
	err := tmpl.Compile(g, glbuild.AllStages(out)...)
	require.ErrorIs(t, err, glbuild.ErrGraphCycle)
	var cerr *glbuild.CycleError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []glbuild.NodeID{c, b, a, c}, cerr.Path)
	assert.Zero(t, tmpl.Uniforms.Len())

	// Breaking the cycle makes the graph compile.
	require.NoError(t, g.Disconnect(a, "B"))
	require.NoError(t, tmpl.Compile(g, glbuild.AllStages(out)...))
	assert.NotNil(t, tmpl.Uniforms.Find("Tint"))
}

func TestRemovedInputResolvesToDefault(t *testing.T) {
	var bld matgraph.Builder
	g := bld.Graph()
	removed := bld.Float(2, "")
	kept := bld.Float(3, "")
	add := bld.Add(removed, kept)
	require.True(t, g.Remove(removed))

	tmpl := newTemplate()
	err := tmpl.Compile(g, glbuild.Output{Stage: glbuild.StagePixel, Node: add, Target: "value", Type: glbuild.ReturnVec3})
	require.NoError(t, err)
	assert.Equal(t, "(vec3(0.000000) + vec3(3.000000))", reference(tmpl, glbuild.StagePixel, add, glbuild.ReturnVec3))
	assert.Equal(t, 1, diagCount(tmpl, glbuild.DiagUnresolvedReference))
	d := tmpl.Diagnostics()[0]
	assert.Equal(t, add, d.Node)
	assert.Equal(t, glbuild.StagePixel, d.Stage)
}

func TestCompileIdempotent(t *testing.T) {
	bld, out := texturedMaterial()
	tmpl := newTemplate()
	require.NoError(t, tmpl.Compile(bld.Graph(), glbuild.AllStages(out)...))
	var first [2][]byte
	var firstUniforms []glbuild.UniformData
	for i, stage := range glbuild.Stages {
		first[i] = tmpl.AppendStageSource(nil, stage)
	}
	tmpl.Uniforms.ForEach(func(u *glbuild.UniformData) bool {
		cp := *u
		cp.Value = append([]float32{}, u.Value...)
		firstUniforms = append(firstUniforms, cp)
		return true
	})
	hash := tmpl.SourceHash()

	require.NoError(t, tmpl.Compile(bld.Graph(), glbuild.AllStages(out)...))
	for i, stage := range glbuild.Stages {
		got := tmpl.AppendStageSource(nil, stage)
		if !bytes.Equal(got, first[i]) {
			t.Errorf("%s stage differs between compilations:\n%s\n%s", stage, first[i], got)
		}
	}
	var secondUniforms []glbuild.UniformData
	tmpl.Uniforms.ForEach(func(u *glbuild.UniformData) bool {
		secondUniforms = append(secondUniforms, *u)
		return true
	})
	assert.Equal(t, firstUniforms, secondUniforms)
	assert.Equal(t, hash, tmpl.SourceHash())
}

func texturedMaterial() (*matgraph.Builder, glbuild.NodeID) {
	var bld matgraph.Builder
	tint := bld.Vec3(ms3.Vec{X: 1, Y: 0.5, Z: 0.25}, "Tint")
	uv := bld.UV()
	tex := bld.Texture(0, "", uv)
	color := bld.Mul(tex, tint)
	pulse := bld.Saturate(bld.Sin(bld.Time(2)))
	rough := bld.Float(0.8, "Roughness")
	out := bld.Surface(matgraph.SurfaceDeferred, matgraph.SurfaceInputs{
		Color:     color,
		Emissive:  bld.Mul(pulse, tint),
		Roughness: rough,
	})
	return &bld, out
}

func TestOneDeclarationPerUniform(t *testing.T) {
	bld, out := texturedMaterial()
	tmpl := newTemplate()
	require.NoError(t, tmpl.Compile(bld.Graph(), glbuild.AllStages(out)...))
	for _, stage := range glbuild.Stages {
		src := string(tmpl.AppendStageSource(nil, stage))
		tmpl.Uniforms.ForEach(func(u *glbuild.UniformData) bool {
			decl := string(u.AppendDecl(nil))
			want := 0
			if u.UsedIn(stage) {
				want = 1
			}
			if got := strings.Count(src, decl); got != want {
				t.Errorf("%s stage: want %d declarations of %q, got %d\n%s", stage, want, u.Name, got, src)
			}
			return true
		})
	}
	pixel := string(tmpl.AppendStageSource(nil, glbuild.StagePixel))
	assert.Contains(t, pixel, "uniform sampler2D s_tex0;\n")
	assert.Contains(t, pixel, "texture(s_tex0, v_texcoord0)")
	assert.Contains(t, pixel, "(u_time.x * 2.000000)")
	assert.Equal(t, 1, strings.Count(pixel, "uniform vec4 u_time;"))
	vertex := string(tmpl.AppendStageSource(nil, glbuild.StageVertex))
	assert.NotContains(t, vertex, "texture(")
	assert.Contains(t, vertex, "uniform mat4 u_modelViewProj;\n")
	assert.Empty(t, tmpl.Diagnostics())
}

func TestStageSource(t *testing.T) {
	var bld matgraph.Builder
	color := bld.Vec3(ms3.Vec{X: 1}, "BaseColor")
	out := bld.Surface(matgraph.SurfaceForward, matgraph.SurfaceInputs{Color: color})
	tmpl := newTemplate()
	require.NoError(t, tmpl.Compile(bld.Graph(), glbuild.AllStages(out)...))
	const wantPixel = `#version 330 core
in vec2 v_texcoord0;
uniform vec4 BaseColor;
layout(location = 0) out vec4 o_color;

void main() {
	o_color = vec4(BaseColor.xyz, 1.000000);
}
`
	const wantVertex = `#version 330 core
in vec3 a_position;
in vec2 a_texcoord0;
out vec2 v_texcoord0;
uniform mat4 u_modelViewProj;
uniform vec4 BaseColor;

void main() {
	vec3 position = a_position;
	v_texcoord0 = a_texcoord0;
	gl_Position = u_modelViewProj * vec4(position, 1.0);
}
`
	assert.Equal(t, wantPixel, string(tmpl.AppendStageSource(nil, glbuild.StagePixel)))
	assert.Equal(t, wantVertex, string(tmpl.AppendStageSource(nil, glbuild.StageVertex)))

	var buf bytes.Buffer
	n, err := tmpl.WriteCombined(&buf)
	require.NoError(t, err)
	assert.Equal(t, buf.Len(), n)
	combined := buf.String()
	assert.True(t, strings.HasPrefix(combined, "#shader vertex\n"+wantVertex))
	assert.True(t, strings.HasSuffix(combined, "#shader fragment\n"+wantPixel))
}

func TestWorldOffsetVertexStage(t *testing.T) {
	var bld matgraph.Builder
	offset := bld.Mul(bld.Vec3(ms3.Vec{Y: 1}, ""), bld.Sin(bld.Time(1)))
	out := bld.Surface(matgraph.SurfaceForward, matgraph.SurfaceInputs{WorldOffset: offset})
	tmpl := newTemplate()
	require.NoError(t, tmpl.Compile(bld.Graph(), glbuild.AllStages(out)...))
	body := string(tmpl.Body(glbuild.StageVertex))
	assert.Equal(t, "\tposition += (vec3(0.000000, 1.000000, 0.000000) * sin(vec3(u_time.x)));\n", body)
	u := tmpl.Uniforms.Find(glbuild.UniformTime)
	require.NotNil(t, u)
	assert.Equal(t, glbuild.NoNode, u.Owner())
	assert.True(t, u.UsedIn(glbuild.StageVertex))
}

func TestBakeUniforms(t *testing.T) {
	bld, out := texturedMaterial()
	tmpl := newTemplate()
	tmpl.Flags = glbuild.FlagBakeUniforms
	require.NoError(t, tmpl.Compile(bld.Graph(), glbuild.AllStages(out)...))
	assert.Nil(t, tmpl.Uniforms.Find("Tint"))
	assert.Nil(t, tmpl.Uniforms.Find(glbuild.UniformTime))
	assert.NotNil(t, tmpl.Uniforms.Find("s_tex0"), "samplers are never baked")
	pixel := string(tmpl.AppendStageSource(nil, glbuild.StagePixel))
	assert.Contains(t, pixel, "vec3(1.000000, 0.500000, 0.250000)")
}

func TestDebugComments(t *testing.T) {
	var bld matgraph.Builder
	out := bld.Surface(matgraph.SurfaceForward, matgraph.SurfaceInputs{})
	require.NoError(t, bld.Graph().SetName(out, "Output"))
	tmpl := newTemplate()
	tmpl.Flags = glbuild.FlagDebugComments
	require.NoError(t, tmpl.Compile(bld.Graph(), glbuild.AllStages(out)...))
	assert.Contains(t, string(tmpl.Body(glbuild.StagePixel)), "\t// Output node 1\n")
}

func TestStageDefault(t *testing.T) {
	var bld matgraph.Builder
	tex := bld.Texture(1, "", glbuild.NoNode)
	tmpl := newTemplate()
	require.NoError(t, tmpl.Compile(bld.Graph(), glbuild.AllStages(tex)...))
	assert.Equal(t, "vec4(0.000000)", reference(tmpl, glbuild.StageVertex, tex, glbuild.ReturnVec4))
	assert.Equal(t, "texture(s_tex1, v_texcoord0).xyz", reference(tmpl, glbuild.StagePixel, tex, glbuild.ReturnVec3))
	u := tmpl.Uniforms.Find("s_tex1")
	require.NotNil(t, u)
	assert.False(t, u.UsedIn(glbuild.StageVertex))
	assert.Equal(t, float32(1), u.Value[0])
}

func TestCompileErrors(t *testing.T) {
	tmpl := newTemplate()
	assert.Error(t, tmpl.Compile(nil, glbuild.Output{}))
	var g glbuild.Graph
	assert.Error(t, tmpl.Compile(&g))
	assert.Error(t, tmpl.Compile(&g, glbuild.Output{Stage: 7}))
	assert.Error(t, tmpl.Compile(&g, glbuild.Output{Type: 9}))
	// An output node missing from the graph is an unresolved reference.
	require.NoError(t, tmpl.Compile(&g, glbuild.Output{Stage: glbuild.StagePixel, Node: 42, Target: "x"}))
	assert.Equal(t, "\tx = vec4(0.000000);\n", string(tmpl.Body(glbuild.StagePixel)))
}

func TestInvalidParametersDiagnosed(t *testing.T) {
	g := new(glbuild.Graph)
	bad := g.Add(&matgraph.FloatNode{Value: float32(nan()), UniformName: "gl_Reserved"})
	swz := g.Add(&matgraph.SwizzleNode{Mask: "xq", X: bad})
	sum := g.Add(&matgraph.BinaryNode{Op: matgraph.OpAdd, A: bad, B: swz})
	tmpl := newTemplate()
	require.NoError(t, tmpl.Compile(g, glbuild.Output{Stage: glbuild.StagePixel, Node: sum, Target: "v", Type: glbuild.ReturnFloat}))
	assert.Equal(t, "\tv = (0.000000 + 0.000000);\n", string(tmpl.Body(glbuild.StagePixel)))
	assert.Equal(t, 3, diagCount(tmpl, glbuild.DiagFormat), tmpl.Diagnostics())
	assert.Nil(t, tmpl.Uniforms.Find("gl_Reserved"))
}

func nan() float64 {
	zero := 0.0
	return zero / zero
}

type recordingBackend struct {
	handles map[string]glbuild.UniformHandle
	values  map[glbuild.UniformHandle][]float32
	fail    bool
}

func (b *recordingBackend) RegisterUniform(name string, typ glbuild.UniformType, count int) (glbuild.UniformHandle, error) {
	if b.handles == nil {
		b.handles = make(map[string]glbuild.UniformHandle)
	}
	h, ok := b.handles[name]
	if !ok {
		h = glbuild.UniformHandle(len(b.handles) + 1)
		b.handles[name] = h
	}
	return h, nil
}

func (b *recordingBackend) BindUniformValue(h glbuild.UniformHandle, value []float32) error {
	if b.fail {
		return errors.New("bind failed")
	}
	if b.values == nil {
		b.values = make(map[glbuild.UniformHandle][]float32)
	}
	b.values[h] = append([]float32{}, value...)
	return nil
}

func TestBackendBinding(t *testing.T) {
	var bld matgraph.Builder
	tint := bld.Float(0.5, "Tint")
	out := bld.Surface(matgraph.SurfaceForward, matgraph.SurfaceInputs{Opacity: tint})
	backend := &recordingBackend{}
	tmpl := newTemplate()
	tmpl.Backend = backend
	require.NoError(t, tmpl.Compile(bld.Graph(), glbuild.AllStages(out)...))
	u := tmpl.Uniforms.Find("Tint")
	require.NotNil(t, u)
	require.NotEqual(t, glbuild.InvalidHandle, u.Handle)
	assert.Equal(t, []float32{0.5, 0, 0, 0}, backend.values[u.Handle])

	// Rebinding after a value change does not need a recompile.
	u.SetValue(0.25)
	require.NoError(t, tmpl.BindUniforms())
	assert.Equal(t, float32(0.25), backend.values[u.Handle][0])

	backend.fail = true
	err := tmpl.BindUniforms()
	require.Error(t, err)
	assert.NotZero(t, diagCount(tmpl, glbuild.DiagBackend))
}

func TestConcurrentTemplates(t *testing.T) {
	bld, out := texturedMaterial()
	g := bld.Graph()
	want := newTemplate()
	require.NoError(t, want.Compile(g, glbuild.AllStages(out)...))
	wantHash := want.SourceHash()
	var wg sync.WaitGroup
	errs := make([]error, 8)
	hashes := make([]uint64, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tmpl := newTemplate()
			errs[i] = tmpl.Compile(g, glbuild.AllStages(out)...)
			hashes[i] = tmpl.SourceHash()
		}()
	}
	wg.Wait()
	for i := range errs {
		require.NoError(t, errs[i])
		assert.Equal(t, wantHash, hashes[i])
	}
}
