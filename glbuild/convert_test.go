package glbuild_test

import (
	"math"
	"testing"

	"github.com/soypat/matgraph"
	"github.com/soypat/matgraph/glbuild"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendFloat(t *testing.T) {
	for _, test := range []struct {
		v    float32
		want string
	}{
		{0.5, "0.500000"},
		{0, "0.000000"},
		{-1.25, "-1.250000"},
		{1e-7, "0.000000"},
		{123456, "123456.000000"},
		{float32(math.Inf(1)), "0.000000"},
		{float32(math.NaN()), "0.000000"},
	} {
		got := string(glbuild.AppendFloat(nil, test.v))
		if got != test.want {
			t.Errorf("AppendFloat(%v): want %q, got %q", test.v, test.want, got)
		}
	}
}

func TestAppendConvert(t *testing.T) {
	const (
		F  = glbuild.ReturnFloat
		V2 = glbuild.ReturnVec2
		V3 = glbuild.ReturnVec3
		V4 = glbuild.ReturnVec4
	)
	for _, test := range []struct {
		expr     string
		from, to glbuild.ReturnType
		want     string
	}{
		{"a", F, F, "a"},
		{"a", F, V2, "vec2(a)"},
		{"a", F, V4, "vec4(a)"},
		{"c", V4, F, "c.x"},
		{"c", V4, V3, "c.xyz"},
		{"c.xyz", V3, V2, "c.xyz.xy"},
		{"texture(s, uv)", V4, V3, "texture(s, uv).xyz"},
		{"(a + b)", V3, V2, "(a + b).xy"},
		{"(a) + (b)", V3, V2, "((a) + (b)).xy"},
		{"a * b", V4, F, "(a * b).x"},
		{"v", V2, V3, "vec3(v, 0.000000)"},
		{"v", V2, V4, "vec4(v, 0.000000, 1.000000)"},
		{"v", V3, V4, "vec4(v, 1.000000)"},
	} {
		got := string(glbuild.AppendConvert(nil, []byte(test.expr), test.from, test.to))
		if got != test.want {
			t.Errorf("convert %q %s->%s: want %q, got %q", test.expr, test.from, test.to, test.want, got)
		}
	}
}

func TestAppendLiteral(t *testing.T) {
	v := [4]float32{1, 2, 3, 4}
	assert.Equal(t, "1.000000", string(glbuild.AppendLiteral(nil, v, glbuild.ReturnVec4, glbuild.ReturnFloat)))
	assert.Equal(t, "vec3(1.000000)", string(glbuild.AppendLiteral(nil, v, glbuild.ReturnFloat, glbuild.ReturnVec3)))
	assert.Equal(t, "vec2(1.000000, 2.000000)", string(glbuild.AppendLiteral(nil, v, glbuild.ReturnVec3, glbuild.ReturnVec2)))
	assert.Equal(t, "vec4(1.000000, 2.000000, 0.000000, 1.000000)", string(glbuild.AppendLiteral(nil, v, glbuild.ReturnVec2, glbuild.ReturnVec4)))
	assert.Equal(t, "vec4(0.000000)", string(glbuild.AppendDefault(nil, glbuild.ReturnVec4)))
	assert.Equal(t, "0.000000", string(glbuild.AppendDefault(nil, glbuild.ReturnFloat)))
}

// Every constant node must produce a reference of the requested arity for every requested type.
func TestConstantReferenceArity(t *testing.T) {
	want := map[string][4]string{
		"Float":      {"0.500000", "vec2(0.500000)", "vec3(0.500000)", "vec4(0.500000)"},
		"Float/U":    {"U.x", "vec2(U.x)", "vec3(U.x)", "vec4(U.x)"},
		"Vec2":       {"0.500000", "vec2(0.500000, 0.250000)", "vec3(0.500000, 0.250000, 0.000000)", "vec4(0.500000, 0.250000, 0.000000, 1.000000)"},
		"Vec2/U":     {"U.x", "U.xy", "vec3(U.xy, 0.000000)", "vec4(U.xy, 0.000000, 1.000000)"},
		"Vec3/U":     {"U.x", "U.xy", "U.xyz", "vec4(U.xyz, 1.000000)"},
		"Vec4/U":     {"U.x", "U.xy", "U.xyz", "U"},
		"Vec4":       {"0.500000", "vec2(0.500000, 0.250000)", "vec3(0.500000, 0.250000, 0.125000)", "vec4(0.500000, 0.250000, 0.125000, 1.000000)"},
		"Combine":    {"0.000000", "vec4(0.000000, 0.000000, 0.000000, 0.000000).xy", "vec4(0.000000, 0.000000, 0.000000, 0.000000).xyz", "vec4(0.000000, 0.000000, 0.000000, 0.000000)"},
		"Swizzle/zx": {"vec4(0.500000, 0.250000, 0.125000, 1.000000).zx.x", "vec4(0.500000, 0.250000, 0.125000, 1.000000).zx", "vec3(vec4(0.500000, 0.250000, 0.125000, 1.000000).zx, 0.000000)", "vec4(vec4(0.500000, 0.250000, 0.125000, 1.000000).zx, 0.000000, 1.000000)"},
	}
	value := [4]float32{0.5, 0.25, 0.125, 1}
	nodes := map[string]glbuild.Node{
		"Float":   &matgraph.FloatNode{Value: 0.5},
		"Float/U": &matgraph.FloatNode{Value: 0.5, UniformName: "U"},
		"Vec2":    &matgraph.VectorNode{Dim: glbuild.ReturnVec2, Value: value},
		"Vec2/U":  &matgraph.VectorNode{Dim: glbuild.ReturnVec2, Value: value, UniformName: "U"},
		"Vec3/U":  &matgraph.VectorNode{Dim: glbuild.ReturnVec3, Value: value, UniformName: "U"},
		"Vec4/U":  &matgraph.VectorNode{Dim: glbuild.ReturnVec4, Value: value, UniformName: "U"},
		"Vec4":    &matgraph.VectorNode{Dim: glbuild.ReturnVec4, Value: value},
		"Combine": &matgraph.CombineNode{},
	}
	g := new(glbuild.Graph)
	ids := make(map[string]glbuild.NodeID)
	for name, n := range nodes {
		ids[name] = g.Add(n)
	}
	ids["Swizzle/zx"] = g.Add(&matgraph.SwizzleNode{Mask: "br", X: ids["Vec4"]})
	tmpl := newTemplate()
	for name, id := range ids {
		require.NoError(t, tmpl.Compile(g, glbuild.Output{Stage: glbuild.StagePixel, Node: id}))
		for i, rt := range []glbuild.ReturnType{glbuild.ReturnFloat, glbuild.ReturnVec2, glbuild.ReturnVec3, glbuild.ReturnVec4} {
			got := reference(tmpl, glbuild.StagePixel, id, rt)
			if got != want[name][i] {
				t.Errorf("%s as %s: want %q, got %q", name, rt, want[name][i], got)
			}
		}
	}
}

func TestParseSwizzle(t *testing.T) {
	for _, test := range []struct {
		mask string
		norm string
		rt   glbuild.ReturnType
		ok   bool
	}{
		{"x", "x", glbuild.ReturnFloat, true},
		{"rgb", "xyz", glbuild.ReturnVec3, true},
		{"qpts", "wzyx", glbuild.ReturnVec4, true},
		{"wwww", "wwww", glbuild.ReturnVec4, true},
		{"", "", 0, false},
		{"xyzwx", "", 0, false},
		{"xg", "", 0, false}, // Mixed sets.
		{"xa", "", 0, false},
		{"k", "", 0, false},
	} {
		norm, rt, ok := glbuild.ParseSwizzle(test.mask)
		if norm != test.norm || rt != test.rt || ok != test.ok {
			t.Errorf("ParseSwizzle(%q): want (%q,%s,%v), got (%q,%s,%v)", test.mask, test.norm, test.rt, test.ok, norm, rt, ok)
		}
	}
}

func TestValidIdentifier(t *testing.T) {
	valid := []string{"Tint", "_a", "u_time", "s_tex0", "A1b2"}
	invalid := []string{"", "0a", "gl_Position", "a-b", "a b", "tint.x", "é"}
	for _, name := range valid {
		assert.True(t, glbuild.ValidIdentifier(name), name)
	}
	for _, name := range invalid {
		assert.False(t, glbuild.ValidIdentifier(name), name)
	}
}

func TestUniformTable(t *testing.T) {
	var table glbuild.UniformTable
	assert.Nil(t, table.Find("Tint"))
	u := table.Add("Tint", glbuild.UniformVec4, 1)
	require.Len(t, u.Value, 4)
	u.SetValue(1, 2)
	assert.Equal(t, [4]float32{1, 2, 0, 0}, u.Vec4())
	table.Add("View", glbuild.UniformMat4, 1)

	// Overwrite keeps position and replaces type, count and value.
	u2 := table.Add("Tint", glbuild.UniformMat3, 2)
	assert.Same(t, u, u2)
	assert.Equal(t, glbuild.UniformMat3, u2.Type)
	assert.Len(t, u2.Value, 18)
	assert.Equal(t, float32(0), u2.Value[0])
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, "uniform mat3 Tint[2];\n", string(u2.AppendDecl(nil)))

	var names []string
	table.ForEach(func(u *glbuild.UniformData) bool {
		names = append(names, u.Name)
		return true
	})
	assert.Equal(t, []string{"Tint", "View"}, names)

	table.Reset()
	assert.Zero(t, table.Len())
	assert.Nil(t, table.Find("Tint"))
	assert.Panics(t, func() { table.Add("", glbuild.UniformVec4, 1) })
	assert.Panics(t, func() { table.Add("a", 0, 1) })
	assert.Panics(t, func() { table.Add("a", glbuild.UniformVec4, 0) })
}

func TestGraphAuthoring(t *testing.T) {
	var g glbuild.Graph
	a := g.Add(&matgraph.FloatNode{Value: 1})
	b := g.Add(&matgraph.FloatNode{Value: 2})
	sum := g.Add(&matgraph.BinaryNode{Op: matgraph.OpAdd})
	assert.Equal(t, 3, g.Len())
	assert.Equal(t, []glbuild.NodeID{a, b, sum}, g.IDs())

	require.NoError(t, g.Connect(sum, "A", a))
	require.NoError(t, g.Connect(sum, "B", b))
	got, err := g.Input(sum, "B")
	require.NoError(t, err)
	assert.Equal(t, b, got)
	assert.Error(t, g.Connect(sum, "C", a))
	assert.Error(t, g.Connect(99, "A", a))
	assert.Equal(t, []glbuild.NodeID{sum}, g.Dependents(a))

	assert.Equal(t, "Add", g.Name(sum))
	require.NoError(t, g.SetName(sum, "Brightness"))
	assert.Equal(t, "Brightness", g.Name(sum))
	require.NoError(t, g.SetName(sum, ""))
	assert.Equal(t, "Add", g.Name(sum))
	assert.Error(t, g.SetName(99, "x"))

	require.NoError(t, g.Disconnect(sum, "A"))
	got, _ = g.Input(sum, "A")
	assert.Equal(t, glbuild.NoNode, got)

	assert.True(t, g.Remove(b))
	assert.False(t, g.Remove(b))
	_, ok := g.Node(b)
	assert.False(t, ok)
	c := g.Add(&matgraph.FloatNode{})
	assert.NotEqual(t, b, c, "IDs must not be reused")
	assert.Panics(t, func() { g.Add(nil) })
}

func TestDiagnosticError(t *testing.T) {
	d := glbuild.Diagnostic{Kind: glbuild.DiagUniformCollision, Stage: glbuild.StagePixel, Node: 3, Message: "boom"}
	assert.Equal(t, "fragment stage node 3: uniform name collision: boom", d.Error())
	cerr := &glbuild.CycleError{Path: []glbuild.NodeID{1, 2, 1}}
	assert.Equal(t, "material graph cycle: 1 -> 2 -> 1", cerr.Error())
}
