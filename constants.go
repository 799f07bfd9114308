package matgraph

import (
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/matgraph/glbuild"
)

// FloatNode is a scalar constant. When UniformName is set the value is bound
// through a vec4 uniform of that name so it can be tweaked without recompiling.
type FloatNode struct {
	UniformName string
	Value       float32
}

// Float adds a scalar constant node. An empty uniformName emits a literal.
func (bld *Builder) Float(value float32, uniformName string) glbuild.NodeID {
	bld.checkFinite("Float", value)
	bld.checkUniformName("Float", uniformName)
	return bld.graph.Add(&FloatNode{Value: value, UniformName: uniformName})
}

func (*FloatNode) NodeType() string { return "Float" }

func (*FloatNode) ForEachInput(fn func(slot string, input *glbuild.NodeID) error) error {
	return nil
}

func (f *FloatNode) Generate(s glbuild.Settings, rt glbuild.ReturnType, flags glbuild.Flags) {
	generateConstant(s, flags, f.UniformName, [4]float32{f.Value})
}

func (f *FloatNode) AppendReference(dst []byte, s glbuild.Settings, rt glbuild.ReturnType, flags glbuild.Flags) []byte {
	return appendConstant(dst, flags, f.UniformName, [4]float32{f.Value}, glbuild.ReturnFloat, rt)
}

// VectorNode is a 2, 3 or 4 component vector constant. See [FloatNode] for uniform semantics.
type VectorNode struct {
	UniformName string
	// Dim is the native type of the node. One of ReturnVec2, ReturnVec3, ReturnVec4.
	Dim   glbuild.ReturnType
	Value [4]float32
}

// Vec2 adds a 2 component vector constant node.
func (bld *Builder) Vec2(v ms2.Vec, uniformName string) glbuild.NodeID {
	return bld.vector(glbuild.ReturnVec2, [4]float32{v.X, v.Y}, uniformName)
}

// Vec3 adds a 3 component vector constant node.
func (bld *Builder) Vec3(v ms3.Vec, uniformName string) glbuild.NodeID {
	return bld.vector(glbuild.ReturnVec3, [4]float32{v.X, v.Y, v.Z}, uniformName)
}

// Vec4 adds a 4 component vector constant node, usually a RGBA color.
func (bld *Builder) Vec4(v [4]float32, uniformName string) glbuild.NodeID {
	return bld.vector(glbuild.ReturnVec4, v, uniformName)
}

func (bld *Builder) vector(dim glbuild.ReturnType, v [4]float32, uniformName string) glbuild.NodeID {
	tag := "Vec" + string('0'+byte(dim.Arity()))
	bld.checkFinite(tag, v[:]...)
	bld.checkUniformName(tag, uniformName)
	return bld.graph.Add(&VectorNode{Dim: dim, Value: v, UniformName: uniformName})
}

func (v *VectorNode) NodeType() string {
	switch v.Dim {
	case glbuild.ReturnVec2:
		return "Vec2"
	case glbuild.ReturnVec3:
		return "Vec3"
	}
	return "Vec4"
}

func (*VectorNode) ForEachInput(fn func(slot string, input *glbuild.NodeID) error) error {
	return nil
}

func (v *VectorNode) Generate(s glbuild.Settings, rt glbuild.ReturnType, flags glbuild.Flags) {
	generateConstant(s, flags, v.UniformName, v.masked())
}

func (v *VectorNode) AppendReference(dst []byte, s glbuild.Settings, rt glbuild.ReturnType, flags glbuild.Flags) []byte {
	return appendConstant(dst, flags, v.UniformName, v.masked(), v.dim(), rt)
}

func (v *VectorNode) dim() glbuild.ReturnType {
	if v.Dim < glbuild.ReturnVec2 || v.Dim > glbuild.ReturnVec4 {
		return glbuild.ReturnVec4
	}
	return v.Dim
}

// masked returns the value with components beyond the node's dimension zeroed.
func (v *VectorNode) masked() [4]float32 {
	val := v.Value
	for i := v.dim().Arity(); i < 4; i++ {
		val[i] = 0
	}
	return val
}

func generateConstant(s glbuild.Settings, flags glbuild.Flags, uniformName string, v [4]float32) {
	if !sanitize(&v) {
		s.Diagnose(glbuild.DiagFormat, "non-finite value replaced by zero")
	}
	if uniformName != "" && !glbuild.ValidIdentifier(uniformName) {
		s.Diagnose(glbuild.DiagFormat, "invalid uniform name %q, emitting literal", uniformName)
		return
	}
	if !liveUniform(uniformName, flags) {
		return
	}
	u := s.RegisterUniform(uniformName, glbuild.UniformVec4, 1)
	if u != nil {
		u.SetValue(v[:]...)
	}
}

func appendConstant(dst []byte, flags glbuild.Flags, uniformName string, v [4]float32, native, rt glbuild.ReturnType) []byte {
	if liveUniform(uniformName, flags) {
		return appendUniformRef(dst, uniformName, native, rt)
	}
	sanitize(&v)
	return glbuild.AppendLiteral(dst, v, native, rt)
}

// TimeNode outputs the elapsed time scaled by Speed, read from the builtin u_time uniform.
type TimeNode struct {
	Speed float32
}

// Time adds a time node. Speed scales the elapsed time in seconds.
func (bld *Builder) Time(speed float32) glbuild.NodeID {
	bld.checkFinite("Time", speed)
	return bld.graph.Add(&TimeNode{Speed: speed})
}

func (*TimeNode) NodeType() string { return "Time" }

func (*TimeNode) ForEachInput(fn func(slot string, input *glbuild.NodeID) error) error {
	return nil
}

func (tn *TimeNode) Generate(s glbuild.Settings, rt glbuild.ReturnType, flags glbuild.Flags) {
	if flags.Has(glbuild.FlagBakeUniforms) {
		return
	}
	// Engine provided, so it is owned by no node.
	s.Template.RegisterUniform(glbuild.NoNode, s.Stage, glbuild.UniformTime, glbuild.UniformVec4, 1)
}

func (tn *TimeNode) AppendReference(dst []byte, s glbuild.Settings, rt glbuild.ReturnType, flags glbuild.Flags) []byte {
	if flags.Has(glbuild.FlagBakeUniforms) {
		return glbuild.AppendDefault(dst, rt)
	}
	expr := make([]byte, 0, 32)
	if tn.Speed == 1 {
		expr = append(expr, glbuild.UniformTime+".x"...)
	} else {
		expr = append(expr, "("+glbuild.UniformTime+".x * "...)
		expr = glbuild.AppendFloat(expr, tn.Speed)
		expr = append(expr, ')')
	}
	return glbuild.AppendConvert(dst, expr, glbuild.ReturnFloat, rt)
}

// UVNode outputs the mesh texture coordinates: the vertex attribute in the
// vertex stage and the interpolated varying in the pixel stage.
type UVNode struct{}

// UV adds a texture coordinate node.
func (bld *Builder) UV() glbuild.NodeID {
	return bld.graph.Add(&UVNode{})
}

func (*UVNode) NodeType() string { return "UV" }

func (*UVNode) ForEachInput(fn func(slot string, input *glbuild.NodeID) error) error {
	return nil
}

// Generate is a no-op. Texture coordinates are declared by the template configuration.
func (*UVNode) Generate(s glbuild.Settings, rt glbuild.ReturnType, flags glbuild.Flags) {}

func (*UVNode) AppendReference(dst []byte, s glbuild.Settings, rt glbuild.ReturnType, flags glbuild.Flags) []byte {
	return appendTexCoord(dst, s.Stage, rt)
}

func appendTexCoord(dst []byte, stage glbuild.Stage, rt glbuild.ReturnType) []byte {
	name := glbuild.VaryingTexCoord
	if stage == glbuild.StageVertex {
		name = glbuild.AttribTexCoord
	}
	return glbuild.AppendConvert(dst, []byte(name), glbuild.ReturnVec2, rt)
}
