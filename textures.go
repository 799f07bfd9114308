package matgraph

import (
	"strconv"

	"github.com/soypat/matgraph/glbuild"
)

// TextureNode samples the 2D texture bound to Unit. Texture sampling only
// has meaning in the pixel stage; in the vertex stage the node emits the default value.
type TextureNode struct {
	// Unit is the texture unit the sampler reads from.
	Unit int
	// Sampler is the sampler uniform name. Defaults to s_tex<Unit>.
	Sampler string
	// UV are the sampled coordinates. When disconnected the mesh texture coordinates are used.
	UV glbuild.NodeID
}

// Texture adds a texture sampling node reading from the given texture unit.
// An empty sampler name defaults to s_tex<unit>.
func (bld *Builder) Texture(unit int, sampler string, uv glbuild.NodeID) glbuild.NodeID {
	if unit < 0 {
		bld.paramErrorf("negative texture unit %d", unit)
	}
	bld.checkUniformName("Texture", sampler)
	bld.checkInputs("Texture", uv)
	return bld.graph.Add(&TextureNode{Unit: unit, Sampler: sampler, UV: uv})
}

// SamplerName returns the name of the sampler uniform.
func (tn *TextureNode) SamplerName() string {
	if tn.Sampler != "" {
		return tn.Sampler
	}
	return "s_tex" + strconv.Itoa(tn.Unit)
}

func (*TextureNode) NodeType() string { return "Texture" }

func (tn *TextureNode) ForEachInput(fn func(slot string, input *glbuild.NodeID) error) error {
	return fn("UV", &tn.UV)
}

func (*TextureNode) SlotType(slot string, rt glbuild.ReturnType) glbuild.ReturnType {
	return glbuild.ReturnVec2
}

func (tn *TextureNode) valid() bool {
	return tn.Unit >= 0 && glbuild.ValidIdentifier(tn.SamplerName())
}

func (tn *TextureNode) Generate(s glbuild.Settings, rt glbuild.ReturnType, flags glbuild.Flags) {
	if s.Stage != glbuild.StagePixel {
		return
	} else if !tn.valid() {
		s.Diagnose(glbuild.DiagFormat, "invalid sampler %q for texture unit %d", tn.SamplerName(), tn.Unit)
		return
	}
	u := s.RegisterUniform(tn.SamplerName(), glbuild.UniformSampler, 1)
	if u != nil {
		u.SetValue(float32(tn.Unit))
	}
}

func (tn *TextureNode) AppendReference(dst []byte, s glbuild.Settings, rt glbuild.ReturnType, flags glbuild.Flags) []byte {
	if s.Stage != glbuild.StagePixel || !tn.valid() {
		return glbuild.AppendDefault(dst, rt)
	}
	expr := make([]byte, 0, 64)
	expr = append(expr, "texture("...)
	expr = append(expr, tn.SamplerName()...)
	expr = append(expr, ", "...)
	if tn.UV == glbuild.NoNode {
		expr = appendTexCoord(expr, s.Stage, glbuild.ReturnVec2)
	} else {
		expr = s.AppendInput(expr, tn.UV, glbuild.ReturnVec2)
	}
	expr = append(expr, ')')
	return glbuild.AppendConvert(dst, expr, glbuild.ReturnVec4, rt)
}
