package matgraph

import (
	"github.com/soypat/matgraph/glbuild"
)

// SurfaceMode selects the pixel stage outputs a [SurfaceNode] writes.
type SurfaceMode uint8

const (
	// SurfaceForward writes the lit color to o_color.
	SurfaceForward SurfaceMode = iota
	// SurfaceDeferred writes a G-buffer: o_albedo, o_normal and o_matinfo.
	SurfaceDeferred
)

func (m SurfaceMode) String() string {
	switch m {
	case SurfaceForward:
		return "forward"
	case SurfaceDeferred:
		return "deferred"
	}
	return "SurfaceMode?"
}

// Pixel stage outputs written by surface nodes.
const (
	OutColor   = "o_color"
	OutAlbedo  = "o_albedo"
	OutNormal  = "o_normal"
	OutMatInfo = "o_matinfo"
)

// SurfaceNode is the output node of a material. It writes the stage outputs
// itself so it is compiled with outputs that have no target, see [glbuild.AllStages].
// Disconnected slots take the surface defaults: white color, +Z normal,
// no metalness, 0.5 roughness, no emission, opaque and no vertex offset.
type SurfaceNode struct {
	Mode        SurfaceMode
	Color       glbuild.NodeID
	Normal      glbuild.NodeID
	Metallic    glbuild.NodeID
	Roughness   glbuild.NodeID
	Emissive    glbuild.NodeID
	Opacity     glbuild.NodeID
	WorldOffset glbuild.NodeID
}

// SurfaceInputs are the slot connections of a surface node.
type SurfaceInputs struct {
	Color, Normal, Metallic, Roughness, Emissive, Opacity, WorldOffset glbuild.NodeID
}

// Surface adds a material output node.
func (bld *Builder) Surface(mode SurfaceMode, in SurfaceInputs) glbuild.NodeID {
	if mode > SurfaceDeferred {
		bld.paramErrorf("invalid surface mode %d", mode)
	}
	bld.checkInputs("Surface", in.Color, in.Normal, in.Metallic, in.Roughness, in.Emissive, in.Opacity, in.WorldOffset)
	return bld.graph.Add(&SurfaceNode{
		Mode:        mode,
		Color:       in.Color,
		Normal:      in.Normal,
		Metallic:    in.Metallic,
		Roughness:   in.Roughness,
		Emissive:    in.Emissive,
		Opacity:     in.Opacity,
		WorldOffset: in.WorldOffset,
	})
}

func (*SurfaceNode) NodeType() string { return "Surface" }

var surfaceSlots = []string{"Color", "Normal", "Metallic", "Roughness", "Emissive", "Opacity", "WorldOffset"}

func (sn *SurfaceNode) ForEachInput(fn func(slot string, input *glbuild.NodeID) error) error {
	return eachSlot(fn, surfaceSlots, &sn.Color, &sn.Normal, &sn.Metallic, &sn.Roughness, &sn.Emissive, &sn.Opacity, &sn.WorldOffset)
}

func (*SurfaceNode) SlotType(slot string, rt glbuild.ReturnType) glbuild.ReturnType {
	switch slot {
	case "Metallic", "Roughness", "Opacity":
		return glbuild.ReturnFloat
	}
	return glbuild.ReturnVec3
}

// surfaceDefault returns the value of a disconnected slot.
func surfaceDefault(slot string) [4]float32 {
	switch slot {
	case "Color", "Opacity":
		return [4]float32{1, 1, 1, 1}
	case "Normal":
		return [4]float32{0, 0, 1}
	case "Roughness":
		return [4]float32{0.5}
	}
	return [4]float32{}
}

func (sn *SurfaceNode) appendSlot(dst []byte, s glbuild.Settings, slot string, id glbuild.NodeID) []byte {
	rt := sn.SlotType(slot, glbuild.ReturnVec4)
	if id == glbuild.NoNode {
		return glbuild.AppendLiteral(dst, surfaceDefault(slot), rt, rt)
	}
	return s.AppendInput(dst, id, rt)
}

func (sn *SurfaceNode) Generate(s glbuild.Settings, rt glbuild.ReturnType, flags glbuild.Flags) {
	t := s.Template
	var line []byte
	if s.Stage == glbuild.StageVertex {
		if sn.WorldOffset != glbuild.NoNode {
			line = append(line, glbuild.VertexPosition+" += "...)
			line = sn.appendSlot(line, s, "WorldOffset", sn.WorldOffset)
			line = append(line, ';')
			t.AddBody(s.Stage, string(line))
		}
		return
	}
	switch sn.Mode {
	case SurfaceDeferred:
		t.AddHeader(s.Stage, "layout(location = 0) out vec4 "+OutAlbedo+";")
		t.AddHeader(s.Stage, "layout(location = 1) out vec4 "+OutNormal+";")
		t.AddHeader(s.Stage, "layout(location = 2) out vec4 "+OutMatInfo+";")
		line = append(line, OutAlbedo+" = "...)
		line = sn.appendColor(line, s)
		t.AddBody(s.Stage, string(append(line, ';')))

		line = append(line[:0], OutNormal+" = vec4(normalize("...)
		line = sn.appendSlot(line, s, "Normal", sn.Normal)
		line = append(line, ") * 0.500000 + 0.500000, 1.000000);"...)
		t.AddBody(s.Stage, string(line))

		line = append(line[:0], OutMatInfo+" = vec4("...)
		line = sn.appendSlot(line, s, "Metallic", sn.Metallic)
		line = append(line, ", "...)
		line = sn.appendSlot(line, s, "Roughness", sn.Roughness)
		line = append(line, ", 0.000000, 1.000000);"...)
		t.AddBody(s.Stage, string(line))
	default:
		t.AddHeader(s.Stage, "layout(location = 0) out vec4 "+OutColor+";")
		line = append(line, OutColor+" = "...)
		line = sn.appendColor(line, s)
		t.AddBody(s.Stage, string(append(line, ';')))
	}
}

// appendColor appends the emitted color: vec4(Color + Emissive, Opacity).
func (sn *SurfaceNode) appendColor(dst []byte, s glbuild.Settings) []byte {
	dst = append(dst, "vec4("...)
	dst = sn.appendSlot(dst, s, "Color", sn.Color)
	if sn.Emissive != glbuild.NoNode {
		dst = append(dst, " + "...)
		dst = sn.appendSlot(dst, s, "Emissive", sn.Emissive)
	}
	dst = append(dst, ", "...)
	dst = sn.appendSlot(dst, s, "Opacity", sn.Opacity)
	return append(dst, ')')
}

// AppendReference appends the emitted color so surfaces can be previewed as regular nodes.
func (sn *SurfaceNode) AppendReference(dst []byte, s glbuild.Settings, rt glbuild.ReturnType, flags glbuild.Flags) []byte {
	if s.Stage != glbuild.StagePixel {
		return glbuild.AppendDefault(dst, rt)
	}
	return glbuild.AppendConvert(dst, sn.appendColor(nil, s), glbuild.ReturnVec4, rt)
}
