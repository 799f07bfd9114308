package matgraph

import (
	"errors"
	"fmt"
	"slices"

	"github.com/soypat/matgraph/glbuild"
)

// ParamKind is the kind of an editable node parameter.
type ParamKind uint8

const (
	ParamFloat ParamKind = iota + 1
	ParamVector
	ParamString
	ParamInt
	ParamEnum
)

// ParamInfo describes an editable node parameter for external tooling.
type ParamInfo struct {
	Name string
	Kind ParamKind
	// Options lists the accepted values of ParamEnum parameters.
	Options []string
}

// NodeInfo describes a node type for editors: its input slots in iteration order,
// its native output type and editable parameters.
type NodeInfo struct {
	Type   string
	Slots  []string
	Output glbuild.ReturnType
	Params []ParamInfo
}

var (
	uniformParam = ParamInfo{Name: "UniformName", Kind: ParamString}
	unarySlots   = []string{"X"}
)

var schema = []NodeInfo{
	{Type: "Abs", Slots: unarySlots},
	{Type: "Add", Slots: binarySlots},
	{Type: "Combine", Slots: combineSlots, Output: glbuild.ReturnVec4},
	{Type: "Cos", Slots: unarySlots},
	{Type: "Divide", Slots: binarySlots},
	{Type: "Float", Output: glbuild.ReturnFloat, Params: []ParamInfo{uniformParam, {Name: "Value", Kind: ParamFloat}}},
	{Type: "Fract", Slots: unarySlots},
	{Type: "Lerp", Slots: lerpSlots},
	{Type: "Multiply", Slots: binarySlots},
	{Type: "OneMinus", Slots: unarySlots},
	{Type: "Saturate", Slots: unarySlots},
	{Type: "Sin", Slots: unarySlots},
	{Type: "Subtract", Slots: binarySlots},
	{Type: "Surface", Slots: surfaceSlots, Output: glbuild.ReturnVec4, Params: []ParamInfo{
		{Name: "Mode", Kind: ParamEnum, Options: []string{SurfaceForward.String(), SurfaceDeferred.String()}},
	}},
	{Type: "Swizzle", Slots: unarySlots, Params: []ParamInfo{{Name: "Mask", Kind: ParamString}}},
	{Type: "Texture", Slots: []string{"UV"}, Output: glbuild.ReturnVec4, Params: []ParamInfo{
		{Name: "Unit", Kind: ParamInt}, {Name: "Sampler", Kind: ParamString},
	}},
	{Type: "Time", Output: glbuild.ReturnFloat, Params: []ParamInfo{{Name: "Speed", Kind: ParamFloat}}},
	{Type: "UV", Output: glbuild.ReturnVec2},
	{Type: "Vec2", Output: glbuild.ReturnVec2, Params: []ParamInfo{uniformParam, {Name: "Value", Kind: ParamVector}}},
	{Type: "Vec3", Output: glbuild.ReturnVec3, Params: []ParamInfo{uniformParam, {Name: "Value", Kind: ParamVector}}},
	{Type: "Vec4", Output: glbuild.ReturnVec4, Params: []ParamInfo{uniformParam, {Name: "Value", Kind: ParamVector}}},
}

// Schema returns the description of every node type sorted by type tag.
// Nodes with a zero Output take the type they are requested as.
func Schema() []NodeInfo {
	return slices.Clone(schema)
}

// LookupNode returns the description of the node type with the given tag.
func LookupNode(tag string) (NodeInfo, bool) {
	idx, found := slices.BinarySearchFunc(schema, tag, func(info NodeInfo, tag string) int {
		switch {
		case info.Type < tag:
			return -1
		case info.Type > tag:
			return 1
		}
		return 0
	})
	if !found {
		return NodeInfo{}, false
	}
	return schema[idx], true
}

var errUnknownNodeType = errors.New("unknown node type")

// NewNode returns a disconnected node of the type with the given tag and default parameters.
func NewNode(tag string) (glbuild.Node, error) {
	switch tag {
	case "Float":
		return &FloatNode{}, nil
	case "Vec2":
		return &VectorNode{Dim: glbuild.ReturnVec2}, nil
	case "Vec3":
		return &VectorNode{Dim: glbuild.ReturnVec3}, nil
	case "Vec4":
		return &VectorNode{Dim: glbuild.ReturnVec4}, nil
	case "Time":
		return &TimeNode{Speed: 1}, nil
	case "UV":
		return &UVNode{}, nil
	case "Texture":
		return &TextureNode{}, nil
	case "Lerp":
		return &LerpNode{}, nil
	case "Swizzle":
		return &SwizzleNode{Mask: "xyzw"}, nil
	case "Combine":
		return &CombineNode{}, nil
	case "Surface":
		return &SurfaceNode{}, nil
	}
	for op := OpAdd; op <= OpDivide; op++ {
		if op.String() == tag {
			return &BinaryNode{Op: op}, nil
		}
	}
	for fn := FnSin; fn <= FnOneMinus; fn++ {
		if fn.String() == tag {
			return &UnaryNode{Fn: fn}, nil
		}
	}
	return nil, fmt.Errorf("%w %q", errUnknownNodeType, tag)
}
