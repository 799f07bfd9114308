package matgraph

import (
	"github.com/soypat/matgraph/glbuild"
)

// BinaryOp is a component-wise arithmetic operation.
type BinaryOp uint8

const (
	OpAdd BinaryOp = iota
	OpSubtract
	OpMultiply
	OpDivide
)

func (op BinaryOp) String() string {
	switch op {
	case OpAdd:
		return "Add"
	case OpSubtract:
		return "Subtract"
	case OpMultiply:
		return "Multiply"
	case OpDivide:
		return "Divide"
	}
	return "BinaryOp?"
}

func (op BinaryOp) symbol() string {
	switch op {
	case OpAdd:
		return " + "
	case OpSubtract:
		return " - "
	case OpMultiply:
		return " * "
	case OpDivide:
		return " / "
	}
	return ""
}

// BinaryNode applies Op to its A and B inputs, both referenced with the type the node is requested as.
type BinaryNode struct {
	Op   BinaryOp
	A, B glbuild.NodeID
}

// Add adds a node computing a+b.
func (bld *Builder) Add(a, b glbuild.NodeID) glbuild.NodeID {
	return bld.binary(OpAdd, a, b)
}

// Sub adds a node computing a-b.
func (bld *Builder) Sub(a, b glbuild.NodeID) glbuild.NodeID {
	return bld.binary(OpSubtract, a, b)
}

// Mul adds a node computing the component-wise product a*b.
func (bld *Builder) Mul(a, b glbuild.NodeID) glbuild.NodeID {
	return bld.binary(OpMultiply, a, b)
}

// Div adds a node computing the component-wise quotient a/b.
func (bld *Builder) Div(a, b glbuild.NodeID) glbuild.NodeID {
	return bld.binary(OpDivide, a, b)
}

func (bld *Builder) binary(op BinaryOp, a, b glbuild.NodeID) glbuild.NodeID {
	bld.checkInputs(op.String(), a, b)
	return bld.graph.Add(&BinaryNode{Op: op, A: a, B: b})
}

func (bn *BinaryNode) NodeType() string { return bn.Op.String() }

var binarySlots = []string{"A", "B"}

func (bn *BinaryNode) ForEachInput(fn func(slot string, input *glbuild.NodeID) error) error {
	return eachSlot(fn, binarySlots, &bn.A, &bn.B)
}

func (*BinaryNode) Generate(s glbuild.Settings, rt glbuild.ReturnType, flags glbuild.Flags) {}

func (bn *BinaryNode) AppendReference(dst []byte, s glbuild.Settings, rt glbuild.ReturnType, flags glbuild.Flags) []byte {
	sym := bn.Op.symbol()
	if sym == "" {
		return glbuild.AppendDefault(dst, rt)
	}
	dst = append(dst, '(')
	dst = s.AppendInput(dst, bn.A, rt)
	dst = append(dst, sym...)
	dst = s.AppendInput(dst, bn.B, rt)
	return append(dst, ')')
}

// LerpNode linearly interpolates between A and B by the scalar T.
type LerpNode struct {
	A, B, T glbuild.NodeID
}

// Lerp adds a node computing mix(a, b, t).
func (bld *Builder) Lerp(a, b, t glbuild.NodeID) glbuild.NodeID {
	bld.checkInputs("Lerp", a, b, t)
	return bld.graph.Add(&LerpNode{A: a, B: b, T: t})
}

func (*LerpNode) NodeType() string { return "Lerp" }

var lerpSlots = []string{"A", "B", "T"}

func (ln *LerpNode) ForEachInput(fn func(slot string, input *glbuild.NodeID) error) error {
	return eachSlot(fn, lerpSlots, &ln.A, &ln.B, &ln.T)
}

func (*LerpNode) SlotType(slot string, rt glbuild.ReturnType) glbuild.ReturnType {
	if slot == "T" {
		return glbuild.ReturnFloat
	}
	return rt
}

func (*LerpNode) Generate(s glbuild.Settings, rt glbuild.ReturnType, flags glbuild.Flags) {}

func (ln *LerpNode) AppendReference(dst []byte, s glbuild.Settings, rt glbuild.ReturnType, flags glbuild.Flags) []byte {
	dst = append(dst, "mix("...)
	dst = s.AppendInput(dst, ln.A, rt)
	dst = append(dst, ", "...)
	dst = s.AppendInput(dst, ln.B, rt)
	dst = append(dst, ", "...)
	dst = s.AppendInput(dst, ln.T, glbuild.ReturnFloat)
	return append(dst, ')')
}

// UnaryFn is a component-wise function of a single argument.
type UnaryFn uint8

const (
	FnSin UnaryFn = iota
	FnCos
	FnAbs
	FnFract
	// FnSaturate clamps to [0, 1].
	FnSaturate
	// FnOneMinus computes 1-x.
	FnOneMinus
)

func (fn UnaryFn) String() string {
	switch fn {
	case FnSin:
		return "Sin"
	case FnCos:
		return "Cos"
	case FnAbs:
		return "Abs"
	case FnFract:
		return "Fract"
	case FnSaturate:
		return "Saturate"
	case FnOneMinus:
		return "OneMinus"
	}
	return "UnaryFn?"
}

// UnaryNode applies Fn to its X input.
type UnaryNode struct {
	Fn UnaryFn
	X  glbuild.NodeID
}

// Unary adds a node applying fn to x.
func (bld *Builder) Unary(fn UnaryFn, x glbuild.NodeID) glbuild.NodeID {
	if fn > FnOneMinus {
		bld.paramErrorf("invalid unary function %d", fn)
	}
	bld.checkInputs(fn.String(), x)
	return bld.graph.Add(&UnaryNode{Fn: fn, X: x})
}

// Sin adds a node computing sin(x).
func (bld *Builder) Sin(x glbuild.NodeID) glbuild.NodeID { return bld.Unary(FnSin, x) }

// Cos adds a node computing cos(x).
func (bld *Builder) Cos(x glbuild.NodeID) glbuild.NodeID { return bld.Unary(FnCos, x) }

// Abs adds a node computing abs(x).
func (bld *Builder) Abs(x glbuild.NodeID) glbuild.NodeID { return bld.Unary(FnAbs, x) }

// Fract adds a node computing the fractional part of x.
func (bld *Builder) Fract(x glbuild.NodeID) glbuild.NodeID { return bld.Unary(FnFract, x) }

// Saturate adds a node clamping x to [0, 1].
func (bld *Builder) Saturate(x glbuild.NodeID) glbuild.NodeID { return bld.Unary(FnSaturate, x) }

// OneMinus adds a node computing 1-x.
func (bld *Builder) OneMinus(x glbuild.NodeID) glbuild.NodeID { return bld.Unary(FnOneMinus, x) }

func (un *UnaryNode) NodeType() string { return un.Fn.String() }

func (un *UnaryNode) ForEachInput(fn func(slot string, input *glbuild.NodeID) error) error {
	return fn("X", &un.X)
}

func (*UnaryNode) Generate(s glbuild.Settings, rt glbuild.ReturnType, flags glbuild.Flags) {}

func (un *UnaryNode) AppendReference(dst []byte, s glbuild.Settings, rt glbuild.ReturnType, flags glbuild.Flags) []byte {
	switch un.Fn {
	case FnSin:
		return appendCall(dst, s, "sin", rt, un.X)
	case FnCos:
		return appendCall(dst, s, "cos", rt, un.X)
	case FnAbs:
		return appendCall(dst, s, "abs", rt, un.X)
	case FnFract:
		return appendCall(dst, s, "fract", rt, un.X)
	case FnSaturate:
		dst = append(dst, "clamp("...)
		dst = s.AppendInput(dst, un.X, rt)
		return append(dst, ", 0.000000, 1.000000)"...)
	case FnOneMinus:
		dst = append(dst, "(1.000000 - "...)
		dst = s.AppendInput(dst, un.X, rt)
		return append(dst, ')')
	}
	return glbuild.AppendDefault(dst, rt)
}

// SwizzleNode selects and reorders the components of its X input, referenced as a vec4.
type SwizzleNode struct {
	// Mask is a GLSL swizzle of 1 to 4 components from one of the xyzw, rgba or stpq sets.
	Mask string
	X    glbuild.NodeID
}

// Swizzle adds a component selection node, i.e. mask "zyx" reverses a color.
func (bld *Builder) Swizzle(x glbuild.NodeID, mask string) glbuild.NodeID {
	if _, _, ok := glbuild.ParseSwizzle(mask); !ok {
		bld.paramErrorf("invalid swizzle mask %q", mask)
	}
	bld.checkInputs("Swizzle", x)
	return bld.graph.Add(&SwizzleNode{Mask: mask, X: x})
}

func (*SwizzleNode) NodeType() string { return "Swizzle" }

func (sn *SwizzleNode) ForEachInput(fn func(slot string, input *glbuild.NodeID) error) error {
	return fn("X", &sn.X)
}

func (*SwizzleNode) SlotType(slot string, rt glbuild.ReturnType) glbuild.ReturnType {
	return glbuild.ReturnVec4
}

func (sn *SwizzleNode) Generate(s glbuild.Settings, rt glbuild.ReturnType, flags glbuild.Flags) {
	if _, _, ok := glbuild.ParseSwizzle(sn.Mask); !ok {
		s.Diagnose(glbuild.DiagFormat, "invalid swizzle mask %q", sn.Mask)
	}
}

func (sn *SwizzleNode) AppendReference(dst []byte, s glbuild.Settings, rt glbuild.ReturnType, flags glbuild.Flags) []byte {
	mask, native, ok := glbuild.ParseSwizzle(sn.Mask)
	if !ok {
		return glbuild.AppendDefault(dst, rt)
	}
	x := s.AppendInput(nil, sn.X, glbuild.ReturnVec4)
	expr := glbuild.AppendSwizzle(make([]byte, 0, len(x)+7), x, mask)
	return glbuild.AppendConvert(dst, expr, native, rt)
}

// CombineNode builds a vec4 from four scalar inputs.
type CombineNode struct {
	X, Y, Z, W glbuild.NodeID
}

// Combine adds a node computing vec4(x, y, z, w). Disconnected inputs are zero.
func (bld *Builder) Combine(x, y, z, w glbuild.NodeID) glbuild.NodeID {
	bld.checkInputs("Combine", x, y, z, w)
	return bld.graph.Add(&CombineNode{X: x, Y: y, Z: z, W: w})
}

func (*CombineNode) NodeType() string { return "Combine" }

var combineSlots = []string{"X", "Y", "Z", "W"}

func (cn *CombineNode) ForEachInput(fn func(slot string, input *glbuild.NodeID) error) error {
	return eachSlot(fn, combineSlots, &cn.X, &cn.Y, &cn.Z, &cn.W)
}

func (*CombineNode) SlotType(slot string, rt glbuild.ReturnType) glbuild.ReturnType {
	return glbuild.ReturnFloat
}

func (*CombineNode) Generate(s glbuild.Settings, rt glbuild.ReturnType, flags glbuild.Flags) {}

func (cn *CombineNode) AppendReference(dst []byte, s glbuild.Settings, rt glbuild.ReturnType, flags glbuild.Flags) []byte {
	if rt == glbuild.ReturnFloat {
		// Only the first component survives narrowing.
		return s.AppendInput(dst, cn.X, rt)
	}
	expr := appendCall(nil, s, "vec4", glbuild.ReturnFloat, cn.X, cn.Y, cn.Z, cn.W)
	return glbuild.AppendConvert(dst, expr, glbuild.ReturnVec4, rt)
}
