// Package glbuild compiles material node graphs into GLSL shader stages.
//
// A [Graph] owns a set of [Node]s linked by input slots. A [Template] walks
// the graph in dependency order, lets each node register uniforms and append
// header/body text, and composes the final per-stage source from the
// references each node produces.
package glbuild

import (
	"bytes"
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
)

const VersionStr = "#version 330 core\n"

// ReturnType is the GLSL type a node reference must resolve to.
type ReturnType uint8

const (
	ReturnFloat ReturnType = iota + 1
	ReturnVec2
	ReturnVec3
	ReturnVec4
)

// Arity returns the number of components of the type, or 0 for an invalid type.
func (rt ReturnType) Arity() int {
	if rt < ReturnFloat || rt > ReturnVec4 {
		return 0
	}
	return int(rt)
}

// Valid reports whether rt is one of the defined return types.
func (rt ReturnType) Valid() bool { return rt.Arity() != 0 }

// String returns the GLSL type name.
func (rt ReturnType) String() string {
	switch rt {
	case ReturnFloat:
		return "float"
	case ReturnVec2:
		return "vec2"
	case ReturnVec3:
		return "vec3"
	case ReturnVec4:
		return "vec4"
	}
	return "ReturnType(" + strconv.Itoa(int(rt)) + ")"
}

// ReturnTypeOf returns the return type with n components. Panics if n not in 1..4.
func ReturnTypeOf(n int) ReturnType {
	if n < 1 || n > 4 {
		panic("invalid component count " + strconv.Itoa(n))
	}
	return ReturnType(n)
}

// Stage is a shader pipeline phase compiled independently from the same graph.
type Stage uint8

const (
	StageVertex Stage = iota
	StagePixel
	numStages
)

// Stages lists all stages in compilation order.
var Stages = [numStages]Stage{StageVertex, StagePixel}

// String returns the glgl combined-source name of the stage.
func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StagePixel:
		return "fragment"
	}
	return "Stage(" + strconv.Itoa(int(s)) + ")"
}

func (s Stage) valid() bool { return s < numStages }

// Flags modify code emission during a compilation pass.
type Flags uint32

const (
	// FlagBakeUniforms makes nodes emit literal constants in place of uniforms.
	// Useful for visualizers that do not support binding values.
	FlagBakeUniforms Flags = 1 << iota
	// FlagDebugComments annotates body text with the node that emitted it.
	FlagDebugComments
)

// Has reports whether all bits of f2 are set in f.
func (f Flags) Has(f2 Flags) bool { return f&f2 == f2 }

const decimalDigits = 6

// AppendFloat appends v in fixed-point notation with 6 decimal digits, i.e. 0.5 is "0.500000".
// The format does not depend on locale. Non-finite values are written as zero, see [ValidFloat].
func AppendFloat(b []byte, v float32) []byte {
	if !ValidFloat(v) {
		v = 0
	}
	return strconv.AppendFloat(b, float64(v), 'f', decimalDigits, 32)
}

// AppendFloats appends the values separated by sep.
func AppendFloats(b []byte, sep string, s ...float32) []byte {
	for i, v := range s {
		b = AppendFloat(b, v)
		if i != len(s)-1 {
			b = append(b, sep...)
		}
	}
	return b
}

// ValidFloat reports whether v can be represented in GLSL source.
func ValidFloat(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}

// AppendLiteral appends a constant of type to built from the first from.Arity() components.
// A scalar is broadcast to all components. Missing components of a wider type are
// padded with zero except the fourth component which is padded with one.
func AppendLiteral(dst []byte, comps [4]float32, from, to ReturnType) []byte {
	n := to.Arity()
	if n == 1 {
		return AppendFloat(dst, comps[0])
	}
	dst = append(dst, to.String()...)
	dst = append(dst, '(')
	if from == ReturnFloat {
		dst = AppendFloat(dst, comps[0])
		return append(dst, ')')
	}
	for i := 0; i < n; i++ {
		v := comps[i]
		if i >= from.Arity() {
			v = padValue(i)
		}
		dst = AppendFloat(dst, v)
		if i != n-1 {
			dst = append(dst, ", "...)
		}
	}
	return append(dst, ')')
}

// AppendDefault appends the neutral zero literal for rt. It is used for
// disconnected inputs and for nodes not meaningful in the current stage.
func AppendDefault(dst []byte, rt ReturnType) []byte {
	return AppendLiteral(dst, [4]float32{}, ReturnFloat, rt)
}

// AppendConvert appends expr converted from type from to type to.
// Scalars are broadcast, narrowing selects leading components and widening
// pads with zero (and one for the fourth component). expr must not alias dst.
func AppendConvert(dst, expr []byte, from, to ReturnType) []byte {
	nf, nt := from.Arity(), to.Arity()
	switch {
	case nf == nt:
		return append(dst, expr...)
	case nf == 1:
		dst = append(dst, to.String()...)
		dst = append(dst, '(')
		dst = append(dst, expr...)
		return append(dst, ')')
	case nt < nf:
		return AppendSwizzle(dst, expr, components[:nt])
	}
	dst = append(dst, to.String()...)
	dst = append(dst, '(')
	dst = append(dst, expr...)
	for i := nf; i < nt; i++ {
		dst = append(dst, ", "...)
		dst = AppendFloat(dst, padValue(i))
	}
	return append(dst, ')')
}

const components = "xyzw"

// Components returns the swizzle selecting all components of rt, i.e. "xyz" for vec3.
func Components(rt ReturnType) string { return components[:rt.Arity()] }

func padValue(i int) float32 {
	if i == 3 {
		return 1
	}
	return 0
}

var swizzleSets = [...]string{"xyzw", "rgba", "stpq"}

// ParseSwizzle validates a GLSL swizzle mask of 1 to 4 components from a single
// component set (xyzw, rgba or stpq) and returns it normalized to xyzw
// along with the resulting type.
func ParseSwizzle(mask string) (normalized string, rt ReturnType, ok bool) {
	if len(mask) < 1 || len(mask) > 4 {
		return "", 0, false
	}
	for _, set := range swizzleSets {
		var buf [4]byte
		matched := true
		for i := 0; i < len(mask) && matched; i++ {
			idx := strings.IndexByte(set, mask[i])
			matched = idx >= 0
			if matched {
				buf[i] = components[idx]
			}
		}
		if matched {
			return string(buf[:len(mask)]), ReturnType(len(mask)), true
		}
	}
	return "", 0, false
}

// AppendSwizzle appends expr followed by the normalized swizzle mask,
// parenthesizing expr when needed. expr must not alias dst.
func AppendSwizzle(dst, expr []byte, mask string) []byte {
	if isPrimary(expr) {
		dst = append(dst, expr...)
	} else {
		dst = append(dst, '(')
		dst = append(dst, expr...)
		dst = append(dst, ')')
	}
	dst = append(dst, '.')
	return append(dst, mask...)
}

// isPrimary reports whether expr can take a swizzle suffix without parentheses:
// an identifier path (Tint, u_time.x), a single call/constructor (vec3(...), texture(...))
// or a fully parenthesized expression.
func isPrimary(expr []byte) bool {
	if len(expr) == 0 {
		return false
	}
	// Strip trailing field selections of calls, i.e: "f(a).xy".
	for {
		dot := bytes.LastIndexByte(expr, '.')
		if dot <= 0 || expr[dot-1] != ')' || !isIdentPath(expr[dot+1:]) {
			break
		}
		expr = expr[:dot]
	}
	if isIdentPath(expr) {
		return true
	}
	open := -1
	for i, c := range expr {
		if c == '(' {
			open = i
			break
		}
	}
	if open < 0 || expr[len(expr)-1] != ')' || (open > 0 && !isIdentPath(expr[:open])) {
		return false
	}
	depth := 0
	for i := open; i < len(expr); i++ {
		switch expr[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(expr)-1 {
				return false // i.e: "f(a) + g(b)".
			}
		}
	}
	return depth == 0
}

func isIdentPath(b []byte) bool {
	if len(b) == 0 || !isIdentStart(b[0]) {
		return false
	}
	for _, c := range b[1:] {
		if !isIdentStart(c) && !(c >= '0' && c <= '9') && c != '.' {
			return false
		}
	}
	return b[len(b)-1] != '.'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// ValidIdentifier reports whether name is usable as a GLSL identifier.
// Names starting with "gl_" are reserved.
func ValidIdentifier(name string) bool {
	if len(name) == 0 || !isIdentStart(name[0]) || (len(name) >= 3 && name[:3] == "gl_") {
		return false
	}
	for i := 1; i < len(name); i++ {
		c := name[i]
		if !isIdentStart(c) && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

func hash(b []byte, in uint64) uint64 {
	x := in
	for len(b) >= 8 {
		x ^= binary.LittleEndian.Uint64(b)
		x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
		x = (x ^ (x >> 27)) * 0x94d049bb133111eb
		x ^= x >> 31
		b = b[8:]
	}
	if len(b) > 0 {
		var buf [8]byte
		copy(buf[:], b)
		x ^= binary.LittleEndian.Uint64(buf[:])
		x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
		x = (x ^ (x >> 27)) * 0x94d049bb133111eb
		x ^= x >> 31
	}
	return x
}
