package glbuild

import (
	"errors"
	"strconv"
)

// UniformType is the declared GLSL type of a uniform.
type UniformType uint8

const (
	UniformVec4 UniformType = iota + 1
	UniformMat3
	UniformMat4
	// UniformSampler is a 2D texture sampler. Its value is the texture unit.
	UniformSampler
)

// Components returns the number of floats needed to store a single element of the type.
func (ut UniformType) Components() int {
	switch ut {
	case UniformVec4:
		return 4
	case UniformMat3:
		return 9
	case UniformMat4:
		return 16
	case UniformSampler:
		return 1
	}
	return 0
}

// String returns the GLSL type name.
func (ut UniformType) String() string {
	switch ut {
	case UniformVec4:
		return "vec4"
	case UniformMat3:
		return "mat3"
	case UniformMat4:
		return "mat4"
	case UniformSampler:
		return "sampler2D"
	}
	return "UniformType(" + strconv.Itoa(int(ut)) + ")"
}

// UniformHandle is a backend handle to an allocated uniform.
type UniformHandle uint32

// InvalidHandle is the handle of uniforms not registered with a backend.
const InvalidHandle UniformHandle = 0

// Backend allocates uniforms and binds their values on the GPU side.
// Implementations are usually thread affine and must be called from the
// thread that owns the rendering context.
type Backend interface {
	// RegisterUniform returns a handle for the uniform. Registering the same
	// name and type twice returns the same handle.
	RegisterUniform(name string, typ UniformType, count int) (UniformHandle, error)
	// BindUniformValue sets the uniform value. value holds Components()*count floats.
	BindUniformValue(h UniformHandle, value []float32) error
}

// UniformData is a uniform declaration and its bound value.
type UniformData struct {
	Name  string
	Type  UniformType
	Count int
	// Value holds Type.Components()*Count floats.
	Value  []float32
	Handle UniformHandle
	// owner is the node that registered the uniform last. NoNode for builtin uniforms.
	owner  NodeID
	stages uint8
}

// Owner returns the ID of the node that registered the uniform last.
// Builtin uniforms are owned by [NoNode].
func (u *UniformData) Owner() NodeID { return u.owner }

// UsedIn reports whether the uniform was registered during compilation of stage.
func (u *UniformData) UsedIn(stage Stage) bool { return u.stages&(1<<stage) != 0 }

// SetValue copies v into the start of the value buffer. Remaining values are left untouched.
func (u *UniformData) SetValue(v ...float32) {
	copy(u.Value, v)
}

// Vec4 returns the first four components of the value. Missing components are zero.
func (u *UniformData) Vec4() (v [4]float32) {
	copy(v[:], u.Value)
	return v
}

// AppendDecl appends the GLSL declaration of the uniform, i.e: "uniform vec4 Tint;\n".
func (u *UniformData) AppendDecl(dst []byte) []byte {
	dst = append(dst, "uniform "...)
	dst = append(dst, u.Type.String()...)
	dst = append(dst, ' ')
	dst = append(dst, u.Name...)
	if u.Count > 1 {
		dst = append(dst, '[')
		dst = strconv.AppendInt(dst, int64(u.Count), 10)
		dst = append(dst, ']')
	}
	return append(dst, ";\n"...)
}

func (u *UniformData) reset(typ UniformType, count int) {
	n := typ.Components() * count
	if cap(u.Value) >= n {
		u.Value = u.Value[:n]
		clear(u.Value)
	} else {
		u.Value = make([]float32, n)
	}
	u.Type = typ
	u.Count = count
}

var (
	errEmptyUniformName = errors.New("empty uniform name")
	errBadUniformType   = errors.New("invalid uniform type")
)

// UniformTable holds the uniforms of a compiled material. Names are unique and
// insertion order is preserved.
type UniformTable struct {
	entries []*UniformData
	index   map[string]int
}

// Add returns a fresh entry for name. If an entry with the name already exists its
// type, count and value are overwritten and the existing entry is returned.
// Add panics on an empty name, invalid type or non-positive count.
func (ut *UniformTable) Add(name string, typ UniformType, count int) *UniformData {
	if name == "" {
		panic(errEmptyUniformName)
	} else if typ.Components() == 0 || count < 1 {
		panic(errBadUniformType)
	}
	if u := ut.Find(name); u != nil {
		u.reset(typ, count)
		return u
	}
	if ut.index == nil {
		ut.index = make(map[string]int)
	}
	u := &UniformData{Name: name}
	u.reset(typ, count)
	ut.index[name] = len(ut.entries)
	ut.entries = append(ut.entries, u)
	return u
}

// Find returns the uniform with the given name or nil if not found.
func (ut *UniformTable) Find(name string) *UniformData {
	idx, ok := ut.index[name]
	if !ok {
		return nil
	}
	return ut.entries[idx]
}

// Len returns the number of uniforms in the table.
func (ut *UniformTable) Len() int { return len(ut.entries) }

// ForEach calls fn for every uniform in insertion order until fn returns false.
func (ut *UniformTable) ForEach(fn func(u *UniformData) bool) {
	for _, u := range ut.entries {
		if !fn(u) {
			return
		}
	}
}

// Reset removes all uniforms from the table.
func (ut *UniformTable) Reset() {
	clear(ut.entries)
	ut.entries = ut.entries[:0]
	clear(ut.index)
}
