//go:build !tinygo && cgo

package gleval

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/soypat/glgl/v4.6-core/glgl"
	"github.com/soypat/matgraph/glbuild"
)

// Init1x1GLFW starts a 1x1 sized GLFW window so that user can start working with GPU.
// It returns a termination function that should be called when user is done running loads on GPU.
func Init1x1GLFW() (terminate func(), err error) {
	_, terminate, err = glgl.InitWithCurrentWindow33(glgl.WindowConfig{
		Title:   "matgraph",
		Version: [2]int{4, 6},
		Width:   1,
		Height:  1,
	})
	return terminate, err
}

// CompileTemplate compiles the vertex and fragment stages of a compiled template
// into a GL program and links the template's GL backend, if any, to it.
func CompileTemplate(t *glbuild.Template) (*Program, error) {
	var buf bytes.Buffer
	_, err := t.WriteCombined(&buf)
	if err != nil {
		return nil, err
	}
	source := buf.String()
	combined, err := glgl.ParseCombined(&buf)
	if err != nil {
		return nil, err
	}
	prog, err := glgl.CompileProgram(combined)
	if err != nil {
		return nil, errors.New(source + "\n" + err.Error())
	}
	p := &Program{prog: prog}
	if backend, ok := t.Backend.(*GLBackend); ok {
		err = backend.Link(p)
		if err != nil {
			prog.Delete()
			return nil, err
		}
	}
	return p, nil
}

// Program is a linked GL shader program.
type Program struct {
	prog glgl.Program
}

func (p *Program) Bind()   { p.prog.Bind() }
func (p *Program) Unbind() { p.prog.Unbind() }
func (p *Program) Delete() { p.prog.Delete() }

// AttribLocation returns the location of a vertex attribute.
func (p *Program) AttribLocation(name string) (uint32, error) {
	return p.prog.AttribLocation(name + "\x00")
}

func (p *Program) uniformLocation(name string) (int32, error) {
	return p.prog.UniformLocation(name + "\x00")
}

// GLBackend implements [glbuild.Backend] over GL program uniforms. Uniforms
// registered before the program exists are uploaded once it is linked with [GLBackend.Link].
// GLBackend must be used from the thread owning the GL context.
type GLBackend struct {
	uniforms []glUniform
	byName   map[string]glbuild.UniformHandle
	prog     *Program
}

type glUniform struct {
	name  string
	typ   glbuild.UniformType
	count int
	loc   int32
	value []float32
}

var errInvalidHandle = errors.New("invalid uniform handle")

// RegisterUniform implements [glbuild.Backend]. Registering the same name returns the same handle.
func (b *GLBackend) RegisterUniform(name string, typ glbuild.UniformType, count int) (glbuild.UniformHandle, error) {
	if b.byName == nil {
		b.byName = make(map[string]glbuild.UniformHandle)
	}
	h, ok := b.byName[name]
	if !ok {
		b.uniforms = append(b.uniforms, glUniform{name: name, loc: -1})
		h = glbuild.UniformHandle(len(b.uniforms))
		b.byName[name] = h
	}
	u := &b.uniforms[h-1]
	u.typ = typ
	u.count = count
	if b.prog != nil {
		loc, err := b.prog.uniformLocation(name)
		if err != nil {
			return h, err
		}
		u.loc = loc
	}
	return h, nil
}

// BindUniformValue implements [glbuild.Backend].
func (b *GLBackend) BindUniformValue(h glbuild.UniformHandle, value []float32) error {
	if h == glbuild.InvalidHandle || int(h) > len(b.uniforms) {
		return errInvalidHandle
	}
	u := &b.uniforms[h-1]
	if len(value) < u.typ.Components()*u.count {
		return fmt.Errorf("uniform %q: short value buffer", u.name)
	}
	u.value = append(u.value[:0], value...)
	if b.prog == nil {
		return nil
	}
	b.prog.Bind()
	defer b.prog.Unbind()
	return b.upload(u)
}

// Link resolves uniform locations in prog and uploads the last bound values.
func (b *GLBackend) Link(prog *Program) error {
	b.prog = prog
	prog.Bind()
	defer prog.Unbind()
	var errs []error
	for i := range b.uniforms {
		u := &b.uniforms[i]
		loc, err := prog.uniformLocation(u.name)
		if err != nil {
			// Uniforms optimized out by the GLSL compiler have no location.
			u.loc = -1
			continue
		}
		u.loc = loc
		if u.value != nil {
			errs = append(errs, b.upload(u))
		}
	}
	return errors.Join(errs...)
}

func (b *GLBackend) upload(u *glUniform) error {
	if u.loc < 0 {
		return nil
	}
	n := int32(u.count)
	switch u.typ {
	case glbuild.UniformVec4:
		gl.Uniform4fv(u.loc, n, &u.value[0])
	case glbuild.UniformMat3:
		gl.UniformMatrix3fv(u.loc, n, false, &u.value[0])
	case glbuild.UniformMat4:
		gl.UniformMatrix4fv(u.loc, n, false, &u.value[0])
	case glbuild.UniformSampler:
		gl.Uniform1i(u.loc, int32(u.value[0]))
	default:
		return fmt.Errorf("uniform %q: unsupported type %s", u.name, u.typ)
	}
	return glgl.Err()
}
