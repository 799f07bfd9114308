//go:build tinygo || !cgo

package gleval

import (
	"errors"

	"github.com/soypat/matgraph/glbuild"
)

var errNoCGO = errors.New("GPU evaluation requires CGo and is not supported on TinyGo")

// Init1x1GLFW starts a 1x1 sized GLFW window so that user can start working with GPU.
func Init1x1GLFW() (terminate func(), err error) {
	return nil, errNoCGO
}

// CompileTemplate compiles a template into a GL program.
func CompileTemplate(t *glbuild.Template) (*Program, error) {
	return nil, errNoCGO
}

// Program is a linked GL shader program.
type Program struct{}

func (p *Program) Bind()   {}
func (p *Program) Unbind() {}
func (p *Program) Delete() {}

// AttribLocation returns the location of a vertex attribute.
func (p *Program) AttribLocation(name string) (uint32, error) {
	return 0, errNoCGO
}

// GLBackend implements [glbuild.Backend] over GL program uniforms.
type GLBackend struct{}

// RegisterUniform implements [glbuild.Backend].
func (b *GLBackend) RegisterUniform(name string, typ glbuild.UniformType, count int) (glbuild.UniformHandle, error) {
	return glbuild.InvalidHandle, errNoCGO
}

// BindUniformValue implements [glbuild.Backend].
func (b *GLBackend) BindUniformValue(h glbuild.UniformHandle, value []float32) error {
	return errNoCGO
}

// Link resolves uniform locations in prog and uploads the last bound values.
func (b *GLBackend) Link(prog *Program) error {
	return errNoCGO
}
