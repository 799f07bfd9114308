// Package matgraph implements the material node catalogue compiled by [glbuild.Template]
// and a [Builder] for authoring material graphs.
package matgraph

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/soypat/matgraph/glbuild"
)

// Builder adds material nodes to a graph and validates their parameters.
// Provides error handling strategies with panics or error accumulation during graph authoring.
type Builder struct {
	NoParameterPanic bool
	accumErrs        []error
	graph            glbuild.Graph
}

// Graph returns the graph nodes are added to.
func (bld *Builder) Graph() *glbuild.Graph { return &bld.graph }

// Err returns the accumulated parameter errors when NoParameterPanic is set.
func (bld *Builder) Err() error {
	if len(bld.accumErrs) == 0 {
		return nil
	}
	return errors.Join(bld.accumErrs...)
}

func (bld *Builder) paramErrorf(msg string, args ...any) {
	if !bld.NoParameterPanic {
		panic(fmt.Sprintf(msg, args...))
	}
	bld.accumErrs = append(bld.accumErrs, fmt.Errorf(msg, args...))
}

// checkInputs reports inputs not present in the graph. Disconnected inputs are valid.
func (bld *Builder) checkInputs(nodeType string, inputs ...glbuild.NodeID) {
	for i, id := range inputs {
		if id == glbuild.NoNode {
			continue
		}
		if _, ok := bld.graph.Node(id); !ok {
			bld.paramErrorf("%s input %d references missing node %d", nodeType, i, id)
		}
	}
}

func (bld *Builder) checkUniformName(nodeType, name string) {
	if name != "" && !glbuild.ValidIdentifier(name) {
		bld.paramErrorf("%s uniform name %q is not a valid GLSL identifier", nodeType, name)
	}
}

func (bld *Builder) checkFinite(nodeType string, v ...float32) {
	for _, f := range v {
		if !glbuild.ValidFloat(f) {
			bld.paramErrorf("%s got non-finite parameter %v", nodeType, f)
			return
		}
	}
}

// liveUniform reports whether a node with the given uniform name emits a uniform
// rather than a literal. Generate and AppendReference must agree on this.
func liveUniform(name string, flags glbuild.Flags) bool {
	return name != "" && !flags.Has(glbuild.FlagBakeUniforms) && glbuild.ValidIdentifier(name)
}

// appendUniformRef appends a reference to a vec4 uniform holding a value of type native, requested as rt.
func appendUniformRef(dst []byte, name string, native, rt glbuild.ReturnType) []byte {
	if native != glbuild.ReturnFloat && rt.Arity() <= native.Arity() {
		dst = append(dst, name...)
		if rt != glbuild.ReturnVec4 {
			dst = append(dst, '.')
			dst = append(dst, glbuild.Components(rt)...)
		}
		return dst
	}
	expr := make([]byte, 0, len(name)+5)
	expr = append(expr, name...)
	expr = append(expr, '.')
	expr = append(expr, glbuild.Components(native)...)
	return glbuild.AppendConvert(dst, expr, native, rt)
}

// appendCall appends fn(args...) where each argument is an input referenced as rt.
func appendCall(dst []byte, s glbuild.Settings, fn string, rt glbuild.ReturnType, args ...glbuild.NodeID) []byte {
	dst = append(dst, fn...)
	dst = append(dst, '(')
	for i, id := range args {
		if i > 0 {
			dst = append(dst, ", "...)
		}
		dst = s.AppendInput(dst, id, rt)
	}
	return append(dst, ')')
}

// sanitize replaces non-finite components with zero. Returns false if any component was replaced.
func sanitize(v *[4]float32) (ok bool) {
	ok = true
	for i, f := range v {
		if math32.IsNaN(f) || math32.IsInf(f, 0) {
			v[i] = 0
			ok = false
		}
	}
	return ok
}

func eachSlot(fn func(slot string, input *glbuild.NodeID) error, names []string, inputs ...*glbuild.NodeID) error {
	for i, in := range inputs {
		err := fn(names[i], in)
		if err != nil {
			return err
		}
	}
	return nil
}
