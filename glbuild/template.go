package glbuild

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
)

// TemplateConfig configures the fixed parts of each shader stage a [Template] emits
// around the text generated by nodes.
type TemplateConfig struct {
	// Version is the first line of every stage, i.e: "#version 330 core\n".
	Version string
	// Header contains per-stage declarations written before uniform declarations, such as
	// vertex attributes and varyings.
	Header [numStages]string
	// Prologue is written at the start of main, before node body text.
	Prologue [numStages]string
	// Epilogue is written at the end of main, after node body text.
	Epilogue [numStages]string
	// Builtins are registered before any node is generated. They are owned by [NoNode].
	Builtins []BuiltinUniform
}

// BuiltinUniform is a uniform provided by the engine rather than by material nodes.
type BuiltinUniform struct {
	Name  string
	Type  UniformType
	Count int
	Stage Stage
	Value []float32
}

// Names of varyings and builtin uniforms in the default template configuration.
const (
	VaryingTexCoord   = "v_texcoord0"
	AttribTexCoord    = "a_texcoord0"
	UniformModelViewP = "u_modelViewProj"
	UniformTime       = "u_time"
	// VertexPosition is the mutable local holding the object space vertex position in the vertex stage.
	VertexPosition = "position"
)

var identity4 = []float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

// DefaultTemplateConfig returns a configuration for a position+texcoord vertex layout
// transformed by [UniformModelViewP].
func DefaultTemplateConfig() TemplateConfig {
	var cfg TemplateConfig
	cfg.Version = VersionStr
	cfg.Header[StageVertex] = "in vec3 a_position;\nin vec2 " + AttribTexCoord + ";\nout vec2 " + VaryingTexCoord + ";\n"
	cfg.Prologue[StageVertex] = "\tvec3 " + VertexPosition + " = a_position;\n"
	cfg.Epilogue[StageVertex] = "\t" + VaryingTexCoord + " = " + AttribTexCoord + ";\n\tgl_Position = " + UniformModelViewP + " * vec4(" + VertexPosition + ", 1.0);\n"
	cfg.Header[StagePixel] = "in vec2 " + VaryingTexCoord + ";\n"
	cfg.Builtins = []BuiltinUniform{
		{Name: UniformModelViewP, Type: UniformMat4, Count: 1, Stage: StageVertex, Value: identity4},
	}
	return cfg
}

// Output designates a node whose reference is assigned to Target at the end of
// the stage body. Output nodes that write their own assignments leave Target empty.
type Output struct {
	Stage Stage
	Node  NodeID
	// Target is the assigned variable, i.e: "gl_FragColor". May be empty.
	Target string
	// Type of the assigned reference. Defaults to ReturnVec4.
	Type ReturnType
}

// AllStages returns an Output with no target for node id in every stage.
func AllStages(id NodeID) []Output {
	outs := make([]Output, len(Stages))
	for i, stage := range Stages {
		outs[i] = Output{Stage: stage, Node: id}
	}
	return outs
}

// Settings is the read-only context a [Template] passes to nodes during a compilation pass.
type Settings struct {
	Template *Template
	Stage    Stage
	Flags    Flags
	// Node is the ID of the node being generated or referenced.
	Node NodeID
}

// AppendInput appends the reference of the node with the given id as type rt.
// Disconnected or unresolved inputs append the default literal for rt.
func (s Settings) AppendInput(dst []byte, id NodeID, rt ReturnType) []byte {
	if s.Template == nil || s.Template.graph == nil || id == NoNode {
		return AppendDefault(dst, rt)
	}
	n, ok := s.Template.graph.Node(id)
	if !ok {
		return AppendDefault(dst, rt)
	}
	if s.Stage.valid() {
		if trt, ok := s.Template.temps[s.Stage][id]; ok {
			var buf [24]byte
			return AppendConvert(dst, appendTempName(buf[:0], id), trt, rt)
		}
	}
	child := s
	child.Node = id
	return n.AppendReference(dst, child, rt, s.Flags)
}

// appendTempName appends the name of the stage-local temporary holding the value of node id.
func appendTempName(dst []byte, id NodeID) []byte {
	dst = append(dst, "_t"...)
	return strconv.AppendUint(dst, uint64(id), 10)
}

// RegisterUniform registers a uniform owned by the node being generated. See [Template.RegisterUniform].
func (s Settings) RegisterUniform(name string, typ UniformType, count int) *UniformData {
	return s.Template.RegisterUniform(s.Node, s.Stage, name, typ, count)
}

// Diagnose records a recoverable problem for the node being generated.
func (s Settings) Diagnose(kind DiagnosticKind, format string, args ...any) {
	s.Template.diagnose(kind, s.Stage, s.Node, fmt.Sprintf(format, args...))
}

// SlotTyper is implemented by nodes whose inputs are referenced with a type
// different from the type the node itself is requested as.
// Nodes not implementing SlotTyper reference every input with their own requested type.
type SlotTyper interface {
	SlotType(slot string, rt ReturnType) ReturnType
}

type stageText struct {
	headers   []byte
	headerSet map[string]struct{}
	body      []byte
}

// Template accumulates the source code and uniforms of a compiled material.
// A Template is not safe for concurrent use. Distinct Templates share no state.
type Template struct {
	Name     string
	Uniforms UniformTable
	// Backend, if set, is notified of every uniform registration and binding.
	Backend Backend
	// Logger, if set, receives diagnostics and compilation summaries.
	Logger *slog.Logger
	// Flags are passed to every node during compilation.
	Flags Flags

	cfg       TemplateConfig
	stages    [numStages]stageText
	diags     []Diagnostic
	graph     *Graph
	generated [numStages]map[NodeID]bool
	// uses counts the references to each node in a stage. Nodes referenced
	// more than once are stored in a temporary, recorded in temps with its type.
	uses       [numStages]map[NodeID]int
	temps      [numStages]map[NodeID]ReturnType
	collisions map[collision]struct{}
	scratch    []byte
}

// collision identifies a pair of nodes registering the same uniform name.
type collision struct {
	name string
	a, b NodeID
}

// NewTemplate returns a template ready for compilation.
func NewTemplate(name string, cfg TemplateConfig) *Template {
	if cfg.Version == "" {
		cfg.Version = VersionStr
	}
	return &Template{Name: name, cfg: cfg}
}

// Config returns the template configuration.
func (t *Template) Config() TemplateConfig { return t.cfg }

var (
	errNilGraph     = errors.New("nil graph")
	errNoOutputs    = errors.New("no output nodes")
	errInvalidStage = errors.New("invalid stage")
)

// Compile walks g from the output nodes and generates the source of each stage.
// The template is reset beforehand so compiling an unchanged graph twice yields
// identical results. A cycle reachable from an output fails with a [*CycleError]
// before any node is generated. Recoverable problems are reported by [Template.Diagnostics].
func (t *Template) Compile(g *Graph, outs ...Output) error {
	t.Reset()
	if g == nil {
		return errNilGraph
	} else if len(outs) == 0 {
		return errNoOutputs
	}
	for _, out := range outs {
		if !out.Stage.valid() {
			return fmt.Errorf("%w %d for output node %d", errInvalidStage, out.Stage, out.Node)
		} else if out.Type != 0 && !out.Type.Valid() {
			return fmt.Errorf("invalid output type %d for node %d", out.Type, out.Node)
		}
	}
	err := checkCycles(g, outs)
	if err != nil {
		return err
	}
	t.graph = g
	for _, b := range t.cfg.Builtins {
		u := t.RegisterUniform(NoNode, b.Stage, b.Name, b.Type, b.Count)
		u.SetValue(b.Value...)
	}
	for _, stage := range Stages {
		t.countUses(stage, outs)
		for _, out := range outs {
			if out.Stage != stage {
				continue
			}
			rt := out.Type
			if rt == 0 {
				rt = ReturnVec4
			}
			t.visit(stage, out.Node, NoNode, rt)
			if out.Target == "" {
				continue
			}
			s := Settings{Template: t, Stage: stage, Flags: t.Flags, Node: NoNode}
			b := append(t.scratch[:0], '\t')
			b = append(b, out.Target...)
			b = append(b, " = "...)
			b = s.AppendInput(b, out.Node, rt)
			b = append(b, ";\n"...)
			t.AppendBody(stage, b)
			t.scratch = b
		}
	}
	t.BindUniforms()
	if t.Logger != nil {
		t.Logger.LogAttrs(context.Background(), slog.LevelDebug, "compiled material",
			slog.String("template", t.Name),
			slog.Int("nodes", g.Len()),
			slog.Int("uniforms", t.Uniforms.Len()),
			slog.Int("diagnostics", len(t.diags)),
		)
	}
	return nil
}

func (t *Template) visit(stage Stage, id, parent NodeID, rt ReturnType) {
	if id == NoNode {
		return
	}
	n, ok := t.graph.Node(id)
	if !ok {
		t.diagnose(DiagUnresolvedReference, stage, parent, fmt.Sprintf("input references missing node %d", id))
		return
	}
	gen := t.generated[stage]
	if gen == nil {
		gen = make(map[NodeID]bool)
		t.generated[stage] = gen
	}
	if gen[id] {
		return
	}
	gen[id] = true // Graph is acyclic at this point.
	typer, _ := n.(SlotTyper)
	n.ForEachInput(func(slot string, input *NodeID) error {
		crt := rt
		if typer != nil {
			crt = typer.SlotType(slot, rt)
		}
		t.visit(stage, *input, id, crt)
		return nil
	})
	if t.Flags.Has(FlagDebugComments) {
		t.AddBody(stage, "// "+t.graph.Name(id)+" node "+fmt.Sprint(id))
	}
	s := Settings{Template: t, Stage: stage, Flags: t.Flags, Node: id}
	n.Generate(s, rt, t.Flags)
	if t.uses[stage][id] > 1 && hasInputs(n) {
		// Shared composite nodes are evaluated once into a stage-local temporary.
		b := append(t.scratch[:0], '\t')
		b = append(b, rt.String()...)
		b = append(b, ' ')
		b = appendTempName(b, id)
		b = append(b, " = "...)
		b = n.AppendReference(b, s, rt, t.Flags)
		b = append(b, ";\n"...)
		t.AppendBody(stage, b)
		t.scratch = b
		if t.temps[stage] == nil {
			t.temps[stage] = make(map[NodeID]ReturnType)
		}
		t.temps[stage][id] = rt
	}
}

// countUses counts the references to every node reachable from the stage's outputs:
// one per connected input slot and one per output assigned to a target.
func (t *Template) countUses(stage Stage, outs []Output) {
	uses := t.uses[stage]
	if uses == nil {
		uses = make(map[NodeID]int)
		t.uses[stage] = uses
	}
	seen := make(map[NodeID]bool)
	var walk func(id NodeID)
	walk = func(id NodeID) {
		n, ok := t.graph.Node(id)
		if !ok || seen[id] {
			return
		}
		seen[id] = true
		n.ForEachInput(func(_ string, input *NodeID) error {
			if *input != NoNode {
				uses[*input]++
				walk(*input)
			}
			return nil
		})
	}
	for _, out := range outs {
		if out.Stage != stage {
			continue
		}
		if out.Target != "" {
			uses[out.Node]++
		}
		walk(out.Node)
	}
}

func hasInputs(n Node) bool {
	found := false
	n.ForEachInput(func(_ string, input *NodeID) error {
		found = found || *input != NoNode
		return nil
	})
	return found
}

const (
	white = iota // unvisited
	gray         // on the DFS stack
	black        // fully explored
)

// checkCycles performs a side-effect free DFS from every output. Unresolved references are ignored.
func checkCycles(g *Graph, outs []Output) error {
	state := make(map[NodeID]uint8)
	var path []NodeID
	var dfs func(id NodeID) error
	dfs = func(id NodeID) error {
		n, ok := g.Node(id)
		if !ok {
			return nil
		}
		switch state[id] {
		case black:
			return nil
		case gray:
			start := 0
			for i, pid := range path {
				if pid == id {
					start = i
					break
				}
			}
			cycle := append([]NodeID{}, path[start:]...)
			return &CycleError{Path: append(cycle, id)}
		}
		state[id] = gray
		path = append(path, id)
		err := n.ForEachInput(func(_ string, input *NodeID) error {
			return dfs(*input)
		})
		if err != nil {
			return err
		}
		path = path[:len(path)-1]
		state[id] = black
		return nil
	}
	for _, out := range outs {
		if err := dfs(out.Node); err != nil {
			return err
		}
	}
	return nil
}

// RegisterUniform registers a uniform used in stage by node owner and returns its entry.
// Registering a name already owned by owner with the same type and count returns the
// existing entry unchanged. Otherwise the entry is created or overwritten and,
// if a different node owned it, a [DiagUniformCollision] is recorded: the last registration wins.
// RegisterUniform returns nil for names that are not valid GLSL identifiers.
func (t *Template) RegisterUniform(owner NodeID, stage Stage, name string, typ UniformType, count int) *UniformData {
	if !ValidIdentifier(name) {
		t.diagnose(DiagFormat, stage, owner, fmt.Sprintf("invalid uniform name %q", name))
		return nil
	} else if !stage.valid() {
		panic(errInvalidStage)
	}
	u := t.Uniforms.Find(name)
	if u != nil && u.owner == owner && u.Type == typ && u.Count == count {
		u.stages |= 1 << stage
		return u
	}
	if u != nil && u.owner != owner {
		key := collision{name: name, a: min(owner, u.owner), b: max(owner, u.owner)}
		if _, seen := t.collisions[key]; !seen {
			if t.collisions == nil {
				t.collisions = make(map[collision]struct{})
			}
			t.collisions[key] = struct{}{}
			t.diagnose(DiagUniformCollision, stage, owner, fmt.Sprintf("uniform %q (%s) previously registered by node %d as %s", name, typ, u.owner, u.Type))
		}
	}
	stages := uint8(0)
	if u != nil {
		stages = u.stages
	}
	u = t.Uniforms.Add(name, typ, count)
	u.owner = owner
	u.stages = stages | 1<<stage
	if t.Backend != nil {
		h, err := t.Backend.RegisterUniform(name, typ, count)
		if err != nil {
			t.diagnose(DiagBackend, stage, owner, err.Error())
		}
		u.Handle = h
	}
	return u
}

// BindUniforms binds the current value of every registered uniform through the backend.
// Failed bindings are recorded as diagnostics and returned joined.
func (t *Template) BindUniforms() error {
	if t.Backend == nil {
		return nil
	}
	var errs []error
	t.Uniforms.ForEach(func(u *UniformData) bool {
		if u.Handle == InvalidHandle {
			return true
		}
		err := t.Backend.BindUniformValue(u.Handle, u.Value)
		if err != nil {
			err = fmt.Errorf("binding %q: %w", u.Name, err)
			t.diagnose(DiagBackend, StagePixel, u.owner, err.Error())
			errs = append(errs, err)
		}
		return true
	})
	return errors.Join(errs...)
}

// AddHeader appends line to the stage's header text unless an identical line was already added.
func (t *Template) AddHeader(stage Stage, line string) {
	st := &t.stages[stage]
	if _, dup := st.headerSet[line]; dup {
		return
	}
	if st.headerSet == nil {
		st.headerSet = make(map[string]struct{})
	}
	st.headerSet[line] = struct{}{}
	st.headers = append(st.headers, line...)
	if len(line) == 0 || line[len(line)-1] != '\n' {
		st.headers = append(st.headers, '\n')
	}
}

// AddHeaderf formats and adds a header line. See [Template.AddHeader].
func (t *Template) AddHeaderf(stage Stage, format string, args ...any) {
	t.AddHeader(stage, fmt.Sprintf(format, args...))
}

// AddBody appends an indented statement line to the stage's body text.
func (t *Template) AddBody(stage Stage, line string) {
	st := &t.stages[stage]
	st.body = append(st.body, '\t')
	st.body = append(st.body, line...)
	st.body = append(st.body, '\n')
}

// AppendBody appends raw text to the stage's body text.
func (t *Template) AppendBody(stage Stage, b []byte) {
	t.stages[stage].body = append(t.stages[stage].body, b...)
}

// AppendHeader appends the compiled header of the stage to dst: one declaration per
// uniform used in the stage followed by the header lines added by nodes.
func (t *Template) AppendHeader(dst []byte, stage Stage) []byte {
	t.Uniforms.ForEach(func(u *UniformData) bool {
		if u.UsedIn(stage) {
			dst = u.AppendDecl(dst)
		}
		return true
	})
	return append(dst, t.stages[stage].headers...)
}

// Header returns a copy of the compiled header text of the stage. See [Template.AppendHeader].
func (t *Template) Header(stage Stage) []byte { return t.AppendHeader(nil, stage) }

// Body returns a copy of the body text generated by nodes for the stage.
func (t *Template) Body(stage Stage) []byte {
	return append([]byte{}, t.stages[stage].body...)
}

// AppendStageSource appends the complete source of the stage to dst.
func (t *Template) AppendStageSource(dst []byte, stage Stage) []byte {
	dst = append(dst, t.cfg.Version...)
	dst = append(dst, t.cfg.Header[stage]...)
	dst = t.AppendHeader(dst, stage)
	dst = append(dst, "\nvoid main() {\n"...)
	dst = append(dst, t.cfg.Prologue[stage]...)
	dst = append(dst, t.stages[stage].body...)
	dst = append(dst, t.cfg.Epilogue[stage]...)
	dst = append(dst, "}\n"...)
	return dst
}

// WriteStage writes the complete source of the stage to w.
func (t *Template) WriteStage(w io.Writer, stage Stage) (int, error) {
	t.scratch = t.AppendStageSource(t.scratch[:0], stage)
	return w.Write(t.scratch)
}

// WriteCombined writes all stages in the glgl combined source format,
// each stage preceded by a "#shader <stage>" line.
func (t *Template) WriteCombined(w io.Writer) (n int, err error) {
	for _, stage := range Stages {
		b := append(t.scratch[:0], "#shader "...)
		b = append(b, stage.String()...)
		b = append(b, '\n')
		b = t.AppendStageSource(b, stage)
		t.scratch = b
		ngot, err := w.Write(b)
		n += ngot
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// SourceHash returns a hash of the complete source of all stages.
// Identical compilations yield identical hashes, which makes it usable as a program cache key.
func (t *Template) SourceHash() uint64 {
	var h uint64 = 0xff51afd7ed558ccd
	for _, stage := range Stages {
		t.scratch = t.AppendStageSource(t.scratch[:0], stage)
		h = hash(t.scratch, h)
	}
	return h
}

// Diagnostics returns a copy of the recoverable problems found during the last compilation.
func (t *Template) Diagnostics() []Diagnostic { return slices.Clone(t.diags) }

// Reset discards all compiled text, uniforms and diagnostics.
func (t *Template) Reset() {
	for i := range t.stages {
		st := &t.stages[i]
		st.headers = st.headers[:0]
		st.body = st.body[:0]
		clear(st.headerSet)
		clear(t.generated[i])
		clear(t.uses[i])
		clear(t.temps[i])
	}
	clear(t.collisions)
	t.Uniforms.Reset()
	t.diags = nil
	t.graph = nil
}

func (t *Template) diagnose(kind DiagnosticKind, stage Stage, node NodeID, msg string) {
	d := Diagnostic{Kind: kind, Stage: stage, Node: node, Message: msg}
	t.diags = append(t.diags, d)
	if t.Logger != nil {
		t.Logger.LogAttrs(context.Background(), slog.LevelWarn, "material diagnostic",
			slog.String("template", t.Name),
			slog.String("kind", kind.String()),
			slog.String("stage", stage.String()),
			slog.Uint64("node", uint64(node)),
			slog.String("msg", msg),
		)
	}
}
