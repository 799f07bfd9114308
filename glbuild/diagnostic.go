package glbuild

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrGraphCycle is returned by [Template.Compile] when a node is reachable from itself.
var ErrGraphCycle = errors.New("material graph cycle")

// CycleError describes a directed cycle found during compilation.
type CycleError struct {
	// Path starts and ends at the re-entered node.
	Path []NodeID
}

func (e *CycleError) Error() string {
	var sb strings.Builder
	sb.WriteString(ErrGraphCycle.Error())
	sb.WriteString(": ")
	for i, id := range e.Path {
		if i > 0 {
			sb.WriteString(" -> ")
		}
		sb.WriteString(strconv.FormatUint(uint64(id), 10))
	}
	return sb.String()
}

func (e *CycleError) Unwrap() error { return ErrGraphCycle }

// DiagnosticKind classifies recoverable compilation problems.
type DiagnosticKind uint8

const (
	// DiagUnresolvedReference: an input slot points to a node not in the graph.
	// The input is replaced by the default literal.
	DiagUnresolvedReference DiagnosticKind = iota + 1
	// DiagUniformCollision: two distinct nodes registered the same uniform name.
	// The last registration wins.
	DiagUniformCollision
	// DiagFormat: a node parameter could not be represented in shader source
	// and was replaced by a safe default.
	DiagFormat
	// DiagBackend: the backend failed to register or bind a uniform.
	DiagBackend
)

func (k DiagnosticKind) String() string {
	switch k {
	case DiagUnresolvedReference:
		return "unresolved reference"
	case DiagUniformCollision:
		return "uniform name collision"
	case DiagFormat:
		return "format"
	case DiagBackend:
		return "backend"
	}
	return "DiagnosticKind(" + strconv.Itoa(int(k)) + ")"
}

// Diagnostic is a recoverable problem found during compilation.
type Diagnostic struct {
	Kind  DiagnosticKind
	Stage Stage
	// Node is the node being compiled when the problem was found.
	Node    NodeID
	Message string
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s stage node %d: %s: %s", d.Stage, d.Node, d.Kind, d.Message)
}
