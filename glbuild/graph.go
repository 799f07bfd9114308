package glbuild

import (
	"errors"
	"fmt"
	"slices"
)

// NodeID identifies a node within its owning [Graph]. The zero value refers to no node.
type NodeID uint32

// NoNode is the zero NodeID. Input slots set to NoNode are disconnected.
const NoNode NodeID = 0

// Node is a single unit of a material graph that produces a typed shader expression.
//
// Code emission is split in two so a compiler may call Generate once per node and stage
// and AppendReference once per consuming edge.
type Node interface {
	// NodeType returns the type tag of the node, i.e: "Float", "Texture".
	NodeType() string
	// ForEachInput iterates over the node's named input slots. The slot value may be
	// modified through the pointer to connect or disconnect inputs.
	// Nodes with no inputs return nil without calling fn.
	ForEachInput(fn func(slot string, input *NodeID) error) error
	// Generate performs the side effects needed for the node to be referenced in
	// the settings' stage: registering uniforms and appending header or body text
	// to the template. Calling Generate more than once with identical settings
	// must not duplicate headers or uniforms.
	Generate(s Settings, rt ReturnType, flags Flags)
	// AppendReference appends the shader expression representing the node output
	// as type rt and returns the result. It must not register uniforms nor modify the template.
	AppendReference(dst []byte, s Settings, rt ReturnType, flags Flags) []byte
}

var (
	errNilNode     = errors.New("nil node")
	errUnknownSlot = errors.New("unknown input slot")
	errNoNode      = errors.New("node not found")
)

// Graph owns material nodes and the display names editors give them.
// Nodes reference their inputs by NodeID so removing a node leaves
// dangling references which compile to default values.
type Graph struct {
	nodes  map[NodeID]Node
	names  map[NodeID]string
	lastID NodeID
}

// Add adds n to the graph and returns its new ID. Panics if n is nil.
func (g *Graph) Add(n Node) NodeID {
	if n == nil {
		panic(errNilNode)
	}
	if g.nodes == nil {
		g.nodes = make(map[NodeID]Node)
	}
	g.lastID++
	g.nodes[g.lastID] = n
	return g.lastID
}

// Remove removes the node with the given ID from the graph. IDs are never reused.
// Returns false if the node was not in the graph.
func (g *Graph) Remove(id NodeID) bool {
	_, ok := g.nodes[id]
	if ok {
		delete(g.nodes, id)
		delete(g.names, id)
	}
	return ok
}

// Node returns the node with the given ID.
func (g *Graph) Node(id NodeID) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int { return len(g.nodes) }

// IDs returns the IDs of all nodes in ascending order.
func (g *Graph) IDs() []NodeID {
	ids := make([]NodeID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Connect sets the input slot of node dst to src. src need not be in the graph,
// in which case the reference is unresolved during compilation.
// Connect does not check for cycles, see [Template.Compile].
func (g *Graph) Connect(dst NodeID, slot string, src NodeID) error {
	ptr, err := g.slot(dst, slot)
	if err != nil {
		return err
	}
	*ptr = src
	return nil
}

// Disconnect clears the input slot of node dst.
func (g *Graph) Disconnect(dst NodeID, slot string) error {
	return g.Connect(dst, slot, NoNode)
}

// Input returns the node ID connected to the input slot of node dst.
func (g *Graph) Input(dst NodeID, slot string) (NodeID, error) {
	ptr, err := g.slot(dst, slot)
	if err != nil {
		return NoNode, err
	}
	return *ptr, nil
}

func (g *Graph) slot(dst NodeID, slot string) (*NodeID, error) {
	n, ok := g.nodes[dst]
	if !ok {
		return nil, fmt.Errorf("%w: %d", errNoNode, dst)
	}
	var found *NodeID
	n.ForEachInput(func(name string, input *NodeID) error {
		if name == slot && found == nil {
			found = input
		}
		return nil
	})
	if found == nil {
		return nil, fmt.Errorf("%w %q for %s node %d", errUnknownSlot, slot, n.NodeType(), dst)
	}
	return found, nil
}

// SetName sets the display name of the node. An empty name removes it.
func (g *Graph) SetName(id NodeID, name string) error {
	if _, ok := g.nodes[id]; !ok {
		return fmt.Errorf("%w: %d", errNoNode, id)
	}
	if name == "" {
		delete(g.names, id)
		return nil
	}
	if g.names == nil {
		g.names = make(map[NodeID]string)
	}
	g.names[id] = name
	return nil
}

// Name returns the display name of the node, or its type tag if none was set.
func (g *Graph) Name(id NodeID) string {
	if name, ok := g.names[id]; ok {
		return name
	}
	if n, ok := g.nodes[id]; ok {
		return n.NodeType()
	}
	return ""
}

// Dependents returns the IDs of nodes that have an input connected to id, in ascending order.
func (g *Graph) Dependents(id NodeID) []NodeID {
	var deps []NodeID
	for _, nid := range g.IDs() {
		g.nodes[nid].ForEachInput(func(_ string, input *NodeID) error {
			if *input == id && (len(deps) == 0 || deps[len(deps)-1] != nid) {
				deps = append(deps, nid)
			}
			return nil
		})
	}
	return deps
}
