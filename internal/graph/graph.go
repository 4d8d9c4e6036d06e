package graph

import (
	"fmt"
	"slices"

	"github.com/StitchDesign/Stitch-sub007/internal/value"
)

// NodeID identifies a node. Ids are stable for the node's lifetime.
type NodeID string

// EvalKind distinguishes nodes whose outputs depend only on their inputs
// from nodes that also depend on time or ephemeral state.
type EvalKind uint8

const (
	Pure EvalKind = iota
	Impure
)

func (k EvalKind) String() string {
	if k == Impure {
		return "impure"
	}
	return "pure"
}

// OutputRef addresses an output port.
type OutputRef struct {
	Node  NodeID
	Index int
}

func (r OutputRef) String() string { return fmt.Sprintf("%s.out%d", r.Node, r.Index) }

// InputRef addresses an input port.
type InputRef struct {
	Node  NodeID
	Index int
}

func (r InputRef) String() string { return fmt.Sprintf("%s.in%d", r.Node, r.Index) }

// PortSpec declares one port of a new node.
type PortSpec struct {
	Label   string
	Kind    value.Kind
	Default value.Loop
}

// NodeSpec declares a new node.
type NodeSpec struct {
	Kind    string
	Eval    EvalKind
	Inputs  []PortSpec
	Outputs []PortSpec
}

type port struct {
	label  string
	kind   value.Kind
	values value.Loop
}

// Node is a read-only view of a node. Values returned by its accessors are
// copies; only Graph methods mutate a node.
type Node struct {
	id      NodeID
	kind    string
	seq     int64
	eval    EvalKind
	inputs  []port
	outputs []port
}

func (n *Node) ID() NodeID         { return n.id }
func (n *Node) Kind() string       { return n.kind }
func (n *Node) EvalKind() EvalKind { return n.eval }

// Seq is the node's creation order. The scheduler breaks ordering ties by
// it.
func (n *Node) Seq() int64 { return n.seq }

func (n *Node) NumInputs() int  { return len(n.inputs) }
func (n *Node) NumOutputs() int { return len(n.outputs) }

func (n *Node) InputKind(i int) value.Kind  { return n.inputs[i].kind }
func (n *Node) OutputKind(i int) value.Kind { return n.outputs[i].kind }
func (n *Node) InputLabel(i int) string     { return n.inputs[i].label }
func (n *Node) OutputLabel(i int) string    { return n.outputs[i].label }
func (n *Node) Input(i int) value.Loop      { return n.inputs[i].values.Clone() }
func (n *Node) Output(i int) value.Loop     { return n.outputs[i].values.Clone() }
func (n *Node) hasInput(i int) bool         { return i >= 0 && i < len(n.inputs) }
func (n *Node) hasOutput(i int) bool        { return i >= 0 && i < len(n.outputs) }

// Inputs returns copies of every input loop in port order.
func (n *Node) Inputs() []value.Loop {
	out := make([]value.Loop, len(n.inputs))
	for i := range n.inputs {
		out[i] = n.inputs[i].values.Clone()
	}
	return out
}

// Outputs returns copies of every output loop in port order.
func (n *Node) Outputs() []value.Loop {
	out := make([]value.Loop, len(n.outputs))
	for i := range n.outputs {
		out[i] = n.outputs[i].values.Clone()
	}
	return out
}

// Graph owns every node and the connection table. Nodes live in an arena
// keyed by id; connections reference ports by id and index, never by
// pointer.
//
// Graph is not safe for concurrent use. The engine confines it to its
// evaluation actor.
type Graph struct {
	ids   IDGenerator
	nodes map[NodeID]*Node
	seq   int64

	// edges maps each connected input to the output feeding it. An input
	// has at most one upstream.
	edges map[InputRef]OutputRef

	// adjacency caches, rebuilt lazily after any topology change
	succ map[NodeID][]NodeID
	pred map[NodeID][]NodeID
	down map[OutputRef][]InputRef
}

// Option configures a Graph.
type Option func(*Graph)

// WithIDGenerator sets the node id source. Default is UUIDv7Generator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(g *Graph) {
		g.ids = gen
	}
}

// New creates an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		ids:   UUIDv7Generator{},
		nodes: make(map[NodeID]*Node),
		edges: make(map[InputRef]OutputRef),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddNode creates a node from spec and returns its id. Ports start at
// their declared defaults, or a single default value of the port kind.
func (g *Graph) AddNode(spec NodeSpec) (NodeID, error) {
	if spec.Kind == "" {
		return "", &Error{Code: ErrCodeInvalidNode, Message: "node kind is empty"}
	}
	id := NodeID(g.ids.Generate())
	if _, exists := g.nodes[id]; exists {
		return "", &Error{Code: ErrCodeInvalidNode, Message: "duplicate node id", Node: id}
	}

	inputs, err := makePorts(spec.Inputs)
	if err != nil {
		return "", &Error{Code: ErrCodeInvalidNode, Message: "input " + err.Error(), Node: id}
	}
	outputs, err := makePorts(spec.Outputs)
	if err != nil {
		return "", &Error{Code: ErrCodeInvalidNode, Message: "output " + err.Error(), Node: id}
	}

	g.seq++
	g.nodes[id] = &Node{
		id:      id,
		kind:    spec.Kind,
		seq:     g.seq,
		eval:    spec.Eval,
		inputs:  inputs,
		outputs: outputs,
	}
	g.invalidate()
	return id, nil
}

func makePorts(specs []PortSpec) ([]port, error) {
	ports := make([]port, len(specs))
	for i, s := range specs {
		if s.Kind == value.KindAny {
			return nil, fmt.Errorf("%d (%s) has no concrete kind", i, s.Label)
		}
		values := s.Default
		if len(values) == 0 {
			values = value.Loop{value.Default(s.Kind)}
		}
		ports[i] = port{label: s.Label, kind: s.Kind, values: values.Coerce(s.Kind)}
	}
	return ports, nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id NodeID) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Nodes returns every node in creation order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b *Node) int { return int(a.seq - b.seq) })
	return out
}

// RemoveNode deletes a node and every connection touching it. Inputs that
// were fed by the node are flattened to literals, as by Disconnect.
func (g *Graph) RemoveNode(id NodeID) error {
	if _, ok := g.nodes[id]; !ok {
		return unknownNode(id)
	}
	for to, from := range g.edges {
		switch {
		case to.Node == id:
			delete(g.edges, to)
		case from.Node == id:
			g.flatten(to)
			delete(g.edges, to)
		}
	}
	delete(g.nodes, id)
	g.invalidate()
	return nil
}

// SetLiteral writes a literal loop to an unconnected input. The loop is
// coerced to the input's declared kind.
func (g *Graph) SetLiteral(ref InputRef, l value.Loop) error {
	n, err := g.input(ref)
	if err != nil {
		return err
	}
	if _, connected := g.edges[ref]; connected {
		return &Error{
			Code:    ErrCodePortConnected,
			Message: fmt.Sprintf("input %d is connected to %s", ref.Index, g.edges[ref]),
			Node:    ref.Node,
			Port:    ref.Index,
		}
	}
	if len(l) == 0 {
		return &Error{Code: ErrCodeInvalidNode, Message: "literal loop is empty", Node: ref.Node, Port: ref.Index}
	}
	p := &n.inputs[ref.Index]
	p.values = l.Coerce(p.kind)
	return nil
}

// SetOutput writes an output loop and mirrors it into every downstream
// input, coerced to each input's declared kind. It returns the inputs it
// wrote.
func (g *Graph) SetOutput(ref OutputRef, l value.Loop) ([]InputRef, error) {
	n, err := g.output(ref)
	if err != nil {
		return nil, err
	}
	p := &n.outputs[ref.Index]
	p.values = l.Coerce(p.kind)

	targets := g.Downstream(ref)
	for _, to := range targets {
		dst := &g.nodes[to.Node].inputs[to.Index]
		dst.values = p.values.Coerce(dst.kind)
	}
	return targets, nil
}

// Resolve returns a copy of the loop at an output, or a missing reference
// error if the node or port does not exist.
func (g *Graph) Resolve(ref OutputRef) (value.Loop, error) {
	n, ok := g.nodes[ref.Node]
	if !ok || !n.hasOutput(ref.Index) {
		return nil, &Error{
			Code:    ErrCodeMissingReference,
			Message: fmt.Sprintf("upstream %s cannot be resolved", ref),
			Node:    ref.Node,
			Port:    ref.Index,
		}
	}
	return n.outputs[ref.Index].values.Clone(), nil
}

func (g *Graph) input(ref InputRef) (*Node, error) {
	n, ok := g.nodes[ref.Node]
	if !ok {
		return nil, unknownNode(ref.Node)
	}
	if !n.hasInput(ref.Index) {
		return nil, unknownPort(ref.Node, "input", ref.Index, len(n.inputs))
	}
	return n, nil
}

func (g *Graph) output(ref OutputRef) (*Node, error) {
	n, ok := g.nodes[ref.Node]
	if !ok {
		return nil, unknownNode(ref.Node)
	}
	if !n.hasOutput(ref.Index) {
		return nil, unknownPort(ref.Node, "output", ref.Index, len(n.outputs))
	}
	return n, nil
}
